package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/authhub/internal/models"
	"github.com/charlesng35/authhub/pkg/crypto"
	apperrors "github.com/charlesng35/authhub/pkg/errors"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrUserExists is returned when registering an email that already has an account.
	ErrUserExists = apperrors.New("USER_EXISTS", "User already exists", http.StatusConflict)

	errPasswordTooLong = apperrors.NewBadRequest(fmt.Sprintf("password must be at most %d bytes", crypto.MaxPasswordBytes))
	errGoogleLinked    = apperrors.New("GOOGLE_ALREADY_LINKED", "Google account already linked to another user", http.StatusConflict)
)

// CreateUserInput describes the fields accepted when creating a user.
type CreateUserInput struct {
	Fullname string
	Email    string
	// Password is hashed with bcrypt. Empty stores an unusable hash.
	Password        string
	GoogleID        string
	IsEmailVerified bool
}

// UserService manages the user accounts.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// Create provisions a new user with a hashed password.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	fullname := strings.TrimSpace(input.Fullname)
	email := models.NormalizeEmail(input.Email)
	if fullname == "" {
		return nil, apperrors.NewBadRequest("fullname is required")
	}
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}

	var (
		hashed string
		err    error
	)
	if input.Password == "" {
		hashed, err = crypto.UnusablePasswordHash()
	} else {
		hashed, err = hashPassword(input.Password)
	}
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Fullname:        fullname,
		Email:           email,
		Password:        hashed,
		IsEmailVerified: input.IsEmailVerified,
	}
	if googleID := strings.TrimSpace(input.GoogleID); googleID != "" {
		user.GoogleID = &googleID
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if column, dup := uniqueViolation(err); dup {
			if column == "google_id" {
				return nil, errGoogleLinked
			}
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("user service: create: %w", err)
	}
	return user, nil
}

// GetByID loads a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.first(ensureContext(ctx), "id = ?", strings.TrimSpace(id))
}

// GetByEmail loads a user by normalised email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.first(ensureContext(ctx), "email = ?", models.NormalizeEmail(email))
}

// FindByGoogleIDOrEmail prefers the account linked to googleID and falls back to the email match.
func (s *UserService) FindByGoogleIDOrEmail(ctx context.Context, googleID, email string) (*models.User, error) {
	ctx = ensureContext(ctx)

	if googleID = strings.TrimSpace(googleID); googleID != "" {
		user, err := s.first(ctx, "google_id = ?", googleID)
		if err == nil || !errors.Is(err, ErrUserNotFound) {
			return user, err
		}
	}
	if models.NormalizeEmail(email) == "" {
		return nil, ErrUserNotFound
	}
	return s.GetByEmail(ctx, email)
}

// UpdateFullname changes the display name of a user.
func (s *UserService) UpdateFullname(ctx context.Context, id, fullname string) (*models.User, error) {
	fullname = strings.TrimSpace(fullname)
	if fullname == "" {
		return nil, apperrors.NewBadRequest("fullname is required")
	}
	if err := s.update(ensureContext(ctx), "id = ?", id, map[string]any{"fullname": fullname}); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// MarkEmailVerified flags the account of email as verified and returns it.
func (s *UserService) MarkEmailVerified(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if err := s.update(ensureContext(ctx), "email = ?", email, map[string]any{"is_email_verified": true}); err != nil {
		return nil, err
	}
	return s.GetByEmail(ctx, email)
}

// UpdatePassword stores a new bcrypt hash for the account of email.
func (s *UserService) UpdatePassword(ctx context.Context, email, password string) error {
	if strings.TrimSpace(password) == "" {
		return apperrors.NewBadRequest("password is required")
	}
	hashed, err := hashPassword(password)
	if err != nil {
		return err
	}
	return s.update(ensureContext(ctx), "email = ?", models.NormalizeEmail(email), map[string]any{"password": hashed})
}

// LinkGoogleID attaches a Google subject to an existing account.
func (s *UserService) LinkGoogleID(ctx context.Context, id, googleID string) error {
	googleID = strings.TrimSpace(googleID)
	if googleID == "" {
		return apperrors.NewBadRequest("google id is required")
	}
	err := s.update(ensureContext(ctx), "id = ?", id, map[string]any{"google_id": googleID})
	if _, dup := uniqueViolation(err); dup {
		return errGoogleLinked
	}
	return err
}

func (s *UserService) first(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where(query, arg).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: lookup: %w", err)
	}
	return &user, nil
}

func (s *UserService) update(ctx context.Context, query string, arg any, values map[string]any) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).Where(query, arg).Updates(values)
	if result.Error != nil {
		if _, dup := uniqueViolation(result.Error); dup {
			return result.Error
		}
		return fmt.Errorf("user service: update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hashed, err := crypto.HashPassword(password)
	if errors.Is(err, crypto.ErrPasswordTooLong) {
		return "", errPasswordTooLong
	}
	if err != nil {
		return "", fmt.Errorf("user service: hash password: %w", err)
	}
	return hashed, nil
}
