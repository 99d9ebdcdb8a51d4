package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/charlesng35/authhub/internal/auth"
	"github.com/charlesng35/authhub/internal/models"
	"github.com/charlesng35/authhub/internal/services"
	appErrors "github.com/charlesng35/authhub/pkg/errors"
	"github.com/charlesng35/authhub/pkg/response"
)

var errUserDetailsNotFound = appErrors.New("USER_NOT_FOUND", "User details not found", http.StatusNotFound)

// SessionLister lists the live sessions of a user.
type SessionLister interface {
	ListActive(ctx context.Context, userID string) ([]models.Session, error)
}

// UserHandler serves the profile of the logged-in user and public user lookups.
type UserHandler struct {
	users    *services.UserService
	sessions SessionLister
}

// NewUserHandler constructs a UserHandler. sessions may be nil, which disables /user/sessions.
func NewUserHandler(users *services.UserService, sessions SessionLister) (*UserHandler, error) {
	if users == nil {
		return nil, errors.New("user handler: user service is required")
	}
	return &UserHandler{users: users, sessions: sessions}, nil
}

type updateUserRequest struct {
	Fullname string `json:"fullname" validate:"required,notblank,min=1"`
}

// GET /api/v1/user
func (h *UserHandler) Me(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	h.respondUser(c, identity.UserID)
}

// GET /api/v1/user/:id
func (h *UserHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		response.Error(c, errUserDetailsNotFound)
		return
	}
	h.respondUser(c, id)
}

// PUT /api/v1/user
func (h *UserHandler) Update(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req updateUserRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.UpdateFullname(requestContext(c), identity.UserID, req.Fullname)
	if err != nil {
		h.userError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "User details updated", gin.H{"user": user})
}

// GET /api/v1/user/sessions
func (h *UserHandler) Sessions(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	if h.sessions == nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	sessions, err := h.sessions.ListActive(requestContext(c), identity.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Active sessions", gin.H{"sessions": sessions})
}

func (h *UserHandler) respondUser(c *gin.Context, id string) {
	user, err := h.users.GetByID(requestContext(c), id)
	if err != nil {
		h.userError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "User details", gin.H{"user": user})
}

func (h *UserHandler) userError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrUserNotFound) {
		response.Error(c, errUserDetailsNotFound)
		return
	}
	response.Error(c, err)
}

var _ SessionLister = (*auth.SessionService)(nil)
