package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/authhub/internal/database/testutil"
	"github.com/charlesng35/authhub/pkg/crypto"
)

func newUserService(t *testing.T) *UserService {
	t.Helper()

	svc, err := NewUserService(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()))
	require.NoError(t, err)
	return svc
}

func TestNewUserServiceRequiresDB(t *testing.T) {
	_, err := NewUserService(nil)
	require.Error(t, err)
}

func TestUserServiceCreateHashesPassword(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserInput{Fullname: " Ada ", Email: " Ada@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, "Ada", user.Fullname)
	require.Equal(t, "ada@example.com", user.Email)
	require.NotEqual(t, "secret1", user.Password)
	require.True(t, crypto.VerifyPassword(user.Password, "secret1"))
	require.False(t, user.IsEmailVerified)
	require.Nil(t, user.GoogleID)

	loaded, err := svc.GetByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, loaded.ID)
}

func TestUserServiceCreateRejectsDuplicateEmail(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateUserInput{Fullname: "One", Email: "dup@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateUserInput{Fullname: "Two", Email: "DUP@example.com", Password: "secret2"})
	require.ErrorIs(t, err, ErrUserExists)
}

func TestUserServiceCreateWithoutPasswordIsUnusable(t *testing.T) {
	svc := newUserService(t)

	user, err := svc.Create(context.Background(), CreateUserInput{Fullname: "G", Email: "g@example.com", GoogleID: "sub-1"})
	require.NoError(t, err)
	require.NotEmpty(t, user.Password)
	require.False(t, crypto.VerifyPassword(user.Password, ""))
	require.True(t, user.HasGoogleID())
}

func TestUserServiceLookupsReportNotFound(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	_, err := svc.GetByID(ctx, "missing")
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.GetByEmail(ctx, "missing@example.com")
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.FindByGoogleIDOrEmail(ctx, "sub", "missing@example.com")
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.UpdateFullname(ctx, "missing", "Name")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserServiceFindByGoogleIDOrEmail(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	linked, err := svc.Create(ctx, CreateUserInput{Fullname: "Linked", Email: "linked@example.com", GoogleID: "sub-linked"})
	require.NoError(t, err)
	plain, err := svc.Create(ctx, CreateUserInput{Fullname: "Plain", Email: "plain@example.com", Password: "secret1"})
	require.NoError(t, err)

	found, err := svc.FindByGoogleIDOrEmail(ctx, "sub-linked", "plain@example.com")
	require.NoError(t, err)
	require.Equal(t, linked.ID, found.ID)

	found, err = svc.FindByGoogleIDOrEmail(ctx, "sub-unknown", "plain@example.com")
	require.NoError(t, err)
	require.Equal(t, plain.ID, found.ID)
}

func TestUserServiceUpdates(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserInput{Fullname: "Before", Email: "u@example.com", Password: "secret1"})
	require.NoError(t, err)

	updated, err := svc.UpdateFullname(ctx, user.ID, "After")
	require.NoError(t, err)
	require.Equal(t, "After", updated.Fullname)

	_, err = svc.UpdateFullname(ctx, user.ID, "  ")
	require.Error(t, err)

	verified, err := svc.MarkEmailVerified(ctx, "U@example.com")
	require.NoError(t, err)
	require.True(t, verified.IsEmailVerified)

	require.NoError(t, svc.UpdatePassword(ctx, "u@example.com", "newpass"))
	reloaded, err := svc.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, crypto.VerifyPassword(reloaded.Password, "newpass"))
	require.False(t, crypto.VerifyPassword(reloaded.Password, "secret1"))

	require.NoError(t, svc.LinkGoogleID(ctx, user.ID, "sub-42"))
	reloaded, err = svc.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "sub-42", *reloaded.GoogleID)
}

func TestUserServiceLinkGoogleIDConflict(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateUserInput{Fullname: "A", Email: "a@example.com", GoogleID: "sub-a"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, CreateUserInput{Fullname: "B", Email: "b@example.com", Password: "secret1"})
	require.NoError(t, err)

	err = svc.LinkGoogleID(ctx, b.ID, "sub-a")
	require.Error(t, err)
}
