package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	testutil "github.com/charlesng35/authhub/internal/database/testutil"
	"github.com/charlesng35/authhub/internal/models"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func setupSessionService(t *testing.T, cfg SessionConfig) (*gorm.DB, *SessionService, *testClock) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := &testClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := NewSessionService(db, cfg, WithSessionClock(clock.Now))
	require.NoError(t, err)
	return db, svc, clock
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{Fullname: "Test User", Email: email, Password: "hash"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestNewSessionServiceRequiresDB(t *testing.T) {
	_, err := NewSessionService(nil, SessionConfig{})
	require.Error(t, err)
}

func TestCreateSessionRecordsMetadata(t *testing.T) {
	db, svc, clock := setupSessionService(t, SessionConfig{})
	user := createTestUser(t, db, "create@example.com")

	session, err := svc.Create(context.Background(), user.ID, SessionMeta{IPAddress: " 10.0.0.1 ", UserAgent: "unit-test"})
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)

	var reloaded models.Session
	require.NoError(t, db.Take(&reloaded, "id = ?", session.ID).Error)
	require.True(t, reloaded.IsValid)
	require.True(t, reloaded.LoginTime.Equal(clock.Now()))
	require.Nil(t, reloaded.LogoutTime)
	require.Equal(t, "10.0.0.1", reloaded.IPAddress)
	require.Equal(t, "unit-test", reloaded.UserAgent)
}

func TestCreateSessionRequiresUser(t *testing.T) {
	_, svc, _ := setupSessionService(t, SessionConfig{})
	_, err := svc.Create(context.Background(), " ", SessionMeta{})
	require.Error(t, err)
}

func TestSessionsAreIndependent(t *testing.T) {
	db, svc, _ := setupSessionService(t, SessionConfig{})
	user := createTestUser(t, db, "two@example.com")
	ctx := context.Background()

	first, err := svc.Create(ctx, user.ID, SessionMeta{})
	require.NoError(t, err)
	second, err := svc.Create(ctx, user.ID, SessionMeta{})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	require.NoError(t, svc.Invalidate(ctx, first.ID))

	live, err := svc.IsLive(ctx, first.ID, user.ID)
	require.NoError(t, err)
	require.False(t, live)

	live, err = svc.IsLive(ctx, second.ID, user.ID)
	require.NoError(t, err)
	require.True(t, live)
}

func TestInvalidateIsIdempotent(t *testing.T) {
	db, svc, clock := setupSessionService(t, SessionConfig{})
	user := createTestUser(t, db, "idem@example.com")
	ctx := context.Background()

	session, err := svc.Create(ctx, user.ID, SessionMeta{})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	require.NoError(t, svc.Invalidate(ctx, session.ID))
	loggedOutAt := clock.Now()

	clock.Advance(time.Minute)
	require.NoError(t, svc.Invalidate(ctx, session.ID))
	require.NoError(t, svc.Invalidate(ctx, "unknown-session"))
	require.NoError(t, svc.Invalidate(ctx, ""))

	var reloaded models.Session
	require.NoError(t, db.Take(&reloaded, "id = ?", session.ID).Error)
	require.False(t, reloaded.IsValid)
	require.NotNil(t, reloaded.LogoutTime)
	require.True(t, reloaded.LogoutTime.Equal(loggedOutAt))
}

func TestIsLiveChecksOwnership(t *testing.T) {
	db, svc, _ := setupSessionService(t, SessionConfig{})
	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")
	ctx := context.Background()

	session, err := svc.Create(ctx, owner.ID, SessionMeta{})
	require.NoError(t, err)

	live, err := svc.IsLive(ctx, session.ID, other.ID)
	require.NoError(t, err)
	require.False(t, live)

	live, err = svc.IsLive(ctx, "missing", owner.ID)
	require.NoError(t, err)
	require.False(t, live)
}

func TestIsLiveHonoursMaxAge(t *testing.T) {
	db, svc, clock := setupSessionService(t, SessionConfig{MaxAge: time.Hour})
	user := createTestUser(t, db, "aged@example.com")
	ctx := context.Background()

	session, err := svc.Create(ctx, user.ID, SessionMeta{})
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	live, err := svc.IsLive(ctx, session.ID, user.ID)
	require.NoError(t, err)
	require.True(t, live)

	clock.Advance(2 * time.Minute)
	live, err = svc.IsLive(ctx, session.ID, user.ID)
	require.NoError(t, err)
	require.False(t, live)

	active, err := svc.ListActive(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestInvalidateOlderThanKeepsRows(t *testing.T) {
	db, svc, clock := setupSessionService(t, SessionConfig{})
	user := createTestUser(t, db, "cron@example.com")
	ctx := context.Background()

	old, err := svc.Create(ctx, user.ID, SessionMeta{})
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)
	recent, err := svc.Create(ctx, user.ID, SessionMeta{})
	require.NoError(t, err)

	count, err := svc.InvalidateOlderThan(ctx, clock.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	live, err := svc.IsLive(ctx, old.ID, user.ID)
	require.NoError(t, err)
	require.False(t, live)
	live, err = svc.IsLive(ctx, recent.ID, user.ID)
	require.NoError(t, err)
	require.True(t, live)

	var total int64
	require.NoError(t, db.Model(&models.Session{}).Count(&total).Error)
	require.EqualValues(t, 2, total)
}

func TestListActiveNewestFirst(t *testing.T) {
	db, svc, clock := setupSessionService(t, SessionConfig{})
	user := createTestUser(t, db, "list@example.com")
	ctx := context.Background()

	first, err := svc.Create(ctx, user.ID, SessionMeta{UserAgent: "first"})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := svc.Create(ctx, user.ID, SessionMeta{UserAgent: "second"})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	revoked, err := svc.Create(ctx, user.ID, SessionMeta{})
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(ctx, revoked.ID))

	active, err := svc.ListActive(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, second.ID, active[0].ID)
	require.Equal(t, first.ID, active[1].ID)
}
