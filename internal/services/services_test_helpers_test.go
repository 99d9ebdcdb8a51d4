package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/authhub/internal/auth"
	"github.com/charlesng35/authhub/internal/cache"
	"github.com/charlesng35/authhub/internal/database/testutil"
	"github.com/charlesng35/authhub/internal/otp"
	"github.com/charlesng35/authhub/internal/queue"
)

type fakeGoogle struct {
	profile *auth.GoogleProfile
	err     error
}

func (f *fakeGoogle) Verify(_ context.Context, _ string) (*auth.GoogleProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

type authFixture struct {
	db     *gorm.DB
	users  *UserService
	tokens *auth.TokenService
	google *fakeGoogle
	auth   *AuthService

	mu   sync.Mutex
	sent []otp.DeliveryPayload
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	users, err := NewUserService(db)
	require.NoError(t, err)

	sessions, err := auth.NewSessionService(db, auth.SessionConfig{})
	require.NoError(t, err)
	jwtSvc, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", Issuer: "authhub"})
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(jwtSvc, sessions, auth.TokenConfig{})
	require.NoError(t, err)

	fx := &authFixture{db: db, users: users, tokens: tokens, google: &fakeGoogle{}}

	inline := queue.NewInline(0)
	inline.Register(otp.JobSendOTP, func(_ context.Context, payload []byte) error {
		var job otp.DeliveryPayload
		if err := json.Unmarshal(payload, &job); err != nil {
			return err
		}
		fx.mu.Lock()
		fx.sent = append(fx.sent, job)
		fx.mu.Unlock()
		return nil
	})

	engine, err := otp.NewEngine(cache.NewMemoryStore(), inline)
	require.NoError(t, err)

	fx.auth, err = NewAuthService(users, tokens, engine, fx.google)
	require.NoError(t, err)
	return fx
}

func (fx *authFixture) lastOTP(t *testing.T) otp.DeliveryPayload {
	t.Helper()

	fx.mu.Lock()
	defer fx.mu.Unlock()
	require.NotEmpty(t, fx.sent, "expected an otp delivery")
	return fx.sent[len(fx.sent)-1]
}

func (fx *authFixture) deliveries() int {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	return len(fx.sent)
}

// wrongCode returns a six digit code guaranteed to differ from code.
func wrongCode(code string) string {
	if code == "123456" {
		return "654321"
	}
	return "123456"
}
