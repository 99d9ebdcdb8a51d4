package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/authhub/internal/api"
	"github.com/charlesng35/authhub/internal/app"
	iauth "github.com/charlesng35/authhub/internal/auth"
	"github.com/charlesng35/authhub/internal/cache"
	sharedtestutil "github.com/charlesng35/authhub/internal/database/testutil"
	"github.com/charlesng35/authhub/internal/otp"
	"github.com/charlesng35/authhub/internal/queue"
	"github.com/charlesng35/authhub/internal/realtime"
	"github.com/charlesng35/authhub/internal/services"
	"github.com/charlesng35/authhub/internal/storage"
	"github.com/charlesng35/authhub/pkg/response"
)

// DefaultPassword is the password used by RegisterVerified.
const DefaultPassword = "Secret123!"

// StubGoogle is a configurable Google verifier for handler tests.
type StubGoogle struct {
	Profile *iauth.GoogleProfile
	Err     error
}

// Verify implements auth.GoogleVerifier.
func (s *StubGoogle) Verify(_ context.Context, _ string) (*iauth.GoogleProfile, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Profile, nil
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	Tokens   *iauth.TokenService
	Sessions *iauth.SessionService
	Users    *services.UserService
	Bucket   *storage.MemoryBucket
	Hub      *realtime.Hub
	Google   *StubGoogle

	mu   sync.Mutex
	sent []otp.DeliveryPayload
}

// EnvOption customises the configuration used by NewEnv.
type EnvOption func(*app.Config)

// WithRateLimit enables the auth rate limiter.
func WithRateLimit(requests int, window time.Duration) EnvOption {
	return func(cfg *app.Config) {
		cfg.Server.RateLimit = app.RateLimitConfig{Requests: requests, Window: window}
	}
}

// WithUploadLimit overrides the maximum upload size.
func WithUploadLimit(bytes int64) EnvOption {
	return func(cfg *app.Config) {
		cfg.Storage.MaxUploadBytes = bytes
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
// OTP deliveries are captured in memory instead of being mailed.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Server: app.ServerConfig{Environment: "test"},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
		},
		Storage: app.StorageConfig{Driver: storage.DriverMemory, Bucket: "test-bucket"},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(db, cfg.Auth.SessionServiceConfig())
	require.NoError(t, err)
	tokens, err := iauth.NewTokenService(jwtSvc, sessions, cfg.Auth.TokenServiceConfig())
	require.NoError(t, err)

	env := &Env{
		T:        t,
		DB:       db,
		Tokens:   tokens,
		Sessions: sessions,
		Google:   &StubGoogle{},
	}

	inline := queue.NewInline(0)
	inline.Register(otp.JobSendOTP, func(_ context.Context, payload []byte) error {
		var job otp.DeliveryPayload
		if err := json.Unmarshal(payload, &job); err != nil {
			return err
		}
		env.mu.Lock()
		env.sent = append(env.sent, job)
		env.mu.Unlock()
		return nil
	})

	engine, err := otp.NewEngine(cache.NewMemoryStore(), inline, cfg.Auth.OTPOptions()...)
	require.NoError(t, err)

	users, err := services.NewUserService(db)
	require.NoError(t, err)
	authSvc, err := services.NewAuthService(users, tokens, engine, env.Google)
	require.NoError(t, err)

	env.Bucket = storage.NewMemoryBucket(cfg.Storage.Bucket, "")
	media, err := services.NewMediaService(db, storage.NewUploader(env.Bucket))
	require.NoError(t, err)

	env.Hub = realtime.NewHub()
	env.Users = users

	router, err := api.NewRouter(api.Dependencies{
		DB:        db,
		Config:    cfg,
		Tokens:    tokens,
		Sessions:  sessions,
		Auth:      authSvc,
		Users:     users,
		Media:     media,
		Hub:       env.Hub,
		RateStore: cache.NewMemoryStore(),
	})
	require.NoError(t, err)
	env.Router = router

	return env
}

// LastOTP returns the most recent code mailed to email.
func (e *Env) LastOTP(email string) otp.DeliveryPayload {
	e.T.Helper()

	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.sent) - 1; i >= 0; i-- {
		if e.sent[i].Email == email {
			return e.sent[i]
		}
	}
	e.T.Fatalf("no otp delivered to %s", email)
	return otp.DeliveryPayload{}
}

// Deliveries reports how many OTP mails were queued.
func (e *Env) Deliveries() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sent)
}

// TokenPayload mirrors the data of login style responses.
type TokenPayload struct {
	Token string `json:"token"`
}

// UserPayload captures the user fields returned by the API.
type UserPayload struct {
	ID              string `json:"id"`
	Fullname        string `json:"fullname"`
	Email           string `json:"email"`
	IsEmailVerified bool   `json:"isEmailVerified"`
}

// Register creates an account through the API and returns the created user.
func (e *Env) Register(fullname, email, password string) UserPayload {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"fullname": fullname,
		"email":    email,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())

	var data struct {
		User UserPayload `json:"user"`
	}
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &data)
	return data.User
}

// Login authenticates with email and password and returns the issued token.
func (e *Env) Login(email, password string) string {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	var data TokenPayload
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &data)
	require.NotEmpty(e.T, data.Token)
	return data.Token
}

// RegisterAndLogin creates an account with DefaultPassword and returns its id and token.
func (e *Env) RegisterAndLogin(email string) (string, string) {
	e.T.Helper()

	user := e.Register("Test User", email, DefaultPassword)
	return user.ID, e.Login(email, DefaultPassword)
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return e.Do(req)
}

// Upload posts data as the multipart "file" field.
func (e *Env) Upload(path, filename string, data []byte, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(e.T, err)
	_, err = part.Write(data)
	require.NoError(e.T, err)
	require.NoError(e.T, writer.Close())

	req, err := http.NewRequest(http.MethodPost, path, &body)
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.Do(req)
}

// Do serves req against the router.
func (e *Env) Do(req *http.Request) *httptest.ResponseRecorder {
	e.T.Helper()

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// TokenCookie returns the token cookie set by a response, if any.
func TokenCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	return nil
}
