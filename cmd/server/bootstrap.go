package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/authhub/internal/api"
	"github.com/charlesng35/authhub/internal/app"
	"github.com/charlesng35/authhub/internal/app/maintenance"
	iauth "github.com/charlesng35/authhub/internal/auth"
	"github.com/charlesng35/authhub/internal/cache"
	"github.com/charlesng35/authhub/internal/database"
	"github.com/charlesng35/authhub/internal/otp"
	"github.com/charlesng35/authhub/internal/queue"
	"github.com/charlesng35/authhub/internal/realtime"
	"github.com/charlesng35/authhub/internal/services"
	"github.com/charlesng35/authhub/internal/storage"
	"github.com/charlesng35/authhub/pkg/logger"
	"github.com/charlesng35/authhub/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Store   cache.Store
	Queue   queue.Enqueuer
	Worker  *queue.Server
	Bucket  storage.Bucket
	Hub     *realtime.Hub
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine

	queueClient *queue.Client
	stopHub     context.CancelFunc
	hubDone     chan struct{}
}

// bootstrapRuntime initialises databases, caches, the job queue, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			if shutdownErr := stack.Shutdown(context.Background()); shutdownErr != nil {
				log.Warn("partial bootstrap cleanup", zap.Error(shutdownErr))
			}
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var purger maintenance.ExpiredPurger
	if cfg.Cache.Redis.Enabled {
		stack.Redis, err = cache.NewRedisClient(ctx, cfg.Cache.RedisClientConfig())
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		stack.Store = cache.NewRedisStore(stack.Redis, cfg.Cache.Redis.KeyPrefix)
		log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
	} else {
		dbStore := cache.NewDatabaseStore(stack.DB)
		stack.Store = dbStore
		purger = dbStore
		log.Info("redis disabled; using database-backed cache and inline queue")
	}

	if err := stack.initialiseQueue(cfg); err != nil {
		return nil, err
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}
	sessionSvc, err := iauth.NewSessionService(stack.DB, cfg.Auth.SessionServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise session service: %w", err)
	}
	tokenSvc, err := iauth.NewTokenService(jwtSvc, sessionSvc, cfg.Auth.TokenServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise token service: %w", err)
	}

	otpEngine, err := otp.NewEngine(stack.Store, stack.Queue, cfg.Auth.OTPOptions()...)
	if err != nil {
		return nil, fmt.Errorf("initialise otp engine: %w", err)
	}

	userSvc, err := services.NewUserService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}
	authSvc, err := services.NewAuthService(userSvc, tokenSvc, otpEngine, initialiseGoogle(ctx, cfg, log))
	if err != nil {
		return nil, fmt.Errorf("initialise auth service: %w", err)
	}

	stack.Bucket, err = storage.New(ctx, cfg.Storage.BucketConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise storage: %w", err)
	}
	log.Info("media storage ready",
		zap.String("driver", cfg.Storage.Driver),
		zap.String("bucket", stack.Bucket.Name()),
	)
	mediaSvc, err := services.NewMediaService(stack.DB, storage.NewUploader(stack.Bucket))
	if err != nil {
		return nil, fmt.Errorf("initialise media service: %w", err)
	}

	if err := stack.startHub(cfg, log); err != nil {
		return nil, err
	}

	stack.Cleaner = maintenance.NewCleaner(sessionSvc, purger,
		maintenance.WithMaxSessionAge(cfg.Auth.Session.MaxAge),
		maintenance.WithSessionSchedule(cfg.Auth.Session.CleanupSchedule),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:        stack.DB,
		Config:    cfg,
		Tokens:    tokenSvc,
		Sessions:  sessionSvc,
		Auth:      authSvc,
		Users:     userSvc,
		Media:     mediaSvc,
		Hub:       stack.Hub,
		RateStore: stack.Store,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// initialiseQueue wires OTP delivery onto asynq when Redis is available and onto the
// inline runner otherwise.
func (s *runtimeStack) initialiseQueue(cfg *app.Config) error {
	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return fmt.Errorf("initialise mailer: %w", err)
	}
	delivery := otp.NewDeliveryHandler(mailer, mail.NewRenderer())
	queueCfg := cfg.QueueConfig()

	if s.Redis == nil {
		inline := queue.NewInline(queueCfg.MaxRetry)
		inline.Register(otp.JobSendOTP, delivery.Handle)
		s.Queue = inline
		return nil
	}

	s.queueClient = queue.NewClient(queueCfg)
	s.Queue = s.queueClient

	worker := queue.NewServer(queueCfg)
	worker.Register(otp.JobSendOTP, delivery.Handle)
	if err := worker.Start(); err != nil {
		return err
	}
	s.Worker = worker
	return nil
}

func (s *runtimeStack) startHub(cfg *app.Config, log *zap.Logger) error {
	opts := []realtime.Option{realtime.WithAllowedOrigins(cfg.Server.CORS.AllowedOrigins)}
	if s.Redis != nil {
		adapter, err := realtime.NewRedisAdapter(s.Redis)
		if err != nil {
			return fmt.Errorf("initialise realtime adapter: %w", err)
		}
		opts = append(opts, realtime.WithAdapter(adapter))
	}
	s.Hub = realtime.NewHub(opts...)

	hubCtx, cancel := context.WithCancel(context.Background())
	s.stopHub = cancel
	s.hubDone = make(chan struct{})
	go func() {
		defer close(s.hubDone)
		if err := s.Hub.Run(hubCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("realtime adapter stopped", zap.Error(err))
		}
	}()
	return nil
}

// initialiseGoogle returns nil when Google login is disabled or discovery fails,
// so the rest of the API stays available.
func initialiseGoogle(ctx context.Context, cfg *app.Config, log *zap.Logger) iauth.GoogleVerifier {
	if !cfg.Auth.Google.Enabled {
		return nil
	}
	verifier, err := iauth.NewGoogleVerifier(ctx, cfg.Auth.GoogleVerifierConfig())
	if err != nil {
		log.Warn("google login disabled", zap.Error(err))
		return nil
	}
	return verifier
}

// Shutdown stops background jobs and releases resources in reverse start order.
func (s *runtimeStack) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}

	var errs error

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			<-stopCtx.Done()
		}
		errs = multierr.Append(errs, s.Cleaner.RunOnce(ctx))
	}

	if s.stopHub != nil {
		s.stopHub()
		<-s.hubDone
	}

	if s.Worker != nil {
		s.Worker.Shutdown()
	}
	if s.queueClient != nil {
		errs = multierr.Append(errs, s.queueClient.Close())
	}

	if closer, ok := s.Bucket.(io.Closer); ok {
		errs = multierr.Append(errs, closer.Close())
	}

	if s.Redis != nil {
		errs = multierr.Append(errs, s.Redis.Close())
	}

	if s.DB != nil {
		errs = multierr.Append(errs, database.Close(s.DB))
	}
	return errs
}

func initialiseDatabase(ctx context.Context, cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Ping(ctx, db); err != nil {
		return nil, multierr.Append(fmt.Errorf("ping database: %w", err), database.Close(db))
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, multierr.Append(fmt.Errorf("auto-migrate database: %w", err), database.Close(db))
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver:   strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:     strings.TrimSpace(cfg.Database.Path),
		DSN:      strings.TrimSpace(cfg.Database.DSN),
		LogLevel: cfg.Database.LogLevel,
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		applyHostConfig(&dbCfg, cfg.Database.Postgres)
	case "mysql":
		applyHostConfig(&dbCfg, cfg.Database.MySQL)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func applyHostConfig(dst *database.Config, src app.DBAuthConfig) {
	dst.Host = strings.TrimSpace(src.Host)
	dst.Port = src.Port
	dst.Name = strings.TrimSpace(src.Database)
	dst.User = strings.TrimSpace(src.Username)
	dst.Password = strings.TrimSpace(src.Password)
}
