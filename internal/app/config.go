package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/charlesng35/authhub/pkg/mail"
)

// EnvironmentProduction switches on secure cookies and JSON logs.
const EnvironmentProduction = "production"

// Config represents the runtime configuration for the authhub backend.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Queue    QueueSettings  `mapstructure:"queue"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Email    EmailConfig    `mapstructure:"email"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int             `mapstructure:"port"`
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	CORS        CORSConfig      `mapstructure:"cors"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

// IsProduction reports whether the server runs with production hardening.
func (c ServerConfig) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), EnvironmentProduction)
}

// CORSConfig lists the browser origins allowed to call the API and open sockets.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig bounds requests per client on the auth routes.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	LogLevel string       `mapstructure:"log_level"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Address   string        `mapstructure:"address"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TLS       bool          `mapstructure:"tls"`
	Timeout   time.Duration `mapstructure:"timeout"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// QueueSettings tunes the background job worker.
type QueueSettings struct {
	Concurrency int           `mapstructure:"concurrency"`
	MaxRetry    int           `mapstructure:"max_retry"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT     JWTSettings     `mapstructure:"jwt"`
	Session SessionSettings `mapstructure:"session"`
	OTP     OTPSettings     `mapstructure:"otp"`
	Google  GoogleSettings  `mapstructure:"google"`
}

// JWTSettings configures bearer tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// SessionSettings configures session lifetimes.
type SessionSettings struct {
	// MaxAge invalidates sessions older than this. Zero keeps sessions alive until logout.
	MaxAge          time.Duration `mapstructure:"max_age"`
	LookupTimeout   time.Duration `mapstructure:"lookup_timeout"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`
}

// OTPSettings configures one-time codes.
type OTPSettings struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// GoogleSettings configures Google access token verification.
type GoogleSettings struct {
	// Enabled performs OIDC discovery at startup. Disabled deployments answer Google logins with 503.
	Enabled   bool          `mapstructure:"enabled"`
	Issuer    string        `mapstructure:"issuer"`
	ClientIDs []string      `mapstructure:"client_ids"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	SMTP SMTPConfig `mapstructure:"smtp"`
}

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	smtp := c.SMTP
	return mail.SMTPSettings{
		Enabled:  smtp.Enabled,
		Host:     strings.TrimSpace(smtp.Host),
		Port:     smtp.Port,
		Username: smtp.Username,
		Password: smtp.Password,
		From:     strings.TrimSpace(smtp.From),
		FromName: strings.TrimSpace(smtp.FromName),
		UseTLS:   smtp.UseTLS,
		Timeout:  smtp.Timeout,
	}
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	FromName string        `mapstructure:"from_name"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects the object store used for media uploads.
type StorageConfig struct {
	Driver         string           `mapstructure:"driver"`
	Bucket         string           `mapstructure:"bucket"`
	PublicBaseURL  string           `mapstructure:"public_base_url"`
	MaxUploadBytes int64            `mapstructure:"max_upload_bytes"`
	GCS            GCSConfig        `mapstructure:"gcs"`
	S3             S3Config         `mapstructure:"s3"`
	Cloudinary     CloudinaryConfig `mapstructure:"cloudinary"`
}

// GCSConfig holds Google Cloud Storage credentials.
type GCSConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// S3Config holds S3 compatible endpoint settings.
type S3Config struct {
	Endpoint       string `mapstructure:"endpoint"`
	Region         string `mapstructure:"region"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}

// CloudinaryConfig holds the cloudinary:// connection URL.
type CloudinaryConfig struct {
	URL string `mapstructure:"url"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("AUTHHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit.requests", 60)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/authhub.sqlite")
	v.SetDefault("database.log_level", "silent")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")
	v.SetDefault("cache.redis.key_prefix", "")

	v.SetDefault("queue.concurrency", 5)
	v.SetDefault("queue.max_retry", 2)
	v.SetDefault("queue.base_delay", "1s")
	v.SetDefault("queue.timeout", "30s")

	v.SetDefault("auth.jwt.issuer", "authhub")
	v.SetDefault("auth.jwt.ttl", "720h") // 30 days
	v.SetDefault("auth.session.max_age", "0s")
	v.SetDefault("auth.session.lookup_timeout", "3s")
	v.SetDefault("auth.session.cleanup_schedule", "@every 1h")
	v.SetDefault("auth.otp.ttl", "5m")
	v.SetDefault("auth.google.enabled", true)
	v.SetDefault("auth.google.issuer", "https://accounts.google.com")
	v.SetDefault("auth.google.timeout", "10s")

	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.from_name", "AuthHub")
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.bucket", "authhub-media")
	v.SetDefault("storage.max_upload_bytes", 25<<20)
	v.SetDefault("storage.s3.region", "us-east-1")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
