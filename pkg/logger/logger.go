package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger = zap.NewNop()
	mu           sync.RWMutex
)

// Options tunes the global logger.
type Options struct {
	// Level is a zap level name; unknown values fall back to info.
	Level string
	// Development switches to the console encoder with stack traces on warnings.
	Development bool
	// Fields are attached to every entry, e.g. service and environment.
	Fields map[string]string
}

// Configure builds and installs the global logger from opts. Production
// output is JSON with sampling enabled.
func Configure(opts Options) error {
	cfg := zap.NewProductionConfig()
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	if len(opts.Fields) > 0 {
		cfg.InitialFields = make(map[string]any, len(opts.Fields))
		for key, value := range opts.Fields {
			cfg.InitialFields[key] = value
		}
	}

	built, err := cfg.Build()
	if err != nil {
		return err
	}
	Replace(built)
	return nil
}

// Replace swaps the global logger. Tests use it to install an observer core.
func Replace(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	globalLogger = l
	mu.Unlock()
}

// Logger returns the configured global logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// Sync flushes buffered log entries.
func Sync() error {
	return Logger().Sync()
}

// WithModule returns a child logger annotated with the module name.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}

// Error logs through the global logger; used where no module logger exists yet.
func Error(msg string, fields ...zap.Field) {
	Logger().Error(msg, fields...)
}
