package app

import (
	"strings"

	"github.com/charlesng35/authhub/pkg/logger"
)

// ConfigureLogging installs the global logger for cfg. Outside production the
// console encoder is used.
func ConfigureLogging(cfg ServerConfig) error {
	env := strings.TrimSpace(cfg.Environment)
	if env == "" {
		env = "development"
	}
	return logger.Configure(logger.Options{
		Level:       strings.TrimSpace(cfg.LogLevel),
		Development: !cfg.IsProduction(),
		Fields: map[string]string{
			"service":     "authhub",
			"environment": env,
		},
	})
}
