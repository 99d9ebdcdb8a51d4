package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charlesng35/authhub/pkg/crypto"
)

const jwtSecretBytes = 48

// ErrMissingJWTSecret is returned when production starts without a signing secret.
var ErrMissingJWTSecret = errors.New("config: auth.jwt.secret is required in production")

// ApplyRuntimeDefaults ensures critical secrets are populated even when no configuration file is supplied.
// It returns a map describing which keys were generated so callers can log the event without exposing values.
// A generated secret invalidates every token on restart, so production refuses to start instead.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if err := ensureSecretsPresent(cfg); err != nil {
		return nil, err
	}

	generated := make(map[string]bool)

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated["auth.jwt.secret"] = true
	}

	return generated, nil
}

func ensureSecretsPresent(cfg *Config) error {
	if cfg.Server.IsProduction() && strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		return ErrMissingJWTSecret
	}
	return nil
}
