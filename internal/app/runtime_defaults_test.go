package app

import (
	"errors"
	"strings"
	"testing"
)

func TestApplyRuntimeDefaultsGeneratesMissingSecrets(t *testing.T) {
	cfg := &Config{}

	generated, err := ApplyRuntimeDefaults(cfg)
	if err != nil {
		t.Fatalf("ApplyRuntimeDefaults returned error: %v", err)
	}

	if cfg.Auth.JWT.Secret == "" {
		t.Fatal("expected JWT secret to be generated")
	}
	if !generated["auth.jwt.secret"] {
		t.Fatalf("expected generated map to include jwt secret: %#v", generated)
	}
}

func TestApplyRuntimeDefaultsPreservesExistingSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.JWT.Secret = strings.Repeat("a", 10)

	generated, err := ApplyRuntimeDefaults(cfg)
	if err != nil {
		t.Fatalf("ApplyRuntimeDefaults returned error: %v", err)
	}

	if len(generated) != 0 {
		t.Fatalf("expected no keys generated, got %#v", generated)
	}
	if cfg.Auth.JWT.Secret != strings.Repeat("a", 10) {
		t.Fatal("expected secret to be preserved")
	}
}

func TestApplyRuntimeDefaultsRefusesProductionWithoutSecret(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Environment: "Production"}}

	_, err := ApplyRuntimeDefaults(cfg)
	if !errors.Is(err, ErrMissingJWTSecret) {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestApplyRuntimeDefaultsNilConfig(t *testing.T) {
	_, err := ApplyRuntimeDefaults(nil)
	if err == nil || !strings.Contains(err.Error(), "config is nil") {
		t.Fatalf("expected nil config error, got %v", err)
	}
}
