package config

import (
	"strings"
	"testing"
)

func TestValidateWithDetails_HostTag(t *testing.T) {
	tests := []struct {
		name string
		host string
		ok   bool
	}{
		{"localhost", "localhost", true},
		{"loopback", "127.0.0.1", true},
		{"bind all", "0.0.0.0", true},
		{"hostname", "wolfmem.internal", true},
		{"ipv6 loopback", "::1", true},
		{"embedded space", "bad host", false},
		{"embedded newline", "bad\nhost", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Server.Host = tt.host
			err := ValidateWithDetails(cfg)
			if tt.ok && err != nil {
				t.Errorf("expected host %q to validate, got %v", tt.host, err)
			}
			if !tt.ok && err == nil {
				t.Errorf("expected host %q to be rejected", tt.host)
			}
		})
	}
}

func TestValidateWithDetails_Environment(t *testing.T) {
	cfg := DefaultConfig()
	cfg.App.Environment = "qa"
	if err := ValidateWithDetails(cfg); err == nil {
		t.Error("expected unknown environment to be rejected")
	}

	for _, env := range []string{"development", "staging", "production"} {
		cfg.App.Environment = env
		if err := ValidateWithDetails(cfg); err != nil {
			t.Errorf("expected environment %q to validate, got %v", env, err)
		}
	}
}

func TestValidateWithDetails_LogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "verbose"

	err := ValidateWithDetails(cfg)
	if err == nil {
		t.Fatal("expected invalid log level to be rejected")
	}
	if !strings.Contains(err.Error(), "Log.Level") {
		t.Errorf("expected the error to name the offending field, got: %v", err)
	}
}

func TestValidateWithDetails_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "verbose"
	cfg.Log.Format = "xml"
	cfg.App.Environment = "qa"

	err := ValidateWithDetails(cfg)
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 3 {
		t.Errorf("expected 3 field errors, got %d: %v", len(verrs), verrs)
	}
}

func TestIsValidHostChar(t *testing.T) {
	valid := []rune{'a', 'Z', '0', '-', '.', ':', '_'}
	invalid := []rune{' ', '\t', '\n', '!', '@', '/'}

	for _, r := range valid {
		if !isValidHostChar(r) {
			t.Errorf("expected %q to be a valid host rune", r)
		}
	}
	for _, r := range invalid {
		if isValidHostChar(r) {
			t.Errorf("expected %q to be rejected", r)
		}
	}
}
