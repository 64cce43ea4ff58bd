package config

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		ModelName:    "gpt-5-mini",
		TopK:         5,
		BudgetTokens: 2000,
		PostgresPort: 5432,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"empty model", func(c *Config) { c.ModelName = "" }, ErrInvalidModelName},
		{"zero topK", func(c *Config) { c.TopK = 0 }, ErrInvalidTopK},
		{"topK over cap", func(c *Config) { c.TopK = MaxTopK + 1 }, ErrInvalidTopK},
		{"zero budget", func(c *Config) { c.BudgetTokens = 0 }, ErrInvalidBudgetTokens},
		{"bad port", func(c *Config) { c.PostgresPort = 70000 }, ErrInvalidPostgresPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresHost = "db.internal"
	cfg.PostgresUser = "quill"
	cfg.PostgresPassword = "p@ss/word"
	cfg.PostgresDBName = "quill"
	cfg.PostgresSSLMode = "require"

	u := cfg.DatabaseURL()
	if !strings.HasPrefix(u, "postgres://") {
		t.Errorf("URL scheme missing: %q", u)
	}
	if !strings.Contains(u, "db.internal:5432") {
		t.Errorf("host missing: %q", u)
	}
	if !strings.Contains(u, "sslmode=require") {
		t.Errorf("sslmode missing: %q", u)
	}
	if strings.Contains(u, "p@ss/word") {
		t.Errorf("password must be URL-escaped: %q", u)
	}
}

func TestMarshalJSONMasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "secret-pw"
	cfg.KeyDataSecret = "deadbeef"

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	out := string(data)
	if strings.Contains(out, "secret-pw") || strings.Contains(out, "deadbeef") {
		t.Errorf("secrets leaked into JSON: %s", out)
	}
	if !strings.Contains(out, "***") {
		t.Errorf("masked placeholder missing: %s", out)
	}
}
