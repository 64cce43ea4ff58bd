// Package config provides application configuration with multi-source
// priority: environment variables override the config file
// (~/.quill/config.yaml), which overrides defaults.
//
// Sensitive fields are masked in MarshalJSON; keep that in sync when adding
// secrets.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidTopK indicates the retrieval topK is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top_k")

	// ErrInvalidBudgetTokens indicates the augmentation budget is out of range.
	ErrInvalidBudgetTokens = errors.New("invalid budget_tokens")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidKeyDataSecret indicates the BYOK data key is missing or malformed.
	ErrInvalidKeyDataSecret = errors.New("invalid key data secret")
)

const (
	// DefaultTopK is the retrieval depth used when none is configured.
	DefaultTopK = 5

	// DefaultBudgetTokens bounds injected context per turn.
	DefaultBudgetTokens = 2000

	// MaxTopK caps retrieval depth to keep provider calls bounded.
	MaxTopK = 50
)

// Config stores application configuration.
type Config struct {
	// Generation models
	ModelName        string `mapstructure:"model_name" json:"model_name"`                 // Primary generation model
	RewriteModelName string `mapstructure:"rewrite_model_name" json:"rewrite_model_name"` // Fast model for query rewrite

	// Retrieval
	TwoPassEnabled bool `mapstructure:"two_pass_enabled" json:"two_pass_enabled"`
	TopK           int  `mapstructure:"top_k" json:"top_k"`
	BudgetTokens   int  `mapstructure:"budget_tokens" json:"budget_tokens"`

	// Credentials
	GatewayEnabled bool   `mapstructure:"gateway_enabled" json:"gateway_enabled"`
	KeyDataSecret  string `mapstructure:"key_data_secret" json:"key_data_secret"` // SENSITIVE: masked in MarshalJSON

	// Storage
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Usage accounting
	RedisAddr string `mapstructure:"redis_addr" json:"redis_addr"` // "" disables usage recording

	// Server
	HTTPAddr   string  `mapstructure:"http_addr" json:"http_addr"`
	RatePerSec float64 `mapstructure:"rate_per_sec" json:"rate_per_sec"`
	RateBurst  int     `mapstructure:"rate_burst" json:"rate_burst"`

	// Embedding
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
}

// Load reads configuration from defaults, the optional config file, and
// QUILL_* environment variables, then validates it.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("model_name", "gpt-5-mini")
	v.SetDefault("rewrite_model_name", "gemini-2.5-flash")
	v.SetDefault("two_pass_enabled", true)
	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("budget_tokens", DefaultBudgetTokens)
	v.SetDefault("gateway_enabled", false)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "quill")
	v.SetDefault("postgres_db_name", "quill")
	v.SetDefault("postgres_ssl_mode", "disable")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("rate_per_sec", 1.0)
	v.SetDefault("rate_burst", 60)
	v.SetDefault("embedder_model", "gemini-embedding-001")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".quill"))
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("QUILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name is empty", ErrInvalidModelName)
	}
	if c.TopK < 1 || c.TopK > MaxTopK {
		return fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidTopK, c.TopK, MaxTopK)
	}
	if c.BudgetTokens < 1 {
		return fmt.Errorf("%w: %d (must be positive)", ErrInvalidBudgetTokens, c.BudgetTokens)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	return nil
}

// DatabaseURL builds a postgres:// connection URL.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   "/" + c.PostgresDBName,
	}
	q := u.Query()
	q.Set("sslmode", c.PostgresSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// MarshalJSON masks sensitive fields.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := alias(c)
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = "***"
	}
	if masked.KeyDataSecret != "" {
		masked.KeyDataSecret = "***"
	}
	return json.Marshal(masked)
}
