package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`

	InferenceBackend     string        `mapstructure:"INFERENCE_BACKEND"`
	InferenceURL         string        `mapstructure:"INFERENCE_URL"`
	InferenceTimeout     time.Duration `mapstructure:"INFERENCE_TIMEOUT"`
	InferenceMaxTokens   int           `mapstructure:"INFERENCE_MAX_TOKENS"`
	InferenceTemperature float64       `mapstructure:"INFERENCE_TEMPERATURE"`
	InferenceTopP        float64       `mapstructure:"INFERENCE_TOP_P"`
	GeminiAPIKey         string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel          string        `mapstructure:"GEMINI_MODEL"`

	CatalogPath    string        `mapstructure:"CATALOG_PATH"`
	SessionTTL     time.Duration `mapstructure:"SESSION_TTL"`
	SessionMax     int           `mapstructure:"SESSION_MAX"`
	AnswerCacheTTL time.Duration `mapstructure:"ANSWER_CACHE_TTL"`
}

var defaults = map[string]interface{}{
	"PORT":                  "8080",
	"ENV":                   "development",
	"LOG_LEVEL":             "info",
	"DB_MAX_CONNS":          20,
	"DB_MIN_CONNS":          5,
	"CORS_ORIGINS":          "http://localhost:3000",
	"RATE_LIMIT_RPS":        20,
	"RATE_LIMIT_BURST":      40,
	"REQUEST_TIMEOUT":       "30s",
	"BODY_LIMIT":            "64K",
	"INFERENCE_BACKEND":     "http",
	"INFERENCE_URL":         "http://localhost:8000",
	"INFERENCE_TIMEOUT":     "120s",
	"INFERENCE_MAX_TOKENS":  768,
	"INFERENCE_TEMPERATURE": 0.3,
	"INFERENCE_TOP_P":       0.7,
	"GEMINI_MODEL":          "gemini-2.0-flash",
	"SESSION_TTL":           "30m",
	"SESSION_MAX":           1000,
	"ANSWER_CACHE_TTL":      "1h",
}

var keys = []string{
	"DATABASE_URL", "REDIS_URL",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"GEMINI_API_KEY", "CATALOG_PATH",
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
		v.BindEnv(k)
	}
	for _, k := range keys {
		v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks the settings needed by the server.
func (c *Config) Validate() error {
	switch c.InferenceBackend {
	case "http":
		if c.InferenceURL == "" {
			return fmt.Errorf("INFERENCE_URL is required for the http backend")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when INFERENCE_BACKEND is \"gemini\"")
		}
	default:
		return fmt.Errorf("INFERENCE_BACKEND must be \"http\" or \"gemini\", got %q", c.InferenceBackend)
	}

	if c.InferenceTemperature < 0 || c.InferenceTemperature > 2 {
		return fmt.Errorf("INFERENCE_TEMPERATURE must be between 0 and 2, got %v", c.InferenceTemperature)
	}
	if c.InferenceTopP < 0 || c.InferenceTopP > 1 {
		return fmt.Errorf("INFERENCE_TOP_P must be between 0 and 1, got %v", c.InferenceTopP)
	}
	if c.InferenceMaxTokens <= 0 {
		return fmt.Errorf("INFERENCE_MAX_TOKENS must be positive, got %d", c.InferenceMaxTokens)
	}

	if !c.IsDev() && c.AuthIssuer == "" && c.AuthSigningKey == "" && c.AuthJWKSURL == "" {
		return fmt.Errorf(
			"AUTH_ISSUER, AUTH_JWKS_URL or AUTH_SIGNING_KEY must be set outside development (current ENV=%q)", c.Env)
	}
	if c.SessionMax <= 0 {
		return fmt.Errorf("SESSION_MAX must be positive, got %d", c.SessionMax)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	return nil
}

// RequireDatabase reports a missing DATABASE_URL for commands that need it.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}
