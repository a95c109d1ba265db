package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	BaseURL            string        `mapstructure:"BASE_URL"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	CallStoreBaseURL   string        `mapstructure:"CALLSTORE_BASE_URL"`
	CallStoreAPIKey    string        `mapstructure:"CALLSTORE_API_KEY"`
	CallStoreAPISecret string        `mapstructure:"CALLSTORE_API_SECRET"`
	MailAPIURL         string        `mapstructure:"MAIL_API_URL"`
	MailServerToken    string        `mapstructure:"MAIL_SERVER_TOKEN"`
	MailFrom           string        `mapstructure:"MAIL_FROM"`
	MailFromName       string        `mapstructure:"MAIL_FROM_NAME"`
	AuthSecret         string        `mapstructure:"AUTH_SECRET"`
	RefreshCalls       time.Duration `mapstructure:"REFRESH_CALLS"`
	RefreshRecordings  time.Duration `mapstructure:"REFRESH_RECORDINGS"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("BASE_URL", "http://localhost:3000")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MAIL_FROM_NAME", "TeleMed MedPark Hospital")
	v.SetDefault("REFRESH_CALLS", "30s")
	v.SetDefault("REFRESH_RECORDINGS", "60s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("BASE_URL")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CALLSTORE_BASE_URL")
	v.BindEnv("CALLSTORE_API_KEY")
	v.BindEnv("CALLSTORE_API_SECRET")
	v.BindEnv("MAIL_API_URL")
	v.BindEnv("MAIL_SERVER_TOKEN")
	v.BindEnv("MAIL_FROM")
	v.BindEnv("MAIL_FROM_NAME")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("REFRESH_CALLS")
	v.BindEnv("REFRESH_RECORDINGS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CallStoreBaseURL == "" {
		return nil, fmt.Errorf("CALLSTORE_BASE_URL is required")
	}
	if cfg.CallStoreAPIKey == "" || cfg.CallStoreAPISecret == "" {
		return nil, fmt.Errorf("CALLSTORE_API_KEY and CALLSTORE_API_SECRET are required")
	}
	if !cfg.IsDev() && cfg.AuthSecret == "" {
		return nil, fmt.Errorf("AUTH_SECRET is required outside development mode")
	}
	if cfg.RefreshCalls < time.Second {
		return nil, fmt.Errorf("REFRESH_CALLS must be at least 1s, got %s", cfg.RefreshCalls)
	}
	if cfg.RefreshRecordings < time.Second {
		return nil, fmt.Errorf("REFRESH_RECORDINGS must be at least 1s, got %s", cfg.RefreshRecordings)
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: Dev auth is active: unauthenticated requests get a fixed identity.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure AUTH_SECRET for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
