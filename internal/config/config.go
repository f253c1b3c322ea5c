// Package config loads the server configuration.
//
// Values come from (highest priority first): environment variables, an
// optional .env file, and the defaults below. The .env file is loaded with
// godotenv into the process environment, and viper reads everything back
// through AutomaticEnv, so both sources share one set of keys.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full server configuration.
type Config struct {
	Port      int
	DBPath    string
	UploadDir string
	StaticDir string

	JWTSecret string
	TokenTTL  time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	PhoneCountryCode string
	OTPTTL           time.Duration

	CatalogSize  int
	CatalogSeed  int64
	FeedPageSize int

	LogLevel slog.Level
}

// GoogleEnabled reports whether Google sign-in has credentials.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func defaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "data/toptuitions.db")
	v.SetDefault("upload_dir", "data/uploads")
	v.SetDefault("static_dir", "web/static")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", 24*time.Hour)
	v.SetDefault("google_client_id", "")
	v.SetDefault("google_client_secret", "")
	v.SetDefault("google_callback_url", "")
	v.SetDefault("phone_country_code", "+91")
	v.SetDefault("otp_ttl", 5*time.Minute)
	v.SetDefault("catalog_size", 1000)
	v.SetDefault("catalog_seed", 1)
	v.SetDefault("feed_page_size", 50)
	v.SetDefault("log_level", "debug")
}

// Load reads the configuration. envFile may be empty; a missing file is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	defaults(v)
	v.SetTypeByDefaultValue(true)
	// DB_PATH, JWT_SECRET, ... map onto the snake_case keys above.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Config{
		Port:               v.GetInt("port"),
		DBPath:             v.GetString("db_path"),
		UploadDir:          v.GetString("upload_dir"),
		StaticDir:          v.GetString("static_dir"),
		JWTSecret:          v.GetString("jwt_secret"),
		TokenTTL:           v.GetDuration("token_ttl"),
		GoogleClientID:     v.GetString("google_client_id"),
		GoogleClientSecret: v.GetString("google_client_secret"),
		GoogleCallbackURL:  v.GetString("google_callback_url"),
		PhoneCountryCode:   v.GetString("phone_country_code"),
		OTPTTL:             v.GetDuration("otp_ttl"),
		CatalogSize:        v.GetInt("catalog_size"),
		CatalogSeed:        v.GetInt64("catalog_seed"),
		FeedPageSize:       v.GetInt("feed_page_size"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return Config{}, fmt.Errorf("config: invalid LOG_LEVEL %q: %w", v.GetString("log_level"), err)
	}
	if cfg.GoogleCallbackURL == "" {
		cfg.GoogleCallbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", cfg.Port)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("config: invalid PORT %d", c.Port)
	case c.CatalogSize < 0:
		return fmt.Errorf("config: CATALOG_SIZE must not be negative")
	case c.FeedPageSize <= 0:
		return fmt.Errorf("config: FEED_PAGE_SIZE must be positive")
	case c.TokenTTL <= 0:
		return fmt.Errorf("config: TOKEN_TTL must be positive")
	case c.OTPTTL <= 0:
		return fmt.Errorf("config: OTP_TTL must be positive")
	}
	return nil
}

// EnvFile returns the .env path to load: $ENV_FILE, or ".env".
func EnvFile() string {
	if f := os.Getenv("ENV_FILE"); f != "" {
		return f
	}
	return ".env"
}
