package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// DefaultJWTSecret is only acceptable in the dev environment.
const DefaultJWTSecret = "jwt-secret-key-change-in-production"

// Config holds the application configuration.
type Config struct {
	Env                string        `mapstructure:"APP_ENV"`
	Port               string        `mapstructure:"PORT"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	JWTSecret          string        `mapstructure:"JWT_SECRET"`
	AccessTokenTTL     time.Duration `mapstructure:"JWT_ACCESS_TOKEN_EXPIRES"`
	MaxLoginAttempts   int           `mapstructure:"MAX_LOGIN_ATTEMPTS"`
	LoginBlockSeconds  int           `mapstructure:"LOGIN_BLOCK_TIME"`
	MaxUsersPerRoom    int           `mapstructure:"MAX_USERS_PER_ROOM"`
	MaxRoomsPerUser    int           `mapstructure:"MAX_ROOMS_PER_USER"`
	RateLimitRPS       float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `mapstructure:"RATE_LIMIT_BURST"`
	CORSAllowedOrigins string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	TrustedProxyList   string        `mapstructure:"TRUSTED_PROXIES"`
}

// LoginBlockWindow is the trailing interval over which failed logins are counted.
func (c *Config) LoginBlockWindow() time.Duration {
	return time.Duration(c.LoginBlockSeconds) * time.Second
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// TrustedProxies lists the IPs and CIDRs allowed to set X-Forwarded-For.
// It is nil unless TRUSTED_PROXIES is set, in which case the client IP is
// always the connection's remote address.
func (c *Config) TrustedProxies() []string {
	return splitList(c.TrustedProxyList)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("PORT", "5000")
	v.SetDefault("DATABASE_URL", "sqlite://chat.db")
	v.SetDefault("JWT_SECRET", DefaultJWTSecret)
	v.SetDefault("JWT_ACCESS_TOKEN_EXPIRES", 30*24*time.Hour)
	v.SetDefault("MAX_LOGIN_ATTEMPTS", 5)
	v.SetDefault("LOGIN_BLOCK_TIME", 900)
	v.SetDefault("MAX_USERS_PER_ROOM", 100)
	v.SetDefault("MAX_ROOMS_PER_USER", 50)
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("TRUSTED_PROXIES", "")
}

// Load reads the configuration from an optional .env file in dir and from
// environment variables. Environment variables take precedence.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Debug().Msg(".env file not found, loading from environment variables")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that cannot serve traffic safely.
func Validate(cfg *Config) error {
	if cfg.Port == "" {
		return errors.New("PORT is required")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if cfg.Env != "dev" && cfg.JWTSecret == DefaultJWTSecret {
		return errors.New("JWT_SECRET must be changed outside the dev environment")
	}
	if cfg.AccessTokenTTL <= 0 {
		return errors.New("JWT_ACCESS_TOKEN_EXPIRES must be positive")
	}
	if cfg.MaxLoginAttempts <= 0 || cfg.LoginBlockSeconds <= 0 {
		return errors.New("login throttle settings must be positive")
	}
	if cfg.MaxUsersPerRoom <= 0 || cfg.MaxRoomsPerUser <= 0 {
		return errors.New("room limits must be positive")
	}
	for _, p := range cfg.TrustedProxies() {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return fmt.Errorf("TRUSTED_PROXIES: invalid address %q", p)
			}
		}
	}
	return nil
}
