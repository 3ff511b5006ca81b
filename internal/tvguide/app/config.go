package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/domain"
	"github.com/aussiebroadwan/tvguide/pkg/httpx"
	"github.com/spf13/viper"
)

const minSecretLength = 32

var ErrMissingSecret = errors.New("config: JWT_SECRET_KEY is required")

type Config struct {
	JWTSecret      string        // Required: HMAC signing secret
	JWTAlgorithm   string        // HS256, HS384 or HS512 (default: HS256)
	AccessTokenTTL time.Duration // Access token lifetime (default: 30m)
	Issuer         string        // iss claim written and checked on tokens (default: tvguide)

	DefaultRole          domain.Role // Role given to accounts registered without one (default: user)
	OpenRoleRegistration bool        // Let anonymous callers register admins (default: false)
	PepperFile           string      // Path to the password pepper, created if missing (default: ./pepper)
	BootstrapToken       string      // Optional: enables POST /bootstrap

	DatabaseURL string // postgres:// URL or sqlite path (default: sqlite:tvguide.db)
	RedisURL    string // Optional: share rate limits through redis

	RateLimitStrict   httpx.RateLimitConfig
	RateLimitModerate httpx.RateLimitConfig
	RateLimitLenient  httpx.RateLimitConfig
	TrustedProxies    httpx.ProxyTrust // Peers whose X-Forwarded-For is believed (default: none)

	Env                 string        // Environment (development, production) (default: production)
	LogLevel            string        // debug, info, warn, error (default: info)
	LogFormat           string        // json, text (default: by environment)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
	StatsInterval       time.Duration // How often user counts are refreshed (default: 1m)
}

// envBindings maps config keys to the environment variables that may set
// them, in order of precedence.
var envBindings = map[string][]string{
	"jwt.secret_key":               {"JWT_SECRET_KEY"},
	"jwt.algorithm":                {"JWT_ALGORITHM"},
	"jwt.access_token_ttl":         {"JWT_ACCESS_TOKEN_TTL", "JWT_ACCESS_TOKEN_EXPIRE_MINUTES"},
	"jwt.issuer":                   {"JWT_ISSUER"},
	"auth.default_role":            {"AUTH_DEFAULT_ROLE"},
	"auth.open_role_registration":  {"AUTH_OPEN_ROLE_REGISTRATION"},
	"auth.pepper_file":             {"AUTH_PEPPER_FILE"},
	"auth.bootstrap_token":         {"AUTH_BOOTSTRAP_TOKEN"},
	"database.url":                 {"DATABASE_URL"},
	"redis.url":                    {"REDIS_URL"},
	"ratelimit.strict":             {"RATE_LIMIT_STRICT"},
	"ratelimit.moderate":           {"RATE_LIMIT_MODERATE"},
	"ratelimit.lenient":            {"RATE_LIMIT_LENIENT"},
	"ratelimit.trusted_proxies":    {"TRUSTED_PROXIES"},
	"server.port":                  {"PORT"},
	"server.shutdown_grace_period": {"SHUTDOWN_GRACE_PERIOD"},
	"stats.interval":               {"STATS_INTERVAL"},
	"log.level":                    {"LOG_LEVEL"},
	"log.format":                   {"LOG_FORMAT"},
	"env":                          {"ENV"},
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("jwt.algorithm", "HS256")
	v.SetDefault("jwt.access_token_ttl", "30m")
	v.SetDefault("jwt.issuer", "tvguide")
	v.SetDefault("auth.default_role", string(domain.RoleUser))
	v.SetDefault("auth.open_role_registration", false)
	v.SetDefault("auth.pepper_file", "pepper")
	v.SetDefault("database.url", "sqlite:tvguide.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_grace_period", "10s")
	v.SetDefault("stats.interval", "1m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")
	v.SetDefault("env", "production")

	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	return v
}

// LoadConfig reads the environment and an optional ./config.{yaml,json,toml}.
// It only fails on values that cannot be parsed; Validate checks the rest.
func LoadConfig() (Config, error) {
	v := newViper()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read config file: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		JWTSecret:            v.GetString("jwt.secret_key"),
		JWTAlgorithm:         strings.ToUpper(strings.TrimSpace(v.GetString("jwt.algorithm"))),
		Issuer:               v.GetString("jwt.issuer"),
		OpenRoleRegistration: v.GetBool("auth.open_role_registration"),
		PepperFile:           v.GetString("auth.pepper_file"),
		BootstrapToken:       v.GetString("auth.bootstrap_token"),
		DatabaseURL:          v.GetString("database.url"),
		RedisURL:             v.GetString("redis.url"),
		Env:                  v.GetString("env"),
		LogLevel:             v.GetString("log.level"),
		LogFormat:            v.GetString("log.format"),
	}

	var err error
	if cfg.AccessTokenTTL, err = parseDurationOrMinutes(v.GetString("jwt.access_token_ttl")); err != nil {
		return Config{}, fmt.Errorf("config: jwt.access_token_ttl: %w", err)
	}
	if cfg.ShutdownGracePeriod, err = time.ParseDuration(v.GetString("server.shutdown_grace_period")); err != nil {
		return Config{}, fmt.Errorf("config: server.shutdown_grace_period: %w", err)
	}
	if cfg.StatsInterval, err = time.ParseDuration(v.GetString("stats.interval")); err != nil {
		return Config{}, fmt.Errorf("config: stats.interval: %w", err)
	}
	if cfg.Port, err = strconv.Atoi(v.GetString("server.port")); err != nil {
		return Config{}, fmt.Errorf("config: server.port: %w", err)
	}
	if cfg.DefaultRole, err = domain.ParseRole(v.GetString("auth.default_role")); err != nil {
		return Config{}, fmt.Errorf("config: auth.default_role: %w", err)
	}

	if cfg.RateLimitStrict, err = httpx.ParseRateLimit(v.GetString("ratelimit.strict"), httpx.StrictLimit); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitModerate, err = httpx.ParseRateLimit(v.GetString("ratelimit.moderate"), httpx.ModerateLimit); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitLenient, err = httpx.ParseRateLimit(v.GetString("ratelimit.lenient"), httpx.LenientLimit); err != nil {
		return Config{}, err
	}
	if cfg.TrustedProxies, err = httpx.ParseTrustedProxies(v.GetString("ratelimit.trusted_proxies")); err != nil {
		return Config{}, fmt.Errorf("config: ratelimit.trusted_proxies: %w", err)
	}

	return cfg, nil
}

// Validate reports configuration the service must not start with.
func (c Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingSecret)
	}
	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("config: unsupported jwt.algorithm %q", c.JWTAlgorithm))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("config: jwt.access_token_ttl must be positive, got %s", c.AccessTokenTTL))
	}
	if !c.DefaultRole.Valid() {
		errs = append(errs, fmt.Errorf("config: invalid auth.default_role %q", c.DefaultRole))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: server.port %d out of range", c.Port))
	}
	if c.ShutdownGracePeriod < 0 {
		errs = append(errs, errors.New("config: server.shutdown_grace_period must not be negative"))
	}

	return errors.Join(errs...)
}

// WeakSecret reports a secret shorter than the HS256 block size.
func (c Config) WeakSecret() bool {
	return len(c.JWTSecret) < minSecretLength
}

// parseDurationOrMinutes accepts a Go duration ("45m") or bare minutes ("45").
func parseDurationOrMinutes(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if minutes, err := strconv.Atoi(s); err == nil {
		return time.Duration(minutes) * time.Minute, nil
	}
	return time.ParseDuration(s)
}

// databaseTarget picks the store driver for a DATABASE_URL and the DSN to
// hand it.
func databaseTarget(url string) (driver, dsn string) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres", url
	case url == ":memory:", strings.HasPrefix(url, "file:"):
		return "sqlite", url
	default:
		return "sqlite", strings.TrimPrefix(url, "sqlite:")
	}
}
