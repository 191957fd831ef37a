package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without a zoneinfo database

	"github.com/joho/godotenv"
)

// Driver names returned by DatabaseConfig.Driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Admin    AdminConfig
	Log      LogConfig
	Survey   SurveyConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
	GinMode        string
	// TrustedProxies are the IPs or CIDRs allowed to set X-Forwarded-For.
	// Empty means client IP is always the TCP peer address.
	TrustedProxies []string
}

// DatabaseConfig selects and configures the relational backend.
type DatabaseConfig struct {
	URL        string // postgres://... or sqlite://path; empty falls back to SQLitePath
	SQLitePath string
	MaxConns   int
}

// RedisConfig holds Redis connection settings. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AdminConfig holds the operator-supplied admin credential and admin page settings.
type AdminConfig struct {
	Username      string
	Password      string
	PasswordHash  string // bcrypt; takes precedence over Password when set
	RecentLimit   int
	MaxFailures   int
	FailureWindow time.Duration
}

// LogConfig holds zap logger settings.
type LogConfig struct {
	Level  string
	Format string
}

// SurveyConfig holds submission settings.
type SurveyConfig struct {
	TimezoneName string
	Location     *time.Location
}

// Configured reports whether both halves of the admin credential are present.
func (c AdminConfig) Configured() bool {
	return c.Username != "" && (c.Password != "" || c.PasswordHash != "")
}

// Driver returns DriverPostgres or DriverSQLite depending on the URL scheme, or "" when
// the scheme names neither. A bare path or file: URI is SQLite.
func (c DatabaseConfig) Driver() string {
	u := strings.ToLower(c.URL)
	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return DriverPostgres
	case u == "", strings.HasPrefix(u, "sqlite:"), strings.HasPrefix(u, "file:"), !strings.Contains(u, "://"):
		return DriverSQLite
	}
	return ""
}

// DSN returns the connection string for the selected driver.
// For SQLite the sqlite:// prefix is stripped so the remainder is a file path or file: URI.
func (c DatabaseConfig) DSN() string {
	if c.Driver() == DriverPostgres {
		return c.URL
	}
	if c.URL == "" {
		return c.SQLitePath
	}
	for _, prefix := range []string{"sqlite:///", "sqlite://"} {
		if strings.HasPrefix(c.URL, prefix) {
			return strings.TrimPrefix(c.URL, prefix)
		}
	}
	return c.URL
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, err := getEnvInt("READ_TIMEOUT_SEC", 15)
	if err != nil {
		return nil, err
	}
	writeTimeout, err := getEnvInt("WRITE_TIMEOUT_SEC", 15)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := getEnvInt("REQUEST_TIMEOUT_SEC", 10)
	if err != nil {
		return nil, err
	}
	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	recentLimit, err := getEnvInt("ADMIN_RECENT_LIMIT", 20)
	if err != nil {
		return nil, err
	}
	maxFailures, err := getEnvInt("ADMIN_MAX_FAILURES", 10)
	if err != nil {
		return nil, err
	}
	failureWindow, err := getEnvInt("ADMIN_FAILURE_WINDOW_SEC", 900)
	if err != nil {
		return nil, err
	}

	tzName := getEnv("TIMEZONE", "Asia/Taipei")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("load TIMEZONE %q: %w", tzName, err)
	}
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if (DatabaseConfig{URL: dbURL}).Driver() == "" {
		scheme, _, _ := strings.Cut(dbURL, "://")
		return nil, fmt.Errorf("DATABASE_URL: unsupported scheme %q, want postgres:// or sqlite://", scheme)
	}
	proxies, err := getEnvList("TRUSTED_PROXIES")
	if err != nil {
		return nil, err
	}
	if recentLimit < 1 {
		return nil, fmt.Errorf("ADMIN_RECENT_LIMIT must be at least 1, got %d", recentLimit)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			ReadTimeout:    readTimeout,
			WriteTimeout:   writeTimeout,
			RequestTimeout: requestTimeout,
			GinMode:        getEnv("GIN_MODE", "release"),
			TrustedProxies: proxies,
		},
		Database: DatabaseConfig{
			URL:        dbURL,
			SQLitePath: getEnv("SQLITE_PATH", "./data.db"),
			MaxConns:   maxConns,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Admin: AdminConfig{
			Username:      os.Getenv("ADMIN_USER"),
			Password:      os.Getenv("ADMIN_PASS"),
			PasswordHash:  os.Getenv("ADMIN_PASSWORD_HASH"),
			RecentLimit:   recentLimit,
			MaxFailures:   maxFailures,
			FailureWindow: time.Duration(failureWindow) * time.Second,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Survey: SurveyConfig{
			TimezoneName: tzName,
			Location:     loc,
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

// getEnvList reads a comma-separated list of IPs or CIDRs.
func getEnvList(key string) ([]string, error) {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, _, err := net.ParseCIDR(item); err != nil && net.ParseIP(item) == nil {
			return nil, fmt.Errorf("invalid %s entry %q: want an IP or CIDR", key, item)
		}
		out = append(out, item)
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
