package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env       string
	LogLevel  string
	LogFormat string

	APIHost string
	APIPort string

	DBDriver       string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSslMode      string
	DBTable        string
	DBMaxOpenConns int

	AdminUsername string
	AdminPassword string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	WSAllowedOrigins []string
	WSMaxMessageSize int64

	ShutdownGrace time.Duration
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Load reads a .env file when present, then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	return &Config{
		Env:       getEnv("ENV", "dev"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		APIHost: getEnv("API_HOST", "localhost"),
		APIPort: getEnv("API_PORT", "8000"),

		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "fastapi_example"),
		DBPassword:     getEnv("DB_PASSWORD", "password"),
		DBName:         getEnv("DB_NAME", "postgres"),
		DBSslMode:      getEnv("DB_SSLMODE", "disable"),
		DBTable:        getEnv("DB_TABLE", "users"),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "some_password"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		CacheTTL:      time.Duration(getEnvAsInt("CACHE_TTL_SECONDS", 300)) * time.Second,

		WSAllowedOrigins: getEnvAsList("WS_ALLOWED_ORIGINS"),
		WSMaxMessageSize: int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", 64*1024)),

		ShutdownGrace: time.Duration(getEnvAsInt("SHUTDOWN_GRACE_SECONDS", 15)) * time.Second,
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.AdminUsername == "" || c.AdminPassword == "" {
		errs = append(errs, errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set"))
	}
	if !tableNamePattern.MatchString(c.DBTable) {
		errs = append(errs, fmt.Errorf("DB_TABLE %q is not a valid SQL identifier", c.DBTable))
	}
	if c.DBDriver != DriverPostgres && c.DBDriver != DriverSQLite {
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not supported (want %s or %s)", c.DBDriver, DriverPostgres, DriverSQLite))
	}
	if port, err := strconv.Atoi(c.APIPort); err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("API_PORT %q is not a valid port", c.APIPort))
	}
	if c.DBMaxOpenConns <= 0 {
		errs = append(errs, errors.New("DB_MAX_OPEN_CONNS must be positive"))
	}
	return errors.Join(errs...)
}

// ListenAddr is the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.APIHost, c.APIPort)
}

// DSN builds the driver-specific data source name. PostgreSQL gets a
// postgres:// URL so credentials with spaces or quotes survive escaping.
func (c *Config) DSN() string {
	if c.DBDriver == DriverSQLite {
		return c.DBName
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSslMode}}.Encode(),
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
