package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App struct {
		ENV         string
		AdminPhones []string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		Driver   string
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		LogLevel string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	HTTP struct {
		Host           string
		Port           string
		AllowedOrigins []string
	}

	GRPC struct {
		Host string
		Port string
	}

	Auth struct {
		Issuer        string
		AccessSecret  string
		RefreshSecret string
		AccessTTL     time.Duration
		RefreshTTL    time.Duration
	}

	OTP struct {
		StaticCode string
		TTL        time.Duration
		Cooldown   time.Duration
		PerMinute  int
	}

	Requests struct {
		TTL       time.Duration
		SweepSpec string
	}

	Storage struct {
		Bucket        string
		Region        string
		Endpoint      string
		AccessKey     string
		SecretKey     string
		PublicBaseURL string
	}

	NATS struct {
		URL           string
		SubjectPrefix string
	}
}

func New() *Config {
	cfg := &Config{}

	// App
	cfg.App.ENV = getEnvDefault("APP_ENV", "development")
	cfg.App.AdminPhones = splitList(os.Getenv("ADMIN_PHONES"))

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "kinnect_api")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.Driver = strings.ToLower(getEnvDefault("DB_DRIVER", "mysql"))
	cfg.DB.LogLevel = getEnvDefault("DB_LOG_LEVEL", "warn")
	cfg.DB.DSN = os.Getenv("DB_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	}
	if cfg.DB.DSN == "" {
		switch cfg.DB.Driver {
		case "sqlite":
			cfg.DB.DSN = getEnvDefault("SQLITE_PATH", "kinnect.db")
		default:
			cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
			cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
			cfg.DB.User = getEnvDefault("DB_USER", "root")
			cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
			cfg.DB.Name = getEnvDefault("DB_NAME", "kinnect")

			cfg.DB.DSN = fmt.Sprintf(
				"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
				cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
			)
		}
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	if dbStr := getEnvDefault("REDIS_DB", "0"); dbStr != "" {
		if dbInt, err := strconv.Atoi(dbStr); err == nil {
			cfg.Redis.DB = dbInt
		}
	}

	// HTTP
	cfg.HTTP.Host = getEnvDefault("HTTP_HOST", "0.0.0.0")
	cfg.HTTP.Port = getEnvDefault("HTTP_PORT", "8080")
	cfg.HTTP.AllowedOrigins = splitList(getEnvDefault("HTTP_ALLOWED_ORIGINS", "*"))

	// gRPC (health + reflection)
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", "127.0.0.1")
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", "50051")

	// Auth
	cfg.Auth.Issuer = getEnvDefault("JWT_ISSUER", "kinnect")
	cfg.Auth.AccessSecret = getEnvDefault("JWT_ACCESS_SECRET", "dev-access-secret")
	cfg.Auth.RefreshSecret = getEnvDefault("JWT_REFRESH_SECRET", "dev-refresh-secret")
	cfg.Auth.AccessTTL = getDurationDefault("JWT_ACCESS_TTL", 15*time.Minute)
	cfg.Auth.RefreshTTL = getDurationDefault("JWT_REFRESH_TTL", 30*24*time.Hour)

	// OTP (SMS delivery is mocked, the code is static)
	cfg.OTP.StaticCode = getEnvDefault("OTP_STATIC_CODE", "123456")
	cfg.OTP.TTL = getDurationDefault("OTP_TTL", 5*time.Minute)
	cfg.OTP.Cooldown = getDurationDefault("OTP_COOLDOWN", 60*time.Second)
	cfg.OTP.PerMinute = getIntDefault("OTP_RATE_PER_MINUTE", 10)

	// Follow / message requests
	cfg.Requests.TTL = getDurationDefault("REQUEST_TTL", 7*24*time.Hour)
	cfg.Requests.SweepSpec = getEnvDefault("REQUEST_SWEEP_SPEC", "@every 10m")

	// Object storage (S3 / R2 / MinIO)
	cfg.Storage.Bucket = os.Getenv("STORAGE_BUCKET")
	cfg.Storage.Region = getEnvDefault("STORAGE_REGION", "auto")
	cfg.Storage.Endpoint = strings.TrimSuffix(os.Getenv("STORAGE_ENDPOINT"), "/")
	cfg.Storage.AccessKey = os.Getenv("STORAGE_ACCESS_KEY")
	cfg.Storage.SecretKey = os.Getenv("STORAGE_SECRET_KEY")
	cfg.Storage.PublicBaseURL = strings.TrimSuffix(os.Getenv("STORAGE_PUBLIC_BASE_URL"), "/")

	// NATS
	cfg.NATS.URL = os.Getenv("NATS_URL")
	cfg.NATS.SubjectPrefix = getEnvDefault("NATS_SUBJECT_PREFIX", "kinnect")

	return cfg
}

// StorageEnabled reports whether enough storage settings are present to build an S3 client.
func (c *Config) StorageEnabled() bool {
	return c.Storage.Bucket != "" && c.Storage.AccessKey != "" && c.Storage.SecretKey != ""
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getDurationDefault(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getIntDefault(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
