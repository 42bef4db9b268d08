package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DB_DSN", "")
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("OTP_TTL", "")
	t.Setenv("OTP_COOLDOWN", "")
	t.Setenv("REQUEST_TTL", "")

	cfg := New()

	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.Contains(t, cfg.DB.DSN, "@tcp(localhost:3306)/kinnect")
	assert.Equal(t, "123456", cfg.OTP.StaticCode)
	assert.Equal(t, 5*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 60*time.Second, cfg.OTP.Cooldown)
	assert.Equal(t, 7*24*time.Hour, cfg.Requests.TTL)
	assert.False(t, cfg.StorageEnabled())
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_DSN", "")
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("SQLITE_PATH", "/tmp/k.db")
	t.Setenv("OTP_COOLDOWN", "2m")
	t.Setenv("JWT_ACCESS_TTL", "not-a-duration")
	t.Setenv("ADMIN_PHONES", " +15550001 , ,+15550002")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("STORAGE_BUCKET", "media")
	t.Setenv("STORAGE_ACCESS_KEY", "ak")
	t.Setenv("STORAGE_SECRET_KEY", "sk")
	t.Setenv("STORAGE_ENDPOINT", "https://r2.example.com/")

	cfg := New()

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "/tmp/k.db", cfg.DB.DSN)
	assert.Equal(t, 2*time.Minute, cfg.OTP.Cooldown)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL, "invalid duration falls back to default")
	assert.Equal(t, []string{"+15550001", "+15550002"}, cfg.App.AdminPhones)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "https://r2.example.com", cfg.Storage.Endpoint)
	assert.True(t, cfg.StorageEnabled())
}
