// Package testutil builds isolated application fixtures for service and handler tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/cache"
	"github.com/oggyb/kinnect/internal/config"
	"github.com/oggyb/kinnect/internal/db"
	applog "github.com/oggyb/kinnect/internal/logger"
)

// Clock is a settable clock shared by the fixture's AppContext.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Fixture bundles a migrated sqlite DB, a miniredis instance and the AppContext built on them.
type Fixture struct {
	App   *app.AppContext
	DB    *gorm.DB
	Redis *miniredis.Miniredis
	Clock *Clock
}

// NewDB opens a fresh sqlite database in t's temp dir and migrates every model.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_journal_mode=WAL"
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        db.Now,
		TranslateError: true,
	})
	require.NoError(t, err, "failed to open sqlite")
	require.NoError(t, db.Migrate(database))

	sqlDB, err := database.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return database
}

// Config returns a configuration with deterministic secrets and the default TTLs.
func Config() *config.Config {
	cfg := config.New()
	cfg.App.ENV = "test"
	cfg.App.AdminPhones = []string{"+10000000001"}
	cfg.Auth.Issuer = "kinnect-test"
	cfg.Auth.AccessSecret = "test-access"
	cfg.Auth.RefreshSecret = "test-refresh"
	cfg.Auth.AccessTTL = 15 * time.Minute
	cfg.Auth.RefreshTTL = 24 * time.Hour
	cfg.OTP.StaticCode = "123456"
	cfg.OTP.TTL = 5 * time.Minute
	cfg.OTP.Cooldown = 60 * time.Second
	cfg.Requests.TTL = 7 * 24 * time.Hour
	return cfg
}

// New builds a Fixture. Extra options are applied after the fixture clock.
func New(t testing.TB, opts ...app.Option) *Fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	cfg := Config()
	cfg.Redis.Addr = mr.Addr()

	rdb := cache.NewRedisCache(cfg)
	t.Cleanup(func() { _ = rdb.Close() })

	database := NewDB(t)
	clock := &Clock{now: time.Now().UTC().Truncate(time.Millisecond)}

	all := append([]app.Option{app.WithClock(clock.Now)}, opts...)
	appCtx := app.New(cfg, database, rdb, applog.Discard(), all...)

	return &Fixture{App: appCtx, DB: database, Redis: mr, Clock: clock}
}

// User inserts a verified, active user with a unique phone.
func (f *Fixture) User(t testing.TB, name string) *db.User {
	t.Helper()
	u := &db.User{Name: name}
	u.CountryCode = "+1"
	u.Phone = nextPhone()
	u.IsVerified = true
	u.IsActive = true
	require.NoError(t, f.DB.Create(u).Error)
	return u
}

// Deactivate flips is_active off for a user. Create cannot do it because the column defaults to true.
func (f *Fixture) Deactivate(t testing.TB, userID string) {
	t.Helper()
	require.NoError(t, f.DB.Model(&db.User{}).Where("id = ?", userID).Update("is_active", false).Error)
}

// Follow inserts the follower -> followee edge directly.
func (f *Fixture) Follow(t testing.TB, followerID, followeeID string) {
	t.Helper()
	require.NoError(t, f.DB.Create(&db.Follow{FollowerID: followerID, FolloweeID: followeeID}).Error)
}

// Mutual makes a and b follow each other.
func (f *Fixture) Mutual(t testing.TB, a, b string) {
	t.Helper()
	f.Follow(t, a, b)
	f.Follow(t, b, a)
}

// Ctx returns a context bound to the test's lifetime.
func Ctx(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

var (
	phoneMu  sync.Mutex
	phoneSeq = 5550000000
)

func nextPhone() string {
	phoneMu.Lock()
	defer phoneMu.Unlock()
	phoneSeq++
	return fmt.Sprintf("%d", phoneSeq)
}
