package app

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/kinnect/internal/cache"
	"github.com/oggyb/kinnect/internal/config"
	"github.com/oggyb/kinnect/internal/events"
	"github.com/oggyb/kinnect/internal/storage"
	"github.com/oggyb/kinnect/internal/token"
)

// AppContext holds shared dependencies (DB, Redis, Logger, etc.)
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Tokens     *token.Issuer
	Events     events.Publisher
	Uploader   storage.Uploader

	// Now is the clock used for OTP and request expiry. Tests replace it.
	Now func() time.Time
}

// New creates a new AppContext. Optional collaborators default to no-op implementations.
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, opts ...Option) *AppContext {
	a := &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Tokens:     token.NewIssuer(cfg),
		Events:     events.Noop{},
		Uploader:   storage.Disabled{},
		Now:        func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Option customizes an AppContext.
type Option func(*AppContext)

func WithEvents(p events.Publisher) Option { return func(a *AppContext) { a.Events = p } }

func WithUploader(u storage.Uploader) Option { return func(a *AppContext) { a.Uploader = u } }

func WithClock(now func() time.Time) Option { return func(a *AppContext) { a.Now = now } }
