package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/cache"
	"github.com/oggyb/kinnect/internal/config"
	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/events"
	"github.com/oggyb/kinnect/internal/logger"
	"github.com/oggyb/kinnect/internal/server"
	"github.com/oggyb/kinnect/internal/service/admin"
	"github.com/oggyb/kinnect/internal/service/auth"
	"github.com/oggyb/kinnect/internal/service/call"
	"github.com/oggyb/kinnect/internal/service/chat"
	"github.com/oggyb/kinnect/internal/service/message"
	"github.com/oggyb/kinnect/internal/service/messagerequest"
	"github.com/oggyb/kinnect/internal/service/profile"
	"github.com/oggyb/kinnect/internal/service/report"
	"github.com/oggyb/kinnect/internal/service/social"
	"github.com/oggyb/kinnect/internal/storage"
	"github.com/oggyb/kinnect/internal/sweeper"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}
	defer redisCache.Close()

	var opts []app.Option
	if cfg.NATS.URL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, cfg.Log.Component)
		if err != nil {
			log.Error("failed to connect to nats", "err", err)
			os.Exit(1)
		}
		defer pub.Close()
		opts = append(opts, app.WithEvents(pub))
	} else {
		log.Info("NATS_URL not set, domain events are dropped")
	}
	if cfg.StorageEnabled() {
		up, err := storage.NewS3Uploader(ctx, cfg)
		if err != nil {
			log.Error("failed to init object storage", "err", err)
			os.Exit(1)
		}
		opts = append(opts, app.WithUploader(up))
	} else {
		log.Info("object storage not configured, uploads are disabled")
	}

	appCtx := app.New(cfg, database, redisCache, log, opts...)

	registrars := []server.Registrar{
		auth.NewRegistrar(appCtx),
		profile.NewRegistrar(appCtx),
		social.NewRegistrar(appCtx),
		report.NewRegistrar(appCtx),
		admin.NewRegistrar(appCtx),
		chat.NewRegistrar(appCtx),
		message.NewRegistrar(appCtx),
		messagerequest.NewRegistrar(appCtx),
		call.NewRegistrar(appCtx),
	}

	sw := sweeper.New(appCtx)
	if err := sw.Start(cfg.Requests.SweepSpec); err != nil {
		log.Error("failed to schedule sweeper", "spec", cfg.Requests.SweepSpec, "err", err)
		os.Exit(1)
	}

	health := server.NewHealthRegistrar(appCtx)
	grpcServer := server.NewGRPCServer(appCtx, health)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.StartHTTPServer(gctx, appCtx, server.NewRouter(appCtx, registrars...))
	})
	g.Go(func() error {
		return server.StartGRPCServer(gctx, appCtx, grpcServer)
	})
	g.Go(func() error {
		health.Watch(gctx)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server stopped with error", "err", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sw.Stop(stopCtx)
	log.Info("shutdown complete")
}
