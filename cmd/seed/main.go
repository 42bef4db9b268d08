package main

import (
	"flag"
	"os"

	"github.com/oggyb/kinnect/internal/config"
	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/logger"
)

func main() {
	var opts db.SeedOptions
	flag.IntVar(&opts.Users, "users", 20, "number of demo users")
	flag.IntVar(&opts.FollowsPerUser, "follows", 3, "users each demo user follows")
	flag.IntVar(&opts.Chats, "chats", 5, "chats to open between mutual followers")
	flag.IntVar(&opts.MessagesPerChat, "messages", 10, "messages per chat")
	flag.StringVar(&opts.AdminCountryCode, "admin-country", "+1", "country code of the ADMIN_PHONES entries to seed")
	flag.BoolVar(&opts.Clear, "clear", false, "empty every table first")
	flag.Parse()

	// Load configuration
	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.L()

	opts.AdminPhones = cfg.App.AdminPhones

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	sum, err := db.SeedTestData(database, opts)
	if err != nil {
		log.Error("failed to seed", "err", err)
		os.Exit(1)
	}

	log.Info("seeding completed",
		"admins", sum.Admins, "users", sum.Users, "follows", sum.Follows, "chats", sum.Chats, "messages", sum.Messages)
}
