package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/oggyb/pulse/internal/config"
	"github.com/oggyb/pulse/internal/db"
	"github.com/oggyb/pulse/internal/logger"
	"github.com/oggyb/pulse/internal/service/admin"
	"github.com/oggyb/pulse/internal/service/identity"
)

func main() {
	hashKey := flag.String("hash-admin-key", "", "print the ADMIN_KEY_HASH for this key and exit")
	initDataFor := flag.Int64("init-data", 0, "print signed initData for this Telegram user id and exit")
	flag.Parse()

	// Load configuration
	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.L()

	switch {
	case *hashKey != "":
		hash, err := admin.HashKey(*hashKey)
		if err != nil {
			log.Error("failed to hash admin key", "err", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return

	case *initDataFor != 0:
		if cfg.Telegram.BotToken == "" {
			log.Error("BOT_TOKEN is required to sign initData")
			os.Exit(1)
		}
		raw, err := identity.SignInitData(cfg.Telegram.BotToken,
			identity.Profile{ID: *initDataFor, FirstName: "Dev", LanguageCode: "ru"}, time.Now())
		if err != nil {
			log.Error("failed to sign initData", "err", err)
			os.Exit(1)
		}
		fmt.Println(raw)
		return
	}

	database, err := db.NewDB(cfg, log)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	if err := db.Seed(database, log); err != nil {
		log.Error("failed to seed", "err", err)
		os.Exit(1)
	}

	log.Info("seeding completed")
}
