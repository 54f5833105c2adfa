package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oggyb/pulse/internal/app"
	"github.com/oggyb/pulse/internal/auth"
	"github.com/oggyb/pulse/internal/bot"
	"github.com/oggyb/pulse/internal/cache"
	"github.com/oggyb/pulse/internal/config"
	"github.com/oggyb/pulse/internal/db"
	"github.com/oggyb/pulse/internal/grpcapi"
	"github.com/oggyb/pulse/internal/httpapi"
	"github.com/oggyb/pulse/internal/jobs"
	"github.com/oggyb/pulse/internal/llm"
	"github.com/oggyb/pulse/internal/logger"
	"github.com/oggyb/pulse/internal/notify"
	"github.com/oggyb/pulse/internal/server"
	"github.com/oggyb/pulse/internal/service/admin"
	"github.com/oggyb/pulse/internal/service/assistant"
	"github.com/oggyb/pulse/internal/service/billing"
	"github.com/oggyb/pulse/internal/service/dates"
	"github.com/oggyb/pulse/internal/service/identity"
	"github.com/oggyb/pulse/internal/service/love"
	"github.com/oggyb/pulse/internal/service/pairing"
	"github.com/oggyb/pulse/internal/service/streak"
	"github.com/oggyb/pulse/internal/service/wishes"
)

const shutdownGrace = 15 * time.Second

// noBot stands in for the invoice linker when no bot token is configured.
type noBot struct{}

func (noBot) CreateInvoiceLink(context.Context, billing.Invoice) (string, error) {
	return "", errors.New("telegram bot is not configured")
}

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg, log)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}
	if err := db.SeedCatalog(database); err != nil {
		log.Error("failed to seed wish catalog", "err", err)
		os.Exit(1)
	}
	if cfg.IsDevelopment() {
		if err := db.SeedPromoCodes(database); err != nil {
			log.Error("failed to seed promo codes", "err", err)
		}
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}
	defer redisCache.Close()

	appCtx := app.New(database, redisCache, log, cfg.Location())

	// Telegram: notifications, invoice links and the update loop share one client.
	var (
		notifier notify.Notifier       = notify.NewLog(log)
		linker   billing.InvoiceLinker = noBot{}
		botAPI   *tgbotapi.BotAPI
	)
	if cfg.Telegram.BotToken != "" {
		botAPI, err = tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			log.Error("failed to init telegram bot", "err", err)
			os.Exit(1)
		}
		if cfg.App.BotUsername == "" {
			cfg.App.BotUsername = botAPI.Self.UserName
		}
		notifier = bot.NewNotifier(botAPI, cfg.App.WebAppURL)
		linker = bot.NewInvoiceLinker(botAPI)
	} else {
		log.Warn("BOT_TOKEN not set: notifications are logged and invoices are unavailable")
	}

	var chat llm.Client = &llm.Mock{}
	if cfg.AI.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.AI.GeminiAPIKey, cfg.AI.Model, cfg.AI.Timeout)
		if err != nil {
			log.Error("failed to init gemini", "err", err)
			os.Exit(1)
		}
		defer gemini.Close()
		chat = gemini
	} else {
		log.Warn("GEMINI_API_KEY not set: assistant answers with canned replies")
	}

	// Services
	resolver := identity.NewResolver(appCtx)
	registry := pairing.NewRegistry(appCtx, pairing.WithNotifier(notifier))
	loveSvc := love.NewService(appCtx, registry, streak.NewTracker(appCtx), notifier)
	datesSvc := dates.NewService(appCtx, notifier)
	billingSvc := billing.NewService(appCtx, linker, notifier)

	router := httpapi.NewRouter(httpapi.Deps{
		Sessions:  auth.NewJWT(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL, nil),
		Verifier:  identity.NewVerifier(cfg, nil),
		Resolver:  resolver,
		Pairs:     registry,
		Love:      loveSvc,
		Wishes:    wishes.NewService(appCtx, registry),
		Dates:     datesSvc,
		Billing:   billingSvc,
		Assistant: assistant.NewService(appCtx, chat),
		Admin:     admin.NewService(appCtx, cfg.Auth.AdminKeyHash),
		Logger:    log,

		BotUsername:      cfg.App.BotUsername,
		DevHeader:        cfg.Auth.DevHeader,
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		AllowCredentials: cfg.HTTP.AllowCredentials,
	})
	httpServer := server.NewHTTPServer(cfg, router.Handler(), log)

	registrars := []server.Registrar{
		grpcapi.NewRegistrar(grpcapi.NewService(appCtx, registry, loveSvc, billingSvc)),
	}
	grpcServer := server.NewGRPCServer(cfg, log, registrars...)

	var wg sync.WaitGroup
	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				log.Error(name+" stopped with error", "err", err)
				stop()
			}
		}()
	}

	run("http server", httpServer.Start)
	run("grpc server", grpcServer.Start)

	if cfg.Reminders.Enabled {
		worker := jobs.NewReminderWorker(appCtx, datesSvc, notifier, cfg.Reminders.Hour, cfg.Reminders.Interval)
		run("reminder worker", func() error { worker.Run(ctx); return nil })
	}

	if botAPI != nil && cfg.Telegram.Polling {
		b := bot.New(botAPI, resolver, registry, billingSvc,
			bot.Options{WebAppURL: cfg.App.WebAppURL, BotUsername: cfg.App.BotUsername}, log)
		run("telegram bot", func() error { b.Run(ctx, botAPI); return nil })
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	grpcServer.Stop(shutdownCtx)

	wg.Wait()
	log.Info("bye", slog.String("env", cfg.App.Env))
}
