package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/couponmaster/couponbot/core/bootstrap"
	coreconfig "github.com/couponmaster/couponbot/core/config"
	coredatabase "github.com/couponmaster/couponbot/core/database"
	"github.com/couponmaster/couponbot/core/logger"
	coretelegram "github.com/couponmaster/couponbot/core/telegram"
	"github.com/couponmaster/couponbot/core/telegram/router"
	tgsender "github.com/couponmaster/couponbot/core/telegram/sender"
	"github.com/couponmaster/couponbot/internal/ai"
	"github.com/couponmaster/couponbot/internal/bot"
	"github.com/couponmaster/couponbot/internal/conversation"
	"github.com/couponmaster/couponbot/internal/coupon"
	"github.com/couponmaster/couponbot/internal/reminder"
	"github.com/couponmaster/couponbot/internal/session"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("couponbot: %v", err)
	}
}

func run() error {
	// .env is optional, real deployments use the environment directly.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := coreconfig.Load(cfgPath)
	if err != nil {
		return err
	}

	boot, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg,
		Database: coredatabase.Config(cfg.Database),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown: %v", err)
		}
	}()
	defer boot.DB.Close()

	loc, err := time.LoadLocation(cfg.Bot.Timezone)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sessions := session.NewManager(
		session.NewSQLStore(boot.DB),
		time.Duration(cfg.Session.TTLMinutes)*time.Minute,
	)
	coupons := coupon.NewRepository(boot.DB)
	settings := reminder.NewSQLSettings(boot.DB)
	if err := settings.EnsureDefaults(ctx, cfg.Reminder.Hour, cfg.Reminder.Minute, cfg.Reminder.MonthlyDay); err != nil {
		return err
	}

	// Without an API key the bot runs fine, just without the free text flow.
	var extractor conversation.Extractor
	if cfg.AI.APIKey != "" {
		ex, err := ai.NewExtractor(ctx, cfg.AI.APIKey, cfg.AI.Model, time.Duration(cfg.AI.TimeoutSeconds)*time.Second)
		if err != nil {
			logger.Warn(ctx, "app", "ai.disabled", slog.String("err", err.Error()))
		} else {
			extractor = ex
		}
	}

	dispatcher := tgsender.NewDispatcher(tgsender.Options{})
	outbox := bot.NewOutbox(dispatcher)

	engine := conversation.NewEngine(conversation.Config{
		MaxAmount:        cfg.Bot.MaxAmount,
		AIMinChars:       cfg.Bot.AIMinChars,
		AIMaxChars:       cfg.Bot.AIMaxChars,
		SuggestThreshold: cfg.Bot.SuggestThreshold,
		ExactThreshold:   cfg.Bot.ExactThreshold,
	}, sessions, coupons, extractor, outbox)

	notifier := reminder.NewNotifier(settings, sessions, coupons, outbox, loc)

	app := bot.NewApp(engine, notifier, settings)
	reg := app.Registry()

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: cfg.Telegram.AdminID,
	})
	routes = append(routes, router.TextRoutes(app, reg, router.TextOptions{})...)

	return coretelegram.RunTelegram(ctx, coretelegram.RunOptions{
		Config:      cfg,
		Registry:    reg,
		Dispatcher:  dispatcher,
		Middlewares: coretelegram.DefaultMiddlewares(cfg, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			outbox.Bind(rt.Bot)
			go notifier.Run(ctx)
			logger.Info(ctx, "app", "ready")
			return nil
		},
	})
}
