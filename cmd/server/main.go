package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"    // loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework
	"go.uber.org/zap"             // structured logging

	"github.com/iliyamo/coach-scheduling/internal/config"
	"github.com/iliyamo/coach-scheduling/internal/database"
	"github.com/iliyamo/coach-scheduling/internal/handler"
	"github.com/iliyamo/coach-scheduling/internal/notifier"
	"github.com/iliyamo/coach-scheduling/internal/queue"
	"github.com/iliyamo/coach-scheduling/internal/repository"
	"github.com/iliyamo/coach-scheduling/internal/router"
	"github.com/iliyamo/coach-scheduling/internal/service"
)

// reminderInterval is how often the in-process reminder loop fires.  The
// external cron endpoint may trigger additional runs at any time; the
// claim protocol keeps the two safe together.
const reminderInterval = 10 * time.Minute

func main() {
	_ = godotenv.Load() // best-effort; real deployments set env directly

	cfg := config.Load()

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(context.Background(), db); err != nil {
		logger.Fatal("run migrations", zap.Error(err))
	}

	// Redis is optional: without it the cache and rate limiter disable
	// themselves and the service still works.
	rdb := config.NewRedisClient()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	settings := repository.NewSettingsRepo(db)
	availability := repository.NewAvailabilityRepo(db)
	bookings := repository.NewBookingRepo(db)

	sender := notifier.NewAMQPSender(cfg.AMQPURL)
	dispatcher := service.NewReminderDispatcher(bookings, users, sender, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx, reminderInterval)
	if cfg.AMQPURL != "" {
		go queue.StartOutboundConsumer(cfg.AMQPURL, logger)
	} else {
		logger.Warn("RABBITMQ_URL not set, notifications disabled")
	}

	e := echo.New()
	e.HideBanner = true

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterScheduling(e, cfg,
		handler.NewAvailabilityHandler(users, settings, availability),
		handler.NewBookingHandler(cfg, users, settings, availability, bookings, sender, logger),
		handler.NewReminderHandler(cfg, dispatcher),
		rdb,
	)

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// newLogger picks the zap preset for the environment: human-readable in
// dev, JSON elsewhere.
func newLogger(env string) (*zap.Logger, error) {
	if env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
