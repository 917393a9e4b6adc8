package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/avelora/ticket-office/internal/config"
	"github.com/avelora/ticket-office/internal/database"
	"github.com/avelora/ticket-office/internal/handler"
	"github.com/avelora/ticket-office/internal/logger"
	"github.com/avelora/ticket-office/internal/mailer"
	"github.com/avelora/ticket-office/internal/middleware"
	"github.com/avelora/ticket-office/internal/queue"
	"github.com/avelora/ticket-office/internal/repository"
	"github.com/avelora/ticket-office/internal/router"
	"github.com/avelora/ticket-office/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env wins

	cfg := config.Load()
	log := logger.New(cfg.Env)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable, rate limiting and availability cache disabled")
	}

	st := repository.NewMySQLStore(db)
	staffRepo := repository.NewStaffRepo(db)
	eventRepo := repository.NewEventAdminRepo(db)

	publisher := queue.NewPublisher(cfg.AMQPURL, log)
	orders := service.NewOrderService(log, st)
	checkins := service.NewCheckinService(log, st)
	deliveries := service.NewDeliveryService(log, st, publisher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Outbox worker: claims due deliveries and publishes them to the
	// ticket email queue.
	go deliveries.Run(ctx, cfg.OutboxInterval, cfg.OutboxBatch)

	// Queue consumer: renders the PDF ticket with its QR code and
	// sends the email.  With no API key configured the mailer logs the
	// message instead of sending, which keeps local runs self-contained.
	m := mailer.NewResendMailer(cfg.ResendAPIKey, cfg.MailFrom, nil, log)
	consumer := queue.NewConsumer(cfg.AMQPURL, m, log)
	go consumer.Start(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())

	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	router.Register(e, router.Handlers{
		Auth:         handler.NewAuthHandler(staffRepo, cfg.JWTSecret, cfg.AccessTTLMin),
		Orders:       handler.NewOrderHandler(orders, st),
		Checkin:      handler.NewCheckinHandler(checkins),
		Admin:        handler.NewAdminHandler(orders, deliveries, eventRepo, staffRepo, cfg.BcryptCost),
		Availability: handler.NewAvailabilityHandler(st, rdb, log),
	}, cfg.JWTSecret, rateLimit)

	go func() {
		log.Info("http server listening", "port", cfg.Port, "env", cfg.Env)
		if err := e.Start(":" + cfg.Port); err != nil {
			log.Info("http server stopped", "reason", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}
