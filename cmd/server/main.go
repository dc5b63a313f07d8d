package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/spot-rental/internal/config"
	"github.com/iliyamo/spot-rental/internal/database"
	"github.com/iliyamo/spot-rental/internal/handler"
	"github.com/iliyamo/spot-rental/internal/logger"
	"github.com/iliyamo/spot-rental/internal/middleware"
	"github.com/iliyamo/spot-rental/internal/queue"
	"github.com/iliyamo/spot-rental/internal/repository"
	"github.com/iliyamo/spot-rental/internal/router"
	"github.com/iliyamo/spot-rental/internal/service"
	"github.com/iliyamo/spot-rental/internal/utils"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, os.Stdout)

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.Migrate(ctx, db)
		cancel()
		if err != nil {
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
	}

	// Redis is optional: without it rate limiting and the listing cache
	// are switched off.
	rdb := config.NewRedisClient(config.LoadRedisOptions())
	if rdb == nil {
		log.Warn("redis unavailable, rate limiting and listing cache disabled")
	} else {
		defer rdb.Close()
	}
	listingCache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, log)

	amqpURL := config.AMQPURL()
	publisher := service.NewPublisher(amqpURL, log)
	defer publisher.Close()

	users := repository.NewUserRepo(db)
	spots := repository.NewSpotRepo(db)
	reviews := repository.NewReviewRepo(db)
	images := repository.NewImageRepo(db)
	bookings := repository.NewBookingRepo(db)
	issuer := utils.NewSessionIssuer(cfg.JWTSecret, time.Duration(cfg.SessionTTLHours)*time.Hour)

	h := router.Handlers{
		Session: handler.NewSessionHandler(users, issuer,
			handler.CookieOptions{Secure: cfg.CookieSecure, SameSite: cfg.CookieSameSite}, cfg.BcryptCost, log),
		Spots:    handler.NewSpotHandler(spots, images, listingCache, cfg.LegacySentinels, log),
		Reviews:  handler.NewReviewHandler(reviews, spots, images, listingCache, cfg.LegacySentinels, log),
		Bookings: handler.NewBookingHandler(bookings, spots, publisher, cfg.LegacySentinels, log),
		Images:   handler.NewImageHandler(images, listingCache, log),
	}
	e := router.New(router.Options{
		Log:            log,
		Tokens:         issuer,
		Users:          users,
		RateLimit:      middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
		ListingCache:   listingCache.Middleware(),
		AllowOrigins:   cfg.CORSOrigins,
		CookieSecure:   cfg.CookieSecure,
		CookieSameSite: cfg.CookieSameSite,
	}, h, db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ConsumerEnabled {
		consumer := queue.NewConsumer(amqpURL, cfg.QueueLogDir, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("booking consumer stopped", "error", err)
			}
		}()
	}

	addr := ":" + cfg.Port
	go func(e *echo.Echo) {
		log.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			stop()
		}
	}(e)

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
