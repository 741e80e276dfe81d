package main // Entry point package

import (
	"log" // Logging before the structured logger exists

	"github.com/joho/godotenv"    // Loads .env files into the environment
	"github.com/labstack/echo/v4" // Echo web framework
	"go.uber.org/zap"

	"github.com/finbook/finbook-api/internal/config"
	"github.com/finbook/finbook-api/internal/database"
	"github.com/finbook/finbook-api/internal/handler"
	"github.com/finbook/finbook-api/internal/httperr"
	"github.com/finbook/finbook-api/internal/logger"
	"github.com/finbook/finbook-api/internal/middleware"
	"github.com/finbook/finbook-api/internal/queue"
	"github.com/finbook/finbook-api/internal/repository"
	"github.com/finbook/finbook-api/internal/router"
	"github.com/finbook/finbook-api/internal/utils"
)

func main() {
	_ = godotenv.Load() // optional .env; real env vars win

	cfg := config.Load() // exits if required vars (incl. both token secrets) are missing
	zlog := logger.New(cfg.LogLevel, cfg.Env)
	defer func() { _ = zlog.Sync() }()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	// Redis is optional: a nil client puts the session store into degraded
	// mode and the rate limiter onto per-process counters.
	rdb := config.NewRedisClient(cfg)
	if rdb == nil {
		zlog.Warn("redis unavailable; session revocation and shared rate limits degraded")
	}

	issuer, err := utils.NewTokenIssuer(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}
	hasher := utils.NewHasher(cfg.Argon2Memory, cfg.Argon2Time, cfg.Argon2Threads)

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	tokens := repository.NewActionTokenRepo(db)
	sessions := repository.NewSessionStore(rdb, zlog)
	mail := queue.NewPublisher(zlog)

	limits := config.LoadRateLimits()
	limiters := router.Limiters{
		Public:    middleware.NewRateLimiter(limits.Public, rdb, zlog),
		Sensitive: middleware.NewRateLimiter(limits.Sensitive, rdb, zlog),
		General:   middleware.NewRateLimiter(limits.General, rdb, zlog),
	}

	authH := handler.NewAuthHandler(cfg, zlog, hasher, issuer, users, roles, tokens, sessions, mail)
	adminH := handler.NewAdminHandler(zlog, users)
	statusH := &handler.StatusHandler{DB: db, Redis: rdb, Sessions: sessions}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httperr.NewHandler(zlog, cfg.Env != "prod")
	e.Use(httperr.RequestID())

	router.RegisterHealth(e, statusH)
	router.RegisterAuth(e, authH, issuer, limiters)
	router.RegisterAdmin(e, adminH, issuer, roles, limiters)

	// Background mail consumer; reconnects on its own and never stops the
	// server.
	go queue.StartMailConsumer(zlog)

	addr := ":" + cfg.Port
	zlog.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
