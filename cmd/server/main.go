// Command server runs the TaxFlow API.
//
// @title                       TaxFlow API
// @version                     1.0
// @description                 Accounts, sessions and the P.IVA approval flow.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/taxflow/taxflow-api/internal/api"
	"github.com/taxflow/taxflow-api/internal/api/handler"
	"github.com/taxflow/taxflow-api/internal/core/ratelimit"
	"github.com/taxflow/taxflow-api/internal/core/service"
	"github.com/taxflow/taxflow-api/internal/infrastructure/db/mongo"
	"github.com/taxflow/taxflow-api/internal/infrastructure/db/redis"
	"github.com/taxflow/taxflow-api/internal/pkg/config"
	"github.com/taxflow/taxflow-api/internal/pkg/token"
	"github.com/taxflow/taxflow-api/pkg/logger"
)

const serviceName = "taxflow-api"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: serviceName,
		Version: version,
	})
	if envErr != nil {
		log.Debug().Msg("no .env file, using process environment only")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped cleanly")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx := context.Background()

	// --- Infrastructure ---
	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  serviceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")

	rdb, err := redis.Connect(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()
	log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")

	// --- Repositories and stores ---
	users := mongo.NewUserRepository(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		return err
	}

	var attempts ratelimit.AttemptStore = ratelimit.NewMemoryStore()
	if cfg.RateLimit.Backend == config.RateLimitBackendRedis {
		attempts = redis.NewAttemptStore(rdb, cfg.RateLimit.Window)
	}
	limiter := ratelimit.New(attempts,
		ratelimit.WithWindow(cfg.RateLimit.Window),
		ratelimit.WithMaxAttempts(cfg.RateLimit.MaxAttempts),
	)
	tokens := token.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)

	// --- Services ---
	authSvc := service.NewAuthService(users, limiter, tokens, redis.NewChallengeStore(rdb), service.AuthOptions{
		PendingTTL: cfg.TwoFactor.PendingTTL,
		TOTPSkew:   cfg.TwoFactor.Skew,
	}, logger.Component("auth"))
	accountSvc := service.NewAccountService(users, logger.Component("account"))
	adminSvc := service.NewAdminService(users, logger.Component("admin"))
	twoFactorSvc := service.NewTwoFactorService(users, cfg.TwoFactor.Issuer, cfg.TwoFactor.Skew, logger.Component("twofactor"))
	subscriptionSvc := service.NewSubscriptionService(users, redis.NewDedupChecker(rdb), logger.Component("subscriptions"))

	// --- HTTP ---
	e := api.NewRouter(api.Dependencies{
		Auth:             authSvc,
		Accounts:         accountSvc,
		Admin:            adminSvc,
		TwoFactor:        twoFactorSvc,
		Subscriptions:    subscriptionSvc,
		Tokens:           tokens,
		WebhookSecret:    cfg.Payments.WebhookSecret,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
		Readiness: map[string]handler.Pinger{
			"mongodb": mongo.Pinger{Client: mongoClient},
			"redis":   redis.Pinger{Client: rdb},
		},
		Log: logger.Component("http"),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("rate_limit_backend", cfg.RateLimit.Backend).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
