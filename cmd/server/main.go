package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trinity/internal/authz"
	"trinity/internal/config"
	"trinity/internal/infra"
	"trinity/internal/metrics"
	"trinity/internal/repository"
	"trinity/internal/router"
	"trinity/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// @title                      Trinity Invoicing API
// @version                    1.0
// @description                Invoice creation and fulfillment for the grocery back-office.
// @BasePath                   /
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if cfg.RunMigrations {
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to get sql.DB")
		}
		if err := infra.RunMigrations(sqlDB); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	policy, err := authz.NewEnforcer()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load authorization policy")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.Default()
	mailCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())

	// Worker handlers are wired here (composition root) so that the pool
	// has full access to all infrastructure dependencies.
	dispatcher := worker.NewDispatcher(rdb)
	mailer := infra.NewMailer(cfg)
	handlers := map[string]worker.Handler{}
	var emails worker.EmailEnqueuer
	if mailer.Configured() {
		emails = dispatcher
		handlers[worker.JobEmail] = worker.NewEmailWorker(mailer, mailCB)
	} else {
		log.Warn().Msg("SMTP_HOST not set, receipts will not be e-mailed")
	}
	handlers[worker.JobReceipt] = worker.NewReceiptWorker(repository.NewInvoiceRepository(db), emails, cfg.ReceiptStoragePath, cfg.StoreName)
	pool := worker.NewPool(rdb, handlers, m)
	pool.Start(ctx, cfg.WorkerPoolSize)
	go pool.MonitorDeadLetters(ctx, 30*time.Second)

	r, err := router.New(ctx, cfg, router.Deps{
		DB:      db,
		Redis:   rdb,
		MailCB:  mailCB,
		Metrics: m,
		Policy:  policy,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build router")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("trinity invoice service listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	cancel()
	pool.Wait()
	_ = rdb.Close()
	log.Info().Msg("server exited")
}
