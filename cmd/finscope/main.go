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
	"golang.org/x/sync/errgroup"

	"finscope/internal/amqp"
	"finscope/internal/backend"
	"finscope/internal/config"
	apphttp "finscope/internal/http"
	applog "finscope/internal/log"
	"finscope/internal/services"
	"finscope/internal/session"
	"finscope/internal/watch"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: applog.ComponentApp})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger)
	result, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}()
	}

	hub := watch.NewHub(
		services.NewSnapshotLoader(result.Backend, result.Backend),
		logger.WithComponent(applog.ComponentWatch).Logger)

	// AMQP is optional: without it the instance still serves, it just cannot
	// exchange change events with other processes.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change events", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}
	var publisher services.ChangePublisher
	if amqpClient != nil {
		publisher = amqpClient
	}

	txnService := services.NewTransactionService(
		result.Backend, publisher, hub,
		logger.WithComponent(applog.ComponentService).Logger)
	defer txnService.Close()

	issuer := session.NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL)
	sessions := session.NewProvider(result.Backend, issuer, hub,
		logger.WithComponent(applog.ComponentSession).Logger)

	srv := apphttp.NewServer(":"+cfg.Port, sessions, txnService, hub)
	srv.ReadTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting finscope server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if amqpClient != nil {
		// Relay change events from other processes into the local hub.
		g.Go(func() error {
			err := amqpClient.ConsumeBroadcast(gctx, func(msg *amqp.TransactionChangeMessage) error {
				return txnService.ApplyRemoteChange(gctx, msg)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Change event relay stopped", "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
