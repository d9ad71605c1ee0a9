package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paylink/internal/config"
	"paylink/internal/database"
	"paylink/internal/infrastructure/payment"
	"paylink/internal/repo"
	"paylink/internal/server"
	"paylink/internal/service"
	"paylink/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres()
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(ctx, db); err != nil {
		logger.Error("database migration failed", "error", err)
		os.Exit(1)
	}
	health := database.New(db)
	defer health.Close()

	links := repo.NewPaymentLinkRepo(db)
	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.GatewayTimeout)
	svc := service.NewPaymentLinkService(links, gateway, logger, cfg.BaseURL, cfg.ExpirationWindow)

	sweeper := worker.NewExpirySweeper(svc, cfg.SweepInterval, logger)
	go sweeper.Run(ctx)

	srv := server.New(cfg, svc, health).HTTPServer()
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
