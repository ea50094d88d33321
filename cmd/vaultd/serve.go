package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vault_aggregator/internal/infrastructure/restapi"
	"vault_aggregator/internal/infrastructure/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.coordinator.OnAppStart(ctx); err != nil {
		app.log.Error("Start-up reconciliation failed", "error", err)
	}

	jobs, err := scheduler.New(app.coordinator, app.repo, app.aggregator, scheduler.Options{
		ReconcileInterval: seconds(cfg.Scheduler.ReconcileIntervalSeconds),
		RefreshInterval:   seconds(cfg.Scheduler.RefreshIntervalSeconds),
		FiatCurrency:      cfg.Scheduler.FiatCurrency,
		ChainTimeout:      cfg.ChainFetchTimeout(),
	}, app.log)
	if err != nil {
		return err
	}
	jobs.Start()
	defer func() {
		if err := jobs.Shutdown(); err != nil {
			app.log.Warn("Scheduler shutdown failed", "error", err)
		}
	}()

	if !strings.EqualFold(cfg.Logging.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := restapi.NewVaultHandler(app.repo, app.coordinator, app.aggregator, restapi.FeatureSettings{
		Gate:          app.features,
		BuildKind:     app.buildKind,
		StabilityFlag: cfg.Rollout.StabilityFlag,
		DefaultSeed:   app.seed,
	}, restapi.HandlerOptions{
		FiatCurrency: cfg.Scheduler.FiatCurrency,
		ChainTimeout: cfg.ChainFetchTimeout(),
	}, app.log)
	router := restapi.SetupRouter(handler, restapi.RouterOptions{
		Logger:      app.zap.Named("http"),
		Gatherer:    app.registry,
		EnablePprof: cfg.Server.EnablePprof,
	})

	addr := cfg.Server.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  seconds(cfg.Server.ReadTimeout),
		WriteTimeout: seconds(cfg.Server.WriteTimeout),
		IdleTimeout:  seconds(cfg.Server.IdleTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		app.zap.Info("Server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	app.zap.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	app.zap.Info("Server exiting")
	return nil
}
