package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tradepilot/internal/common"
	"tradepilot/internal/server/handler"
)

func main() {
	config := common.InitConf()
	logger := common.InitLog(config)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, config, logger)
	if err != nil {
		logger.Fatal("init failed", zap.Error(err))
	}
	defer app.Close()

	if err := app.scheduler.Start(); err != nil {
		logger.Fatal("start scheduler failed", zap.Error(err))
	}
	defer app.scheduler.Stop()
	if err := app.service.LoadAllSchedules(ctx); err != nil {
		logger.Fatal("load schedules failed", zap.Error(err))
	}
	go app.feed.Run(ctx)
	go app.prunePrices(ctx, time.Hour)

	handlers := handler.Handlers{
		Users:     handler.NewUserHandler(app.users, app.jwt, logger),
		Pipelines: handler.NewPipelineHandler(app.service),
	}
	if config.WebhookSecret != "" {
		handlers.Webhook = handler.NewWebhookHandler(app.service, config.WebhookSecret)
	}
	srv := &http.Server{
		Addr:              config.HTTPAddr,
		Handler:           handler.NewRouter(handlers, app.jwt, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", config.HTTPAddr), zap.Bool("tls", config.CertPath != ""))
		var err error
		if config.CertPath != "" {
			err = srv.ListenAndServeTLS(config.CertPath, config.KeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}
