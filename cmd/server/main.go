package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mailgatekeeper/internal/config"
	"mailgatekeeper/internal/handler"
	"mailgatekeeper/internal/httpserver"
	"mailgatekeeper/internal/mailbox"
	"mailgatekeeper/internal/rules"
	"mailgatekeeper/internal/service/scan"
	"mailgatekeeper/internal/service/scheduler"
	"mailgatekeeper/internal/service/webhook"
	"mailgatekeeper/internal/store"
	"mailgatekeeper/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/base.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	zl := logger.NewLogger()
	defer zl.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	alerts := store.New()
	engine := rules.NewEngine(cfg.Rules, cfg.Scan.FetchBodySnippet)
	imapClient := mailbox.NewClient(cfg.IMAP, zl)
	scanService := scan.NewService(imapClient, engine, alerts, cfg.Scan, cfg.IMAP.Username, zl)
	dispatcher := webhook.NewDispatcher(cfg.Webhook, zl)

	sched, err := scheduler.New(cfg.Scan.Cron, cfg.Scan.ScanOnStart, scanService, dispatcher, zl)
	if err != nil {
		zl.Fatal("scheduler init failed", zap.Error(err))
	}
	go sched.Run(ctx)

	alertHandler := handler.NewAlertHandler(alerts, cfg.Scan, zl)
	scanHandler := handler.NewScanHandler(scanService, zl)
	draftHandler := handler.NewDraftHandler(scanService, zl)

	router := httpserver.NewRouter(alertHandler, scanHandler, draftHandler, cfg.Auth.Token)

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: router.Engine,
	}

	go func() {
		zl.Info("starting mail gatekeeper",
			zap.String("addr", srv.Addr),
			zap.String("cron", cfg.Scan.Cron),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		zl.Info("HTTP server stopped")
	}
}
