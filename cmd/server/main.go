package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/bookfix/internal/api"
	"github.com/dgallion1/bookfix/internal/config"
	"github.com/dgallion1/bookfix/internal/correct"
	"github.com/dgallion1/bookfix/internal/pipeline"
	"github.com/dgallion1/bookfix/internal/segment"
	"github.com/dgallion1/bookfix/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	for _, validate := range []func() error{cfg.Validate, cfg.ValidateCorrection, cfg.ValidateServer} {
		if err := validate(); err != nil {
			log.Error("invalid configuration", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage and the correction service.
	st, closeStore, err := store.Open(cfg)
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}
	seg, err := segment.New(cfg.MarkerTag)
	if err != nil {
		log.Error("invalid marker tag", "error", err)
		os.Exit(1)
	}
	stats := correct.NewLLMStats(time.Hour)
	svc, err := correct.NewService(cfg, stats)
	if err != nil {
		log.Error("create correction service", "error", err)
		os.Exit(1)
	}
	corrector, err := pipeline.BuildCorrector(cfg, svc, log)
	if err != nil {
		log.Error("create corrector", "error", err)
		os.Exit(1)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, corrector, st, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, st, seg, stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: stop accepting requests before closing the job queue.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		closeStore()
	}()

	log.Info("starting bookfix",
		"port", cfg.Port,
		"store", cfg.StoreBackend,
		"provider", cfg.Provider,
		"model", cfg.Model,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
