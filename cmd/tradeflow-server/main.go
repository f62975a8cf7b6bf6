package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"tradeflow/internal/config"
	"tradeflow/internal/execution"
	"tradeflow/internal/httpapi"
	"tradeflow/internal/ledger"
	"tradeflow/internal/pipeline"
	"tradeflow/internal/pricing"
	"tradeflow/internal/refdata"
	"tradeflow/internal/risk"
	"tradeflow/internal/store"
	"tradeflow/internal/util"
	"tradeflow/internal/validate"
)

func main() {
	cfgPath := flag.String("config", "", "path to YAML config (defaults plus TRADEFLOW_* env vars when empty)")
	flag.Parse()

	if *cfgPath == "" {
		if p := os.Getenv("TRADEFLOW_CONFIG"); p != "" {
			*cfgPath = p
		}
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(log)

	ref := refdata.FromConfig(cfg)
	caps := validate.NewCapStore(filepath.Join(cfg.Storage.DataDir, "algo_caps.json"), log)

	validator, err := validate.New(cfg, ref, caps, log)
	if err != nil {
		log.Error("building validator", "error", err)
		os.Exit(1)
	}
	pricer := pricing.New(cfg, ref, log)
	risker := risk.New(cfg, log)

	outcomes, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Error("opening outcome store", "path", cfg.Storage.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer outcomes.Close()
	archive := store.NewParquetStore(cfg.Storage.DataDir)
	led := ledger.NewFromConfig(cfg)

	executor := execution.New(outcomes, archive, led, caps, ref, pricer, log)
	metrics := pipeline.NewMetrics()
	orchestrator := pipeline.New(cfg, validator, pricer, risker, executor, metrics, log)

	api := httpapi.NewServer(orchestrator, outcomes, led, ref, metrics, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("tradeflow-server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown", "error", err)
	}
	log.Info("server stopped")
}
