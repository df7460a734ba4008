// Package main provides the entry point for the validation service.
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

	"validation-service/internal/blob"
	"validation-service/internal/bus"
	"validation-service/internal/config"
	"validation-service/internal/consensus"
	"validation-service/internal/logger"
	"validation-service/internal/metrics"
	"validation-service/internal/orchestrator"
	"validation-service/internal/roster"
	"validation-service/internal/server"
	"validation-service/internal/store"
	"validation-service/internal/trust"

	dbpkg "validation-service/internal/db"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	busBufferCapacity = 256
	rosterTTL         = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	// Try to load .env from CWD if present; otherwise use environment as-is
	if _, statErr := os.Stat(".env"); statErr == nil {
		_ = godotenv.Load(".env")
	}

	cfg := config.Load()
	log := logger.NewWithWriter(cfg.Debug, os.Stderr)

	fmt.Printf("Validation service starting...\n")
	fmt.Printf("Config loaded: %s\n", cfg.DebugString())

	gormDB, err := dbpkg.Open(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if gormDB == nil {
		log.Fatalf("DATABASE_URL is required")
	}
	log.Printf("DB connected")

	if err := dbpkg.AutoMigrate(gormDB); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	log.Printf("Migrations applied")

	st := store.New(gormDB)

	blobs, err := blob.New(cfg.BlobDir)
	if err != nil {
		log.Fatalf("failed to open blob store at %s: %v", cfg.BlobDir, err)
	}

	notifier := bus.New(busBufferCapacity)
	if err := notifier.Start(); err != nil {
		log.Fatalf("failed to start notification bus: %v", err)
	}

	kind, err := consensus.KindFromString(cfg.Algorithm)
	if err != nil {
		log.Fatalf("invalid CONSENSUS_ALGORITHM: %v", err)
	}
	algo, err := consensus.New(kind, consensus.Options{
		SupermajorityFraction: cfg.SupermajorityFraction,
		QuorumFraction:        cfg.QuorumFraction,
		EligibleValidators:    cfg.CandidatePoolSize,
	})
	if err != nil {
		log.Fatalf("failed to build consensus algorithm: %v", err)
	}

	registry := prometheus.NewRegistry()
	met := metrics.New(registry)
	params := trust.ParamsFromConfig(cfg)
	pool := roster.New(st, cfg.CandidatePoolSize, rosterTTL)

	orch := orchestrator.New(orchestrator.Config{
		TrustParams: params,
		Algorithm:   algo,
		Timeout:     cfg.ValidationTimeout,
	}, st, blobs, notifier, pool, met, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Reschedule expiry for requests left pending by a previous run.
	if err := orch.Recover(ctx); err != nil {
		log.Fatalf("failed to recover pending requests: %v", err)
	}

	handler := server.New(&server.Handler{
		Core:   orch,
		Trust:  st,
		Params: params,
		Log:    log,
	}, registry)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}
	go func() {
		fmt.Printf("Listening on %s\n", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("http server: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("http shutdown: %v", err)
	}

	orch.Close()
	if err := notifier.Stop(); err != nil {
		log.Errorf("bus stop: %v", err)
	}
}
