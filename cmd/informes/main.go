// Informes - Credit risk classification for Argentine bureau reports.
// Copyright (c) 2026 Punto Financiamiento
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/punto-financiamiento/informes/internal/api"
	"github.com/punto-financiamiento/informes/internal/bureau"
	"github.com/punto-financiamiento/informes/internal/bus"
	"github.com/punto-financiamiento/informes/internal/cache"
	"github.com/punto-financiamiento/informes/internal/domain"
	"github.com/punto-financiamiento/informes/internal/evaluator"
	"github.com/punto-financiamiento/informes/internal/offer"
	"github.com/punto-financiamiento/informes/internal/repository"
	"github.com/punto-financiamiento/informes/internal/rules"
	"github.com/punto-financiamiento/informes/internal/velocity"
	"github.com/punto-financiamiento/informes/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("INFORMES_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting informes",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("INFORMES_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	applyEnvOverrides(cfg)

	if cfg.Bureau.APIKey == "" {
		slog.Warn("INFORMES_BUREAU_API_KEY is not set, bureau calls will be rejected upstream")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"bureau", cfg.Bureau.BaseURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Velocity Service
	velocitySvc := velocity.NewService(repo, cacheImpl)
	slog.Info("velocity service initialized")

	// Initialize Rule Engine with velocity getter
	engine, err := rules.NewEngine(velocitySvc.GetVelocityGetter(), 100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}

	// Load rules from database (no hardcoded defaults - configure via API)
	if err := loadRulesFromDatabase(ctx, repo, engine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	// Initialize Bureau client
	bureauClient := bureau.NewClient(cfg.Bureau, logger)
	slog.Info("bureau client initialized", "base_url", cfg.Bureau.BaseURL)

	// Initialize Evaluation Processor
	offers := offer.NewCalculator(logger)
	processor := evaluator.NewProcessor(offers, engine, 3600)
	slog.Info("evaluation processor initialized")

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("INFORMES_ASYNC_WORKER") == "true" {
		reportTTL := time.Duration(cfg.Bureau.ReportTTL) * time.Second
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl, bureauClient, processor, reportTTL)

		// Get tenant IDs to process (from environment or default)
		tenantIDs := []string{}
		if envTenants := os.Getenv("INFORMES_TENANTS"); envTenants != "" {
			for _, t := range strings.Split(envTenants, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tenantIDs = append(tenantIDs, t)
				}
			}
		}

		workerCfg := worker.Config{
			TenantIDs:   tenantIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg, repo, cacheImpl, busImpl, engine, processor, bureauClient, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("informes is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("informes shutdown complete")
}

// applyEnvOverrides layers INFORMES_* environment variables on top of the
// tier defaults.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("INFORMES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("INFORMES_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("INFORMES_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("INFORMES_BUREAU_URL"); v != "" {
		cfg.Bureau.BaseURL = v
	}
	if v := os.Getenv("INFORMES_BUREAU_API_KEY"); v != "" {
		cfg.Bureau.APIKey = v
	}
	if v := os.Getenv("INFORMES_REPORT_TTL"); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil {
			cfg.Bureau.ReportTTL = ttl
		}
	}
	if v := os.Getenv("INFORMES_ADMINS"); v != "" {
		cfg.Auth.AdminEmails = splitList(v)
	}

	// INFORMES_TOKENS is a comma-separated token:email list.
	if v := os.Getenv("INFORMES_TOKENS"); v != "" {
		tokens := make(map[string]string)
		for _, pair := range splitList(v) {
			token, email, ok := strings.Cut(pair, ":")
			if ok && token != "" && email != "" {
				tokens[token] = email
			}
		}
		cfg.Auth.Tokens = tokens
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// GlobalTenantID is used for rules that apply to all tenants.
const GlobalTenantID = "*"

// loadRulesFromDatabase loads rules from the database into the engine.
// All rules must be configured via POST /api/rules - no hardcoded defaults.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListRuleConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no rules in database - configure via POST /api/rules")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  Informes - Clasificación de riesgo crediticio")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /api/informes          - Consultar un documento")
	fmt.Println("    POST /api/informes/lote     - Consultar en lote (admin)")
	fmt.Println("    GET  /api/evaluaciones/{id} - Obtener una evaluación")
	fmt.Println("    GET  /api/consultas/{id}    - Obtener una consulta")
	fmt.Println("    GET  /api/rules             - Listar reglas")
	fmt.Println("    POST /api/rules             - Crear una regla")
	fmt.Println("    POST /api/rules/reload      - Recargar reglas")
	fmt.Println("    GET  /health                - Health check")
	fmt.Println()
}
