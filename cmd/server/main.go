package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"svgforge-go/internal/agents"
	"svgforge-go/internal/auth"
	"svgforge-go/internal/config"
	"svgforge-go/internal/logging"
	tracing "svgforge-go/internal/monitoring/tracing"
	"svgforge-go/internal/pool"
	"svgforge-go/internal/quota"
	"svgforge-go/internal/secretbox"
	srv "svgforge-go/internal/server"
	"svgforge-go/internal/upstream/gemini"
	"svgforge-go/internal/userkeys"

	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if *debug {
		cfg.Server.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if err := logging.Setup(cfg); err != nil {
		log.WithError(err).Fatal("Failed to configure logging")
	}

	traceShutdown, err := tracing.Init(context.Background())
	if err != nil {
		log.WithError(err).Warn("Failed to initialize tracing")
	}
	if traceShutdown != nil {
		defer func() {
			if err := traceShutdown(context.Background()); err != nil {
				log.WithError(err).Warn("Failed to shutdown tracing")
			}
		}()
	}

	log.Infof("Starting svgforge (config: %s)", *configPath)

	if strings.TrimSpace(cfg.OAuth.ClientID) == "" || strings.TrimSpace(cfg.OAuth.ClientSecret) == "" {
		log.Warn("OAuth client credentials are not configured; sign-in will be unavailable")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ledger := buildQuotaLedger(ctx, cfg)
	defer func() { _ = ledger.Close(context.Background()) }()

	keyStore := buildKeyStore(ctx, cfg)
	defer func() { _ = keyStore.Close() }()

	credPool := pool.New(poolSpecs(cfg), pool.Options{
		Recheck: time.Duration(cfg.Pool.AcquireRecheckMs) * time.Millisecond,
	})
	if credPool.Size() == 0 {
		log.Error("No pooled credentials configured; trial requests will fail until credentials are added")
	}

	authManager := auth.NewManager(
		cfg.OAuth.ClientID,
		cfg.OAuth.ClientSecret,
		cfg.OAuth.RedirectURL,
		time.Duration(cfg.OAuth.SessionTTLHours)*time.Hour,
	)
	authManager.StartSweeper(ctx)

	orchestrator := agents.NewOrchestrator(gemini.New(&cfg.Upstream))

	deps := srv.Dependencies{
		Pool:         credPool,
		Quota:        ledger,
		Keys:         keyStore,
		Auth:         authManager,
		Orchestrator: orchestrator,
	}
	engine := srv.BuildEngine(cfg, deps)

	// Hot-reload only the logging knobs; pool membership and backends stay
	// fixed for the process lifetime.
	watcher := config.Watch(*configPath, func(next *config.Config) {
		cfg.Server.Debug = next.Server.Debug
		cfg.Server.LogFile = next.Server.LogFile
		if err := logging.Setup(cfg); err != nil {
			log.WithError(err).Warn("Failed to apply reloaded logging config")
		}
	})
	if watcher != nil {
		defer watcher.Stop()
	}

	httpSrv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: engine}
	go func() {
		log.Infof("API listening on :%s", cfg.Server.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("http server: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("Shutdown signal received")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown")
	}
	log.Info("Server stopped")
}

func poolSpecs(cfg *config.Config) []pool.Spec {
	specs := make([]pool.Spec, 0, len(cfg.Pool.Credentials))
	for _, cred := range cfg.Pool.Credentials {
		maxConc := cred.MaxConcurrent
		if maxConc <= 0 {
			maxConc = cfg.Pool.DefaultMaxConcurrent
		}
		maxStarts := cred.MaxStartsPerMinute
		if maxStarts <= 0 {
			maxStarts = cfg.Pool.DefaultMaxStartsPerMinute
		}
		specs = append(specs, pool.Spec{
			Secret:             cred.Secret,
			MaxConcurrent:      maxConc,
			MaxStartsPerMinute: maxStarts,
		})
	}
	return specs
}

// buildQuotaLedger initializes the configured quota backend, falling back to
// the in-memory ledger when the backend cannot be reached. The service keeps
// serving, but counters will not survive a restart.
func buildQuotaLedger(ctx context.Context, cfg *config.Config) quota.Ledger {
	switch cfg.Quota.Backend {
	case "mongo":
		ledger := quota.NewMongoLedger(cfg.Quota.MongoURI, cfg.Quota.MongoDatabase, cfg.Quota.DailyLimit)
		if err := ledger.Initialize(ctx); err != nil {
			log.WithError(err).Warn("MongoDB quota backend initialization failed; falling back to memory")
			return quota.NewMemoryLedger(cfg.Quota.DailyLimit)
		}
		log.Info("Quota ledger: mongodb")
		return ledger
	case "postgres":
		ledger := quota.NewPostgresLedger(cfg.Quota.PostgresDSN, cfg.Quota.DailyLimit)
		if err := ledger.Initialize(ctx); err != nil {
			log.WithError(err).Warn("Postgres quota backend initialization failed; falling back to memory")
			return quota.NewMemoryLedger(cfg.Quota.DailyLimit)
		}
		log.Info("Quota ledger: postgres")
		return ledger
	default:
		log.Info("Quota ledger: memory")
		return quota.NewMemoryLedger(cfg.Quota.DailyLimit)
	}
}

func buildKeyStore(ctx context.Context, cfg *config.Config) userkeys.Store {
	if cfg.Keys.Backend != "redis" {
		log.Info("User key store: memory")
		return userkeys.NewMemoryStore()
	}

	box, err := secretbox.New(cfg.Keys.SealKey)
	if err != nil {
		log.WithError(err).Warn("Invalid seal key; falling back to memory key store")
		return userkeys.NewMemoryStore()
	}
	store := userkeys.NewRedisStore(cfg.Keys.RedisAddr, cfg.Keys.RedisPassword, cfg.Keys.RedisDB, cfg.Keys.RedisPrefix, box)
	if err := store.Initialize(ctx); err != nil {
		log.WithError(err).Warn("Redis key store initialization failed; falling back to memory")
		return userkeys.NewMemoryStore()
	}
	log.Info("User key store: redis")
	return store
}
