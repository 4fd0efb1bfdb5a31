package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/agent/providers"
	"github.com/haasonsaas/nexus/internal/agent/streamtask"
	"github.com/haasonsaas/nexus/internal/checkpoint"
	"github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/internal/cron"
	"github.com/haasonsaas/nexus/internal/facade"
	"github.com/haasonsaas/nexus/internal/gateway"
	"github.com/haasonsaas/nexus/internal/observability"
	"github.com/haasonsaas/nexus/internal/sessions"
)

// runServe loads configuration, wires every collaborator, and blocks until
// an interrupt or terminate signal triggers a graceful shutdown.
func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	metrics := observability.NewMetrics()

	provider, err := buildLLMProvider(cfg.LLM)
	if err != nil {
		return fmt.Errorf("build llm provider: %w", err)
	}

	store, closeStore, err := buildSessionStore(cfg)
	if err != nil {
		return fmt.Errorf("build session store: %w", err)
	}
	defer closeStore()

	checkpoints, err := buildCheckpointStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("build checkpoint store: %w", err)
	}

	registry := agent.NewToolRegistry()

	orchestrator := agent.NewOrchestrator(provider, registry, store, &agent.OrchestratorConfig{
		DefaultModel: cfg.LLM.Providers[strings.ToLower(cfg.LLM.DefaultProvider)].DefaultModel,
	})
	orchestrator.SetCheckpointStore(checkpoints)

	// No speech recognizer/synthesizer is wired: a deployment supplies
	// provider-specific STT/TTS clients satisfying facade.SpeechRecognizer
	// / facade.SpeechSynthesizer. Audio routes respond 503 until then.
	convFacade := facade.New(orchestrator, store, nil, nil)

	tasks := streamtask.NewManager(logger)

	server := gateway.NewServer(cfg, orchestrator, registry, convFacade, store, tasks, logger, metrics)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}

	scheduler, err := buildScheduler(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}
	if scheduler != nil {
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info(ctx, "shutting down gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if scheduler != nil {
		_ = scheduler.Stop(shutdownCtx)
	}
	return server.Shutdown(shutdownCtx)
}

// buildLLMProvider selects and constructs the configured default provider.
// Only the three backends the orchestrator is grounded on are supported;
// an unknown provider name is a configuration error, not a silent fallback.
func buildLLMProvider(cfg config.LLMConfig) (agent.LLMProvider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.DefaultProvider))
	providerCfg := cfg.Providers[name]

	switch name {
	case "", "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       providerCfg.APIKey,
			BaseURL:      providerCfg.BaseURL,
			DefaultModel: providerCfg.DefaultModel,
		})
	case "openai":
		return providers.NewOpenAIProvider(providerCfg.APIKey), nil
	case "bedrock":
		return providers.NewBedrockProvider(providers.BedrockConfig{
			DefaultModel: providerCfg.DefaultModel,
		})
	default:
		return nil, fmt.Errorf("unsupported llm.default_provider %q", cfg.DefaultProvider)
	}
}

// buildSessionStore wires the two-tier store: an in-memory tier always,
// composed with a Postgres-backed durable tier when database.enabled is
// set. The returned close func releases the underlying *sql.DB, if any.
func buildSessionStore(cfg *config.Config) (sessions.Store, func(), error) {
	if !cfg.Database.Enabled {
		return sessions.NewMemoryStore(), func() {}, nil
	}

	durable, err := sessions.NewCockroachStoreFromDSN(cfg.Database.DSN(), &sessions.CockroachConfig{
		MaxOpenConns:    cfg.Database.MaxConnections,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect durable session store: %w", err)
	}

	hybrid := sessions.NewHybridStore(durable)
	return hybrid, func() { _ = durable.Close() }, nil
}

// buildCheckpointStore selects the checkpoint backend named by
// checkpoint.backend, defaulting to an in-memory store for local runs.
func buildCheckpointStore(cfg *config.Config, logger *observability.Logger) (checkpoint.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Checkpoint.Backend)) {
	case "", "memory":
		return checkpoint.NewMemoryStore(), nil
	case "postgres":
		dsn := cfg.Checkpoint.DSN
		if dsn == "" {
			dsn = cfg.Database.DSN()
		}
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open checkpoint database: %w", err)
		}
		durable, err := checkpoint.NewPostgresStore(db)
		if err != nil {
			return nil, err
		}
		return checkpoint.NewHybridStore(durable, logger), nil
	default:
		return nil, fmt.Errorf("unsupported checkpoint.backend %q", cfg.Checkpoint.Backend)
	}
}

// buildScheduler wires the cron scheduler with a session_cleanup custom
// handler that sweeps expired sessions on the configured schedule. Returns
// nil when cron is disabled.
func buildScheduler(cfg *config.Config, store sessions.Store, logger *observability.Logger) (*cron.Scheduler, error) {
	if !cfg.Cron.Enabled {
		return nil, nil
	}

	scheduler, err := cron.NewScheduler(cfg.Cron)
	if err != nil {
		return nil, err
	}

	scheduler.RegisterCustomHandler("session_cleanup", cron.CustomHandlerFunc(
		func(ctx context.Context, job *cron.Job, args map[string]any) error {
			ttl := cfg.Session.TTL
			if raw, ok := args["ttl"].(string); ok {
				if parsed, err := time.ParseDuration(raw); err == nil {
					ttl = parsed
				}
			}
			n, err := store.CleanupExpired(ctx, ttl)
			if err != nil {
				return err
			}
			logger.Info(ctx, "session cleanup sweep completed", "expired", n)
			return nil
		},
	))

	return scheduler, nil
}
