// Package bootstrap wires the pieces shared by all four agent binaries —
// config, logger, broker connection, model registry, LLM client, and
// store — so each cmd/<agent>/main.go only adds the dependencies specific
// to that agent.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/opsloop/sentinel/bus"
	"github.com/opsloop/sentinel/config"
	"github.com/opsloop/sentinel/llm"
	_ "github.com/opsloop/sentinel/llm/providers"
	"github.com/opsloop/sentinel/model"
	"github.com/opsloop/sentinel/observability"
	"github.com/opsloop/sentinel/store"
)

// Bootstrap holds the dependencies common to every agent process.
type Bootstrap struct {
	Config *config.Config
	Logger *slog.Logger
	Broker *bus.Broker
	Store  *store.Store
	LLM    *llm.Client
}

// New loads configuration (environment, with an optional YAML overlay
// named by the CONFIG_FILE env var), builds the logger, connects the
// broker and ensures its streams/consumers exist, opens the store, and
// constructs the LLM client against the configured model registry.
func New(ctx context.Context) (*Bootstrap, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		overlay, err := config.LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config overlay: %w", err)
		}
		cfg.Merge(overlay)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := observability.NewLogger(cfg.Observ)

	broker, err := bus.Connect(cfg.Broker.URL)
	if err != nil {
		return nil, fmt.Errorf("connect broker: %w", err)
	}
	if err := broker.EnsureStreams(ctx); err != nil {
		broker.Close()
		return nil, fmt.Errorf("ensure streams: %w", err)
	}

	registry, err := loadRegistry(cfg.Model.RegistryPath)
	if err != nil {
		broker.Close()
		return nil, fmt.Errorf("load model registry: %w", err)
	}

	st, err := store.Open(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		broker.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	llmClient := llm.NewClient(registry, llm.WithLogger(logger))

	return &Bootstrap{
		Config: cfg,
		Logger: logger,
		Broker: broker,
		Store:  st,
		LLM:    llmClient,
	}, nil
}

// Close releases the broker connection and the store's pool.
func (b *Bootstrap) Close() {
	b.Broker.Close()
	b.Store.Close()
}

func loadRegistry(path string) (*model.Registry, error) {
	if path == "" {
		return model.NewDefaultRegistry(), nil
	}
	return model.LoadFromFile(path)
}
