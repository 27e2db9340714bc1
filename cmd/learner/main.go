// Command learner runs the Learner agent: it consumes incidents.resolved,
// embeds and upserts a summary into the historical-incident index, and
// optionally files a post-mortem document (§4.5).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opsloop/sentinel/bus"
	"github.com/opsloop/sentinel/cmd/internal/bootstrap"
	"github.com/opsloop/sentinel/learner"
	"github.com/opsloop/sentinel/observability"
)

func main() {
	var (
		configPath string
		natsURL    string
	)

	rootCmd := &cobra.Command{
		Use:   "learner",
		Short: "Runs the Learner agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, natsURL)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config overlay file")
	rootCmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL (overrides BROKER_URL)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "learner: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, natsURL string) error {
	if configPath != "" {
		os.Setenv("CONFIG_FILE", configPath)
	}
	if natsURL != "" {
		os.Setenv("BROKER_URL", natsURL)
	}

	bs, err := bootstrap.New(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer bs.Close()
	logger := bs.Logger.With("agent", "learner")

	var docStore learner.DocStore
	if bs.Config.Learner.DocStoreURL != "" {
		docStore = learner.NewHTTPDocStore(bs.Config.Learner.DocStoreURL, bs.Config.Learner.DocStoreAPIKey)
	}

	svc := &learner.Service{
		Store:    bs.Store,
		Embed:    &learner.LLMEmbedder{Client: bs.LLM},
		DocStore: docStore,
		Logger:   logger,
	}

	consumer, err := bs.Broker.Consumer(ctx, bus.SpecFor(bus.ConsumerIncidentsResolved))
	if err != nil {
		return fmt.Errorf("acquire consumer: %w", err)
	}

	metrics, reg := observability.NewMetrics()
	healthChecks := map[string]observability.HealthCheck{
		"broker": func(ctx context.Context) error {
			if !bs.Broker.IsConnected() {
				return fmt.Errorf("broker not connected")
			}
			return nil
		},
		"store": bs.Store.Ping,
	}
	healthSrv := observability.NewServer(bs.Config.Observ.HealthAddr, reg, healthChecks)
	go healthSrv.Run(ctx, logger)

	logger.Info("learner started", "consumer", bus.ConsumerIncidentsResolved)
	bus.Run(ctx, bs.Broker, consumer, logger, 3, observability.CountHandler(metrics, "learner", svc.Handle))
	logger.Info("learner stopped")
	return nil
}
