// Command actor runs the Actor agent: it executes approved plans against
// the tool sandbox behind an idempotency check and an autonomy-risk
// ceiling, then publishes the resulting resolution to incidents.resolved
// (§4.4).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opsloop/sentinel/actor"
	"github.com/opsloop/sentinel/bus"
	"github.com/opsloop/sentinel/cmd/internal/bootstrap"
	"github.com/opsloop/sentinel/idempotency"
	"github.com/opsloop/sentinel/observability"
	"github.com/opsloop/sentinel/sandbox"
)

func main() {
	var (
		configPath string
		natsURL    string
	)

	rootCmd := &cobra.Command{
		Use:   "actor",
		Short: "Runs the Actor agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, natsURL)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config overlay file")
	rootCmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL (overrides BROKER_URL)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "actor: %v\n", err)
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
	logger := bs.Logger.With("agent", "actor")

	box := sandbox.New(sandbox.Config{
		Root:             bs.Config.Sandbox.Root,
		AllowedCommands:  bs.Config.Sandbox.AllowedCommands,
		DefaultNamespace: bs.Config.Sandbox.DefaultNamespace,
	})

	svc := &actor.Service{
		Broker:           bs.Broker,
		Sandbox:          box,
		Store:            bs.Store,
		Seen:             idempotency.NewInMemorySeenSet(),
		LLM:              bs.LLM,
		MaxAutonomyRisk:  bs.Config.Policy.MaxAutonomyRisk,
		DefaultNamespace: bs.Config.Sandbox.DefaultNamespace,
		Logger:           logger,
	}

	consumer, err := bs.Broker.Consumer(ctx, bus.SpecFor(bus.ConsumerPlansApproved))
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

	logger.Info("actor started", "consumer", bus.ConsumerPlansApproved)
	bus.Run(ctx, bs.Broker, consumer, logger, 5, observability.CountHandler(metrics, "actor", svc.Handle))
	logger.Info("actor stopped")
	return nil
}
