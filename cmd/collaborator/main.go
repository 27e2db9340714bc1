// Command collaborator runs the Collaborator agent: it evaluates each
// proposed plan's risk against the auto-approval ceiling, holds
// everything else for out-of-band human approval, and forwards approved
// plans to plans.approved (§4.3).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opsloop/sentinel/bus"
	"github.com/opsloop/sentinel/cmd/internal/bootstrap"
	"github.com/opsloop/sentinel/collaborator"
	"github.com/opsloop/sentinel/observability"
)

func main() {
	var (
		configPath string
		natsURL    string
	)

	rootCmd := &cobra.Command{
		Use:   "collaborator",
		Short: "Runs the Collaborator agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, natsURL)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config overlay file")
	rootCmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL (overrides BROKER_URL)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "collaborator: %v\n", err)
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
	logger := bs.Logger.With("agent", "collaborator")

	svc := &collaborator.Service{
		Broker: bs.Broker,
		Store:  bs.Store,
		Policy: bs.Config.Policy,
		Logger: logger,
	}

	proposedConsumer, err := bs.Broker.Consumer(ctx, bus.SpecFor(bus.ConsumerPlansProposed))
	if err != nil {
		return fmt.Errorf("acquire plans.proposed consumer: %w", err)
	}
	approvalConsumer, err := bs.Broker.Consumer(ctx, bus.SpecFor(bus.ConsumerPlansApproval))
	if err != nil {
		return fmt.Errorf("acquire plans.approval consumer: %w", err)
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

	logger.Info("collaborator started")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		bus.Run(ctx, bs.Broker, proposedConsumer, logger, 3, observability.CountHandler(metrics, "collaborator", svc.HandleProposed))
	}()
	go func() {
		defer wg.Done()
		bus.Run(ctx, bs.Broker, approvalConsumer, logger, 3, observability.CountHandler(metrics, "collaborator", svc.HandleApproval))
	}()
	wg.Wait()

	logger.Info("collaborator stopped")
	return nil
}
