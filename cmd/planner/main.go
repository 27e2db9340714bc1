// Command planner runs the Planner agent: it consumes incidents.new,
// synthesizes a remediation plan (enriched where confidence allows, quota
// permitting), and publishes plans.proposed (§4.1, §4.2).
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
	"github.com/opsloop/sentinel/enrich"
	"github.com/opsloop/sentinel/learner"
	"github.com/opsloop/sentinel/observability"
	"github.com/opsloop/sentinel/plan"
	"github.com/opsloop/sentinel/planner"
	"github.com/opsloop/sentinel/quota"
)

func main() {
	var (
		configPath string
		natsURL    string
	)

	rootCmd := &cobra.Command{
		Use:   "planner",
		Short: "Runs the Planner agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, natsURL)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config overlay file")
	rootCmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL (overrides BROKER_URL)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "planner: %v\n", err)
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
	logger := bs.Logger.With("agent", "planner")

	// History lookup reuses the store's brute-force similarity scan, and
	// web search is the only lookup with a real external endpoint in the
	// retrieval pack (§4.2). Logs and recent-code-change lookups have no
	// concrete source implementation anywhere in the system yet — no Loki
	// or git-history client exists to ground one against — so Gather
	// degrades gracefully with those two sources left nil rather than
	// wired against a fabricated client.
	enricher := &enrich.Enricher{
		History: &enrich.StoreHistoryIndexSource{
			Store: bs.Store,
			Embed: &learner.LLMEmbedder{Client: bs.LLM},
		},
		Web: enrich.NewHTTPPublicKnowledgeSource(
			bs.Config.Enrich.PublicKnowledgeURL,
			bs.Config.Enrich.PublicKnowledgeKey,
			nil,
		),
		ConfidenceThreshold: bs.Config.Policy.ConfidenceThreshold,
		HoursBack:           24,
	}

	svc := &planner.Service{
		Broker:   bs.Broker,
		LLM:      bs.LLM,
		Cache:    plan.NewInMemoryCache(),
		Quota:    quota.New(quota.Limits{Daily: bs.Config.Quota.Daily, Hourly: bs.Config.Quota.Hourly}),
		Enricher: enricher,
		Policy:   bs.Config.Policy,
		Logger:   logger,
	}

	consumer, err := bs.Broker.Consumer(ctx, bus.SpecFor(bus.ConsumerIncidentsNew))
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

	logger.Info("planner started", "consumer", bus.ConsumerIncidentsNew)
	bus.Run(ctx, bs.Broker, consumer, logger, 3, observability.CountHandler(metrics, "planner", svc.Handle))
	logger.Info("planner stopped")
	return nil
}

