// Command permits ingests Montreal construction permit data from the city's
// open-data portal, computes per-borough processing-time statistics, and
// writes JSON snapshots under the output directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mstlaur1/montreal-score/internal/adapter/ckan"
	"github.com/mstlaur1/montreal-score/internal/adapter/filestore"
	httpadapter "github.com/mstlaur1/montreal-score/internal/adapter/http"
	kafkaadapter "github.com/mstlaur1/montreal-score/internal/adapter/kafka"
	"github.com/mstlaur1/montreal-score/internal/config"
	"github.com/mstlaur1/montreal-score/internal/observability"
	"github.com/mstlaur1/montreal-score/internal/pipeline"
)

type options struct {
	full      bool
	year      int
	statsOnly bool
	outputDir string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "permits",
		Short: "Ingest Montreal construction permits and compute borough statistics",
		Long: `Fetches construction permit records from the Montreal open-data portal,
normalizes them, computes per-borough processing-time statistics, and writes
raw, processed, and statistics JSON snapshots to the output directory.

Without flags the previous and current year are ingested.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.full, "full", false, "ingest every year since 1990")
	cmd.Flags().IntVar(&opts.year, "year", 0, "ingest a single year")
	cmd.Flags().BoolVar(&opts.statsOnly, "stats-only", false, "recompute statistics from cached raw snapshots")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "data", "directory for JSON snapshots")

	return cmd
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	source := ckan.NewClient(cfg, logger, metrics)
	store := filestore.NewStore(opts.outputDir, logger, metrics)

	// Publishing is feature-flagged via KAFKA_BROKERS / PUBLISH_ENABLED.
	var publisher pipeline.Publisher
	if cfg.PublishEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publisher = writer
		metrics.PublishEnabled.Set(1)
		logger.Info("publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("publishing disabled")
	}

	p := pipeline.New(source, store, publisher, os.Stdout, logger, metrics)

	// The ops server is optional; a one-shot run has no addr configured and
	// skips it entirely.
	if cfg.MetricsAddr != "" {
		srv := httpadapter.NewServer(cfg.MetricsAddr, p, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("ops server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("ops server shutdown error", "error", err)
			}
		}()
	}

	years := pipeline.SelectYears(opts.full, opts.year)
	manifest, err := p.Run(ctx, pipeline.Options{Years: years, StatsOnly: opts.statsOnly})
	if err != nil {
		return err
	}

	logger.Info("done",
		"run_id", manifest.RunID,
		"years", len(manifest.Years),
		"output_dir", opts.outputDir,
	)
	return nil
}
