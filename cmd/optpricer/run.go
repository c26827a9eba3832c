package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"optpricer/internal/infrastructure"
	"optpricer/internal/operations"
	transport "optpricer/internal/transport/http"
	"optpricer/pkg/contracts"
	"optpricer/pkg/contracts/domain"
)

type runOptions struct {
	asOf        string
	metricsAddr string
	outputFile  string
	xlsx        bool
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch positions, price them and export the merged table",
		Long: `Run the valuation pipeline for one as-of date:

  fetch -> normalize -> align expiries -> overrides -> implied vol
        -> payloads -> price -> merge -> export

Examples:
  optpricer run
  optpricer run --as-of 2025-07-01 --metrics-addr 127.0.0.1:9464`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd.Context(), global, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.asOf, "as-of", "", "valuation date YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address while running")
	cmd.Flags().StringVar(&opts.outputFile, "output", "", "merged CSV file name (overrides pipeline.output_file)")
	cmd.Flags().BoolVar(&opts.xlsx, "xlsx", false, "also write the merged table as a workbook")
	return cmd
}

func runPipeline(ctx context.Context, global *globalOptions, opts *runOptions, out io.Writer) error {
	cfg, logger, err := setup(global)
	if err != nil {
		return err
	}
	defer logger.Close()

	if opts.asOf != "" {
		cfg.Pipeline.AsOfDate = opts.asOf
	}
	if opts.outputFile != "" {
		cfg.Pipeline.OutputFile = opts.outputFile
	}
	if opts.xlsx {
		cfg.Pipeline.OutputXLSX = true
	}
	if opts.metricsAddr != "" {
		cfg.Telemetry.MetricsAddr = opts.metricsAddr
		cfg.Telemetry.EnableMetrics = true
	}

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg), logger.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			infrastructure.WithError(logger.Logger, err).WarnContext(ctx, "telemetry shutdown failed")
		}
	}()

	metrics, err := infrastructure.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return err
	}

	pipeline, err := operations.NewPipeline(cfg, operations.Dependencies{
		Providers: providers,
		Metrics:   metrics,
	}, logger.Logger)
	if err != nil {
		return err
	}

	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		srv := transport.NewServer(transport.ServerConfig{
			Addr:    addr,
			Version: contracts.Version,
			Metrics: providers.PrometheusHTTP,
			Tracker: pipeline,
		}, logger.Logger)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := srv.Shutdown(context.Background()); err != nil {
				infrastructure.WithError(logger.Logger, err).WarnContext(ctx, "status server shutdown failed")
			}
		}()
	}

	summary, _, err := pipeline.Run(ctx)
	printSummary(out, summary)
	return err
}

func printSummary(w io.Writer, s *domain.RunSummary) {
	if s == nil {
		return
	}
	fmt.Fprintf(w, "run %s\n", s.RunID)
	fmt.Fprintf(w, "  initial rows:     %d\n", s.InitialRows)
	fmt.Fprintf(w, "  normalized rows:  %d\n", s.NormalizedRows)
	fmt.Fprintf(w, "  aligned rows:     %d\n", s.AlignedRows)
	fmt.Fprintf(w, "  ivol requests:    %d (%d failed)\n", s.IVolRequests, s.IVolFailures)
	fmt.Fprintf(w, "  payloads:         %d\n", s.Payloads)
	fmt.Fprintf(w, "  successful calls: %d\n", s.PriceSuccesses)
	fmt.Fprintf(w, "  failed calls:     %d\n", s.PriceFailures)
	fmt.Fprintf(w, "  merged rows:      %d\n", s.MergedRows)
	if s.StoppedAt != "" {
		fmt.Fprintf(w, "  stopped at %s: %s\n", s.StoppedAt, s.StoppedBecause)
	}
	if s.OutputFile != "" {
		fmt.Fprintf(w, "  output:           %s\n", s.OutputFile)
	}
}
