package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wesleyorama2/steadyrate/internal/config"
	"github.com/wesleyorama2/steadyrate/internal/performance/engine"
	"github.com/wesleyorama2/steadyrate/internal/performance/exporter"
	"github.com/wesleyorama2/steadyrate/internal/performance/metrics"
	"github.com/wesleyorama2/steadyrate/internal/performance/output"
	"github.com/wesleyorama2/steadyrate/internal/performance/report"
)

// defaultConfigPath is used when no config argument is given.
const defaultConfigPath = "config.json"

// ErrThresholdsFailed is returned by run when --enforce-thresholds is set
// and at least one threshold failed.
var ErrThresholdsFailed = errors.New("thresholds failed")

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [config]",
		Short: "Run a load test from a configuration file",
		Long: `Run issues iterations at the configured rate for the configured duration.
Each iteration requests every endpoint in order. When the run ends the
text summary is printed to stdout and an HTML summary is written to
--out-dir.

  steadyrate run                       # uses ./config.json
  steadyrate run stress.yaml --out-dir reports
  STEADYRATE_QUIET=true steadyrate run config.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadTest(cmd, args, v)
		},
	}

	cmd.Flags().String("out-dir", ".", "directory for the HTML summary")
	cmd.Flags().Bool("no-html", false, "skip writing the HTML summary")
	cmd.Flags().BoolP("quiet", "q", false, "suppress progress output")
	cmd.Flags().Bool("enforce-thresholds", false, "exit non-zero when a threshold fails")
	cmd.Flags().String("metrics-addr", "", "serve live Prometheus metrics on this address during the run")

	return cmd
}

func configPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return defaultConfigPath
}

// runLoadTest loads the config, runs the engine and writes both summaries.
func runLoadTest(cmd *cobra.Command, args []string, v *viper.Viper) error {
	logger, err := newLogger(cmd.ErrOrStderr(), v.GetString("log-level"), v.GetBool("no-color"))
	if err != nil {
		return err
	}

	path := configPath(args)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("failed to load config")
		return err
	}

	console := output.NewConsole(output.ConsoleConfig{
		Out:     cmd.OutOrStdout(),
		Err:     cmd.ErrOrStderr(),
		NoColor: v.GetBool("no-color"),
		Quiet:   v.GetBool("quiet"),
	})

	agg := metrics.NewAggregator()
	eng, err := engine.NewEngine(cfg,
		engine.WithLogger(logger),
		engine.WithAggregator(agg),
		engine.WithProgress(console.PrintProgress, time.Second),
	)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create engine")
		return err
	}

	if addr := v.GetString("metrics-addr"); addr != "" {
		srv, err := exporter.Start(addr, exporter.NewCollector(agg, cfg.Name), logger)
		if err != nil {
			logger.Error().Err(err).Str("addr", addr).Msg("failed to start metrics server")
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn().Err(err).Msg("metrics server shutdown")
			}
		}()
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	console.PrintHeader(cfg.Name, cfg.RPS, cfg.Duration, len(cfg.Endpoints))

	result, err := eng.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("run failed")
		return err
	}
	if result.Interrupted {
		logger.Warn().Msg("run interrupted, reporting partial results")
	}

	html, text, err := report.Render(result)
	if err != nil {
		logger.Error().Err(err).Msg("failed to render summary")
		return err
	}

	if !v.GetBool("no-html") {
		written, err := output.WriteHTML(v.GetString("out-dir"), result, html)
		if err != nil {
			logger.Error().Err(err).Msg("failed to write HTML summary")
			return err
		}
		console.PrintFileWritten(written)
	}

	console.PrintSummary(text)

	if !result.Passed && v.GetBool("enforce-thresholds") {
		return ErrThresholdsFailed
	}
	return nil
}
