package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wesleyorama2/steadyrate/internal/config"
	"github.com/wesleyorama2/steadyrate/internal/performance/check"
)

func newValidateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config]",
		Short: "Validate a configuration file and print the resolved run parameters",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), v.GetString("log-level"), v.GetBool("no-color"))
			if err != nil {
				return err
			}

			path := configPath(args)
			cfg, err := config.LoadConfig(path)
			if err != nil {
				logger.Debug().Err(err).Str("path", path).Msg("config rejected")
				return err
			}

			return printResolved(cmd.OutOrStdout(), path, cfg)
		},
	}
}

func printResolved(w io.Writer, path string, cfg *config.RunConfig) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "config:\t%s\n", path)
	fmt.Fprintf(tw, "name:\t%s\n", cfg.Name)
	fmt.Fprintf(tw, "rps:\t%g\n", cfg.RPS)
	fmt.Fprintf(tw, "duration:\t%s\n", cfg.Duration)
	fmt.Fprintf(tw, "planned iterations:\t%d\n", cfg.PlannedIterations())
	fmt.Fprintf(tw, "vus:\t%d (max %d)\n", cfg.VUs, cfg.MaxVUs)
	fmt.Fprintf(tw, "sleep:\t%s\n", cfg.Sleep)
	fmt.Fprintf(tw, "request timeout:\t%s\n", cfg.RequestTimeout())

	var names []string
	for _, c := range check.StandardChecks(cfg.Timeouts) {
		names = append(names, c.Name)
	}
	fmt.Fprintf(tw, "checks:\t%s\n", strings.Join(names, ", "))

	headers := make([]string, 0, len(cfg.Headers))
	for k := range cfg.Headers {
		headers = append(headers, k)
	}
	sort.Strings(headers)
	fmt.Fprintf(tw, "headers:\t%s\n", strings.Join(headers, ", "))

	fmt.Fprintf(tw, "endpoints:\t%d\n", len(cfg.Endpoints))
	for _, e := range cfg.Endpoints {
		fmt.Fprintf(tw, "\t%s\n", e)
	}

	metrics := make([]string, 0, len(cfg.Thresholds))
	for m := range cfg.Thresholds {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)
	fmt.Fprintln(tw, "thresholds:\t")
	for _, m := range metrics {
		fmt.Fprintf(tw, "\t%s: %s\n", m, strings.Join(cfg.Thresholds[m], ", "))
	}

	return tw.Flush()
}
