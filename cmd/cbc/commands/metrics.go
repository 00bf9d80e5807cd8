package commands

import (
	"github.com/spf13/cobra"
)

func newMetricsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Expose build metrics",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the Prometheus endpoint until interrupted",
		Long: `Serve the metrics registry over HTTP at telemetry.metrics.listen_address.
The registry only holds what this process records, so this is mostly
useful alongside lint --watch or when scraping store query counters
during long runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, ctx, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			e.logger.Info().
				Str("address", e.cfg.Telemetry.Metrics.ListenAddress).
				Msg("Serving metrics")
			return e.tel.Metrics.Serve(ctx)
		},
	})
	return cmd
}
