package cmd

import (
	"context"

	"github.com/smazurov/camview/internal/logging"
	"github.com/spf13/cobra"
)

// CreateSweepCmd creates the sweep command.
func CreateSweepCmd(opts func() *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Kill orphaned player processes",
		Long: `Terminates every process matching the player pattern, for example players left behind ` +
			`by a crashed host. Survivors of SIGTERM are killed after the settle delay.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			o := opts()
			logger := logging.GetLogger("main")

			ctx, cancel := context.WithTimeout(c.Context(), o.CleanupTimeout())
			defer cancel()

			// An empty registry's cleanup is exactly the verified sweep.
			registry := o.NewRegistry(nil)
			registry.Cleanup(ctx)

			logger.Info("Sweep finished")
			return ctx.Err()
		},
	}
}
