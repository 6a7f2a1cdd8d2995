package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/home-sentinel/internal/config"
	"github.com/oshokin/home-sentinel/internal/service/node"
	"github.com/oshokin/home-sentinel/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for running a controller node.
	rootCmd = &cobra.Command{
		Use:   "home-sentinel",
		Short: "Run a home alarm controller node.",
		Long: `Starts one controller node of the distributed home alarm system.

The node's identity, role (master or slave), broker endpoint, and alarm
timings come from the configuration file. The master owns the alarm state
machine and the siren; slaves report their sensors over the broker and
mirror the master's broadcasts. With simulation enabled, sensors and the
keypad are driven from an interactive console.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return node.Run(ctx, &node.Options{
				ConfigPath: configPath,
			})
		},
	}
)

// Execute runs the home-sentinel CLI and exits with non-zero status on error.
func Execute() {
	rootCmd.AddCommand(version.Command())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
}
