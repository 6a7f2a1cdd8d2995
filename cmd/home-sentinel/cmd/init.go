package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/home-sentinel/internal/config"
)

var (
	initNodeID     string
	initRole       string
	initBrokerHost string
	initPIN        string
	initSimulation bool

	// initCmd writes a settings file for a new node, so provisioning a
	// controller is a single command instead of hand-written YAML.
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a settings file for a new controller node.",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := &config.Config{
				NodeID: initNodeID,
				Role:   config.Role(initRole),
				Broker: config.Broker{
					Host: initBrokerHost,
				},
				Alarm: config.Alarm{
					PIN: initPIN,
				},
				Simulation: initSimulation,
			}

			if err := config.Save(configPath, cfg); err != nil {
				return fmt.Errorf("write settings: %w", err)
			}

			fmt.Printf("settings written to %s\n", configPath)

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	initCmd.Flags().StringVar(&initNodeID, "node-id", "", "node identifier, e.g. pi1")
	initCmd.Flags().StringVar(&initRole, "role", "slave", `node role ("master" or "slave")`)
	initCmd.Flags().StringVar(&initBrokerHost, "broker-host", "localhost", "MQTT broker host")
	initCmd.Flags().StringVar(&initPIN, "pin", "", "alarm PIN (master only)")
	initCmd.Flags().BoolVar(&initSimulation, "simulation", false, "enable simulated devices and the console")

	initCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")

	rootCmd.AddCommand(initCmd)
}
