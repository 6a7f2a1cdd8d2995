package node

import (
	"context"
	"fmt"

	"github.com/oshokin/home-sentinel/internal/config"
	"github.com/oshokin/home-sentinel/internal/logger"
	"github.com/oshokin/home-sentinel/internal/transport/mqtt"
)

// Options carries the command-line inputs for a node run.
type Options struct {
	// ConfigPath points to the YAML configuration file.
	ConfigPath string
}

// Run loads the configuration, builds a node for the configured role, and
// keeps it running until the context is cancelled. With simulation enabled
// the run is driven by an interactive console instead.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "home-sentinel")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cfg.LogLevel != "" {
		level, ok := logger.ParseLogLevel(cfg.LogLevel)
		if !ok {
			return fmt.Errorf("unknown log level %q", cfg.LogLevel)
		}

		logger.SetLevel(level)
	}

	if err = ensureSingleInstance(); err != nil {
		return err
	}

	ch := mqtt.NewClient(mqtt.Options{
		BrokerURL: cfg.BrokerAddress(),
		ClientID:  "home-sentinel-" + cfg.NodeID,
		Username:  cfg.Broker.Username,
		Password:  cfg.Broker.Password,
		Logger:    logger.Logger().Named("mqtt"),
	})

	n := newNode(cfg, ch)

	if err = n.Start(ctx); err != nil {
		return err
	}
	defer n.Stop()

	logger.InfoKV(ctx, "node is up",
		"node_id", cfg.NodeID,
		"role", string(cfg.Role),
		"simulation", cfg.Simulation)

	if cfg.Simulation {
		return runConsole(ctx, n)
	}

	<-ctx.Done()

	return nil
}
