package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Role determines which side of the synchronization protocol a node runs.
type Role string

const (
	// RoleMaster owns the alarm state machine, the siren, and the occupancy count.
	RoleMaster Role = "master"
	// RoleSlave mirrors broadcast state and requests transitions from the master.
	RoleSlave Role = "slave"
)

// Broker holds MQTT broker connection parameters shared by all nodes.
type Broker struct {
	// Host is the broker hostname or IP address.
	Host string `yaml:"host"`
	// Port is the broker TCP port.
	Port int `yaml:"port"`
	// Username authenticates the client if the broker requires it.
	Username string `yaml:"username"`
	// Password authenticates the client if the broker requires it.
	Password string `yaml:"password"`
}

// Alarm holds the state machine tunables owned by the master node.
type Alarm struct {
	// PIN is the secret that arms and disarms the system.
	PIN string `yaml:"pin"`
	// ArmDelay is the countdown between ARMING and ARMED.
	ArmDelay time.Duration `yaml:"arm_delay"`
	// GracePeriod is the countdown between GRACE and ALARMING.
	GracePeriod time.Duration `yaml:"grace_period"`
	// DoorOpenDelay is how long a door may stay open while DISARMED
	// before the door-open escalation fires.
	DoorOpenDelay time.Duration `yaml:"door_open_delay"`
}

// Telemetry holds the batching publisher tunables.
type Telemetry struct {
	// Enabled toggles the telemetry publisher entirely.
	Enabled bool `yaml:"enabled"`
	// FlushInterval is how often buffered samples are published.
	FlushInterval time.Duration `yaml:"flush_interval"`
	// BatchSize flushes the buffer early once this many samples accumulate.
	BatchSize int `yaml:"batch_size"`
}

// Config holds the complete settings for one controller node.
type Config struct {
	// NodeID identifies this node in message payloads and topics (e.g. "pi1").
	NodeID string `yaml:"node_id"`
	// Role is "master" or "slave".
	Role Role `yaml:"role"`
	// Broker is the shared MQTT broker every node connects to.
	Broker Broker `yaml:"broker"`
	// Alarm configures the state machine; only the master reads it.
	Alarm Alarm `yaml:"alarm"`
	// Telemetry configures the batching sensor publisher.
	Telemetry Telemetry `yaml:"telemetry"`
	// Simulation runs the node with simulated devices and the interactive console.
	Simulation bool `yaml:"simulation"`
	// LogLevel sets the minimum log level (debug, info, warn, error, fatal).
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default filename for node settings.
	DefaultConfigFilename = "home-sentinel.yaml"

	// DefaultBrokerPort is the standard MQTT port.
	DefaultBrokerPort = 1883

	// DefaultArmDelay is the default ARMING countdown.
	DefaultArmDelay = 10 * time.Second

	// DefaultGracePeriod is the default GRACE countdown.
	DefaultGracePeriod = 30 * time.Second

	// DefaultDoorOpenDelay is the default door-open escalation delay.
	DefaultDoorOpenDelay = 5 * time.Second

	// DefaultTelemetryFlushInterval is the default publish interval for batched samples.
	DefaultTelemetryFlushInterval = 5 * time.Second

	// DefaultTelemetryBatchSize is the default early-flush threshold.
	DefaultTelemetryBatchSize = 32

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNodeIDRequired is returned when the node identifier is missing.
	errNodeIDRequired = errors.New("node_id must be provided")
	// errUnknownRole is returned when role is neither master nor slave.
	errUnknownRole = errors.New(`role must be "master" or "slave"`)
	// errBrokerHostRequired is returned when the broker host is missing.
	errBrokerHostRequired = errors.New("broker host must be provided")
	// errPINRequired is returned when a master node has no PIN configured.
	errPINRequired = errors.New("alarm pin must be provided on the master")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions: the file carries the alarm PIN.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults in place.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.NodeID == "" {
		return errNodeIDRequired
	}

	switch cfg.Role {
	case RoleMaster, RoleSlave:
	default:
		return errUnknownRole
	}

	if cfg.Broker.Host == "" {
		return errBrokerHostRequired
	}

	if cfg.Broker.Port <= 0 {
		cfg.Broker.Port = DefaultBrokerPort
	}

	if cfg.Role == RoleMaster && cfg.Alarm.PIN == "" {
		return errPINRequired
	}

	if cfg.Alarm.ArmDelay <= 0 {
		cfg.Alarm.ArmDelay = DefaultArmDelay
	}

	if cfg.Alarm.GracePeriod <= 0 {
		cfg.Alarm.GracePeriod = DefaultGracePeriod
	}

	if cfg.Alarm.DoorOpenDelay <= 0 {
		cfg.Alarm.DoorOpenDelay = DefaultDoorOpenDelay
	}

	if cfg.Telemetry.FlushInterval <= 0 {
		cfg.Telemetry.FlushInterval = DefaultTelemetryFlushInterval
	}

	if cfg.Telemetry.BatchSize <= 0 {
		cfg.Telemetry.BatchSize = DefaultTelemetryBatchSize
	}

	return nil
}

// BrokerAddress returns the broker endpoint as a tcp:// URI for the MQTT client.
func (c *Config) BrokerAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.Broker.Host, c.Broker.Port)
}
