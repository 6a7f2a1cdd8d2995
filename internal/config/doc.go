// Package config loads, validates, and persists per-node YAML settings:
// node identity and role, MQTT broker endpoint, alarm state machine
// tunables, and telemetry publisher options. Missing optional values are
// filled with defaults during validation.
package config
