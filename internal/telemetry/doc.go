// Package telemetry batches sensor and actuator samples and publishes
// them per node as JSON arrays for downstream collectors. Delivery is
// best-effort; a batch produced while the broker link is down is dropped.
package telemetry
