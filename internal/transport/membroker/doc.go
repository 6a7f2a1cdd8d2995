// Package membroker is an in-process pub/sub broker with MQTT-like
// retained-message and "+" wildcard semantics. It backs protocol tests and
// single-machine simulation without a real broker.
package membroker
