// Package transport defines the pub/sub channel abstraction the nodes
// synchronize through. The production backend is the MQTT client in the
// mqtt subpackage; the membroker subpackage provides an in-process broker
// with the same retained-message semantics for tests and simulation.
package transport
