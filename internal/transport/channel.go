package transport

import (
	"context"
	"errors"
)

// Handler consumes a message delivered on a subscribed topic filter.
// Handlers run on the transport's delivery goroutine and must complete in
// bounded time: acquire a lock, mutate, release, return.
type Handler func(topic string, payload []byte)

// Delivery qualities, mirroring MQTT QoS levels.
const (
	// QoSAtMostOnce delivers with no acknowledgement.
	QoSAtMostOnce byte = 0
	// QoSAtLeastOnce delivers with acknowledgement and possible duplicates.
	QoSAtLeastOnce byte = 1
)

// ErrNotConnected is returned by Publish and Subscribe while the transport
// has no broker connection. Callers drop the message and log; the protocol
// has no publish retry of its own.
var ErrNotConnected = errors.New("transport is not connected")

// Channel is the pub/sub client every node synchronizes through. The
// retained flag on Publish asks the broker to store the last value per
// topic and hand it to any later subscriber, which is what lets a node
// that joins late converge without a bootstrap exchange.
type Channel interface {
	// Connect establishes the broker session.
	Connect(ctx context.Context) error
	// Subscribe registers a handler for a topic filter
	// ("+" matches a single level).
	Subscribe(topic string, qos byte, h Handler) error
	// Publish sends a payload; fire-and-forget, never blocks on delivery.
	Publish(topic string, qos byte, retain bool, payload []byte) error
	// Connected reports broker connectivity; a sustained false is the
	// operator-visible liveness warning.
	Connected() bool
	// Close tears the session down.
	Close()
}
