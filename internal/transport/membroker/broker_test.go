package membroker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/home-sentinel/internal/transport"
)

// recorder collects delivered messages.
type recorder struct {
	mu       sync.Mutex
	topics   []string
	payloads []string
}

func (r *recorder) handler() transport.Handler {
	return func(topic string, payload []byte) {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.topics = append(r.topics, topic)
		r.payloads = append(r.payloads, string(payload))
	}
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.payloads))
	copy(out, r.payloads)

	return out
}

func connectedClient(t *testing.T, b *Broker) *Client {
	t.Helper()

	c := b.NewClient()
	require.NoError(t, c.Connect(context.Background()))

	return c
}

// TestPublishSubscribe delivers to matching subscribers only.
func TestPublishSubscribe(t *testing.T) {
	t.Parallel()

	b := New()
	pub := connectedClient(t, b)
	sub := connectedClient(t, b)

	var rec recorder

	require.NoError(t, sub.Subscribe("alarm/state", transport.QoSAtLeastOnce, rec.handler()))
	require.NoError(t, pub.Publish("alarm/state", transport.QoSAtLeastOnce, false, []byte("ARMED")))
	require.NoError(t, pub.Publish("alarm/trigger", transport.QoSAtLeastOnce, false, []byte("nope")))

	require.Equal(t, []string{"ARMED"}, rec.messages())
}

// TestRetained_LateSubscriberGetsLatestOnly publishes several retained
// values before anyone subscribes; the late joiner sees the last one only.
func TestRetained_LateSubscriberGetsLatestOnly(t *testing.T) {
	t.Parallel()

	b := New()
	pub := connectedClient(t, b)

	for _, s := range []string{"DISARMED", "ARMING", "ARMED"} {
		require.NoError(t, pub.Publish("alarm/state", transport.QoSAtLeastOnce, true, []byte(s)))
	}

	var rec recorder

	late := connectedClient(t, b)
	require.NoError(t, late.Subscribe("alarm/state", transport.QoSAtLeastOnce, rec.handler()))

	require.Equal(t, []string{"ARMED"}, rec.messages())
}

// TestWildcard_SingleLevel checks "+" matches exactly one level.
func TestWildcard_SingleLevel(t *testing.T) {
	t.Parallel()

	require.True(t, matches("alarm/door/+", "alarm/door/pi2"))
	require.True(t, matches("alarm/door/+", "alarm/door/pi3"))
	require.False(t, matches("alarm/door/+", "alarm/door"))
	require.False(t, matches("alarm/door/+", "alarm/door/pi2/extra"))
	require.False(t, matches("alarm/door/+", "occupancy/delta"))
}

// TestDisconnected_PublishFailsAndNothingDelivered verifies the dropped
// link behaves like an MQTT outage on both sides.
func TestDisconnected_PublishFailsAndNothingDelivered(t *testing.T) {
	t.Parallel()

	b := New()
	pub := connectedClient(t, b)
	sub := connectedClient(t, b)

	var rec recorder

	require.NoError(t, sub.Subscribe("alarm/state", transport.QoSAtLeastOnce, rec.handler()))

	pub.Drop()
	require.ErrorIs(t,
		pub.Publish("alarm/state", transport.QoSAtLeastOnce, false, []byte("x")),
		transport.ErrNotConnected)

	sub.Drop()
	pub.Restore()
	require.NoError(t, pub.Publish("alarm/state", transport.QoSAtLeastOnce, false, []byte("missed")))
	require.Empty(t, rec.messages())
}

// TestRestore_RedeliversRetained simulates reconnect catch-up: the
// subscriber missed a retained update while down and receives it on Restore.
func TestRestore_RedeliversRetained(t *testing.T) {
	t.Parallel()

	b := New()
	pub := connectedClient(t, b)
	sub := connectedClient(t, b)

	var rec recorder

	require.NoError(t, sub.Subscribe("alarm/state", transport.QoSAtLeastOnce, rec.handler()))

	sub.Drop()
	require.NoError(t, pub.Publish("alarm/state", transport.QoSAtLeastOnce, true, []byte("ALARMING")))
	require.Empty(t, rec.messages())

	sub.Restore()
	require.Equal(t, []string{"ALARMING"}, rec.messages())
}
