package alarmsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/home-sentinel/internal/domain/alarm"
	"github.com/oshokin/home-sentinel/internal/domain/occupancy"
	"github.com/oshokin/home-sentinel/internal/transport"
	"github.com/oshokin/home-sentinel/internal/transport/membroker"
)

const (
	testPIN         = "1234"
	testArmDelay    = 20 * time.Millisecond
	testGracePeriod = 30 * time.Millisecond
	waitTimeout     = 2 * time.Second
	waitTick        = 2 * time.Millisecond
)

// masterRig is a minimal master node: state machine, occupant counter,
// and protocol instance wired together the way the node service does it.
type masterRig struct {
	machine *alarm.Machine
	counter *occupancy.Counter
	sync    *Sync
	client  *membroker.Client
}

func newMasterRig(t *testing.T, b *membroker.Broker) *masterRig {
	t.Helper()

	rig := &masterRig{
		counter: &occupancy.Counter{},
		client:  b.NewClient(),
	}
	require.NoError(t, rig.client.Connect(context.Background()))

	rig.machine = alarm.NewMachine(alarm.MachineConfig{
		PIN:         testPIN,
		ArmDelay:    testArmDelay,
		GracePeriod: testGracePeriod,
		Callbacks: alarm.Callbacks{
			StateChange: func(s alarm.State) { rig.sync.PublishState(s) },
		},
	})

	rig.sync = NewMaster("pi1", rig.client, MasterHandlers{
		Trigger: func(_, _ string) { rig.machine.Trigger() },
		DoorEvent: func(_ string, isOpen bool) {
			if isOpen {
				rig.machine.DoorOpened()
			} else {
				rig.machine.DoorClosed()
			}
		},
		OccupancyDelta: func(_ string, delta int) {
			rig.sync.PublishOccupancyCount(rig.counter.ApplyDelta(delta))
		},
	}, nil)
	require.NoError(t, rig.sync.Start())

	return rig
}

// armMaster brings the master machine into ARMED and waits until every
// probe slave has observed the broadcast, so later assertions cannot race
// the arm timer's notification goroutine.
func armMaster(t *testing.T, master *masterRig, probes ...*slaveRig) {
	t.Helper()

	for _, k := range testPIN {
		master.machine.HandleKey(k)
	}

	master.machine.HandleKey(alarm.KeySubmit)
	require.Eventually(t,
		func() bool { return master.machine.State() == alarm.StateArmed },
		waitTimeout, waitTick)

	for _, p := range probes {
		require.Eventually(t,
			func() bool { return p.sync.KnownState() == alarm.StateArmed },
			waitTimeout, waitTick)
	}
}

// slaveRig is a minimal slave node: protocol instance plus the cached
// occupant count and a record of observed state broadcasts.
type slaveRig struct {
	sync    *Sync
	counter *occupancy.Counter
	client  *membroker.Client

	mu     sync.Mutex
	states []alarm.State
}

func newSlaveRig(t *testing.T, b *membroker.Broker, nodeID string) *slaveRig {
	t.Helper()

	rig := &slaveRig{
		counter: &occupancy.Counter{},
		client:  b.NewClient(),
	}
	require.NoError(t, rig.client.Connect(context.Background()))

	rig.sync = NewSlave(nodeID, rig.client, SlaveHandlers{
		State: func(s alarm.State) {
			rig.mu.Lock()
			rig.states = append(rig.states, s)
			rig.mu.Unlock()
		},
		OccupancyCount: rig.counter.SetAbsolute,
	}, nil)
	require.NoError(t, rig.sync.Start())

	return rig
}

func (r *slaveRig) observedStates() []alarm.State {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]alarm.State, len(r.states))
	copy(out, r.states)

	return out
}

// TestEndToEnd_SlaveTriggerReachesEveryNode covers the core scenario:
// slave A sends a trigger while the master is ARMED; the master enters
// ALARMING and broadcasts it; slave B observes the new state without
// sending anything itself.
func TestEndToEnd_SlaveTriggerReachesEveryNode(t *testing.T) {
	t.Parallel()

	b := membroker.New()
	master := newMasterRig(t, b)
	slaveA := newSlaveRig(t, b, "pi2")
	slaveB := newSlaveRig(t, b, "pi3")

	armMaster(t, master, slaveA, slaveB)

	slaveA.sync.PublishTrigger("gyroscope displacement")

	require.Equal(t, alarm.StateAlarming, master.machine.State())
	require.Equal(t, alarm.StateAlarming, slaveA.sync.KnownState())
	require.Equal(t, alarm.StateAlarming, slaveB.sync.KnownState())
}

// TestOccupancyConvergence verifies master rebroadcast: every slave's
// cached count equals the broadcast value regardless of who sent the delta.
func TestOccupancyConvergence(t *testing.T) {
	t.Parallel()

	b := membroker.New()
	master := newMasterRig(t, b)
	slaveA := newSlaveRig(t, b, "pi2")
	slaveB := newSlaveRig(t, b, "pi3")

	slaveA.sync.PublishOccupancyDelta(+1)
	require.Equal(t, 1, master.counter.Count())
	require.Equal(t, 1, slaveA.counter.Count())
	require.Equal(t, 1, slaveB.counter.Count())

	slaveB.sync.PublishOccupancyDelta(-1)
	slaveB.sync.PublishOccupancyDelta(-1)

	require.Equal(t, 0, master.counter.Count())
	require.Equal(t, 0, slaveA.counter.Count())
	require.Equal(t, 0, slaveB.counter.Count())
}

// TestLateJoiner_GetsLatestRetainedStateOnly subscribes a slave after
// several transitions; it must see the single latest state, not history.
func TestLateJoiner_GetsLatestRetainedStateOnly(t *testing.T) {
	t.Parallel()

	b := membroker.New()
	master := newMasterRig(t, b)
	probe := newSlaveRig(t, b, "pi2")

	armMaster(t, master, probe)
	master.machine.Trigger()
	require.Equal(t, alarm.StateAlarming, master.machine.State())
	require.Equal(t, alarm.StateAlarming, probe.sync.KnownState())

	late := newSlaveRig(t, b, "pi3")
	require.Equal(t, alarm.StateAlarming, late.sync.KnownState())
	require.Equal(t, []alarm.State{alarm.StateAlarming}, late.observedStates())
}

// TestDisconnectedSlave_DropsTrigger verifies fire-and-forget: a trigger
// published while the transport is down is dropped, not queued.
func TestDisconnectedSlave_DropsTrigger(t *testing.T) {
	t.Parallel()

	b := membroker.New()
	master := newMasterRig(t, b)
	slave := newSlaveRig(t, b, "pi2")

	slave.client.Drop()
	require.False(t, slave.sync.Connected())

	slave.sync.PublishTrigger("door open too long")
	require.Equal(t, alarm.StateDisarmed, master.machine.State())

	// The drop is permanent: reconnecting must not replay the trigger.
	slave.client.Restore()
	require.Equal(t, alarm.StateDisarmed, master.machine.State())
}

// TestSlaveReconnect_ResyncsFromRetained drops a slave's link, changes
// state on the master, and checks the slave converges on reconnect via the
// retained broadcast alone.
func TestSlaveReconnect_ResyncsFromRetained(t *testing.T) {
	t.Parallel()

	b := membroker.New()
	master := newMasterRig(t, b)
	slave := newSlaveRig(t, b, "pi2")

	slave.client.Drop()
	master.machine.Trigger()
	require.Equal(t, alarm.StateDisarmed, slave.sync.KnownState())

	slave.client.Restore()
	require.Equal(t, alarm.StateAlarming, slave.sync.KnownState())
}

// TestDoorEventFlow drives the master's grace machinery from a slave door.
func TestDoorEventFlow(t *testing.T) {
	t.Parallel()

	b := membroker.New()
	master := newMasterRig(t, b)
	slave := newSlaveRig(t, b, "pi2")

	armMaster(t, master, slave)

	slave.sync.PublishDoorEvent(true)
	require.Equal(t, alarm.StateGrace, master.machine.State())
	require.Equal(t, alarm.StateGrace, slave.sync.KnownState())

	slave.sync.PublishDoorEvent(false)
	require.Equal(t, alarm.StateArmed, master.machine.State())
	require.Equal(t, alarm.StateArmed, slave.sync.KnownState())
}

// TestMalformedPayloads_AreDiscarded publishes garbage on every protocol
// topic and expects no state movement and no panic.
func TestMalformedPayloads_AreDiscarded(t *testing.T) {
	t.Parallel()

	b := membroker.New()
	master := newMasterRig(t, b)
	slave := newSlaveRig(t, b, "pi2")

	intruder := b.NewClient()
	require.NoError(t, intruder.Connect(context.Background()))

	for _, topic := range []string{
		TopicTrigger,
		DoorTopic("pi2"),
		TopicState,
		TopicOccupancyDelta,
		TopicOccupancyAbsolute,
	} {
		require.NoError(t, intruder.Publish(topic, transport.QoSAtLeastOnce, false, []byte("{broken")))
	}

	// An unknown state value is also discarded.
	require.NoError(t, intruder.Publish(TopicState, transport.QoSAtLeastOnce, false,
		[]byte(`{"source":"pi1","state":"PANIC"}`)))

	require.Equal(t, alarm.StateDisarmed, master.machine.State())
	require.Equal(t, alarm.StateDisarmed, slave.sync.KnownState())
	require.Equal(t, 0, master.counter.Count())
}

// TestRoleGuards ensures publish calls on the wrong role are silent no-ops.
func TestRoleGuards(t *testing.T) {
	t.Parallel()

	b := membroker.New()
	master := newMasterRig(t, b)
	slave := newSlaveRig(t, b, "pi2")

	// A master never requests transitions from itself.
	master.sync.PublishTrigger("nope")
	master.sync.PublishOccupancyDelta(1)
	require.Equal(t, alarm.StateDisarmed, master.machine.State())
	require.Equal(t, 0, master.counter.Count())

	// A slave never originates state.
	slave.sync.PublishState(alarm.StateAlarming)
	slave.sync.PublishOccupancyCount(7)
	require.Equal(t, alarm.StateDisarmed, slave.sync.KnownState())
	require.Equal(t, 0, slave.counter.Count())
}
