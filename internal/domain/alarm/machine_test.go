package alarm

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testArmDelay    = 30 * time.Millisecond
	testGracePeriod = 40 * time.Millisecond
	waitTimeout     = 2 * time.Second
	waitTick        = 2 * time.Millisecond
)

// sirenCounter counts lifecycle callback invocations.
type sirenCounter struct {
	starts atomic.Int32
	stops  atomic.Int32
}

func (c *sirenCounter) callbacks() Callbacks {
	return Callbacks{
		AlarmStart: func() { c.starts.Add(1) },
		AlarmStop:  func() { c.stops.Add(1) },
	}
}

func newTestMachine(cb Callbacks) *Machine {
	return NewMachine(MachineConfig{
		PIN:         "1234",
		ArmDelay:    testArmDelay,
		GracePeriod: testGracePeriod,
		Callbacks:   cb,
	})
}

// submitPIN feeds the digits and the submit key.
func submitPIN(m *Machine, pin string) {
	for _, k := range pin {
		m.HandleKey(k)
	}

	m.HandleKey(KeySubmit)
}

// armAndWait brings a fresh machine into ARMED.
func armAndWait(t *testing.T, m *Machine) {
	t.Helper()

	submitPIN(m, "1234")
	require.Equal(t, StateArming, m.State())
	require.Eventually(t, func() bool { return m.State() == StateArmed }, waitTimeout, waitTick)
}

// TestTrigger_FromEveryState verifies that Trigger reaches ALARMING from
// every non-alarming state and fires the start callback exactly once,
// even when called twice in a row.
func TestTrigger_FromEveryState(t *testing.T) {
	t.Parallel()

	setups := map[string]func(t *testing.T, m *Machine){
		"disarmed": func(*testing.T, *Machine) {},
		"arming": func(t *testing.T, m *Machine) {
			submitPIN(m, "1234")
			require.Equal(t, StateArming, m.State())
		},
		"armed": armAndWait,
		"grace": func(t *testing.T, m *Machine) {
			armAndWait(t, m)
			m.DoorOpened()
			require.Equal(t, StateGrace, m.State())
		},
	}

	for name, setup := range setups {
		setup := setup

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var c sirenCounter

			m := newTestMachine(c.callbacks())
			setup(t, m)

			m.Trigger()
			m.Trigger()

			require.Equal(t, StateAlarming, m.State())
			require.Equal(t, int32(1), c.starts.Load())
			require.Zero(t, c.stops.Load())

			// Any countdown pending before the trigger must not fire afterward.
			time.Sleep(2 * testGracePeriod)
			require.Equal(t, StateAlarming, m.State())
			require.Equal(t, int32(1), c.starts.Load())
		})
	}
}

// TestCorrectPIN_ArmsAfterDelay checks DISARMED -> ARMING -> ARMED.
func TestCorrectPIN_ArmsAfterDelay(t *testing.T) {
	t.Parallel()

	m := newTestMachine(Callbacks{})
	submitPIN(m, "1234")
	require.Equal(t, StateArming, m.State())

	require.Eventually(t, func() bool { return m.State() == StateArmed }, waitTimeout, waitTick)
}

// TestCorrectPIN_CancelsArming checks that a second PIN submission while
// ARMING returns to DISARMED and the cancelled timer never fires.
func TestCorrectPIN_CancelsArming(t *testing.T) {
	t.Parallel()

	m := newTestMachine(Callbacks{})
	submitPIN(m, "1234")
	require.Equal(t, StateArming, m.State())

	submitPIN(m, "1234")
	require.Equal(t, StateDisarmed, m.State())

	// Stale arm timer must not resurrect ARMED.
	time.Sleep(3 * testArmDelay)
	require.Equal(t, StateDisarmed, m.State())
}

// TestDoorGraceFlow exercises ARMED -> GRACE -> ARMED on door close, and
// GRACE -> ALARMING when the grace period elapses.
func TestDoorGraceFlow(t *testing.T) {
	t.Parallel()

	var c sirenCounter

	m := newTestMachine(c.callbacks())
	armAndWait(t, m)

	m.DoorOpened()
	require.Equal(t, StateGrace, m.State())

	m.DoorClosed()
	require.Equal(t, StateArmed, m.State())

	// Cancelled grace timer must not fire.
	time.Sleep(2 * testGracePeriod)
	require.Equal(t, StateArmed, m.State())
	require.Zero(t, c.starts.Load())

	m.DoorOpened()
	require.Eventually(t, func() bool { return m.State() == StateAlarming }, waitTimeout, waitTick)
	require.Equal(t, int32(1), c.starts.Load())
}

// TestCorrectPIN_DisarmsGrace checks GRACE -> DISARMED on a correct PIN
// and that the cancelled grace timer never raises the alarm.
func TestCorrectPIN_DisarmsGrace(t *testing.T) {
	t.Parallel()

	var c sirenCounter

	m := newTestMachine(c.callbacks())
	armAndWait(t, m)

	m.DoorOpened()
	require.Equal(t, StateGrace, m.State())

	submitPIN(m, "1234")
	require.Equal(t, StateDisarmed, m.State())

	time.Sleep(3 * testGracePeriod)
	require.Equal(t, StateDisarmed, m.State())
	require.Zero(t, c.starts.Load())
}

// TestCorrectPIN_StopsAlarm verifies ALARMING -> DISARMED with exactly one
// stop callback.
func TestCorrectPIN_StopsAlarm(t *testing.T) {
	t.Parallel()

	var c sirenCounter

	m := newTestMachine(c.callbacks())
	m.Trigger()
	require.Equal(t, StateAlarming, m.State())

	submitPIN(m, "1234")
	require.Equal(t, StateDisarmed, m.State())
	require.Equal(t, int32(1), c.starts.Load())
	require.Equal(t, int32(1), c.stops.Load())
}

// TestWrongPIN_NeverTransitions submits a wrong PIN in every state and
// expects no movement.
func TestWrongPIN_NeverTransitions(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		setup func(t *testing.T, m *Machine)
		want  State
	}{
		"disarmed": {func(*testing.T, *Machine) {}, StateDisarmed},
		"arming": {func(t *testing.T, m *Machine) {
			submitPIN(m, "1234")
		}, StateArming},
		"armed": {armAndWait, StateArmed},
		"grace": {func(t *testing.T, m *Machine) {
			armAndWait(t, m)
			m.DoorOpened()
		}, StateGrace},
		"alarming": {func(_ *testing.T, m *Machine) {
			m.Trigger()
		}, StateAlarming},
	}

	for name, tc := range cases {
		tc := tc

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			m := newTestMachine(Callbacks{})
			tc.setup(t, m)

			submitPIN(m, "9999")
			require.Equal(t, tc.want, m.State())
		})
	}
}

// TestClearKey_DiscardsEntry makes sure KeyClear wipes a partial entry so
// the following digits evaluate on their own.
func TestClearKey_DiscardsEntry(t *testing.T) {
	t.Parallel()

	m := newTestMachine(Callbacks{})

	m.HandleKey('9')
	m.HandleKey('9')
	m.HandleKey(KeyClear)

	submitPIN(m, "1234")
	require.Equal(t, StateArming, m.State())
}

// TestDoorEvents_NoOpOutsideRelevantStates verifies DoorOpened is only
// effective while ARMED and DoorClosed only while in GRACE.
func TestDoorEvents_NoOpOutsideRelevantStates(t *testing.T) {
	t.Parallel()

	m := newTestMachine(Callbacks{})

	m.DoorOpened()
	require.Equal(t, StateDisarmed, m.State())

	m.DoorClosed()
	require.Equal(t, StateDisarmed, m.State())

	armAndWait(t, m)
	m.DoorClosed()
	require.Equal(t, StateArmed, m.State())
}

// TestStateChangeObserver collects every distinct transition in order.
func TestStateChangeObserver(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen []State
	)

	m := newTestMachine(Callbacks{
		StateChange: func(s State) {
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		},
	})

	submitPIN(m, "1234")

	require.Eventually(t, func() bool { return m.State() == StateArmed }, waitTimeout, waitTick)

	m.Trigger()
	submitPIN(m, "1234")

	mu.Lock()
	defer mu.Unlock()

	require.Equal(t, []State{StateArming, StateArmed, StateAlarming, StateDisarmed}, seen)
}
