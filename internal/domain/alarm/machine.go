package alarm

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oshokin/home-sentinel/internal/logger"
)

// Callbacks are invoked by the Machine after a transition, with the
// machine lock released. They must not block for long; long-running work
// (driving a physical siren) belongs to the callee.
type Callbacks struct {
	// AlarmStart fires exactly once per distinct ALARMING entry.
	AlarmStart func()
	// AlarmStop fires exactly once per distinct ALARMING exit.
	AlarmStop func()
	// StateChange fires on every distinct transition with the new state.
	// The master wires it to the retained state broadcast.
	StateChange func(State)
}

// MachineConfig holds the construction parameters for a Machine.
type MachineConfig struct {
	// PIN is the secret that arms and disarms the system.
	PIN string
	// ArmDelay is the ARMING -> ARMED countdown.
	ArmDelay time.Duration
	// GracePeriod is the GRACE -> ALARMING countdown.
	GracePeriod time.Duration
	// Callbacks receive transition notifications.
	Callbacks Callbacks
	// Logger overrides the global logger when set.
	Logger *zap.SugaredLogger
}

// Machine is the authoritative alarm state machine, owned by the master
// node. All public methods are safe for concurrent use: state, the PIN
// buffer, and the timer handles are guarded by one mutex, and callbacks
// are dispatched only after it is released so a callee can never deadlock
// by calling back into the machine's read path.
type Machine struct {
	pin         string
	armDelay    time.Duration
	gracePeriod time.Duration
	cb          Callbacks
	log         *zap.SugaredLogger

	mu    sync.Mutex
	state State
	buf   pinBuffer
	// armTimer counts down ARMING -> ARMED; graceTimer counts down
	// GRACE -> ALARMING. ARMING and GRACE are mutually exclusive, so at
	// most one of the two is pending at any time.
	armTimer   *time.Timer
	graceTimer *time.Timer
}

// NewMachine creates a Machine in the DISARMED state.
func NewMachine(cfg MachineConfig) *Machine {
	log := cfg.Logger
	if log == nil {
		log = logger.Logger().Named("alarm")
	}

	return &Machine{
		pin:         cfg.PIN,
		armDelay:    cfg.ArmDelay,
		gracePeriod: cfg.GracePeriod,
		cb:          cfg.Callbacks,
		log:         log,
		state:       StateDisarmed,
	}
}

// transition is the snapshot of one state change, computed under the lock
// and dispatched to callbacks after it is released.
type transition struct {
	from State
	to   State
}

// changed reports whether the transition actually moved the state.
func (t transition) changed() bool {
	return t.from != t.to
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// HandleKey feeds one keypad key into the machine. KeyClear empties the
// PIN buffer, KeySubmit evaluates the buffered entry against the PIN, and
// any other key is appended to the buffer.
func (m *Machine) HandleKey(k rune) {
	m.mu.Lock()

	var tr transition

	switch k {
	case KeyClear:
		m.buf.reset()
		m.mu.Unlock()
		m.log.Debug("pin entry cleared")

		return
	case KeySubmit:
		tr = m.processPINLocked(m.buf.flush())
	default:
		m.buf.push(k)
		m.mu.Unlock()

		return
	}

	m.mu.Unlock()
	m.notify(tr)
}

// DoorOpened reports that a door opened. Effective only while ARMED, where
// it starts the grace period; a no-op in every other state. The
// door-open-while-disarmed escalation belongs to the calling controller.
func (m *Machine) DoorOpened() {
	m.mu.Lock()

	tr := transition{from: m.state, to: m.state}
	if m.state == StateArmed {
		tr.to = m.enterGraceLocked()
	}

	m.mu.Unlock()
	m.notify(tr)
}

// DoorClosed reports that a door closed. Effective only while in GRACE,
// where it cancels the countdown and returns to ARMED.
func (m *Machine) DoorClosed() {
	m.mu.Lock()

	tr := transition{from: m.state, to: m.state}
	if m.state == StateGrace {
		m.cancelGraceTimerLocked()

		m.state = StateArmed
		tr.to = StateArmed
	}

	m.mu.Unlock()
	m.notify(tr)
}

// Trigger forces entry into ALARMING from any state, cancelling pending
// countdowns first. A no-op if the alarm is already sounding, so repeated
// triggers never double-fire the start callback.
func (m *Machine) Trigger() {
	m.mu.Lock()

	tr := transition{from: m.state, to: m.state}
	if m.state != StateAlarming {
		m.cancelArmTimerLocked()
		m.cancelGraceTimerLocked()

		m.state = StateAlarming
		tr.to = StateAlarming
	}

	m.mu.Unlock()
	m.notify(tr)
}

// Stop cancels any pending countdown. Used at node shutdown.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelArmTimerLocked()
	m.cancelGraceTimerLocked()
}

// processPINLocked evaluates a submitted PIN entry against the secret and
// performs the resulting transition. Caller holds the lock.
func (m *Machine) processPINLocked(entered string) transition {
	var (
		correct = entered == m.pin
		tr      = transition{from: m.state, to: m.state}
	)

	if !correct {
		// Wrong PIN is a normal, logged, no-transition outcome.
		m.log.Warnf("wrong pin while %s", m.state)

		return tr
	}

	switch m.state {
	case StateDisarmed:
		m.state = StateArming
		m.armTimer = time.AfterFunc(m.armDelay, m.armTimerFired)
	case StateArming:
		m.cancelArmTimerLocked()
		m.state = StateDisarmed
	case StateArmed:
		m.state = StateDisarmed
	case StateGrace:
		m.cancelGraceTimerLocked()
		m.state = StateDisarmed
	case StateAlarming:
		m.state = StateDisarmed
	}

	tr.to = m.state

	return tr
}

// enterGraceLocked moves ARMED -> GRACE and starts the countdown.
// Caller holds the lock.
func (m *Machine) enterGraceLocked() State {
	m.state = StateGrace
	m.graceTimer = time.AfterFunc(m.gracePeriod, m.graceTimerFired)

	return m.state
}

// armTimerFired runs on the timer goroutine when the arm delay elapses.
// The state is re-checked under the lock: a PIN submission may have
// cancelled arming between scheduling and firing.
func (m *Machine) armTimerFired() {
	m.mu.Lock()

	tr := transition{from: m.state, to: m.state}
	if m.state == StateArming {
		m.armTimer = nil
		m.state = StateArmed
		tr.to = StateArmed
	}

	m.mu.Unlock()
	m.notify(tr)
}

// graceTimerFired runs on the timer goroutine when the grace period
// elapses. Stale fires (door closed or system disarmed meanwhile) are
// detected by re-checking the state under the lock and ignored.
func (m *Machine) graceTimerFired() {
	m.mu.Lock()

	tr := transition{from: m.state, to: m.state}
	if m.state == StateGrace {
		m.graceTimer = nil
		m.state = StateAlarming
		tr.to = StateAlarming
	}

	m.mu.Unlock()
	m.notify(tr)
}

// cancelArmTimerLocked stops a pending arm countdown. Caller holds the lock.
func (m *Machine) cancelArmTimerLocked() {
	if m.armTimer != nil {
		m.armTimer.Stop()
		m.armTimer = nil
	}
}

// cancelGraceTimerLocked stops a pending grace countdown. Caller holds the lock.
func (m *Machine) cancelGraceTimerLocked() {
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
}

// notify dispatches callbacks for a completed transition. It runs with the
// lock released; the transition was computed under the lock, so each
// distinct ALARMING entry and exit is reported exactly once.
func (m *Machine) notify(tr transition) {
	if !tr.changed() {
		return
	}

	m.log.Infof("alarm state %s -> %s", tr.from, tr.to)

	if tr.to == StateAlarming && m.cb.AlarmStart != nil {
		m.cb.AlarmStart()
	}

	if tr.from == StateAlarming && m.cb.AlarmStop != nil {
		m.cb.AlarmStop()
	}

	if m.cb.StateChange != nil {
		m.cb.StateChange(tr.to)
	}
}
