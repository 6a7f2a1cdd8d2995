package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oshokin/home-sentinel/internal/alarmsync"
	"github.com/oshokin/home-sentinel/internal/config"
	"github.com/oshokin/home-sentinel/internal/device"
	"github.com/oshokin/home-sentinel/internal/domain/alarm"
	"github.com/oshokin/home-sentinel/internal/domain/occupancy"
	"github.com/oshokin/home-sentinel/internal/logger"
	"github.com/oshokin/home-sentinel/internal/telemetry"
	"github.com/oshokin/home-sentinel/internal/transport"
)

// Node is one running controller. The master owns the state machine, the
// siren, and the occupant count; slaves observe their local sensors and
// request transitions over the sync protocol.
type Node struct {
	cfg *config.Config
	log *zap.SugaredLogger
	ch  transport.Channel

	sync      *alarmsync.Sync
	counter   *occupancy.Counter
	telemetry *telemetry.Publisher

	// Master only.
	machine *alarm.Machine
	siren   *device.SimSiren
	keypad  *device.SimKeypad

	door   *device.SimDoor
	motion *device.SimMotion

	// Door-open escalation: a door left open while DISARMED raises a
	// local siren on the master, or a trigger request on a slave.
	doorMu        sync.Mutex
	doorTimer     *time.Timer
	doorEscalated bool
}

// newNode assembles a node for the given role on the provided channel.
func newNode(cfg *config.Config, ch transport.Channel) *Node {
	n := &Node{
		cfg:     cfg,
		log:     logger.Logger().Named(cfg.NodeID),
		ch:      ch,
		counter: &occupancy.Counter{},
	}

	n.telemetry = telemetry.NewPublisher(cfg.NodeID, ch, cfg.Telemetry, n.log.Named("telemetry"))

	if cfg.Role == config.RoleMaster {
		n.setupMaster()
	} else {
		n.setupSlave()
	}

	n.door = device.NewSimDoor(n.handleDoorChange)
	n.motion = device.NewSimMotion(n.handleMotion)

	return n
}

// Start connects the transport, installs the protocol subscriptions, and
// launches telemetry. The master re-broadcasts its current state and count
// so freshly started installations have retained values from the start.
func (n *Node) Start(ctx context.Context) error {
	if err := n.ch.Connect(ctx); err != nil {
		return fmt.Errorf("connect transport: %w", err)
	}

	if err := n.sync.Start(); err != nil {
		return fmt.Errorf("start sync protocol: %w", err)
	}

	if n.cfg.Telemetry.Enabled {
		n.telemetry.Start(ctx)
	}

	if n.cfg.Role == config.RoleMaster {
		n.sync.PublishState(n.machine.State())
		n.sync.PublishOccupancyCount(n.counter.Count())
	}

	n.log.Infow("node started", "role", string(n.cfg.Role), "broker", n.cfg.BrokerAddress())

	return nil
}

// Stop cancels pending countdowns, drains telemetry, and closes the
// transport session.
func (n *Node) Stop() {
	n.doorMu.Lock()
	if n.doorTimer != nil {
		n.doorTimer.Stop()
		n.doorTimer = nil
	}
	n.doorMu.Unlock()

	if n.machine != nil {
		n.machine.Stop()
	}

	if n.cfg.Telemetry.Enabled {
		n.telemetry.Stop()
	}

	n.ch.Close()
	n.log.Info("node stopped")
}

// AlarmState returns this node's view of the alarm: machine ground truth
// on the master, the broadcast mirror on a slave.
func (n *Node) AlarmState() alarm.State {
	if n.machine != nil {
		return n.machine.State()
	}

	return n.sync.KnownState()
}

// Connected reports broker connectivity.
func (n *Node) Connected() bool {
	return n.sync.Connected()
}

// Occupancy returns this node's view of the occupant count.
func (n *Node) Occupancy() int {
	return n.counter.Count()
}

// SetDoor moves the simulated door contact.
func (n *Node) SetDoor(open bool) {
	n.door.Set(open)
}

// TripMotion simulates a motion detection.
func (n *Node) TripMotion() {
	n.motion.Trip()
}

// PressKeys injects a keypad sequence, e.g. "1234#". Master only.
func (n *Node) PressKeys(keys string) {
	if n.keypad == nil {
		n.log.Warn("no keypad on this node")

		return
	}

	n.keypad.Inject(keys)
}

// PersonEntered records one occupant entering.
func (n *Node) PersonEntered() {
	n.adjustOccupancy(+1)
}

// PersonExited records one occupant leaving.
func (n *Node) PersonExited() {
	n.adjustOccupancy(-1)
}

// RequestTrigger asks for the alarm to sound: directly on the master,
// via the protocol on a slave.
func (n *Node) RequestTrigger(reason string) {
	if n.machine != nil {
		n.log.Infow("local trigger", "reason", reason)
		n.machine.Trigger()

		return
	}

	n.sync.PublishTrigger(reason)
}

// Status is a point-in-time view for the console and logs.
type Status struct {
	NodeID     string
	Role       config.Role
	Connected  bool
	AlarmState alarm.State
	Occupancy  int
	DoorOpen   bool
	SirenOn    bool
}

// Status snapshots the node.
func (n *Node) Status() Status {
	s := Status{
		NodeID:     n.cfg.NodeID,
		Role:       n.cfg.Role,
		Connected:  n.Connected(),
		AlarmState: n.AlarmState(),
		Occupancy:  n.Occupancy(),
		DoorOpen:   n.door.IsOpen(),
	}

	if n.siren != nil {
		s.SirenOn = n.siren.Active()
	}

	return s
}

// adjustOccupancy applies an occupant delta. The master mutates ground
// truth and rebroadcasts; a slave only requests the change and waits for
// the absolute broadcast to update its cache.
func (n *Node) adjustOccupancy(delta int) {
	if n.cfg.Role == config.RoleMaster {
		count := n.counter.ApplyDelta(delta)
		n.sync.PublishOccupancyCount(count)
		n.log.Infow("occupancy changed", "delta", delta, "count", count)
	} else {
		n.sync.PublishOccupancyDelta(delta)
	}

	n.record("HOME", "occupancy_delta", delta)
}

// handleDoorChange reacts to the local door contact.
func (n *Node) handleDoorChange(isOpen bool) {
	n.record("DOOR", "is_open", isOpen)

	if n.cfg.Role == config.RoleMaster {
		if isOpen {
			n.machine.DoorOpened()
			n.startDoorOpenTimer()
		} else {
			n.machine.DoorClosed()
			n.cancelDoorOpenTimer()
			n.stopDoorEscalation()
		}

		return
	}

	// A slave's door participates in the master's grace machinery.
	n.sync.PublishDoorEvent(isOpen)

	if isOpen {
		n.startDoorOpenTimer()
	} else {
		n.cancelDoorOpenTimer()
	}
}

// handleMotion reacts to the local motion sensor: movement in an empty
// home sounds the alarm no matter the armed state.
func (n *Node) handleMotion() {
	n.record("MOTION", "detected", true)

	if n.counter.Count() != 0 {
		return
	}

	if n.AlarmState() == alarm.StateAlarming {
		return
	}

	n.log.Warn("motion with no occupants")
	n.RequestTrigger("motion with no occupants")
}

// startDoorOpenTimer schedules the door-open escalation.
func (n *Node) startDoorOpenTimer() {
	n.doorMu.Lock()
	defer n.doorMu.Unlock()

	if n.doorTimer != nil {
		n.doorTimer.Stop()
	}

	n.doorTimer = time.AfterFunc(n.cfg.Alarm.DoorOpenDelay, n.doorOpenTimeout)
}

// cancelDoorOpenTimer discards a pending escalation.
func (n *Node) cancelDoorOpenTimer() {
	n.doorMu.Lock()
	defer n.doorMu.Unlock()

	if n.doorTimer != nil {
		n.doorTimer.Stop()
		n.doorTimer = nil
	}
}

// doorOpenTimeout fires when the door stayed open past the delay. The
// door position and alarm state are re-checked: the timer may be stale.
func (n *Node) doorOpenTimeout() {
	if !n.door.IsOpen() || n.AlarmState() != alarm.StateDisarmed {
		return
	}

	if n.cfg.Role == config.RoleMaster {
		n.log.Warn("door open too long while disarmed")

		n.doorMu.Lock()
		n.doorEscalated = true
		n.doorMu.Unlock()

		n.siren.Start()

		return
	}

	n.sync.PublishTrigger("door open too long while disarmed")
}

// stopDoorEscalation silences a door-open escalation once the door closes.
// The machine-owned alarm is untouched: the siren stays on while ALARMING.
func (n *Node) stopDoorEscalation() {
	n.doorMu.Lock()
	escalated := n.doorEscalated
	n.doorEscalated = false
	n.doorMu.Unlock()

	if escalated && n.machine.State() != alarm.StateAlarming {
		n.siren.Stop()
	}
}

// record buffers one telemetry sample if telemetry is enabled.
func (n *Node) record(deviceCode, field string, value any) {
	if !n.cfg.Telemetry.Enabled {
		return
	}

	n.telemetry.Record(telemetry.Sample{
		Device:    deviceCode,
		Field:     field,
		Value:     value,
		Timestamp: time.Now(),
	})
}
