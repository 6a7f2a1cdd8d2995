package node

import (
	"github.com/oshokin/home-sentinel/internal/alarmsync"
	"github.com/oshokin/home-sentinel/internal/device"
	"github.com/oshokin/home-sentinel/internal/domain/alarm"
)

// setupMaster wires the state machine, the siren, and the keypad, and
// installs protocol handlers that feed remote events into the machine.
func (n *Node) setupMaster() {
	n.siren = device.NewSimSiren(n.log.Named("siren"))
	n.keypad = device.NewSimKeypad(func(k rune) {
		n.machine.HandleKey(k)
	})

	n.machine = alarm.NewMachine(alarm.MachineConfig{
		PIN:         n.cfg.Alarm.PIN,
		ArmDelay:    n.cfg.Alarm.ArmDelay,
		GracePeriod: n.cfg.Alarm.GracePeriod,
		Callbacks: alarm.Callbacks{
			AlarmStart:  n.siren.Start,
			AlarmStop:   n.siren.Stop,
			StateChange: n.onStateChange,
		},
		Logger: n.log.Named("alarm"),
	})

	n.sync = alarmsync.NewMaster(n.cfg.NodeID, n.ch, alarmsync.MasterHandlers{
		Trigger:        n.onRemoteTrigger,
		DoorEvent:      n.onRemoteDoorEvent,
		OccupancyDelta: n.onRemoteOccupancyDelta,
	}, n.log)
}

// setupSlave installs protocol handlers that mirror master broadcasts.
func (n *Node) setupSlave() {
	n.sync = alarmsync.NewSlave(n.cfg.NodeID, n.ch, alarmsync.SlaveHandlers{
		State:          n.onStateBroadcast,
		OccupancyCount: n.onOccupancyBroadcast,
	}, n.log)
}

// onStateChange rebroadcasts every machine transition and records it.
func (n *Node) onStateChange(s alarm.State) {
	n.sync.PublishState(s)
	n.record("ALARM", "state", s.String())
}

// onRemoteTrigger feeds a trigger request from any node into the machine.
func (n *Node) onRemoteTrigger(source, reason string) {
	n.log.Warnw("remote trigger", "source", source, "reason", reason)
	n.machine.Trigger()
}

// onRemoteDoorEvent folds a slave's door contact into the machine, so a
// remote door drives GRACE exactly like the master's own.
func (n *Node) onRemoteDoorEvent(source string, isOpen bool) {
	n.log.Infow("remote door event", "source", source, "is_open", isOpen)

	if isOpen {
		n.machine.DoorOpened()
	} else {
		n.machine.DoorClosed()
	}
}

// onRemoteOccupancyDelta applies a slave's occupant delta to ground truth
// and rebroadcasts the absolute count.
func (n *Node) onRemoteOccupancyDelta(source string, delta int) {
	count := n.counter.ApplyDelta(delta)
	n.sync.PublishOccupancyCount(count)
	n.log.Infow("occupancy changed", "source", source, "delta", delta, "count", count)
}

// onStateBroadcast reacts to master state broadcasts on a slave.
func (n *Node) onStateBroadcast(s alarm.State) {
	n.log.Infow("alarm state", "state", s.String())
	n.record("ALARM", "state", s.String())
}

// onOccupancyBroadcast overwrites the slave's cached occupant count.
func (n *Node) onOccupancyBroadcast(count int) {
	n.counter.SetAbsolute(count)
}
