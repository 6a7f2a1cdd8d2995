package alarmsync

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/oshokin/home-sentinel/internal/config"
	"github.com/oshokin/home-sentinel/internal/domain/alarm"
	"github.com/oshokin/home-sentinel/internal/logger"
	"github.com/oshokin/home-sentinel/internal/transport"
)

// MasterHandlers receive protocol requests on the master node. They run on
// the transport's delivery goroutine and must not block.
type MasterHandlers struct {
	// Trigger handles a force-alarm request. Any slave may raise it; the
	// topic is the only identity, a trust assumption inherited from the
	// installation this protocol serves.
	Trigger func(source, reason string)
	// DoorEvent handles a slave-owned door transition, feeding the same
	// grace-period machinery as the master's local door.
	DoorEvent func(source string, isOpen bool)
	// OccupancyDelta handles an occupant count adjustment request.
	OccupancyDelta func(source string, delta int)
}

// SlaveHandlers receive master broadcasts on a slave node.
type SlaveHandlers struct {
	// State observes every alarm state broadcast, after the local mirror
	// has been updated.
	State func(state alarm.State)
	// OccupancyCount observes the authoritative occupant count.
	OccupancyCount func(count int)
}

// Sync runs the cross-node synchronization protocol on one node. The
// master applies slave requests to its state machine and broadcasts every
// change retained; slaves mirror the broadcasts and may only request
// transitions, never originate them.
type Sync struct {
	nodeID string
	role   config.Role
	ch     transport.Channel
	log    *zap.SugaredLogger

	master MasterHandlers
	slave  SlaveHandlers

	mu         sync.Mutex
	knownState alarm.State
}

// NewMaster creates the master-side protocol instance.
func NewMaster(nodeID string, ch transport.Channel, handlers MasterHandlers, log *zap.SugaredLogger) *Sync {
	return newSync(nodeID, config.RoleMaster, ch, handlers, SlaveHandlers{}, log)
}

// NewSlave creates a slave-side protocol instance.
func NewSlave(nodeID string, ch transport.Channel, handlers SlaveHandlers, log *zap.SugaredLogger) *Sync {
	return newSync(nodeID, config.RoleSlave, ch, MasterHandlers{}, handlers, log)
}

func newSync(
	nodeID string,
	role config.Role,
	ch transport.Channel,
	master MasterHandlers,
	slave SlaveHandlers,
	log *zap.SugaredLogger,
) *Sync {
	if log == nil {
		log = logger.Logger().Named("alarmsync")
	}

	return &Sync{
		nodeID:     nodeID,
		role:       role,
		ch:         ch,
		log:        log.With("node", nodeID, "role", string(role)),
		master:     master,
		slave:      slave,
		knownState: alarm.StateDisarmed,
	}
}

// Start installs the role's subscriptions. On a slave the retained state
// and occupancy broadcasts arrive immediately, so a late-joining node
// converges without any bootstrap exchange.
func (s *Sync) Start() error {
	type sub struct {
		topic string
		h     transport.Handler
	}

	var subs []sub

	if s.role == config.RoleMaster {
		subs = []sub{
			{TopicTrigger, s.handleTrigger},
			{TopicDoorFilter, s.handleDoorEvent},
			{TopicOccupancyDelta, s.handleOccupancyDelta},
		}
	} else {
		subs = []sub{
			{TopicState, s.handleState},
			{TopicOccupancyAbsolute, s.handleOccupancyCount},
		}
	}

	for _, sb := range subs {
		if err := s.ch.Subscribe(sb.topic, transport.QoSAtLeastOnce, sb.h); err != nil {
			return fmt.Errorf("subscribe %s: %w", sb.topic, err)
		}
	}

	return nil
}

// KnownState returns the node's view of the alarm state: the machine
// mirror on the master, the last broadcast on a slave.
func (s *Sync) KnownState() alarm.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.knownState
}

// Connected reports transport connectivity, the operator-visible liveness
// signal. While disconnected the node degrades to local state only.
func (s *Sync) Connected() bool {
	return s.ch.Connected()
}

// PublishState broadcasts an alarm state change, retained. Master only.
func (s *Sync) PublishState(state alarm.State) {
	if !s.requireRole(config.RoleMaster, "publish state") {
		return
	}

	s.mu.Lock()
	s.knownState = state
	s.mu.Unlock()

	s.publish(TopicState, true, statePayload{Source: s.nodeID, State: state.String()})
}

// PublishOccupancyCount broadcasts the authoritative occupant count,
// retained. Master only.
func (s *Sync) PublishOccupancyCount(count int) {
	if !s.requireRole(config.RoleMaster, "publish occupancy count") {
		return
	}

	s.publish(TopicOccupancyAbsolute, true, countPayload{Source: s.nodeID, Count: count})
}

// PublishTrigger asks the master to force the alarm. Fire-and-forget:
// if the transport is down the request is dropped, not queued. Slave only.
func (s *Sync) PublishTrigger(reason string) {
	if !s.requireRole(config.RoleSlave, "publish trigger") {
		return
	}

	s.publish(TopicTrigger, false, triggerPayload{Source: s.nodeID, Reason: reason})
}

// PublishDoorEvent reports this slave's door transition to the master.
func (s *Sync) PublishDoorEvent(isOpen bool) {
	if !s.requireRole(config.RoleSlave, "publish door event") {
		return
	}

	s.publish(DoorTopic(s.nodeID), false, doorPayload{Source: s.nodeID, IsOpen: isOpen})
}

// PublishOccupancyDelta requests an occupant count adjustment. Slave only.
func (s *Sync) PublishOccupancyDelta(delta int) {
	if !s.requireRole(config.RoleSlave, "publish occupancy delta") {
		return
	}

	s.publish(TopicOccupancyDelta, false, deltaPayload{Source: s.nodeID, Delta: delta})
}

// requireRole guards the publish API; a mismatch is a programming error
// worth a log line, never a crash.
func (s *Sync) requireRole(want config.Role, op string) bool {
	if s.role != want {
		s.log.Warnf("%s ignored: node is not a %s", op, want)

		return false
	}

	return true
}

// publish marshals and sends one message. Failures are absorbed here:
// the protocol accepts at-most-once-effective delivery for everything it
// sends while disconnected.
func (s *Sync) publish(topic string, retain bool, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Errorw("marshal payload", "topic", topic, "error", err)

		return
	}

	if err := s.ch.Publish(topic, transport.QoSAtLeastOnce, retain, data); err != nil {
		s.log.Warnw("message dropped", "topic", topic, "error", err)
	}
}

// handleTrigger runs on the master for every force-alarm request.
func (s *Sync) handleTrigger(_ string, payload []byte) {
	var p triggerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.log.Debugw("discarding malformed trigger", "error", err)

		return
	}

	s.log.Infow("trigger requested", "source", p.Source, "reason", p.Reason)

	if s.master.Trigger != nil {
		s.master.Trigger(p.Source, p.Reason)
	}
}

// handleDoorEvent runs on the master for every slave door transition.
func (s *Sync) handleDoorEvent(topic string, payload []byte) {
	var p doorPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.log.Debugw("discarding malformed door event", "topic", topic, "error", err)

		return
	}

	if s.master.DoorEvent != nil {
		s.master.DoorEvent(p.Source, p.IsOpen)
	}
}

// handleOccupancyDelta runs on the master for every adjustment request.
func (s *Sync) handleOccupancyDelta(_ string, payload []byte) {
	var p deltaPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.log.Debugw("discarding malformed occupancy delta", "error", err)

		return
	}

	if s.master.OccupancyDelta != nil {
		s.master.OccupancyDelta(p.Source, p.Delta)
	}
}

// handleState runs on a slave for every state broadcast, including the
// retained catch-up copy delivered on subscribe. The mirror is updated
// under the lock; the observer is notified after it is released.
func (s *Sync) handleState(_ string, payload []byte) {
	var p statePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.log.Debugw("discarding malformed state broadcast", "error", err)

		return
	}

	state, err := alarm.ParseState(p.State)
	if err != nil {
		s.log.Debugw("discarding state broadcast", "error", err)

		return
	}

	s.mu.Lock()
	s.knownState = state
	s.mu.Unlock()

	s.log.Infow("alarm state received", "state", state, "source", p.Source)

	if s.slave.State != nil {
		s.slave.State(state)
	}
}

// handleOccupancyCount runs on a slave for every occupant count broadcast.
func (s *Sync) handleOccupancyCount(_ string, payload []byte) {
	var p countPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.log.Debugw("discarding malformed occupancy broadcast", "error", err)

		return
	}

	if s.slave.OccupancyCount != nil {
		s.slave.OccupancyCount(p.Count)
	}
}
