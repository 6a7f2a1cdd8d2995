package alarm

import "fmt"

// State is the alarm condition of the whole installation. On the master it
// is ground truth; on slaves it is a cached mirror of the last broadcast.
type State string

const (
	// StateDisarmed means the system is off; sensor violations do not alarm.
	StateDisarmed State = "DISARMED"
	// StateArming means a correct PIN was entered while disarmed and the
	// arm delay countdown is running.
	StateArming State = "ARMING"
	// StateArmed means the system is active; a door opening starts the grace period.
	StateArmed State = "ARMED"
	// StateGrace means a door opened while armed and the grace countdown is running.
	StateGrace State = "GRACE"
	// StateAlarming means the siren is sounding; only a correct PIN stops it.
	StateAlarming State = "ALARMING"
)

// ParseState converts the wire representation into a State.
// Unknown values are rejected so protocol handlers can discard bad payloads.
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateDisarmed, StateArming, StateArmed, StateGrace, StateAlarming:
		return State(s), nil
	default:
		return "", fmt.Errorf("unknown alarm state %q", s)
	}
}

// String returns the wire representation of the state.
func (s State) String() string {
	return string(s)
}
