package alarmsync

// Wire payloads are plain JSON objects; every message names its source
// node so the master can log where a request came from.

// triggerPayload asks the master to force the alarm.
type triggerPayload struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// doorPayload reports a slave-owned door transition.
type doorPayload struct {
	Source string `json:"source"`
	IsOpen bool   `json:"is_open"`
}

// statePayload broadcasts the authoritative alarm state.
type statePayload struct {
	Source string `json:"source"`
	State  string `json:"state"`
}

// deltaPayload requests an occupant count adjustment.
type deltaPayload struct {
	Source string `json:"source"`
	Delta  int    `json:"delta"`
}

// countPayload broadcasts the authoritative occupant count.
type countPayload struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}
