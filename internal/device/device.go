package device

// Siren drives the audible alarm. Implementations must tolerate redundant
// Start/Stop calls: the lifecycle callbacks may re-assert the current
// state after reconnect catch-up.
type Siren interface {
	Start()
	Stop()
}

// Door is a door contact. The core never polls it; it reports transitions
// through the callback registered at construction.
type Door interface {
	IsOpen() bool
}

// Keypad delivers key presses through the callback registered at
// construction.
type Keypad interface {
	LastKey() rune
}
