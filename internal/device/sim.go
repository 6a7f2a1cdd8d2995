package device

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/oshokin/home-sentinel/internal/logger"
)

// SimSiren is the simulation siren: it logs state changes and swallows
// redundant calls.
type SimSiren struct {
	log *zap.SugaredLogger
	on  atomic.Bool
}

// interface guard
var _ Siren = (*SimSiren)(nil)

// NewSimSiren creates a silent siren.
func NewSimSiren(log *zap.SugaredLogger) *SimSiren {
	if log == nil {
		log = logger.Logger().Named("siren")
	}

	return &SimSiren{log: log}
}

// Start turns the siren on; a no-op if it is already sounding.
func (s *SimSiren) Start() {
	if s.on.CompareAndSwap(false, true) {
		s.log.Warn("*** SIREN ON ***")
	}
}

// Stop turns the siren off; a no-op if it is already silent.
func (s *SimSiren) Stop() {
	if s.on.CompareAndSwap(true, false) {
		s.log.Info("siren off")
	}
}

// Active reports whether the siren is sounding.
func (s *SimSiren) Active() bool {
	return s.on.Load()
}

// SimDoor is the simulation door contact.
type SimDoor struct {
	onChange func(isOpen bool)

	mu   sync.Mutex
	open bool
}

// interface guard
var _ Door = (*SimDoor)(nil)

// NewSimDoor creates a closed door reporting transitions to onChange.
func NewSimDoor(onChange func(isOpen bool)) *SimDoor {
	return &SimDoor{onChange: onChange}
}

// Set moves the door to the given position. The callback fires only on an
// actual transition, with no lock held.
func (d *SimDoor) Set(open bool) {
	d.mu.Lock()

	changed := d.open != open
	d.open = open

	d.mu.Unlock()

	if changed && d.onChange != nil {
		d.onChange(open)
	}
}

// IsOpen reports the current position.
func (d *SimDoor) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.open
}

// SimMotion is the simulation motion sensor.
type SimMotion struct {
	onMotion func()
}

// NewSimMotion creates a motion sensor reporting to onMotion.
func NewSimMotion(onMotion func()) *SimMotion {
	return &SimMotion{onMotion: onMotion}
}

// Trip simulates a detection.
func (m *SimMotion) Trip() {
	if m.onMotion != nil {
		m.onMotion()
	}
}

// SimKeypad is the simulation membrane keypad.
type SimKeypad struct {
	onKey func(k rune)

	mu   sync.Mutex
	last rune
}

// interface guard
var _ Keypad = (*SimKeypad)(nil)

// NewSimKeypad creates a keypad reporting presses to onKey.
func NewSimKeypad(onKey func(k rune)) *SimKeypad {
	return &SimKeypad{onKey: onKey}
}

// Press simulates one key press.
func (k *SimKeypad) Press(key rune) {
	k.mu.Lock()
	k.last = key
	k.mu.Unlock()

	if k.onKey != nil {
		k.onKey(key)
	}
}

// Inject simulates a sequence of key presses, e.g. "1234#".
func (k *SimKeypad) Inject(keys string) {
	for _, key := range keys {
		k.Press(key)
	}
}

// LastKey returns the most recent key, or 0 if none was pressed yet.
func (k *SimKeypad) LastKey() rune {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.last
}
