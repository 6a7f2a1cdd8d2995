// Package alarm implements the PIN-driven alarm state machine:
// DISARMED, ARMING, ARMED, GRACE, and ALARMING states, the two associated
// countdowns (arm delay, grace period), and the keypad PIN entry buffer.
// The machine is owned by the master node; slaves only mirror the state
// it broadcasts.
package alarm
