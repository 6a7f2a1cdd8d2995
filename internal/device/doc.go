// Package device defines the narrow collaborator interfaces the alarm
// core consumes (siren, door contact, motion sensor, keypad) and their
// simulation backends. Hardware drivers live outside this repository and
// plug in through the same interfaces.
package device
