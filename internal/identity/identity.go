// Package identity captures who is operating a node, for the audit trail
// on manual actions like console triggers.
package identity

import (
	"fmt"
	"os"
	"os/user"
)

// Identity is the host and user a manual action originated from.
type Identity struct {
	Hostname string
	Username string
}

// String renders "user@host".
func (i Identity) String() string {
	return i.Username + "@" + i.Hostname
}

// Detect gathers host and user information for the audit trail.
func Detect() (Identity, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return Identity{}, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return Identity{}, fmt.Errorf("current user: %w", err)
	}

	return Identity{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}
