package node

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ps "github.com/mitchellh/go-ps"
)

// ensureSingleInstance refuses to start when another process with the same
// executable name is already running on this host. Two controllers on one
// box would fight over the same node identity.
func ensureSingleInstance() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}

	name := filepath.Base(exe)
	self := os.Getpid()

	procs, err := ps.Processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	for _, p := range procs {
		if p.Pid() == self {
			continue
		}

		if strings.EqualFold(p.Executable(), name) {
			return fmt.Errorf("another %s instance is already running (pid %d)", name, p.Pid())
		}
	}

	return nil
}
