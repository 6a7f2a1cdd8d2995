package node

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chzyer/readline"

	"github.com/oshokin/home-sentinel/internal/identity"
)

const consoleHelp = `commands:
  status          show node status
  open / close    move the door contact
  motion          trip the motion sensor
  enter / exit    record an occupant entering or leaving
  key <seq>       press keypad keys, e.g. "key 1234#" (master only)
  trigger [why]   request the alarm to sound
  help            show this text
  quit            stop the node`

// runConsole drives the node interactively until EOF, "quit", or context
// cancellation. Each line is one simulated sensor or keypad action.
func runConsole(ctx context.Context, n *Node) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          n.cfg.NodeID + "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("open console: %w", err)
	}
	defer rl.Close()

	// Closing the instance unblocks a pending Readline on shutdown.
	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}

			// EOF, a closed instance, or shutdown.
			return nil
		}

		if !dispatch(n, rl, strings.Fields(line)) {
			return nil
		}
	}
}

// dispatch executes one console command; returns false to quit.
func dispatch(n *Node, rl *readline.Instance, args []string) bool {
	if len(args) == 0 {
		return true
	}

	out := rl.Stdout()

	switch args[0] {
	case "status":
		s := n.Status()
		fmt.Fprintf(out, "node=%s role=%s connected=%t state=%s occupancy=%d door_open=%t siren=%t\n",
			s.NodeID, s.Role, s.Connected, s.AlarmState, s.Occupancy, s.DoorOpen, s.SirenOn)
	case "open":
		n.SetDoor(true)
	case "close":
		n.SetDoor(false)
	case "motion":
		n.TripMotion()
	case "enter":
		n.PersonEntered()
	case "exit":
		n.PersonExited()
	case "key":
		if len(args) < 2 {
			fmt.Fprintln(out, "usage: key <sequence>")

			break
		}

		n.PressKeys(args[1])
	case "trigger":
		reason := "console trigger"
		if len(args) > 1 {
			reason = strings.Join(args[1:], " ")
		}

		// The operator's identity goes on the audit trail.
		if id, err := identity.Detect(); err == nil {
			reason = fmt.Sprintf("%s (by %s)", reason, id)
		}

		n.RequestTrigger(reason)
	case "help":
		fmt.Fprintln(out, consoleHelp)
	case "quit":
		return false
	default:
		fmt.Fprintf(out, "unknown command %q, try \"help\"\n", args[0])
	}

	return true
}
