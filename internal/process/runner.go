// Package process builds the command lines for the benchmark server and
// client binaries and manages the counter seed file the server reads.
package process

import (
	"context"
	"fmt"
	"os/exec"
)

// Runner creates executable commands for one benchmark process.
type Runner interface {
	// BuildCommand returns a ready-to-start command.
	// The command should NOT be started yet.
	BuildCommand(ctx context.Context) (*exec.Cmd, error)

	// Name returns a human-readable name for this process type.
	Name() string

	// CommandString returns the command line for display.
	CommandString() string
}

// Priority is the scheduling policy the server applies to waiting agents.
type Priority string

const (
	PriorityReader Priority = "reader"
	PriorityWriter Priority = "writer"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityReader || p == PriorityWriter
}

// Mode is the access kind a client requests.
type Mode string

const (
	ModeReader Mode = "reader"
	ModeWriter Mode = "writer"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeReader || m == ModeWriter
}

// ParsePriority converts a flag or file value to a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.Valid() {
		return "", fmt.Errorf("invalid priority %q (want reader or writer)", s)
	}
	return p, nil
}

// ParseMode converts a flag or file value to a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("invalid mode %q (want reader or writer)", s)
	}
	return m, nil
}
