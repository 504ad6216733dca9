// Package supervisor manages the lifecycle of the benchmark server and
// client processes: launch with captured output, a single waiter per
// process, and handle-based termination with escalation.
package supervisor

// State represents the lifecycle stage of a process.
type State int

const (
	// StateCreated is the initial state before Start.
	StateCreated State = iota

	// StateStarting indicates the command is being built and spawned.
	StateStarting

	// StateRunning indicates the process is alive.
	StateRunning

	// StateStopping indicates termination was requested.
	StateStopping

	// StateExited indicates the process has been reaped.
	StateExited
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// IsActive returns true while the process may still produce output.
func (s State) IsActive() bool {
	return s == StateStarting || s == StateRunning || s == StateStopping
}

// IsTerminal returns true once the process has been reaped.
func (s State) IsTerminal() bool {
	return s == StateExited
}
