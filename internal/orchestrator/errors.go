package orchestrator

import "errors"

// Scenario failure causes. A scenario's Err joins errors wrapping these,
// so callers can test for them with errors.Is.
var (
	ErrServerNotReady       = errors.New("server not ready")
	ErrServerExited         = errors.New("server exited before becoming ready")
	ErrClientTimeout        = errors.New("client timed out")
	ErrClientFailed         = errors.New("client failed")
	ErrServerMonitorTimeout = errors.New("server monitor did not finish")
	ErrNoServerOutput       = errors.New("server reported no counter lines")
	ErrEmptySampleSet       = errors.New("client reported no latency samples")
	ErrInterrupted          = errors.New("run interrupted")
)
