// Package stats holds the result records produced by the stream monitors,
// the fairness and latency analyses derived from them, and the text
// reports printed at the end of a run.
package stats

import (
	"sort"
	"time"
)

// EmptyMean is the MeanLatency reported for a client that produced no
// latency samples. Callers that need to tell "no data" from a true zero
// should use ClientResult.HasSamples.
const EmptyMean = 0.0

// Segment is a maximal contiguous run of server lines attributed to one
// agent.
type Segment struct {
	Agent  string
	Length int
}

// ServerResult is what the server monitor publishes once it stops.
type ServerResult struct {
	// FinalCounter is the most recently parsed counter value.
	// Only meaningful when HasCounter is true.
	FinalCounter int64
	HasCounter   bool

	// Segments are the agent runs in stream order.
	Segments []Segment

	// ClientsSeen is the set of agent identifiers observed.
	ClientsSeen map[string]struct{}

	LinesRead  int
	WellFormed int
	Malformed  int

	// CounterRegressions counts counter lines whose value was lower than
	// the previous one. Expected to stay zero for a correct server.
	CounterRegressions int

	// StreamErr is the read error that ended the stream, if any.
	StreamErr error
}

// NewServerResult returns an empty result ready for a monitor to fill.
func NewServerResult() ServerResult {
	return ServerResult{ClientsSeen: make(map[string]struct{})}
}

// Agents returns ClientsSeen sorted.
func (r ServerResult) Agents() []string {
	agents := make([]string, 0, len(r.ClientsSeen))
	for a := range r.ClientsSeen {
		agents = append(agents, a)
	}
	sort.Strings(agents)
	return agents
}

// SegmentTotal returns the sum of all run lengths. Equals WellFormed for
// a result produced by a monitor.
func (r ServerResult) SegmentTotal() int {
	total := 0
	for _, s := range r.Segments {
		total += s.Length
	}
	return total
}

// ClientResult is what a client monitor publishes once it stops.
type ClientResult struct {
	// Samples are the parsed wait times in stream order.
	Samples []float64

	// ExecTime is the wall-clock span from client launch to end of stream.
	ExecTime time.Duration

	// MeanLatency is the arithmetic mean of Samples, or EmptyMean.
	MeanLatency float64

	LinesRead int
	Malformed int

	// Truncated is set when the line budget stopped collection early.
	Truncated bool

	StreamErr error
}

// HasSamples reports whether any latency was collected.
func (r ClientResult) HasSamples() bool {
	return len(r.Samples) > 0
}

// ExecSeconds returns ExecTime in seconds.
func (r ClientResult) ExecSeconds() float64 {
	return r.ExecTime.Seconds()
}

// Mean returns the arithmetic mean of samples, or EmptyMean for none.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return EmptyMean
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}
