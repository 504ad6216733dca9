package monitor

import (
	"math"
	"sync"
	"sync/atomic"
)

// Progress is a live, lock-free view of a monitor for dashboards and rate
// sampling. It is separate from the result record, which is never read
// before the monitor publishes it.
type Progress struct {
	lines      atomic.Int64
	wellFormed atomic.Int64
	malformed  atomic.Int64
	samples    atomic.Int64

	// latencySum holds float64 bits.
	latencySum atomic.Uint64

	lastCounter atomic.Int64
	hasCounter  atomic.Bool
	agents      atomic.Int64
	runLength   atomic.Int64
	finished    atomic.Bool

	agentMu sync.RWMutex
	agent   string
}

// ProgressSnapshot is a point-in-time copy of Progress.
type ProgressSnapshot struct {
	Lines       int64
	WellFormed  int64
	Malformed   int64
	Samples     int64
	MeanLatency float64
	LastCounter int64
	HasCounter  bool
	Agents      int64
	Agent       string
	RunLength   int64
	Finished    bool
}

// Snapshot returns the current values. A nil Progress yields zeros.
func (p *Progress) Snapshot() ProgressSnapshot {
	if p == nil {
		return ProgressSnapshot{}
	}
	s := ProgressSnapshot{
		Lines:       p.lines.Load(),
		WellFormed:  p.wellFormed.Load(),
		Malformed:   p.malformed.Load(),
		Samples:     p.samples.Load(),
		LastCounter: p.lastCounter.Load(),
		HasCounter:  p.hasCounter.Load(),
		Agents:      p.agents.Load(),
		RunLength:   p.runLength.Load(),
		Finished:    p.finished.Load(),
	}
	if s.Samples > 0 {
		s.MeanLatency = math.Float64frombits(p.latencySum.Load()) / float64(s.Samples)
	}
	p.agentMu.RLock()
	s.Agent = p.agent
	p.agentMu.RUnlock()
	return s
}

// WellFormed returns the well-formed line count so far.
func (p *Progress) WellFormed() int64 {
	if p == nil {
		return 0
	}
	return p.wellFormed.Load()
}

func (p *Progress) line() {
	if p != nil {
		p.lines.Add(1)
	}
}

func (p *Progress) malformedLine() {
	if p != nil {
		p.malformed.Add(1)
	}
}

func (p *Progress) counter(value int64, agent string, agents int, run int) {
	if p == nil {
		return
	}
	p.wellFormed.Add(1)
	p.lastCounter.Store(value)
	p.hasCounter.Store(true)
	p.agents.Store(int64(agents))
	p.runLength.Store(int64(run))

	p.agentMu.Lock()
	p.agent = agent
	p.agentMu.Unlock()
}

func (p *Progress) latency(v float64) {
	if p == nil {
		return
	}
	p.wellFormed.Add(1)
	p.samples.Add(1)
	for {
		old := p.latencySum.Load()
		sum := math.Float64bits(math.Float64frombits(old) + v)
		if p.latencySum.CompareAndSwap(old, sum) {
			return
		}
	}
}

func (p *Progress) finish() {
	if p != nil {
		p.finished.Store(true)
	}
}
