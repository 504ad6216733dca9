package stats

import "sort"

// AgentShare is one agent's portion of the server's well-formed lines.
type AgentShare struct {
	Agent string
	Lines int
	Runs  int
	Share float64
}

// Fairness summarises how service alternated between agents.
type Fairness struct {
	Segments  int
	Switches  int
	MeanRun   float64
	MaxRun    int
	MaxRunBy  string
	Shares    []AgentShare
	JainIndex float64
}

// FairnessOf derives run and share statistics from a server result.
// Shares are sorted by descending line count, then agent name.
func FairnessOf(r ServerResult) Fairness {
	f := Fairness{Segments: len(r.Segments)}
	if len(r.Segments) == 0 {
		return f
	}
	f.Switches = len(r.Segments) - 1

	lines := make(map[string]int)
	runs := make(map[string]int)
	total := 0
	for _, s := range r.Segments {
		lines[s.Agent] += s.Length
		runs[s.Agent]++
		total += s.Length
		if s.Length > f.MaxRun {
			f.MaxRun = s.Length
			f.MaxRunBy = s.Agent
		}
	}
	f.MeanRun = float64(total) / float64(len(r.Segments))

	for agent, n := range lines {
		f.Shares = append(f.Shares, AgentShare{
			Agent: agent,
			Lines: n,
			Runs:  runs[agent],
			Share: float64(n) / float64(total),
		})
	}
	sort.Slice(f.Shares, func(i, j int) bool {
		if f.Shares[i].Lines != f.Shares[j].Lines {
			return f.Shares[i].Lines > f.Shares[j].Lines
		}
		return f.Shares[i].Agent < f.Shares[j].Agent
	})

	f.JainIndex = jainIndex(f.Shares)
	return f
}

// jainIndex is (Σx)² / (n·Σx²) over per-agent line counts.
// 1.0 means every agent got the same service; 1/n means one agent got it all.
func jainIndex(shares []AgentShare) float64 {
	if len(shares) == 0 {
		return 0
	}
	var sum, sumSq float64
	for _, s := range shares {
		x := float64(s.Lines)
		sum += x
		sumSq += x * x
	}
	if sumSq == 0 {
		return 0
	}
	return (sum * sum) / (float64(len(shares)) * sumSq)
}
