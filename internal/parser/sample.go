// Package parser turns the raw progress lines printed by the benchmark
// server and clients into typed samples, and moves those lines from a
// process pipe to a monitor without losing any of them.
//
// Server lines carry a shared counter value and the identity of the agent
// that produced it:
//
//	42 lee contador [LECTOR 3]
//	43 modifica contador [ESCRITOR #7]
//
// The recognised shape is a leading integer, optional free text, and a
// trailing bracketed agent token. Client lines carry one wait time after
// the final '=':
//
//	[Cliente #12] Lector, contador=42, tiempo=18233 ns
//	op=1.5
//
// Anything else is a non-matching line. Non-matching lines are normal and
// never reported as errors.
package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies what a line parsed into.
type Kind int

const (
	// KindNone means the line matched neither shape.
	KindNone Kind = iota
	// KindCounter is a server counter line.
	KindCounter
	// KindLatency is a client wait time line.
	KindLatency
)

// String returns the label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindLatency:
		return "latency"
	default:
		return "none"
	}
}

// Sample is the typed interpretation of one line.
type Sample struct {
	Kind Kind

	// Counter and Agent are set for KindCounter.
	Counter int64
	Agent   string

	// Latency is set for KindLatency.
	Latency float64
}

// counterPattern: integer, whitespace, optional free text, [agent].
var counterPattern = regexp.MustCompile(`^\s*([+-]?\d+)\s+(?:.*\s)?\[([^\[\]]+)\]\s*$`)

// counterOnlyPattern handles "<int> [agent]" with no free text between.
var counterOnlyPattern = regexp.MustCompile(`^\s*([+-]?\d+)\s*\[([^\[\]]+)\]\s*$`)

// Parse classifies a line. Counter lines take precedence over latency lines.
func Parse(line string) Sample {
	if counter, agent, ok := ParseCounter(line); ok {
		return Sample{Kind: KindCounter, Counter: counter, Agent: agent}
	}
	if latency, ok := ParseLatency(line); ok {
		return Sample{Kind: KindLatency, Latency: latency}
	}
	return Sample{Kind: KindNone}
}

// ParseCounter extracts the counter value and agent identifier from a
// server line.
func ParseCounter(line string) (counter int64, agent string, ok bool) {
	m := counterPattern.FindStringSubmatch(line)
	if m == nil {
		m = counterOnlyPattern.FindStringSubmatch(line)
		if m == nil {
			return 0, "", false
		}
	}

	agent = strings.TrimSpace(m[2])
	if agent == "" {
		return 0, "", false
	}

	counter, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return counter, agent, true
}

// ParseLatency extracts the wait time following the final '=' of a client
// line. Trailing units ("12345 ns") are ignored; empty, partial or
// non-finite values do not match.
func ParseLatency(line string) (float64, bool) {
	idx := strings.LastIndexByte(line, '=')
	if idx < 0 {
		return 0, false
	}

	fields := strings.Fields(line[idx+1:])
	if len(fields) == 0 {
		return 0, false
	}

	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
