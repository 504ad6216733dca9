package stats

import (
	"math"
	"testing"
)

func TestFairnessOf_Empty(t *testing.T) {
	f := FairnessOf(NewServerResult())
	if f.Segments != 0 || f.Switches != 0 || f.JainIndex != 0 || len(f.Shares) != 0 {
		t.Errorf("FairnessOf(empty) = %+v, want zero value", f)
	}
}

func TestFairnessOf(t *testing.T) {
	tests := []struct {
		name         string
		segments     []Segment
		wantSwitches int
		wantMeanRun  float64
		wantMaxRun   int
		wantMaxBy    string
		wantJain     float64
		wantTop      string
	}{
		{
			name:         "single agent",
			segments:     []Segment{{"A", 5}},
			wantSwitches: 0,
			wantMeanRun:  5,
			wantMaxRun:   5,
			wantMaxBy:    "A",
			wantJain:     1,
			wantTop:      "A",
		},
		{
			name:         "even alternation",
			segments:     []Segment{{"A", 2}, {"B", 2}, {"A", 2}, {"B", 2}},
			wantSwitches: 3,
			wantMeanRun:  2,
			wantMaxRun:   2,
			wantMaxBy:    "A",
			wantJain:     1,
			wantTop:      "A",
		},
		{
			name:         "skewed",
			segments:     []Segment{{"W", 9}, {"R", 1}},
			wantSwitches: 1,
			wantMeanRun:  5,
			wantMaxRun:   9,
			wantMaxBy:    "W",
			// (10)^2 / (2 * (81+1)) = 100/164
			wantJain: 100.0 / 164.0,
			wantTop:  "W",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := FairnessOf(ServerResult{Segments: tt.segments})
			if f.Segments != len(tt.segments) {
				t.Errorf("Segments = %d, want %d", f.Segments, len(tt.segments))
			}
			if f.Switches != tt.wantSwitches {
				t.Errorf("Switches = %d, want %d", f.Switches, tt.wantSwitches)
			}
			if f.MeanRun != tt.wantMeanRun {
				t.Errorf("MeanRun = %v, want %v", f.MeanRun, tt.wantMeanRun)
			}
			if f.MaxRun != tt.wantMaxRun || f.MaxRunBy != tt.wantMaxBy {
				t.Errorf("MaxRun = %d by %q, want %d by %q", f.MaxRun, f.MaxRunBy, tt.wantMaxRun, tt.wantMaxBy)
			}
			if math.Abs(f.JainIndex-tt.wantJain) > 1e-9 {
				t.Errorf("JainIndex = %v, want %v", f.JainIndex, tt.wantJain)
			}
			if f.Shares[0].Agent != tt.wantTop {
				t.Errorf("top share = %q, want %q", f.Shares[0].Agent, tt.wantTop)
			}
		})
	}
}

func TestFairnessOf_SharesSumToOne(t *testing.T) {
	f := FairnessOf(ServerResult{Segments: []Segment{{"A", 3}, {"B", 1}, {"C", 2}, {"A", 1}}})

	var sum float64
	for _, s := range f.Shares {
		sum += s.Share
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("shares sum to %v, want 1", sum)
	}
	if f.Shares[0].Agent != "A" || f.Shares[0].Runs != 2 || f.Shares[0].Lines != 4 {
		t.Errorf("Shares[0] = %+v, want A with 4 lines over 2 runs", f.Shares[0])
	}
}
