package stats

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func TestMean(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		want    float64
	}{
		{"empty", nil, EmptyMean},
		{"single", []float64{4}, 4},
		{"three", []float64{1, 2, 3}, 2},
		{"fractional", []float64{0.5, 1.5}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mean(tt.samples); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Mean(%v) = %v, want %v", tt.samples, got, tt.want)
			}
		})
	}
}

func TestServerResult_Agents(t *testing.T) {
	r := NewServerResult()
	for _, a := range []string{"ESCRITOR #2", "LECTOR 1", "ESCRITOR #1"} {
		r.ClientsSeen[a] = struct{}{}
	}
	want := []string{"ESCRITOR #1", "ESCRITOR #2", "LECTOR 1"}
	if got := r.Agents(); !reflect.DeepEqual(got, want) {
		t.Errorf("Agents() = %v, want %v", got, want)
	}
}

func TestServerResult_SegmentTotal(t *testing.T) {
	r := ServerResult{Segments: []Segment{{"A", 2}, {"B", 1}, {"A", 4}}}
	if got := r.SegmentTotal(); got != 7 {
		t.Errorf("SegmentTotal() = %d, want 7", got)
	}
}

func TestClientResult_Helpers(t *testing.T) {
	empty := ClientResult{}
	if empty.HasSamples() {
		t.Error("empty result reports samples")
	}

	r := ClientResult{Samples: []float64{1}, ExecTime: 1500 * time.Millisecond}
	if !r.HasSamples() {
		t.Error("HasSamples() = false, want true")
	}
	if got := r.ExecSeconds(); got != 1.5 {
		t.Errorf("ExecSeconds() = %v, want 1.5", got)
	}
}
