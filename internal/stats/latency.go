package stats

import (
	"math"

	"github.com/influxdata/tdigest"
)

// LatencySummary describes the distribution of one client's wait times.
type LatencySummary struct {
	Count int
	Min   float64
	Max   float64
	Mean  float64
	P50   float64
	P95   float64
	P99   float64
}

// LatencySummaryOf summarises a client's samples. All fields are zero for
// a client without samples.
func LatencySummaryOf(r ClientResult) LatencySummary {
	return SummarizeLatencies(r.Samples)
}

// SummarizeLatencies computes min/max/mean exactly and percentiles with a
// t-digest, so memory stays bounded for very long client runs.
func SummarizeLatencies(samples []float64) LatencySummary {
	if len(samples) == 0 {
		return LatencySummary{Mean: EmptyMean}
	}

	td := tdigest.NewWithCompression(100)
	s := LatencySummary{
		Count: len(samples),
		Min:   math.Inf(1),
		Max:   math.Inf(-1),
		Mean:  Mean(samples),
	}
	for _, v := range samples {
		td.Add(v, 1)
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}

	s.P50 = clamp(td.Quantile(0.50), s.Min, s.Max)
	s.P95 = clamp(td.Quantile(0.95), s.Min, s.Max)
	s.P99 = clamp(td.Quantile(0.99), s.Min, s.Max)
	return s
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
