package parser

import (
	"math"
	"testing"
)

func TestParseCounter(t *testing.T) {
	testCases := []struct {
		name        string
		line        string
		wantCounter int64
		wantAgent   string
		wantOK      bool
	}{
		{"simple", "10 x [A]", 10, "A", true},
		{"no free text", "7 [B]", 7, "B", true},
		{"no space before bracket", "7[B]", 7, "B", true},
		{"agent with spaces", "42 lee contador [LECTOR 3]", 42, "LECTOR 3", true},
		{"agent with hash", "43 modifica contador con valor [ESCRITOR #7]", 43, "ESCRITOR #7", true},
		{"trailing whitespace", "5 x [A]  \t", 5, "A", true},
		{"leading whitespace", "  5 x [A]", 5, "A", true},
		{"negative", "-3 x [A]", -3, "A", true},
		{"brackets inside free text", "9 saw [X] then [Y]", 9, "Y", true},
		{"empty", "", 0, "", false},
		{"no counter", "x [A]", 0, "", false},
		{"no agent", "10 x", 0, "", false},
		{"empty agent", "10 x []", 0, "", false},
		{"blank agent", "10 x [  ]", 0, "", false},
		{"text after agent", "10 x [A] more", 0, "", false},
		{"counter glued to text", "10x [A]", 0, "", false},
		{"unterminated bracket", "10 x [A", 0, "", false},
		{"overflow", "99999999999999999999 x [A]", 0, "", false},
		{"latency line", "op=1.5", 0, "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			counter, agent, ok := ParseCounter(tc.line)
			if ok != tc.wantOK {
				t.Fatalf("ParseCounter(%q) ok = %v, want %v", tc.line, ok, tc.wantOK)
			}
			if counter != tc.wantCounter || agent != tc.wantAgent {
				t.Errorf("ParseCounter(%q) = (%d, %q), want (%d, %q)",
					tc.line, counter, agent, tc.wantCounter, tc.wantAgent)
			}
		})
	}
}

func TestParseLatency(t *testing.T) {
	testCases := []struct {
		name   string
		line   string
		want   float64
		wantOK bool
	}{
		{"simple", "op=1.0", 1.0, true},
		{"integer", "wait=3", 3, true},
		{"client line with units", "[Cliente #12] Lector, contador=42, tiempo=18233 ns", 18233, true},
		{"uses final equals", "a=1 b=2.5", 2.5, true},
		{"whitespace around", "op=  4.25  ", 4.25, true},
		{"exponent", "op=1e3", 1000, true},
		{"empty", "", 0, false},
		{"no equals", "op 1.0", 0, false},
		{"nothing after equals", "op=", 0, false},
		{"blank after equals", "op=   ", 0, false},
		{"non-numeric", "op=fast", 0, false},
		{"partial", "op=1.2.3", 0, false},
		{"nan", "op=NaN", 0, false},
		{"inf", "op=+Inf", 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseLatency(tc.line)
			if ok != tc.wantOK {
				t.Fatalf("ParseLatency(%q) ok = %v, want %v", tc.line, ok, tc.wantOK)
			}
			if ok && math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("ParseLatency(%q) = %v, want %v", tc.line, got, tc.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	testCases := []struct {
		line string
		want Sample
	}{
		{"10 x [A]", Sample{Kind: KindCounter, Counter: 10, Agent: "A"}},
		{"op=2.0", Sample{Kind: KindLatency, Latency: 2.0}},
		// Counter shape wins when both could apply.
		{"12 v=3 [A]", Sample{Kind: KindCounter, Counter: 12, Agent: "A"}},
		{"garbage", Sample{Kind: KindNone}},
		{"", Sample{Kind: KindNone}},
	}

	for _, tc := range testCases {
		t.Run(tc.line, func(t *testing.T) {
			if got := Parse(tc.line); got != tc.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tc.line, got, tc.want)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	for kind, want := range map[Kind]string{
		KindNone:    "none",
		KindCounter: "counter",
		KindLatency: "latency",
		Kind(99):    "none",
	} {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func FuzzParse(f *testing.F) {
	for _, seed := range []string{"10 x [A]", "op=1.0", "", "[", "=", "1 [", "1 ]"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, line string) {
		s := Parse(line)
		if s.Kind == KindCounter && s.Agent == "" {
			t.Errorf("counter sample with empty agent for %q", line)
		}
		if s.Kind == KindLatency && (math.IsNaN(s.Latency) || math.IsInf(s.Latency, 0)) {
			t.Errorf("non-finite latency for %q", line)
		}
	})
}
