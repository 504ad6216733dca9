package monitor

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/randomizedcoder/go-rwlock-bench/internal/logging"
	"github.com/randomizedcoder/go-rwlock-bench/internal/parser"
	"github.com/randomizedcoder/go-rwlock-bench/internal/stats"
)

// =============================================================================
// Helpers
// =============================================================================

// staticSource returns a running line source over fixed lines.
func staticSource(lines ...string) parser.LineSource {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	src := parser.NewPipeReader(strings.NewReader(b.String()), "test", 8)
	go src.Run()
	return src
}

// liveSource returns a source fed through a pipe the test writes to.
func liveSource(t *testing.T) (parser.LineSource, *io.PipeWriter) {
	t.Helper()
	r, w := io.Pipe()
	src := parser.NewPipeReader(r, "test", 8)
	go src.Run()
	t.Cleanup(func() { w.Close() })
	return src, w
}

func newServerMonitor(src parser.LineSource, token *Token) *ServerMonitor {
	return NewServerMonitor(ServerConfig{
		Source:      src,
		Token:       token,
		IdleInitial: time.Millisecond,
		IdleMax:     5 * time.Millisecond,
		Logger:      logging.Discard(),
	})
}

func newServerMonitorWithProgress(src parser.LineSource, token *Token, p *Progress) *ServerMonitor {
	return NewServerMonitor(ServerConfig{
		Source:      src,
		Token:       token,
		IdleInitial: time.Millisecond,
		IdleMax:     5 * time.Millisecond,
		Logger:      logging.Discard(),
		Progress:    p,
	})
}

// waitLines blocks until the monitor has consumed n lines.
func waitLines(t *testing.T, p *Progress, n int64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for p.Snapshot().Lines < n {
		if time.Now().After(deadline) {
			t.Fatalf("monitor consumed %d lines, want %d", p.Snapshot().Lines, n)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func receiveServer(t *testing.T, ch <-chan stats.ServerResult) stats.ServerResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("server monitor did not publish")
		return stats.ServerResult{}
	}
}

// =============================================================================
// Token
// =============================================================================

func TestToken(t *testing.T) {
	tok := NewToken()
	if tok.Cancelled() {
		t.Fatal("new token is cancelled")
	}
	select {
	case <-tok.Done():
		t.Fatal("Done closed before Cancel")
	default:
	}

	tok.Cancel()
	tok.Cancel()
	if !tok.Cancelled() {
		t.Error("Cancelled() = false after Cancel")
	}
	select {
	case <-tok.Done():
	default:
		t.Error("Done not closed after Cancel")
	}
}

func TestToken_ConcurrentCancel(t *testing.T) {
	tok := NewToken()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok.Cancel()
			_ = tok.Cancelled()
		}()
	}
	wg.Wait()
	if !tok.Cancelled() {
		t.Error("token not cancelled")
	}
}

// =============================================================================
// ServerMonitor
// =============================================================================

func TestServerMonitor_SegmentsAndFlushOnCancel(t *testing.T) {
	src, w := liveSource(t)
	tok := NewToken()
	p := &Progress{}
	m := newServerMonitorWithProgress(src, tok, p)
	ch := m.Start()

	for _, l := range []string{"10 x [A]", "11 x [A]", "12 x [B]"} {
		fmt.Fprintln(w, l)
	}
	// The stream stays open; only the token ends the monitor.
	waitLines(t, p, 3)
	tok.Cancel()

	res := receiveServer(t, ch)
	want := []stats.Segment{{Agent: "A", Length: 2}, {Agent: "B", Length: 1}}
	if !reflect.DeepEqual(res.Segments, want) {
		t.Errorf("Segments = %v, want %v", res.Segments, want)
	}
	if res.FinalCounter != 12 || !res.HasCounter {
		t.Errorf("FinalCounter = %d (has=%v), want 12", res.FinalCounter, res.HasCounter)
	}
	if !reflect.DeepEqual(res.Agents(), []string{"A", "B"}) {
		t.Errorf("Agents() = %v, want [A B]", res.Agents())
	}
}

func TestServerMonitor_RunsOfK(t *testing.T) {
	tests := []struct{ n, k int }{
		{12, 1},
		{12, 3},
		{100, 10},
		{50, 50},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("N=%d/K=%d", tt.n, tt.k), func(t *testing.T) {
			lines := make([]string, 0, tt.n)
			for i := 0; i < tt.n; i++ {
				agent := fmt.Sprintf("agent-%d", (i/tt.k)%2)
				lines = append(lines, fmt.Sprintf("%d op [%s]", i, agent))
			}
			res := newServerMonitor(staticSource(lines...), NewToken()).Run()

			if len(res.Segments) != tt.n/tt.k {
				t.Fatalf("segments = %d, want %d", len(res.Segments), tt.n/tt.k)
			}
			for i, s := range res.Segments {
				if s.Length != tt.k {
					t.Errorf("segment %d length = %d, want %d", i, s.Length, tt.k)
				}
				if want := fmt.Sprintf("agent-%d", i%2); s.Agent != want {
					t.Errorf("segment %d agent = %q, want %q", i, s.Agent, want)
				}
			}
			if res.SegmentTotal() != res.WellFormed {
				t.Errorf("SegmentTotal = %d, WellFormed = %d", res.SegmentTotal(), res.WellFormed)
			}
		})
	}
}

func TestServerMonitor_MalformedLinesIgnored(t *testing.T) {
	res := newServerMonitor(staticSource(
		"",
		"garbage",
		"10 x [A]",
		"op=1.5",
		"[1700000000.1][LECTOR 3] lee contador con valor 9",
		"11 x [A]",
		"12 x",
		"13 x [B]",
		"nonsense [",
	), NewToken()).Run()

	want := []stats.Segment{{Agent: "A", Length: 2}, {Agent: "B", Length: 1}}
	if !reflect.DeepEqual(res.Segments, want) {
		t.Errorf("Segments = %v, want %v", res.Segments, want)
	}
	if res.FinalCounter != 13 {
		t.Errorf("FinalCounter = %d, want 13", res.FinalCounter)
	}
	if res.LinesRead != 9 || res.WellFormed != 3 || res.Malformed != 6 {
		t.Errorf("lines/well/malformed = %d/%d/%d, want 9/3/6", res.LinesRead, res.WellFormed, res.Malformed)
	}
}

func TestServerMonitor_EmptyStream(t *testing.T) {
	res := newServerMonitor(staticSource(), NewToken()).Run()
	if res.HasCounter || len(res.Segments) != 0 || len(res.ClientsSeen) != 0 {
		t.Errorf("empty stream result = %+v, want empty", res)
	}
	if res.ClientsSeen == nil {
		t.Error("ClientsSeen should be non-nil")
	}
}

func TestServerMonitor_SingleLineRunFlushed(t *testing.T) {
	src, w := liveSource(t)
	tok := NewToken()
	p := &Progress{}
	m := newServerMonitorWithProgress(src, tok, p)
	ch := m.Start()

	fmt.Fprintln(w, "5 x [ONLY]")
	<-m.Ready()
	waitLines(t, p, 1)
	tok.Cancel()

	res := receiveServer(t, ch)
	if !reflect.DeepEqual(res.Segments, []stats.Segment{{Agent: "ONLY", Length: 1}}) {
		t.Errorf("Segments = %v, want [{ONLY 1}]", res.Segments)
	}
}

func TestServerMonitor_DoesNotStopWithoutCancel(t *testing.T) {
	src, w := liveSource(t)
	tok := NewToken()
	p := &Progress{}
	ch := newServerMonitorWithProgress(src, tok, p).Start()

	fmt.Fprintln(w, "1 x [A]")
	select {
	case <-ch:
		t.Fatal("monitor stopped while idle without cancellation")
	case <-time.After(100 * time.Millisecond):
	}

	fmt.Fprintln(w, "2 x [A]")
	waitLines(t, p, 2)
	tok.Cancel()
	res := receiveServer(t, ch)
	if res.FinalCounter != 2 {
		t.Errorf("FinalCounter = %d, want 2", res.FinalCounter)
	}
}

func TestServerMonitor_DrainsPendingBeforeCancelStop(t *testing.T) {
	// Lines already buffered when the token is set must still be counted.
	src, w := liveSource(t)
	tok := NewToken()
	tok.Cancel()
	ch := newServerMonitor(src, tok).Start()

	go func() {
		for i := 0; i < 5; i++ {
			fmt.Fprintf(w, "%d x [A]\n", i)
		}
		w.Close()
	}()

	res := receiveServer(t, ch)
	// Either the monitor read all five before going idle, or it stopped on
	// the first idle tick; in both cases every counted line is in a segment.
	if res.SegmentTotal() != res.WellFormed {
		t.Errorf("SegmentTotal = %d, WellFormed = %d", res.SegmentTotal(), res.WellFormed)
	}
}

func TestServerMonitor_CounterRegressions(t *testing.T) {
	res := newServerMonitor(staticSource("5 x [A]", "6 x [A]", "4 x [B]", "7 x [B]"), NewToken()).Run()
	if res.CounterRegressions != 1 {
		t.Errorf("CounterRegressions = %d, want 1", res.CounterRegressions)
	}
	if res.FinalCounter != 7 {
		t.Errorf("FinalCounter = %d, want 7", res.FinalCounter)
	}
}

func TestServerMonitor_ProgressAndHook(t *testing.T) {
	var counters, others atomic.Int32
	p := &Progress{}
	m := NewServerMonitor(ServerConfig{
		Source:   staticSource("1 x [A]", "junk", "2 x [B]"),
		Logger:   logging.Discard(),
		Progress: p,
		OnLine: func(k parser.Kind) {
			if k == parser.KindCounter {
				counters.Add(1)
			} else {
				others.Add(1)
			}
		},
	})
	m.Run()

	snap := p.Snapshot()
	if snap.Lines != 3 || snap.WellFormed != 2 || snap.Malformed != 1 {
		t.Errorf("snapshot lines/well/malformed = %d/%d/%d, want 3/2/1", snap.Lines, snap.WellFormed, snap.Malformed)
	}
	if snap.Agent != "B" || snap.LastCounter != 2 || snap.Agents != 2 || !snap.Finished {
		t.Errorf("snapshot = %+v", snap)
	}
	if counters.Load() != 2 || others.Load() != 1 {
		t.Errorf("hook counters/others = %d/%d, want 2/1", counters.Load(), others.Load())
	}
}

// =============================================================================
// ClientMonitor
// =============================================================================

func newClientMonitor(src parser.LineSource, maxLines int) *ClientMonitor {
	return NewClientMonitor(ClientConfig{
		Source:   src,
		Name:     "test",
		MaxLines: maxLines,
		Logger:   logging.Discard(),
	})
}

func TestClientMonitor_Mean(t *testing.T) {
	res := newClientMonitor(staticSource("op=1.0", "op=2.0", "op=3.0"), 0).Run()

	if !reflect.DeepEqual(res.Samples, []float64{1, 2, 3}) {
		t.Errorf("Samples = %v, want [1 2 3]", res.Samples)
	}
	if res.MeanLatency != 2.0 {
		t.Errorf("MeanLatency = %v, want 2.0", res.MeanLatency)
	}
	if res.ExecTime < 0 {
		t.Errorf("ExecTime = %v, want >= 0", res.ExecTime)
	}
}

func TestClientMonitor_EmptyStream(t *testing.T) {
	res := newClientMonitor(staticSource(), 0).Run()

	if len(res.Samples) != 0 {
		t.Errorf("Samples = %v, want empty", res.Samples)
	}
	if res.MeanLatency != stats.EmptyMean {
		t.Errorf("MeanLatency = %v, want EmptyMean", res.MeanLatency)
	}
	if res.ExecTime < 0 {
		t.Errorf("ExecTime = %v, want >= 0", res.ExecTime)
	}
}

func TestClientMonitor_RealClientLines(t *testing.T) {
	res := newClientMonitor(staticSource(
		"[Cliente #0] Escritor, contador=1, tiempo=1000 ns",
		"connecting...",
		"[Cliente #1] Lector, contador=1, tiempo=3000 ns",
		"10 x [A]",
		"",
	), 0).Run()

	if !reflect.DeepEqual(res.Samples, []float64{1000, 3000}) {
		t.Errorf("Samples = %v, want [1000 3000]", res.Samples)
	}
	if res.MeanLatency != 2000 {
		t.Errorf("MeanLatency = %v, want 2000", res.MeanLatency)
	}
	if res.Malformed != 3 {
		t.Errorf("Malformed = %d, want 3", res.Malformed)
	}
}

func TestClientMonitor_LineBudget(t *testing.T) {
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = fmt.Sprintf("op=%d", i)
	}
	src := staticSource(lines...)
	res := newClientMonitor(src, 10).Run()

	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
	if len(res.Samples) != 10 {
		t.Errorf("samples = %d, want 10", len(res.Samples))
	}
	if res.MeanLatency != 4.5 {
		t.Errorf("MeanLatency = %v, want 4.5", res.MeanLatency)
	}

	// The remainder is drained so the producer finishes.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, n, _ := src.Stats(); n == 100 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("producer did not finish after truncation")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClientMonitor_ExecTimeFromLaunch(t *testing.T) {
	launch := time.Now().Add(-200 * time.Millisecond)
	res := NewClientMonitor(ClientConfig{
		Source:    staticSource("op=1"),
		StartTime: launch,
		Logger:    logging.Discard(),
	}).Run()

	if res.ExecTime < 200*time.Millisecond {
		t.Errorf("ExecTime = %v, want >= 200ms", res.ExecTime)
	}
}

func TestClientMonitor_StartPublishesOnce(t *testing.T) {
	ch := newClientMonitor(staticSource("op=1"), 0).Start()
	select {
	case r := <-ch:
		if len(r.Samples) != 1 {
			t.Errorf("samples = %v", r.Samples)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("client monitor did not publish")
	}
}

func TestClientMonitor_Progress(t *testing.T) {
	p := &Progress{}
	NewClientMonitor(ClientConfig{
		Source:   staticSource("op=1", "op=3", "noise"),
		Logger:   logging.Discard(),
		Progress: p,
	}).Run()

	snap := p.Snapshot()
	if snap.Samples != 2 || snap.MeanLatency != 2 || snap.Malformed != 1 || !snap.Finished {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestProgress_NilSafe(t *testing.T) {
	var p *Progress
	p.line()
	p.latency(1)
	p.finish()
	if s := p.Snapshot(); s != (ProgressSnapshot{}) {
		t.Errorf("nil Snapshot = %+v, want zero", s)
	}
	if p.WellFormed() != 0 {
		t.Error("nil WellFormed != 0")
	}
}

// queuedSource is a line source whose lines are all queued up front and
// whose stream never ends.
type queuedSource struct {
	ch chan string
}

func newQueuedSource(lines ...string) *queuedSource {
	ch := make(chan string, len(lines))
	for _, l := range lines {
		ch <- l
	}
	return &queuedSource{ch: ch}
}

func (s *queuedSource) Run() {}
func (s *queuedSource) Lines() <-chan string { return s.ch }
func (s *queuedSource) Drain() {}
func (s *queuedSource) Close() error { return nil }
func (s *queuedSource) Err() error { return nil }
func (s *queuedSource) Stats() (int64, int64, bool) { return 0, 0, true }

func TestServerMonitor_QueuedLinesSurviveCancel(t *testing.T) {
	// A slow hook lets the idle timer fire while lines are still queued.
	for i := 0; i < 20; i++ {
		lines := make([]string, 10)
		for j := range lines {
			lines[j] = fmt.Sprintf("%d x [A]", j+1)
		}
		tok := NewToken()
		tok.Cancel()
		m := NewServerMonitor(ServerConfig{
			Source:      newQueuedSource(lines...),
			Token:       tok,
			IdleInitial: time.Millisecond,
			IdleMax:     time.Millisecond,
			Logger:      logging.Discard(),
			OnLine:      func(parser.Kind) { time.Sleep(2 * time.Millisecond) },
		})

		res := receiveServer(t, m.Start())
		if res.WellFormed != 10 {
			t.Fatalf("run %d: WellFormed = %d, want 10", i, res.WellFormed)
		}
		if want := []stats.Segment{{Agent: "A", Length: 10}}; !reflect.DeepEqual(res.Segments, want) {
			t.Fatalf("run %d: Segments = %v, want %v", i, res.Segments, want)
		}
		if res.FinalCounter != 10 {
			t.Fatalf("run %d: FinalCounter = %d, want 10", i, res.FinalCounter)
		}
	}
}

func TestServerMonitor_OversizedLineIsMalformed(t *testing.T) {
	huge := strings.Repeat("x", 2*parser.MaxLineSize)
	res := newServerMonitor(staticSource("10 a [A]", huge, "11 a [A]", "12 b [B]"), NewToken()).Run()

	if want := []stats.Segment{{Agent: "A", Length: 2}, {Agent: "B", Length: 1}}; !reflect.DeepEqual(res.Segments, want) {
		t.Errorf("Segments = %v, want %v", res.Segments, want)
	}
	if res.FinalCounter != 12 {
		t.Errorf("FinalCounter = %d, want 12", res.FinalCounter)
	}
	if res.Malformed != 1 {
		t.Errorf("Malformed = %d, want 1", res.Malformed)
	}
	if res.StreamErr != nil {
		t.Errorf("StreamErr = %v, want nil", res.StreamErr)
	}
}

func TestClientMonitor_OversizedLineIsMalformed(t *testing.T) {
	huge := strings.Repeat("x", 2*parser.MaxLineSize)
	res := newClientMonitor(staticSource("op=1.0", huge, "op=2.0", "op=3.0"), 0).Run()

	if !reflect.DeepEqual(res.Samples, []float64{1, 2, 3}) {
		t.Errorf("Samples = %v, want [1 2 3]", res.Samples)
	}
	if res.Malformed != 1 {
		t.Errorf("Malformed = %d, want 1", res.Malformed)
	}
}
