package monitor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/randomizedcoder/go-rwlock-bench/internal/parser"
	"github.com/randomizedcoder/go-rwlock-bench/internal/stats"
	"github.com/randomizedcoder/go-rwlock-bench/internal/supervisor"
)

// Default idle polling bounds for the server monitor.
const (
	DefaultIdleInitial = 10 * time.Millisecond
	DefaultIdleMax     = 100 * time.Millisecond
)

// LineHook observes every line a monitor classifies. Called from the
// monitor goroutine; must not block.
type LineHook func(kind parser.Kind)

// ServerConfig holds configuration for a ServerMonitor.
type ServerConfig struct {
	Source parser.LineSource
	Token  *Token

	// IdleInitial and IdleMax bound the wait for the next line.
	IdleInitial time.Duration
	IdleMax     time.Duration

	Logger   *slog.Logger
	Progress *Progress
	OnLine   LineHook
}

// ServerMonitor follows the server's output and tracks the shared counter
// and which agent is being served. It stops when the stream ends, or when
// the token is set and the stream has gone idle.
type ServerMonitor struct {
	source      parser.LineSource
	token       *Token
	idleInitial time.Duration
	idleMax     time.Duration
	logger      *slog.Logger
	progress    *Progress
	onLine      LineHook

	ready     chan struct{}
	readyOnce sync.Once
}

// NewServerMonitor creates a server monitor.
func NewServerMonitor(cfg ServerConfig) *ServerMonitor {
	if cfg.IdleInitial <= 0 {
		cfg.IdleInitial = DefaultIdleInitial
	}
	if cfg.IdleMax < cfg.IdleInitial {
		cfg.IdleMax = max(DefaultIdleMax, cfg.IdleInitial)
	}
	if cfg.Token == nil {
		cfg.Token = NewToken()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ServerMonitor{
		source:      cfg.Source,
		token:       cfg.Token,
		idleInitial: cfg.IdleInitial,
		idleMax:     cfg.IdleMax,
		logger:      cfg.Logger,
		progress:    cfg.Progress,
		onLine:      cfg.OnLine,
		ready:       make(chan struct{}),
	}
}

// Ready is closed when the first line of any kind arrives.
func (m *ServerMonitor) Ready() <-chan struct{} {
	return m.ready
}

// Start runs the monitor in a new goroutine. The returned channel
// delivers exactly one result.
func (m *ServerMonitor) Start() <-chan stats.ServerResult {
	out := make(chan stats.ServerResult, 1)
	go func() {
		out <- m.Run()
	}()
	return out
}

// Run blocks until the monitor stops and returns its result.
func (m *ServerMonitor) Run() stats.ServerResult {
	res := stats.NewServerResult()
	var (
		curAgent string
		curLen   int
		last     int64
	)

	flush := func(reason string) stats.ServerResult {
		if curLen > 0 {
			res.Segments = append(res.Segments, stats.Segment{Agent: curAgent, Length: curLen})
		}
		m.progress.finish()
		m.logger.Info("server_monitor_flushed",
			"reason", reason,
			"final_counter", res.FinalCounter,
			"has_counter", res.HasCounter,
			"segments", len(res.Segments),
			"agents", len(res.ClientsSeen),
			"lines", res.LinesRead,
			"malformed", res.Malformed,
		)
		return res
	}

	backoff := supervisor.NewBackoff(0, supervisor.IdleBackoffConfig(m.idleInitial, m.idleMax))
	timer := time.NewTimer(backoff.Next())
	defer timer.Stop()

	handle := func(line string) {
		m.readyOnce.Do(func() { close(m.ready) })

		backoff.Reset()
		resetTimer(timer, backoff.Next())

		res.LinesRead++
		m.progress.line()

		counter, agent, isCounter := parser.ParseCounter(line)
		if !isCounter {
			res.Malformed++
			m.progress.malformedLine()
			m.hook(parser.KindNone)
			return
		}
		m.hook(parser.KindCounter)

		res.WellFormed++
		if res.HasCounter && counter < last {
			res.CounterRegressions++
		}
		last = counter
		res.FinalCounter = counter
		res.HasCounter = true
		res.ClientsSeen[agent] = struct{}{}

		switch {
		case curLen == 0:
			curAgent, curLen = agent, 1
		case agent == curAgent:
			curLen++
		default:
			res.Segments = append(res.Segments, stats.Segment{Agent: curAgent, Length: curLen})
			curAgent, curLen = agent, 1
		}
		m.progress.counter(counter, curAgent, len(res.ClientsSeen), curLen)
	}

	eof := func() stats.ServerResult {
		if err := m.source.Err(); err != nil {
			res.StreamErr = err
			m.logger.Warn("server_stream_error", "error", err)
		}
		return flush("eof")
	}

	lines := m.source.Lines()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return eof()
			}
			handle(line)

		case <-timer.C:
			if !m.token.Cancelled() {
				timer.Reset(backoff.Next())
				continue
			}
			// The timer can win against a line that is already queued;
			// only an empty channel counts as idle.
			select {
			case line, ok := <-lines:
				if !ok {
					return eof()
				}
				handle(line)
				continue
			default:
			}
			// Keep the producer from stalling on a full channel.
			go m.source.Drain()
			return flush("cancelled")
		}
	}
}

func (m *ServerMonitor) hook(kind parser.Kind) {
	if m.onLine != nil {
		m.onLine(kind)
	}
}

// resetTimer restarts a timer whose channel may or may not have fired.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
