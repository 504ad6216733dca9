package logging

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single stderr line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the number of recent lines kept per process.
	MaxBufferedLines = 100
)

// StderrHandler consumes the stderr stream of a benchmark process.
// It keeps the most recent lines for failure reports and logs each line
// tagged with the process label.
type StderrHandler struct {
	label   string
	logger  *slog.Logger
	verbose bool

	buffer []string
	bufIdx int
	total  int
	mu     sync.Mutex
}

// NewStderrHandler creates a stderr handler for the process named label
// (for example "server" or "client/writer").
func NewStderrHandler(label string, logger *slog.Logger, verbose bool) *StderrHandler {
	return &StderrHandler{
		label:   label,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// HandleReader reads r line by line until EOF or a read error. Lines
// longer than MaxLineLength are truncated, never fatal, so the child is
// never left writing into a pipe nobody reads.
// This should be run in a goroutine.
func (h *StderrHandler) HandleReader(r io.Reader) {
	br := bufio.NewReaderSize(r, MaxLineLength)
	var line []byte
	for {
		chunk, err := br.ReadSlice('\n')
		// Keep one byte past the limit so HandleLine marks the truncation.
		if room := MaxLineLength + 1 - len(line); room > 0 {
			line = append(line, chunk[:min(room, len(chunk))]...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err == nil || len(line) > 0 {
			h.HandleLine(strings.TrimRight(string(line), "\r\n"))
		}
		line = line[:0]
		if err != nil {
			return
		}
	}
}

// HandleLine records and logs a single stderr line.
func (h *StderrHandler) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.total++
	h.mu.Unlock()

	level := classifyLine(line)
	if !h.verbose && level == slog.LevelDebug {
		return
	}
	h.logger.Log(context.Background(), level, "process_stderr",
		"process", h.label,
		"line", line,
	)
}

// classifyLine picks a log level from the line content.
func classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	switch {
	case strings.Contains(lower, "error"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "address already in use"),
		strings.Contains(lower, "fatal"):
		return slog.LevelWarn
	case strings.Contains(lower, "warn"),
		strings.Contains(lower, "retry"),
		strings.Contains(lower, "timeout"):
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}

// RecentLines returns up to n of the most recent lines, oldest first.
func (h *StderrHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		if h.buffer[idx] != "" {
			lines = append(lines, h.buffer[idx])
		}
	}
	return lines
}

// TotalLines returns the number of lines seen, including evicted ones.
func (h *StderrHandler) TotalLines() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

// ErrorPatterns are the stderr patterns counted for failure reports.
var ErrorPatterns = []string{
	"Connection refused",
	"Address already in use",
	"Broken pipe",
	"Connection reset",
	"timeout",
	"Segmentation fault",
}

// CountErrors counts occurrences of ErrorPatterns in the buffer.
func (h *StderrHandler) CountErrors() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int)
	for _, line := range h.buffer {
		if line == "" {
			continue
		}
		for _, pattern := range ErrorPatterns {
			if strings.Contains(line, pattern) {
				counts[pattern]++
			}
		}
	}
	return counts
}
