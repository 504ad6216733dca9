package parser

import (
	"sync"
	"sync/atomic"
)

// LineSource delivers the lines of one output stream to a single consumer.
//
// Lifecycle:
//
//  1. source := NewPipeReader(r, label, bufferSize)
//  2. go source.Run()          // read until EOF
//  3. for line := range source.Lines() { ... }
//  4. source.Drain()           // if the consumer stops early
//
// Lines() is closed when the stream ends, either at EOF or on a read error.
// Err() reports the read error, if any, after Lines() is closed.
type LineSource interface {
	// Run reads lines until the stream ends. Blocks; run in a goroutine.
	Run()

	// Lines returns the channel of lines in stream order.
	Lines() <-chan string

	// Drain discards remaining lines so the producer never stalls on a
	// consumer that stopped reading. Blocks until the stream ends.
	Drain()

	// Close releases the underlying reader. Idempotent.
	Close() error

	// Err returns the read error that ended the stream, or nil for EOF.
	Err() error

	// Stats returns (bytesRead, linesRead, healthy).
	Stats() (bytesRead int64, linesRead int64, healthy bool)
}

// Pipeline is a bounded, lossless line channel between a reader and a
// monitor. Feed blocks while the channel is full: a benchmark result is
// only meaningful if every line was seen, and the producing process gets
// back-pressure through its pipe instead of silently losing output.
type Pipeline struct {
	label      string
	bufferSize int

	lineChan  chan string
	closeOnce sync.Once

	linesFed     atomic.Int64
	linesDrained atomic.Int64
}

// NewPipeline creates a pipeline. label names the stream in logs
// ("server", "client/reader").
func NewPipeline(label string, bufferSize int) *Pipeline {
	if bufferSize < 1 {
		bufferSize = 1024
	}
	return &Pipeline{
		label:      label,
		bufferSize: bufferSize,
		lineChan:   make(chan string, bufferSize),
	}
}

// Feed queues a line, blocking while the channel is full.
func (p *Pipeline) Feed(line string) {
	p.linesFed.Add(1)
	p.lineChan <- line
}

// CloseChannel signals end of stream. Must be called exactly once by the
// producer; safe to call again.
func (p *Pipeline) CloseChannel() {
	p.closeOnce.Do(func() {
		close(p.lineChan)
	})
}

// Lines returns the receive side of the channel.
func (p *Pipeline) Lines() <-chan string {
	return p.lineChan
}

// DrainChannel reads and discards remaining lines until the channel closes.
func (p *Pipeline) DrainChannel() {
	for range p.lineChan {
		p.linesDrained.Add(1)
	}
}

// Stats returns (fed, drained) line counts.
func (p *Pipeline) Stats() (fed, drained int64) {
	return p.linesFed.Load(), p.linesDrained.Load()
}

// Label returns the stream label.
func (p *Pipeline) Label() string {
	return p.label
}

// BufferSize returns the channel capacity.
func (p *Pipeline) BufferSize() int {
	return p.bufferSize
}
