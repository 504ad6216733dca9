package parser

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// MaxLineSize is the longest line accepted from a process.
const MaxLineSize = 1024 * 1024

const readBufferSize = 64 * 1024

// PipeReader reads newline-delimited output from an io.Reader (usually the
// read end of an os.Pipe handed to a child process) into a Pipeline.
// Implements LineSource.
type PipeReader struct {
	reader   io.Reader
	pipeline *Pipeline

	closeOnce sync.Once

	errMu sync.Mutex
	err   error

	bytesRead atomic.Int64
	linesRead atomic.Int64
	oversized atomic.Int64
}

// NewPipeReader creates a line source over r.
func NewPipeReader(r io.Reader, label string, bufferSize int) *PipeReader {
	return &PipeReader{
		reader:   r,
		pipeline: NewPipeline(label, bufferSize),
	}
}

// Run reads lines until EOF or a read error, then closes Lines(). A line
// longer than MaxLineSize is discarded and delivered as an empty line, so
// consumers count it as malformed and the stream keeps going.
func (p *PipeReader) Run() {
	defer p.pipeline.CloseChannel()

	br := bufio.NewReaderSize(p.reader, readBufferSize)
	var (
		buf       []byte
		oversized bool
	)
	for {
		chunk, err := br.ReadSlice('\n')
		p.bytesRead.Add(int64(len(chunk)))
		if !oversized {
			buf = append(buf, chunk...)
			if len(bytes.TrimRight(buf, "\r\n")) > MaxLineSize {
				oversized = true
				buf = buf[:0]
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		if err == nil || len(buf) > 0 || oversized {
			p.linesRead.Add(1)
			if oversized {
				p.oversized.Add(1)
				p.pipeline.Feed("")
			} else {
				p.pipeline.Feed(string(bytes.TrimRight(buf, "\r\n")))
			}
		}
		buf, oversized = buf[:0], false

		if err != nil {
			if !isClosedErr(err) {
				p.errMu.Lock()
				p.err = err
				p.errMu.Unlock()
			}
			return
		}
	}
}

// OversizedLines returns how many lines exceeded MaxLineSize.
func (p *PipeReader) OversizedLines() int64 {
	return p.oversized.Load()
}

// Lines implements LineSource.
func (p *PipeReader) Lines() <-chan string {
	return p.pipeline.Lines()
}

// Drain implements LineSource.
func (p *PipeReader) Drain() {
	p.pipeline.DrainChannel()
}

// Close closes the underlying reader when it is an io.Closer. A blocked
// Run returns once the close unblocks its read.
func (p *PipeReader) Close() error {
	var err error
	p.closeOnce.Do(func() {
		if c, ok := p.reader.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}

// Err implements LineSource.
func (p *PipeReader) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// Stats implements LineSource. healthy is false once a read error ended
// the stream.
func (p *PipeReader) Stats() (bytesRead int64, linesRead int64, healthy bool) {
	return p.bytesRead.Load(), p.linesRead.Load(), p.Err() == nil
}

// Pipeline exposes the underlying channel stats.
func (p *PipeReader) Pipeline() *Pipeline {
	return p.pipeline
}

// isClosedErr reports whether err only means our own Close raced the read.
func isClosedErr(err error) bool {
	return errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, io.EOF)
}

var _ LineSource = (*PipeReader)(nil)
