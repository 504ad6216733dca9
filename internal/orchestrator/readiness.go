package orchestrator

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/randomizedcoder/go-rwlock-bench/internal/supervisor"
)

// Readiness sources recorded in scenario reports.
const (
	ReadyFirstLine = "first_line"
	ReadyTCP       = "tcp"
)

const probeDialTimeout = 250 * time.Millisecond

// waitReady blocks until the server has printed a line or accepts a TCP
// connection on addr, whichever comes first. It fails when the server
// exits first, when timeout passes, or when ctx is cancelled.
func waitReady(ctx context.Context, addr string, firstLine, exited <-chan struct{},
	timeout time.Duration, cfg supervisor.BackoffConfig) (string, error) {

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	accepted := make(chan struct{})
	go probeTCP(probeCtx, addr, cfg, accepted)

	select {
	case <-firstLine:
		return ReadyFirstLine, nil
	case <-accepted:
		return ReadyTCP, nil
	case <-exited:
		// A line printed before the exit still counts as ready.
		select {
		case <-firstLine:
			return ReadyFirstLine, nil
		default:
		}
		return "", ErrServerExited
	case <-probeCtx.Done():
		if ctx.Err() != nil {
			return "", ErrInterrupted
		}
		return "", fmt.Errorf("%w within %s", ErrServerNotReady, timeout)
	}
}

// probeTCP dials addr with backoff until it connects or ctx ends, and
// closes accepted on success.
func probeTCP(ctx context.Context, addr string, cfg supervisor.BackoffConfig, accepted chan<- struct{}) {
	backoff := supervisor.NewBackoff(time.Now().UnixNano(), cfg)
	dialer := net.Dialer{Timeout: probeDialTimeout}

	for {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			close(accepted)
			return
		}

		timer := time.NewTimer(backoff.Next())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
