package session

import (
	"context"
	"io"
	"net"
	"strconv"
	"time"
)

// Stream is a reliable ordered duplex byte channel. Read returning 0 bytes
// with io.EOF means the peer closed the connection.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// Dialer opens a Stream to host:port.
type Dialer interface {
	Dial(ctx context.Context, host string, port int) (Stream, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, host string, port int) (Stream, error)

func (f DialerFunc) Dial(ctx context.Context, host string, port int) (Stream, error) {
	return f(ctx, host, port)
}

// TCPDialer connects over TCP.
type TCPDialer struct {
	Timeout time.Duration
}

func (d TCPDialer) Dial(ctx context.Context, host string, port int) (Stream, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	return dialer.DialContext(ctx, "tcp", joinHostPort(host, port))
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// deadline picks the earlier of now+timeout and the context deadline.
func deadline(ctx context.Context, timeout time.Duration) (time.Time, bool) {
	var out time.Time
	if timeout > 0 {
		out = time.Now().Add(timeout)
	}
	if d, ok := ctx.Deadline(); ok && (out.IsZero() || d.Before(out)) {
		out = d
	}
	return out, !out.IsZero()
}
