package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/danmuck/packwire/internal/protocol"
)

var (
	ErrConnect    = errors.New("session: connect failed")
	ErrIO         = errors.New("session: i/o failure")
	ErrShortWrite = errors.New("session: short write")
	ErrPeerClosed = fmt.Errorf("%w: peer closed before a complete response", ErrIO)
	ErrClosed     = errors.New("session: closed")
)

// Reply is the outcome of one successful round trip. Result is
// protocol.ResultSuccess or protocol.ResultExtraBytes; in the latter case the
// bytes that followed Value were discarded.
type Reply struct {
	Value        protocol.Value
	Result       protocol.Result
	BytesWritten int
	BytesRead    int
}

// Trailing reports whether the peer sent bytes after the reply value.
func (r Reply) Trailing() bool {
	return r.Result == protocol.ResultExtraBytes
}

type Option func(*Session)

// WithDialer replaces the TCP dialer.
func WithDialer(d Dialer) Option {
	return func(s *Session) {
		if d != nil {
			s.dialer = d
		}
	}
}

// Session performs request/response exchanges against one configured peer.
// Each RoundTrip opens its own connection and closes it before returning. The
// decoder buffer is kept between round trips and released by Close.
//
// A Session is not safe for concurrent use.
type Session struct {
	cfg    Config
	dialer Dialer
	dec    *protocol.Decoder
	closed bool
}

func New(cfg Config, opts ...Option) (*Session, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		cfg:    cfg,
		dialer: TCPDialer{Timeout: cfg.ConnectTimeout},
		dec:    protocol.NewDecoder(cfg.Limits),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Session) Config() Config { return s.cfg }

// RoundTrip encodes req, connects, writes it in one call and reads until one
// reply value is decoded. Encoding errors are returned before any I/O.
func (s *Session) RoundTrip(ctx context.Context, req protocol.Value) (Reply, error) {
	if s.closed {
		return Reply{}, ErrClosed
	}
	payload, err := protocol.Marshal(req)
	if err != nil {
		return Reply{}, err
	}

	raw, err := s.dialer.Dial(ctx, s.cfg.Host, s.cfg.Port)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %s: %w", ErrConnect, s.cfg.Address(), err)
	}
	stream := guard(raw)
	defer stream.Close()

	return exchange(ctx, stream, raw, s.dec, payload, s.cfg)
}

// Close releases the decoder buffer. Later round trips fail with ErrClosed.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.dec.Release()
	return nil
}

// Exchange runs one request/response exchange on an already connected
// stream. The caller keeps ownership of stream; it is only closed early if
// ctx is cancelled, to unblock a pending read. dec is reset before returning.
func Exchange(ctx context.Context, stream Stream, dec *protocol.Decoder, req protocol.Value, cfg Config) (Reply, error) {
	cfg = cfg.WithDefaults()
	payload, err := protocol.Marshal(req)
	if err != nil {
		return Reply{}, err
	}
	return exchange(ctx, guard(stream), stream, dec, payload, cfg)
}

func exchange(ctx context.Context, stream Stream, raw Stream, dec *protocol.Decoder, payload []byte, cfg Config) (Reply, error) {
	defer dec.Reset()
	var reply Reply

	if err := ctx.Err(); err != nil {
		return reply, fmt.Errorf("%w: %w", ErrIO, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stop()

	if wd, ok := raw.(writeDeadliner); ok {
		if d, ok := deadline(ctx, cfg.WriteTimeout); ok {
			_ = wd.SetWriteDeadline(d)
		}
	}
	n, err := stream.Write(payload)
	reply.BytesWritten = n
	if err != nil {
		return reply, ioErr(ctx, "write", err)
	}
	if n != len(payload) {
		return reply, fmt.Errorf("%w: %w: wrote %d of %d bytes", ErrIO, ErrShortWrite, n, len(payload))
	}

	rd, canDeadline := raw.(readDeadliner)
	for {
		room, err := dec.ReserveChunk(cfg.ChunkSize)
		if err != nil {
			return reply, err
		}
		if canDeadline {
			if d, ok := deadline(ctx, cfg.ReadTimeout); ok {
				_ = rd.SetReadDeadline(d)
			}
		}

		n, rerr := stream.Read(dec.Buffer()[:room])
		if n > 0 {
			reply.BytesRead += n
			if err := dec.Feed(n); err != nil {
				return reply, err
			}
			v, res, err := dec.Next()
			switch res {
			case protocol.ResultSuccess, protocol.ResultExtraBytes:
				reply.Value = v
				reply.Result = res
				return reply, nil
			case protocol.ResultParseError, protocol.ResultOutOfMemory:
				return reply, err
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return reply, fmt.Errorf("%w (%d bytes pending)", ErrPeerClosed, dec.Buffered())
			}
			return reply, ioErr(ctx, "read", rerr)
		}
		if n == 0 {
			return reply, fmt.Errorf("%w (%d bytes pending)", ErrPeerClosed, dec.Buffered())
		}
	}
}

func ioErr(ctx context.Context, op string, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, op, cerr)
	}
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}

// guardedStream makes Close idempotent so the deferred close and the
// cancellation hook never close the underlying stream twice.
type guardedStream struct {
	Stream
	once sync.Once
	err  error
}

func guard(s Stream) *guardedStream {
	return &guardedStream{Stream: s}
}

func (g *guardedStream) Close() error {
	g.once.Do(func() { g.err = g.Stream.Close() })
	return g.err
}
