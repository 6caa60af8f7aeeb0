package peer

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/packwire/internal/observability"
	"github.com/danmuck/packwire/internal/protocol"
	"github.com/rs/zerolog"
)

type Server struct {
	cfg     Config
	backoff BackoffConfig
	log     zerolog.Logger
	started time.Time

	active atomic.Int64
	served atomic.Int64
	wg     sync.WaitGroup
}

func New(cfg Config) (*Server, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	observability.RegisterMetrics()
	return &Server{
		cfg:     cfg,
		backoff: DefaultBackoff(),
		log:     observability.Component("peer").With().Str("mode", string(cfg.Mode)).Logger(),
		started: time.Now(),
	}, nil
}

func (s *Server) Config() Config { return s.cfg }

// Active reports the number of open connections.
func (s *Server) Active() int64 { return s.active.Load() }

// Served reports the number of replies written since start.
func (s *Server) Served() int64 { return s.served.Load() }

// ListenAndServe listens on cfg.Addr, starts the admin router when
// configured, and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	if s.cfg.AdminAddr != "" {
		admin := &http.Server{
			Addr:              s.cfg.AdminAddr,
			Handler:           s.AdminRouter(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			s.log.Info().Str("addr", admin.Addr).Msg("admin listening")
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error().Err(err).Msg("admin server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = admin.Shutdown(shutdownCtx)
		}()
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. Open connections are
// closed on shutdown and Serve waits for their handlers to return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("peer listening")

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer s.wg.Wait()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	attempt := 0
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			attempt++
			delay := NextBackoffDelay(s.backoff, attempt, rng)
			s.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("accept failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		attempt = 0
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	remote := conn.RemoteAddr().String()
	active := s.active.Add(1)
	observability.PeerConnOpened()
	s.log.Info().Str("remote", remote).Int64("active_clients", active).Msg("client connected")
	defer func() {
		remaining := s.active.Add(-1)
		observability.PeerConnClosed()
		s.log.Info().Str("remote", remote).Int64("active_clients", remaining).Msg("client disconnected")
	}()

	dec := protocol.NewDecoder(s.cfg.Limits)
	defer dec.Release()

	start := time.Now()
	for {
		if s.cfg.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		room, err := dec.ReserveChunk(s.cfg.ChunkSize)
		if err != nil {
			s.fail(remote, "out_of_memory", dec.Buffered(), start, err)
			return
		}
		n, rerr := conn.Read(dec.Buffer()[:room])
		if n > 0 {
			if dec.Buffered() == 0 {
				start = time.Now()
			}
			if err := dec.Feed(n); err != nil {
				s.fail(remote, "io_error", dec.Buffered(), start, err)
				return
			}
			if !s.drain(conn, remote, dec, &start) {
				return
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) || ctx.Err() != nil {
				if dec.Buffered() > 0 {
					s.log.Debug().Str("remote", remote).Int("pending", dec.Buffered()).Msg("client closed mid-request")
				}
				return
			}
			if errors.Is(rerr, os.ErrDeadlineExceeded) {
				s.log.Debug().Str("remote", remote).Dur("idle_timeout", s.cfg.IdleTimeout).Msg("idle connection closed")
				return
			}
			s.log.Warn().Str("remote", remote).Err(rerr).Msg("read failed")
			return
		}
	}
}

// drain answers every complete request buffered in dec, in order. It reports
// false once the connection must be closed.
func (s *Server) drain(conn net.Conn, remote string, dec *protocol.Decoder, start *time.Time) bool {
	for {
		before := dec.Buffered()
		req, res, err := dec.Take()
		switch res {
		case protocol.ResultSuccess:
			read := before - dec.Buffered()
			written, werr := s.reply(conn, req)
			if werr != nil {
				s.fail(remote, "io_error", read, *start, werr)
				return false
			}
			s.served.Add(1)
			observability.RecordExchange(observability.RolePeer, res.String(), written, read, time.Since(*start))
			*start = time.Now()
		case protocol.ResultParseError:
			s.fail(remote, "parse_error", before, *start, err)
			return false
		case protocol.ResultOutOfMemory:
			s.fail(remote, "out_of_memory", before, *start, err)
			return false
		default:
			return true
		}
	}
}

func (s *Server) reply(conn net.Conn, req protocol.Value) (int, error) {
	resp := s.Respond(req)
	out, err := protocol.Marshal(resp)
	if err != nil {
		return 0, err
	}
	n, err := conn.Write(out)
	if err != nil {
		return n, err
	}
	if n != len(out) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Respond computes the reply for one request.
func (s *Server) Respond(req protocol.Value) protocol.Value {
	switch s.cfg.Mode {
	case ModeGreet:
		return protocol.NewString(s.cfg.Greeting)
	default:
		return req
	}
}

func (s *Server) fail(remote, result string, read int, start time.Time, err error) {
	observability.RecordExchange(observability.RolePeer, result, 0, read, time.Since(start))
	s.log.Warn().Str("remote", remote).Str("result", result).Err(err).Msg("closing connection")
}
