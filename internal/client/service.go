// Package client sends requests to a packwire peer and renders the replies.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/danmuck/packwire/internal/config"
	"github.com/danmuck/packwire/internal/observability"
	"github.com/danmuck/packwire/internal/protocol"
	"github.com/danmuck/packwire/internal/protocol/session"
	"github.com/rs/zerolog"
)

type Service struct {
	cfg     session.Config
	format  string
	session *session.Session
	log     zerolog.Logger
}

func New(cfg config.File, opts ...session.Option) (*Service, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	sc := cfg.SessionConfig()
	s, err := session.New(sc, opts...)
	if err != nil {
		return nil, err
	}
	observability.RegisterMetrics()
	return &Service{
		cfg:     sc,
		format:  cfg.Client.Format,
		session: s,
		log:     observability.Component("client"),
	}, nil
}

func (s *Service) Format() string { return s.format }

// Run performs one round trip and records its outcome.
func (s *Service) Run(ctx context.Context, req protocol.Value) (session.Reply, error) {
	start := time.Now()
	reply, err := s.session.RoundTrip(ctx, req)
	elapsed := time.Since(start)

	result := Outcome(reply, err)
	observability.RecordExchange(observability.RoleClient, result, reply.BytesWritten, reply.BytesRead, elapsed)

	event := s.log.Info()
	if err != nil {
		event = s.log.Error().Err(err)
	} else if reply.Trailing() {
		event = s.log.Warn()
	}
	event.
		Str("host", s.cfg.Host).
		Int("port", s.cfg.Port).
		Int("bytes_written", reply.BytesWritten).
		Int("bytes_read", reply.BytesRead).
		Str("result", result).
		Dur("duration", elapsed).
		Msg("exchange")
	return reply, err
}

func (s *Service) Close() error {
	return s.session.Close()
}

// DefaultRequest is the request sent when none is given: [42, "Hello", "World!"]
// with both strings as binary payloads.
func DefaultRequest() protocol.Value {
	return protocol.NewArray(
		protocol.NewInt(42),
		protocol.NewBinary([]byte("Hello")),
		protocol.NewBinary([]byte("World!")),
	)
}

// Outcome labels a round trip for logs and metrics.
func Outcome(reply session.Reply, err error) string {
	switch {
	case err == nil:
		return reply.Result.String()
	case errors.Is(err, session.ErrConnect):
		return "connect_error"
	case errors.Is(err, protocol.ErrOutOfMemory):
		return "out_of_memory"
	case errors.Is(err, protocol.ErrParse):
		return "parse_error"
	case errors.Is(err, protocol.ErrLengthOverflow):
		return "encode_error"
	case errors.Is(err, session.ErrIO):
		return "io_error"
	default:
		return "error"
	}
}

type jsonReply struct {
	Result       string `json:"result"`
	BytesWritten int    `json:"bytes_written"`
	BytesRead    int    `json:"bytes_read"`
	Value        any    `json:"value"`
}

// Render writes reply to w as text or json.
func Render(w io.Writer, reply session.Reply, format string) error {
	switch format {
	case "", config.FormatText:
		_, err := fmt.Fprintln(w, reply.Value.String())
		return err
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		return enc.Encode(jsonReply{
			Result:       reply.Result.String(),
			BytesWritten: reply.BytesWritten,
			BytesRead:    reply.BytesRead,
			Value:        reply.Value.Interface(),
		})
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
