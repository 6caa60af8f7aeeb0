package session

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/danmuck/packwire/internal/protocol"
	"github.com/danmuck/packwire/internal/testutil/testlog"
	"github.com/danmuck/packwire/internal/testutil/wiretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func helloRequest() protocol.Value {
	return protocol.NewArray(
		protocol.NewInt(42),
		protocol.NewBinary([]byte("Hello")),
		protocol.NewBinary([]byte("World!")),
	)
}

func newSession(t *testing.T, cfg Config, opts ...Option) *Session {
	t.Helper()
	s, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func scripted(stream *wiretest.Stream) Option {
	return WithDialer(DialerFunc(func(context.Context, string, int) (Stream, error) {
		return stream, nil
	}))
}

func TestRoundTripAgainstLoopbackEchoPeer(t *testing.T) {
	testlog.Start(t)
	peer := wiretest.Listen(t, wiretest.Options{})
	s := newSession(t, Config{Host: peer.Host, Port: peer.Port})

	reply, err := s.RoundTrip(context.Background(), helloRequest())
	require.NoError(t, err)
	assert.Equal(t, protocol.ResultSuccess, reply.Result)
	assert.False(t, reply.Trailing())
	assert.Equal(t, 17, reply.BytesWritten)
	assert.Equal(t, 17, reply.BytesRead)
	assert.Equal(t, `[42, "Hello", "World!"]`, reply.Value.String())
	assert.True(t, helloRequest().Equal(reply.Value))

	reqs := peer.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, helloRequest().Equal(reqs[0]))
}

func TestRoundTripReassemblesChunkedReply(t *testing.T) {
	testlog.Start(t)
	peer := wiretest.Listen(t, wiretest.Options{Chunk: 1, Delay: time.Millisecond})
	s := newSession(t, Config{
		Host:      peer.Host,
		Port:      peer.Port,
		ChunkSize: 4,
		Limits:    protocol.Limits{InitialBufferSize: 4},
	})

	for i := 0; i < 3; i++ {
		reply, err := s.RoundTrip(context.Background(), helloRequest())
		require.NoError(t, err)
		assert.True(t, helloRequest().Equal(reply.Value))
	}
}

func TestRoundTripReportsTrailingBytes(t *testing.T) {
	testlog.Start(t)
	raw, err := protocol.Marshal(protocol.NewString("Hi from server!"))
	require.NoError(t, err)
	peer := wiretest.Listen(t, wiretest.Options{Respond: wiretest.Fixed(append(raw, 0x01, 0x02))})
	s := newSession(t, Config{Host: peer.Host, Port: peer.Port})

	reply, err := s.RoundTrip(context.Background(), helloRequest())
	require.NoError(t, err)
	assert.Equal(t, protocol.ResultExtraBytes, reply.Result)
	assert.True(t, reply.Trailing())
	str, err := reply.Value.Str()
	require.NoError(t, err)
	assert.Equal(t, "Hi from server!", str)
}

func TestPeerClosingMidValueIsIOError(t *testing.T) {
	testlog.Start(t)
	raw, err := protocol.Marshal(helloRequest())
	require.NoError(t, err)
	peer := wiretest.Listen(t, wiretest.Options{Respond: wiretest.Fixed(raw[:len(raw)-3])})
	s := newSession(t, Config{Host: peer.Host, Port: peer.Port})

	reply, err := s.RoundTrip(context.Background(), helloRequest())
	require.ErrorIs(t, err, ErrPeerClosed)
	require.ErrorIs(t, err, ErrIO)
	assert.Equal(t, len(raw)-3, reply.BytesRead)
}

func TestConnectFailure(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	s := newSession(t, Config{Host: "127.0.0.1", Port: port, ConnectTimeout: time.Second})
	_, err = s.RoundTrip(context.Background(), helloRequest())
	require.ErrorIs(t, err, ErrConnect)

	dialErr := errors.New("no route")
	s = newSession(t, Config{}, WithDialer(DialerFunc(func(context.Context, string, int) (Stream, error) {
		return nil, dialErr
	})))
	_, err = s.RoundTrip(context.Background(), helloRequest())
	require.ErrorIs(t, err, ErrConnect)
	require.ErrorIs(t, err, dialErr)
	assert.Contains(t, err.Error(), "127.0.0.1:8080")
}

func TestShortWriteIsIOError(t *testing.T) {
	testlog.Start(t)
	stream := &wiretest.Stream{WriteLimit: 3}
	s := newSession(t, Config{}, scripted(stream))

	reply, err := s.RoundTrip(context.Background(), helloRequest())
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, ErrShortWrite)
	assert.Equal(t, 3, reply.BytesWritten)
	assert.Equal(t, 1, stream.Closes())
}

func TestWriteFailureIsIOError(t *testing.T) {
	testlog.Start(t)
	stream := &wiretest.Stream{WriteErr: errors.New("broken pipe")}
	s := newSession(t, Config{}, scripted(stream))

	_, err := s.RoundTrip(context.Background(), helloRequest())
	require.ErrorIs(t, err, ErrIO)
	assert.NotErrorIs(t, err, ErrShortWrite)
	assert.Equal(t, 1, stream.Closes())
}

func TestStreamClosedOnceOnEveryPath(t *testing.T) {
	testlog.Start(t)
	raw, err := protocol.Marshal(helloRequest())
	require.NoError(t, err)

	cases := map[string]*wiretest.Stream{
		"success":     {Reads: wiretest.Split(raw, 2)},
		"parse error": {Reads: [][]byte{{0x91, 0xc1}}},
		"peer closed": {Reads: [][]byte{raw[:4]}},
		"read error":  {Reads: [][]byte{raw[:4]}, ReadErr: errors.New("reset by peer")},
	}
	for name, stream := range cases {
		t.Run(name, func(t *testing.T) {
			s := newSession(t, Config{ChunkSize: 8}, scripted(stream))
			_, _ = s.RoundTrip(context.Background(), helloRequest())
			assert.Equal(t, 1, stream.Closes())
			assert.Equal(t, raw, stream.Written())
		})
	}
}

func TestParseErrorDoesNotLeakIntoNextRoundTrip(t *testing.T) {
	testlog.Start(t)
	raw, err := protocol.Marshal(helloRequest())
	require.NoError(t, err)

	streams := []*wiretest.Stream{
		{Reads: [][]byte{{0x92, 0x01, 0xc1, 0x02}}},
		{Reads: [][]byte{raw}},
	}
	next := 0
	s := newSession(t, Config{}, WithDialer(DialerFunc(func(context.Context, string, int) (Stream, error) {
		st := streams[next]
		next++
		return st, nil
	})))

	_, err = s.RoundTrip(context.Background(), helloRequest())
	require.ErrorIs(t, err, protocol.ErrParse)
	require.ErrorIs(t, err, protocol.ErrInvalidTag)

	reply, err := s.RoundTrip(context.Background(), helloRequest())
	require.NoError(t, err)
	assert.True(t, helloRequest().Equal(reply.Value))
}

func TestOversizedReplyIsOutOfMemory(t *testing.T) {
	testlog.Start(t)
	raw, err := protocol.Marshal(protocol.NewBinary(make([]byte, 100)))
	require.NoError(t, err)
	stream := &wiretest.Stream{Reads: [][]byte{raw}}
	s := newSession(t, Config{
		ChunkSize: 16,
		Limits:    protocol.Limits{InitialBufferSize: 16, MaxBufferSize: 32},
	}, scripted(stream))

	_, err = s.RoundTrip(context.Background(), helloRequest())
	require.ErrorIs(t, err, protocol.ErrOutOfMemory)
	assert.Equal(t, 1, stream.Closes())
}

func TestReplyNearBufferLimitIsNotOutOfMemory(t *testing.T) {
	testlog.Start(t)
	want := protocol.NewBinary(make([]byte, 120))
	raw, err := protocol.Marshal(want)
	require.NoError(t, err)
	stream := &wiretest.Stream{Reads: wiretest.Split(raw, 40)}
	s := newSession(t, Config{
		ChunkSize: 64,
		Limits:    protocol.Limits{InitialBufferSize: 64, MaxBufferSize: 128},
	}, scripted(stream))

	reply, err := s.RoundTrip(context.Background(), helloRequest())
	require.NoError(t, err)
	assert.Equal(t, protocol.ResultSuccess, reply.Result)
	assert.True(t, want.Equal(reply.Value))
	assert.Equal(t, len(raw), reply.BytesRead)
}

func TestReplyFillingBufferLimitOverLoopback(t *testing.T) {
	testlog.Start(t)
	want := protocol.NewBinary(make([]byte, 126))
	raw, err := protocol.Marshal(want)
	require.NoError(t, err)
	peer := wiretest.Listen(t, wiretest.Options{Respond: wiretest.Fixed(raw), Chunk: 40, Delay: time.Millisecond})
	s := newSession(t, Config{
		Host:      peer.Host,
		Port:      peer.Port,
		ChunkSize: 64,
		Limits:    protocol.Limits{InitialBufferSize: 64, MaxBufferSize: 128},
	})

	reply, err := s.RoundTrip(context.Background(), helloRequest())
	require.NoError(t, err)
	assert.True(t, want.Equal(reply.Value))
}

func TestCancelledContextBeforeStart(t *testing.T) {
	testlog.Start(t)
	stream := &wiretest.Stream{}
	s := newSession(t, Config{}, scripted(stream))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.RoundTrip(ctx, helloRequest())
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, stream.Written())
	assert.Equal(t, 1, stream.Closes())
}

func servePipe(t *testing.T, conn net.Conn) <-chan struct{} {
	t.Helper()
	got := make(chan struct{})
	go func() {
		defer close(got)
		_, _ = protocol.Decode(conn, protocol.Limits{InitialBufferSize: 64})
	}()
	return got
}

func TestContextCancellationUnblocksRead(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()
	t.Cleanup(func() { _ = server.Close() })
	got := servePipe(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-got
		cancel()
	}()

	dec := protocol.NewDecoder(protocol.DefaultLimits())
	_, err := Exchange(ctx, client, dec, helloRequest(), Config{})
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, protocol.StateEmpty, dec.State())
}

func TestReadTimeoutIsIOError(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	servePipe(t, server)

	dec := protocol.NewDecoder(protocol.DefaultLimits())
	_, err := Exchange(context.Background(), client, dec, helloRequest(), Config{ReadTimeout: 50 * time.Millisecond})
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestExchangeOverPipe(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	go func() {
		req, err := protocol.Decode(server, protocol.Limits{InitialBufferSize: 64})
		if err != nil {
			return
		}
		raw, _ := protocol.Marshal(req)
		_ = wiretest.WriteChunked(server, raw, 3, 0)
	}()

	dec := protocol.NewDecoder(protocol.Limits{InitialBufferSize: 8})
	reply, err := Exchange(context.Background(), client, dec, helloRequest(), Config{ChunkSize: 8})
	require.NoError(t, err)
	assert.True(t, helloRequest().Equal(reply.Value))
}

func TestClosedSessionRejectsRoundTrip(t *testing.T) {
	testlog.Start(t)
	s, err := New(Config{})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, err = s.RoundTrip(context.Background(), helloRequest())
	require.ErrorIs(t, err, ErrClosed)
}

func TestConfigDefaultsAndValidation(t *testing.T) {
	testlog.Start(t)
	cfg := Config{}.WithDefaults()
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 64*1024, cfg.ChunkSize)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Zero(t, cfg.ReadTimeout)
	assert.Equal(t, "127.0.0.1:8080", cfg.Address())
	require.NoError(t, cfg.Validate())

	bad := []Config{
		{Host: "h", Port: 70000, ChunkSize: 1},
		{Host: "h", Port: -1, ChunkSize: 1},
		{Host: "h", Port: 1, ChunkSize: 1, ReadTimeout: -time.Second},
		{Host: "h", Port: 1, ChunkSize: 64, Limits: protocol.Limits{MaxBufferSize: 32}},
	}
	for _, c := range bad {
		_, err := New(c)
		require.ErrorIs(t, err, ErrInvalidConfig, "%+v", c)
	}
}

func TestDeadlinePrefersEarliest(t *testing.T) {
	testlog.Start(t)
	_, ok := deadline(context.Background(), 0)
	assert.False(t, ok)

	d, ok := deadline(context.Background(), time.Hour)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Hour), d, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d, ok = deadline(ctx, time.Hour)
	require.True(t, ok)
	want, _ := ctx.Deadline()
	assert.Equal(t, want, d)
}
