// Package wiretest provides loopback peers and scripted streams for exercising
// request/response exchanges in tests.
package wiretest

import (
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/packwire/internal/protocol"
)

// Responder maps a decoded request to the raw reply bytes.
type Responder func(req protocol.Value) []byte

// Echo re-encodes the request.
func Echo(req protocol.Value) []byte {
	out, err := protocol.Marshal(req)
	if err != nil {
		return nil
	}
	return out
}

// Fixed always replies with raw.
func Fixed(raw []byte) Responder {
	return func(protocol.Value) []byte { return raw }
}

type Options struct {
	Respond Responder
	// Chunk splits the reply into writes of at most Chunk bytes. 0 writes it
	// in one call.
	Chunk int
	// Delay is slept between chunk writes.
	Delay time.Duration
	// Hold keeps the connection open after replying until the client closes.
	Hold bool
}

// Peer is a loopback TCP listener that answers one request per connection.
type Peer struct {
	Host string
	Port int

	ln   net.Listener
	opts Options
	wg   sync.WaitGroup

	mu       sync.Mutex
	requests []protocol.Value
}

func Listen(t testing.TB, opts Options) *Peer {
	t.Helper()
	if opts.Respond == nil {
		opts.Respond = Echo
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host, portRaw, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portRaw)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	p := &Peer{Host: host, Port: port, ln: ln, opts: opts}
	p.wg.Add(1)
	go p.accept()
	t.Cleanup(p.Close)
	return p
}

func (p *Peer) Addr() string { return p.ln.Addr().String() }

// Requests returns the requests decoded so far.
func (p *Peer) Requests() []protocol.Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]protocol.Value(nil), p.requests...)
}

func (p *Peer) Close() {
	_ = p.ln.Close()
	p.wg.Wait()
}

func (p *Peer) accept() {
	defer p.wg.Done()
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			return
		}
		p.wg.Add(1)
		go p.serve(conn)
	}
}

func (p *Peer) serve(conn net.Conn) {
	defer p.wg.Done()
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	req, err := protocol.Decode(conn, protocol.Limits{InitialBufferSize: 512})
	if err != nil {
		return
	}
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	reply := p.opts.Respond(req)
	if err := WriteChunked(conn, reply, p.opts.Chunk, p.opts.Delay); err != nil {
		return
	}
	if p.opts.Hold {
		_, _ = io.Copy(io.Discard, conn)
	}
}

// WriteChunked writes data in pieces of at most chunk bytes.
func WriteChunked(w io.Writer, data []byte, chunk int, delay time.Duration) error {
	if chunk <= 0 {
		chunk = len(data)
	}
	for off := 0; off < len(data); off += chunk {
		end := min(off+chunk, len(data))
		if off > 0 && delay > 0 {
			time.Sleep(delay)
		}
		if _, err := w.Write(data[off:end]); err != nil {
			return err
		}
	}
	return nil
}

// Stream is a scripted in-memory stream. Reads return the Reads chunks in
// order and then io.EOF (or ReadErr when set). Writes are captured.
type Stream struct {
	Reads   [][]byte
	ReadErr error
	// WriteLimit caps the bytes accepted per Write call when positive.
	WriteLimit int
	WriteErr   error

	mu      sync.Mutex
	written []byte
	closes  int
}

var ErrStreamClosed = errors.New("wiretest: stream closed")

func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.closes > 0 {
		s.mu.Unlock()
		return 0, ErrStreamClosed
	}
	if len(s.Reads) == 0 {
		err := s.ReadErr
		s.mu.Unlock()
		if err == nil {
			return 0, io.EOF
		}
		return 0, err
	}
	chunk := s.Reads[0]
	n := copy(p, chunk)
	if n < len(chunk) {
		s.Reads[0] = chunk[n:]
	} else {
		s.Reads = s.Reads[1:]
	}
	s.mu.Unlock()
	return n, nil
}

func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return 0, s.WriteErr
	}
	n := len(p)
	if s.WriteLimit > 0 && n > s.WriteLimit {
		n = s.WriteLimit
	}
	s.written = append(s.written, p[:n]...)
	return n, nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// Written returns a copy of everything written so far.
func (s *Stream) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.written...)
}

// Closes reports how many times Close was called.
func (s *Stream) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Split cuts data into chunks of at most n bytes.
func Split(data []byte, n int) [][]byte {
	var out [][]byte
	for len(data) > 0 {
		k := min(n, len(data))
		out = append(out, data[:k])
		data = data[k:]
	}
	return out
}
