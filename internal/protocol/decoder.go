package protocol

import (
	"errors"
	"fmt"
	"math"

	"github.com/danmuck/packwire/internal/protocol/buffer"
)

// State is the lifecycle position of a Decoder.
type State uint8

const (
	StateEmpty State = iota
	StateAccumulating
	StateReady
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAccumulating:
		return "accumulating"
	case StateReady:
		return "ready"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Result is the outcome of one Scan or Next call.
type Result uint8

const (
	ResultIncomplete Result = iota
	ResultReady
	ResultSuccess
	ResultExtraBytes
	ResultParseError
	ResultOutOfMemory
)

func (r Result) String() string {
	switch r {
	case ResultIncomplete:
		return "incomplete"
	case ResultReady:
		return "ready"
	case ResultSuccess:
		return "success"
	case ResultExtraBytes:
		return "extra_bytes"
	case ResultParseError:
		return "parse_error"
	case ResultOutOfMemory:
		return "out_of_memory"
	default:
		return fmt.Sprintf("result(%d)", uint8(r))
	}
}

// Terminal reports whether the result ends a read loop.
func (r Result) Terminal() bool {
	return r != ResultIncomplete && r != ResultReady
}

// Limits bounds decoder memory and structure.
type Limits struct {
	InitialBufferSize int
	MaxBufferSize     int
	// MaxDepth bounds container nesting. Zero takes the default, a negative
	// value disables the check.
	MaxDepth    int
	MaxStrLen   uint32
	MaxBinLen   uint32
	MaxExtLen   uint32
	MaxArrayLen uint32
	MaxMapLen   uint32
}

const DefaultMaxDepth = 1024

func DefaultLimits() Limits {
	b := buffer.DefaultLimits()
	return Limits{
		InitialBufferSize: b.InitialSize,
		MaxBufferSize:     b.MaxSize,
		MaxDepth:          DefaultMaxDepth,
		MaxStrLen:         math.MaxUint32,
		MaxBinLen:         math.MaxUint32,
		MaxExtLen:         math.MaxUint32,
		MaxArrayLen:       math.MaxUint32,
		MaxMapLen:         math.MaxUint32,
	}
}

// WithDefaults fills zero fields from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	if l.InitialBufferSize <= 0 {
		l.InitialBufferSize = d.InitialBufferSize
	}
	if l.MaxBufferSize <= 0 {
		l.MaxBufferSize = d.MaxBufferSize
	}
	if l.MaxDepth == 0 {
		l.MaxDepth = d.MaxDepth
	}
	if l.MaxStrLen == 0 {
		l.MaxStrLen = d.MaxStrLen
	}
	if l.MaxBinLen == 0 {
		l.MaxBinLen = d.MaxBinLen
	}
	if l.MaxExtLen == 0 {
		l.MaxExtLen = d.MaxExtLen
	}
	if l.MaxArrayLen == 0 {
		l.MaxArrayLen = d.MaxArrayLen
	}
	if l.MaxMapLen == 0 {
		l.MaxMapLen = d.MaxMapLen
	}
	return l
}

// Decoder recognizes one complete top-level value at a time in a chunked
// byte stream. Callers write stream bytes into Buffer() after ReserveChunk,
// report them with Feed and call Next (or Take) until it stops returning
// ResultIncomplete.
//
// A Decoder is not safe for concurrent use. Values returned by Next own their
// memory and stay valid after later calls.
type Decoder struct {
	buf    *buffer.Buffer
	limits Limits
	scan   scanState
	fault  error
	faultR Result
}

func NewDecoder(limits Limits) *Decoder {
	limits = limits.WithDefaults()
	return &Decoder{
		buf: buffer.New(buffer.Limits{
			InitialSize: limits.InitialBufferSize,
			MaxSize:     limits.MaxBufferSize,
		}),
		limits: limits,
	}
}

func (d *Decoder) Limits() Limits { return d.limits }

func (d *Decoder) State() State {
	switch {
	case d.fault != nil:
		return StateFaulted
	case d.scan.done:
		return StateReady
	case d.buf.Len() > 0:
		return StateAccumulating
	default:
		return StateEmpty
	}
}

// Buffered returns the number of fed bytes not yet consumed.
func (d *Decoder) Buffered() int { return d.buf.Len() }

// Capacity returns the current buffer capacity.
func (d *Decoder) Capacity() int { return d.buf.Cap() }

// Err returns the fault that put the decoder in StateFaulted, if any.
func (d *Decoder) Err() error { return d.fault }

// Reserve guarantees at least minFree writable bytes in Buffer(). Failing to
// grow faults the decoder.
func (d *Decoder) Reserve(minFree int) error {
	if d.fault != nil {
		return d.faulted()
	}
	if err := d.buf.Reserve(minFree); err != nil {
		d.setFault(ResultOutOfMemory, err)
		return err
	}
	return nil
}

// ReserveChunk makes room for a read of up to chunk bytes and returns how many
// bytes may be read into Buffer(). Near MaxBufferSize the read is shortened so
// a value that fits the limit is never refused; ErrOutOfMemory is reported
// only once the buffer holds MaxBufferSize pending bytes.
func (d *Decoder) ReserveChunk(chunk int) (int, error) {
	if d.fault != nil {
		return 0, d.faulted()
	}
	n := chunk
	if room := d.limits.MaxBufferSize - d.buf.Len(); n > room {
		n = room
	}
	if n <= 0 {
		err := fmt.Errorf("%w: %d bytes pending, limit %d", ErrOutOfMemory, d.buf.Len(), d.limits.MaxBufferSize)
		d.setFault(ResultOutOfMemory, err)
		return 0, err
	}
	if err := d.Reserve(n); err != nil {
		return 0, err
	}
	return n, nil
}

// Buffer returns the free region that the next Feed refers to.
func (d *Decoder) Buffer() []byte {
	return d.buf.Free()
}

// Feed records that n bytes were written at the start of Buffer(). Feeding
// zero bytes is a no-op; end of stream is for the caller to handle.
func (d *Decoder) Feed(n int) error {
	if d.fault != nil {
		return d.faulted()
	}
	if n == 0 {
		return nil
	}
	return d.buf.Commit(n)
}

// Write copies p into the decoder, growing the buffer as needed.
func (d *Decoder) Write(p []byte) (int, error) {
	if err := d.Reserve(len(p)); err != nil {
		return 0, err
	}
	n := copy(d.buf.Free(), p)
	if err := d.Feed(n); err != nil {
		return 0, err
	}
	return n, nil
}

// Scan advances boundary detection over the bytes fed so far without
// materializing anything. It returns ResultReady once a complete top-level
// value is buffered and ResultIncomplete while more bytes are needed.
func (d *Decoder) Scan() (Result, error) {
	if d.fault != nil {
		return d.faultR, d.faulted()
	}
	if d.scan.done {
		return ResultReady, nil
	}
	res, err := d.scan.advance(d.buf.Pending(), &d.limits)
	if err != nil {
		d.setFault(res, err)
		return res, err
	}
	return res, nil
}

// Next returns the next complete value. On ResultExtraBytes the value is
// returned and every byte after it is discarded; one response per round trip
// is the contract.
func (d *Decoder) Next() (Value, Result, error) {
	return d.next(true)
}

// Take returns the next complete value and leaves any bytes after it
// buffered, so pipelined values come out one per call. It never returns
// ResultExtraBytes.
func (d *Decoder) Take() (Value, Result, error) {
	return d.next(false)
}

func (d *Decoder) next(discard bool) (Value, Result, error) {
	res, err := d.Scan()
	if res != ResultReady {
		return Value{}, res, err
	}

	pending := d.buf.Pending()
	end := d.scan.off
	v := build(pending[:end])
	res = ResultSuccess
	switch {
	case len(pending) > end && discard:
		res = ResultExtraBytes
		d.buf.Discard()
	default:
		d.buf.Consume(end)
	}
	d.scan.reset()
	return v, res, nil
}

// Reset clears faults and buffered bytes. Buffer capacity is kept.
func (d *Decoder) Reset() {
	d.buf.Reset()
	d.scan.reset()
	d.fault = nil
	d.faultR = ResultIncomplete
}

// Release resets the decoder and drops its buffer memory.
func (d *Decoder) Release() {
	d.Reset()
	d.buf.Release()
	d.scan.stack = nil
}

func (d *Decoder) setFault(res Result, err error) {
	d.fault = err
	d.faultR = res
}

func (d *Decoder) faulted() error {
	return fmt.Errorf("%w: %w", ErrFaulted, d.fault)
}

// IsParseError reports whether err came from malformed input.
func IsParseError(err error) bool {
	return errors.Is(err, ErrParse)
}
