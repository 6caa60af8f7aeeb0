package protocol

import (
	"errors"
	"fmt"
	"io"
)

// Unmarshal decodes exactly one value from data. Trailing bytes yield the
// value together with ErrExtraBytes; a strict prefix yields ErrTruncated.
func Unmarshal(data []byte) (Value, error) {
	limits := DefaultLimits()
	if len(data) > limits.MaxBufferSize {
		limits.MaxBufferSize = len(data)
	}
	limits.InitialBufferSize = len(data)
	d := NewDecoder(limits)
	if _, err := d.Write(data); err != nil {
		return Value{}, err
	}
	v, res, err := d.Next()
	switch res {
	case ResultSuccess:
		return v, nil
	case ResultExtraBytes:
		return v, ErrExtraBytes
	case ResultIncomplete:
		return Value{}, ErrTruncated
	default:
		return Value{}, err
	}
}

// Decode reads from r until one complete value is recognized. Bytes after the
// value within the last read are discarded.
func Decode(r io.Reader, limits Limits) (Value, error) {
	d := NewDecoder(limits)
	defer d.Release()
	chunk := d.Limits().InitialBufferSize
	for {
		room, err := d.ReserveChunk(chunk)
		if err != nil {
			return Value{}, err
		}
		n, rerr := r.Read(d.Buffer()[:room])
		if n > 0 {
			if err := d.Feed(n); err != nil {
				return Value{}, err
			}
			v, res, err := d.Next()
			if res.Terminal() {
				return v, err
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				if d.Buffered() > 0 {
					return Value{}, ErrTruncated
				}
				return Value{}, io.EOF
			}
			return Value{}, fmt.Errorf("protocol: read: %w", rerr)
		}
	}
}
