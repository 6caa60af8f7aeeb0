package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/danmuck/packwire/internal/protocol/wire"
)

// Marshal returns the MessagePack encoding of v.
func Marshal(v Value) ([]byte, error) {
	return Append(nil, v)
}

// Append appends the encoding of v to dst. On error dst is returned unchanged.
//
// Integers and lengths use the smallest tag that can hold them. Traversal
// uses an explicit stack so nesting depth is bounded only by memory.
func Append(dst []byte, v Value) ([]byte, error) {
	out := dst
	stack := []Value{v}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var err error
		switch cur.kind {
		case KindNil:
			out = append(out, wire.Nil)
		case KindBool:
			if cur.b {
				out = append(out, wire.True)
			} else {
				out = append(out, wire.False)
			}
		case KindUint:
			out = appendUint(out, cur.u)
		case KindInt:
			if cur.i >= 0 {
				out = appendUint(out, uint64(cur.i))
			} else {
				out = appendNegInt(out, cur.i)
			}
		case KindFloat32:
			out = append(out, wire.Float32)
			out = binary.BigEndian.AppendUint32(out, math.Float32bits(float32(cur.f)))
		case KindFloat64:
			out = append(out, wire.Float64)
			out = binary.BigEndian.AppendUint64(out, math.Float64bits(cur.f))
		case KindString:
			out, err = appendStrHeader(out, uint64(len(cur.raw)))
			out = append(out, cur.raw...)
		case KindBinary:
			out, err = appendBinHeader(out, uint64(len(cur.raw)))
			out = append(out, cur.raw...)
		case KindExt:
			out, err = appendExtHeader(out, cur.ext, uint64(len(cur.raw)))
			out = append(out, cur.raw...)
		case KindArray:
			out, err = appendArrayHeader(out, uint64(len(cur.items)))
			for i := len(cur.items) - 1; i >= 0; i-- {
				stack = append(stack, cur.items[i])
			}
		case KindMap:
			out, err = appendMapHeader(out, uint64(len(cur.pairs)))
			for i := len(cur.pairs) - 1; i >= 0; i-- {
				stack = append(stack, cur.pairs[i].Value, cur.pairs[i].Key)
			}
		default:
			err = fmt.Errorf("%w: unknown kind %s", ErrKindMismatch, cur.kind)
		}
		if err != nil {
			return dst, err
		}
	}
	return out, nil
}

// Encode writes the encoding of v to w in a single Write call. Nothing is
// written when encoding fails.
func Encode(w io.Writer, v Value) error {
	buf, err := Marshal(v)
	if err != nil {
		return err
	}
	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return io.ErrShortWrite
	}
	return nil
}

// Encoder writes values to an io.Writer, reusing its scratch buffer.
type Encoder struct {
	w   io.Writer
	buf []byte
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) Encode(v Value) error {
	buf, err := Append(e.buf[:0], v)
	if err != nil {
		return err
	}
	e.buf = buf
	n, err := e.w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return io.ErrShortWrite
	}
	return nil
}

func appendUint(out []byte, u uint64) []byte {
	switch {
	case u <= uint64(wire.PosFixIntMax):
		return append(out, byte(u))
	case u <= math.MaxUint8:
		return append(out, wire.Uint8, byte(u))
	case u <= math.MaxUint16:
		return binary.BigEndian.AppendUint16(append(out, wire.Uint16), uint16(u))
	case u <= math.MaxUint32:
		return binary.BigEndian.AppendUint32(append(out, wire.Uint32), uint32(u))
	default:
		return binary.BigEndian.AppendUint64(append(out, wire.Uint64), u)
	}
}

func appendNegInt(out []byte, i int64) []byte {
	switch {
	case i >= wire.MinNegFix:
		return append(out, byte(int8(i)))
	case i >= math.MinInt8:
		return append(out, wire.Int8, byte(int8(i)))
	case i >= math.MinInt16:
		return binary.BigEndian.AppendUint16(append(out, wire.Int16), uint16(int16(i)))
	case i >= math.MinInt32:
		return binary.BigEndian.AppendUint32(append(out, wire.Int32), uint32(int32(i)))
	default:
		return binary.BigEndian.AppendUint64(append(out, wire.Int64), uint64(i))
	}
}

func checkLen(n uint64, what string) error {
	if n > wire.MaxLen32 {
		return fmt.Errorf("%w: %s length %d exceeds %d", ErrLengthOverflow, what, n, uint64(wire.MaxLen32))
	}
	return nil
}

func appendSized(out []byte, n uint64, tag8, tag16, tag32 byte) []byte {
	switch {
	case n <= wire.MaxLen8 && tag8 != 0:
		return append(out, tag8, byte(n))
	case n <= wire.MaxLen16:
		return binary.BigEndian.AppendUint16(append(out, tag16), uint16(n))
	default:
		return binary.BigEndian.AppendUint32(append(out, tag32), uint32(n))
	}
}

func appendStrHeader(out []byte, n uint64) ([]byte, error) {
	if err := checkLen(n, "string"); err != nil {
		return out, err
	}
	if n <= wire.MaxFixStr {
		return append(out, wire.FixStrMin|byte(n)), nil
	}
	return appendSized(out, n, wire.Str8, wire.Str16, wire.Str32), nil
}

func appendBinHeader(out []byte, n uint64) ([]byte, error) {
	if err := checkLen(n, "binary"); err != nil {
		return out, err
	}
	return appendSized(out, n, wire.Bin8, wire.Bin16, wire.Bin32), nil
}

func appendArrayHeader(out []byte, n uint64) ([]byte, error) {
	if err := checkLen(n, "array"); err != nil {
		return out, err
	}
	if n <= wire.MaxFixArray {
		return append(out, wire.FixArrayMin|byte(n)), nil
	}
	return appendSized(out, n, 0, wire.Array16, wire.Array32), nil
}

func appendMapHeader(out []byte, n uint64) ([]byte, error) {
	if err := checkLen(n, "map"); err != nil {
		return out, err
	}
	if n <= wire.MaxFixMap {
		return append(out, wire.FixMapMin|byte(n)), nil
	}
	return appendSized(out, n, 0, wire.Map16, wire.Map32), nil
}

func appendExtHeader(out []byte, typ int8, n uint64) ([]byte, error) {
	if err := checkLen(n, "ext"); err != nil {
		return out, err
	}
	switch n {
	case 1:
		return append(out, wire.FixExt1, byte(typ)), nil
	case 2:
		return append(out, wire.FixExt2, byte(typ)), nil
	case 4:
		return append(out, wire.FixExt4, byte(typ)), nil
	case 8:
		return append(out, wire.FixExt8, byte(typ)), nil
	case 16:
		return append(out, wire.FixExt16, byte(typ)), nil
	}
	return append(appendSized(out, n, wire.Ext8, wire.Ext16, wire.Ext32), byte(typ)), nil
}
