package protocol

import (
	"encoding/binary"
	"math"

	"github.com/danmuck/packwire/internal/protocol/wire"
)

type buildFrame struct {
	kind  Kind
	want  int
	items []Value
}

func (f *buildFrame) finish() Value {
	if f.kind == KindArray {
		return Value{kind: KindArray, items: f.items}
	}
	pairs := make([]Pair, len(f.items)/2)
	for i := range pairs {
		pairs[i] = Pair{Key: f.items[2*i], Value: f.items[2*i+1]}
	}
	return Value{kind: KindMap, pairs: pairs}
}

// build materializes the value encoded in p. p must hold exactly one value
// whose boundary was already recognized by scanState, so no bounds or tag
// errors are possible here. Payload bytes are copied out of p.
func build(p []byte) Value {
	var stack []buildFrame
	off := 0
	for {
		spec, _ := wire.Lookup(p[off])
		hdr := p[off:]
		var v Value

		switch spec.Family {
		case wire.FamilyNil:
			off++
		case wire.FamilyBool:
			v = NewBool(spec.Tag == wire.True)
			off++
		case wire.FamilyUint:
			if spec.HasInline {
				v = NewUint(uint64(spec.Inline))
			} else {
				v = NewUint(readUint(hdr[1:], spec.Width))
			}
			off += 1 + spec.Width
		case wire.FamilyInt:
			var i int64
			if spec.Width == 0 {
				i = int64(int8(spec.Tag))
			} else {
				i = readInt(hdr[1:], spec.Width)
			}
			if i >= 0 {
				v = NewUint(uint64(i))
			} else {
				v = NewInt(i)
			}
			off += 1 + spec.Width
		case wire.FamilyFloat32:
			v = NewFloat32(math.Float32frombits(binary.BigEndian.Uint32(hdr[1:5])))
			off += 5
		case wire.FamilyFloat64:
			v = NewFloat64(math.Float64frombits(binary.BigEndian.Uint64(hdr[1:9])))
			off += 9
		case wire.FamilyStr, wire.FamilyBin, wire.FamilyExt:
			n := int(spec.Length(hdr))
			start := off + spec.HeaderLen
			raw := clone(p[start : start+n])
			switch spec.Family {
			case wire.FamilyStr:
				v = Value{kind: KindString, raw: raw}
			case wire.FamilyBin:
				v = Value{kind: KindBinary, raw: raw}
			default:
				v = Value{kind: KindExt, ext: spec.ExtType(hdr), raw: raw}
			}
			off = start + n
		case wire.FamilyArray, wire.FamilyMap:
			n := int(spec.Length(hdr))
			off += spec.HeaderLen
			kind := KindArray
			if spec.Family == wire.FamilyMap {
				kind = KindMap
				n *= 2
			}
			if n > 0 {
				// every element takes at least one byte
				capHint := n
				if rest := len(p) - off; capHint > rest {
					capHint = rest
				}
				stack = append(stack, buildFrame{kind: kind, want: n, items: make([]Value, 0, capHint)})
				continue
			}
			if kind == KindArray {
				v = Value{kind: KindArray, items: []Value{}}
			} else {
				v = Value{kind: KindMap, pairs: []Pair{}}
			}
		}

		for {
			if len(stack) == 0 {
				return v
			}
			top := &stack[len(stack)-1]
			top.items = append(top.items, v)
			if len(top.items) < top.want {
				break
			}
			v = top.finish()
			stack = stack[:len(stack)-1]
		}
	}
}

func readUint(b []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(b))
	case 4:
		return uint64(binary.BigEndian.Uint32(b))
	default:
		return binary.BigEndian.Uint64(b)
	}
}

func readInt(b []byte, width int) int64 {
	switch width {
	case 1:
		return int64(int8(b[0]))
	case 2:
		return int64(int16(binary.BigEndian.Uint16(b)))
	case 4:
		return int64(int32(binary.BigEndian.Uint32(b)))
	default:
		return int64(binary.BigEndian.Uint64(b))
	}
}
