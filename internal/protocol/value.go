package protocol

import (
	"bytes"
	"fmt"
	"math"
)

// Kind is the variant tag of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat32
	KindFloat64
	KindString
	KindBinary
	KindArray
	KindMap
	KindExt
)

var kindNames = [...]string{
	KindNil:     "nil",
	KindBool:    "bool",
	KindInt:     "int",
	KindUint:    "uint",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindString:  "string",
	KindBinary:  "binary",
	KindArray:   "array",
	KindMap:     "map",
	KindExt:     "ext",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is one decoded MessagePack object. The zero Value is nil. Values are
// immutable: constructors copy their inputs and accessors return copies.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	u     uint64
	f     float64
	raw   []byte
	ext   int8
	items []Value
	pairs []Pair
}

// Pair is one map entry.
type Pair struct {
	Key   Value
	Value Value
}

func Nil() Value { return Value{} }

func NewBool(v bool) Value { return Value{kind: KindBool, b: v} }

func NewInt(v int64) Value { return Value{kind: KindInt, i: v} }

func NewUint(v uint64) Value { return Value{kind: KindUint, u: v} }

func NewFloat32(v float32) Value { return Value{kind: KindFloat32, f: float64(v)} }

func NewFloat64(v float64) Value { return Value{kind: KindFloat64, f: v} }

func NewString(v string) Value { return Value{kind: KindString, raw: []byte(v)} }

// NewStringBytes creates a string value from raw bytes. UTF-8 is not checked.
func NewStringBytes(v []byte) Value { return Value{kind: KindString, raw: clone(v)} }

func NewBinary(v []byte) Value { return Value{kind: KindBinary, raw: clone(v)} }

func NewExt(typ int8, data []byte) Value { return Value{kind: KindExt, ext: typ, raw: clone(data)} }

func NewArray(items ...Value) Value {
	out := make([]Value, len(items))
	copy(out, items)
	return Value{kind: KindArray, items: out}
}

func NewMap(pairs ...Pair) Value {
	out := make([]Pair, len(pairs))
	copy(out, pairs)
	return Value{kind: KindMap, pairs: out}
}

// clone never returns nil so empty strings and binaries stay distinguishable
// from an absent payload.
func clone(p []byte) []byte {
	out := make([]byte, len(p))
	copy(out, p)
	return out
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNil() bool { return v.kind == KindNil }

// Equal reports structural equality. Integers compare numerically across
// KindInt and KindUint; floats compare by bit pattern.
func (v Value) Equal(o Value) bool {
	type job struct{ a, b Value }
	stack := []job{{v, o}}
	for len(stack) > 0 {
		j := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		a, b := j.a, j.b
		if isInteger(a.kind) && isInteger(b.kind) {
			if !integersEqual(a, b) {
				return false
			}
			continue
		}
		if a.kind != b.kind {
			return false
		}
		switch a.kind {
		case KindNil:
		case KindBool:
			if a.b != b.b {
				return false
			}
		case KindFloat32, KindFloat64:
			if math.Float64bits(a.f) != math.Float64bits(b.f) {
				return false
			}
		case KindString, KindBinary:
			if !bytes.Equal(a.raw, b.raw) {
				return false
			}
		case KindExt:
			if a.ext != b.ext || !bytes.Equal(a.raw, b.raw) {
				return false
			}
		case KindArray:
			if len(a.items) != len(b.items) {
				return false
			}
			for i := range a.items {
				stack = append(stack, job{a.items[i], b.items[i]})
			}
		case KindMap:
			if len(a.pairs) != len(b.pairs) {
				return false
			}
			for i := range a.pairs {
				stack = append(stack,
					job{a.pairs[i].Key, b.pairs[i].Key},
					job{a.pairs[i].Value, b.pairs[i].Value})
			}
		default:
			return false
		}
	}
	return true
}

func isInteger(k Kind) bool { return k == KindInt || k == KindUint }

func integersEqual(a, b Value) bool {
	switch {
	case a.kind == KindUint && b.kind == KindUint:
		return a.u == b.u
	case a.kind == KindInt && b.kind == KindInt:
		return a.i == b.i
	case a.kind == KindInt:
		return a.i >= 0 && uint64(a.i) == b.u
	default:
		return b.i >= 0 && uint64(b.i) == a.u
	}
}
