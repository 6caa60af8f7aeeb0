package protocol

import "math"

// Bool returns the value as bool.
func (v Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, ErrKindMismatch
	}
	return v.b, nil
}

// Int returns the value as int64. Unsigned values that fit are accepted.
func (v Value) Int() (int64, error) {
	switch v.kind {
	case KindInt:
		return v.i, nil
	case KindUint:
		if v.u > math.MaxInt64 {
			return 0, ErrIntegerOverflow
		}
		return int64(v.u), nil
	default:
		return 0, ErrKindMismatch
	}
}

// Uint returns the value as uint64. Non-negative signed values are accepted.
func (v Value) Uint() (uint64, error) {
	switch v.kind {
	case KindUint:
		return v.u, nil
	case KindInt:
		if v.i < 0 {
			return 0, ErrIntegerOverflow
		}
		return uint64(v.i), nil
	default:
		return 0, ErrKindMismatch
	}
}

// Float returns the value as float64 for both float kinds.
func (v Value) Float() (float64, error) {
	if v.kind != KindFloat32 && v.kind != KindFloat64 {
		return 0, ErrKindMismatch
	}
	return v.f, nil
}

// Str returns a string value's contents.
func (v Value) Str() (string, error) {
	if v.kind != KindString {
		return "", ErrKindMismatch
	}
	return string(v.raw), nil
}

// Bytes returns a copy of a string, binary or ext payload.
func (v Value) Bytes() ([]byte, error) {
	switch v.kind {
	case KindString, KindBinary, KindExt:
		return clone(v.raw), nil
	default:
		return nil, ErrKindMismatch
	}
}

// Ext returns the extension type code and a copy of its payload.
func (v Value) Ext() (int8, []byte, error) {
	if v.kind != KindExt {
		return 0, nil, ErrKindMismatch
	}
	return v.ext, clone(v.raw), nil
}

// Len returns the byte length of string/binary/ext payloads, the element
// count of arrays and the pair count of maps.
func (v Value) Len() (int, error) {
	switch v.kind {
	case KindString, KindBinary, KindExt:
		return len(v.raw), nil
	case KindArray:
		return len(v.items), nil
	case KindMap:
		return len(v.pairs), nil
	default:
		return 0, ErrKindMismatch
	}
}

// Index returns element i of an array.
func (v Value) Index(i int) (Value, error) {
	if v.kind != KindArray {
		return Value{}, ErrKindMismatch
	}
	if i < 0 || i >= len(v.items) {
		return Value{}, ErrIndexOutOfRange
	}
	return v.items[i], nil
}

// Items returns a copy of an array's elements.
func (v Value) Items() ([]Value, error) {
	if v.kind != KindArray {
		return nil, ErrKindMismatch
	}
	out := make([]Value, len(v.items))
	copy(out, v.items)
	return out, nil
}

// Pairs returns a copy of a map's entries in wire order.
func (v Value) Pairs() ([]Pair, error) {
	if v.kind != KindMap {
		return nil, ErrKindMismatch
	}
	out := make([]Pair, len(v.pairs))
	copy(out, v.pairs)
	return out, nil
}

// Lookup returns the value of the first map entry whose key equals key.
func (v Value) Lookup(key Value) (Value, bool, error) {
	if v.kind != KindMap {
		return Value{}, false, ErrKindMismatch
	}
	for _, p := range v.pairs {
		if p.Key.Equal(key) {
			return p.Value, true, nil
		}
	}
	return Value{}, false, nil
}
