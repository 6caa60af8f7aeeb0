package protocol

import (
	"fmt"
	"sort"
)

// FromGo converts plain Go data into a Value. Supported: nil, bool, the
// integer and float types, string, []byte, []any, map[string]any (keys are
// sorted so the encoding is deterministic) and Value itself.
func FromGo(in any) (Value, error) {
	switch x := in.(type) {
	case nil:
		return Nil(), nil
	case Value:
		return x, nil
	case bool:
		return NewBool(x), nil
	case int:
		return NewInt(int64(x)), nil
	case int8:
		return NewInt(int64(x)), nil
	case int16:
		return NewInt(int64(x)), nil
	case int32:
		return NewInt(int64(x)), nil
	case int64:
		return NewInt(x), nil
	case uint:
		return NewUint(uint64(x)), nil
	case uint8:
		return NewUint(uint64(x)), nil
	case uint16:
		return NewUint(uint64(x)), nil
	case uint32:
		return NewUint(uint64(x)), nil
	case uint64:
		return NewUint(x), nil
	case float32:
		return NewFloat32(x), nil
	case float64:
		return NewFloat64(x), nil
	case string:
		return NewString(x), nil
	case []byte:
		return NewBinary(x), nil
	case []any:
		items := make([]Value, 0, len(x))
		for i, item := range x {
			v, err := FromGo(item)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, v)
		}
		return Value{kind: KindArray, items: items}, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]Pair, 0, len(keys))
		for _, k := range keys {
			v, err := FromGo(x[k])
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			pairs = append(pairs, Pair{Key: NewString(k), Value: v})
		}
		return Value{kind: KindMap, pairs: pairs}, nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedType, in)
	}
}

// Interface converts v into plain Go data suitable for encoding/json. Binary
// payloads become []byte, map keys are rendered with String unless they are
// strings, and ext values become a struct with Type and Data. Like String it
// walks nesting with an explicit stack.
func (v Value) Interface() any {
	if v.kind != KindArray && v.kind != KindMap {
		return v.scalarInterface()
	}
	stack := []*ifaceFrame{newIfaceFrame(v)}
	for {
		top := stack[len(stack)-1]
		if top.next == top.len() {
			out := top.result()
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return out
			}
			stack[len(stack)-1].put(out)
			continue
		}
		child := top.child()
		if child.kind == KindArray || child.kind == KindMap {
			stack = append(stack, newIfaceFrame(child))
			continue
		}
		top.put(child.scalarInterface())
	}
}

func (v Value) scalarInterface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindUint:
		return v.u
	case KindFloat32:
		return float32(v.f)
	case KindFloat64:
		return v.f
	case KindString:
		return string(v.raw)
	case KindBinary:
		return clone(v.raw)
	case KindExt:
		return ExtData{Type: v.ext, Data: clone(v.raw)}
	default:
		return nil
	}
}

// ifaceFrame is one container being converted by Interface.
type ifaceFrame struct {
	v    Value
	next int
	arr  []any
	obj  map[string]any
}

func newIfaceFrame(v Value) *ifaceFrame {
	f := &ifaceFrame{v: v}
	if v.kind == KindArray {
		f.arr = make([]any, 0, len(v.items))
	} else {
		f.obj = make(map[string]any, len(v.pairs))
	}
	return f
}

func (f *ifaceFrame) len() int {
	if f.v.kind == KindArray {
		return len(f.v.items)
	}
	return len(f.v.pairs)
}

func (f *ifaceFrame) child() Value {
	if f.v.kind == KindArray {
		return f.v.items[f.next]
	}
	return f.v.pairs[f.next].Value
}

func (f *ifaceFrame) put(x any) {
	if f.v.kind == KindArray {
		f.arr = append(f.arr, x)
	} else {
		key := f.v.pairs[f.next].Key
		if key.kind == KindString {
			f.obj[string(key.raw)] = x
		} else {
			f.obj[key.String()] = x
		}
	}
	f.next++
}

func (f *ifaceFrame) result() any {
	if f.v.kind == KindArray {
		return f.arr
	}
	return f.obj
}

// ExtData is the Interface form of an ext value.
type ExtData struct {
	Type int8   `json:"type"`
	Data []byte `json:"data"`
}
