package protocol

import (
	"strconv"
	"strings"
)

// String renders v in the msgpack-c print style: [42, "Hello"], {"k"=>1},
// (ext: 5)"...". Strings and binaries are both quoted; bytes outside the
// printable ASCII range are escaped as \xNN. Nesting is walked with an
// explicit stack.
func (v Value) String() string {
	var sb strings.Builder
	stack := []formatStep{{v: v}}
	for len(stack) > 0 {
		step := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if step.lit != "" {
			sb.WriteString(step.lit)
			continue
		}
		cur := step.v
		switch cur.kind {
		case KindArray:
			sb.WriteByte('[')
			stack = append(stack, formatStep{lit: "]"})
			for i := len(cur.items) - 1; i >= 0; i-- {
				stack = append(stack, formatStep{v: cur.items[i]})
				if i > 0 {
					stack = append(stack, formatStep{lit: ", "})
				}
			}
		case KindMap:
			sb.WriteByte('{')
			stack = append(stack, formatStep{lit: "}"})
			for i := len(cur.pairs) - 1; i >= 0; i-- {
				p := cur.pairs[i]
				stack = append(stack, formatStep{v: p.Value}, formatStep{lit: "=>"}, formatStep{v: p.Key})
				if i > 0 {
					stack = append(stack, formatStep{lit: ", "})
				}
			}
		default:
			cur.formatScalar(&sb)
		}
	}
	return sb.String()
}

// formatStep is either a value still to render or literal punctuation.
type formatStep struct {
	v   Value
	lit string
}

func (v Value) formatScalar(sb *strings.Builder) {
	switch v.kind {
	case KindNil:
		sb.WriteString("nil")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindUint:
		sb.WriteString(strconv.FormatUint(v.u, 10))
	case KindFloat32:
		sb.WriteString(strconv.FormatFloat(v.f, 'g', -1, 32))
	case KindFloat64:
		sb.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
	case KindString, KindBinary:
		quote(sb, v.raw)
	case KindExt:
		sb.WriteString("(ext: ")
		sb.WriteString(strconv.Itoa(int(v.ext)))
		sb.WriteByte(')')
		quote(sb, v.raw)
	}
}

const hexDigits = "0123456789abcdef"

func quote(sb *strings.Builder, p []byte) {
	sb.WriteByte('"')
	for _, c := range p {
		switch {
		case c == '"' || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c >= 0x20 && c < 0x7f:
			sb.WriteByte(c)
		default:
			sb.WriteString(`\x`)
			sb.WriteByte(hexDigits[c>>4])
			sb.WriteByte(hexDigits[c&0x0f])
		}
	}
	sb.WriteByte('"')
}
