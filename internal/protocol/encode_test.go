package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/danmuck/packwire/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUsesSmallestTag(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		in   Value
		want []byte
	}{
		{"nil", Nil(), []byte{0xc0}},
		{"false", NewBool(false), []byte{0xc2}},
		{"true", NewBool(true), []byte{0xc3}},
		{"posfix", NewInt(42), []byte{0x2a}},
		{"uint8", NewUint(128), []byte{0xcc, 0x80}},
		{"uint16", NewUint(256), []byte{0xcd, 0x01, 0x00}},
		{"uint32", NewUint(1 << 16), []byte{0xce, 0x00, 0x01, 0x00, 0x00}},
		{"uint64", NewUint(1 << 32), []byte{0xcf, 0, 0, 0, 1, 0, 0, 0, 0}},
		{"negfix", NewInt(-1), []byte{0xff}},
		{"negfix min", NewInt(-32), []byte{0xe0}},
		{"int8", NewInt(-33), []byte{0xd0, 0xdf}},
		{"int16", NewInt(-129), []byte{0xd1, 0xff, 0x7f}},
		{"int32", NewInt(-32769), []byte{0xd2, 0xff, 0xff, 0x7f, 0xff}},
		{"float32", NewFloat32(1.5), []byte{0xca, 0x3f, 0xc0, 0x00, 0x00}},
		{"float64", NewFloat64(1.5), []byte{0xcb, 0x3f, 0xf8, 0, 0, 0, 0, 0, 0}},
		{"fixstr", NewString("Hi"), []byte{0xa2, 'H', 'i'}},
		{"str8", NewString(strings.Repeat("x", 32)), append([]byte{0xd9, 0x20}, bytes.Repeat([]byte("x"), 32)...)},
		{"bin8", NewBinary([]byte{1}), []byte{0xc4, 0x01, 0x01}},
		{"empty bin", NewBinary(nil), []byte{0xc4, 0x00}},
		{"fixarray", NewArray(Nil()), []byte{0x91, 0xc0}},
		{"fixmap", NewMap(Pair{Key: NewUint(1), Value: NewBool(true)}), []byte{0x81, 0x01, 0xc3}},
		{"fixext4", NewExt(7, []byte{1, 2, 3, 4}), []byte{0xd6, 0x07, 1, 2, 3, 4}},
		{"ext8", NewExt(-1, []byte{1, 2, 3}), []byte{0xc7, 0x03, 0xff, 1, 2, 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Marshal(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMarshalDefaultRequest(t *testing.T) {
	testlog.Start(t)
	req := NewArray(NewInt(42), NewBinary([]byte("Hello")), NewBinary([]byte("World!")))
	got, err := Marshal(req)
	require.NoError(t, err)
	want := []byte{
		0x93, 0x2a,
		0xc4, 0x05, 'H', 'e', 'l', 'l', 'o',
		0xc4, 0x06, 'W', 'o', 'r', 'l', 'd', '!',
	}
	assert.Equal(t, want, got)
}

func TestArray16AndMap16Headers(t *testing.T) {
	testlog.Start(t)
	got, err := Marshal(NewArray(repeatValue(Nil(), 16)...))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xdc, 0x00, 0x10}, got[:3])

	got, err = Marshal(NewMap(repeatPairs(16)...))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0x00, 0x10}, got[:3])
}

func TestLengthOverflow(t *testing.T) {
	testlog.Start(t)
	const tooLong = uint64(1) << 32

	_, err := appendStrHeader(nil, tooLong)
	require.ErrorIs(t, err, ErrLengthOverflow)
	_, err = appendBinHeader(nil, tooLong)
	require.ErrorIs(t, err, ErrLengthOverflow)
	_, err = appendArrayHeader(nil, tooLong)
	require.ErrorIs(t, err, ErrLengthOverflow)
	_, err = appendMapHeader(nil, tooLong)
	require.ErrorIs(t, err, ErrLengthOverflow)
	_, err = appendExtHeader(nil, 1, tooLong)
	require.ErrorIs(t, err, ErrLengthOverflow)

	out, err := appendBinHeader(nil, tooLong-1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xc6, 0xff, 0xff, 0xff, 0xff}, out)
}

func TestAppendKeepsPrefix(t *testing.T) {
	testlog.Start(t)
	out, err := Append([]byte{0xaa}, NewUint(1))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa, 0x01}, out)
}

func TestEncodeDeepNestingIsIterative(t *testing.T) {
	testlog.Start(t)
	const depth = 100000
	v := Nil()
	for i := 0; i < depth; i++ {
		v = NewArray(v)
	}
	got, err := Marshal(v)
	require.NoError(t, err)
	require.Len(t, got, depth+1)
	assert.Equal(t, byte(0x91), got[0])
	assert.Equal(t, byte(0xc0), got[depth])
}

type shortWriter struct{ max int }

func (w shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.max {
		return w.max, nil
	}
	return len(p), nil
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("boom") }

func TestEncodeWriterErrors(t *testing.T) {
	testlog.Start(t)
	v := NewString("more than two bytes")
	require.ErrorIs(t, Encode(shortWriter{max: 2}, v), io.ErrShortWrite)
	require.Error(t, Encode(failWriter{}, v))

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(NewUint(1)))
	require.NoError(t, enc.Encode(NewUint(2)))
	assert.Equal(t, []byte{0x01, 0x02}, buf.Bytes())
}
