package protocol

import (
	"errors"

	"github.com/danmuck/packwire/internal/protocol/buffer"
)

var (
	ErrKindMismatch    = errors.New("protocol: value kind mismatch")
	ErrIntegerOverflow = errors.New("protocol: integer overflow")
	ErrIndexOutOfRange = errors.New("protocol: index out of range")
	ErrUnsupportedType = errors.New("protocol: unsupported go type")

	ErrLengthOverflow = errors.New("protocol: length overflow")

	ErrParse         = errors.New("protocol: parse error")
	ErrInvalidTag    = errors.New("protocol: invalid tag byte")
	ErrMaxDepth      = errors.New("protocol: maximum nesting depth exceeded")
	ErrLimitExceeded = errors.New("protocol: declared length exceeds limit")
	ErrFaulted       = errors.New("protocol: decoder faulted, reset required")
	ErrTruncated     = errors.New("protocol: truncated data")
	ErrExtraBytes    = errors.New("protocol: extra bytes after value")

	// ErrOutOfMemory is returned when the decode buffer cannot grow.
	ErrOutOfMemory = buffer.ErrOutOfMemory
)
