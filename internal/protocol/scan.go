package protocol

import (
	"fmt"

	"github.com/danmuck/packwire/internal/protocol/wire"
)

// scanState is the partial-parse bookkeeping of a Decoder: how many pending
// bytes are already recognized and how many elements each open container
// still expects. Offsets are relative to the first pending byte so buffer
// compaction does not invalidate them.
type scanState struct {
	off   int
	stack []uint64
	done  bool
}

func (s *scanState) reset() {
	s.off = 0
	s.stack = s.stack[:0]
	s.done = false
}

// complete records one finished element and closes every container it
// completes.
func (s *scanState) complete() {
	for len(s.stack) > 0 {
		top := len(s.stack) - 1
		s.stack[top]--
		if s.stack[top] > 0 {
			return
		}
		s.stack = s.stack[:top]
	}
	s.done = true
}

func (s *scanState) advance(p []byte, limits *Limits) (Result, error) {
	for !s.done {
		if s.off >= len(p) {
			return ResultIncomplete, nil
		}
		tag := p[s.off]
		spec, ok := wire.Lookup(tag)
		if !ok {
			return ResultParseError, fmt.Errorf("%w: %w 0x%02x at offset %d", ErrParse, ErrInvalidTag, tag, s.off)
		}
		avail := len(p) - s.off
		if avail < spec.HeaderLen {
			return ResultIncomplete, nil
		}
		hdr := p[s.off:]

		if spec.Container() {
			n := spec.Length(hdr)
			count := uint64(n)
			if spec.Family == wire.FamilyMap {
				if n > limits.MaxMapLen {
					return ResultParseError, limitErr("map", n, limits.MaxMapLen)
				}
				count *= 2
			} else if n > limits.MaxArrayLen {
				return ResultParseError, limitErr("array", n, limits.MaxArrayLen)
			}
			s.off += spec.HeaderLen
			if count == 0 {
				s.complete()
				continue
			}
			if limits.MaxDepth > 0 && len(s.stack) >= limits.MaxDepth {
				return ResultParseError, fmt.Errorf("%w: %w (%d)", ErrParse, ErrMaxDepth, limits.MaxDepth)
			}
			s.stack = append(s.stack, count)
			continue
		}

		size := uint64(spec.HeaderLen + spec.Width)
		if spec.Sized() {
			n := spec.Length(hdr)
			if err := checkPayloadLimit(spec.Family, n, limits); err != nil {
				return ResultParseError, err
			}
			size = uint64(spec.HeaderLen) + uint64(n)
		}
		if limits.MaxBufferSize > 0 && uint64(s.off)+size > uint64(limits.MaxBufferSize) {
			return ResultOutOfMemory, fmt.Errorf("%w: value needs %d bytes, limit %d",
				ErrOutOfMemory, uint64(s.off)+size, limits.MaxBufferSize)
		}
		if uint64(avail) < size {
			return ResultIncomplete, nil
		}
		s.off += int(size)
		s.complete()
	}
	return ResultReady, nil
}

func checkPayloadLimit(f wire.Family, n uint32, limits *Limits) error {
	switch f {
	case wire.FamilyStr:
		if n > limits.MaxStrLen {
			return limitErr("string", n, limits.MaxStrLen)
		}
	case wire.FamilyBin:
		if n > limits.MaxBinLen {
			return limitErr("binary", n, limits.MaxBinLen)
		}
	case wire.FamilyExt:
		if n > limits.MaxExtLen {
			return limitErr("ext", n, limits.MaxExtLen)
		}
	}
	return nil
}

func limitErr(what string, n, limit uint32) error {
	return fmt.Errorf("%w: %w: %s length %d > %d", ErrParse, ErrLimitExceeded, what, n, limit)
}
