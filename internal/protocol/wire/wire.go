// Package wire holds the MessagePack tag table shared by the encoder and the
// incremental decoder.
package wire

import "fmt"

// Tag bytes from the MessagePack format.
const (
	PosFixIntMax byte = 0x7f
	FixMapMin    byte = 0x80
	FixMapMax    byte = 0x8f
	FixArrayMin  byte = 0x90
	FixArrayMax  byte = 0x9f
	FixStrMin    byte = 0xa0
	FixStrMax    byte = 0xbf
	NegFixIntMin byte = 0xe0

	Nil      byte = 0xc0
	Unused   byte = 0xc1
	False    byte = 0xc2
	True     byte = 0xc3
	Bin8     byte = 0xc4
	Bin16    byte = 0xc5
	Bin32    byte = 0xc6
	Ext8     byte = 0xc7
	Ext16    byte = 0xc8
	Ext32    byte = 0xc9
	Float32  byte = 0xca
	Float64  byte = 0xcb
	Uint8    byte = 0xcc
	Uint16   byte = 0xcd
	Uint32   byte = 0xce
	Uint64   byte = 0xcf
	Int8     byte = 0xd0
	Int16    byte = 0xd1
	Int32    byte = 0xd2
	Int64    byte = 0xd3
	FixExt1  byte = 0xd4
	FixExt2  byte = 0xd5
	FixExt4  byte = 0xd6
	FixExt8  byte = 0xd7
	FixExt16 byte = 0xd8
	Str8     byte = 0xd9
	Str16    byte = 0xda
	Str32    byte = 0xdb
	Array16  byte = 0xdc
	Array32  byte = 0xdd
	Map16    byte = 0xde
	Map32    byte = 0xdf
)

// Size limits of the fix and sized families.
const (
	MaxFixStr   = 31
	MaxFixArray = 15
	MaxFixMap   = 15
	MaxLen8     = 1<<8 - 1
	MaxLen16    = 1<<16 - 1
	MaxLen32    = 1<<32 - 1
	MinNegFix   = -32
)

// Family groups tags by the kind of value they introduce.
type Family uint8

const (
	FamilyInvalid Family = iota
	FamilyNil
	FamilyBool
	FamilyUint
	FamilyInt
	FamilyFloat32
	FamilyFloat64
	FamilyStr
	FamilyBin
	FamilyArray
	FamilyMap
	FamilyExt
)

var familyNames = [...]string{
	FamilyInvalid: "invalid",
	FamilyNil:     "nil",
	FamilyBool:    "bool",
	FamilyUint:    "uint",
	FamilyInt:     "int",
	FamilyFloat32: "float32",
	FamilyFloat64: "float64",
	FamilyStr:     "str",
	FamilyBin:     "bin",
	FamilyArray:   "array",
	FamilyMap:     "map",
	FamilyExt:     "ext",
}

func (f Family) String() string {
	if int(f) < len(familyNames) {
		return familyNames[f]
	}
	return fmt.Sprintf("family(%d)", uint8(f))
}

// Spec describes the header layout introduced by one tag byte.
//
// HeaderLen counts the tag byte, the length field and, for ext families, the
// type byte. For fixed-width scalars Width is the payload size that follows
// the tag. For fix families Inline carries the length or count encoded in the
// tag itself.
type Spec struct {
	Tag       byte
	Family    Family
	HeaderLen int
	LenSize   int
	Width     int
	Inline    uint32
	HasInline bool
}

// Sized reports whether the tag is followed by a length or count that must be
// read from the header (or is carried inline).
func (s Spec) Sized() bool {
	switch s.Family {
	case FamilyStr, FamilyBin, FamilyArray, FamilyMap, FamilyExt:
		return true
	default:
		return false
	}
}

// Container reports whether the tag opens an array or map.
func (s Spec) Container() bool {
	return s.Family == FamilyArray || s.Family == FamilyMap
}

var table [256]Spec

func init() {
	for i := 0; i <= int(PosFixIntMax); i++ {
		table[i] = Spec{Tag: byte(i), Family: FamilyUint, HeaderLen: 1, Inline: uint32(i), HasInline: true}
	}
	for i := int(FixMapMin); i <= int(FixMapMax); i++ {
		table[i] = Spec{Tag: byte(i), Family: FamilyMap, HeaderLen: 1, Inline: uint32(i - int(FixMapMin)), HasInline: true}
	}
	for i := int(FixArrayMin); i <= int(FixArrayMax); i++ {
		table[i] = Spec{Tag: byte(i), Family: FamilyArray, HeaderLen: 1, Inline: uint32(i - int(FixArrayMin)), HasInline: true}
	}
	for i := int(FixStrMin); i <= int(FixStrMax); i++ {
		table[i] = Spec{Tag: byte(i), Family: FamilyStr, HeaderLen: 1, Inline: uint32(i - int(FixStrMin)), HasInline: true}
	}
	for i := int(NegFixIntMin); i <= 0xff; i++ {
		table[i] = Spec{Tag: byte(i), Family: FamilyInt, HeaderLen: 1}
	}

	table[Nil] = Spec{Tag: Nil, Family: FamilyNil, HeaderLen: 1}
	table[False] = Spec{Tag: False, Family: FamilyBool, HeaderLen: 1}
	table[True] = Spec{Tag: True, Family: FamilyBool, HeaderLen: 1}

	sized := func(tag byte, fam Family, lenSize int) {
		table[tag] = Spec{Tag: tag, Family: fam, HeaderLen: 1 + lenSize, LenSize: lenSize}
	}
	sized(Bin8, FamilyBin, 1)
	sized(Bin16, FamilyBin, 2)
	sized(Bin32, FamilyBin, 4)
	sized(Str8, FamilyStr, 1)
	sized(Str16, FamilyStr, 2)
	sized(Str32, FamilyStr, 4)
	sized(Array16, FamilyArray, 2)
	sized(Array32, FamilyArray, 4)
	sized(Map16, FamilyMap, 2)
	sized(Map32, FamilyMap, 4)

	// ext headers carry a trailing int8 type byte.
	ext := func(tag byte, lenSize int) {
		table[tag] = Spec{Tag: tag, Family: FamilyExt, HeaderLen: 2 + lenSize, LenSize: lenSize}
	}
	ext(Ext8, 1)
	ext(Ext16, 2)
	ext(Ext32, 4)
	fixext := func(tag byte, n uint32) {
		table[tag] = Spec{Tag: tag, Family: FamilyExt, HeaderLen: 2, Inline: n, HasInline: true}
	}
	fixext(FixExt1, 1)
	fixext(FixExt2, 2)
	fixext(FixExt4, 4)
	fixext(FixExt8, 8)
	fixext(FixExt16, 16)

	fixed := func(tag byte, fam Family, width int) {
		table[tag] = Spec{Tag: tag, Family: fam, HeaderLen: 1, Width: width}
	}
	fixed(Float32, FamilyFloat32, 4)
	fixed(Float64, FamilyFloat64, 8)
	fixed(Uint8, FamilyUint, 1)
	fixed(Uint16, FamilyUint, 2)
	fixed(Uint32, FamilyUint, 4)
	fixed(Uint64, FamilyUint, 8)
	fixed(Int8, FamilyInt, 1)
	fixed(Int16, FamilyInt, 2)
	fixed(Int32, FamilyInt, 4)
	fixed(Int64, FamilyInt, 8)
}

// Lookup returns the layout of tag. The only tag that never begins a valid
// encoding is 0xc1.
func Lookup(tag byte) (Spec, bool) {
	s := table[tag]
	return s, s.Family != FamilyInvalid
}

// Length reads the length field of s from hdr, which must hold at least
// s.HeaderLen bytes. For fix families the inline value is returned.
func (s Spec) Length(hdr []byte) uint32 {
	if s.HasInline {
		return s.Inline
	}
	switch s.LenSize {
	case 1:
		return uint32(hdr[1])
	case 2:
		return uint32(hdr[1])<<8 | uint32(hdr[2])
	case 4:
		return uint32(hdr[1])<<24 | uint32(hdr[2])<<16 | uint32(hdr[3])<<8 | uint32(hdr[4])
	default:
		return 0
	}
}

// ExtType reads the ext type byte of an ext header.
func (s Spec) ExtType(hdr []byte) int8 {
	return int8(hdr[s.HeaderLen-1])
}
