package page

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/minireldb/btreeindex/common"
)

// Codec monomorphizes key encode/decode/compare for one of the three
// supported key domains. Using a generic Codec[K] value rather than a
// tagged union means the hot paths (descent, split, merge, scan) are
// compiled once per concrete K and carry no per-comparison runtime type
// dispatch; only the index-handle boundary (OpenIndex) switches on a
// Datatype tag to pick which Codec to use.
type Codec[K any] interface {
	// Size is the fixed encoded width of K, in bytes.
	Size() int
	Encode(buf []byte, k K)
	Decode(buf []byte) K
	// Compare returns <0, 0, >0 as a < b, a == b, a > b.
	Compare(a, b K) int
}

// Int32Codec encodes the signed 32-bit integer key domain.
type Int32Codec struct{}

func (Int32Codec) Size() int { return 4 }

func (Int32Codec) Encode(buf []byte, k int32) {
	binary.BigEndian.PutUint32(buf, uint32(k))
}

func (Int32Codec) Decode(buf []byte) int32 {
	return int32(binary.BigEndian.Uint32(buf))
}

func (Int32Codec) Compare(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Float64Codec encodes the 64-bit float (double) key domain.
type Float64Codec struct{}

func (Float64Codec) Size() int { return 8 }

func (Float64Codec) Encode(buf []byte, k float64) {
	binary.BigEndian.PutUint64(buf, math.Float64bits(k))
}

func (Float64Codec) Decode(buf []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(buf))
}

func (Float64Codec) Compare(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// String10Codec encodes the fixed 10-byte string key domain. Comparison is
// a plain byte-array compare, which reproduces strncmp-over-STRING_SIZE
// semantics over the zero-padded buffer (design note (d)).
type String10Codec struct{}

func (String10Codec) Size() int { return common.StringKeySize }

func (String10Codec) Encode(buf []byte, k common.String10) {
	copy(buf, k[:])
}

func (String10Codec) Decode(buf []byte) common.String10 {
	var out common.String10
	copy(out[:], buf)
	return out
}

func (String10Codec) Compare(a, b common.String10) int {
	return bytes.Compare(a[:], b[:])
}
