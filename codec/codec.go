// Package codec provides the byte-in/byte-out compressors the cache uses to
// move buffers between tiers.
//
// A cache instance is constructed with exactly one Codec; compressed payloads
// are only ever decompressed by the codec that produced them, so there is no
// in-band format negotiation or sniffing.
package codec

import (
	"fmt"
)

// ID selects a compressor.
type ID int

// Known compressors.
const (
	None ID = 0
	LZ4  ID = 1
	Zlib ID = 2
	Zstd ID = 3
	XZ   ID = 4
)

// String implements fmt.Stringer.
func (i ID) String() string {
	switch i {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zlib:
		return "zlib"
	case Zstd:
		return "zstd"
	case XZ:
		return "xz"
	}
	return fmt.Sprintf("codec(%d)", int(i))
}

// Codec is a compressor/decompressor pair.
//
// Implementations must be safe for concurrent use.
type Codec interface {
	// ID reports which compressor this is.
	ID() ID
	// Bound returns the worst-case compressed size for an input of n bytes.
	Bound(n int) int
	// Compress returns a newly-allocated compressed form of src.
	Compress(src []byte) ([]byte, error)
	// Decompress returns the decompressed form of src.
	//
	// Size is the exact decompressed length, recorded by the caller when the
	// payload was compressed. An output of any other length is an error.
	Decompress(src []byte, size int) ([]byte, error)
}

// New returns the Codec for the given ID.
func New(id ID) (Codec, error) {
	switch id {
	case None:
		return noop{}, nil
	case LZ4:
		return lz4Codec{}, nil
	case Zlib:
		return zlibCodec{}, nil
	case Zstd:
		return zstdCodec{}, nil
	case XZ:
		return xzCodec{}, nil
	}
	return nil, fmt.Errorf("codec: unknown compressor id %d", int(id))
}

// Noop is the identity codec.
//
// It exists so a cache can be configured without compression: the comp tier
// then behaves as a plain second-chance tier.
type noop struct{}

func (noop) ID() ID          { return None }
func (noop) Bound(n int) int { return n }

func (noop) Compress(src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

func (noop) Decompress(src []byte, size int) ([]byte, error) {
	if len(src) != size {
		return nil, fmt.Errorf("codec: size mismatch: have %d bytes, want %d", len(src), size)
	}
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}
