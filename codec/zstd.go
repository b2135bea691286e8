package codec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

type zstdCodec struct{}

func (zstdCodec) ID() ID { return Zstd }

// Bound follows the shape of ZSTD_compressBound: input size plus 1/256 of it,
// plus a fixed 64-byte margin for frame overhead.
func (zstdCodec) Bound(n int) int { return n + (n >> 8) + 64 }

func (c zstdCodec) Compress(src []byte) ([]byte, error) {
	e := getZstdEncoder()
	defer putZstdEncoder(e)
	return e.EncodeAll(src, make([]byte, 0, c.Bound(len(src)))), nil
}

func (zstdCodec) Decompress(src []byte, size int) ([]byte, error) {
	d := getZstdDecoder()
	defer putZstdDecoder(d)
	out, err := d.DecodeAll(src, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("codec: zstd decompress: %w", err)
	}
	if len(out) != size {
		return nil, fmt.Errorf("codec: zstd decompress: got %d bytes, want %d", len(out), size)
	}
	return out, nil
}

// Package-level pools for encoders and decoders, which hold large internal
// windows.
var (
	zstdepool sync.Pool
	zstddpool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	e := zstdepool.Get()
	if e == nil {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			// Should *never* happen -- a nil Writer causes only internal setup
			// allocations.
			panic(fmt.Sprintf("error creating zstd writer: %v", err))
		}
		return enc
	}
	return e.(*zstd.Encoder)
}

func putZstdEncoder(e *zstd.Encoder) { zstdepool.Put(e) }

func getZstdDecoder() *zstd.Decoder {
	d := zstddpool.Get()
	if d == nil {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			// Ditto, setup allocations only.
			panic(fmt.Sprintf("error creating zstd reader: %v", err))
		}
		return dec
	}
	return d.(*zstd.Decoder)
}

func putZstdDecoder(d *zstd.Decoder) { zstddpool.Put(d) }
