package codec

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// Lz4Codec uses the lz4 frame format.
//
// The frame format (rather than raw blocks) is used so incompressible input
// still round-trips: the frame falls back to stored blocks instead of
// reporting the input uncompressable.
type lz4Codec struct{}

func (lz4Codec) ID() ID { return LZ4 }

// Bound is the block bound plus frame header/trailer slack.
func (lz4Codec) Bound(n int) int { return lz4.CompressBlockBound(n) + 32 }

func (c lz4Codec) Compress(src []byte) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, c.Bound(len(src))))
	w := getLz4Writer(buf)
	defer putLz4Writer(w)
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("codec: lz4 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: lz4 compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (lz4Codec) Decompress(src []byte, size int) ([]byte, error) {
	r := getLz4Reader(bytes.NewReader(src))
	defer putLz4Reader(r)
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("codec: lz4 decompress: %w", err)
	}
	// The stream must be exactly "size" long.
	if n, err := r.Read(make([]byte, 1)); n != 0 || err != io.EOF {
		return nil, fmt.Errorf("codec: lz4 decompress: trailing data")
	}
	return out, nil
}

// Package-level pools for the lz4 stream objects, which are expensive to
// allocate relative to the payloads moving through them.
var (
	lz4wpool sync.Pool
	lz4rpool sync.Pool
)

func getLz4Writer(w io.Writer) *lz4.Writer {
	z := lz4wpool.Get()
	if z == nil {
		return lz4.NewWriter(w)
	}
	lw := z.(*lz4.Writer)
	lw.Reset(w)
	return lw
}

func putLz4Writer(w *lz4.Writer) { lz4wpool.Put(w) }

func getLz4Reader(r io.Reader) *lz4.Reader {
	z := lz4rpool.Get()
	if z == nil {
		return lz4.NewReader(r)
	}
	lr := z.(*lz4.Reader)
	lr.Reset(r)
	return lr
}

func putLz4Reader(r *lz4.Reader) { lz4rpool.Put(r) }
