package codec

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

type zlibCodec struct{}

func (zlibCodec) ID() ID { return Zlib }

// Bound per the deflate worst case: 5 bytes per 16KiB stored block, 5 more
// for the empty final block the writer emits on Close, plus the zlib header
// and checksum.
func (zlibCodec) Bound(n int) int { return n + 5*(n/16384+2) + 6 }

func (c zlibCodec) Compress(src []byte) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, c.Bound(len(src))))
	w := getZlibWriter(buf)
	defer putZlibWriter(w)
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("codec: zlib compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: zlib compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (zlibCodec) Decompress(src []byte, size int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("codec: zlib decompress: %w", err)
	}
	defer r.Close()
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("codec: zlib decompress: %w", err)
	}
	if n, err := r.Read(make([]byte, 1)); n != 0 || err != io.EOF {
		return nil, fmt.Errorf("codec: zlib decompress: trailing data")
	}
	return out, nil
}

var zlibwpool sync.Pool

func getZlibWriter(w io.Writer) *zlib.Writer {
	z := zlibwpool.Get()
	if z == nil {
		return zlib.NewWriter(w)
	}
	zw := z.(*zlib.Writer)
	zw.Reset(w)
	return zw
}

func putZlibWriter(w *zlib.Writer) { zlibwpool.Put(w) }
