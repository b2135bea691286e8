package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

// XzCodec trades much slower compression for a better ratio. It's mostly
// useful when the comp tier is sized far larger than the raw tier and restore
// latency is not a concern.
type xzCodec struct{}

func (xzCodec) ID() ID { return XZ }

// Bound: xz streams of incompressible data grow by the block header and
// index; 1KiB of slack covers any input this cache will see.
func (xzCodec) Bound(n int) int { return n + 1024 }

func (c xzCodec) Compress(src []byte) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, c.Bound(len(src))))
	w, err := xz.NewWriter(buf)
	if err != nil {
		return nil, fmt.Errorf("codec: xz compress: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("codec: xz compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: xz compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (xzCodec) Decompress(src []byte, size int) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("codec: xz decompress: %w", err)
	}
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("codec: xz decompress: %w", err)
	}
	if n, err := r.Read(make([]byte, 1)); n != 0 || err != io.EOF {
		return nil, fmt.Errorf("codec: xz decompress: trailing data")
	}
	return out, nil
}
