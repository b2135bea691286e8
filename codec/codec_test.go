package codec

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var roundtripIDs = []ID{None, LZ4, Zlib, Zstd, XZ}

func TestRoundtrip(t *testing.T) {
	// A mix of highly compressible, incompressible, and small inputs.
	rng := rand.New(rand.NewSource(0x5eed))
	random := make([]byte, 64*1024)
	rng.Read(random)
	inputs := map[string][]byte{
		"zeros":  make([]byte, 32*1024),
		"text":   bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 512),
		"random": random,
		"tiny":   []byte("x"),
	}

	for _, id := range roundtripIDs {
		t.Run(id.String(), func(t *testing.T) {
			c, err := New(id)
			if err != nil {
				t.Fatal(err)
			}
			for name, in := range inputs {
				t.Run(name, func(t *testing.T) {
					comp, err := c.Compress(in)
					if err != nil {
						t.Fatal(err)
					}
					if len(comp) == 0 {
						t.Error("empty compressed output")
					}
					if got, bound := len(comp), c.Bound(len(in)); got > bound {
						t.Errorf("compressed size %d exceeds bound %d", got, bound)
					}
					out, err := c.Decompress(comp, len(in))
					if err != nil {
						t.Fatal(err)
					}
					if !cmp.Equal(out, in) {
						t.Error("roundtrip mismatch")
					}
				})
			}
		})
	}
}

func TestDecompressSizeMismatch(t *testing.T) {
	for _, id := range roundtripIDs {
		t.Run(id.String(), func(t *testing.T) {
			c, err := New(id)
			if err != nil {
				t.Fatal(err)
			}
			comp, err := c.Compress([]byte("some reasonable payload for the cache"))
			if err != nil {
				t.Fatal(err)
			}
			if _, err := c.Decompress(comp, 5); err == nil {
				t.Error("expected error for wrong decompressed size")
			}
		})
	}
}

func TestUnknownID(t *testing.T) {
	if _, err := New(ID(99)); err == nil {
		t.Error("expected error for unknown compressor id")
	}
}
