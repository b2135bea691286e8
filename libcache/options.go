package libcache

import "github.com/quay/accrs/codec"

// Defaults used by [New] when the corresponding option is zero.
const (
	DefaultRawRatio   = 80
	DefaultCompressor = codec.LZ4
	DefaultMaxLocks   = 1024
)

// Options are dependencies and options for constructing a Cache.
type Options struct {
	// TotalMemory is the shared budget, in bytes, split between the raw and
	// comp tiers. Required.
	TotalMemory int64
	// RawRatio is the percent of TotalMemory initially assigned to the raw
	// tier, in [1, 99]. Defaults to DefaultRawRatio.
	RawRatio int
	// Codec is used when buffers migrate into the comp tier. Defaults to the
	// DefaultCompressor codec; construct one explicitly (including
	// codec.None, which turns the comp tier into a plain second-chance tier)
	// to override.
	Codec codec.Codec
	// MaxLocks sizes the buffer lock pool. Buffers share lock slots
	// round-robin; a value near the expected live buffer count behaves like
	// per-buffer locking.
	MaxLocks int
	// Name labels this instance in logs and metrics. A uuid is generated
	// when empty.
	Name string
}

func (o *Options) fillDefaults() error {
	if o.RawRatio == 0 {
		o.RawRatio = DefaultRawRatio
	}
	if o.Codec == nil {
		c, err := codec.New(DefaultCompressor)
		if err != nil {
			return err
		}
		o.Codec = c
	}
	if o.MaxLocks == 0 {
		o.MaxLocks = DefaultMaxLocks
	}
	return nil
}
