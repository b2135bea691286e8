package accrs

import (
	"sync"

	"github.com/quay/accrs/codec"
	"github.com/quay/accrs/internal/lockpool"
)

// CacheContext holds the state shared by every list and buffer of one cache
// instance: the lock pool, the configured codec, and the removal-index
// counter.
//
// Keeping this per-instance rather than process-global means independent
// caches can coexist in one process, which also keeps tests honest.
type CacheContext struct {
	locks *lockpool.Pool
	codec codec.Codec

	mu          sync.Mutex
	nextRemoval uint16
}

// NewContext creates a CacheContext.
//
// MaxLocks sizes the shared lock pool; a good default is the expected number
// of concurrently-live buffers. A nil Codec panics: the caller decides the
// compressor, the core never picks one silently.
func NewContext(c codec.Codec, maxLocks int) *CacheContext {
	if c == nil {
		panic("programmer error: nil codec")
	}
	return &CacheContext{
		locks: lockpool.New(maxLocks),
		codec: c,
	}
}

// Codec reports the configured codec.
func (cc *CacheContext) Codec() codec.Codec { return cc.codec }

// NextRemovalIndex hands out the next removal generation marker, wrapping on
// overflow.
//
// Only paths migrating buffers from the raw tier to the comp tier stamp this.
func (cc *CacheContext) nextRemovalIndex() uint16 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.nextRemoval++
	return cc.nextRemoval
}
