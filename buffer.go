package accrs

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/quay/accrs/internal/lockpool"
)

// MaxPopularity is the ceiling of a buffer's popularity counter.
const MaxPopularity = 255

// BufferID identifies a cached page within a tier pair.
//
// It should come from the system providing the data itself (an inode, a page
// number).
type BufferID uint32

// Buffer is one cached page.
//
// A buffer's payload is either raw or compressed, reported by CompLength: a
// zero comp length means the payload is raw. By invariant, buffers resident
// in a raw tier are raw and buffers resident in a comp tier are compressed.
//
// Mutable fields are protected by the buffer's slot in the cache's lock pool,
// except popularity, which tolerates racy updates by design of the clock
// sweep and so only needs atomicity.
type Buffer struct {
	// ID is the buffer's identity for lookup and ordering. Immutable.
	ID BufferID

	cc     *CacheContext
	lockID lockpool.ID

	refCount   uint16
	victimized bool
	dirty      bool

	popularity   atomic.Uint32
	removalIndex uint16

	// Statistics; not correctness-bearing.
	ioCost   time.Duration
	compCost time.Duration
	compHits uint32

	dataLength uint32
	compLength uint32
	data       []byte
}

// NewBuffer creates a buffer holding a copy of data.
//
// A nil data leaves the buffer empty.
func NewBuffer(cc *CacheContext, id BufferID, data []byte) *Buffer {
	b := &Buffer{
		ID:     id,
		cc:     cc,
		lockID: cc.locks.Assign(),
	}
	if data != nil {
		b.data = make([]byte, len(data))
		copy(b.data, data)
		b.dataLength = uint32(len(data))
	}
	return b
}

// NewBufferFromFile creates a buffer by reading the page at filespec.
//
// The read is timed into the buffer's io cost.
func NewBufferFromFile(cc *CacheContext, id BufferID, filespec string) (*Buffer, error) {
	b := &Buffer{
		ID:     id,
		cc:     cc,
		lockID: cc.locks.Assign(),
	}
	start := time.Now()
	data, err := os.ReadFile(filespec)
	if err != nil {
		return nil, fmt.Errorf("accrs: reading page %q: %w", filespec, err)
	}
	b.ioCost = time.Since(start)
	b.data = data
	b.dataLength = uint32(len(data))
	return b, nil
}

// Lock acquires the buffer's slot in the lock pool.
//
// Returns nil when the buffer is usable and [ErrBufferIsVictimized] when it
// is marked for removal; in both cases the caller holds the lock on return
// and must call [Buffer.Unlock]. A nil receiver reports [ErrBufferPoofed]
// without locking anything, for callers racing with removal.
func (b *Buffer) Lock() error {
	if b == nil {
		return ErrBufferPoofed
	}
	b.cc.locks.Lock(b.lockID)
	if b.victimized {
		return ErrBufferIsVictimized
	}
	return nil
}

// Unlock releases the buffer's slot.
func (b *Buffer) Unlock() {
	b.cc.locks.Unlock(b.lockID)
}

// UpdateRef adjusts the pin count by delta, which must be +1 or -1.
//
// The caller must hold the buffer lock. An increment is refused on a
// victimized buffer. A decrement always succeeds; dropping the count to zero
// on a victimized buffer wakes the waiting victimizer.
func (b *Buffer) updateRef(delta int) error {
	if delta > 0 {
		if b.victimized {
			return ErrBufferIsVictimized
		}
		b.refCount++
		b.bumpPopularity()
		return nil
	}
	b.refCount--
	if b.victimized && b.refCount == 0 {
		b.cc.locks.Broadcast(b.lockID)
	}
	return nil
}

// ReleasePin drops one reader pin.
//
// Safe to call on a victimized buffer; that's exactly how a victimizer gets
// unblocked. A nil receiver is a no-op.
func (b *Buffer) ReleasePin() {
	if b == nil {
		return
	}
	// A victimized result still leaves us holding the lock; the decrement is
	// exactly what the victimizer is waiting on.
	b.Lock()
	b.updateRef(-1)
	b.Unlock()
}

// Victimize marks the buffer so no new pin can be acquired, then blocks until
// all outstanding pins drain.
//
// On return the buffer is locked and unreachable by new readers; the caller
// owns its destruction. Only list removal should call this.
func (b *Buffer) victimize() {
	// An already-victimized result still leaves us holding the lock, which is
	// all that matters here.
	b.Lock()
	b.victimized = true
	for b.refCount != 0 {
		// Slots are shared: this wakeup may be for a different buffer, hence
		// the re-check.
		b.cc.locks.Wait(b.lockID)
	}
}

// Destroy releases the payload.
//
// The buffer must be victimized and locked; the lock is released here.
func (b *Buffer) destroy() {
	b.data = nil
	b.Unlock()
}

// BumpPopularity increments popularity, saturating at [MaxPopularity].
func (b *Buffer) bumpPopularity() {
	for {
		cur := b.popularity.Load()
		if cur >= MaxPopularity {
			return
		}
		if b.popularity.CompareAndSwap(cur, cur+1) {
			return
		}
	}
}

// DecayGeneration decrements popularity by one, saturating at zero.
//
// Sweep calls this on every comp-tier resident when a new generation is
// pushed; it is the only source of decay in a comp tier.
func (b *Buffer) decayGeneration() {
	for {
		cur := b.popularity.Load()
		if cur == 0 {
			return
		}
		if b.popularity.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// Compress replaces the payload with its compressed form.
//
// The data length is left untouched so a later decompress can size its
// allocation; the comp length records the compressed size. The caller must
// own the buffer exclusively (an unpublished copy, or the pair's writer
// lock).
func (b *Buffer) compress() error {
	if b.data == nil || b.dataLength == 0 {
		return ErrBufferMissingData
	}
	if b.compLength != 0 {
		return ErrBufferAlreadyCompressed
	}
	start := time.Now()
	out, err := b.cc.codec.Compress(b.data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBufferCompressionProblem, err)
	}
	b.compCost += time.Since(start)
	b.data = out
	b.compLength = uint32(len(out))
	return nil
}

// Decompress is the inverse of compress.
func (b *Buffer) decompress() error {
	if b.data == nil {
		return ErrBufferMissingData
	}
	if b.compLength == 0 {
		return ErrBufferAlreadyDecompressed
	}
	start := time.Now()
	out, err := b.cc.codec.Decompress(b.data, int(b.dataLength))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBufferCompressionProblem, err)
	}
	b.compCost += time.Since(start)
	b.data = out
	b.compLength = 0
	return nil
}

// Clone produces a detached copy.
//
// The copy gets its own lock slot. When copyData is false the payload is
// shared; sweep and restore always copy so the original can poof safely.
func (b *Buffer) clone(copyData bool) *Buffer {
	n := &Buffer{
		ID:           b.ID,
		cc:           b.cc,
		lockID:       b.cc.locks.Assign(),
		refCount:     b.refCount,
		victimized:   b.victimized,
		removalIndex: b.removalIndex,
		ioCost:       b.ioCost,
		compCost:     b.compCost,
		compHits:     b.compHits,
		dataLength:   b.dataLength,
		compLength:   b.compLength,
		data:         b.data,
	}
	n.popularity.Store(b.popularity.Load())
	if copyData && b.data != nil {
		n.data = make([]byte, len(b.data))
		copy(n.data, b.data)
	}
	return n
}

// Size is the buffer's charge against a list budget: overhead plus whichever
// payload length is live.
func (b *Buffer) size() int64 {
	if b.compLength != 0 {
		return BufferOverhead + int64(b.compLength)
	}
	return BufferOverhead + int64(b.dataLength)
}

// Data returns the current payload.
func (b *Buffer) Data() []byte {
	b.cc.locks.Lock(b.lockID)
	d := b.data
	b.cc.locks.Unlock(b.lockID)
	return d
}

// DataLength reports the length of the uncompressed payload in bytes.
func (b *Buffer) DataLength() uint32 {
	b.cc.locks.Lock(b.lockID)
	n := b.dataLength
	b.cc.locks.Unlock(b.lockID)
	return n
}

// CompLength reports the length of the compressed payload in bytes; zero
// means the payload is raw.
func (b *Buffer) CompLength() uint32 {
	b.cc.locks.Lock(b.lockID)
	n := b.compLength
	b.cc.locks.Unlock(b.lockID)
	return n
}

// RefCount reports the number of outstanding pins.
func (b *Buffer) RefCount() int {
	b.cc.locks.Lock(b.lockID)
	n := int(b.refCount)
	b.cc.locks.Unlock(b.lockID)
	return n
}

// IOCost reports the time spent reading this page from disk.
func (b *Buffer) IOCost() time.Duration { return b.ioCost }

// CompCost reports the cumulative time this buffer has spent in the codec.
func (b *Buffer) CompCost() time.Duration {
	b.cc.locks.Lock(b.lockID)
	d := b.compCost
	b.cc.locks.Unlock(b.lockID)
	return d
}

// CompHits reports how many times this page was reclaimed from a comp tier.
func (b *Buffer) CompHits() uint32 { return b.compHits }
