package accrs

import (
	"errors"
	"slices"
	"sync"
)

// Gate is the writer-preference reader/writer gate shared by a tier pair.
//
// One mutex, two conditions, two counters. Readers pin the gate for the
// duration of a search; a writer blocks new readers, drains the existing
// ones, and then holds the mutex itself until release, so a writer critical
// section excludes everything. Both tiers of a pair share one gate so a
// cross-tier migration is a single critical section and cannot deadlock
// against itself.
//
// The public List methods acquire the gate; the unexported variants assume
// the caller is the current writer. That split is what lets sweep call add
// and remove on its own tier without a recursive lock.
type gate struct {
	mu         sync.Mutex
	readerCond *sync.Cond
	writerCond *sync.Cond

	readers        int
	pendingWriters int
}

func newGate() *gate {
	g := &gate{}
	g.readerCond = sync.NewCond(&g.mu)
	g.writerCond = sync.NewCond(&g.mu)
	return g
}

// Pin admits a reader.
//
// Readers yield to pending writers. A reader that had to wait broadcasts on
// the way in so siblings parked on the same condition are admitted together.
func (g *gate) pin() {
	g.mu.Lock()
	waited := false
	for g.pendingWriters > 0 {
		waited = true
		g.readerCond.Wait()
	}
	g.readers++
	if waited {
		g.readerCond.Broadcast()
	}
	g.mu.Unlock()
}

// Unpin releases a reader, waking a pending writer once the last reader is
// out.
func (g *gate) unpin() {
	g.mu.Lock()
	g.readers--
	if g.readers == 0 && g.pendingWriters > 0 {
		g.writerCond.Broadcast()
	}
	g.mu.Unlock()
}

// Lock admits one writer. The mutex remains held until unlock.
func (g *gate) lock() {
	g.mu.Lock()
	g.pendingWriters++
	for g.readers != 0 {
		g.writerCond.Wait()
	}
	g.pendingWriters--
}

// Unlock ends the writer critical section, preferring other writers over
// readers.
func (g *gate) unlock() {
	if g.pendingWriters > 0 {
		g.writerCond.Broadcast()
	} else {
		g.readerCond.Broadcast()
	}
	g.mu.Unlock()
}

// List is one cache tier: a sorted, size-bounded container of buffers.
//
// The pool is kept strictly id-sorted; membership tests are binary searches.
// A raw tier offloads to its comp tier via clock sweep, and a comp tier
// restores to its raw tier on lookup hits. Create tiers with [NewPair].
type List struct {
	g  *gate
	cc *CacheContext

	pool        []*Buffer
	currentSize int64
	maxSize     int64

	// Clock sweep state; raw tier only.
	clockHand int
	sweepGoal int

	offloadTo *List
	restoreTo *List

	// Migration-only holding lists must never recurse into a sweep.
	noSweep bool

	// Statistics.
	sweeps    uint64
	restores  uint64
	offloaded uint64
	popped    uint64
}

// DefaultSweepGoal is the percentage of current size a sweep tries to free.
const defaultSweepGoal = 10

func newList(cc *CacheContext, g *gate) *List {
	return &List{
		g:         g,
		cc:        cc,
		sweepGoal: defaultSweepGoal,
	}
}

// NewPair creates a raw/comp tier pair sharing one gate and one memory
// budget.
//
// Ratio is the percent of total assigned to the raw tier, in [1, 99].
func NewPair(cc *CacheContext, total int64, ratio int) (raw, comp *List, err error) {
	if cc == nil || total <= 0 {
		return nil, nil, ErrBadArgs
	}
	if ratio < 1 || ratio > 99 {
		return nil, nil, ErrBadArgs
	}
	g := newGate()
	raw = newList(cc, g)
	comp = newList(cc, g)
	raw.offloadTo = comp
	comp.restoreTo = raw
	raw.maxSize = total * int64(ratio) / 100
	comp.maxSize = total - raw.maxSize
	return raw, comp, nil
}

// Find locates id in the sorted pool.
func (l *List) find(id BufferID) (int, bool) {
	return slices.BinarySearchFunc(l.pool, id, func(b *Buffer, id BufferID) int {
		switch {
		case b.ID < id:
			return -1
		case b.ID > id:
			return 1
		}
		return 0
	})
}

// Add inserts a prepared buffer, sweeping to make room if the tier is full.
func (l *List) Add(buf *Buffer) error {
	l.g.lock()
	defer l.g.unlock()
	return l.add(buf)
}

func (l *List) add(buf *Buffer) error {
	if buf == nil {
		return ErrBadArgs
	}
	size := buf.size()
	// Duplicate check comes before any sweep: a sweep could otherwise
	// migrate the resident duplicate into the comp tier and leave the id
	// present in both tiers after the insert below.
	if _, found := l.find(buf.ID); found {
		return ErrBufferAlreadyExists
	}
	if l.currentSize+size > l.maxSize {
		if l.noSweep || l.offloadTo == nil {
			return ErrNoMemory
		}
		// Raise the goal just high enough that a single sweep frees "size"
		// bytes, capped at 99%.
		orig := l.sweepGoal
		goal := orig
		for goal < 99 && l.currentSize*int64(goal)/100 < size {
			goal++
		}
		if l.currentSize*int64(goal)/100 < size {
			return ErrGeneric
		}
		l.sweepGoal = goal
		l.sweep()
		l.sweepGoal = orig
		if l.currentSize+size > l.maxSize {
			return ErrGeneric
		}
	}
	// Recompute the index: a sweep above reshapes the pool.
	i, _ := l.find(buf.ID)
	l.pool = slices.Insert(l.pool, i, buf)
	l.currentSize += size
	// Keep the clock hand pointing at the same buffer.
	if l.clockHand >= i {
		l.clockHand++
	}
	return nil
}

// Remove victimizes and destroys the buffer with the given id.
//
// Blocks until every outstanding pin on the buffer is released.
func (l *List) Remove(id BufferID) error {
	l.g.lock()
	defer l.g.unlock()
	return l.remove(id)
}

func (l *List) remove(id BufferID) error {
	i, found := l.find(id)
	if !found {
		return ErrBufferNotFound
	}
	buf := l.pool[i]
	size := buf.size()
	buf.victimize()
	buf.destroy()
	l.pool = slices.Delete(l.pool, i, i+1)
	l.currentSize -= size
	if l.clockHand >= i && l.clockHand > 0 {
		l.clockHand--
	}
	return nil
}

// Search looks up id, descending into the comp tier on a raw miss.
//
// A successful result is pinned: the caller must call [Buffer.ReleasePin]. A
// comp-tier hit triggers a restore, so on return the raw tier holds the
// decompressed buffer and the comp tier no longer holds the id.
func (l *List) Search(id BufferID) (*Buffer, error) {
	l.g.pin()
	buf, err := l.searchLocal(id)
	l.g.unpin()
	if err == nil {
		return buf, nil
	}
	if l.offloadTo == nil || l.offloadTo == l {
		return nil, ErrBufferNotFound
	}

	l.g.pin()
	cbuf, cerr := l.offloadTo.searchLocal(id)
	l.g.unpin()
	if cerr != nil {
		return nil, ErrBufferNotFound
	}
	// Drop the pin before taking the writer gate; restoration re-finds the
	// buffer under the gate and tolerates it poofing in the gap.
	cbuf.ReleasePin()
	buf, err = l.restore(id)
	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, ErrBufferPoofed):
		return nil, ErrBufferNotFound
	}
	return nil, err
}

// SearchLocal searches only this tier. The caller must hold a gate pin or be
// the writer.
func (l *List) searchLocal(id BufferID) (*Buffer, error) {
	i, found := l.find(id)
	if !found {
		return nil, ErrBufferNotFound
	}
	b := l.pool[i]
	if err := b.Lock(); err != nil {
		// Victimized means mid-removal: a miss from this tier.
		b.Unlock()
		return nil, ErrBufferNotFound
	}
	b.updateRef(+1)
	b.Unlock()
	return b, nil
}

// Update replaces a pinned buffer's payload copy-on-write.
//
// The buffer must be pinned by the caller and not already dirty; the dirty
// mark clears when the buffer next migrates between tiers.
func (l *List) Update(buf *Buffer, data []byte) error {
	if buf == nil {
		return ErrBufferPoofed
	}
	if data == nil {
		return ErrBadArgs
	}
	l.g.lock()
	defer l.g.unlock()

	i, found := l.find(buf.ID)
	if !found || l.pool[i] != buf {
		return ErrBufferNotFound
	}
	if err := buf.Lock(); err != nil {
		buf.Unlock()
		return ErrTryAgain
	}
	defer buf.Unlock()
	if buf.refCount == 0 {
		return ErrBufferMissingAPin
	}
	if buf.dirty {
		return ErrBufferIsDirty
	}
	newSize := BufferOverhead + int64(len(data))
	delta := newSize - buf.size()
	// No sweeping under a held pin: the sweep could select the pinned buffer
	// and wait forever on the caller.
	if l.currentSize+delta > l.maxSize {
		return ErrNoMemory
	}
	nd := make([]byte, len(data))
	copy(nd, data)
	buf.data = nd
	buf.dataLength = uint32(len(data))
	buf.dirty = true
	l.currentSize += delta
	return nil
}

// Count reports the number of member buffers.
func (l *List) Count() int {
	l.g.pin()
	n := len(l.pool)
	l.g.unpin()
	return n
}

// CurrentSize reports the sum of member sizes charged against the budget.
func (l *List) CurrentSize() int64 {
	l.g.pin()
	n := l.currentSize
	l.g.unpin()
	return n
}

// MaxSize reports the tier's memory budget.
func (l *List) MaxSize() int64 {
	l.g.pin()
	n := l.maxSize
	l.g.unpin()
	return n
}

// Destroy drains and releases every member buffer.
//
// Blocks until all outstanding pins are released.
func (l *List) Destroy() {
	l.g.lock()
	defer l.g.unlock()
	for len(l.pool) > 0 {
		l.remove(l.pool[len(l.pool)-1].ID)
	}
}
