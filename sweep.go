package accrs

import (
	"errors"
	"fmt"
	"log/slog"
)

// Sweep runs clock-sweep victim selection until the goal is met, compressing
// victims into a transient holding list and then migrating them into the
// comp tier as one new generation.
//
// The caller must be the writer. The goal is sweepGoal percent of the
// current size, measured in bytes freed from this tier. Returns the bytes
// actually freed.
func (l *List) sweep() int64 {
	if len(l.pool) == 0 || l.offloadTo == nil {
		return 0
	}
	l.sweeps++
	bytesNeeded := l.currentSize * int64(l.sweepGoal) / 100

	// The holding list shares the gate but is only ever touched through the
	// writer-context variants, and must never recurse into a sweep of its
	// own.
	tmp := newList(l.cc, l.g)
	tmp.noSweep = true
	// Twice the goal, plus slack for codec expansion on incompressible
	// victims.
	tmp.maxSize = 2*bytesNeeded + 4096

	var freed int64
	for freed < bytesNeeded && len(l.pool) > 0 {
		victim := l.clockScan()
		cp := victim.clone(true)
		if err := cp.compress(); err != nil {
			panic(fmt.Sprintf("accrs: sweep cannot compress buffer %d: %v", victim.ID, err))
		}
		// The copy is a separate entity from its doppelganger now.
		cp.refCount = 0
		cp.victimized = false
		cp.dirty = false
		cp.popularity.Store(0)
		cp.removalIndex = l.cc.nextRemovalIndex()
		if err := tmp.add(cp); err != nil {
			panic(fmt.Sprintf("accrs: sweep holding list refused buffer %d: %v", cp.ID, err))
		}
		freed += victim.size()
		if err := l.remove(victim.ID); err != nil {
			panic(fmt.Sprintf("accrs: sweep cannot remove victim %d: %v", victim.ID, err))
		}
	}

	// Migrate the holding list into the comp tier.
	off := l.offloadTo
	if off.currentSize+tmp.currentSize > off.maxSize {
		if err := off.pop(tmp.currentSize); err != nil {
			panic(fmt.Sprintf("accrs: comp tier cannot make room for %d bytes: %v", tmp.currentSize, err))
		}
	}
	// Generation boundary: the only source of decay in a comp tier.
	for _, b := range off.pool {
		b.decayGeneration()
	}
	for _, b := range tmp.pool {
		if err := off.push(b); err != nil {
			panic(fmt.Sprintf("accrs: comp tier refused buffer %d: %v", b.ID, err))
		}
	}
	l.offloaded += uint64(len(tmp.pool))
	slog.Debug("sweep finished",
		"needed", bytesNeeded,
		"freed", freed,
		"migrated", len(tmp.pool))
	tmp.pool = nil
	return freed
}

// ClockScan advances the clock hand, halving popularity on each visit, until
// it lands on a zero-popularity buffer: the victim.
//
// The hand never escapes [0, count). The caller must be the writer and the
// pool must be non-empty.
func (l *List) clockScan() *Buffer {
	for {
		if l.clockHand >= len(l.pool) {
			l.clockHand = 0
		}
		b := l.pool[l.clockHand]
		if b.popularity.Load() == 0 {
			return b
		}
		b.popularity.Store(b.popularity.Load() >> 1)
		l.clockHand++
	}
}

// Push prepares a compressed buffer for membership in this comp tier: newly
// pushed buffers are the most popular generation.
func (l *List) push(buf *Buffer) error {
	buf.popularity.Store(MaxPopularity)
	buf.victimized = false
	return l.add(buf)
}

// Restore promotes id from the comp tier back into this raw tier:
// decompress into a fresh buffer, insert here, remove there.
//
// Returns the raw-tier buffer pinned by this caller; a freshly restored buffer
// carries exactly one reference. When another searcher completed the same
// restore first, its buffer is returned with an added pin. Reports
// [ErrBufferPoofed] when the id vanished from the comp tier before the gate
// was acquired.
func (l *List) restore(id BufferID) (*Buffer, error) {
	l.g.lock()
	defer l.g.unlock()

	// The caller released its pins before taking the gate; another searcher
	// may have completed the same restore in the gap.
	if b, err := l.searchLocal(id); err == nil {
		return b, nil
	}
	comp := l.offloadTo
	i, found := comp.find(id)
	if !found {
		return nil, ErrBufferPoofed
	}
	nb := comp.pool[i].clone(true)
	if err := nb.decompress(); err != nil {
		panic(fmt.Sprintf("accrs: cannot decompress buffer %d for restore: %v", id, err))
	}
	nb.victimized = false
	nb.refCount = 1
	nb.dirty = false
	nb.compHits++
	nb.popularity.Store(1)
	if err := l.add(nb); err != nil {
		if errors.Is(err, ErrBufferAlreadyExists) {
			// Unreachable: membership was re-checked under this gate hold.
			return nil, ErrTryAgain
		}
		return nil, err
	}
	// The add may itself have swept and popped the source out of the comp
	// tier; a miss here is fine.
	comp.remove(id)
	l.restores++
	return nb, nil
}
