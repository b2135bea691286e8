package accrs

// ListStats is a point-in-time snapshot of one tier's counters.
type ListStats struct {
	Count       int
	CurrentSize int64
	MaxSize     int64
	Sweeps      uint64
	Restores    uint64
	Offloaded   uint64
	Popped      uint64
}

// Stats snapshots the tier's counters.
func (l *List) Stats() ListStats {
	l.g.pin()
	s := ListStats{
		Count:       len(l.pool),
		CurrentSize: l.currentSize,
		MaxSize:     l.maxSize,
		Sweeps:      l.sweeps,
		Restores:    l.restores,
		Offloaded:   l.offloaded,
		Popped:      l.popped,
	}
	l.g.unpin()
	return s
}
