package accrs

import "log/slog"

// Pop evicts low-popularity generations from this comp tier until
// bytesNeeded additional bytes fit.
//
// The caller must be the writer. Buffers compressed longest ago carry the
// lowest popularity (generations advance once per sweep), so scanning from
// the lowest observed popularity upward yields approximate FIFO. Reports
// [ErrGeneric] when the budget is unachievable.
func (l *List) pop(bytesNeeded int64) error {
	if bytesNeeded > l.maxSize {
		return ErrGeneric
	}
	lowest := MaxPopularity
	for _, b := range l.pool {
		if p := int(b.popularity.Load()); p < lowest {
			lowest = p
		}
	}
	var evicted int
	for bytesNeeded > l.maxSize-l.currentSize {
		if lowest > MaxPopularity {
			return ErrGeneric
		}
		for i := 0; i < len(l.pool); i++ {
			if int(l.pool[i].popularity.Load()) != lowest {
				continue
			}
			l.remove(l.pool[i].ID)
			evicted++
			if bytesNeeded <= l.maxSize-l.currentSize {
				break
			}
			i--
		}
		lowest++
	}
	if evicted > 0 {
		l.popped += uint64(evicted)
		slog.Debug("pop evicted buffers", "evicted", evicted, "needed", bytesNeeded)
	}
	return nil
}
