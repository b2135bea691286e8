package accrs

import "log/slog"

// Balance redistributes the shared memory budget between this raw tier and
// its comp tier.
//
// Ratio is the percent of the shared budget assigned to this tier, in
// [1, 99]. Whichever tier shrank below its current size is drained: the comp
// tier by popping, this tier by a single sweep sized to the overage.
func (l *List) Balance(ratio int) error {
	if l.offloadTo == nil || l.offloadTo == l {
		return ErrListCannotBalance
	}
	if ratio < 1 || ratio > 99 {
		return ErrBadArgs
	}
	l.g.lock()
	defer l.g.unlock()

	off := l.offloadTo
	total := l.maxSize + off.maxSize
	l.maxSize = total * int64(ratio) / 100
	off.maxSize = total - l.maxSize
	slog.Debug("rebalanced tier budgets", "ratio", ratio, "raw", l.maxSize, "comp", off.maxSize)

	if off.currentSize > off.maxSize {
		if err := off.pop(off.currentSize - off.maxSize); err != nil {
			return ErrListCannotBalance
		}
	}
	if l.currentSize > l.maxSize {
		orig := l.sweepGoal
		goal := 100 - int(100*l.maxSize/l.currentSize) + 1
		if goal >= 99 {
			return ErrListCannotBalance
		}
		l.sweepGoal = goal
		l.sweep()
		l.sweepGoal = orig
		if l.currentSize > l.maxSize {
			return ErrListCannotBalance
		}
	}
	return nil
}
