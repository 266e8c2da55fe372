package pyramid

import "sync/atomic"

// ProductionState tracks how many tile addresses a run has visited against
// the run's total, for progress reporting. The fraction it emits is
// monotonically increasing in [0, 1].
//
// ProductionState is safe for concurrent use.
type ProductionState struct {
	completed atomic.Int64
	total     int64
	notify    func(float64)
}

func newProductionState(total int64, notify func(float64)) *ProductionState {
	if total < 1 {
		total = 1
	}
	return &ProductionState{total: total, notify: notify}
}

// tileCompleted records one visited tile address — whether or not a raster
// was produced for it — and emits the updated fraction.
func (ps *ProductionState) tileCompleted() {
	done := ps.completed.Add(1)
	if ps.notify != nil {
		ps.notify(ps.fraction(done))
	}
}

// Completed returns the number of tile addresses visited so far.
func (ps *ProductionState) Completed() int64 { return ps.completed.Load() }

// Total returns the total number of tile addresses the run will visit.
func (ps *ProductionState) Total() int64 { return ps.total }

// Fraction returns completed/total clamped to [0, 1].
func (ps *ProductionState) Fraction() float64 {
	return ps.fraction(ps.completed.Load())
}

func (ps *ProductionState) fraction(done int64) float64 {
	f := float64(done) / float64(ps.total)
	if f > 1 {
		f = 1
	}
	return f
}
