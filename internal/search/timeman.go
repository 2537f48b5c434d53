package search

import (
	"math"
	"time"

	"github.com/hailam/corvid/internal/chess"
)

// UCILimits carries the `go` command's time-control parameters (§4.K, §6).
type UCILimits struct {
	Time      [2]time.Duration
	Inc       [2]time.Duration
	MovesToGo int
	MoveTime  time.Duration
	Depth     int
	Nodes     uint64
	Mate      int
	Infinite  bool
	Ponder    bool
}

// stabilityMultiplier scales the optimum time by how many consecutive
// iterations have agreed on the best move (§4.K), indexed by
// min(stability,4).
var stabilityMultiplier = [5]float64{2.5, 1.2, 0.9, 0.8, 0.75}

// TimeManager allocates optimum/maximum search time from a UCILimits,
// reconciled against §4.K's explicit tournament-time formulas rather than
// the teacher's simpler heuristic: average = time/mtg+inc, maximal =
// time/mtg^0.4+inc, then scaled by best-move stability and score swing.
type TimeManager struct {
	average        time.Duration
	optimumTime    time.Duration
	maximumTime    time.Duration
	startTime      time.Time
	stabilityScale float64
	swingScale     float64
}

// NewTimeManager creates an unconfigured time manager.
func NewTimeManager() *TimeManager {
	return &TimeManager{}
}

// Init computes the optimum/maximum time budget for a search starting at
// game ply ply for color us.
func (tm *TimeManager) Init(limits UCILimits, us chess.Color, ply int) {
	tm.startTime = time.Now()
	tm.stabilityScale = 1
	tm.swingScale = 1

	if limits.MoveTime > 0 {
		tm.average = limits.MoveTime
		tm.optimumTime = limits.MoveTime
		tm.maximumTime = limits.MoveTime
		return
	}
	if limits.Infinite || limits.Depth > 0 || limits.Nodes > 0 || limits.Mate > 0 {
		tm.average = time.Hour
		tm.optimumTime = time.Hour
		tm.maximumTime = time.Hour
		return
	}
	if limits.Time[us] == 0 {
		tm.average = time.Hour
		tm.optimumTime = time.Hour
		tm.maximumTime = time.Hour
		return
	}

	timeLeft := limits.Time[us]
	inc := limits.Inc[us]

	mtg := limits.MovesToGo
	if mtg == 0 {
		mtg = 50 - ply/4
		if mtg < 10 {
			mtg = 10
		}
		if mtg > 50 {
			mtg = 50
		}
	}

	average := timeLeft/time.Duration(mtg) + inc
	maximal := time.Duration(float64(timeLeft)/math.Pow(float64(mtg), 0.4)) + inc

	safetyMargin := timeLeft * 95 / 100
	if maximal > safetyMargin {
		maximal = safetyMargin
	}
	if average > maximal {
		average = maximal
	}

	tm.average = average
	tm.optimumTime = average
	tm.maximumTime = maximal

	if tm.optimumTime < 10*time.Millisecond {
		tm.optimumTime = 10 * time.Millisecond
	}
	if tm.maximumTime < 50*time.Millisecond {
		tm.maximumTime = 50 * time.Millisecond
	}
	tm.average = tm.optimumTime
}

// Elapsed returns the time elapsed since the search started.
func (tm *TimeManager) Elapsed() time.Duration { return time.Since(tm.startTime) }

// OptimumTime returns the current target time for this move.
func (tm *TimeManager) OptimumTime() time.Duration { return tm.optimumTime }

// MaximumTime returns the hard cap for this move.
func (tm *TimeManager) MaximumTime() time.Duration { return tm.maximumTime }

// ShouldStop reports whether the maximum time budget has been exhausted.
func (tm *TimeManager) ShouldStop() bool { return tm.Elapsed() >= tm.maximumTime }

// PastOptimum reports whether the optimum time budget has been exhausted.
func (tm *TimeManager) PastOptimum() bool { return tm.Elapsed() >= tm.optimumTime }

// recompute derives optimumTime fresh from the base average time and the
// current stability/swing scales, matching original_source/src/sources/
// timeman.c's tm->optimalTime = min(tm->maximalTime, tm->averageTime*scale)
// pattern: each adjustment replaces the scale rather than compounding onto
// whatever optimumTime already held, so repeated calls within one search
// don't geometrically shrink or grow the budget.
func (tm *TimeManager) recompute() {
	opt := time.Duration(float64(tm.average) * tm.stabilityScale * tm.swingScale)
	if opt > tm.maximumTime {
		opt = tm.maximumTime
	}
	tm.optimumTime = opt
}

// AdjustForStability rescales the optimum time by stabilityMultiplier,
// indexed by how many consecutive iterations agreed on the best move.
func (tm *TimeManager) AdjustForStability(stability int) {
	if stability > 4 {
		stability = 4
	}
	tm.stabilityScale = stabilityMultiplier[stability]
	tm.recompute()
}

// AdjustForSwing rescales the optimum time by 2^(clamp(delta,-100,100)/100),
// per §4.K's score-swing factor: a score that dropped sharply from the
// previous iteration buys more time to confirm or refute the drop.
func (tm *TimeManager) AdjustForSwing(delta int) {
	if delta > 100 {
		delta = 100
	}
	if delta < -100 {
		delta = -100
	}
	tm.swingScale = math.Pow(2, float64(delta)/100)
	tm.recompute()
}

// AdjustForInstability increases the optimum time when the best move keeps
// changing between iterations.
func (tm *TimeManager) AdjustForInstability(changes int) {
	switch {
	case changes >= 4:
		tm.optimumTime = tm.optimumTime * 200 / 100
	case changes >= 2:
		tm.optimumTime = tm.optimumTime * 150 / 100
	default:
		return
	}
	if tm.optimumTime > tm.maximumTime {
		tm.optimumTime = tm.maximumTime
	}
}
