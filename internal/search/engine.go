package search

import (
	"context"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hailam/corvid/internal/chess"
)

// NumWorkers defaults to the number of logical CPUs, matching §4.L's Lazy
// SMP sizing.
var NumWorkers = runtime.GOMAXPROCS(0)

// SearchInfo is emitted to the UCI frontend once per completed iteration.
type SearchInfo struct {
	Depth    int
	SelDepth int
	Score    int
	Nodes    uint64
	Time     time.Duration
	PV       []chess.Move
	HashFull int
	MultiPV  int
}

// SearchLimits bounds one WorkerPool.Search call.
type SearchLimits struct {
	Depth    int
	Nodes    uint64
	MoveTime time.Duration
	Infinite bool
	MultiPV  int
}

// SearchResult is the outcome of a search: a move with its score and PV.
type SearchResult struct {
	Move  chess.Move
	Score int
	PV    []chess.Move
	Depth int
}

// Difficulty selects a canned set of search limits for non-UCI callers
// (e.g. a "play vs computer" frontend).
type Difficulty int

const (
	Easy Difficulty = iota
	Medium
	Hard
)

// DifficultySettings maps Difficulty to SearchLimits.
var DifficultySettings = map[Difficulty]SearchLimits{
	Easy:   {Depth: 3, MoveTime: 500 * time.Millisecond},
	Medium: {Depth: 7, MoveTime: 1 * time.Second},
	Hard:   {Depth: 40, MoveTime: 3 * time.Second},
}

// startDepthOffset staggers Lazy SMP helper workers' starting depths so
// they diverge from the main worker's search tree sooner (§4.L), grounded
// on the teacher's engine.go workerSearch staggering.
func startDepthOffset(workerID int) int {
	switch {
	case workerID == 0:
		return 0
	case workerID <= 2:
		return 1
	case workerID <= 5:
		return 2
	default:
		return 3
	}
}

// WorkerPool owns the structures Lazy SMP workers share (transposition
// table, pawn cache, correction history, move-ordering history) and drives
// iterative deepening across them with golang.org/x/sync/errgroup managing
// start/stop/error propagation, replacing the teacher's raw WaitGroup-based
// goroutine fan-out (§4.L, SPEC_FULL.md DOMAIN STACK).
type WorkerPool struct {
	tt       *TranspositionTable
	kpCache  *KingPawnCache
	corrHist *CorrectionHistory
	shared   *SharedHistory
	stopFlag atomic.Bool

	difficulty Difficulty
	timeMgr    *TimeManager

	lastNodes atomic.Uint64

	OnInfo func(SearchInfo)
}

// TotalNodesLastSearch returns the aggregate node count across all workers
// from the most recently completed SearchWithUCILimits/Search call.
func (p *WorkerPool) TotalNodesLastSearch() uint64 { return p.lastNodes.Load() }

// NewEngine allocates a WorkerPool with a transposition table of ttSizeMB
// megabytes. The name is kept for familiarity with the teacher's API; the
// type is a pool of Lazy SMP workers, not a single-threaded engine.
func NewEngine(ttSizeMB int) *WorkerPool {
	return &WorkerPool{
		tt:       NewTranspositionTable(ttSizeMB),
		kpCache:  NewKingPawnCache(4),
		corrHist: NewCorrectionHistory(),
		shared:   NewSharedHistory(),
		timeMgr:  NewTimeManager(),
	}
}

// SetDifficulty selects canned search limits for non-UCI callers.
func (p *WorkerPool) SetDifficulty(d Difficulty) { p.difficulty = d }

// Resize reallocates the transposition table to sizeMB megabytes.
func (p *WorkerPool) Resize(sizeMB int) { p.tt.Resize(sizeMB) }

// Clear empties every shared table between games.
func (p *WorkerPool) Clear() {
	p.tt.Clear()
	p.kpCache.Clear()
	p.corrHist.Clear()
	p.shared.Clear()
}

// Stop requests every worker to abandon its current search as soon as it
// next checks the stop flag.
func (p *WorkerPool) Stop() { p.stopFlag.Store(true) }

// Evaluate returns the static evaluation of b, for the `eval`/debug
// commands.
func (p *WorkerPool) Evaluate(b *chess.Board) int { return Evaluate(b, p.kpCache) }

// Perft counts leaf nodes at depth, for the `go perft` command.
func (p *WorkerPool) Perft(b *chess.Board, depth int) int64 {
	if depth == 0 {
		return 1
	}
	moves := b.GenerateLegal()
	if depth == 1 {
		return int64(moves.Len())
	}
	var nodes int64
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		b.DoMove(m, b.MoveGivesCheck(m))
		nodes += p.Perft(b, depth-1)
		b.UndoMove(m)
	}
	return nodes
}

// SearchWithUCILimits runs iterative deepening with Lazy SMP workers until
// limits are met or Stop is called, reporting each completed iteration
// through OnInfo. It returns the best move found. excludeFromRoot, if
// non-empty, restricts every worker's root move choice to moves not in the
// list (used to implement UCI `searchmoves` by excluding its complement).
func (p *WorkerPool) SearchWithUCILimits(b *chess.Board, limits UCILimits, numWorkers int, excludeFromRoot ...chess.Move) SearchResult {
	p.stopFlag.Store(false)
	p.tt.NewSearch()

	if numWorkers < 1 {
		numWorkers = NumWorkers
	}

	p.timeMgr.Init(limits, b.SideToMove(), b.Ply())

	watchdogDone := make(chan struct{})
	if !limits.Infinite {
		timer := time.NewTimer(p.timeMgr.MaximumTime())
		go func() {
			select {
			case <-timer.C:
				p.stopFlag.Store(true)
			case <-watchdogDone:
				timer.Stop()
			}
		}()
		defer close(watchdogDone)
	}

	workers := make([]*Worker, numWorkers)
	for i := range workers {
		workers[i] = NewWorker(i, b.Clone(), p.tt, p.kpCache, p.corrHist, p.shared, &p.stopFlag)
		if len(excludeFromRoot) > 0 {
			workers[i].SetExcludedMoves(excludeFromRoot)
		}
	}

	maxDepth := limits.Depth
	if maxDepth == 0 || maxDepth > MaxPly-1 {
		maxDepth = MaxPly - 1
	}

	var best SearchResult
	stability := 0
	lastBestMove := chess.NoMove
	prevScore := 0

	for depth := 1; depth <= maxDepth; depth++ {
		if p.stopFlag.Load() {
			break
		}

		ctx, cancel := context.WithCancel(context.Background())
		g, _ := errgroup.WithContext(ctx)
		results := make([]SearchResult, numWorkers)

		for i, w := range workers {
			i, w := i, w
			g.Go(func() error {
				d := depth + startDepthOffset(w.id)
				if d > maxDepth {
					d = maxDepth
				}
				alpha, beta := -Infinity, Infinity
				if d > 4 {
					window := 25
					alpha = best.Score - window
					beta = best.Score + window
				}
				score := w.SearchDepth(d, alpha, beta)
				if score <= alpha || score >= beta {
					score = w.SearchDepth(d, -Infinity, Infinity)
				}
				move := chess.NoMove
				if line := w.GetPV(); len(line) > 0 {
					move = line[0]
				}
				results[i] = SearchResult{Move: move, Score: score, PV: w.GetPV(), Depth: d}
				return nil
			})
		}
		_ = g.Wait()
		cancel()

		if p.stopFlag.Load() {
			break
		}

		main := results[0]
		if main.Move == chess.NoMove {
			break
		}
		best = main

		if main.Move == lastBestMove {
			stability++
		} else {
			stability = 0
			lastBestMove = main.Move
		}
		p.timeMgr.AdjustForStability(stability)
		if depth > 1 {
			p.timeMgr.AdjustForSwing(prevScore - best.Score)
		}
		prevScore = best.Score

		if p.OnInfo != nil {
			p.OnInfo(SearchInfo{
				Depth:    depth,
				Score:    best.Score,
				Nodes:    p.totalNodes(workers),
				Time:     p.timeMgr.Elapsed(),
				PV:       best.PV,
				HashFull: p.tt.HashFull(),
			})
		}

		if limits.Mate > 0 {
			if mateIn := matePlies(best.Score); mateIn > 0 && mateIn <= limits.Mate {
				break
			}
		} else if abs(best.Score) >= MateScore-MaxPly {
			break
		}
		if !limits.Infinite && limits.MoveTime == 0 && limits.Depth == 0 && limits.Nodes == 0 {
			if p.timeMgr.PastOptimum() {
				break
			}
		}
		if p.timeMgr.ShouldStop() {
			break
		}
		if limits.Nodes > 0 && p.totalNodes(workers) >= limits.Nodes {
			break
		}
	}

	p.lastNodes.Store(p.totalNodes(workers))
	return best
}

// Search runs a search bounded by limits.Depth/MoveTime/Nodes (or
// unbounded when limits.Infinite), for non-UCI callers (difficulty-based
// play).
func (p *WorkerPool) Search(b *chess.Board, limits SearchLimits) SearchResult {
	return p.SearchWithUCILimits(b, UCILimits{
		MoveTime: limits.MoveTime,
		Depth:    limits.Depth,
		Nodes:    limits.Nodes,
		Infinite: limits.Infinite,
	}, NumWorkers)
}

// matePlies returns the number of full moves to a proven mate (matching
// UCI's "mate N" units), or 0 if score isn't a mate score, for the `go mate
// <n>` early-stop condition.
func matePlies(score int) int {
	if score >= MateScore-MaxPly {
		return (MateScore - score + 1) / 2
	}
	if score <= -(MateScore - MaxPly) {
		return (MateScore + score + 1) / 2
	}
	return 0
}

func (p *WorkerPool) totalNodes(workers []*Worker) uint64 {
	var total uint64
	for _, w := range workers {
		total += w.Nodes()
	}
	return total
}

// SearchMultiPV runs MultiPV independent single-threaded passes, excluding
// previously found root moves (plus any caller-supplied excludeFromRoot, for
// UCI `searchmoves`) from later passes, matching the teacher's
// exclusion-based approach to k-best search. Each completed line is reported
// through OnInfo with its MultiPV index, so it is reachable as real UCI
// `info multipv N ...` output rather than only from tests. The returned
// lines are sorted by score, best first; the OnInfo reports keep the order
// in which the passes completed.
func (p *WorkerPool) SearchMultiPV(b *chess.Board, limits UCILimits, multiPV int, excludeFromRoot ...chess.Move) []SearchResult {
	p.stopFlag.Store(false)
	p.tt.NewSearch()
	p.timeMgr.Init(limits, b.SideToMove(), b.Ply())

	watchdogDone := make(chan struct{})
	if !limits.Infinite {
		timer := time.NewTimer(p.timeMgr.MaximumTime())
		go func() {
			select {
			case <-timer.C:
				p.stopFlag.Store(true)
			case <-watchdogDone:
				timer.Stop()
			}
		}()
		defer close(watchdogDone)
	}

	maxDepth := limits.Depth
	if maxDepth == 0 {
		maxDepth = 12
	}

	excluded := append([]chess.Move{}, excludeFromRoot...)
	var results []SearchResult
	var totalNodes uint64
	for i := 0; i < multiPV; i++ {
		w := NewWorker(0, b.Clone(), p.tt, p.kpCache, p.corrHist, p.shared, &p.stopFlag)
		w.SetExcludedMoves(excluded)
		var score int
		for d := 1; d <= maxDepth; d++ {
			score = w.SearchDepth(d, -Infinity, Infinity)
			if p.stopFlag.Load() || p.timeMgr.ShouldStop() {
				break
			}
		}
		totalNodes += w.Nodes()
		line := w.GetPV()
		move := chess.NoMove
		if len(line) > 0 {
			move = line[0]
		}
		if move == chess.NoMove {
			break
		}
		result := SearchResult{Move: move, Score: score, PV: line, Depth: maxDepth}
		results = append(results, result)
		excluded = append(excluded, move)

		if p.OnInfo != nil {
			p.OnInfo(SearchInfo{
				Depth:    maxDepth,
				Score:    score,
				Nodes:    totalNodes,
				Time:     p.timeMgr.Elapsed(),
				PV:       line,
				HashFull: p.tt.HashFull(),
				MultiPV:  i + 1,
			})
		}

		if p.stopFlag.Load() || p.timeMgr.ShouldStop() {
			break
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	p.lastNodes.Store(totalNodes)
	return results
}

// ScoreToString renders a centipawn or mate score in UCI `info score` text.
func ScoreToString(score int) string {
	if score >= MateScore-MaxPly {
		pliesToMate := MateScore - score
		return "mate " + itoa((pliesToMate+1)/2)
	}
	if score <= -(MateScore - MaxPly) {
		pliesToMate := MateScore + score
		return "mate -" + itoa((pliesToMate+1)/2)
	}
	return "cp " + itoa(score)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
