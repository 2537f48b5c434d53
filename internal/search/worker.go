package search

import (
	"math"
	"sync/atomic"

	"github.com/hailam/corvid/internal/chess"
)

// lmrReductions is Stockfish's logarithmic late-move-reduction table:
// 21.46*log(depth)*log(moveCount)/1024, precomputed once (§4.J).
var lmrReductions [64][64]int

func init() {
	for d := 1; d < 64; d++ {
		for m := 1; m < 64; m++ {
			lmrReductions[d][m] = int(21.46 * math.Log(float64(d)) * math.Log(float64(m)) / 1024.0)
		}
	}
}

// futilityMargin is the per-depth futility-pruning margin used in the move
// loop, indexed by remaining depth (§4.J).
var futilityMargin = [7]int{0, 200, 300, 500, 700, 900, 1100}

// SearchStack carries per-ply state negamax needs for continuation-history
// lookups and hindsight reduction decisions. Grounded on the teacher's
// worker.go Stack (Stockfish-derived).
type SearchStack struct {
	currentMove         chess.Move
	movedPiece          chess.Piece
	moveTo              chess.Square
	continuationHistory *PieceToHistory
	staticEval          int
	inCheckAtEval       bool
	statScore           int
	reduction           int
	cutoffCnt           int
}

// WorkerResult reports one worker's outcome for a completed or aborted
// iteration, consumed by the owning WorkerPool (§4.L).
type WorkerResult struct {
	WorkerID int
	Depth    int
	Score    int
	Move     chess.Move
	PV       []chess.Move
	Nodes    uint64
}

// Worker drives one Lazy SMP search thread: its own board, its own killer
// and PV state, and pointers into structures shared with every other
// worker in the pool (transposition table, pawn cache, correction history,
// main/capture/continuation history) (§4.L).
type Worker struct {
	id int

	b       *chess.Board
	orderer *MoveOrderer

	tt       *TranspositionTable
	kpCache  *KingPawnCache
	corrHist *CorrectionHistory
	shared   *SharedHistory

	stopFlag *atomic.Bool

	nodes    uint64
	selDepth int
	pv       PVTable
	stack    [MaxPly + 8]SearchStack

	excludedRoot  []chess.Move
	rootDelta     int
	avgScore      int
	optimism      [chess.ColorNB]int

	resultCh chan<- WorkerResult
}

// NewWorker creates a worker over its own board, sharing tt/pawn/correction/
// history state with the rest of the pool.
func NewWorker(id int, b *chess.Board, tt *TranspositionTable, kp *KingPawnCache, corr *CorrectionHistory, shared *SharedHistory, stop *atomic.Bool) *Worker {
	w := &Worker{
		id:       id,
		b:        b,
		tt:       tt,
		kpCache:  kp,
		corrHist: corr,
		shared:   shared,
		stopFlag: stop,
	}
	w.orderer = NewMoveOrderer(shared)
	for i := range w.stack {
		w.stack[i].continuationHistory = &PieceToHistory{}
	}
	return w
}

// Reset clears per-worker node/PV state before a new search.
func (w *Worker) Reset() {
	w.nodes = 0
	w.selDepth = 0
	w.orderer.Clear()
	w.avgScore = 0
}

// SetResultChannel wires the channel SearchDepth reports completed
// iterations on.
func (w *Worker) SetResultChannel(ch chan<- WorkerResult) { w.resultCh = ch }

// SetExcludedMoves marks root moves this worker should skip, for MultiPV.
func (w *Worker) SetExcludedMoves(moves []chess.Move) {
	w.excludedRoot = moves
}

// Nodes returns the node count searched so far.
func (w *Worker) Nodes() uint64 { return w.nodes }

// Pos returns the worker's own board.
func (w *Worker) Pos() *chess.Board { return w.b }

// GetPV returns the principal variation found by the last completed search.
func (w *Worker) GetPV() []chess.Move { return w.pv.Line() }

// UpdateAvgScore maintains a running average used for optimism shaping.
func (w *Worker) UpdateAvgScore(score int) {
	if w.avgScore == 0 {
		w.avgScore = score
		return
	}
	w.avgScore += (score - w.avgScore) / 4
}

// UpdateOptimism sets the optimism term for us from the running average
// score, per Stockfish's 142*avg/(abs(avg)+91) curve.
func (w *Worker) UpdateOptimism(us chess.Color) {
	v := 142 * w.avgScore / (abs(w.avgScore) + 91)
	w.optimism[us] = v
	w.optimism[us.Flip()] = -v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// SearchDepth runs one full-width iterative-deepening iteration at depth
// within [alpha,beta], starting from the root. The caller (WorkerPool)
// drives the aspiration-window loop across calls.
func (w *Worker) SearchDepth(depth, alpha, beta int) int {
	w.rootDelta = beta - alpha
	score := w.negamax(depth, 0, alpha, beta, false, chess.NoMove)

	if w.stopFlag.Load() {
		return score
	}

	move := chess.NoMove
	if line := w.pv.Line(); len(line) > 0 {
		move = line[0]
	}
	if move == chess.NoMove {
		if legal := w.b.GenerateLegal(); legal.Len() > 0 {
			move = legal.Get(0)
		}
	}

	if w.resultCh != nil {
		w.resultCh <- WorkerResult{
			WorkerID: w.id,
			Depth:    depth,
			Score:    score,
			Move:     move,
			PV:       w.pv.Line(),
			Nodes:    w.nodes,
		}
	}
	return score
}

func (w *Worker) isExcludedRootMove(m chess.Move) bool {
	for _, ex := range w.excludedRoot {
		if ex == m {
			return true
		}
	}
	return false
}

// negamax implements the main alpha-beta search with the pruning and
// reduction battery described by §4.J: mate-distance pruning, null-move
// pruning, reverse futility pruning, razoring, probcut/multicut, internal
// iterative reduction, futility pruning, singular/check extensions, late
// move reductions, continuation-history move-loop pruning, and PVS
// re-search. Grounded extensively on the teacher's worker.go negamax and on
// original_source/src/sources/search.c for the exact formulas and margins
// the teacher's version lacks. excludedMove isolates the verification search
// singular extension runs against the TT move (§4.J step 2: the TT key is
// XORed with the excluded move, mirroring search.c's `key ^ (excludedMove <<
// 16)`, so the verification search's result never pollutes the real entry).
// NNUE/tablebase/book hooks are removed since SPEC_FULL.md's Non-goals
// exclude them.
func (w *Worker) negamax(depth, ply int, alpha, beta int, cutNode bool, excludedMove chess.Move) int {
	pvNode := beta-alpha > 1
	w.pv.length[ply] = ply

	if ply > 0 && (w.b.GameIsDrawn(ply) || w.b.GameContainsCycle(ply)) {
		return 0
	}
	if ply >= MaxPly {
		return Evaluate(w.b, w.kpCache)
	}
	if depth <= 0 {
		return w.quiescence(ply, alpha, beta)
	}

	w.nodes++
	if w.nodes&4095 == 0 && w.stopFlag.Load() {
		return 0
	}
	if ply > w.selDepth {
		w.selDepth = ply
	}

	// Mate-distance pruning: a score more extreme than the fastest possible
	// mate from this ply can never be reached, so tighten the window to that
	// bound and cut immediately if it has already collapsed.
	if ply > 0 {
		alpha = max(alpha, -MateScore+ply)
		beta = min(beta, MateScore-ply-1)
		if alpha >= beta {
			return alpha
		}
	}

	inCheck := w.b.InCheck()
	key := w.b.Top().BoardKey
	if excludedMove != chess.NoMove {
		key ^= uint64(excludedMove) << 16
	}

	var ttMove chess.Move
	var ttHit bool
	var ttScore, ttEval int
	var ttDepth int
	var ttBound Bound
	if entry, ok := w.tt.Probe(key); ok {
		ttHit = true
		ttMove = entry.BestMove
		ttScore = AdjustScoreFromTT(entry.Score, ply)
		ttEval = int(entry.Eval)
		ttDepth = int(entry.Depth)
		ttBound = entry.bound()
		if !pvNode && ttDepth >= depth {
			switch ttBound {
			case BoundExact:
				return ttScore
			case BoundLower:
				if ttScore >= beta {
					if ttMove != chess.NoMove && !isCapture(w.b, ttMove) {
						w.orderer.UpdateHistory(ttMove, depth, true)
					}
					return ttScore
				}
			case BoundUpper:
				if ttScore <= alpha {
					return ttScore
				}
			}
		}
	}

	var staticEval int
	if inCheck {
		staticEval = -MateScore + ply
	} else if ttHit && ttEval != 0 {
		staticEval = ttEval
	} else {
		staticEval = Evaluate(w.b, w.kpCache)
	}
	if !inCheck {
		staticEval += w.corrHist.Get(w.b)
	}
	w.stack[ply].staticEval = staticEval
	w.stack[ply].inCheckAtEval = inCheck
	w.stack[ply].statScore = 0

	improving := false
	if ply >= 2 && !inCheck && !w.stack[ply-2].inCheckAtEval {
		improving = staticEval > w.stack[ply-2].staticEval
	}

	if !inCheck && !pvNode {
		// Reverse futility pruning: a static eval far above beta with no
		// tactics in sight is assumed to hold.
		if depth <= 6 {
			rfpMargin := 80 * depth
			if improving {
				rfpMargin -= 40
			}
			if staticEval-rfpMargin >= beta && abs(beta) < MateScore-MaxPly {
				return staticEval
			}
		}

		// Razoring: a static eval far below alpha drops straight to
		// quiescence rather than searching a doomed subtree.
		if depth <= 3 {
			razorMargin := 485 + 281*depth*depth
			if staticEval+razorMargin < alpha {
				score := w.quiescence(ply, alpha, beta)
				if score < alpha {
					return score
				}
			}
		}

		// Null-move pruning: if we can pass and still fail high, the
		// position is not one we need to search fully.
		if depth >= 3 && staticEval >= beta && w.b.HasNonPawnMaterial(w.b.SideToMove()) {
			r := 7 + depth/3
			if r > depth-1 {
				r = depth - 1
			}
			if r >= 1 {
				w.b.DoNullMove()
				w.stack[ply].currentMove = chess.NullMove
				nullScore := -w.negamax(depth-r, ply+1, -beta, -beta+1, !cutNode, chess.NoMove)
				w.b.UndoNullMove()
				if w.stopFlag.Load() {
					return 0
				}
				if nullScore >= beta {
					if nullScore > MateScore-MaxPly {
						nullScore = beta
					}
					return nullScore
				}
			}
		}

		// Probcut: a noisy move whose SEE already clears beta by a margin,
		// confirmed by a reduced search, lets us prune the whole node on the
		// assumption that some capture beats beta here.
		probCutBeta := beta + 140
		if ply > 0 && depth >= 6 && abs(beta) < MateScore-MaxPly &&
			!(ttHit && ttDepth >= depth-4 && ttScore < probCutBeta) {
			probSEE := probCutBeta - staticEval
			noisy := w.b.GenerateNoisy()
			pcScores := w.orderer.ScoreMoves(w.b, noisy, ply, ttMove)
			for i := 0; i < noisy.Len(); i++ {
				PickMove(noisy, pcScores, i)
				m := noisy.Get(i)
				if m == excludedMove || !w.b.SeeAbove(m, probSEE) || !w.b.MoveIsLegal(m) {
					continue
				}

				gives := w.b.MoveGivesCheck(m)
				w.stack[ply].currentMove = m
				w.b.DoMove(m, gives)
				w.nodes++
				probScore := -w.quiescence(ply+1, -probCutBeta, -probCutBeta+1)
				if probScore >= probCutBeta {
					probScore = -w.negamax(depth-4, ply+1, -probCutBeta, -probCutBeta+1, !cutNode, chess.NoMove)
				}
				w.b.UndoMove(m)

				if w.stopFlag.Load() {
					return 0
				}
				if probScore >= probCutBeta {
					w.tt.Store(key, AdjustScoreToTT(probScore, ply), int16(staticEval), uint8(depth-3), BoundLower, m)
					return probScore
				}
			}
		}
	}

	// Internal iterative reduction: nodes with no TT move to trust are
	// probably going to need a re-search anyway, so start shallower.
	if ply > 0 && ttMove == chess.NoMove && depth >= 3 {
		depth--
	}

	moves := w.b.GenerateLegal()
	if moves.Len() == 0 {
		if inCheck {
			return -MateScore + ply
		}
		return 0
	}

	var prevTables []*PieceToHistory
	for _, back := range [3]int{1, 2, 4} {
		if ply-back >= 0 {
			prevTables = append(prevTables, w.stack[ply-back].continuationHistory)
		}
	}

	var prevMove chess.Move
	if ply > 0 {
		prevMove = w.stack[ply-1].currentMove
	}
	scores := w.orderer.ScoreMovesWithCounter(w.b, moves, ply, ttMove, prevMove, prevTables)

	bestValue := -Infinity
	bestMove := chess.NoMove
	movesSearched := 0
	var quietsSearched, capturesSearched []chess.Move

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		m := moves.Get(i)
		if ply == 0 && w.isExcludedRootMove(m) {
			continue
		}
		if m == excludedMove {
			continue
		}
		capture := isCapture(w.b, m)
		movedPiece := w.b.PieceAt(m.From())

		// Late move pruning / futility pruning in the move loop: skip
		// quiet moves unlikely to matter once several candidates with
		// better ordering scores have already been tried.
		if !pvNode && !inCheck && bestValue > -MateScore+MaxPly && depth <= 6 {
			if !capture && movesSearched >= 3+depth*depth {
				continue
			}
			if !capture && depth < len(futilityMargin) && staticEval+futilityMargin[depth] <= alpha {
				continue
			}
			// Continuation-history pruning: a quiet move that has
			// historically replied badly to the last few plies' moves is
			// skipped outright at low depth.
			if !capture && depth <= 4 {
				stat := 0
				for _, ct := range prevTables {
					if ct != nil {
						stat += ct.get(movedPiece, m.To())
					}
				}
				if stat < 842-5678*(depth-1) {
					continue
				}
			}
			if capture && !w.b.SeeAbove(m, -20*depth*depth) {
				continue
			}
		}

		gives := w.b.MoveGivesCheck(m)

		// Singular extension: if the TT move is the only one that keeps the
		// score near the TT score, extend it instead of reducing it as an
		// ordinary move. A verification search failing high above beta
		// means several moves beat beta here, so cut the whole node
		// (multicut) instead of searching further.
		extension := 0
		if excludedMove == chess.NoMove && ttHit && depth >= 8 && m == ttMove &&
			ttBound == BoundLower && abs(ttScore) < MateScore-MaxPly && ttDepth >= depth-3 {
			singularBeta := ttScore - 11*depth/16
			singularDepth := depth/2 + 1
			singularScore := w.negamax(singularDepth, ply, singularBeta-1, singularBeta, cutNode, m)
			if singularScore < singularBeta {
				extension = 1
				if !pvNode && singularBeta-singularScore > 17 {
					extension = 2
				}
			} else if singularBeta >= beta {
				return singularBeta
			}
		} else if gives {
			// Check extension: a move giving check is searched one ply
			// deeper instead of being treated like an ordinary quiet move.
			extension = 1
		}

		w.stack[ply].currentMove = m
		w.stack[ply].movedPiece = movedPiece
		w.stack[ply].moveTo = m.To()
		w.stack[ply].continuationHistory = w.shared.ContinuationTable(movedPiece, m.To())

		w.b.DoMove(m, gives)
		movesSearched++

		newDepth := depth - 1 + extension
		var score int
		if movesSearched == 1 {
			score = -w.negamax(newDepth, ply+1, -beta, -alpha, false, chess.NoMove)
		} else {
			r := 0
			if depth >= 3 && movesSearched > 3 && !capture {
				d := depth
				if d > 63 {
					d = 63
				}
				mv := movesSearched
				if mv > 63 {
					mv = 63
				}
				r = lmrReductions[d][mv]
				if !improving {
					r++
				}
				if pvNode {
					r--
				}
				if cutNode {
					r++
				}
				if m == ttMove {
					r--
				}
				if r < 0 {
					r = 0
				}
				if r > newDepth-1 {
					r = newDepth - 1
				}
			}
			score = -w.negamax(newDepth-r, ply+1, -alpha-1, -alpha, true, chess.NoMove)
			if score > alpha && r > 0 {
				score = -w.negamax(newDepth, ply+1, -alpha-1, -alpha, !cutNode, chess.NoMove)
			}
			if score > alpha && score < beta {
				score = -w.negamax(newDepth, ply+1, -beta, -alpha, false, chess.NoMove)
			}
		}

		w.b.UndoMove(m)

		if w.stopFlag.Load() {
			return 0
		}

		if !capture {
			quietsSearched = append(quietsSearched, m)
		} else {
			capturesSearched = append(capturesSearched, m)
		}

		if score > bestValue {
			bestValue = score
			bestMove = m
			if score > alpha {
				alpha = score
				w.pv.update(ply, m)
				if score >= beta {
					w.stack[ply].cutoffCnt++
					break
				}
			}
		}
	}

	// Every legal move was either the excluded TT move (singular-extension
	// verification search) or pruned away: report per §4.J step 10 rather
	// than falling through with an unset bestMove.
	if movesSearched == 0 {
		switch {
		case excludedMove != chess.NoMove:
			return alpha
		case inCheck:
			return -MateScore + ply
		default:
			return 0
		}
	}

	if bestValue >= beta {
		if !isCapture(w.b, bestMove) {
			w.orderer.UpdateKillers(bestMove, ply)
			w.orderer.UpdateHistory(bestMove, depth, true)
			bmPiece := w.b.PieceAt(bestMove.From())
			for _, ct := range prevTables {
				w.orderer.UpdateContinuationHistory(ct, bmPiece, bestMove.To(), depth, true)
			}
			w.orderer.UpdateCounterMove(prevMove, bestMove, w.b)
			for _, m := range quietsSearched {
				if m != bestMove {
					w.orderer.UpdateHistory(m, depth, false)
					mPiece := w.b.PieceAt(m.From())
					for _, ct := range prevTables {
						w.orderer.UpdateContinuationHistory(ct, mPiece, m.To(), depth, false)
					}
				}
			}
		} else {
			victim := w.b.PieceAt(bestMove.To()).Type()
			w.orderer.UpdateCaptureHistory(w.b.PieceAt(bestMove.From()), bestMove.To(), victim, depth, true)
		}
		for _, m := range capturesSearched {
			if m != bestMove {
				v := w.b.PieceAt(m.To()).Type()
				w.orderer.UpdateCaptureHistory(w.b.PieceAt(m.From()), m.To(), v, depth, false)
			}
		}
	}

	if !inCheck && bestMove != chess.NoMove && !isCapture(w.b, bestMove) {
		w.corrHist.Update(w.b, bestValue, staticEval, depth)
	}

	bound := BoundUpper
	if bestValue >= beta {
		bound = BoundLower
	} else if pvNode && bestMove != chess.NoMove {
		bound = BoundExact
	}
	w.tt.Store(key, AdjustScoreToTT(bestValue, ply), int16(staticEval), uint8(depth), bound, bestMove)

	return bestValue
}

// quiescence resolves tactical sequences (captures, promotions, check
// evasions) until the position is quiet, per §4.J's qsearch description.
func (w *Worker) quiescence(ply, alpha, beta int) int {
	w.pv.length[ply] = ply
	if ply >= MaxPly {
		return Evaluate(w.b, w.kpCache)
	}
	w.nodes++
	if w.nodes&4095 == 0 && w.stopFlag.Load() {
		return 0
	}

	inCheck := w.b.InCheck()
	key := w.b.Top().BoardKey
	var ttMove chess.Move
	if entry, ok := w.tt.Probe(key); ok {
		ttScore := AdjustScoreFromTT(entry.Score, ply)
		switch entry.bound() {
		case BoundExact:
			return ttScore
		case BoundLower:
			if ttScore >= beta {
				return ttScore
			}
		case BoundUpper:
			if ttScore <= alpha {
				return ttScore
			}
		}
		ttMove = entry.BestMove
	}

	var bestValue, futilityBase int
	var moves *chess.MoveList
	if inCheck {
		bestValue = -MateScore + ply
		moves = w.b.GenerateLegal()
	} else {
		standPat := Evaluate(w.b, w.kpCache) + w.corrHist.Get(w.b)
		if standPat >= beta {
			return standPat
		}
		if standPat+975 < alpha {
			return standPat
		}
		if standPat > alpha {
			alpha = standPat
		}
		bestValue = standPat
		futilityBase = standPat + 351
		moves = w.b.GenerateNoisy()
	}

	scores := w.orderer.ScoreMoves(w.b, moves, ply, ttMove)
	bestMove := chess.NoMove

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		m := moves.Get(i)

		if !inCheck {
			if !w.b.SeeAbove(m, 0) || !w.b.MoveIsLegal(m) {
				continue
			}
			if !m.IsPromotion() && futilityBase+captureValue(w.b, m) <= alpha {
				if bestValue < futilityBase {
					bestValue = futilityBase
				}
				continue
			}
		}

		gives := w.b.MoveGivesCheck(m)
		w.b.DoMove(m, gives)
		score := -w.quiescence(ply+1, -beta, -alpha)
		w.b.UndoMove(m)

		if w.stopFlag.Load() {
			return 0
		}

		if score > bestValue {
			bestValue = score
			bestMove = m
			if score > alpha {
				alpha = score
				w.pv.update(ply, m)
				if score >= beta {
					break
				}
			}
		}
	}

	if inCheck && moves.Len() == 0 {
		return -MateScore + ply
	}

	bound := BoundUpper
	if bestValue >= beta {
		bound = BoundLower
	} else if bestMove != chess.NoMove {
		bound = BoundExact
	}
	w.tt.Store(key, AdjustScoreToTT(bestValue, ply), int16(bestValue), 0, bound, bestMove)

	return bestValue
}

func captureValue(b *chess.Board, m chess.Move) int {
	if m.IsEnPassant() {
		return chess.PieceValue[chess.Pawn]
	}
	return chess.PieceValue[b.PieceAt(m.To()).Type()]
}
