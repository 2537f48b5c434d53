package search

import "github.com/hailam/corvid/internal/chess"

// Move ordering priorities (§4.I staged move picker).
const (
	TTMoveScore     = 10000000
	GoodCaptureBase = 1000000
	KillerScore1    = 900000
	KillerScore2    = 800000
	CounterMoveBase = KillerScore2 - 10000
	BadCaptureBase  = -100000
)

// mvvLva scores captures by victim value first, attacker value second:
// score = victimRow[attacker]. Grounded on the teacher's ordering.go table.
var mvvLva = [chess.PieceTypeNB][chess.PieceTypeNB]int{
	chess.Pawn:   {0, 15, 14, 14, 13, 12, 11},
	chess.Knight: {0, 25, 24, 24, 23, 22, 21},
	chess.Bishop: {0, 35, 34, 34, 33, 32, 31},
	chess.Rook:   {0, 45, 44, 44, 43, 42, 41},
	chess.Queen:  {0, 55, 54, 54, 53, 52, 51},
}

// PieceToHistory is a continuation-history slice: the bonus earned by
// playing (piece,to) given a specific move some plies back, per §4.H's
// "i16[piece][to] arrays, one per prior ply at offsets 1/2/4".
type PieceToHistory [chess.PieceNB][64]int32

func (t *PieceToHistory) get(piece chess.Piece, to chess.Square) int {
	return int(t[piece][to])
}

func (t *PieceToHistory) update(piece chess.Piece, to chess.Square, bonus int) {
	v := &t[piece][to]
	*v += int32(bonus) - *v*abs32(int32(bonus))/400000
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func (t *PieceToHistory) clear() {
	for i := range t {
		for j := range t[i] {
			t[i][j] = 0
		}
	}
}

// SharedHistory holds the history tables Lazy SMP workers read and update
// concurrently without synchronization (§4.L): like Stockfish, a lost update
// to a heuristic score only costs move-ordering quality, never correctness,
// so the benign race is accepted rather than paid for with a mutex. Neither
// the teacher's worker.go/engine.go nor any other file in the package
// defines this type despite referencing it; it is authored here from the
// spec's continuation-history description.
type SharedHistory struct {
	main         [64][64]int32
	capture      [chess.PieceNB][64][chess.PieceTypeNB]int32
	continuation [chess.PieceNB][64]PieceToHistory
}

// NewSharedHistory allocates a zeroed shared history table.
func NewSharedHistory() *SharedHistory {
	return &SharedHistory{}
}

func (sh *SharedHistory) updateMain(from, to chess.Square, bonus int) {
	v := &sh.main[from][to]
	*v += int32(bonus) - *v*abs32(int32(bonus))/400000
}

func (sh *SharedHistory) getMain(from, to chess.Square) int {
	return int(sh.main[from][to])
}

func (sh *SharedHistory) updateCapture(attacker chess.Piece, to chess.Square, victim chess.PieceType, bonus int) {
	v := &sh.capture[attacker][to][victim]
	*v += int32(bonus) - *v*abs32(int32(bonus))/400000
}

func (sh *SharedHistory) getCapture(attacker chess.Piece, to chess.Square, victim chess.PieceType) int {
	return int(sh.capture[attacker][to][victim])
}

// ContinuationTable returns the continuation-history slice to score a move
// given the piece and destination of the move some plies earlier.
func (sh *SharedHistory) ContinuationTable(piece chess.Piece, to chess.Square) *PieceToHistory {
	return &sh.continuation[piece][to]
}

// Clear zeroes every shared table. Called once between searches by the pool
// owner, never concurrently with in-flight workers.
func (sh *SharedHistory) Clear() {
	for i := range sh.main {
		for j := range sh.main[i] {
			sh.main[i][j] = 0
		}
	}
	for i := range sh.capture {
		for j := range sh.capture[i] {
			for k := range sh.capture[i][j] {
				sh.capture[i][j][k] = 0
			}
		}
	}
	for i := range sh.continuation {
		for j := range sh.continuation[i] {
			sh.continuation[i][j].clear()
		}
	}
}

// Age halves every shared table's magnitude, called between searches of the
// same game instead of Clear so long-term move-ordering knowledge survives.
func (sh *SharedHistory) Age() {
	for i := range sh.main {
		for j := range sh.main[i] {
			sh.main[i][j] /= 2
		}
	}
	for i := range sh.capture {
		for j := range sh.capture[i] {
			for k := range sh.capture[i][j] {
				sh.capture[i][j][k] /= 2
			}
		}
	}
	for i := range sh.continuation {
		for j := range sh.continuation[i] {
			t := &sh.continuation[i][j]
			for p := range t {
				for s := range t[p] {
					t[p][s] /= 2
				}
			}
		}
	}
}

// MoveOrderer holds the per-worker move-ordering state: killers and counter
// moves, which are only meaningful relative to one worker's own search
// stack, plus a pointer into the pool-wide SharedHistory for scoring.
// Grounded on the teacher's ordering.go, split along the shared/local line
// §4.L draws for Lazy SMP workers.
type MoveOrderer struct {
	shared       *SharedHistory
	killers      [MaxPly][2]chess.Move
	counterMoves [chess.PieceNB][64]chess.Move
}

// NewMoveOrderer creates a move orderer backed by shared history tables.
func NewMoveOrderer(shared *SharedHistory) *MoveOrderer {
	return &MoveOrderer{shared: shared}
}

// Clear resets per-worker killer/counter-move state for a new search.
func (mo *MoveOrderer) Clear() {
	for i := range mo.killers {
		mo.killers[i][0] = chess.NoMove
		mo.killers[i][1] = chess.NoMove
	}
	for i := range mo.counterMoves {
		for j := range mo.counterMoves[i] {
			mo.counterMoves[i][j] = chess.NoMove
		}
	}
}

func isCapture(b *chess.Board, m chess.Move) bool {
	if m.IsCastling() {
		return false
	}
	if m.IsEnPassant() {
		return true
	}
	return b.PieceAt(m.To()) != chess.NoPiece
}

// ScoreMoves assigns ordering scores to every move in the list.
func (mo *MoveOrderer) ScoreMoves(b *chess.Board, moves *chess.MoveList, ply int, ttMove chess.Move) []int {
	scores := make([]int, moves.Len())
	for i := 0; i < moves.Len(); i++ {
		scores[i] = mo.scoreMove(b, moves.Get(i), ply, ttMove)
	}
	return scores
}

// ScoreMovesWithCounter additionally folds in counter-move and continuation
// history bonuses relative to the previous move played.
func (mo *MoveOrderer) ScoreMovesWithCounter(b *chess.Board, moves *chess.MoveList, ply int, ttMove, prevMove chess.Move, contTables []*PieceToHistory) []int {
	scores := make([]int, moves.Len())
	counterMove := mo.GetCounterMove(prevMove, b)

	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		scores[i] = mo.scoreMove(b, m, ply, ttMove)

		if m == counterMove && scores[i] < KillerScore2 {
			scores[i] = CounterMoveBase
		}

		if !isCapture(b, m) && !m.IsPromotion() && m != ttMove {
			movePiece := b.PieceAt(m.From())
			stat := 0
			for _, ct := range contTables {
				if ct != nil {
					stat += ct.get(movePiece, m.To())
				}
			}
			scores[i] += stat / 2
		}
	}
	return scores
}

func (mo *MoveOrderer) scoreMove(b *chess.Board, m chess.Move, ply int, ttMove chess.Move) int {
	if m == ttMove {
		return TTMoveScore
	}

	if isCapture(b, m) {
		attackerPiece := b.PieceAt(m.From())
		attacker := attackerPiece.Type()
		var victim chess.PieceType
		if m.IsEnPassant() {
			victim = chess.Pawn
		} else {
			victim = b.PieceAt(m.To()).Type()
		}
		if victim == chess.NoPieceType || attacker == chess.NoPieceType {
			return GoodCaptureBase
		}

		// §4.I stages noisy moves into good (SEE>=0) and bad (SEE<0) buckets so
		// a losing capture sorts below killers/counters/quiets instead of
		// ahead of them.
		if !b.SeeAbove(m, 0) {
			score := BadCaptureBase + mvvLva[victim][attacker]*1000
			score += mo.shared.getCapture(attackerPiece, m.To(), victim) / 4
			return score
		}

		score := GoodCaptureBase + mvvLva[victim][attacker]*1000
		score += mo.shared.getCapture(attackerPiece, m.To(), victim) / 4
		if chess.PieceValue[attacker] < chess.PieceValue[victim] {
			score += 10000
		}
		return score
	}

	if m.IsPromotion() {
		return GoodCaptureBase - 1000 + int(m.Promotion())*100
	}

	if ply < MaxPly {
		if m == mo.killers[ply][0] {
			return KillerScore1
		}
		if m == mo.killers[ply][1] {
			return KillerScore2
		}
	}

	return mo.shared.getMain(m.From(), m.To())
}

// SortMoves fully orders moves by score, descending. Used at the root where
// the full ordering is worth the extra comparisons.
func SortMoves(moves *chess.MoveList, scores []int) {
	s := moves.Slice()
	n := len(s)
	for i := 0; i < n-1; i++ {
		best := i
		for j := i + 1; j < n; j++ {
			if scores[j] > scores[best] {
				best = j
			}
		}
		if best != i {
			s[i], s[best] = s[best], s[i]
			scores[i], scores[best] = scores[best], scores[i]
		}
	}
}

// PickMove selects the best-scoring move at or after index and swaps it into
// index, giving lazy selection-sort ordering so the move loop need not sort
// moves it prunes before reaching them (§4.I).
func PickMove(moves *chess.MoveList, scores []int, index int) {
	s := moves.Slice()
	best := index
	for j := index + 1; j < len(s); j++ {
		if scores[j] > scores[best] {
			best = j
		}
	}
	if best != index {
		s[index], s[best] = s[best], s[index]
		scores[index], scores[best] = scores[best], scores[index]
	}
}

// UpdateKillers records a quiet move that caused a beta cutoff at ply.
func (mo *MoveOrderer) UpdateKillers(m chess.Move, ply int) {
	if ply >= MaxPly || mo.killers[ply][0] == m {
		return
	}
	mo.killers[ply][1] = mo.killers[ply][0]
	mo.killers[ply][0] = m
}

// UpdateHistory applies a depth-squared bonus or penalty to the shared main
// history table for a quiet move.
func (mo *MoveOrderer) UpdateHistory(m chess.Move, depth int, isGood bool) {
	bonus := depth * depth
	if !isGood {
		bonus = -bonus
	}
	mo.shared.updateMain(m.From(), m.To(), bonus)
}

// GetHistoryScore returns the shared main-history score for a move, used for
// history pruning in the move loop.
func (mo *MoveOrderer) GetHistoryScore(m chess.Move) int {
	return mo.shared.getMain(m.From(), m.To())
}

// UpdateCounterMove records counterMove as the worker-local reply to
// prevMove.
func (mo *MoveOrderer) UpdateCounterMove(prevMove, counterMove chess.Move, b *chess.Board) {
	if prevMove == chess.NoMove {
		return
	}
	piece := b.PieceAt(prevMove.To())
	if piece == chess.NoPiece {
		return
	}
	mo.counterMoves[piece][prevMove.To()] = counterMove
}

// GetCounterMove returns the recorded reply to prevMove, if any.
func (mo *MoveOrderer) GetCounterMove(prevMove chess.Move, b *chess.Board) chess.Move {
	if prevMove == chess.NoMove {
		return chess.NoMove
	}
	piece := b.PieceAt(prevMove.To())
	if piece == chess.NoPiece {
		return chess.NoMove
	}
	return mo.counterMoves[piece][prevMove.To()]
}

// UpdateCaptureHistory applies a depth-squared bonus or penalty to the
// shared capture history table.
func (mo *MoveOrderer) UpdateCaptureHistory(attacker chess.Piece, to chess.Square, victim chess.PieceType, depth int, isGood bool) {
	if attacker == chess.NoPiece || victim >= chess.King {
		return
	}
	bonus := depth * depth
	if !isGood {
		bonus = -bonus
	}
	mo.shared.updateCapture(attacker, to, victim, bonus)
}

// GetCaptureHistoryScore returns the shared capture-history score.
func (mo *MoveOrderer) GetCaptureHistoryScore(attacker chess.Piece, to chess.Square, victim chess.PieceType) int {
	if attacker == chess.NoPiece || victim >= chess.King {
		return 0
	}
	return mo.shared.getCapture(attacker, to, victim)
}

// UpdateContinuationHistory applies a depth-squared bonus or penalty to the
// continuation-history slice keyed by (prevPiece,prevTo) for (piece,to).
func (mo *MoveOrderer) UpdateContinuationHistory(table *PieceToHistory, piece chess.Piece, to chess.Square, depth int, isGood bool) {
	if table == nil {
		return
	}
	bonus := depth * depth
	if !isGood {
		bonus = -bonus
	}
	table.update(piece, to, bonus)
}

// GetContinuationHistoryTable returns the shared continuation-history slice
// for replies to the move (piece,to) played some plies back.
func (mo *MoveOrderer) GetContinuationHistoryTable(piece chess.Piece, to chess.Square) *PieceToHistory {
	return mo.shared.ContinuationTable(piece, to)
}
