package search

import "github.com/hailam/corvid/internal/chess"

// correctionTable is a gravity-updated, hash-indexed adjustment table:
// new = old + (bonus-old)/16, bonus clamped to ±256 and the stored value
// clamped to ±16000. Grounded on the teacher's correction.go.
type correctionTable [65536]int16

func (t *correctionTable) get(key uint64) int {
	return int(t[key&0xFFFF])
}

func (t *correctionTable) update(key uint64, bonus int) {
	if bonus > 256 {
		bonus = 256
	} else if bonus < -256 {
		bonus = -256
	}
	idx := key & 0xFFFF
	old := int(t[idx])
	newVal := old + (bonus-old)/16
	if newVal > 16000 {
		newVal = 16000
	} else if newVal < -16000 {
		newVal = -16000
	}
	t[idx] = int16(newVal)
}

func (t *correctionTable) clear() {
	for i := range t {
		t[i] = 0
	}
}

func (t *correctionTable) age() {
	for i := range t {
		t[i] /= 2
	}
}

// CorrectionHistory splits the static-eval correction signal into pawn,
// minor-piece, and per-color non-pawn buckets instead of one flat table, per
// §4.H's "pawn/minor/per-color-nonpawn, bounded" description. The teacher's
// correction.go keys a single table off the full position hash; here pawn
// structure is keyed by the king-pawn key, the minor-piece bucket by the
// material key (piece counts correlate strongly enough with minor-piece
// placement errors to serve as a stand-in for a dedicated minor-piece key,
// which the board does not currently expose), and the non-pawn buckets by
// the board key salted per side to move.
type CorrectionHistory struct {
	pawn    correctionTable
	minor   correctionTable
	nonPawn [chess.ColorNB]correctionTable
}

// NewCorrectionHistory creates an empty correction history.
func NewCorrectionHistory() *CorrectionHistory {
	return &CorrectionHistory{}
}

// Get returns the combined correction to add to the static evaluation.
func (ch *CorrectionHistory) Get(b *chess.Board) int {
	st := b.Top()
	us := b.SideToMove()
	return ch.pawn.get(st.KingPawnKey) +
		ch.minor.get(st.MaterialKey) +
		ch.nonPawn[us].get(st.BoardKey)
}

// Update records a correction based on the gap between the search result and
// the static evaluation, scaled by depth (§4.H gravity update).
func (ch *CorrectionHistory) Update(b *chess.Board, searchScore, staticEval, depth int) {
	if depth < 1 {
		return
	}
	diff := searchScore - staticEval
	bonus := diff * depth / 8

	st := b.Top()
	us := b.SideToMove()
	ch.pawn.update(st.KingPawnKey, bonus)
	ch.minor.update(st.MaterialKey, bonus)
	ch.nonPawn[us].update(st.BoardKey, bonus)
}

// Clear resets every bucket.
func (ch *CorrectionHistory) Clear() {
	ch.pawn.clear()
	ch.minor.clear()
	ch.nonPawn[chess.White].clear()
	ch.nonPawn[chess.Black].clear()
}

// Age halves every bucket between searches.
func (ch *CorrectionHistory) Age() {
	ch.pawn.age()
	ch.minor.age()
	ch.nonPawn[chess.White].age()
	ch.nonPawn[chess.Black].age()
}
