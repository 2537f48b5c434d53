package chess

// Cuckoo-hashed table of reversible one-piece moves, used by
// GameContainsCycle to recognize an upcoming repetition cheaply instead of
// replaying the move stack move-by-move (§4.D: "compact keyed table of
// reversible (from,to) moves, 8192 slots, two hashes, collisions resolved
// by swap-insert").
//
// A non-pawn move from s1 to s2 is its own inverse: playing it twice in a
// row (by either side, with nothing else changing) returns the position to
// where it started. Its Zobrist signature is therefore
// zobrist_piece[p][s1] ^ zobrist_piece[p][s2] ^ zobrist_black_to_move,
// independent of which side played it. Two positions whose keys differ by
// exactly that signature are one such move apart.
const cuckooSize = 8192

var (
	cuckooKey  [cuckooSize]uint64
	cuckooMove [cuckooSize]Move
)

func init() {
	// The package's init functions run in file-name order, so zobrist.go's
	// and magic.go's have not run yet. initCuckoo needs the Zobrist keys and
	// the sliding-attack tables, so both are built here first; both builds
	// are deterministic, and their own init functions rebuild them unchanged.
	initZobrist()
	initMagics()
	initCuckoo()
}

func cuckooH1(key uint64) int { return int(key & (cuckooSize - 1)) }
func cuckooH2(key uint64) int { return int((key >> 16) & (cuckooSize - 1)) }

func initCuckoo() {
	for pt := Knight; pt <= King; pt++ {
		for c := White; c <= Black; c++ {
			piece := NewPiece(pt, c)
			for s1 := A1; s1 <= H8; s1++ {
				for s2 := s1 + 1; s2 <= H8; s2++ {
					if AttacksBB(pt, s1, 0)&SquareBB(s2) == 0 {
						continue
					}
					key := ZobristPiece(piece, s1) ^ ZobristPiece(piece, s2) ^ ZobristBlackToMove()
					move := NewMove(s1, s2)
					slot := cuckooH1(key)
					for {
						key, cuckooKey[slot] = cuckooKey[slot], key
						move, cuckooMove[slot] = cuckooMove[slot], move
						if move == NoMove {
							break
						}
						if slot == cuckooH1(key) {
							slot = cuckooH2(key)
						} else {
							slot = cuckooH1(key)
						}
					}
				}
			}
		}
	}
}

// GameContainsCycle reports whether, within the reversible-move window
// bounded by rule50/plies_since_nullmove, the position repeats via a single
// swapped move — i.e. an upcoming repetition the search can treat as a draw
// without waiting for the 3-fold counter (§4.D game_contains_cycle).
func (b *Board) GameContainsCycle(ply int) bool {
	st := b.Top()
	maxDist := int(st.Rule50)
	if int(st.PliesSinceNullmove) < maxDist {
		maxDist = int(st.PliesSinceNullmove)
	}
	if maxDist < 3 {
		return false
	}

	idx := len(b.stack) - 1
	originalKey := st.BoardKey

	for d := 3; d <= maxDist; d += 2 {
		if idx-d < 0 {
			break
		}
		other := &b.stack[idx-d]
		diff := originalKey ^ other.BoardKey

		slot := cuckooH1(diff)
		if cuckooKey[slot] != diff {
			slot = cuckooH2(diff)
			if cuckooKey[slot] != diff {
				continue
			}
		}

		move := cuckooMove[slot]
		s1, s2 := move.From(), move.To()

		if b.Occupied()&(SquareBB(s1)|SquareBB(s2)) == SquareBB(s1) {
			// Slot found, s1 occupied, s2 empty: this move is playable now,
			// so the position d plies ago is one reversible swap away.
			if ply > d {
				return true
			}
			if other.Repetition != 0 {
				return true
			}
		}
	}
	return false
}
