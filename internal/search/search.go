package search

import "github.com/hailam/corvid/internal/chess"

// PVTable stores the principal variation discovered at each ply of one
// search tree, triangular-array style (§4.J).
type PVTable struct {
	length [MaxPly]int
	moves  [MaxPly][MaxPly]chess.Move
}

func (pv *PVTable) update(ply int, m chess.Move) {
	pv.moves[ply][ply] = m
	for next := ply + 1; next < pv.length[ply+1]; next++ {
		pv.moves[ply][next] = pv.moves[ply+1][next]
	}
	pv.length[ply] = pv.length[ply+1]
	if pv.length[ply] <= ply {
		pv.length[ply] = ply + 1
	}
}

// Line returns the principal variation starting from the root.
func (pv *PVTable) Line() []chess.Move {
	n := pv.length[0]
	line := make([]chess.Move, n)
	copy(line, pv.moves[0][:n])
	return line
}
