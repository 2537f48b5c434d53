package chess

import "testing"

// perft counts leaf nodes at depth, the standard move-generation correctness
// check: every legal move is played and unplayed, recursively.
func perft(b *Board, depth int) int64 {
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
		gives := b.MoveGivesCheck(m)
		b.DoMove(m, gives)
		nodes += perft(b, depth-1)
		b.UndoMove(m)
	}
	return nodes
}

func TestPerftStartingPosition(t *testing.T) {
	tests := []struct {
		depth    int
		expected int64
	}{
		{1, 20},
		{2, 400},
		{3, 8902},
		{4, 197281},
		{5, 4865609},
	}
	for _, tc := range tests {
		b, err := FromFEN(StartFEN, false)
		if err != nil {
			t.Fatalf("from_fen: %v", err)
		}
		got := perft(b, tc.depth)
		if got != tc.expected {
			t.Errorf("perft(%d) = %d, want %d", tc.depth, got, tc.expected)
		}
	}
}

func TestPerftStartingPositionDepth6(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping depth-6 perft in short mode")
	}
	b, err := FromFEN(StartFEN, false)
	if err != nil {
		t.Fatalf("from_fen: %v", err)
	}
	const want = 119060324
	if got := perft(b, 6); got != want {
		t.Errorf("perft(6) = %d, want %d", got, want)
	}
}

// TestPerftKiwipete exercises castling, en passant and promotions together.
func TestPerftKiwipete(t *testing.T) {
	const fen = "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1"
	tests := []struct {
		depth    int
		expected int64
	}{
		{1, 48},
		{2, 2039},
		{3, 97862},
		{4, 4085603},
	}
	for _, tc := range tests {
		b, err := FromFEN(fen, false)
		if err != nil {
			t.Fatalf("from_fen: %v", err)
		}
		got := perft(b, tc.depth)
		if got != tc.expected {
			t.Errorf("perft(%d) = %d, want %d", tc.depth, got, tc.expected)
		}
	}
}

func TestPerftKiwipeteDepth5(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping depth-5 perft in short mode")
	}
	const fen = "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1"
	b, err := FromFEN(fen, false)
	if err != nil {
		t.Fatalf("from_fen: %v", err)
	}
	const want = 193690690
	if got := perft(b, 5); got != want {
		t.Errorf("perft(5) = %d, want %d", got, want)
	}
}

func TestPerftPosition3(t *testing.T) {
	const fen = "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1"
	tests := []struct {
		depth    int
		expected int64
	}{
		{1, 14},
		{2, 191},
		{3, 2812},
		{4, 43238},
	}
	for _, tc := range tests {
		b, err := FromFEN(fen, false)
		if err != nil {
			t.Fatalf("from_fen: %v", err)
		}
		got := perft(b, tc.depth)
		if got != tc.expected {
			t.Errorf("perft(%d) = %d, want %d", tc.depth, got, tc.expected)
		}
	}
}

// TestPerftEnPassantPin covers the horizontal-pin edge case: a pawn that
// could capture en passant but would expose its own king to a rook on the
// vacated rank must not generate that capture.
func TestPerftEnPassantPin(t *testing.T) {
	const fen = "8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1"
	b, err := FromFEN(fen, false)
	if err != nil {
		t.Fatalf("from_fen: %v", err)
	}

	moves := b.GenerateLegal()
	for i := 0; i < moves.Len(); i++ {
		if m := moves.Get(i); m.IsEnPassant() {
			t.Errorf("en passant move %v should be illegal (horizontal pin)", m)
		}
	}

	tests := []struct {
		depth    int
		expected int64
	}{
		{1, 6},
		{2, 94},
	}
	for _, tc := range tests {
		b, err := FromFEN(fen, false)
		if err != nil {
			t.Fatalf("from_fen: %v", err)
		}
		got := perft(b, tc.depth)
		if got != tc.expected {
			t.Errorf("perft(%d) = %d, want %d", tc.depth, got, tc.expected)
		}
	}
}

// TestChess960CastlingRoundTrip exercises a non-standard starting array
// where castling is king-captures-rook, per §8.
func TestChess960CastlingRoundTrip(t *testing.T) {
	const fen = "rk2r3/pppppppp/8/8/8/8/PPPPPPPP/RK2R3 w KQkq - 0 1"
	b, err := FromFEN(fen, true)
	if err != nil {
		t.Fatalf("from_fen: %v", err)
	}
	m, err := ParseMove("b1e1", b)
	if err != nil {
		t.Fatalf("parse_move: %v", err)
	}
	if !m.IsCastling() {
		t.Fatalf("expected %v to parse as a castling move", m)
	}
	if !b.MoveIsLegal(m) {
		t.Fatalf("expected %v to be legal", m)
	}
	before := b.RecomputeZobrist()
	gives := b.MoveGivesCheck(m)
	b.DoMove(m, gives)
	if b.RecomputeZobrist() != b.Top().BoardKey {
		t.Error("board_key diverged from recompute_zobrist after castling")
	}
	b.UndoMove(m)
	if b.RecomputeZobrist() != before {
		t.Error("undo_move did not restore the pre-castling key")
	}
}
