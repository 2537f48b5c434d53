package chess

import "testing"

func TestCheckmate(t *testing.T) {
	b, err := FromFEN("R6k/6pp/8/8/8/8/8/K7 b - - 0 1", false)
	if err != nil {
		t.Fatal("error parsing FEN:", err)
	}

	t.Log("Checkers bitboard:", b.Checkers())
	t.Log("InCheck:", b.InCheck())

	legal := b.GenerateLegal()
	t.Log("Black legal moves:", legal.Len())
	for i := 0; i < legal.Len(); i++ {
		t.Log("  Move:", legal.Get(i))
	}

	if !b.IsCheckmate() {
		t.Error("expected checkmate but got false")
	}
}

func TestNotCheckmate(t *testing.T) {
	b, err := FromFEN("6Rk/8/8/8/8/8/8/K7 b - - 0 1", false)
	if err != nil {
		t.Fatal("error parsing FEN:", err)
	}

	t.Log("Checkers bitboard:", b.Checkers())
	t.Log("InCheck:", b.InCheck())

	if b.IsCheckmate() {
		t.Error("expected not checkmate but got true")
	}
}

func TestStalemate(t *testing.T) {
	// Classic stalemate: Black king a8 has no moves, not in check.
	b, err := FromFEN("k7/8/1Q6/8/8/8/8/K7 b - - 0 1", false)
	if err != nil {
		t.Fatal("error parsing FEN:", err)
	}
	if !b.IsStalemate() {
		t.Error("expected stalemate")
	}
}
