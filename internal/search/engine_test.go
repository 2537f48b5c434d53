package search

import (
	"testing"
	"time"

	"github.com/hailam/corvid/internal/chess"
)

func mustStartBoard() *chess.Board {
	b, err := chess.FromFEN(chess.StartFEN, false)
	if err != nil {
		panic(err)
	}
	return b
}

func TestMultiPV(t *testing.T) {
	b := mustStartBoard()
	pool := NewEngine(16)

	limits := UCILimits{
		Depth:    4,
		MoveTime: 2 * time.Second,
	}

	results := pool.SearchMultiPV(b, limits, 3)

	if len(results) < 2 {
		t.Fatalf("Expected at least 2 PVs, got %d", len(results))
	}

	if results[0].Move == results[1].Move {
		t.Errorf("First two PVs have same move: %s", results[0].Move.String())
	}

	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("PV %d has higher score than PV %d (%d > %d)",
				i+1, i, results[i].Score, results[i-1].Score)
		}
	}

	t.Logf("Multi-PV results:")
	for i, r := range results {
		t.Logf("  PV %d: %s (score: %d, depth: %d)", i+1, r.Move.String(), r.Score, r.Depth)
	}
}

func TestSearchBasic(t *testing.T) {
	b := mustStartBoard()
	pool := NewEngine(16)
	pool.SetDifficulty(Easy)

	result := pool.Search(b, DifficultySettings[Easy])
	if result.Move == chess.NoMove {
		t.Error("Search returned NoMove for starting position")
	}
	t.Logf("Best move: %s", result.Move.String())
}

// TestConcurrentSearchRace stress-tests parallel search for data races.
// Run with: GOMAXPROCS=8 go test -race -run TestConcurrentSearchRace ./internal/search -v
func TestConcurrentSearchRace(t *testing.T) {
	pool := NewEngine(16)

	iterations := 10
	if testing.Short() {
		iterations = 3
	}

	b := mustStartBoard()
	for i := 0; i < iterations; i++ {
		limits := UCILimits{
			Depth:    6,
			MoveTime: 500 * time.Millisecond,
		}

		result := pool.SearchWithUCILimits(b, limits, 4)
		if result.Move == chess.NoMove {
			t.Errorf("Iteration %d: Search returned NoMove for starting position", i)
		}

		var err error
		if i%2 == 0 {
			b, err = chess.FromFEN("rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2", false)
		} else {
			b, err = chess.FromFEN("rnbqkbnr/ppp1pppp/8/3p4/3P4/8/PPP1PPPP/RNBQKBNR w KQkq d6 0 2", false)
		}
		if err != nil {
			t.Fatalf("Iteration %d: failed to parse FEN: %v", i, err)
		}
	}

	t.Logf("Completed %d concurrent search iterations without race condition", iterations)
}

// TestConcurrentSearchMultiplePositions searches several distinct positions
// with one pool, exercising the shared tables across successive searches.
func TestConcurrentSearchMultiplePositions(t *testing.T) {
	pool := NewEngine(16)

	positions := []string{
		chess.StartFEN,
		"r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R b KQkq - 3 3", // Italian Game
		"8/8/8/4k3/8/4K3/4P3/8 w - - 0 1",                                  // KP endgame
	}

	for i, fen := range positions {
		b, err := chess.FromFEN(fen, false)
		if err != nil {
			t.Fatalf("Failed to parse position %d: %v", i, err)
		}

		limits := UCILimits{
			Depth:    5,
			MoveTime: 300 * time.Millisecond,
		}

		result := pool.SearchWithUCILimits(b, limits, 4)
		if result.Move == chess.NoMove {
			if !b.InCheck() || b.GenerateLegal().Len() > 0 {
				t.Errorf("Position %d: Search returned NoMove", i)
			}
		} else {
			t.Logf("Position %d: best move = %s", i, result.Move.String())
		}
	}
}

func TestKingPawnCache(t *testing.T) {
	kpc := NewKingPawnCache(1)

	b := mustStartBoard()
	key := b.Top().KingPawnKey

	if _, found := kpc.Probe(key); found {
		t.Error("Expected cache miss on first probe")
	}

	want := chess.S(-15, -20)
	kpc.Store(key, want)

	got, found := kpc.Probe(key)
	if !found {
		t.Error("Expected cache hit after store")
	}
	if got != want {
		t.Errorf("Wrong value: got %v, want %v", got, want)
	}

	oldKey := key
	m := chess.NewMove(chess.E2, chess.E4)
	b.DoMove(m, b.MoveGivesCheck(m))
	if b.Top().KingPawnKey == oldKey {
		t.Error("KingPawnKey should change when a pawn moves")
	}

	b.UndoMove(m)
	if b.Top().KingPawnKey != oldKey {
		t.Error("KingPawnKey should be restored on undo")
	}

	t.Logf("KingPawnKey: %016x", oldKey)
}

func TestScoreToString(t *testing.T) {
	if got := ScoreToString(57); got != "cp 57" {
		t.Errorf("ScoreToString(57) = %q", got)
	}
	if got := ScoreToString(MateScore - 3); got != "mate 2" {
		t.Errorf("ScoreToString(MateScore-3) = %q", got)
	}
	if got := ScoreToString(-(MateScore - 4)); got != "mate -2" {
		t.Errorf("ScoreToString(-(MateScore-4)) = %q", got)
	}
}

func TestPerft(t *testing.T) {
	pool := NewEngine(1)
	b := mustStartBoard()

	cases := []struct {
		depth int
		want  int64
	}{
		{1, 20},
		{2, 400},
		{3, 8902},
	}
	for _, c := range cases {
		if got := pool.Perft(b, c.depth); got != c.want {
			t.Errorf("Perft(%d) = %d, want %d", c.depth, got, c.want)
		}
	}
}
