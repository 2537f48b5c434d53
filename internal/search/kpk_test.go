package search

import (
	"testing"

	"github.com/hailam/corvid/internal/chess"
	"github.com/stretchr/testify/require"
)

// TestKPKKeySquareWin checks a textbook King+Pawn endgame: White's king has
// reached the key square directly in front of its pawn (e6, pawn on e5, Black
// king confined to e8) with Black to move. Standard endgame theory calls
// this a win for White regardless of whose move it is once the key square
// is held; kpkScore should agree and, since Black is to move, report a
// strongly unfavorable score for the side to move.
func TestKPKKeySquareWin(t *testing.T) {
	b, err := chess.FromFEN("4k3/8/4K3/4P3/8/8/8/8 b - - 0 1", false)
	require.NoError(t, err)

	score, ok := kpkScore(b)
	require.True(t, ok, "KPK pattern should be recognized")
	require.Less(t, score, -300, "key-square win for White should score very unfavorably for Black to move")
}

// TestKPKInvalidPositionNeverWins checks the structural invariant that an
// index built from overlapping king squares is always classified invalid
// (kpkInvalid is never reclassified during the retrograde sweep, so its win
// bit is never set).
func TestKPKInvalidPositionNeverWins(t *testing.T) {
	for _, stm := range [2]chess.Color{chess.White, chess.Black} {
		require.False(t, kpkIsWinning(chess.D4, chess.D4, chess.A5, stm),
			"overlapping king squares must never be classified as winning")
	}
}

// TestKPKScoreIgnoresNonKPKMaterial checks kpkScore declines positions that
// are not a bare-king-vs-lone-pawn pattern, leaving them for the generic
// evaluator.
func TestKPKScoreIgnoresNonKPKMaterial(t *testing.T) {
	b, err := chess.FromFEN(chess.StartFEN, false)
	require.NoError(t, err)
	_, ok := kpkScore(b)
	require.False(t, ok, "the start position is not a KPK pattern")

	bare, err := chess.FromFEN("4k3/8/8/8/8/8/8/4K3 w - - 0 1", false)
	require.NoError(t, err)
	_, ok = kpkScore(bare)
	require.False(t, ok, "a bare king vs bare king ending has no pawn to probe")
}
