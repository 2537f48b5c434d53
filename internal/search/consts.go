package search

import "github.com/hailam/corvid/internal/chess"

// Search-wide score and ply bounds, aliased from the chess package's Score
// constants so transposition-table mate adjustment and search code agree on
// one scale (§4.F, §4.J).
const (
	Infinity  = int(chess.InfScore)
	MateScore = int(chess.Mate)
	MaxPly    = chess.MaxPlies
)
