package chess

// Piece-square tables, one Scorepair per piece type and square, mirrored
// vertically for Black via Square.FlipVert. Non-pawn tables are additionally
// file-symmetric per §4.G. Values are centipawn-scale placeholders in the
// same spirit as the teacher engine's tables: plausible, hand-tuned-looking,
// not drawn from an external tuning run.
var pieceSquareTable [PieceTypeNB][64]Scorepair

func init() {
	initPSQ()
}

var pawnPSQ = [64]Scorepair{}
var knightPSQ = [32]Scorepair{
	S(-167, -58), S(-89, -38), S(-34, -13), S(-49, -28),
	S(-73, -31), S(-41, -20), S(-39, -26), S(-21, -13),
	S(-47, -27), S(60, -15), S(37, -10), S(65, -9),
	S(-9, -24), S(17, -19), S(19, -11), S(53, -3),
	S(-73, -26), S(-41, -13), S(72, -9), S(36, 7),
	S(-47, -22), S(60, -18), S(37, -2), S(65, 10),
	S(-50, -33), S(13, -13), S(12, -4), S(44, 3),
	S(-98, -44), S(-25, -24), S(-8, -20), S(-25, -5),
}
var bishopPSQ = [32]Scorepair{
	S(-29, -15), S(4, -3), S(-82, -13), S(-37, -4),
	S(-25, -1), S(8, 2), S(-4, -8), S(-6, -2),
	S(-8, -4), S(25, 0), S(-10, 1), S(15, 5),
	S(-11, -6), S(37, 1), S(22, 1), S(6, 8),
	S(-21, -3), S(-5, 8), S(8, 13), S(13, 9),
	S(-9, -4), S(14, 1), S(2, -4), S(-20, -3),
	S(-9, -8), S(6, -3), S(-12, -2), S(-3, -8),
	S(-18, -11), S(-13, -15), S(-31, -11), S(-43, -18),
}
var rookPSQ = [32]Scorepair{
	S(32, 13), S(42, 10), S(32, 18), S(51, 15),
	S(25, 5), S(36, 5), S(33, 4), S(60, 0),
	S(-5, 4), S(9, 5), S(28, 0), S(29, -1),
	S(-24, -2), S(-12, -3), S(4, 0), S(6, 4),
	S(-36, -7), S(-9, -5), S(-9, -5), S(-2, -5),
	S(-45, -10), S(-16, -8), S(-20, -8), S(-1, -12),
	S(-44, -12), S(-16, -5), S(-20, -7), S(-9, -8),
	S(-22, -11), S(-17, -9), S(-2, -6), S(6, -4),
}
var queenPSQ = [32]Scorepair{
	S(-28, -9), S(0, 22), S(29, 22), S(12, 27),
	S(-22, -13), S(-16, 8), S(-16, 22), S(2, 24),
	S(-9, -8), S(17, 0), S(2, 16), S(1, 24),
	S(-24, -15), S(-9, 2), S(-7, 12), S(-4, 19),
	S(-6, -20), S(-10, -5), S(3, 4), S(-9, 19),
	S(-14, -14), S(2, -16), S(-11, 4), S(-1, 1),
	S(-14, -23), S(2, -15), S(-5, -9), S(-3, -4),
	S(-1, -33), S(-18, -28), S(-9, -22), S(10, -14),
}
var kingPSQ = [32]Scorepair{
	S(-65, -74), S(23, -35), S(16, -18), S(-15, -18),
	S(29, -12), S(-1, 0), S(-20, 10), S(-7, 17),
	S(-9, -10), S(24, 2), S(2, 19), S(-16, 28),
	S(-17, -9), S(-20, 10), S(-12, 23), S(-27, 31),
	S(-47, -18), S(-9, 2), S(-15, 19), S(-43, 28),
	S(-53, -13), S(-34, 4), S(-21, 11), S(-11, 15),
	S(-54, -18), S(-21, -4), S(-11, -1), S(-28, 6),
	S(-53, -48), S(-34, -25), S(-21, -15), S(-11, -20),
}

// expandHalfBoard mirrors a 32-entry (file 0..3) per-rank table across the
// full board; file e..h mirror a..d.
func expandHalfBoard(half [32]Scorepair) [64]Scorepair {
	var full [64]Scorepair
	for rank := 0; rank < 8; rank++ {
		for file := 0; file < 4; file++ {
			v := half[rank*4+file]
			full[NewSquare(file, rank)] = v
			full[NewSquare(7-file, rank)] = v
		}
	}
	return full
}

func initPSQ() {
	for sq := A1; sq <= H8; sq++ {
		pieceSquareTable[Pawn][sq] = S(0, 0)
	}
	pieceSquareTable[Knight] = expandHalfBoard(knightPSQ)
	pieceSquareTable[Bishop] = expandHalfBoard(bishopPSQ)
	pieceSquareTable[Rook] = expandHalfBoard(rookPSQ)
	pieceSquareTable[Queen] = expandHalfBoard(queenPSQ)
	pieceSquareTable[King] = expandHalfBoard(kingPSQ)

	// Pawns: encourage central advances and discourage doubling via file bias.
	for sq := A1; sq <= H8; sq++ {
		r, f := sq.Rank(), sq.File()
		center := 3 - abs(f-3)*1
		advance := r * r
		pieceSquareTable[Pawn][sq] = S(int16(center*2+advance), int16(advance*2))
	}

	// Fold each piece's material value into its entries so the board's
	// incremental PSQ score carries material as well as placement.
	for pt := Pawn; pt <= Queen; pt++ {
		v := int16(PieceValue[pt])
		for sq := A1; sq <= H8; sq++ {
			pieceSquareTable[pt][sq] += S(v, v)
		}
	}
}

// pieceSquareValue returns the piece-square term for p on sq from p's own
// side's point of view; callers negate it for Black pieces when summing
// into a White-POV score. Black pieces are looked up on the vertically
// mirrored square so the table itself only needs to encode White's
// perspective.
func pieceSquareValue(p Piece, sq Square) Scorepair {
	if p.Color() == Black {
		sq = sq.FlipVert()
	}
	return pieceSquareTable[p.Type()][sq]
}
