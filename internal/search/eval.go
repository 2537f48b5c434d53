package search

import (
	"github.com/hailam/corvid/internal/chess"
)

// Phase weights and bounds for the middlegame/endgame taper (§4.G step 4).
const (
	knightPhase  = 1
	bishopPhase  = 1
	rookPhase    = 2
	queenPhase   = 4
	totalPhase   = 4*knightPhase + 4*bishopPhase + 4*rookPhase + 2*queenPhase
)

var mobilityWeight = [chess.PieceTypeNB]chess.Scorepair{
	chess.Knight: chess.S(4, 3),
	chess.Bishop: chess.S(5, 4),
	chess.Rook:   chess.S(2, 4),
	chess.Queen:  chess.S(1, 2),
}

var passedPawnBonus = [8]chess.Scorepair{
	chess.S(0, 0), chess.S(5, 10), chess.S(10, 20), chess.S(20, 40),
	chess.S(40, 70), chess.S(70, 120), chess.S(120, 200), chess.S(0, 0),
}

const bishopPairBonusMg, bishopPairBonusEg = 30, 50
const rookOpenFileMg, rookOpenFileEg = 20, 10
const rookSemiOpenMg, rookSemiOpenEg = 10, 5
const tempoBonus = 10

var safetyWeight = [chess.PieceTypeNB]int{0, 0, 2, 2, 3, 5, 0}

// Threat tables, one per attacking piece type, indexed by the threatened
// piece's type (Pawn..King). Grounded on original_source/src/sources/
// evaluate.c's PawnThreats/KnightThreats/BishopThreats/RookThreats/
// QueenThreats Scorepair tables.
var pawnThreats = [6]chess.Scorepair{
	chess.S(0, 0), chess.S(10, 24), chess.S(56, 42), chess.S(56, 51), chess.S(66, 23), chess.S(0, 0),
}
var knightThreats = [6]chess.Scorepair{
	chess.S(2, 18), chess.S(0, 0), chess.S(32, 23), chess.S(52, 15), chess.S(41, -16), chess.S(25, 24),
}
var bishopThreats = [6]chess.Scorepair{
	chess.S(1, 20), chess.S(27, 30), chess.S(0, 0), chess.S(39, 22), chess.S(52, 66), chess.S(30, 27),
}
var rookThreats = [6]chess.Scorepair{
	chess.S(4, 21), chess.S(22, 27), chess.S(27, 28), chess.S(0, 0), chess.S(52, 11), chess.S(47, 25),
}
var queenThreats = [6]chess.Scorepair{
	chess.S(1, 22), chess.S(5, 19), chess.S(6, 31), chess.S(28, 11), chess.S(0, 0), chess.S(41, 23),
}

var hangingPawn = chess.S(13, 52)

// initiative is a flat bonus for the side to move, accounting for the
// practical edge of being the one choosing the next move in imbalanced
// positions (§4.G step 3). Grounded on evaluate.c's Initiative constant.
var initiative = chess.S(24, 32)

// Evaluate returns the static evaluation of b from the side-to-move's point
// of view (§4.G). Pawn/king-pawn terms are served from kpCache when given.
func Evaluate(b *chess.Board, kpCache *KingPawnCache) int {
	if s, ok := kpkScore(b); ok {
		return s
	}
	if s, ok := kxkScore(b); ok {
		return s
	}

	sp := b.PSQScore()
	sp += mobilityScore(b)
	sp += bishopPairScore(b)
	sp += rookFileScore(b)

	var passed chess.Scorepair
	if kpCache != nil {
		if v, ok := kpCache.Probe(b.Top().KingPawnKey); ok {
			passed = v
		} else {
			passed = passedPawnScore(b)
			kpCache.Store(b.Top().KingPawnKey, passed)
		}
	} else {
		passed = passedPawnScore(b)
	}
	sp += passed
	sp += kingSafetyScore(b)
	sp += threatScore(b)

	if b.SideToMove() == chess.White {
		sp += initiative
	} else {
		sp -= initiative
	}

	mg, eg := int(sp.MG()), int(sp.EG())
	eg = scaleEndgame(b, eg)

	phase := gamePhase(b)
	score := (mg*phase + eg*(totalPhase-phase)) / totalPhase

	score += tempoBonus
	if b.SideToMove() == chess.Black {
		score = -score
	}
	return score
}

// gamePhase returns a value in [0,totalPhase], totalPhase at the start
// position and falling toward 0 as material is traded off.
func gamePhase(b *chess.Board) int {
	phase := b.PiecesByType(chess.Knight).PopCount() * knightPhase
	phase += b.PiecesByType(chess.Bishop).PopCount() * bishopPhase
	phase += b.PiecesByType(chess.Rook).PopCount() * rookPhase
	phase += b.PiecesByType(chess.Queen).PopCount() * queenPhase
	if phase > totalPhase {
		phase = totalPhase
	}
	return phase
}

// EvaluateMaterial is a cheap evaluation from the side-to-move's point of
// view: the midgame half of the board's incremental material+PSQ score,
// without any of Evaluate's other terms.
func EvaluateMaterial(b *chess.Board) int {
	score := int(b.PSQScore().MG())
	if b.SideToMove() == chess.Black {
		score = -score
	}
	return score
}

func slidingAttacks(pt chess.PieceType, sq chess.Square, occ chess.Bitboard) chess.Bitboard {
	switch pt {
	case chess.Knight:
		return chess.KnightAttacks(sq)
	case chess.Bishop:
		return chess.BishopAttacks(sq, occ)
	case chess.Rook:
		return chess.RookAttacks(sq, occ)
	case chess.Queen:
		return chess.QueenAttacks(sq, occ)
	}
	return 0
}

func mobilityScore(b *chess.Board) chess.Scorepair {
	var sp chess.Scorepair
	occ := b.Occupied()
	for _, c := range [2]chess.Color{chess.White, chess.Black} {
		for pt := chess.Knight; pt <= chess.Queen; pt++ {
			bb := b.Pieces(c, pt)
			for bb != 0 {
				sq := bb.PopLSB()
				attacks := slidingAttacks(pt, sq, occ) &^ b.Pieces(c, chess.Pawn)
				n := int16(attacks.PopCount())
				w := mobilityWeight[pt]
				delta := chess.S(w.MG()*n, w.EG()*n)
				if c == chess.Black {
					delta = delta.Negate()
				}
				sp += delta
			}
		}
	}
	return sp
}

func bishopPairScore(b *chess.Board) chess.Scorepair {
	var sp chess.Scorepair
	if b.Pieces(chess.White, chess.Bishop).PopCount() >= 2 {
		sp += chess.S(bishopPairBonusMg, bishopPairBonusEg)
	}
	if b.Pieces(chess.Black, chess.Bishop).PopCount() >= 2 {
		sp -= chess.S(bishopPairBonusMg, bishopPairBonusEg)
	}
	return sp
}

func rookFileScore(b *chess.Board) chess.Scorepair {
	var sp chess.Scorepair
	for _, c := range [2]chess.Color{chess.White, chess.Black} {
		them := c.Flip()
		rooks := b.Pieces(c, chess.Rook)
		for rooks != 0 {
			sq := rooks.PopLSB()
			fileBB := chess.FileMask[sq.File()]
			ownPawns := fileBB & b.Pieces(c, chess.Pawn)
			enemyPawns := fileBB & b.Pieces(them, chess.Pawn)
			var term chess.Scorepair
			switch {
			case ownPawns == 0 && enemyPawns == 0:
				term = chess.S(rookOpenFileMg, rookOpenFileEg)
			case ownPawns == 0:
				term = chess.S(rookSemiOpenMg, rookSemiOpenEg)
			default:
				continue
			}
			if c == chess.Black {
				term = term.Negate()
			}
			sp += term
		}
	}
	return sp
}

func passedPawnScore(b *chess.Board) chess.Scorepair {
	var sp chess.Scorepair
	for _, c := range [2]chess.Color{chess.White, chess.Black} {
		them := c.Flip()
		pawns := b.Pieces(c, chess.Pawn)
		for pawns != 0 {
			sq := pawns.PopLSB()
			if chess.PassedPawnSpan(c, sq)&b.Pieces(them, chess.Pawn) != 0 {
				continue
			}
			rank := sq.RelativeRank(c)
			bonus := passedPawnBonus[rank]
			if c == chess.Black {
				bonus = bonus.Negate()
			}
			sp += bonus
		}
	}
	return sp
}

// kingSafetyScore weights attackers of the zone around each king, scaling
// the midgame term quadratically and the endgame term linearly (§4.G step 3).
func kingSafetyScore(b *chess.Board) chess.Scorepair {
	var sp chess.Scorepair
	occ := b.Occupied()
	for _, c := range [2]chess.Color{chess.White, chess.Black} {
		them := c.Flip()
		ksq := b.KingSquare(c)
		zone := chess.KingAttacksBB(ksq) | chess.SquareBB(ksq)
		units := 0
		for pt := chess.Knight; pt <= chess.Queen; pt++ {
			bb := b.Pieces(them, pt)
			for bb != 0 {
				sq := bb.PopLSB()
				if slidingAttacks(pt, sq, occ)&zone != 0 {
					units += safetyWeight[pt]
				}
			}
		}
		mg := -(units * units) / 24
		eg := -units / 4
		term := chess.S(int16(mg), int16(eg))
		if c == chess.Black {
			term = term.Negate()
		}
		sp += term
	}
	return sp
}

// threatScore rewards pieces that attack an enemy piece of a type their own
// value doesn't already justify risking, plus a separate bonus for enemy
// pawns left hanging (attacked and undefended). Grounded on original_source/
// src/sources/evaluate.c's evaluate_threats (§4.G step 3).
func threatScore(b *chess.Board) chess.Scorepair {
	var sp chess.Scorepair
	occ := b.Occupied()

	for _, c := range [2]chess.Color{chess.White, chess.Black} {
		them := c.Flip()
		theirPieces := b.Pieces(them, chess.Pawn) |
			b.Pieces(them, chess.Knight) | b.Pieces(them, chess.Bishop) |
			b.Pieces(them, chess.Rook) | b.Pieces(them, chess.Queen)

		var attackedByPawn, attackedByKnight, attackedByBishop, attackedByRook, attackedByQueen chess.Bitboard
		var allAttacked chess.Bitboard

		pawns := b.Pieces(c, chess.Pawn)
		for pawns != 0 {
			sq := pawns.PopLSB()
			attackedByPawn |= chess.PawnAttacks(sq, c)
		}
		knights := b.Pieces(c, chess.Knight)
		for knights != 0 {
			sq := knights.PopLSB()
			attackedByKnight |= chess.KnightAttacks(sq)
		}
		bishops := b.Pieces(c, chess.Bishop)
		for bishops != 0 {
			sq := bishops.PopLSB()
			attackedByBishop |= chess.BishopAttacks(sq, occ)
		}
		rooks := b.Pieces(c, chess.Rook)
		for rooks != 0 {
			sq := rooks.PopLSB()
			attackedByRook |= chess.RookAttacks(sq, occ)
		}
		queens := b.Pieces(c, chess.Queen)
		for queens != 0 {
			sq := queens.PopLSB()
			attackedByQueen |= chess.QueenAttacks(sq, occ)
		}
		allAttacked = attackedByPawn | attackedByKnight | attackedByBishop | attackedByRook | attackedByQueen

		var term chess.Scorepair
		term += threatenedBonus(b, theirPieces&attackedByPawn, pawnThreats)
		term += threatenedBonus(b, theirPieces&attackedByKnight, knightThreats)
		term += threatenedBonus(b, theirPieces&attackedByBishop, bishopThreats)
		term += threatenedBonus(b, theirPieces&attackedByRook, rookThreats)
		term += threatenedBonus(b, theirPieces&attackedByQueen, queenThreats)

		theirAttacked := allAttackedBy(b, them, occ)
		hanging := b.Pieces(them, chess.Pawn) &^ theirAttacked & allAttacked
		if n := hanging.PopCount(); n > 0 {
			term += chess.S(hangingPawn.MG()*int16(n), hangingPawn.EG()*int16(n))
		}

		if c == chess.Black {
			term = term.Negate()
		}
		sp += term
	}
	return sp
}

// allAttackedBy returns every square attacked by any piece of color c.
func allAttackedBy(b *chess.Board, c chess.Color, occ chess.Bitboard) chess.Bitboard {
	var bb chess.Bitboard
	pawns := b.Pieces(c, chess.Pawn)
	for pawns != 0 {
		bb |= chess.PawnAttacks(pawns.PopLSB(), c)
	}
	for pt := chess.Knight; pt <= chess.Queen; pt++ {
		pieces := b.Pieces(c, pt)
		for pieces != 0 {
			bb |= slidingAttacks(pt, pieces.PopLSB(), occ)
		}
	}
	king := b.KingSquare(c)
	bb |= chess.KingAttacksBB(king)
	return bb
}

// threatenedBonus sums table[victimType-Pawn] for every square set in
// threatened, reading the piece actually standing there to classify it.
func threatenedBonus(b *chess.Board, threatened chess.Bitboard, table [6]chess.Scorepair) chess.Scorepair {
	var sp chess.Scorepair
	for threatened != 0 {
		sq := threatened.PopLSB()
		victim := b.PieceAt(sq).Type()
		if victim < chess.Pawn || victim > chess.King {
			continue
		}
		sp += table[victim-chess.Pawn]
	}
	return sp
}

// scaleEndgame applies an endgame scale factor in [0,256] to eg, damping
// drawish pawnless advantages and opposite-colored-bishop endings (§4.G
// step 5). The specialized per-material-pattern scale functions (KBP*K,
// KRPKR, etc.) are a documented simplification; see DESIGN.md.
func scaleEndgame(b *chess.Board, eg int) int {
	strong := chess.White
	if eg < 0 {
		strong = chess.Black
	}

	strongPawns := b.Pieces(strong, chess.Pawn).PopCount()
	if strongPawns == 0 && !b.HasNonPawnMaterial(strong) {
		return 0
	}
	if strongPawns == 0 {
		return eg * 64 / 256
	}
	if oppositeColoredBishops(b) {
		scale := 64 + 8*strongPawns
		if scale > 256 {
			scale = 256
		}
		return eg * scale / 256
	}

	scale := 177 + 13*strongPawns
	if scale > 256 {
		scale = 256
	}
	return eg * scale / 256
}

func oppositeColoredBishops(b *chess.Board) bool {
	wb := b.Pieces(chess.White, chess.Bishop)
	bb := b.Pieces(chess.Black, chess.Bishop)
	if wb.PopCount() != 1 || bb.PopCount() != 1 {
		return false
	}
	wSq, bSq := wb.LSB(), bb.LSB()
	return (wSq.File()+wSq.Rank())%2 != (bSq.File()+bSq.Rank())%2
}

// kxkScore handles lone-king endings directly: drive the bare king to a
// corner and reward proximity of the attacking king (§4.G step 2).
func kxkScore(b *chess.Board) (int, bool) {
	hasNoMinorMajor := func(c chess.Color) bool {
		return b.Pieces(c, chess.Knight)|b.Pieces(c, chess.Bishop)|
			b.Pieces(c, chess.Rook)|b.Pieces(c, chess.Queen) == 0
	}
	whiteBare := hasNoMinorMajor(chess.White) && b.Pieces(chess.White, chess.Pawn) == 0
	blackBare := hasNoMinorMajor(chess.Black) && b.Pieces(chess.Black, chess.Pawn) == 0
	if whiteBare == blackBare {
		return 0, false
	}

	strong, weak := chess.Black, chess.White
	if blackBare {
		strong, weak = chess.White, chess.Black
	}
	if !b.HasNonPawnMaterial(strong) && b.Pieces(strong, chess.Pawn) == 0 {
		return 0, false
	}

	material := 0
	for pt := chess.Pawn; pt <= chess.Queen; pt++ {
		material += chess.PieceValue[pt] * b.Pieces(strong, pt).PopCount()
	}

	weakKsq := b.KingSquare(weak)
	strongKsq := b.KingSquare(strong)
	score := material + 10*(7-cornerDistance(weakKsq)) + 4*(14-chebyshev(weakKsq, strongKsq))
	if strong == chess.Black {
		score = -score
	}
	if b.SideToMove() == chess.Black {
		score = -score
	}
	return score, true
}

func cornerDistance(sq chess.Square) int {
	f, r := sq.File(), sq.Rank()
	df, dr := f, r
	if df > 7-f {
		df = 7 - f
	}
	if dr > 7-r {
		dr = 7 - r
	}
	if df < dr {
		return df
	}
	return dr
}

func chebyshev(a, b chess.Square) int {
	df := a.File() - b.File()
	if df < 0 {
		df = -df
	}
	dr := a.Rank() - b.Rank()
	if dr < 0 {
		dr = -dr
	}
	if df > dr {
		return df
	}
	return dr
}
