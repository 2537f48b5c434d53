package chess

// Move generation: one gives every pseudo-legal move, two filter by
// noisy/quiet for move-picker staging, and GenerateLegal filters through
// MoveIsLegal. When the side to move is in check, GeneratePseudoLegal
// restricts non-king moves to the check-evasion set (blocking or capturing
// the sole checker) rather than emitting moves MoveIsLegal would reject
// anyway (§4.D, generalizing the teacher's single-mode generator).

// GenerateLegal returns every legal move in the position.
func (b *Board) GenerateLegal() *MoveList {
	ml := b.GeneratePseudoLegal()
	out := &MoveList{}
	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		if b.MoveIsLegal(m) {
			out.Add(m)
		}
	}
	return out
}

// GeneratePseudoLegal returns every pseudo-legal move, branching on check.
func (b *Board) GeneratePseudoLegal() *MoveList {
	ml := &MoveList{}
	if b.InCheck() {
		b.generateEvasions(ml)
	} else {
		b.generateNoisy(ml)
		b.generateQuiet(ml)
	}
	return ml
}

// GenerateNoisy returns pseudo-legal captures, promotions and en-passant.
func (b *Board) GenerateNoisy() *MoveList {
	ml := &MoveList{}
	b.generateNoisy(ml)
	return ml
}

// GenerateQuiet returns pseudo-legal non-capturing, non-promoting moves.
func (b *Board) GenerateQuiet() *MoveList {
	ml := &MoveList{}
	b.generateQuiet(ml)
	return ml
}

func (b *Board) generateNoisy(ml *MoveList) {
	us := b.sideToMove
	them := us.Flip()
	occupied := b.Occupied()
	enemies := b.colorBB[them]

	b.generatePawnCaptures(ml, us, enemies)
	b.generatePawnPromotionPushes(ml, us, occupied)
	b.generatePieceMoves(ml, us, occupied, enemies)
	from := b.KingSquare(us)
	attacks := kingAttacks[from] & enemies
	for attacks != 0 {
		to := attacks.PopLSB()
		ml.Add(NewMove(from, to))
	}
}

func (b *Board) generateQuiet(ml *MoveList) {
	us := b.sideToMove
	occupied := b.Occupied()
	empty := ^occupied

	b.generatePawnQuiet(ml, us, empty)
	b.generatePieceMoves(ml, us, occupied, empty)
	from := b.KingSquare(us)
	attacks := kingAttacks[from] & empty
	for attacks != 0 {
		to := attacks.PopLSB()
		ml.Add(NewMove(from, to))
	}
	b.generateCastling(ml, us)
}

func (b *Board) generatePieceMoves(ml *MoveList, us Color, occupied, targets Bitboard) {
	knights := b.Pieces(us, Knight)
	for knights != 0 {
		from := knights.PopLSB()
		attacks := knightAttacks[from] & targets
		for attacks != 0 {
			ml.Add(NewMove(from, attacks.PopLSB()))
		}
	}
	bishops := b.Pieces(us, Bishop)
	for bishops != 0 {
		from := bishops.PopLSB()
		attacks := BishopAttacks(from, occupied) & targets
		for attacks != 0 {
			ml.Add(NewMove(from, attacks.PopLSB()))
		}
	}
	rooks := b.Pieces(us, Rook)
	for rooks != 0 {
		from := rooks.PopLSB()
		attacks := RookAttacks(from, occupied) & targets
		for attacks != 0 {
			ml.Add(NewMove(from, attacks.PopLSB()))
		}
	}
	queens := b.Pieces(us, Queen)
	for queens != 0 {
		from := queens.PopLSB()
		attacks := QueenAttacks(from, occupied) & targets
		for attacks != 0 {
			ml.Add(NewMove(from, attacks.PopLSB()))
		}
	}
}

func (b *Board) generatePawnCaptures(ml *MoveList, us Color, enemies Bitboard) {
	pawns := b.Pieces(us, Pawn)
	var attackL, attackR, promoRank Bitboard
	var pushDir int
	if us == White {
		attackL, attackR = pawns.NorthWest()&enemies, pawns.NorthEast()&enemies
		promoRank, pushDir = Rank8, 8
	} else {
		attackL, attackR = pawns.SouthWest()&enemies, pawns.SouthEast()&enemies
		promoRank, pushDir = Rank1, -8
	}

	nonPromoL := attackL &^ promoRank
	for nonPromoL != 0 {
		to := nonPromoL.PopLSB()
		ml.Add(NewMove(Square(int(to)-(pushDir-1)), to))
	}
	nonPromoR := attackR &^ promoRank
	for nonPromoR != 0 {
		to := nonPromoR.PopLSB()
		ml.Add(NewMove(Square(int(to)-(pushDir+1)), to))
	}
	promoL := attackL & promoRank
	for promoL != 0 {
		to := promoL.PopLSB()
		addPromotions(ml, Square(int(to)-(pushDir-1)), to)
	}
	promoR := attackR & promoRank
	for promoR != 0 {
		to := promoR.PopLSB()
		addPromotions(ml, Square(int(to)-(pushDir+1)), to)
	}

	if ep := b.EPSquare(); ep != NoSquare {
		epBB := SquareBB(ep)
		var attackers Bitboard
		if us == White {
			attackers = (epBB.SouthWest() | epBB.SouthEast()) & pawns
		} else {
			attackers = (epBB.NorthWest() | epBB.NorthEast()) & pawns
		}
		for attackers != 0 {
			ml.Add(NewEnPassant(attackers.PopLSB(), ep))
		}
	}
}

func (b *Board) generatePawnPromotionPushes(ml *MoveList, us Color, occupied Bitboard) {
	pawns := b.Pieces(us, Pawn)
	empty := ^occupied
	var push Bitboard
	var pushDir int
	if us == White {
		push, pushDir = pawns.North()&empty&Rank8, 8
	} else {
		push, pushDir = pawns.South()&empty&Rank1, -8
	}
	for push != 0 {
		to := push.PopLSB()
		addPromotions(ml, Square(int(to)-pushDir), to)
	}
}

func (b *Board) generatePawnQuiet(ml *MoveList, us Color, empty Bitboard) {
	pawns := b.Pieces(us, Pawn)
	var push1, push2, promoRank Bitboard
	var pushDir int
	if us == White {
		push1 = pawns.North() & empty
		push2 = (push1 & Rank3).North() & empty
		promoRank, pushDir = Rank8, 8
	} else {
		push1 = pawns.South() & empty
		push2 = (push1 & Rank6).South() & empty
		promoRank, pushDir = Rank1, -8
	}
	nonPromo := push1 &^ promoRank
	for nonPromo != 0 {
		to := nonPromo.PopLSB()
		ml.Add(NewMove(Square(int(to)-pushDir), to))
	}
	for push2 != 0 {
		to := push2.PopLSB()
		ml.Add(NewMove(Square(int(to)-2*pushDir), to))
	}
}

func addPromotions(ml *MoveList, from, to Square) {
	ml.Add(NewPromotion(from, to, Queen))
	ml.Add(NewPromotion(from, to, Rook))
	ml.Add(NewPromotion(from, to, Bishop))
	ml.Add(NewPromotion(from, to, Knight))
}

func (b *Board) generateCastling(ml *MoveList, us Color) {
	rights := []CastlingRight{WOO, WOOO}
	if us == Black {
		rights = []CastlingRight{BOO, BOOO}
	}
	for _, r := range rights {
		if b.CastlingRights()&r.Bit() == 0 {
			continue
		}
		from := b.KingSquare(us)
		rookSq := b.castlingRookSquare[r]
		if b.castlingPath[r]&b.Occupied()&^(SquareBB(from)|SquareBB(rookSq)) != 0 {
			continue
		}
		ml.Add(NewCastling(from, rookSq))
	}
}

// generateEvasions restricts generation to king moves plus, against a
// single checker, captures of the checker and interpositions on the
// checking ray; a double check only allows king moves.
func (b *Board) generateEvasions(ml *MoveList) {
	us := b.sideToMove
	them := us.Flip()
	ksq := b.KingSquare(us)
	checkers := b.Checkers()

	occWithoutKing := b.Occupied() &^ SquareBB(ksq)
	kingTargets := kingAttacks[ksq] &^ b.colorBB[us]
	for kingTargets != 0 {
		to := kingTargets.PopLSB()
		if b.AttackersByColor(to, them, occWithoutKing) == 0 {
			ml.Add(NewMove(ksq, to))
		}
	}

	if checkers.PopCount() > 1 {
		return // double check: only king moves escape
	}

	checkerSq := checkers.LSB()
	target := checkers | Between(ksq, checkerSq)

	occupied := b.Occupied()
	b.generatePieceMoves(ml, us, occupied, target)

	pawns := b.Pieces(us, Pawn)
	var push1, push2, attackL, attackR, promoRank Bitboard
	var pushDir int
	empty := ^occupied
	if us == White {
		push1, attackL, attackR = pawns.North()&empty, pawns.NorthWest()&checkers, pawns.NorthEast()&checkers
		push2 = (pawns.North() & empty & Rank3).North() & empty
		promoRank, pushDir = Rank8, 8
	} else {
		push1, attackL, attackR = pawns.South()&empty, pawns.SouthWest()&checkers, pawns.SouthEast()&checkers
		push2 = (pawns.South() & empty & Rank6).South() & empty
		promoRank, pushDir = Rank1, -8
	}
	push1 &= target
	push2 &= target
	nonPromo := push1 &^ promoRank
	for nonPromo != 0 {
		to := nonPromo.PopLSB()
		ml.Add(NewMove(Square(int(to)-pushDir), to))
	}
	for push2 != 0 {
		to := push2.PopLSB()
		ml.Add(NewMove(Square(int(to)-2*pushDir), to))
	}
	promo := push1 & promoRank
	for promo != 0 {
		to := promo.PopLSB()
		addPromotions(ml, Square(int(to)-pushDir), to)
	}
	nonPromoL := attackL &^ promoRank
	for nonPromoL != 0 {
		to := nonPromoL.PopLSB()
		ml.Add(NewMove(Square(int(to)-(pushDir-1)), to))
	}
	nonPromoR := attackR &^ promoRank
	for nonPromoR != 0 {
		to := nonPromoR.PopLSB()
		ml.Add(NewMove(Square(int(to)-(pushDir+1)), to))
	}
	promoLc := attackL & promoRank
	for promoLc != 0 {
		to := promoLc.PopLSB()
		addPromotions(ml, Square(int(to)-(pushDir-1)), to)
	}
	promoRc := attackR & promoRank
	for promoRc != 0 {
		to := promoRc.PopLSB()
		addPromotions(ml, Square(int(to)-(pushDir+1)), to)
	}

	if ep := b.EPSquare(); ep != NoSquare {
		capSq := ep
		if us == White {
			capSq = ep - 8
		} else {
			capSq = ep + 8
		}
		if SquareBB(capSq)&checkers != 0 {
			epBB := SquareBB(ep)
			var attackers Bitboard
			if us == White {
				attackers = (epBB.SouthWest() | epBB.SouthEast()) & pawns
			} else {
				attackers = (epBB.NorthWest() | epBB.NorthEast()) & pawns
			}
			for attackers != 0 {
				ml.Add(NewEnPassant(attackers.PopLSB(), ep))
			}
		}
	}
}
