package chess

// do_move/undo_move and the legality/check/SEE/draw machinery built on top
// of Board+Boardstack, per §4.D.

// Clone deep-copies the board including its full Boardstack history, so a
// Worker can own an independent copy of the root position (§3 lifecycle).
func (b *Board) Clone() *Board {
	nb := *b
	nb.stack = make([]Boardstack, len(b.stack))
	copy(nb.stack, b.stack)
	return &nb
}

func (b *Board) pushStack() *Boardstack {
	b.stack = append(b.stack, *b.Top())
	return b.Top()
}

// DoMove applies a pseudo-legal move. givesCheck must be the result of
// MoveGivesCheck(m) computed against the pre-move position: checkers are
// only computed when it is true, so passing false for a checking move
// leaves Checkers empty.
func (b *Board) DoMove(m Move, givesCheck bool) {
	prev := b.Top()
	us := b.sideToMove
	them := us.Flip()
	from, to := m.From(), m.To()
	piece := b.mailbox[from]
	pt := piece.Type()

	key := prev.BoardKey
	pawnKey := prev.KingPawnKey
	rule50 := prev.Rule50 + 1
	pliesSinceNull := prev.PliesSinceNullmove + 1
	castlings := prev.Castlings
	material := prev.Material
	var captured Piece
	epSquare := NoSquare

	psq := b.psqScore
	// psqScore is White-POV: the mover's and the captured piece's table
	// terms enter with the mover's sign.
	sign := Scorepair(1)
	if us == Black {
		sign = -1
	}

	if prev.EPSquare != NoSquare {
		key ^= ZobristEnPassant(prev.EPSquare.File())
	}

	if m.IsCastling() {
		rookFrom := to
		rank := from.Rank()
		kingSide := rookFrom.File() > from.File()
		var kingTo, rookTo Square
		if kingSide {
			kingTo, rookTo = NewSquare(6, rank), NewSquare(5, rank)
		} else {
			kingTo, rookTo = NewSquare(2, rank), NewSquare(3, rank)
		}
		rook := b.remove(rookFrom)
		b.remove(from)
		b.put(piece, kingTo)
		b.put(rook, rookTo)
		key ^= ZobristPiece(piece, from) ^ ZobristPiece(piece, kingTo)
		key ^= ZobristPiece(rook, rookFrom) ^ ZobristPiece(rook, rookTo)
		psq += sign * (pieceSquareValue(piece, kingTo) - pieceSquareValue(piece, from))
		psq += sign * (pieceSquareValue(rook, rookTo) - pieceSquareValue(rook, rookFrom))
	} else if m.IsEnPassant() {
		capSq := to
		if us == White {
			capSq = to - 8
		} else {
			capSq = to + 8
		}
		captured = b.remove(capSq)
		b.move(from, to)
		key ^= ZobristPiece(captured, capSq)
		key ^= ZobristPiece(piece, from) ^ ZobristPiece(piece, to)
		pawnKey ^= ZobristPiece(captured, capSq)
		pawnKey ^= ZobristPiece(piece, from) ^ ZobristPiece(piece, to)
		psq += sign * pieceSquareValue(captured, capSq)
		psq += sign * (pieceSquareValue(piece, to) - pieceSquareValue(piece, from))
		rule50 = 0
	} else {
		if cap := b.mailbox[to]; cap != NoPiece {
			captured = b.remove(to)
			key ^= ZobristPiece(captured, to)
			if captured.Type() == Pawn {
				pawnKey ^= ZobristPiece(captured, to)
			} else {
				material[captured.Color()] -= PieceValue[captured.Type()]
			}
			psq += sign * pieceSquareValue(captured, to)
			rule50 = 0
		}
		b.move(from, to)
		key ^= ZobristPiece(piece, from) ^ ZobristPiece(piece, to)
		if pt == Pawn {
			pawnKey ^= ZobristPiece(piece, from) ^ ZobristPiece(piece, to)
			rule50 = 0
		} else {
			psq += sign * (pieceSquareValue(piece, to) - pieceSquareValue(piece, from))
		}

		if m.IsPromotion() {
			b.remove(to)
			promoted := NewPiece(m.Promotion(), us)
			b.put(promoted, to)
			key ^= ZobristPiece(piece, to) ^ ZobristPiece(promoted, to)
			pawnKey ^= ZobristPiece(piece, to)
			material[us] += PieceValue[m.Promotion()]
			psq += sign * (pieceSquareValue(promoted, to) - pieceSquareValue(piece, from))
		} else if pt == Pawn {
			psq += sign * (pieceSquareValue(piece, to) - pieceSquareValue(piece, from))
		}

		if pt == Pawn && abs(int(to)-int(from)) == 16 {
			candidate := Square((int(from) + int(to)) / 2)
			if pawnAttacksBB[us][candidate]&b.Pieces(them, Pawn) != 0 {
				epSquare = candidate
			}
		}
	}

	castlings &= b.castlingMask[from] & b.castlingMask[to]
	key ^= ZobristCastling(prev.Castlings) ^ ZobristCastling(castlings)
	if epSquare != NoSquare {
		key ^= ZobristEnPassant(epSquare.File())
	}
	key ^= ZobristBlackToMove()

	st := b.pushStack()
	st.BoardKey = key
	st.KingPawnKey = pawnKey
	st.MaterialKey = b.materialKey()
	st.Castlings = castlings
	st.Rule50 = rule50
	st.PliesSinceNullmove = pliesSinceNull
	st.EPSquare = epSquare
	st.CapturedPiece = captured
	st.Material = material

	b.sideToMove = them
	b.ply++
	b.psqScore = psq

	if givesCheck {
		st.Checkers = b.AttackersByColor(b.KingSquare(them), us, b.Occupied())
	} else {
		st.Checkers = 0
	}
	b.setPinsAndCheckSquares(st, them, us)
	b.updateRepetition(st)
}

// UndoMove reverses the most recent DoMove.
func (b *Board) UndoMove(m Move) {
	st := b.Top()
	them := b.sideToMove
	us := them.Flip()
	from, to := m.From(), m.To()

	b.sideToMove = us
	b.ply--

	if m.IsCastling() {
		rank := from.Rank()
		kingSide := to.File() > from.File()
		var kingTo, rookTo Square
		if kingSide {
			kingTo, rookTo = NewSquare(6, rank), NewSquare(5, rank)
		} else {
			kingTo, rookTo = NewSquare(2, rank), NewSquare(3, rank)
		}
		rook := b.remove(rookTo)
		king := b.remove(kingTo)
		b.put(king, from)
		b.put(rook, to)
	} else {
		if m.IsPromotion() {
			b.remove(to)
			b.put(NewPiece(Pawn, us), to)
		}
		piece := b.remove(to)
		b.put(piece, from)

		if m.IsEnPassant() {
			capSq := to
			if us == White {
				capSq = to - 8
			} else {
				capSq = to + 8
			}
			b.put(st.CapturedPiece, capSq)
		} else if st.CapturedPiece != NoPiece {
			b.put(st.CapturedPiece, to)
		}
	}

	b.stack = b.stack[:len(b.stack)-1]
	b.psqScore = b.recomputePSQ()
}

// recomputePSQ rebuilds the piece-square scorepair from scratch; used by
// UndoMove since Boardstack does not cache psqScore per frame.
func (b *Board) recomputePSQ() Scorepair {
	var sp Scorepair
	occ := b.Occupied()
	for occ != 0 {
		sq := occ.PopLSB()
		p := b.mailbox[sq]
		term := pieceSquareValue(p, sq)
		if p.Color() == Black {
			term = term.Negate()
		}
		sp += term
	}
	return sp
}

// DoNullMove passes the turn without moving a piece (§4.D do_null_move).
func (b *Board) DoNullMove() {
	prev := b.Top()
	key := prev.BoardKey
	if prev.EPSquare != NoSquare {
		key ^= ZobristEnPassant(prev.EPSquare.File())
	}
	key ^= ZobristBlackToMove()

	st := b.pushStack()
	st.BoardKey = key
	st.EPSquare = NoSquare
	st.PliesSinceNullmove = 0
	st.Rule50 = prev.Rule50 + 1
	st.CapturedPiece = NoPiece

	b.sideToMove = b.sideToMove.Flip()
	b.ply++
	b.setBoardstack(st)
	// No repetition update per the null-move contract.
}

// UndoNullMove reverses DoNullMove.
func (b *Board) UndoNullMove() {
	b.sideToMove = b.sideToMove.Flip()
	b.ply--
	b.stack = b.stack[:len(b.stack)-1]
}

func (b *Board) updateRepetition(st *Boardstack) {
	st.Repetition = 0
	end := int(st.Rule50)
	if int(st.PliesSinceNullmove) < end {
		end = int(st.PliesSinceNullmove)
	}
	if end < 4 {
		return
	}
	idx := len(b.stack) - 1
	for i := 4; i <= end; i += 2 {
		if idx-i < 0 {
			break
		}
		older := &b.stack[idx-i]
		if older.BoardKey == st.BoardKey {
			if older.Repetition != 0 {
				st.Repetition = -int16(i)
			} else {
				st.Repetition = int16(i)
			}
			return
		}
	}
}

// GameIsDrawn reports a 50-move or non-prior-repetition draw (§4.D), with
// the 50-move rule additionally requiring a legal move when in check at
// 100 plies (true checkmate takes precedence over a claimed draw).
func (b *Board) GameIsDrawn(ply int) bool {
	st := b.Top()
	if st.Repetition != 0 && int(st.Repetition) < ply {
		return true
	}
	if st.Rule50 >= 100 {
		if !b.InCheck() {
			return true
		}
		return b.HasLegalMoves()
	}
	return false
}

// HasLegalMoves reports whether the side to move has at least one legal move.
func (b *Board) HasLegalMoves() bool {
	ml := b.GeneratePseudoLegal()
	for i := 0; i < ml.Len(); i++ {
		if b.MoveIsLegal(ml.Get(i)) {
			return true
		}
	}
	return false
}

// IsCheckmate reports checkmate: in check with no legal replies.
func (b *Board) IsCheckmate() bool { return b.InCheck() && !b.HasLegalMoves() }

// IsStalemate reports stalemate: not in check with no legal replies.
func (b *Board) IsStalemate() bool { return !b.InCheck() && !b.HasLegalMoves() }

// MoveIsPseudoLegal checks fast rejection without generating the full list;
// it must accept exactly the moves the generators would produce.
func (b *Board) MoveIsPseudoLegal(m Move) bool {
	if m == NoMove || m == NullMove {
		return false
	}
	us := b.sideToMove
	from, to := m.From(), m.To()
	piece := b.mailbox[from]
	if piece == NoPiece || piece.Color() != us {
		return false
	}
	if b.mailbox[to] != NoPiece && b.mailbox[to].Color() == us && !m.IsCastling() {
		return false
	}
	pt := piece.Type()

	if m.IsCastling() {
		return b.GeneratePseudoLegal().Contains(m)
	}
	if m.IsEnPassant() {
		return pt == Pawn && to == b.EPSquare() && pawnAttacksBB[us][from]&SquareBB(to) != 0
	}
	if m.IsPromotion() {
		if pt != Pawn || to.RelativeRank(us) != 7 {
			return false
		}
	} else if pt == Pawn && to.RelativeRank(us) == 7 {
		return false // normal-kind pawn move reaching last rank must be a Promotion
	}

	switch pt {
	case Pawn:
		return b.pawnMoveIsPseudoLegal(us, from, to)
	case Knight:
		return knightAttacks[from]&SquareBB(to) != 0
	case Bishop:
		return BishopAttacks(from, b.Occupied())&SquareBB(to) != 0
	case Rook:
		return RookAttacks(from, b.Occupied())&SquareBB(to) != 0
	case Queen:
		return QueenAttacks(from, b.Occupied())&SquareBB(to) != 0
	case King:
		return kingAttacks[from]&SquareBB(to) != 0
	}
	return false
}

func (b *Board) pawnMoveIsPseudoLegal(us Color, from, to Square) bool {
	if pawnAttacksBB[us][from]&SquareBB(to)&b.colorBB[us.Flip()] != 0 {
		return true
	}
	var push1 Square
	if us == White {
		push1 = from + 8
	} else {
		push1 = from - 8
	}
	if to == push1 {
		return b.mailbox[to] == NoPiece
	}
	startRank := 1
	if us == Black {
		startRank = 6
	}
	if from.Rank() == startRank {
		var push2 Square
		if us == White {
			push2 = from + 16
		} else {
			push2 = from - 16
		}
		if to == push2 {
			return b.mailbox[push1] == NoPiece && b.mailbox[to] == NoPiece
		}
	}
	return false
}

// MoveIsLegal ensures no discovered check on own king, validates king
// destinations, and validates the castling path (§4.D move_is_legal).
func (b *Board) MoveIsLegal(m Move) bool {
	us := b.sideToMove
	them := us.Flip()
	from, to := m.From(), m.To()
	ksq := b.KingSquare(us)
	st := b.Top()

	if m.IsCastling() {
		rookSq := to
		rank := from.Rank()
		kingSide := rookSq.File() > from.File()
		var kingTo Square
		if kingSide {
			kingTo = NewSquare(6, rank)
		} else {
			kingTo = NewSquare(2, rank)
		}
		path := b.castlingPath[castlingRightFor(us, kingSide)]
		if path&b.Occupied()&^(SquareBB(from)|SquareBB(rookSq)) != 0 {
			return false
		}
		step := 1
		if kingTo < from {
			step = -1
		}
		occWithoutKingRook := b.Occupied() &^ SquareBB(from) &^ SquareBB(rookSq)
		for sq := from; ; sq = Square(int(sq) + step) {
			if b.AttackersByColor(sq, them, occWithoutKingRook) != 0 {
				return false
			}
			if sq == kingTo {
				break
			}
		}
		return true
	}

	if m.IsEnPassant() {
		capSq := to
		if us == White {
			capSq = to - 8
		} else {
			capSq = to + 8
		}
		occ := b.Occupied() &^ SquareBB(from) &^ SquareBB(capSq) | SquareBB(to)
		return b.AttackersByColor(ksq, them, occ) == 0
	}

	if from == ksq {
		occ := b.Occupied() &^ SquareBB(from)
		return b.AttackersByColor(to, them, occ) == 0
	}

	if st.KingBlockers[us]&SquareBB(from) == 0 {
		return true
	}
	return Aligned(from, to, ksq)
}

func castlingRightFor(c Color, kingSide bool) CastlingRight {
	switch {
	case c == White && kingSide:
		return WOO
	case c == White && !kingSide:
		return WOOO
	case c == Black && kingSide:
		return BOO
	default:
		return BOOO
	}
}

// SeeAbove reports whether the static exchange evaluation of m is at least
// threshold, using the fixed seePieceValue table (§4.D see_above) rather
// than the tapered evaluation's PieceValue table.
func (b *Board) SeeAbove(m Move, threshold int) bool {
	return b.see(m) >= threshold
}

// see runs the classic swap algorithm: walk least-valuable-attacker
// recaptures on the target square and negamax the resulting gain array.
func (b *Board) see(m Move) int {
	from, to := m.From(), m.To()
	attacker := b.mailbox[from]
	if attacker == NoPiece {
		return 0
	}

	var gain [32]int
	d := 0

	if m.IsEnPassant() {
		gain[d] = seePieceValue[Pawn]
	} else {
		victim := b.mailbox[to]
		if victim == NoPiece {
			return 0
		}
		gain[d] = seePieceValue[victim.Type()]
	}
	if m.IsPromotion() {
		gain[d] += seePieceValue[m.Promotion()] - seePieceValue[Pawn]
	}

	occupied := b.Occupied() &^ SquareBB(from)
	attackerValue := seePieceValue[attacker.Type()]
	side := attacker.Color().Flip()

	for {
		d++
		gain[d] = attackerValue - gain[d-1]
		if max(-gain[d-1], gain[d]) < 0 {
			break
		}

		sq, piece := b.leastValuableAttacker(to, side, occupied)
		if sq == NoSquare {
			break
		}
		occupied &^= SquareBB(sq)
		attackerValue = seePieceValue[piece.Type()]
		side = side.Flip()
	}

	for d--; d > 0; d-- {
		gain[d-1] = -max(-gain[d-1], gain[d])
	}
	return gain[0]
}

func (b *Board) leastValuableAttacker(target Square, side Color, occupied Bitboard) (Square, Piece) {
	pawns := b.Pieces(side, Pawn) & occupied
	if attackers := pawns & pawnAttacksBB[side.Flip()][target]; attackers != 0 {
		return attackers.LSB(), NewPiece(Pawn, side)
	}
	if attackers := b.Pieces(side, Knight) & occupied & knightAttacks[target]; attackers != 0 {
		return attackers.LSB(), NewPiece(Knight, side)
	}
	bishopAtk := BishopAttacks(target, occupied)
	if attackers := b.Pieces(side, Bishop) & occupied & bishopAtk; attackers != 0 {
		return attackers.LSB(), NewPiece(Bishop, side)
	}
	rookAtk := RookAttacks(target, occupied)
	if attackers := b.Pieces(side, Rook) & occupied & rookAtk; attackers != 0 {
		return attackers.LSB(), NewPiece(Rook, side)
	}
	if attackers := b.Pieces(side, Queen) & occupied & (bishopAtk | rookAtk); attackers != 0 {
		return attackers.LSB(), NewPiece(Queen, side)
	}
	if attackers := b.Pieces(side, King) & occupied & kingAttacks[target]; attackers != 0 {
		return attackers.LSB(), NewPiece(King, side)
	}
	return NoSquare, NoPiece
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// MoveGivesCheck reports whether m would give check if played, combining
// direct checks (via check_squares), discovered checks (moving piece lies
// in the opponent's king_blockers, off the king line) and special kinds.
func (b *Board) MoveGivesCheck(m Move) bool {
	us := b.sideToMove
	them := us.Flip()
	from, to := m.From(), m.To()
	st := b.Top()
	piece := b.mailbox[from]
	pt := piece.Type()
	enemyKsq := b.KingSquare(them)

	if !m.IsPromotion() && st.CheckSquares[pt]&SquareBB(to) != 0 {
		return true
	}
	if st.KingBlockers[them]&SquareBB(from) != 0 && !Aligned(from, to, enemyKsq) {
		return true
	}

	switch m.Kind() {
	case Promotion:
		occ := b.Occupied() &^ SquareBB(from) | SquareBB(to)
		return AttacksBB(m.Promotion(), to, occ)&SquareBB(enemyKsq) != 0
	case EnPassant:
		capSq := to
		if us == White {
			capSq = to - 8
		} else {
			capSq = to + 8
		}
		occ := b.Occupied() &^ SquareBB(from) &^ SquareBB(capSq) | SquareBB(to)
		return (RookAttacks(enemyKsq, occ)&(b.Pieces(us, Rook)|b.Pieces(us, Queen)) != 0) ||
			(BishopAttacks(enemyKsq, occ)&(b.Pieces(us, Bishop)|b.Pieces(us, Queen)) != 0)
	case Castling:
		rank := from.Rank()
		kingSide := to.File() > from.File()
		var rookTo Square
		if kingSide {
			rookTo = NewSquare(5, rank)
		} else {
			rookTo = NewSquare(3, rank)
		}
		return RookAttacks(rookTo, b.Occupied())&SquareBB(enemyKsq) != 0
	}
	return false
}
