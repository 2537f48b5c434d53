package chess

import "fmt"

// MoveKind distinguishes the four move encodings.
type MoveKind uint16

const (
	Normal MoveKind = iota
	Promotion
	EnPassant
	Castling
)

// Move packs to(6) | from(6) | promoType(2) | kind(2) into 16 bits:
// bits 0-5 destination, 6-11 origin, 12-13 promotion piece code
// ({N,B,R,Q} -> 0..3), 14-15 move kind.
type Move uint16

const (
	// NoMove is the sentinel "no move" value.
	NoMove Move = 0
	// NullMove is the sentinel null move: from B1 to B1.
	NullMove Move = Move(B1) | Move(B1)<<6
)

const (
	toShift    = 0
	fromShift  = 6
	promoShift = 12
	kindShift  = 14
	squareMask = 0x3F
)

var promoTypes = [4]PieceType{Knight, Bishop, Rook, Queen}

func promoCode(pt PieceType) Move {
	switch pt {
	case Bishop:
		return 1
	case Rook:
		return 2
	case Queen:
		return 3
	default:
		return 0
	}
}

// NewMove builds a Normal move.
func NewMove(from, to Square) Move {
	return Move(to)<<toShift | Move(from)<<fromShift
}

// NewPromotion builds a Promotion move; pt must be Knight/Bishop/Rook/Queen.
func NewPromotion(from, to Square, pt PieceType) Move {
	return Move(to)<<toShift | Move(from)<<fromShift | promoCode(pt)<<promoShift | Move(Promotion)<<kindShift
}

// NewEnPassant builds an en-passant capture move.
func NewEnPassant(from, to Square) Move {
	return Move(to)<<toShift | Move(from)<<fromShift | Move(EnPassant)<<kindShift
}

// NewCastling builds a castling move, encoded king-captures-own-rook: "to"
// is the rook's square, per §4.D step 2.
func NewCastling(from, rookSquare Square) Move {
	return Move(rookSquare)<<toShift | Move(from)<<fromShift | Move(Castling)<<kindShift
}

// From returns the origin square.
func (m Move) From() Square { return Square((m >> fromShift) & squareMask) }

// To returns the destination square (for castling, the rook's square).
func (m Move) To() Square { return Square((m >> toShift) & squareMask) }

// Promotion returns the promotion piece type; meaningful only when Kind()==Promotion.
func (m Move) Promotion() PieceType { return promoTypes[(m>>promoShift)&0x3] }

// Kind returns the move's encoding kind.
func (m Move) Kind() MoveKind { return MoveKind((m >> kindShift) & 0x3) }

// IsPromotion reports whether the move is a promotion.
func (m Move) IsPromotion() bool { return m.Kind() == Promotion }

// IsCastling reports whether the move is a castling move.
func (m Move) IsCastling() bool { return m.Kind() == Castling }

// IsEnPassant reports whether the move is an en-passant capture.
func (m Move) IsEnPassant() bool { return m.Kind() == EnPassant }

// String renders the move in UCI from-to[-promo] text. Castling renders in
// king-captures-rook form, matching chess960 text.
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}
	s := m.From().String() + m.To().String()
	if m.IsPromotion() {
		s += string(m.Promotion().Char())
	}
	return s
}

// ParseMove parses UCI move text against the given board to disambiguate
// castling/en-passant/promotion encodings.
func ParseMove(s string, b *Board) (Move, error) {
	if len(s) < 4 {
		return NoMove, fmt.Errorf("invalid move string: %s", s)
	}
	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}
	if len(s) == 5 {
		var promo PieceType
		switch s[4] {
		case 'n':
			promo = Knight
		case 'b':
			promo = Bishop
		case 'r':
			promo = Rook
		case 'q':
			promo = Queen
		default:
			return NoMove, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
		return NewPromotion(from, to, promo), nil
	}

	piece := b.PieceAt(from)
	if piece == NoPiece {
		return NoMove, fmt.Errorf("no piece at %s", from)
	}
	pt := piece.Type()

	if pt == King {
		// Chess960 castling text is king-captures-rook; standard castling
		// text moves the king two squares. Both forms land here with
		// the rook square resolved from the castling tables.
		if rookSq, ok := b.castlingRookForKingMove(from, to); ok {
			return NewCastling(from, rookSq), nil
		}
	}
	if pt == Pawn && to == b.Top().EPSquare && to != NoSquare {
		return NewEnPassant(from, to), nil
	}
	return NewMove(from, to), nil
}

// MoveList is a fixed-size list of moves to avoid allocations.
type MoveList struct {
	moves [256]Move
	count int
}

func (ml *MoveList) Add(m Move)      { ml.moves[ml.count] = m; ml.count++ }
func (ml *MoveList) Len() int        { return ml.count }
func (ml *MoveList) Get(i int) Move  { return ml.moves[i] }
func (ml *MoveList) Clear()          { ml.count = 0 }
func (ml *MoveList) Slice() []Move   { return ml.moves[:ml.count] }
func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i] == m {
			return true
		}
	}
	return false
}
