package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Color is a side. The zero value means "no color", used for results without a winner.
type Color uint8

const (
	NoColor Color = iota
	White
	Black
)

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return ""
	}
}

// Other returns the opposing side.
func (c Color) Other() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoColor
	}
}

// ParseColor accepts "white"/"black" and the FEN letters "w"/"b".
func ParseColor(s string) (Color, error) {
	switch s {
	case "white", "w":
		return White, nil
	case "black", "b":
		return Black, nil
	case "":
		return NoColor, nil
	default:
		return NoColor, fmt.Errorf("unknown color %q", s)
	}
}

// PieceType is one of the twelve FEN piece letters; uppercase is White.
type PieceType byte

const (
	WhitePawn   PieceType = 'P'
	WhiteKnight PieceType = 'N'
	WhiteBishop PieceType = 'B'
	WhiteRook   PieceType = 'R'
	WhiteQueen  PieceType = 'Q'
	WhiteKing   PieceType = 'K'
	BlackPawn   PieceType = 'p'
	BlackKnight PieceType = 'n'
	BlackBishop PieceType = 'b'
	BlackRook   PieceType = 'r'
	BlackQueen  PieceType = 'q'
	BlackKing   PieceType = 'k'
)

const noPiece PieceType = 0

// ParsePieceType returns the piece for a FEN letter.
func ParsePieceType(s string) (PieceType, error) {
	if len(s) == 1 {
		t := PieceType(s[0])
		if t.Valid() {
			return t, nil
		}
	}
	return noPiece, fmt.Errorf("unknown piece type %q", s)
}

func (t PieceType) Valid() bool {
	switch t {
	case WhitePawn, WhiteKnight, WhiteBishop, WhiteRook, WhiteQueen, WhiteKing,
		BlackPawn, BlackKnight, BlackBishop, BlackRook, BlackQueen, BlackKing:
		return true
	}
	return false
}

func (t PieceType) Color() Color {
	switch {
	case t >= 'A' && t <= 'Z':
		return White
	case t >= 'a' && t <= 'z':
		return Black
	default:
		return NoColor
	}
}

// kind is the lowercase letter, identical for both colors.
func (t PieceType) kind() byte {
	b := byte(t)
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

// withColor returns the piece of the same kind for color c.
func withColor(t PieceType, c Color) PieceType {
	k := PieceType(t.kind())
	if c == White {
		return k - ('a' - 'A')
	}
	return k
}

func (t PieceType) String() string {
	if t == noPiece {
		return ""
	}
	return string(rune(t))
}

// Square indexes the 8x8 board as rank*8+file with a1 = 0 and h8 = 63.
type Square int8

// NoSquare marks an absent square (no en-passant target, captured piece).
const NoSquare Square = -1

// ParseSquare reads algebraic coordinates such as "e4".
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return NoSquare, fmt.Errorf("%w: square %q out of range", ErrIllegalMove, s)
	}
	return NewSquare(int(s[0]-'a'), int(s[1]-'1')), nil
}

// NewSquare builds a square from zero-based file and rank; out-of-range input yields NoSquare.
func NewSquare(file, rank int) Square {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return NoSquare
	}
	return Square(rank*8 + file)
}

func (s Square) Valid() bool { return s >= 0 && s < 64 }

// File is zero-based, 0 = a.
func (s Square) File() int { return int(s) % 8 }

// Rank is zero-based, 0 = rank 1.
func (s Square) Rank() int { return int(s) / 8 }

func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return string([]byte{byte('a' + s.File()), byte('1' + s.Rank())})
}

// Piece is a physical piece placed on a game's board. Captured only goes from
// false to true; PromotedTo is set at most once, when a pawn promotes.
type Piece struct {
	ID         uuid.UUID
	Type       PieceType
	Captured   bool
	PromotedTo PieceType
}

// Current returns the type the piece plays as now.
func (p Piece) Current() PieceType {
	if p.PromotedTo != noPiece {
		return p.PromotedTo
	}
	return p.Type
}

// Position records where a piece stood from a given ply on. Rows are
// append-only: a move adds a Position, it never edits one.
type Position struct {
	ID        uuid.UUID
	PieceID   uuid.UUID
	Square    Square
	Ply       int
	Timestamp time.Time
}
