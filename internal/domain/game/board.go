package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/notnil/chess"
)

// StandardLayout is the FEN of the initial position.
const StandardLayout = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// maxPiecesPerColor bounds any layout: a side never has more than 16 men.
const maxPiecesPerColor = 16

// Board is the current-snapshot projection of a game's move log. Layout is a
// six-field FEN string; it is the only game record that is overwritten in place.
type Board struct {
	Layout    string
	UpdatedAt time.Time
}

// parseLayout decodes a FEN string and applies the checks the chess library
// leaves out: at most 16 men a side, castling rights in KQkq order, and an
// en-passant target behind a pawn of the side that just moved.
func parseLayout(s string) (*chess.Position, error) {
	pos := &chess.Position{}
	if err := pos.UnmarshalText([]byte(s)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}

	counts := map[chess.Color]int{}
	for _, p := range pos.Board().SquareMap() {
		counts[p.Color()]++
	}
	if counts[chess.White] > maxPiecesPerColor || counts[chess.Black] > maxPiecesPerColor {
		return nil, fmt.Errorf("%w: more than %d pieces for one side", ErrInvalidLayout, maxPiecesPerColor)
	}

	if cr := pos.CastleRights().String(); cr != "-" && !inOrder(cr, "KQkq") {
		return nil, fmt.Errorf("%w: castling rights %q", ErrInvalidLayout, cr)
	}

	if ep := pos.EnPassantSquare(); ep != chess.NoSquare {
		want := chess.Rank6
		if pos.Turn() == chess.Black {
			want = chess.Rank3
		}
		if ep.Rank() != want {
			return nil, fmt.Errorf("%w: en-passant square %s with %s to move", ErrInvalidLayout, ep, fromChessColor(pos.Turn()))
		}
	}
	return pos, nil
}

// inOrder reports whether s is a non-empty subsequence of ref.
func inOrder(s, ref string) bool {
	if s == "" {
		return false
	}
	i := 0
	for j := 0; j < len(ref) && i < len(s); j++ {
		if s[i] == ref[j] {
			i++
		}
	}
	return i == len(s)
}

// repetitionKey is the first four FEN fields: what must match for two
// positions to count as the same under the repetition rule.
func repetitionKey(pos *chess.Position) string {
	return strings.Join(strings.Fields(pos.String())[:4], " ")
}

func fromChessColor(c chess.Color) Color {
	switch c {
	case chess.White:
		return White
	case chess.Black:
		return Black
	default:
		return NoColor
	}
}

func fromChessPiece(p chess.Piece) PieceType {
	t := PieceType(p.Type().String()[0])
	return withColor(t, fromChessColor(p.Color()))
}
