package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/notnil/chess"
)

// MoveRequest is a caller-validated move. PieceID may be left as uuid.Nil, in
// which case the piece standing on From is moved. Promotion is required when a
// pawn reaches the last rank and rejected otherwise.
type MoveRequest struct {
	PieceID   uuid.UUID
	From      Square
	To        Square
	Promotion PieceType
}

// ParseMoveRequest reads UCI notation such as "e2e4" or "e7e8q". The
// promotion letter may be given in either case; it takes the mover's color.
func ParseMoveRequest(uci string) (MoveRequest, error) {
	if len(uci) != 4 && len(uci) != 5 {
		return MoveRequest{}, illegal("move %q is not UCI notation", uci)
	}
	from, err := ParseSquare(uci[0:2])
	if err != nil {
		return MoveRequest{}, err
	}
	to, err := ParseSquare(uci[2:4])
	if err != nil {
		return MoveRequest{}, err
	}
	req := MoveRequest{From: from, To: to}
	if len(uci) == 5 {
		t, err := ParsePieceType(uci[4:])
		if err != nil {
			return MoveRequest{}, illegal("promotion %q", uci[4:])
		}
		req.Promotion = t
	}
	return req, nil
}

// Move is one entry of the append-only move log.
type Move struct {
	ID              uuid.UUID
	Ply             int
	PieceID         uuid.UUID
	From            Square
	To              Square
	Promotion       PieceType
	CapturedPieceID uuid.UUID
	LayoutAfter     string
	Timestamp       time.Time
}

// UCI renders the move as from+to(+promotion), e.g. "e7e8q".
func (m Move) UCI() string {
	s := m.From.String() + m.To.String()
	if m.Promotion != noPiece {
		s += string(rune(m.Promotion.kind()))
	}
	return s
}

// State owns a game's board, pieces, position history and move log. Pieces,
// Positions and Moves are exposed for persistence and must be treated as
// read-only by callers.
type State struct {
	Board     Board
	Pieces    []Piece
	Positions []Position
	Moves     []Move

	pos *chess.Position
	// occupant maps a square to an index in Pieces, -1 when empty.
	occupant [64]int
	// at is the square of each piece by index, NoSquare once captured.
	at    []Square
	index map[uuid.UUID]int

	repetitions   map[string]int
	maxRepetition int
}

// NewState places one Piece per occupied square of initial. Piece and Position
// identifiers are derived from gameID, so the same inputs always produce the
// same state.
func NewState(gameID uuid.UUID, initial string, now time.Time) (*State, error) {
	pos, err := parseLayout(initial)
	if err != nil {
		return nil, err
	}
	s := &State{
		pos:         pos,
		index:       make(map[uuid.UUID]int),
		repetitions: make(map[string]int),
	}
	for i := range s.occupant {
		s.occupant[i] = -1
	}
	board := pos.Board()
	for sq := Square(0); sq < 64; sq++ {
		cp := board.Piece(chess.Square(sq))
		if cp == chess.NoPiece {
			continue
		}
		p := Piece{
			ID:   uuid.NewSHA1(gameID, []byte("piece:"+sq.String())),
			Type: fromChessPiece(cp),
		}
		idx := len(s.Pieces)
		s.Pieces = append(s.Pieces, p)
		s.at = append(s.at, sq)
		s.occupant[sq] = idx
		s.index[p.ID] = idx
		s.Positions = append(s.Positions, Position{
			ID:        uuid.NewSHA1(gameID, []byte("position:"+sq.String())),
			PieceID:   p.ID,
			Square:    sq,
			Timestamp: now,
		})
	}
	s.Board = Board{Layout: pos.String(), UpdatedAt: now}
	s.record()
	return s, nil
}

// ReplayState rebuilds a state from its initial layout and move log.
func ReplayState(gameID uuid.UUID, initial string, created time.Time, moves []Move) (*State, error) {
	s, err := NewState(gameID, initial, created)
	if err != nil {
		return nil, err
	}
	for _, m := range moves {
		req := MoveRequest{PieceID: m.PieceID, From: m.From, To: m.To, Promotion: m.Promotion}
		if _, err := s.Apply(req, m.ID, m.Timestamp); err != nil {
			return nil, fmt.Errorf("replay ply %d: %w", m.Ply, err)
		}
	}
	return s, nil
}

func (s *State) record() {
	key := repetitionKey(s.pos)
	s.repetitions[key]++
	if n := s.repetitions[key]; n > s.maxRepetition {
		s.maxRepetition = n
	}
}

// Ply is the number of moves applied so far.
func (s *State) Ply() int { return len(s.Moves) }

// SideToMove returns the color whose turn it is.
func (s *State) SideToMove() Color { return fromChessColor(s.pos.Turn()) }

// HalfmoveClock counts half-moves since the last pawn move or capture.
func (s *State) HalfmoveClock() int { return s.pos.HalfMoveClock() }

// MaxRepetition is the highest number of times any position has occurred.
func (s *State) MaxRepetition() int { return s.maxRepetition }

// Repetitions returns how many times the position given by layout's first
// four FEN fields has occurred.
func (s *State) Repetitions(fen string) int {
	pos, err := parseLayout(fen)
	if err != nil {
		return 0
	}
	return s.repetitions[repetitionKey(pos)]
}

// PieceAt returns the piece standing on sq.
func (s *State) PieceAt(sq Square) (Piece, bool) {
	if !sq.Valid() || s.occupant[sq] < 0 {
		return Piece{}, false
	}
	return s.Pieces[s.occupant[sq]], true
}

// SquareOf returns the square derived from the piece's latest Position.
func (s *State) SquareOf(pieceID uuid.UUID) (Square, bool) {
	idx, ok := s.index[pieceID]
	if !ok || s.at[idx] == NoSquare {
		return NoSquare, false
	}
	return s.at[idx], true
}

// ActivePieces counts the uncaptured pieces of one color.
func (s *State) ActivePieces(c Color) int {
	n := 0
	for _, p := range s.Pieces {
		if !p.Captured && p.Type.Color() == c {
			n++
		}
	}
	return n
}

// castleRook returns the rook's source and target for a castling king move.
func castleRook(from Square, kingSide bool) (Square, Square) {
	rank := from.Rank()
	if kingSide {
		return NewSquare(7, rank), NewSquare(5, rank)
	}
	return NewSquare(0, rank), NewSquare(3, rank)
}

func illegal(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalMove, fmt.Sprintf(format, args...))
}

// Apply appends a move to the log, adds Positions for every piece that moved,
// marks a captured piece and rewrites the board. It checks structure only:
// whether the piece may move that way is assumed to be validated already.
// The state is unchanged when an error is returned.
func (s *State) Apply(req MoveRequest, moveID uuid.UUID, now time.Time) (Move, error) {
	if !req.From.Valid() || !req.To.Valid() {
		return Move{}, illegal("square out of range")
	}
	if req.From == req.To {
		return Move{}, illegal("from and to are the same square")
	}

	var idx int
	if req.PieceID != uuid.Nil {
		i, ok := s.index[req.PieceID]
		if !ok {
			return Move{}, illegal("unknown piece %s", req.PieceID)
		}
		idx = i
	} else {
		idx = s.occupant[req.From]
		if idx < 0 {
			return Move{}, illegal("no piece on %s", req.From)
		}
	}
	piece := s.Pieces[idx]
	if piece.Captured {
		return Move{}, illegal("piece %s is captured", piece.ID)
	}
	if s.at[idx] != req.From {
		return Move{}, illegal("piece %s stands on %s, not %s", piece.ID, s.at[idx], req.From)
	}

	kind := piece.Current()
	color := kind.Color()
	if color != s.SideToMove() {
		return Move{}, illegal("%s to move", s.SideToMove())
	}

	target := s.occupant[req.To]
	if target >= 0 && s.Pieces[target].Type.Color() == color {
		return Move{}, illegal("%s is occupied by own piece", req.To)
	}

	isPawn := kind.kind() == 'p'
	lastRank := 7
	if color == Black {
		lastRank = 0
	}
	promotes := isPawn && req.To.Rank() == lastRank
	promotion := noPiece
	switch {
	case promotes && req.Promotion == noPiece:
		return Move{}, illegal("promotion piece required")
	case promotes:
		switch req.Promotion.kind() {
		case 'n', 'b', 'r', 'q':
			promotion = withColor(req.Promotion, color)
		default:
			return Move{}, illegal("promotion to %q", req.Promotion)
		}
	case req.Promotion != noPiece:
		return Move{}, illegal("promotion only applies to a pawn reaching the last rank")
	}

	uci := req.From.String() + req.To.String()
	if promotion != noPiece {
		uci += string(rune(promotion.kind()))
	}
	cm, err := chess.UCINotation{}.Decode(s.pos, uci)
	if err != nil {
		return Move{}, illegal("%v", err)
	}

	captureSq := req.To
	if cm.HasTag(chess.EnPassant) {
		if target >= 0 || abs(req.To.File()-req.From.File()) != 1 {
			return Move{}, illegal("pawn cannot move onto the en-passant square %s", req.To)
		}
		captureSq = NewSquare(req.To.File(), req.To.Rank()-1)
		if color == Black {
			captureSq = NewSquare(req.To.File(), req.To.Rank()+1)
		}
		target = s.occupant[captureSq]
		if target < 0 || s.Pieces[target].Type.Color() == color || s.Pieces[target].Current().kind() != 'p' {
			return Move{}, illegal("no pawn to capture en passant on %s", captureSq)
		}
	}

	rookIdx, rookFrom, rookTo := -1, NoSquare, NoSquare
	if cm.HasTag(chess.KingSideCastle) || cm.HasTag(chess.QueenSideCastle) {
		rookFrom, rookTo = castleRook(req.From, cm.HasTag(chess.KingSideCastle))
		rookIdx = s.occupant[rookFrom]
		if rookIdx < 0 || s.Pieces[rookIdx].Current().kind() != 'r' || s.Pieces[rookIdx].Type.Color() != color {
			return Move{}, illegal("no rook to castle with on %s", rookFrom)
		}
		if s.occupant[rookTo] >= 0 || target >= 0 {
			return Move{}, illegal("castling path is occupied")
		}
	}

	// Validation done; everything below commits.
	ply := len(s.Moves) + 1
	move := Move{
		ID:        moveID,
		Ply:       ply,
		PieceID:   piece.ID,
		From:      req.From,
		To:        req.To,
		Promotion: promotion,
		Timestamp: now,
	}

	if target >= 0 {
		s.Pieces[target].Captured = true
		s.at[target] = NoSquare
		s.occupant[captureSq] = -1
		move.CapturedPieceID = s.Pieces[target].ID
	}
	s.relocate(idx, req.From, req.To, moveID, ply, now)
	if promotes {
		s.Pieces[idx].PromotedTo = promotion
	}
	if rookIdx >= 0 {
		s.relocate(rookIdx, rookFrom, rookTo, moveID, ply, now)
	}

	s.pos = s.pos.Update(cm)
	s.Board = Board{Layout: s.pos.String(), UpdatedAt: now}
	move.LayoutAfter = s.Board.Layout
	s.Moves = append(s.Moves, move)
	s.record()
	return move, nil
}

// relocate moves piece idx and appends its new Position.
func (s *State) relocate(idx int, from, to Square, moveID uuid.UUID, ply int, now time.Time) {
	p := s.Pieces[idx]
	s.occupant[from] = -1
	s.occupant[to] = idx
	s.at[idx] = to
	s.Positions = append(s.Positions, Position{
		ID:        uuid.NewSHA1(moveID, p.ID[:]),
		PieceID:   p.ID,
		Square:    to,
		Ply:       ply,
		Timestamp: now,
	})
}

// Clone returns a deep copy. The chess position is shared: Update never
// mutates it.
func (s *State) Clone() *State {
	c := *s
	c.Pieces = append([]Piece(nil), s.Pieces...)
	c.Positions = append([]Position(nil), s.Positions...)
	c.Moves = append([]Move(nil), s.Moves...)
	c.at = append([]Square(nil), s.at...)
	c.index = make(map[uuid.UUID]int, len(s.index))
	for k, v := range s.index {
		c.index[k] = v
	}
	c.repetitions = make(map[string]int, len(s.repetitions))
	for k, v := range s.repetitions {
		c.repetitions[k] = v
	}
	return &c
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
