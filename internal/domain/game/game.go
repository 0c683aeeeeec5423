package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/randomtoy/elo-chess-backend/internal/domain/rating"
)

// Game is the aggregate root: two players, one board with its history, one
// Result and the claims raised so far.
type Game struct {
	ID            uuid.UUID
	White         uuid.UUID
	Black         uuid.UUID
	Rated         bool
	InitialLayout string
	State         *State
	Result        Result
	Claims        []ClaimItem
	StartedAt     time.Time
	EndedAt       *time.Time
	// Settled is set once ratings have been updated for a terminal game.
	Settled   bool
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Options tune NewGame. An empty Layout means the standard starting position.
type Options struct {
	Rated  bool
	Layout string
}

// NewGame creates a Scheduled game. A rated game needs two distinct players.
func NewGame(id, white, black uuid.UUID, opts Options, now time.Time) (*Game, error) {
	if opts.Rated && white == black {
		return nil, ErrSamePlayer
	}
	initial := opts.Layout
	if initial == "" {
		initial = StandardLayout
	}
	st, err := NewState(id, initial, now)
	if err != nil {
		return nil, err
	}
	return &Game{
		ID:            id,
		White:         white,
		Black:         black,
		Rated:         opts.Rated,
		InitialLayout: st.Board.Layout,
		State:         st,
		Result:        Result{Status: StatusScheduled},
		StartedAt:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Snapshot is the persisted form of a game from which Restore rebuilds it.
type Snapshot struct {
	ID            uuid.UUID
	White         uuid.UUID
	Black         uuid.UUID
	Rated         bool
	InitialLayout string
	Result        Result
	Moves         []Move
	Claims        []ClaimItem
	StartedAt     time.Time
	EndedAt       *time.Time
	Settled       bool
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Restore replays a snapshot's move log to rebuild the game.
func Restore(snap Snapshot) (*Game, error) {
	st, err := ReplayState(snap.ID, snap.InitialLayout, snap.CreatedAt, snap.Moves)
	if err != nil {
		return nil, err
	}
	return &Game{
		ID:            snap.ID,
		White:         snap.White,
		Black:         snap.Black,
		Rated:         snap.Rated,
		InitialLayout: snap.InitialLayout,
		State:         st,
		Result:        snap.Result,
		Claims:        append([]ClaimItem(nil), snap.Claims...),
		StartedAt:     snap.StartedAt,
		EndedAt:       snap.EndedAt,
		Settled:       snap.Settled,
		Version:       snap.Version,
		CreatedAt:     snap.CreatedAt,
		UpdatedAt:     snap.UpdatedAt,
	}, nil
}

// Terminal reports whether the game can no longer change.
func (g *Game) Terminal() bool { return g.Result.Status.Terminal() }

// ColorOf returns the side a player has in this game.
func (g *Game) ColorOf(player uuid.UUID) Color {
	switch player {
	case g.White:
		return White
	case g.Black:
		return Black
	default:
		return NoColor
	}
}

func (g *Game) opponent(player uuid.UUID) uuid.UUID {
	if player == g.White {
		return g.Black
	}
	return g.White
}

// NeedsSettlement reports whether a rating update is due for this game.
func (g *Game) NeedsSettlement() bool {
	if !g.Rated || !g.Terminal() || g.Settled {
		return false
	}
	_, _, ok := g.Result.Scores()
	return ok
}

func (g *Game) checkMutable() error {
	if g.Terminal() {
		return fmt.Errorf("%w: %s", ErrGameAlreadyTerminal, g.Result.Status)
	}
	return nil
}

func (g *Game) touch(now time.Time) {
	g.Version++
	g.UpdatedAt = now
}

// transition replaces the Result and stamps EndedAt on entering a terminal status.
func (g *Game) transition(next Result, now time.Time) error {
	if err := g.checkMutable(); err != nil {
		return err
	}
	if !canTransition(g.Result.Status, next.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, g.Result.Status, next.Status)
	}
	g.Result = next
	if next.Status.Terminal() && g.EndedAt == nil {
		ended := now
		g.EndedAt = &ended
	}
	return nil
}

// ApplyMove applies a move and starts the game on its first move.
func (g *Game) ApplyMove(req MoveRequest, now time.Time) (Move, error) {
	if err := g.checkMutable(); err != nil {
		return Move{}, err
	}
	switch g.Result.Status {
	case StatusPostponed, StatusAdjourned:
		return Move{}, fmt.Errorf("%w: %s", ErrGameNotActive, g.Result.Status)
	}
	m, err := g.State.Apply(req, uuid.New(), now)
	if err != nil {
		return Move{}, err
	}
	if g.Result.Status == StatusScheduled {
		g.Result = Result{Status: StatusInProgress}
	}
	g.touch(now)
	return m, nil
}

// SubmitClaim records a claim by player and, when upheld, ends the game:
// repetition and fifty-move claims finish it under the compliance status,
// a mutual draw agreement as a Draw.
func (g *Game) SubmitClaim(player uuid.UUID, claim ClaimType, adj Adjudicator, now time.Time) (ClaimItem, error) {
	if err := g.checkMutable(); err != nil {
		return ClaimItem{}, err
	}
	if g.ColorOf(player) == NoColor {
		return ClaimItem{}, fmt.Errorf("%w: %s", ErrNotParticipant, player)
	}
	claim, err := ParseClaimType(string(claim))
	if err != nil {
		return ClaimItem{}, err
	}
	switch g.Result.Status {
	case StatusPostponed, StatusAdjourned:
		return ClaimItem{}, fmt.Errorf("%w: %s", ErrGameNotActive, g.Result.Status)
	}

	item := ClaimItem{
		ID:        uuid.New(),
		PlayerID:  player,
		Type:      claim,
		Ply:       g.State.Ply(),
		Timestamp: now,
	}
	verdict, err := adj.Evaluate(g, item)
	if err != nil {
		return ClaimItem{}, err
	}
	item.Verdict = verdict

	if verdict == VerdictUpheld {
		next := Result{Status: StatusFinishedCompliance}
		if claim == ClaimDraw {
			next = Result{Status: StatusDraw}
		}
		if err := g.transition(next, now); err != nil {
			return ClaimItem{}, err
		}
	}
	g.Claims = append(g.Claims, item)
	g.touch(now)
	return item, nil
}

// Signal applies an outcome decided outside the core.
func (g *Game) Signal(o Outcome, now time.Time) (Result, error) {
	if err := g.checkMutable(); err != nil {
		return g.Result, err
	}
	next, err := o.result()
	if err != nil {
		return g.Result, err
	}
	if next.Status == StatusFinishedNoMoves && g.State.Ply() > 0 {
		return g.Result, fmt.Errorf("%w: moves have been played", ErrInvalidTransition)
	}
	if err := g.transition(next, now); err != nil {
		return g.Result, err
	}
	g.touch(now)
	return g.Result, nil
}

// MarkSettled records that both players' ratings were updated for this game.
func (g *Game) MarkSettled(now time.Time) error {
	if !g.NeedsSettlement() {
		return fmt.Errorf("%w: settlement not due", ErrInvalidTransition)
	}
	g.Settled = true
	g.touch(now)
	return nil
}

// Scores returns the rating scores this game settles with, if any.
func (g *Game) Scores() (white, black rating.Score, ok bool) {
	return g.Result.Scores()
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (g *Game) Clone() *Game {
	c := *g
	c.State = g.State.Clone()
	c.Claims = append([]ClaimItem(nil), g.Claims...)
	if g.EndedAt != nil {
		ended := *g.EndedAt
		c.EndedAt = &ended
	}
	return &c
}
