package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ClaimType is a draw claim a player may raise.
type ClaimType string

const (
	ClaimThreefoldRepetition ClaimType = "tr"
	ClaimFiftyMoves          ClaimType = "ft"
	ClaimDraw                ClaimType = "d"
)

// ParseClaimType accepts the short codes and their snake_case names.
func ParseClaimType(s string) (ClaimType, error) {
	switch s {
	case "tr", "threefold_repetition":
		return ClaimThreefoldRepetition, nil
	case "ft", "fifty_moves":
		return ClaimFiftyMoves, nil
	case "d", "draw":
		return ClaimDraw, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownClaimType, s)
}

func (c ClaimType) Name() string {
	switch c {
	case ClaimThreefoldRepetition:
		return "threefold_repetition"
	case ClaimFiftyMoves:
		return "fifty_moves"
	case ClaimDraw:
		return "draw"
	default:
		return string(c)
	}
}

// Verdict is the adjudication of one claim.
type Verdict string

const (
	VerdictUpheld   Verdict = "upheld"
	VerdictRejected Verdict = "rejected"
)

// ClaimItem records who raised which claim, when, and how it was decided.
// Rejected items stay on the game for audit.
type ClaimItem struct {
	ID        uuid.UUID
	PlayerID  uuid.UUID
	Type      ClaimType
	Ply       int
	Verdict   Verdict
	Timestamp time.Time
}

// fiftyMoveHalfmoves is fifty moves by each side without a pawn move or capture.
const fiftyMoveHalfmoves = 100

// Adjudicator decides draw claims against a game's history. DrawWindow bounds
// how old the opponent's draw offer may be; zero means no bound.
type Adjudicator struct {
	DrawWindow time.Duration
}

// Evaluate decides item against g without modifying either.
func (a Adjudicator) Evaluate(g *Game, item ClaimItem) (Verdict, error) {
	switch item.Type {
	case ClaimThreefoldRepetition:
		if g.State.MaxRepetition() >= 3 {
			return VerdictUpheld, nil
		}
		return VerdictRejected, nil
	case ClaimFiftyMoves:
		if g.State.HalfmoveClock() >= fiftyMoveHalfmoves {
			return VerdictUpheld, nil
		}
		return VerdictRejected, nil
	case ClaimDraw:
		if a.hasOffer(g, g.opponent(item.PlayerID), item.Timestamp) {
			return VerdictUpheld, nil
		}
		return VerdictRejected, nil
	default:
		return VerdictRejected, fmt.Errorf("%w: %q", ErrUnknownClaimType, item.Type)
	}
}

func (a Adjudicator) hasOffer(g *Game, player uuid.UUID, at time.Time) bool {
	for i := len(g.Claims) - 1; i >= 0; i-- {
		c := g.Claims[i]
		if c.Type != ClaimDraw || c.PlayerID != player {
			continue
		}
		if a.DrawWindow > 0 && at.Sub(c.Timestamp) > a.DrawWindow {
			return false
		}
		return true
	}
	return false
}
