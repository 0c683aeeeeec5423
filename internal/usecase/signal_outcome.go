package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/randomtoy/elo-chess-backend/internal/domain/game"
	"github.com/randomtoy/elo-chess-backend/internal/ports"
)

// OutcomeSignaler applies results decided outside the core: checkmate,
// resignation, clock flags, breaches, postponement and the like.
type OutcomeSignaler struct {
	m mutator
}

func NewOutcomeSignaler(store ports.GameStore, locks *GameLocks, settler *Settler) *OutcomeSignaler {
	return &OutcomeSignaler{m: mutator{store: store, locks: locks, settler: settler}}
}

func (s *OutcomeSignaler) SignalExternalOutcome(ctx context.Context, gameID uuid.UUID, o game.Outcome) (game.Result, error) {
	g, err := s.m.mutate(ctx, gameID, func(g *game.Game, now time.Time) error {
		_, err := g.Signal(o, now)
		return err
	})
	if err != nil {
		return game.Result{}, err
	}
	return g.Result, nil
}
