package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/randomtoy/elo-chess-backend/internal/domain/game"
	"github.com/randomtoy/elo-chess-backend/internal/ports"
)

// ClaimSubmitter handles draw claims.
type ClaimSubmitter struct {
	m   mutator
	adj game.Adjudicator
}

func NewClaimSubmitter(store ports.GameStore, locks *GameLocks, settler *Settler, adj game.Adjudicator) *ClaimSubmitter {
	return &ClaimSubmitter{m: mutator{store: store, locks: locks, settler: settler}, adj: adj}
}

// SubmitClaim records and adjudicates a claim. A rejected claim is still
// persisted; an upheld one ends the game and triggers settlement.
func (s *ClaimSubmitter) SubmitClaim(ctx context.Context, gameID, playerID uuid.UUID, claim game.ClaimType) (game.Verdict, *game.Game, error) {
	var item game.ClaimItem
	g, err := s.m.mutate(ctx, gameID, func(g *game.Game, now time.Time) error {
		var err error
		item, err = g.SubmitClaim(playerID, claim, s.adj, now)
		return err
	})
	if err != nil {
		return "", nil, err
	}
	return item.Verdict, g, nil
}
