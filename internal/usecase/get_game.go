package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/randomtoy/elo-chess-backend/internal/domain/game"
	"github.com/randomtoy/elo-chess-backend/internal/domain/rating"
	"github.com/randomtoy/elo-chess-backend/internal/ports"
)

// GameGetter handles single-game retrieval.
type GameGetter struct {
	store ports.GameStore
}

func NewGameGetter(store ports.GameStore) *GameGetter {
	return &GameGetter{store: store}
}

func (g *GameGetter) GetGame(ctx context.Context, id uuid.UUID) (*game.Game, error) {
	return loadGame(ctx, g.store, id)
}

// RatingGetter handles rating lookups.
type RatingGetter struct {
	ratings ports.RatingStore
}

func NewRatingGetter(ratings ports.RatingStore) *RatingGetter {
	return &RatingGetter{ratings: ratings}
}

// GetRating returns the player's record; players without settled games get
// the default record.
func (r *RatingGetter) GetRating(ctx context.Context, playerID uuid.UUID) (rating.Elo, error) {
	return r.ratings.Get(ctx, playerID)
}

// KFactorSetter changes a player's k-factor tier.
type KFactorSetter struct {
	ratings ports.RatingStore
}

func NewKFactorSetter(ratings ports.RatingStore) *KFactorSetter {
	return &KFactorSetter{ratings: ratings}
}

// SetKFactor applies to settlements made after it returns; already settled
// games keep the deltas they were computed with.
func (k *KFactorSetter) SetKFactor(ctx context.Context, playerID uuid.UUID, kFactor int) (rating.Elo, error) {
	return k.ratings.SetKFactor(ctx, playerID, kFactor)
}
