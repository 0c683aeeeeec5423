package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/randomtoy/elo-chess-backend/internal/domain/game"
	"github.com/randomtoy/elo-chess-backend/internal/ports"
)

// CreateGameRequest is the input to CreateGame. An empty Layout starts from
// the standard position.
type CreateGameRequest struct {
	White  uuid.UUID
	Black  uuid.UUID
	Rated  bool
	Layout string
}

// GameCreator handles game creation.
type GameCreator struct {
	store ports.GameStore
}

func NewGameCreator(store ports.GameStore) *GameCreator {
	return &GameCreator{store: store}
}

// CreateGame creates a Scheduled game with its pieces on their initial squares.
func (c *GameCreator) CreateGame(ctx context.Context, req CreateGameRequest) (*game.Game, error) {
	g, err := game.NewGame(uuid.New(), req.White, req.Black, game.Options{
		Rated:  req.Rated,
		Layout: req.Layout,
	}, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := c.store.Insert(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}
