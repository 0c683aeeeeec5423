package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/randomtoy/elo-chess-backend/internal/domain/game"
	"github.com/randomtoy/elo-chess-backend/internal/ports"
)

// MoveSubmitter handles move submission.
type MoveSubmitter struct {
	m mutator
}

func NewMoveSubmitter(store ports.GameStore, locks *GameLocks, settler *Settler) *MoveSubmitter {
	return &MoveSubmitter{m: mutator{store: store, locks: locks, settler: settler}}
}

// ApplyMove applies req to gameID. The move is checked structurally only;
// chess legality is the caller's responsibility. Returns ErrGameNotFound,
// game.ErrIllegalMove, game.ErrGameNotActive, game.ErrGameAlreadyTerminal
// or ports.ErrVersionConflict.
func (s *MoveSubmitter) ApplyMove(ctx context.Context, gameID uuid.UUID, req game.MoveRequest) (*game.Game, game.Move, error) {
	var mv game.Move
	g, err := s.m.mutate(ctx, gameID, func(g *game.Game, now time.Time) error {
		var err error
		mv, err = g.ApplyMove(req, now)
		return err
	})
	if err != nil {
		return nil, game.Move{}, err
	}
	return g, mv, nil
}
