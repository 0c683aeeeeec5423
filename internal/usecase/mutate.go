package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/randomtoy/elo-chess-backend/internal/domain/game"
	"github.com/randomtoy/elo-chess-backend/internal/ports"
)

func loadGame(ctx context.Context, store ports.GameStore, id uuid.UUID) (*game.Game, error) {
	g, err := store.Get(ctx, id)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	return g, err
}

// mutator runs one state transition under the game lock: load, apply, save
// with version CAS, then settle if the game just became settleable.
type mutator struct {
	store   ports.GameStore
	locks   *GameLocks
	settler *Settler
}

func (m mutator) mutate(ctx context.Context, id uuid.UUID, apply func(g *game.Game, now time.Time) error) (*game.Game, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	g, err := loadGame(ctx, m.store, id)
	if err != nil {
		return nil, err
	}
	expected := g.Version
	if err := apply(g, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := m.store.Save(ctx, g, expected); err != nil {
		return nil, err
	}
	if m.settler != nil {
		m.settler.afterSave(ctx, g)
	}
	return g, nil
}
