package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/randomtoy/elo-chess-backend/internal/domain/game"
	"github.com/randomtoy/elo-chess-backend/internal/ports"
)

// Store is a thread-safe in-memory GameStore. Games are cloned on the way in
// and out so callers never share state with the store.
type Store struct {
	mu    sync.Mutex
	games map[uuid.UUID]*game.Game
}

func New() *Store {
	return &Store{games: make(map[uuid.UUID]*game.Game)}
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (*game.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return g.Clone(), nil
}

func (s *Store) Insert(_ context.Context, g *game.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[g.ID]; ok {
		return fmt.Errorf("%w: game %s already exists", ports.ErrVersionConflict, g.ID)
	}
	s.games[g.ID] = g.Clone()
	return nil
}

// Save overwrites the game only when the current stored Version equals
// expectedVersion, providing optimistic concurrency safety.
func (s *Store) Save(_ context.Context, g *game.Game, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.games[g.ID]
	if !ok {
		return ports.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return ports.ErrVersionConflict
	}
	s.games[g.ID] = g.Clone()
	return nil
}

func (s *Store) ListUnsettled(_ context.Context) ([]*game.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*game.Game
	for _, g := range s.games {
		if g.NeedsSettlement() {
			out = append(out, g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EndedAt.Before(*out[j].EndedAt)
	})
	return out, nil
}
