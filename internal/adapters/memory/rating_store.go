package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randomtoy/elo-chess-backend/internal/domain/rating"
	"github.com/randomtoy/elo-chess-backend/internal/ports"
)

type settlementKey struct {
	game, player uuid.UUID
}

// RatingStore is a thread-safe in-memory ports.RatingStore.
type RatingStore struct {
	mu      sync.Mutex
	kFactor int
	elos    map[uuid.UUID]rating.Elo
	// settled maps each (game, player) pair to the rating held before it.
	settled map[settlementKey]int
}

// NewRatingStore creates a store whose new players start with kFactor.
func NewRatingStore(kFactor int) *RatingStore {
	return &RatingStore{
		kFactor: kFactor,
		elos:    make(map[uuid.UUID]rating.Elo),
		settled: make(map[settlementKey]int),
	}
}

func (s *RatingStore) Get(_ context.Context, playerID uuid.UUID) (rating.Elo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(playerID, time.Now().UTC()), nil
}

func (s *RatingStore) get(playerID uuid.UUID, now time.Time) rating.Elo {
	if e, ok := s.elos[playerID]; ok {
		return e
	}
	return rating.NewElo(playerID, s.kFactor, now)
}

func (s *RatingStore) Settle(_ context.Context, st ports.Settlement) (rating.Elo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := settlementKey{game: st.GameID, player: st.PlayerID}
	if _, done := s.settled[key]; done {
		return rating.Elo{}, fmt.Errorf("%w: game %s player %s", rating.ErrAlreadySettled, st.GameID, st.PlayerID)
	}
	cur := s.get(st.PlayerID, st.At)
	next, err := cur.Apply(st.Score, st.OpponentRating, st.At)
	if err != nil {
		return rating.Elo{}, err
	}
	s.elos[st.PlayerID] = next
	s.settled[key] = cur.Rating
	return next, nil
}

func (s *RatingStore) SetKFactor(_ context.Context, playerID uuid.UUID, kFactor int) (rating.Elo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	next, err := s.get(playerID, now).WithKFactor(kFactor, now)
	if err != nil {
		return rating.Elo{}, err
	}
	s.elos[playerID] = next
	return next, nil
}

func (s *RatingStore) RatingBefore(_ context.Context, gameID, playerID uuid.UUID) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before, ok := s.settled[settlementKey{game: gameID, player: playerID}]
	return before, ok, nil
}
