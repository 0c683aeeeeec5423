package ports

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/randomtoy/elo-chess-backend/internal/domain/game"
	"github.com/randomtoy/elo-chess-backend/internal/domain/rating"
)

// Sentinel store errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
)

// GameStore is the persistence interface for games.
type GameStore interface {
	Get(ctx context.Context, id uuid.UUID) (*game.Game, error)

	// Insert persists a newly created game together with its pieces and
	// initial positions.
	Insert(ctx context.Context, g *game.Game) error

	// Save persists one state transition: the game row plus any moves,
	// positions, piece flags and claim items added since the stored version.
	// It succeeds only when the stored version equals expectedVersion and
	// returns ErrVersionConflict otherwise.
	Save(ctx context.Context, g *game.Game, expectedVersion int) error

	// ListUnsettled returns rated terminal games whose ratings were never
	// updated, oldest first.
	ListUnsettled(ctx context.Context) ([]*game.Game, error)
}

// Settlement is one player's rating update for one finished game.
type Settlement struct {
	GameID         uuid.UUID
	PlayerID       uuid.UUID
	Score          rating.Score
	OpponentRating int
	At             time.Time
}

// RatingStore holds Elo records.
type RatingStore interface {
	// Get returns the player's record, or a fresh default record when the
	// player has never been settled. A default record is not persisted.
	Get(ctx context.Context, playerID uuid.UUID) (rating.Elo, error)

	// Settle applies s atomically for the player and records the
	// (game, player) pair. It returns rating.ErrAlreadySettled, leaving the
	// record untouched, when the pair was recorded before.
	Settle(ctx context.Context, s Settlement) (rating.Elo, error)

	// RatingBefore returns the rating the player held when the game was
	// settled for them; ok is false if it has not been settled yet.
	RatingBefore(ctx context.Context, gameID, playerID uuid.UUID) (before int, ok bool, err error)

	// SetKFactor changes the k-factor used for the player's future
	// settlements, creating the record if needed. A non-positive value
	// fails with rating.ErrInvalidKFactor.
	SetKFactor(ctx context.Context, playerID uuid.UUID, kFactor int) (rating.Elo, error)
}

// RateLimiter gates requests by IP and optional client token.
type RateLimiter interface {
	Allow(ip, token string) bool
}
