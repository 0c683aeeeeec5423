// Package rating implements the Elo rating update used to settle finished games.
//
// See https://en.wikipedia.org/wiki/Elo_rating_system#Mathematical_details.
package rating

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultRating is assigned to a player on their first rated game.
	DefaultRating = 1200
	// DefaultKFactor is the sensitivity used when no per-player value is configured.
	DefaultKFactor = 32
)

// Sentinel errors; the transport layer maps these to HTTP codes.
var (
	ErrInvalidScore   = errors.New("invalid_score")
	ErrInvalidKFactor = errors.New("invalid_k_factor")
	ErrAlreadySettled = errors.New("already_settled")
)

// Score is a game result from one player's perspective.
type Score float64

const (
	Loss Score = 0
	Draw Score = 0.5
	Win  Score = 1
)

// Valid reports whether s is one of Loss, Draw or Win.
func (s Score) Valid() bool {
	return s == Loss || s == Draw || s == Win
}

// Opposite returns the opponent's score for the same game.
func (s Score) Opposite() Score {
	return Win - s
}

// ExpectedScore returns 1 / (1 + 10^((opponent-self)/400)).
func ExpectedScore(self, opponent int) float64 {
	return 1 / (1 + math.Pow(10, float64(opponent-self)/400))
}

// NewRating returns self + k*(score - E), rounded half to even.
func NewRating(self, kFactor int, score Score, opponent int) (int, error) {
	if !score.Valid() {
		return 0, fmt.Errorf("%w: %v", ErrInvalidScore, float64(score))
	}
	if kFactor <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidKFactor, kFactor)
	}
	expected := ExpectedScore(self, opponent)
	next := float64(self) + float64(kFactor)*(float64(score)-expected)
	return int(math.RoundToEven(next)), nil
}

// Elo is a player's rating record. Counters only ever grow.
type Elo struct {
	PlayerID  uuid.UUID `json:"player_id"`
	Rating    int       `json:"rating"`
	KFactor   int       `json:"k_factor"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
	Draws     int       `json:"draws"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewElo returns the record a player starts with. A non-positive kFactor
// falls back to DefaultKFactor.
func NewElo(playerID uuid.UUID, kFactor int, now time.Time) Elo {
	if kFactor <= 0 {
		kFactor = DefaultKFactor
	}
	return Elo{
		PlayerID:  playerID,
		Rating:    DefaultRating,
		KFactor:   kFactor,
		UpdatedAt: now,
	}
}

// WithKFactor returns e with a new k-factor, used for player tiers such as
// provisional or master. Rating and counters are kept.
func (e Elo) WithKFactor(kFactor int, now time.Time) (Elo, error) {
	if kFactor <= 0 {
		return e, fmt.Errorf("%w: %d", ErrInvalidKFactor, kFactor)
	}
	out := e
	out.KFactor = kFactor
	out.UpdatedAt = now
	return out, nil
}

// Games returns the number of settled games.
func (e Elo) Games() int {
	return e.Wins + e.Losses + e.Draws
}

// Apply returns e updated for one game against an opponent rated opponent.
// The receiver is not modified.
func (e Elo) Apply(score Score, opponent int, now time.Time) (Elo, error) {
	next, err := NewRating(e.Rating, e.KFactor, score, opponent)
	if err != nil {
		return e, err
	}
	out := e
	out.Rating = next
	switch score {
	case Win:
		out.Wins++
	case Loss:
		out.Losses++
	case Draw:
		out.Draws++
	}
	out.UpdatedAt = now
	return out, nil
}
