package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/randomtoy/elo-chess-backend/internal/domain/rating"
	"github.com/randomtoy/elo-chess-backend/internal/ports"
)

const queryGetElo = `
SELECT player_id, rating, k_factor, wins, losses, draws, updated_at
FROM elo
WHERE player_id = $1`

const queryEnsureElo = `
INSERT INTO elo (player_id, rating, k_factor, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (player_id) DO NOTHING`

const queryLockElo = queryGetElo + `
FOR UPDATE`

const queryUpdateElo = `
UPDATE elo SET rating = $1, wins = $2, losses = $3, draws = $4, updated_at = $5
WHERE player_id = $6`

const queryUpsertKFactor = `
INSERT INTO elo (player_id, rating, k_factor, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (player_id) DO UPDATE SET k_factor = EXCLUDED.k_factor, updated_at = EXCLUDED.updated_at
RETURNING player_id, rating, k_factor, wins, losses, draws, updated_at`

const querySettled = `
SELECT rating_before FROM settlements
WHERE game_id = $1 AND player_id = $2`

const queryInsertSettlement = `
INSERT INTO settlements (game_id, player_id, score, rating_before, rating_after, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

// RatingStore is a PostgreSQL-backed ports.RatingStore. Each settlement
// locks the player's elo row, so concurrent settlements for one player are
// serialized and none is lost.
type RatingStore struct {
	pool    *pgxpool.Pool
	kFactor int
}

// NewRatingStore creates a store whose new players start with kFactor.
func NewRatingStore(pool *pgxpool.Pool, kFactor int) *RatingStore {
	return &RatingStore{pool: pool, kFactor: kFactor}
}

func (s *RatingStore) Get(ctx context.Context, playerID uuid.UUID) (rating.Elo, error) {
	e, err := scanElo(s.pool.QueryRow(ctx, queryGetElo, playerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return rating.NewElo(playerID, s.kFactor, time.Now().UTC()), nil
	}
	return e, err
}

func (s *RatingStore) Settle(ctx context.Context, st ports.Settlement) (rating.Elo, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return rating.Elo{}, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	fresh := rating.NewElo(st.PlayerID, s.kFactor, st.At)
	if _, err := tx.Exec(ctx, queryEnsureElo, fresh.PlayerID, fresh.Rating, fresh.KFactor, fresh.UpdatedAt); err != nil {
		return rating.Elo{}, err
	}
	cur, err := scanElo(tx.QueryRow(ctx, queryLockElo, st.PlayerID))
	if err != nil {
		return rating.Elo{}, err
	}

	var before int
	err = tx.QueryRow(ctx, querySettled, st.GameID, st.PlayerID).Scan(&before)
	switch {
	case err == nil:
		return rating.Elo{}, fmt.Errorf("%w: game %s player %s", rating.ErrAlreadySettled, st.GameID, st.PlayerID)
	case !errors.Is(err, pgx.ErrNoRows):
		return rating.Elo{}, err
	}

	next, err := cur.Apply(st.Score, st.OpponentRating, st.At)
	if err != nil {
		return rating.Elo{}, err
	}
	if _, err := tx.Exec(ctx, queryUpdateElo,
		next.Rating, next.Wins, next.Losses, next.Draws, next.UpdatedAt, next.PlayerID,
	); err != nil {
		return rating.Elo{}, err
	}
	if _, err := tx.Exec(ctx, queryInsertSettlement,
		st.GameID, st.PlayerID, float64(st.Score), cur.Rating, next.Rating, st.At,
	); err != nil {
		return rating.Elo{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return rating.Elo{}, err
	}
	return next, nil
}

func (s *RatingStore) SetKFactor(ctx context.Context, playerID uuid.UUID, kFactor int) (rating.Elo, error) {
	now := time.Now().UTC()
	fresh, err := rating.NewElo(playerID, s.kFactor, now).WithKFactor(kFactor, now)
	if err != nil {
		return rating.Elo{}, err
	}
	return scanElo(s.pool.QueryRow(ctx, queryUpsertKFactor, fresh.PlayerID, fresh.Rating, fresh.KFactor, fresh.UpdatedAt))
}

func (s *RatingStore) RatingBefore(ctx context.Context, gameID, playerID uuid.UUID) (int, bool, error) {
	var before int
	err := s.pool.QueryRow(ctx, querySettled, gameID, playerID).Scan(&before)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return before, true, nil
}

func scanElo(row pgx.Row) (rating.Elo, error) {
	var e rating.Elo
	err := row.Scan(&e.PlayerID, &e.Rating, &e.KFactor, &e.Wins, &e.Losses, &e.Draws, &e.UpdatedAt)
	return e, err
}
