// Package redis stores Elo records in Redis. Each settlement is an optimistic
// WATCH/MULTI transaction over the player's record and the settlement marker.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/randomtoy/elo-chess-backend/internal/domain/rating"
	"github.com/randomtoy/elo-chess-backend/internal/ports"
)

const maxTxRetries = 50

// RatingStore is a Redis-backed ports.RatingStore.
type RatingStore struct {
	rdb     *goredis.Client
	kFactor int
}

// NewRatingStore creates a store whose new players start with kFactor.
func NewRatingStore(rdb *goredis.Client, kFactor int) *RatingStore {
	return &RatingStore{rdb: rdb, kFactor: kFactor}
}

// Connect parses a redis:// URL and checks the server answers.
func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func keyElo(player uuid.UUID) string { return "elo:" + player.String() }

func keySettled(game, player uuid.UUID) string {
	return "elo:settled:" + game.String() + ":" + player.String()
}

type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func (s *RatingStore) load(ctx context.Context, c getter, player uuid.UUID, now time.Time) (rating.Elo, error) {
	raw, err := c.Get(ctx, keyElo(player)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return rating.NewElo(player, s.kFactor, now), nil
	}
	if err != nil {
		return rating.Elo{}, err
	}
	var e rating.Elo
	if err := json.Unmarshal(raw, &e); err != nil {
		return rating.Elo{}, fmt.Errorf("decode elo %s: %w", player, err)
	}
	return e, nil
}

func (s *RatingStore) Get(ctx context.Context, playerID uuid.UUID) (rating.Elo, error) {
	return s.load(ctx, s.rdb, playerID, time.Now().UTC())
}

func (s *RatingStore) Settle(ctx context.Context, st ports.Settlement) (rating.Elo, error) {
	eloKey := keyElo(st.PlayerID)
	markKey := keySettled(st.GameID, st.PlayerID)

	var out rating.Elo
	txf := func(tx *goredis.Tx) error {
		n, err := tx.Exists(ctx, markKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: game %s player %s", rating.ErrAlreadySettled, st.GameID, st.PlayerID)
		}
		cur, err := s.load(ctx, tx, st.PlayerID, st.At)
		if err != nil {
			return err
		}
		next, err := cur.Apply(st.Score, st.OpponentRating, st.At)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, eloKey, raw, 0)
			pipe.Set(ctx, markKey, cur.Rating, 0)
			return nil
		})
		if err == nil {
			out = next
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, eloKey, markKey)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return rating.Elo{}, err
		}
		return out, nil
	}
	return rating.Elo{}, fmt.Errorf("settle player %s: %w", st.PlayerID, goredis.TxFailedErr)
}

func (s *RatingStore) SetKFactor(ctx context.Context, playerID uuid.UUID, kFactor int) (rating.Elo, error) {
	eloKey := keyElo(playerID)

	var out rating.Elo
	txf := func(tx *goredis.Tx) error {
		now := time.Now().UTC()
		cur, err := s.load(ctx, tx, playerID, now)
		if err != nil {
			return err
		}
		next, err := cur.WithKFactor(kFactor, now)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, eloKey, raw, 0)
			return nil
		})
		if err == nil {
			out = next
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, eloKey)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return rating.Elo{}, err
		}
		return out, nil
	}
	return rating.Elo{}, fmt.Errorf("set k-factor for %s: %w", playerID, goredis.TxFailedErr)
}

func (s *RatingStore) RatingBefore(ctx context.Context, gameID, playerID uuid.UUID) (int, bool, error) {
	raw, err := s.rdb.Get(ctx, keySettled(gameID, playerID)).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	before, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("decode settlement marker: %w", err)
	}
	return before, true, nil
}
