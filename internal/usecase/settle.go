package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/randomtoy/elo-chess-backend/internal/domain/game"
	"github.com/randomtoy/elo-chess-backend/internal/domain/rating"
	"github.com/randomtoy/elo-chess-backend/internal/ports"
)

// Settler updates both players' ratings once a rated game reaches a terminal
// status with a defined score.
type Settler struct {
	games   ports.GameStore
	ratings ports.RatingStore
	locks   *GameLocks
	log     *zap.Logger
}

func NewSettler(games ports.GameStore, ratings ports.RatingStore, locks *GameLocks, log *zap.Logger) *Settler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Settler{games: games, ratings: ratings, locks: locks, log: log}
}

// Settle settles gameID if it is still pending. It is the explicit retry
// path for a settlement that failed after the game ended. Returns
// rating.ErrAlreadySettled when there is nothing left to do and
// ErrNotSettleable for unrated, open or scoreless games.
func (s *Settler) Settle(ctx context.Context, gameID uuid.UUID) error {
	unlock := s.locks.Lock(gameID)
	defer unlock()

	g, err := loadGame(ctx, s.games, gameID)
	if err != nil {
		return err
	}
	if g.Settled {
		return rating.ErrAlreadySettled
	}
	if !g.NeedsSettlement() {
		return fmt.Errorf("%w: rated=%t status=%q", ErrNotSettleable, g.Rated, g.Result.Status)
	}
	return s.settle(ctx, g)
}

// SettlePending retries every rated terminal game left unsettled and returns
// how many were settled.
func (s *Settler) SettlePending(ctx context.Context) (int, error) {
	pending, err := s.games.ListUnsettled(ctx)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, g := range pending {
		if err := ctx.Err(); err != nil {
			return settled, err
		}
		err := s.Settle(ctx, g.ID)
		switch {
		case err == nil:
			settled++
		case errors.Is(err, rating.ErrAlreadySettled):
		default:
			s.log.Warn("pending settlement failed", zap.Stringer("game_id", g.ID), zap.Error(err))
		}
	}
	return settled, nil
}

// afterSave runs the automatic settlement for a game that was just saved.
// The caller holds the game lock. A failure is logged and left for Settle.
func (s *Settler) afterSave(ctx context.Context, g *game.Game) {
	if !g.NeedsSettlement() {
		return
	}
	if err := s.settle(ctx, g); err != nil {
		s.log.Error("settlement failed",
			zap.Stringer("game_id", g.ID),
			zap.String("status", string(g.Result.Status)),
			zap.Error(err),
		)
	}
}

// settle applies both players' updates against their pre-game ratings and
// marks the game settled. The caller holds the game lock.
func (s *Settler) settle(ctx context.Context, g *game.Game) error {
	white, black, ok := g.Scores()
	if !ok {
		return fmt.Errorf("%w: no score for %q", ErrNotSettleable, g.Result.Status)
	}

	var whiteBefore, blackBefore int
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		whiteBefore, err = s.preGameRating(egCtx, g.ID, g.White)
		return err
	})
	eg.Go(func() error {
		var err error
		blackBefore, err = s.preGameRating(egCtx, g.ID, g.Black)
		return err
	})
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}

	now := time.Now().UTC()
	updates := []ports.Settlement{
		{GameID: g.ID, PlayerID: g.White, Score: white, OpponentRating: blackBefore, At: now},
		{GameID: g.ID, PlayerID: g.Black, Score: black, OpponentRating: whiteBefore, At: now},
	}
	var errs []error
	for _, u := range updates {
		elo, err := s.ratings.Settle(ctx, u)
		switch {
		case err == nil:
			s.log.Info("rating updated",
				zap.Stringer("game_id", g.ID),
				zap.Stringer("player_id", u.PlayerID),
				zap.Float64("score", float64(u.Score)),
				zap.Int("rating", elo.Rating),
			)
		case errors.Is(err, rating.ErrAlreadySettled):
		default:
			errs = append(errs, fmt.Errorf("settle player %s: %w", u.PlayerID, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	expected := g.Version
	if err := g.MarkSettled(now); err != nil {
		return err
	}
	if err := s.games.Save(ctx, g, expected); err != nil {
		g.Settled = false
		g.Version = expected
		return fmt.Errorf("mark settled: %w", err)
	}
	return nil
}

// preGameRating is the rating the player held before this game: the value
// recorded at an earlier partial settlement, else the current one.
func (s *Settler) preGameRating(ctx context.Context, gameID, playerID uuid.UUID) (int, error) {
	before, ok, err := s.ratings.RatingBefore(ctx, gameID, playerID)
	if err != nil {
		return 0, err
	}
	if ok {
		return before, nil
	}
	elo, err := s.ratings.Get(ctx, playerID)
	if err != nil {
		return 0, err
	}
	return elo.Rating, nil
}
