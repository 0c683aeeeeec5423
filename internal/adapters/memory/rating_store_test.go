package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/randomtoy/elo-chess-backend/internal/adapters/memory"
	"github.com/randomtoy/elo-chess-backend/internal/domain/rating"
	"github.com/randomtoy/elo-chess-backend/internal/ports"
)

func TestRatingStore_DefaultRecord(t *testing.T) {
	s := memory.NewRatingStore(40)
	p := uuid.New()
	e, err := s.Get(context.Background(), p)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e.PlayerID != p || e.Rating != rating.DefaultRating || e.KFactor != 40 || e.Games() != 0 {
		t.Fatalf("unexpected default record %+v", e)
	}
}

func TestRatingStore_SettleOnce(t *testing.T) {
	s := memory.NewRatingStore(rating.DefaultKFactor)
	ctx := context.Background()
	st := ports.Settlement{
		GameID:         uuid.New(),
		PlayerID:       uuid.New(),
		Score:          rating.Win,
		OpponentRating: 1200,
		At:             t0,
	}

	e, err := s.Settle(ctx, st)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if e.Rating != 1216 || e.Wins != 1 || !e.UpdatedAt.Equal(t0) {
		t.Fatalf("unexpected record %+v", e)
	}

	if _, err := s.Settle(ctx, st); !errors.Is(err, rating.ErrAlreadySettled) {
		t.Fatalf("second settle: want ErrAlreadySettled, got %v", err)
	}
	got, _ := s.Get(ctx, st.PlayerID)
	if got.Rating != 1216 || got.Games() != 1 {
		t.Fatalf("record changed by a rejected settle: %+v", got)
	}

	before, ok, err := s.RatingBefore(ctx, st.GameID, st.PlayerID)
	if err != nil || !ok || before != 1200 {
		t.Fatalf("RatingBefore: want 1200 true, got %d %v %v", before, ok, err)
	}
	if _, ok, _ := s.RatingBefore(ctx, uuid.New(), st.PlayerID); ok {
		t.Fatal("RatingBefore reported an unknown game as settled")
	}
}

func TestRatingStore_SetKFactor(t *testing.T) {
	s := memory.NewRatingStore(rating.DefaultKFactor)
	ctx := context.Background()
	p := uuid.New()

	e, err := s.SetKFactor(ctx, p, 16)
	if err != nil {
		t.Fatalf("set k-factor: %v", err)
	}
	if e.KFactor != 16 || e.Rating != rating.DefaultRating {
		t.Fatalf("unexpected record %+v", e)
	}
	if _, err := s.SetKFactor(ctx, p, 0); !errors.Is(err, rating.ErrInvalidKFactor) {
		t.Fatalf("want ErrInvalidKFactor, got %v", err)
	}

	st := ports.Settlement{GameID: uuid.New(), PlayerID: p, Score: rating.Win, OpponentRating: 1200, At: t0}
	e, err = s.Settle(ctx, st)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if e.Rating != 1208 || e.KFactor != 16 {
		t.Fatalf("settle ignored the k-factor: %+v", e)
	}
}

func TestRatingStore_InvalidScoreLeavesRecord(t *testing.T) {
	s := memory.NewRatingStore(rating.DefaultKFactor)
	ctx := context.Background()
	st := ports.Settlement{GameID: uuid.New(), PlayerID: uuid.New(), Score: 0.7, OpponentRating: 1200, At: t0}

	if _, err := s.Settle(ctx, st); !errors.Is(err, rating.ErrInvalidScore) {
		t.Fatalf("want ErrInvalidScore, got %v", err)
	}
	if _, ok, _ := s.RatingBefore(ctx, st.GameID, st.PlayerID); ok {
		t.Fatal("failed settle must not be recorded")
	}
}

func TestRatingStore_ConcurrentSettleSamePlayer(t *testing.T) {
	s := memory.NewRatingStore(rating.DefaultKFactor)
	ctx := context.Background()
	p := uuid.New()

	const games = 50
	var wg sync.WaitGroup
	for i := 0; i < games; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Settle(ctx, ports.Settlement{
				GameID:         uuid.New(),
				PlayerID:       p,
				Score:          rating.Draw,
				OpponentRating: 1200,
				At:             t0,
			})
			if err != nil {
				t.Errorf("settle: %v", err)
			}
		}()
	}
	wg.Wait()

	e, _ := s.Get(ctx, p)
	if e.Draws != games {
		t.Fatalf("lost updates: want %d draws, got %d", games, e.Draws)
	}
}
