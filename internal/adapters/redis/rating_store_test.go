package redis_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	redisstore "github.com/randomtoy/elo-chess-backend/internal/adapters/redis"
	"github.com/randomtoy/elo-chess-backend/internal/domain/rating"
	"github.com/randomtoy/elo-chess-backend/internal/ports"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*redisstore.RatingStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb, err := redisstore.Connect(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return redisstore.NewRatingStore(rdb, rating.DefaultKFactor), mr
}

func TestGet_Default(t *testing.T) {
	s, mr := newTestStore(t)
	p := uuid.New()
	e, err := s.Get(context.Background(), p)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e.Rating != rating.DefaultRating || e.KFactor != rating.DefaultKFactor || e.PlayerID != p {
		t.Fatalf("unexpected default %+v", e)
	}
	if mr.Exists("elo:" + p.String()) {
		t.Fatal("reading a default record must not persist it")
	}
}

func TestSettle(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	st := ports.Settlement{GameID: uuid.New(), PlayerID: uuid.New(), Score: rating.Win, OpponentRating: 1200, At: t0}

	e, err := s.Settle(ctx, st)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if e.Rating != 1216 || e.Wins != 1 {
		t.Fatalf("unexpected record %+v", e)
	}
	got, err := s.Get(ctx, st.PlayerID)
	if err != nil || got.Rating != 1216 || !got.UpdatedAt.Equal(t0) {
		t.Fatalf("stored record: %+v %v", got, err)
	}

	if _, err := s.Settle(ctx, st); !errors.Is(err, rating.ErrAlreadySettled) {
		t.Fatalf("second settle: want ErrAlreadySettled, got %v", err)
	}
	if got, _ := s.Get(ctx, st.PlayerID); got.Games() != 1 {
		t.Fatalf("counters changed by a rejected settle: %+v", got)
	}

	marker, err := mr.Get("elo:settled:" + st.GameID.String() + ":" + st.PlayerID.String())
	if err != nil || marker != "1200" {
		t.Fatalf("settlement marker: %q %v", marker, err)
	}
	before, ok, err := s.RatingBefore(ctx, st.GameID, st.PlayerID)
	if err != nil || !ok || before != 1200 {
		t.Fatalf("RatingBefore: %d %v %v", before, ok, err)
	}
}

func TestSetKFactor(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	p := uuid.New()

	e, err := s.SetKFactor(ctx, p, 16)
	if err != nil {
		t.Fatalf("set k-factor: %v", err)
	}
	if e.KFactor != 16 || e.Rating != rating.DefaultRating {
		t.Fatalf("unexpected record %+v", e)
	}
	if !mr.Exists("elo:" + p.String()) {
		t.Fatal("k-factor change was not persisted")
	}
	if _, err := s.SetKFactor(ctx, p, -1); !errors.Is(err, rating.ErrInvalidKFactor) {
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

func TestSettle_InvalidScore(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	st := ports.Settlement{GameID: uuid.New(), PlayerID: uuid.New(), Score: 2, OpponentRating: 1200, At: t0}
	if _, err := s.Settle(ctx, st); !errors.Is(err, rating.ErrInvalidScore) {
		t.Fatalf("want ErrInvalidScore, got %v", err)
	}
	if _, ok, _ := s.RatingBefore(ctx, st.GameID, st.PlayerID); ok {
		t.Fatal("failed settle must not leave a marker")
	}
}

func TestSettle_ConcurrentSamePlayer(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	p := uuid.New()

	const games = 5
	var wg sync.WaitGroup
	for i := 0; i < games; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st := ports.Settlement{GameID: uuid.New(), PlayerID: p, Score: rating.Draw, OpponentRating: 1400, At: t0}
			if _, err := s.Settle(ctx, st); err != nil {
				t.Errorf("settle: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.Get(ctx, p)
	if got.Draws != games {
		t.Fatalf("lost updates: want %d draws, got %d", games, got.Draws)
	}
}

func TestConnect_BadURL(t *testing.T) {
	if _, err := redisstore.Connect(context.Background(), "://nope"); err == nil {
		t.Fatal("want an error for a malformed URL")
	}
}
