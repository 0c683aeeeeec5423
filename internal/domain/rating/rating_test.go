package rating_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/randomtoy/elo-chess-backend/internal/domain/rating"
)

func TestExpectedScore_EqualRatings(t *testing.T) {
	if got := rating.ExpectedScore(1500, 1500); got != 0.5 {
		t.Fatalf("want 0.5, got %v", got)
	}
}

func TestExpectedScore_Complementary(t *testing.T) {
	a := rating.ExpectedScore(1700, 1400)
	b := rating.ExpectedScore(1400, 1700)
	if math.Abs(a+b-1) > 1e-12 {
		t.Fatalf("expected scores should sum to 1, got %v + %v", a, b)
	}
	if a <= 0.5 {
		t.Fatalf("stronger player should be favoured, got %v", a)
	}
}

func TestNewRating_EqualRatingsWin(t *testing.T) {
	winner, err := rating.NewRating(1200, 32, rating.Win, 1200)
	if err != nil {
		t.Fatalf("winner: %v", err)
	}
	loser, err := rating.NewRating(1200, 32, rating.Loss, 1200)
	if err != nil {
		t.Fatalf("loser: %v", err)
	}
	if winner != 1216 {
		t.Errorf("winner: want 1216, got %d", winner)
	}
	if loser != 1184 {
		t.Errorf("loser: want 1184, got %d", loser)
	}
}

func TestNewRating_DrawBetweenEqualsIsUnchanged(t *testing.T) {
	for _, r := range []int{800, 1200, 1201, 2450} {
		got, err := rating.NewRating(r, 32, rating.Draw, r)
		if err != nil {
			t.Fatalf("rating %d: %v", r, err)
		}
		if got != r {
			t.Errorf("rating %d: draw between equals should not move rating, got %d", r, got)
		}
	}
}

func TestNewRating_ZeroSumUnderEqualKFactor(t *testing.T) {
	pairs := []struct{ r1, r2 int }{
		{1200, 1200},
		{1300, 1200},
		{1500, 1000},
		{1000, 2000},
	}
	for _, p := range pairs {
		n1, err := rating.NewRating(p.r1, 32, rating.Win, p.r2)
		if err != nil {
			t.Fatalf("%v: %v", p, err)
		}
		n2, err := rating.NewRating(p.r2, 32, rating.Loss, p.r1)
		if err != nil {
			t.Fatalf("%v: %v", p, err)
		}
		if n1-p.r1 != -(n2 - p.r2) {
			t.Errorf("%v: deltas %d and %d are not zero-sum", p, n1-p.r1, n2-p.r2)
		}
	}
}

func TestNewRating_DifferentKFactorsAreIndependent(t *testing.T) {
	n1, _ := rating.NewRating(1200, 40, rating.Win, 1200)
	n2, _ := rating.NewRating(1200, 16, rating.Loss, 1200)
	if n1-1200 != 20 {
		t.Errorf("k=40 winner delta: want 20, got %d", n1-1200)
	}
	if n2-1200 != -8 {
		t.Errorf("k=16 loser delta: want -8, got %d", n2-1200)
	}
}

// An odd k-factor between equal ratings lands exactly on .5.
func TestNewRating_RoundsHalfToEven(t *testing.T) {
	up, _ := rating.NewRating(1200, 33, rating.Win, 1200) // 1216.5
	down, _ := rating.NewRating(1200, 33, rating.Loss, 1200)
	if up != 1216 {
		t.Errorf("1216.5: want 1216, got %d", up)
	}
	if down != 1184 { // 1183.5
		t.Errorf("1183.5: want 1184, got %d", down)
	}
}

func TestNewRating_InvalidScore(t *testing.T) {
	for _, s := range []rating.Score{-1, 0.25, 0.75, 2} {
		if _, err := rating.NewRating(1200, 32, s, 1200); !errors.Is(err, rating.ErrInvalidScore) {
			t.Errorf("score %v: want ErrInvalidScore, got %v", float64(s), err)
		}
	}
}

func TestNewRating_InvalidKFactor(t *testing.T) {
	if _, err := rating.NewRating(1200, 0, rating.Win, 1200); !errors.Is(err, rating.ErrInvalidKFactor) {
		t.Fatalf("want ErrInvalidKFactor, got %v", err)
	}
}

func TestEloWithKFactor(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	start := rating.NewElo(uuid.New(), 32, now.Add(-time.Hour))

	got, err := start.WithKFactor(16, now)
	if err != nil {
		t.Fatalf("with k-factor: %v", err)
	}
	if got.KFactor != 16 || got.Rating != start.Rating || !got.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected record %+v", got)
	}
	next, _ := got.Apply(rating.Win, 1200, now)
	if next.Rating != 1208 {
		t.Fatalf("want 1208 at k=16, got %d", next.Rating)
	}

	for _, k := range []int{0, -8} {
		if _, err := start.WithKFactor(k, now); !errors.Is(err, rating.ErrInvalidKFactor) {
			t.Errorf("k=%d: want ErrInvalidKFactor, got %v", k, err)
		}
	}
}

func TestEloApply_IncrementsOneCounter(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	start := rating.NewElo(uuid.New(), 0, now.Add(-time.Hour))
	if start.KFactor != rating.DefaultKFactor || start.Rating != rating.DefaultRating {
		t.Fatalf("unexpected defaults: %+v", start)
	}

	cases := []struct {
		score               rating.Score
		wins, losses, draws int
	}{
		{rating.Win, 1, 0, 0},
		{rating.Loss, 0, 1, 0},
		{rating.Draw, 0, 0, 1},
	}
	for _, tc := range cases {
		got, err := start.Apply(tc.score, 1200, now)
		if err != nil {
			t.Fatalf("score %v: %v", float64(tc.score), err)
		}
		if got.Wins != tc.wins || got.Losses != tc.losses || got.Draws != tc.draws {
			t.Errorf("score %v: counters %d/%d/%d", float64(tc.score), got.Wins, got.Losses, got.Draws)
		}
		if got.Games() != 1 {
			t.Errorf("score %v: want 1 game, got %d", float64(tc.score), got.Games())
		}
		if !got.UpdatedAt.Equal(now) {
			t.Errorf("score %v: updated_at not bumped", float64(tc.score))
		}
	}
	if start.Games() != 0 {
		t.Fatal("Apply must not modify the receiver")
	}
}

func TestEloApply_InvalidScoreLeavesRecord(t *testing.T) {
	start := rating.NewElo(uuid.New(), 32, time.Now())
	got, err := start.Apply(0.3, 1200, time.Now())
	if !errors.Is(err, rating.ErrInvalidScore) {
		t.Fatalf("want ErrInvalidScore, got %v", err)
	}
	if got != start {
		t.Fatalf("record changed on error: %+v", got)
	}
}
