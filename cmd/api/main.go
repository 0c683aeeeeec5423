package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/randomtoy/elo-chess-backend/internal/adapters/memory"
	pgstore "github.com/randomtoy/elo-chess-backend/internal/adapters/postgres"
	redisstore "github.com/randomtoy/elo-chess-backend/internal/adapters/redis"
	"github.com/randomtoy/elo-chess-backend/internal/config"
	"github.com/randomtoy/elo-chess-backend/internal/domain/game"
	"github.com/randomtoy/elo-chess-backend/internal/logging"
	"github.com/randomtoy/elo-chess-backend/internal/ports"
	transporthttp "github.com/randomtoy/elo-chess-backend/internal/transport/http"
	"github.com/randomtoy/elo-chess-backend/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		p, err := connectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer p.Close()
		pool = p
		log.Info("connected to database")
	}

	var games ports.GameStore = memory.New()
	if pool != nil {
		games = pgstore.New(pool)
	}

	var ratings ports.RatingStore
	switch cfg.Backend() {
	case config.BackendPostgres:
		ratings = pgstore.NewRatingStore(pool, cfg.DefaultKFactor)
	case config.BackendRedis:
		rdb, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		ratings = redisstore.NewRatingStore(rdb, cfg.DefaultKFactor)
		log.Info("connected to redis")
	default:
		ratings = memory.NewRatingStore(cfg.DefaultKFactor)
	}
	log.Info("stores ready",
		zap.Bool("persistent_games", pool != nil),
		zap.String("rating_backend", cfg.Backend()),
	)

	locks := usecase.NewGameLocks()
	settler := usecase.NewSettler(games, ratings, locks, log.Named("settler"))
	if n, err := settler.SettlePending(ctx); err != nil {
		log.Warn("pending settlements", zap.Error(err))
	} else if n > 0 {
		log.Info("settled pending games", zap.Int("count", n))
	}

	h := transporthttp.NewHandlers(
		usecase.NewGameCreator(games),
		usecase.NewGameGetter(games),
		usecase.NewMoveSubmitter(games, locks, settler),
		usecase.NewClaimSubmitter(games, locks, settler, game.Adjudicator{DrawWindow: cfg.DrawOfferWindow}),
		usecase.NewOutcomeSignaler(games, locks, settler),
		settler,
		usecase.NewRatingGetter(ratings),
		usecase.NewKFactorSetter(ratings),
		log.Named("http"),
	)

	var rl ports.RateLimiter = memory.AlwaysAllow{}
	if cfg.RateLimitRPS > 0 {
		rl = memory.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute)
	}
	opts := transporthttp.Options{Logger: log.Named("http"), RateLimiter: rl, AllowOrigins: cfg.CORSOrigins}
	e := transporthttp.New(h, opts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting", zap.String("addr", ":"+cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func connectDB(ctx context.Context, url string) (*pgxpool.Pool, error) {
	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connCtx, url)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}
