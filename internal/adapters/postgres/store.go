package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/randomtoy/elo-chess-backend/internal/domain/game"
	"github.com/randomtoy/elo-chess-backend/internal/ports"
)

const queryGetGame = `
SELECT id, white_id, black_id, rated, initial_layout, status, winner,
       started_at, ended_at, settled, version, created_at, updated_at
FROM games
WHERE id = $1`

const queryListUnsettled = `
SELECT id FROM games
WHERE rated AND NOT settled AND ended_at IS NOT NULL
ORDER BY ended_at ASC`

const queryInsertGame = `
INSERT INTO games
    (id, white_id, black_id, rated, initial_layout, layout, status, winner,
     started_at, ended_at, settled, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

const queryUpdateGame = `
UPDATE games SET
    layout     = $1,
    status     = $2,
    winner     = $3,
    ended_at   = $4,
    settled    = $5,
    version    = $6,
    updated_at = $7
WHERE id = $8 AND version = $9`

const queryInsertPiece = `
INSERT INTO pieces (id, game_id, piece_type, promoted_to, captured)
VALUES ($1, $2, $3, $4, $5)`

const queryUpdatePiece = `
UPDATE pieces SET promoted_to = $1, captured = $2
WHERE id = $3 AND (promoted_to <> $1 OR captured <> $2)`

const queryInsertPosition = `
INSERT INTO positions (id, game_id, piece_id, square, ply, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING`

const queryInsertMove = `
INSERT INTO moves
    (id, game_id, ply, piece_id, from_sq, to_sq, promotion, captured_piece_id, layout_after, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const queryMaxPly = `SELECT COALESCE(MAX(ply), 0) FROM moves WHERE game_id = $1`

const queryMoves = `
SELECT id, ply, piece_id, from_sq, to_sq, promotion, captured_piece_id, layout_after, created_at
FROM moves
WHERE game_id = $1
ORDER BY ply ASC`

const queryClaimCount = `SELECT COUNT(*) FROM claim_items WHERE game_id = $1`

const queryInsertClaim = `
INSERT INTO claim_items (id, game_id, seq, player_id, claim_type, ply, verdict, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const queryClaims = `
SELECT id, player_id, claim_type, ply, verdict, created_at
FROM claim_items
WHERE game_id = $1
ORDER BY seq ASC`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a PostgreSQL-backed GameStore. The move log is the source of
// truth: loading a game replays its moves over the initial layout, and the
// pieces and positions tables hold the same facts for querying.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by the given connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*game.Game, error) {
	return loadGame(ctx, s.pool, id)
}

// Insert persists a new game with its pieces and initial positions in one
// transaction.
func (s *Store) Insert(ctx context.Context, g *game.Game) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, queryInsertGame,
		g.ID, g.White, g.Black, g.Rated, g.InitialLayout, g.State.Board.Layout,
		string(g.Result.Status), g.Result.Winner.String(),
		g.StartedAt, g.EndedAt, g.Settled, g.Version, g.CreatedAt, g.UpdatedAt,
	); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, p := range g.State.Pieces {
		batch.Queue(queryInsertPiece, p.ID, g.ID, p.Type.String(), p.PromotedTo.String(), p.Captured)
	}
	queuePositions(batch, g, -1)
	queueMoves(batch, g, 0)
	queueClaims(batch, g, 0)
	if err := sendBatch(ctx, tx, batch); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Save writes one state transition atomically. Moves, positions and claim
// items are append-only, so only rows past what is already stored are
// inserted; piece flags are updated in place.
func (s *Store) Save(ctx context.Context, g *game.Game, expectedVersion int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, queryUpdateGame,
		g.State.Board.Layout, string(g.Result.Status), g.Result.Winner.String(),
		g.EndedAt, g.Settled, g.Version, g.UpdatedAt,
		g.ID, expectedVersion,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM games WHERE id = $1)`, g.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ports.ErrNotFound
		}
		return ports.ErrVersionConflict
	}

	var maxPly, claims int
	if err := tx.QueryRow(ctx, queryMaxPly, g.ID).Scan(&maxPly); err != nil {
		return err
	}
	if err := tx.QueryRow(ctx, queryClaimCount, g.ID).Scan(&claims); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, p := range g.State.Pieces {
		batch.Queue(queryUpdatePiece, p.PromotedTo.String(), p.Captured, p.ID)
	}
	queueMoves(batch, g, maxPly)
	queuePositions(batch, g, maxPly)
	queueClaims(batch, g, claims)
	if err := sendBatch(ctx, tx, batch); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ListUnsettled(ctx context.Context) ([]*game.Game, error) {
	rows, err := s.pool.Query(ctx, queryListUnsettled)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, err
	}

	var out []*game.Game
	for _, id := range ids {
		g, err := loadGame(ctx, s.pool, id)
		if err != nil {
			return nil, err
		}
		if g.NeedsSettlement() {
			out = append(out, g)
		}
	}
	return out, nil
}

// queueMoves queues moves after ply afterPly; the pieces they reference are
// inserted earlier in the same batch or already stored.
func queueMoves(b *pgx.Batch, g *game.Game, afterPly int) {
	for _, m := range g.State.Moves {
		if m.Ply <= afterPly {
			continue
		}
		b.Queue(queryInsertMove,
			m.ID, g.ID, m.Ply, m.PieceID, m.From.String(), m.To.String(),
			m.Promotion.String(), nullUUID(m.CapturedPieceID), m.LayoutAfter, m.Timestamp,
		)
	}
}

func queuePositions(b *pgx.Batch, g *game.Game, afterPly int) {
	for _, p := range g.State.Positions {
		if p.Ply <= afterPly {
			continue
		}
		b.Queue(queryInsertPosition, p.ID, g.ID, p.PieceID, p.Square.String(), p.Ply, p.Timestamp)
	}
}

func queueClaims(b *pgx.Batch, g *game.Game, stored int) {
	for i := stored; i < len(g.Claims); i++ {
		c := g.Claims[i]
		b.Queue(queryInsertClaim, c.ID, g.ID, i, c.PlayerID, string(c.Type), c.Ply, string(c.Verdict), c.Timestamp)
	}
}

func sendBatch(ctx context.Context, tx pgx.Tx, b *pgx.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	br := tx.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}

func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func loadGame(ctx context.Context, q querier, id uuid.UUID) (*game.Game, error) {
	snap, err := scanGame(q.QueryRow(ctx, queryGetGame, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if snap.Moves, err = fetchMoves(ctx, q, id); err != nil {
		return nil, err
	}
	if snap.Claims, err = fetchClaims(ctx, q, id); err != nil {
		return nil, err
	}
	g, err := game.Restore(snap)
	if err != nil {
		return nil, fmt.Errorf("restore game %s: %w", id, err)
	}
	return g, nil
}

// scanGame reads a game row into a snapshot without its moves and claims.
func scanGame(row pgx.Row) (game.Snapshot, error) {
	var (
		snap      game.Snapshot
		statusStr string
		winnerStr string
	)
	err := row.Scan(
		&snap.ID, &snap.White, &snap.Black, &snap.Rated, &snap.InitialLayout,
		&statusStr, &winnerStr, &snap.StartedAt, &snap.EndedAt, &snap.Settled,
		&snap.Version, &snap.CreatedAt, &snap.UpdatedAt,
	)
	if err != nil {
		return game.Snapshot{}, err
	}
	if snap.Result.Status, err = game.ParseStatus(statusStr); err != nil {
		return game.Snapshot{}, err
	}
	if snap.Result.Winner, err = game.ParseColor(winnerStr); err != nil {
		return game.Snapshot{}, err
	}
	return snap, nil
}

func fetchMoves(ctx context.Context, q querier, gameID uuid.UUID) ([]game.Move, error) {
	rows, err := q.Query(ctx, queryMoves, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []game.Move
	for rows.Next() {
		var (
			m          game.Move
			from, to   string
			promotion  string
			capturedID *uuid.UUID
			createdAt  time.Time
		)
		if err := rows.Scan(
			&m.ID, &m.Ply, &m.PieceID, &from, &to, &promotion, &capturedID, &m.LayoutAfter, &createdAt,
		); err != nil {
			return nil, err
		}
		if m.From, err = game.ParseSquare(from); err != nil {
			return nil, err
		}
		if m.To, err = game.ParseSquare(to); err != nil {
			return nil, err
		}
		if promotion != "" {
			if m.Promotion, err = game.ParsePieceType(promotion); err != nil {
				return nil, err
			}
		}
		if capturedID != nil {
			m.CapturedPieceID = *capturedID
		}
		m.Timestamp = createdAt
		out = append(out, m)
	}
	return out, rows.Err()
}

func fetchClaims(ctx context.Context, q querier, gameID uuid.UUID) ([]game.ClaimItem, error) {
	rows, err := q.Query(ctx, queryClaims, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []game.ClaimItem
	for rows.Next() {
		var c game.ClaimItem
		var claimType, verdict string
		if err := rows.Scan(&c.ID, &c.PlayerID, &claimType, &c.Ply, &verdict, &c.Timestamp); err != nil {
			return nil, err
		}
		c.Type = game.ClaimType(claimType)
		c.Verdict = game.Verdict(verdict)
		out = append(out, c)
	}
	return out, rows.Err()
}
