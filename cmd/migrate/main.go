package main

import (
	"context"
	"database/sql"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/randomtoy/elo-chess-backend/internal/db"
	"github.com/randomtoy/elo-chess-backend/internal/logging"
)

func main() {
	log, err := logging.New(os.Getenv("LOG_LEVEL"), "console")
	if err != nil {
		log = zap.NewExample()
	}
	defer func() { _ = log.Sync() }()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	ctx := context.Background()

	conn, err := sql.Open("pgx", databaseURL)
	if err != nil {
		log.Fatal("open db", zap.Error(err))
	}
	defer conn.Close()

	if err := conn.PingContext(ctx); err != nil {
		log.Fatal("ping db", zap.Error(err))
	}

	goose.SetBaseFS(db.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal("goose set dialect", zap.Error(err))
	}

	if err := goose.RunContext(ctx, cmd, conn, "migrations", os.Args[min(len(os.Args), 2):]...); err != nil {
		log.Fatal("goose", zap.String("command", cmd), zap.Error(err))
	}
	log.Info("migrations done", zap.String("command", cmd))
}
