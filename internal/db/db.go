package db

import "embed"

// Migrations holds the embedded goose migrations for the games, pieces,
// positions, moves, claim_items, elo and settlements tables.
//
//go:embed migrations/*.sql
var Migrations embed.FS
