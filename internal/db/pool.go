package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens the pool and applies the schema so a fresh database is usable.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

const schemaSQL = `
CREATE SCHEMA IF NOT EXISTS soil;

CREATE TABLE IF NOT EXISTS soil.games (
	id               uuid PRIMARY KEY,
	admin_id         text NOT NULL DEFAULT '',
	number_of_rounds int NOT NULL CHECK (number_of_rounds > 0),
	current_round    int NOT NULL DEFAULT 0,
	status           text NOT NULL CHECK (status IN ('pending', 'active', 'finished')),
	weather_sequence jsonb NOT NULL,
	vermin_sequence  jsonb NOT NULL,
	ai_strategies    jsonb NOT NULL DEFAULT '{}'::jsonb,
	created_at       timestamptz NOT NULL DEFAULT now(),
	updated_at       timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS soil.players (
	id       uuid PRIMARY KEY,
	game_id  uuid NOT NULL REFERENCES soil.games (id) ON DELETE CASCADE,
	number   int NOT NULL,
	name     text NOT NULL,
	is_ai    boolean NOT NULL DEFAULT false,
	strategy text NOT NULL DEFAULT '',
	owner_id text NOT NULL DEFAULT '',
	UNIQUE (game_id, number)
);

ALTER TABLE soil.players ADD COLUMN IF NOT EXISTS owner_id text NOT NULL DEFAULT '';

CREATE TABLE IF NOT EXISTS soil.rounds (
	game_id      uuid NOT NULL REFERENCES soil.games (id) ON DELETE CASCADE,
	player_id    uuid NOT NULL REFERENCES soil.players (id) ON DELETE CASCADE,
	round_number int NOT NULL,
	field        jsonb NOT NULL,
	decisions    jsonb NOT NULL DEFAULT '{}'::jsonb,
	submitted    boolean NOT NULL DEFAULT false,
	submitted_at timestamptz,
	PRIMARY KEY (game_id, player_id, round_number)
);

CREATE TABLE IF NOT EXISTS soil.results (
	game_id            uuid NOT NULL REFERENCES soil.games (id) ON DELETE CASCADE,
	player_id          uuid NOT NULL REFERENCES soil.players (id) ON DELETE CASCADE,
	round_number       int NOT NULL,
	closing_capital    numeric(16, 2) NOT NULL,
	profit_or_loss     numeric(16, 2) NOT NULL,
	organic_certified  boolean NOT NULL,
	machine_efficiency double precision NOT NULL,
	payload            jsonb NOT NULL,
	created_at         timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (game_id, player_id, round_number)
);

CREATE INDEX IF NOT EXISTS games_status_idx ON soil.games (status);
`
