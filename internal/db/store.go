package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"soil/internal/game"
)

const (
	maxTxAttempts  = 8
	firstRetryWait = 75 * time.Millisecond
	maxRetryWait   = 1200 * time.Millisecond
)

// Store persists games, rounds and results in Postgres.
type Store struct {
	db *pgxpool.Pool
}

var _ game.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// inTx runs fn in a serializable transaction, retrying serialization failures
// with exponential backoff. Exhausted retries surface as game.ErrTxConflict.
func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return retrySerializable(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

func retrySerializable(ctx context.Context, attempt func() error) error {
	wait := firstRetryWait
	for i := 0; i < maxTxAttempts; i++ {
		err := attempt()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		if i == maxTxAttempts-1 {
			break
		}
		if err := sleepWithContext(ctx, wait); err != nil {
			return err
		}
		if wait < maxRetryWait {
			wait *= 2
		}
	}
	return game.ErrTxConflict
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// validIDs reports whether every id is a uuid. Anything else cannot match a row.
func validIDs(ids ...string) bool {
	for _, id := range ids {
		if uuid.Validate(id) != nil {
			return false
		}
	}
	return true
}

func (s *Store) CreateGame(ctx context.Context, g game.Game, players []game.Player, fields map[string][]game.Parcel) error {
	weather, err := json.Marshal(g.WeatherSequence)
	if err != nil {
		return err
	}
	vermin, err := json.Marshal(g.VerminSequence)
	if err != nil {
		return err
	}
	strategies, err := json.Marshal(g.AIStrategies)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO soil.games (id, admin_id, number_of_rounds, current_round, status, weather_sequence, vermin_sequence, ai_strategies, created_at)
			VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8::jsonb, $9)
		`, g.ID, g.AdminID, g.NumberOfRounds, g.CurrentRound, string(g.Status), weather, vermin, strategies, g.CreatedAt); err != nil {
			return fmt.Errorf("insert game: %w", err)
		}
		for _, p := range players {
			if _, err := tx.Exec(ctx, `
				INSERT INTO soil.players (id, game_id, number, name, is_ai, strategy, owner_id)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, p.ID, g.ID, p.Number, p.Name, p.IsAI, string(p.Strategy), p.OwnerID); err != nil {
				return fmt.Errorf("insert player %d: %w", p.Number, err)
			}
			field, err := json.Marshal(fields[p.ID])
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO soil.rounds (game_id, player_id, round_number, field)
				VALUES ($1, $2, $3, $4::jsonb)
			`, g.ID, p.ID, g.CurrentRound, field); err != nil {
				return fmt.Errorf("insert field %d: %w", p.Number, err)
			}
		}
		return nil
	})
}

func (s *Store) ListGames(ctx context.Context, statuses ...game.GameStatus) ([]game.Game, error) {
	filter := make([]string, 0, len(statuses))
	for _, st := range statuses {
		filter = append(filter, string(st))
	}
	rows, err := s.db.Query(ctx, `
		SELECT id::text
		FROM soil.games
		WHERE cardinality($1::text[]) = 0 OR status = ANY($1::text[])
		ORDER BY created_at
	`, filter)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := make([]game.Game, 0, len(ids))
	for _, id := range ids {
		g, err := s.LoadGame(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *Store) LoadGame(ctx context.Context, gameID string) (game.Game, error) {
	if !validIDs(gameID) {
		return game.Game{}, game.ErrGameNotFound
	}
	var (
		g                         game.Game
		status                    string
		weather, vermin, strategy []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT id::text, admin_id, number_of_rounds, current_round, status, weather_sequence, vermin_sequence, ai_strategies, created_at
		FROM soil.games
		WHERE id = $1
	`, gameID).Scan(&g.ID, &g.AdminID, &g.NumberOfRounds, &g.CurrentRound, &status, &weather, &vermin, &strategy, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return game.Game{}, game.ErrGameNotFound
		}
		return game.Game{}, err
	}
	g.Status = game.GameStatus(status)
	if err := json.Unmarshal(weather, &g.WeatherSequence); err != nil {
		return game.Game{}, fmt.Errorf("decode weather: %w", err)
	}
	if err := json.Unmarshal(vermin, &g.VerminSequence); err != nil {
		return game.Game{}, fmt.Errorf("decode vermin: %w", err)
	}
	if err := json.Unmarshal(strategy, &g.AIStrategies); err != nil {
		return game.Game{}, fmt.Errorf("decode strategies: %w", err)
	}
	players, err := s.LoadPlayers(ctx, g.ID)
	if err != nil {
		return game.Game{}, err
	}
	for _, p := range players {
		g.PlayerIDs = append(g.PlayerIDs, p.ID)
	}
	return g, nil
}

func (s *Store) LoadPlayers(ctx context.Context, gameID string) ([]game.Player, error) {
	if !validIDs(gameID) {
		return nil, game.ErrGameNotFound
	}
	rows, err := s.db.Query(ctx, `
		SELECT p.id::text, p.game_id::text, p.number, p.name, p.is_ai, p.strategy, p.owner_id
		FROM soil.players p
		WHERE p.game_id = $1
		ORDER BY p.number
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []game.Player
	for rows.Next() {
		var p game.Player
		var strategy string
		if err := rows.Scan(&p.ID, &p.GameID, &p.Number, &p.Name, &p.IsAI, &strategy, &p.OwnerID); err != nil {
			return nil, err
		}
		p.Strategy = game.Strategy(strategy)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, game.ErrGameNotFound
	}
	return out, nil
}

func (s *Store) LoadSubmittedRound(ctx context.Context, gameID, playerID string, round int) (game.RoundDecisions, bool, error) {
	if !validIDs(gameID, playerID) {
		return game.RoundDecisions{}, false, nil
	}
	var raw []byte
	err := s.db.QueryRow(ctx, `
		SELECT decisions
		FROM soil.rounds
		WHERE game_id = $1 AND player_id = $2 AND round_number = $3 AND submitted
	`, gameID, playerID, round).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return game.RoundDecisions{}, false, nil
		}
		return game.RoundDecisions{}, false, err
	}
	var d game.RoundDecisions
	if err := json.Unmarshal(raw, &d); err != nil {
		return game.RoundDecisions{}, false, fmt.Errorf("decode decisions: %w", err)
	}
	d.Submitted = true
	return d, true, nil
}

func (s *Store) SaveDecisions(ctx context.Context, gameID, playerID string, round int, d game.RoundDecisions) error {
	if !validIDs(gameID, playerID) {
		return game.ErrMissingFieldState
	}
	d.Submitted = true
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var submitted bool
		if err := tx.QueryRow(ctx, `
			SELECT submitted
			FROM soil.rounds
			WHERE game_id = $1 AND player_id = $2 AND round_number = $3
			FOR UPDATE
		`, gameID, playerID, round).Scan(&submitted); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return game.ErrMissingFieldState
			}
			return err
		}
		if submitted {
			return game.ErrAlreadySubmitted
		}
		_, err := tx.Exec(ctx, `
			UPDATE soil.rounds
			SET decisions = $4::jsonb, submitted = true, submitted_at = now()
			WHERE game_id = $1 AND player_id = $2 AND round_number = $3
		`, gameID, playerID, round, raw)
		return err
	})
}

func (s *Store) LoadFieldState(ctx context.Context, gameID, playerID string, round int) ([]game.Parcel, error) {
	if !validIDs(gameID, playerID) {
		return nil, game.ErrMissingFieldState
	}
	var raw []byte
	err := s.db.QueryRow(ctx, `
		SELECT field
		FROM soil.rounds
		WHERE game_id = $1 AND player_id = $2 AND round_number = $3
	`, gameID, playerID, round).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, game.ErrMissingFieldState
		}
		return nil, err
	}
	var field []game.Parcel
	if err := json.Unmarshal(raw, &field); err != nil {
		return nil, fmt.Errorf("decode field: %w", err)
	}
	return field, nil
}

func (s *Store) LoadPreviousResult(ctx context.Context, gameID, playerID string, round int) (game.Result, bool, error) {
	res, err := s.LoadResult(ctx, gameID, playerID, round-1)
	if errors.Is(err, game.ErrResultNotFound) {
		return game.Result{}, false, nil
	}
	if err != nil {
		return game.Result{}, false, err
	}
	return res, true, nil
}

func (s *Store) LoadResult(ctx context.Context, gameID, playerID string, round int) (game.Result, error) {
	if !validIDs(gameID, playerID) {
		return game.Result{}, game.ErrResultNotFound
	}
	var raw []byte
	err := s.db.QueryRow(ctx, `
		SELECT payload
		FROM soil.results
		WHERE game_id = $1 AND player_id = $2 AND round_number = $3
	`, gameID, playerID, round).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return game.Result{}, game.ErrResultNotFound
		}
		return game.Result{}, err
	}
	var res game.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return game.Result{}, fmt.Errorf("decode result: %w", err)
	}
	return res, nil
}

func (s *Store) SaveResult(ctx context.Context, res game.Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return retrySerializable(ctx, func() error {
		_, err := s.db.Exec(ctx, `
			INSERT INTO soil.results (game_id, player_id, round_number, closing_capital, profit_or_loss, organic_certified, machine_efficiency, payload, created_at)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8::jsonb, $9)
			ON CONFLICT (game_id, player_id, round_number) DO NOTHING
		`, res.GameID, res.PlayerID, res.Round, res.ClosingCapital.String(), res.ProfitOrLoss.String(),
			res.OrganicCertified, res.MachineEfficiency, payload, res.CreatedAt)
		return err
	})
}

func (s *Store) InitializeRound(ctx context.Context, gameID, playerID string, round int, d game.RoundDecisions, parcels []game.Parcel) error {
	d.Submitted = false
	decisions, err := json.Marshal(d)
	if err != nil {
		return err
	}
	field, err := json.Marshal(parcels)
	if err != nil {
		return err
	}
	return retrySerializable(ctx, func() error {
		_, err := s.db.Exec(ctx, `
			INSERT INTO soil.rounds (game_id, player_id, round_number, field, decisions)
			VALUES ($1, $2, $3, $4::jsonb, $5::jsonb)
			ON CONFLICT (game_id, player_id, round_number) DO NOTHING
		`, gameID, playerID, round, field, decisions)
		return err
	})
}

// UpdateGameRoundState moves the game from round `from` to round `to`. The
// update only applies while the row is still at `from`, so a settler that
// loaded a stale round loses with ErrSettlementInProgress.
func (s *Store) UpdateGameRoundState(ctx context.Context, gameID string, from, to int, status game.GameStatus) error {
	if !validIDs(gameID) {
		return game.ErrGameNotFound
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE soil.games
			SET current_round = $3, status = $4, updated_at = now()
			WHERE id = $1 AND current_round = $2 AND status <> 'finished'
		`, gameID, from, to, string(status))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			return nil
		}
		var current string
		if err := tx.QueryRow(ctx, `
			SELECT status FROM soil.games WHERE id = $1
		`, gameID).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return game.ErrGameNotFound
			}
			return err
		}
		if game.GameStatus(current) == game.StatusFinished {
			return game.ErrGameFinished
		}
		return game.ErrSettlementInProgress
	})
}

// ClaimPlayer sets owner_id only while the seat is empty or already held by
// userID, so two users racing for one seat cannot both win.
func (s *Store) ClaimPlayer(ctx context.Context, gameID, playerID, userID string) (game.Player, error) {
	if !validIDs(gameID) {
		return game.Player{}, game.ErrGameNotFound
	}
	if !validIDs(playerID) {
		return game.Player{}, game.ErrPlayerNotFound
	}
	var p game.Player
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var strategy string
		err := tx.QueryRow(ctx, `
			UPDATE soil.players
			SET owner_id = $3
			WHERE game_id = $1 AND id = $2 AND NOT is_ai AND owner_id IN ('', $3)
			RETURNING id::text, game_id::text, number, name, is_ai, strategy, owner_id
		`, gameID, playerID, userID).Scan(&p.ID, &p.GameID, &p.Number, &p.Name, &p.IsAI, &strategy, &p.OwnerID)
		if err == nil {
			p.Strategy = game.Strategy(strategy)
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		var isAI bool
		if err := tx.QueryRow(ctx, `
			SELECT is_ai FROM soil.players WHERE game_id = $1 AND id = $2
		`, gameID, playerID).Scan(&isAI); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return game.ErrPlayerNotFound
			}
			return err
		}
		if isAI {
			return fmt.Errorf("%w: player %s is AI controlled", game.ErrUnauthorized, playerID)
		}
		return game.ErrPlayerClaimed
	})
	return p, err
}
