package game

import "context"

// Store is the persistence collaborator the service settles rounds against.
// Load* methods return ErrGameNotFound / ErrMissingFieldState / ErrResultNotFound
// style sentinels; "absent" results are reported through the bool return.
type Store interface {
	CreateGame(ctx context.Context, g Game, players []Player, fields map[string][]Parcel) error
	ListGames(ctx context.Context, statuses ...GameStatus) ([]Game, error)
	LoadGame(ctx context.Context, gameID string) (Game, error)
	LoadPlayers(ctx context.Context, gameID string) ([]Player, error)

	LoadSubmittedRound(ctx context.Context, gameID, playerID string, round int) (RoundDecisions, bool, error)
	SaveDecisions(ctx context.Context, gameID, playerID string, round int, d RoundDecisions) error
	LoadFieldState(ctx context.Context, gameID, playerID string, round int) ([]Parcel, error)

	// LoadPreviousResult returns the Result recorded for round-1.
	LoadPreviousResult(ctx context.Context, gameID, playerID string, round int) (Result, bool, error)
	LoadResult(ctx context.Context, gameID, playerID string, round int) (Result, error)
	SaveResult(ctx context.Context, res Result) error

	InitializeRound(ctx context.Context, gameID, playerID string, round int, d RoundDecisions, parcels []Parcel) error
	UpdateGameRoundState(ctx context.Context, gameID string, from, to int, status GameStatus) error

	// ClaimPlayer binds an unowned human seat to userID. Claiming a seat the
	// user already owns is a no-op.
	ClaimPlayer(ctx context.Context, gameID, playerID, userID string) (Player, error)
}
