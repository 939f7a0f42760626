package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Service struct {
	store    Store
	rules    *Rules
	log      *slog.Logger
	ai       *DecisionGenerator
	mu       sync.Mutex
	settling map[string]struct{}
	now      func() time.Time
}

// SettleOutcome summarizes one settlement pass.
type SettleOutcome struct {
	GameID      string     `json:"game_id"`
	Round       int        `json:"round_number"`
	NextRound   int        `json:"next_round_number"`
	Status      GameStatus `json:"status"`
	Results     []Result   `json:"results,omitempty"`
	Synthesized []string   `json:"synthesized_players,omitempty"`
}

func NewService(store Store, rules *Rules, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if rules == nil {
		rules = DefaultRules()
	}
	return &Service{
		store:    store,
		rules:    rules,
		log:      logger,
		ai:       NewDecisionGenerator(rules, mathrand.New(mathrand.NewSource(time.Now().UnixNano()))),
		settling: map[string]struct{}{},
		now:      time.Now,
	}
}

// WithDecisionGenerator swaps the AI generator, mainly for seeded tests.
func (s *Service) WithDecisionGenerator(g *DecisionGenerator) *Service {
	s.ai = g
	return s
}

func (s *Service) CreateGame(ctx context.Context, in CreateGameInput) (Game, []Player, error) {
	if in.NumberOfRounds < 1 || in.NumberOfRounds > MaxRounds {
		return Game{}, nil, fmt.Errorf("%w: number of rounds must be between 1 and %d", ErrInvalidGame, MaxRounds)
	}
	if len(in.HumanPlayers)+len(in.AIStrategies) == 0 {
		return Game{}, nil, fmt.Errorf("%w: at least one player is required", ErrInvalidGame)
	}
	seed := in.Seed
	if seed == 0 {
		seed = s.now().UnixNano()
	}
	rng := mathrand.New(mathrand.NewSource(seed))

	g := Game{
		ID:              uuid.NewString(),
		AdminID:         strings.TrimSpace(in.AdminID),
		NumberOfRounds:  in.NumberOfRounds,
		CurrentRound:    0,
		Status:          StatusPending,
		WeatherSequence: drawSequence(rng, in.NumberOfRounds, WeatherNormal, Weathers, s.rules.Setup.WeatherWeights),
		VerminSequence:  drawSequence(rng, in.NumberOfRounds, VerminNone, Vermins, s.rules.Setup.VerminWeights),
		AIStrategies:    map[string]Strategy{},
		CreatedAt:       s.now().UTC(),
	}

	var players []Player
	fields := map[string][]Parcel{}
	add := func(name string, strategy Strategy, isAI bool) {
		p := Player{
			ID:       uuid.NewString(),
			GameID:   g.ID,
			Number:   len(players) + 1,
			Name:     name,
			IsAI:     isAI,
			Strategy: strategy,
		}
		// the creator sits in the first human seat
		if !isAI && len(players) == 0 {
			p.OwnerID = g.AdminID
		}
		players = append(players, p)
		g.PlayerIDs = append(g.PlayerIDs, p.ID)
		if isAI {
			g.AIStrategies[p.ID] = strategy
		}
		fields[p.ID] = s.rules.InitialField()
	}
	for _, name := range in.HumanPlayers {
		name = strings.TrimSpace(name)
		if name == "" {
			return Game{}, nil, fmt.Errorf("%w: player name is required", ErrInvalidGame)
		}
		add(name, "", false)
	}
	for i, st := range in.AIStrategies {
		st = ParseStrategy(string(st))
		add(fmt.Sprintf("AI %d (%s)", i+1, st), st, true)
	}

	if err := s.store.CreateGame(ctx, g, players, fields); err != nil {
		return Game{}, nil, fmt.Errorf("create game: %w", err)
	}
	s.log.Info("game created", "game_id", g.ID, "rounds", g.NumberOfRounds, "players", len(players))
	return g, players, nil
}

func drawSequence[T comparable](rng *mathrand.Rand, n int, calm T, order []T, weights map[T]int) []T {
	total := 0
	for _, v := range order {
		total += max(weights[v], 0)
	}
	out := make([]T, n)
	for i := range out {
		out[i] = calm
		if i == 0 || total == 0 {
			continue
		}
		pick := rng.Intn(total)
		for _, v := range order {
			w := max(weights[v], 0)
			if pick < w {
				out[i] = v
				break
			}
			pick -= w
		}
	}
	return out
}

func (s *Service) Game(ctx context.Context, gameID string) (Game, error) {
	return s.store.LoadGame(ctx, gameID)
}

func (s *Service) Players(ctx context.Context, gameID string) ([]Player, error) {
	return s.store.LoadPlayers(ctx, gameID)
}

func (s *Service) FieldState(ctx context.Context, gameID, playerID string, round int) ([]Parcel, error) {
	return s.store.LoadFieldState(ctx, gameID, playerID, round)
}

func (s *Service) Decisions(ctx context.Context, gameID, playerID string, round int) (RoundDecisions, bool, error) {
	return s.store.LoadSubmittedRound(ctx, gameID, playerID, round)
}

func (s *Service) Result(ctx context.Context, gameID, playerID string, round int) (Result, error) {
	return s.store.LoadResult(ctx, gameID, playerID, round)
}

// SubmitDecisions records a human player's decisions for the current round.
func (s *Service) SubmitDecisions(ctx context.Context, gameID, playerID string, round int, d RoundDecisions) error {
	g, err := s.store.LoadGame(ctx, gameID)
	if err != nil {
		return err
	}
	if g.Status == StatusFinished {
		return ErrGameFinished
	}
	if round < 1 || round != g.CurrentRound {
		return fmt.Errorf("%w: submitted %d, current %d", ErrWrongRound, round, g.CurrentRound)
	}
	player, err := s.player(ctx, gameID, playerID)
	if err != nil {
		return err
	}
	if player.IsAI {
		return fmt.Errorf("%w: player %s is AI controlled", ErrUnauthorized, player.ID)
	}
	if _, submitted, err := s.store.LoadSubmittedRound(ctx, gameID, player.ID, round); err != nil {
		return err
	} else if submitted {
		return ErrAlreadySubmitted
	}
	field, err := s.store.LoadFieldState(ctx, gameID, player.ID, round)
	if err != nil {
		return err
	}
	if err := ValidateDecisions(s.rules, d, field); err != nil {
		return err
	}
	d.Submitted = true
	if err := s.store.SaveDecisions(ctx, gameID, player.ID, round, d); err != nil {
		return err
	}
	s.log.Info("decisions submitted", "game_id", gameID, "player_id", player.ID, "round", round)
	return nil
}

// AuthorizeSubmit reports whether userID may submit decisions for playerID.
// Owned seats answer to their owner only; unowned seats answer to the admin,
// or to anyone when the game has no admin.
func (s *Service) AuthorizeSubmit(ctx context.Context, gameID, playerID, userID string) error {
	g, err := s.store.LoadGame(ctx, gameID)
	if err != nil {
		return err
	}
	p, err := s.player(ctx, gameID, playerID)
	if err != nil {
		return err
	}
	switch {
	case p.IsAI:
		return fmt.Errorf("%w: player %s is AI controlled", ErrUnauthorized, p.ID)
	case p.OwnerID != "":
		if p.OwnerID != userID {
			return fmt.Errorf("%w: player %s belongs to another user", ErrUnauthorized, p.ID)
		}
	case g.AdminID != "" && g.AdminID != userID:
		return fmt.Errorf("%w: player %s is unclaimed", ErrUnauthorized, p.ID)
	}
	return nil
}

// ClaimPlayer takes an unowned human seat for userID.
func (s *Service) ClaimPlayer(ctx context.Context, gameID, playerID, userID string) (Player, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Player{}, ErrUnauthorized
	}
	g, err := s.store.LoadGame(ctx, gameID)
	if err != nil {
		return Player{}, err
	}
	if g.Status == StatusFinished {
		return Player{}, ErrGameFinished
	}
	p, err := s.store.ClaimPlayer(ctx, gameID, playerID, userID)
	if err != nil {
		return Player{}, err
	}
	s.log.Info("player claimed", "game_id", gameID, "player_id", p.ID, "user_id", userID)
	return p, nil
}

func (s *Service) player(ctx context.Context, gameID, playerID string) (Player, error) {
	players, err := s.store.LoadPlayers(ctx, gameID)
	if err != nil {
		return Player{}, err
	}
	for _, p := range players {
		if p.ID == playerID {
			return p, nil
		}
	}
	return Player{}, ErrPlayerNotFound
}

// Settle synthesizes missing AI decisions and then settles the current round.
func (s *Service) Settle(ctx context.Context, gameID string) (SettleOutcome, error) {
	release, err := s.acquire(gameID)
	if err != nil {
		return SettleOutcome{}, err
	}
	defer release()

	synthesized, err := s.ensureDecisions(ctx, gameID)
	if err != nil {
		return SettleOutcome{}, err
	}
	out, err := s.settleRound(ctx, gameID)
	out.Synthesized = synthesized
	return out, err
}

// EnsureDecisions persists generated decisions for every AI player that has not
// submitted for the current round. Already-submitted players are skipped.
func (s *Service) EnsureDecisions(ctx context.Context, gameID string) ([]string, error) {
	release, err := s.acquire(gameID)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.ensureDecisions(ctx, gameID)
}

// SettleRound settles the current round without synthesizing anything; it fails
// with ErrAwaitingSubmissions unless every player has submitted.
func (s *Service) SettleRound(ctx context.Context, gameID string) (SettleOutcome, error) {
	release, err := s.acquire(gameID)
	if err != nil {
		return SettleOutcome{}, err
	}
	defer release()
	return s.settleRound(ctx, gameID)
}

func (s *Service) acquire(gameID string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.settling[gameID]; busy {
		return nil, ErrSettlementInProgress
	}
	s.settling[gameID] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.settling, gameID)
		s.mu.Unlock()
	}, nil
}

func (s *Service) ensureDecisions(ctx context.Context, gameID string) ([]string, error) {
	g, err := s.store.LoadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.Status == StatusFinished {
		return nil, &SettlementError{GameID: gameID, Round: g.CurrentRound, Phase: "ensure", Err: ErrGameFinished}
	}
	if g.CurrentRound == 0 {
		return nil, nil
	}
	players, err := s.store.LoadPlayers(ctx, gameID)
	if err != nil {
		return nil, err
	}

	var synthesized []string
	for _, p := range players {
		if !p.IsAI {
			continue
		}
		fail := func(err error) error {
			return &SettlementError{GameID: gameID, Round: g.CurrentRound, PlayerID: p.ID, Phase: "ai", Err: err}
		}
		if _, submitted, err := s.store.LoadSubmittedRound(ctx, gameID, p.ID, g.CurrentRound); err != nil {
			return synthesized, fail(err)
		} else if submitted {
			continue
		}
		field, err := s.store.LoadFieldState(ctx, gameID, p.ID, g.CurrentRound)
		if err != nil {
			return synthesized, fail(err)
		}
		var previous *Result
		if res, ok, err := s.store.LoadPreviousResult(ctx, gameID, p.ID, g.CurrentRound); err != nil {
			return synthesized, fail(err)
		} else if ok {
			previous = &res
		}
		strategy := p.Strategy
		if st, ok := g.AIStrategies[p.ID]; ok {
			strategy = st
		}
		d := s.ai.Generate(strategy, field, previous)
		if err := s.store.SaveDecisions(ctx, gameID, p.ID, g.CurrentRound, d); errors.Is(err, ErrAlreadySubmitted) {
			s.log.Debug("ai decisions already stored", "game_id", gameID, "player_id", p.ID, "round", g.CurrentRound)
			continue
		} else if err != nil {
			return synthesized, fail(err)
		}
		synthesized = append(synthesized, p.ID)
		s.log.Info("ai decisions synthesized", "game_id", gameID, "player_id", p.ID, "round", g.CurrentRound, "strategy", strategy)
	}
	return synthesized, nil
}

type settledPlayer struct {
	result Result
	next   []Parcel
}

func (s *Service) settleRound(ctx context.Context, gameID string) (SettleOutcome, error) {
	g, err := s.store.LoadGame(ctx, gameID)
	if err != nil {
		return SettleOutcome{}, err
	}
	out := SettleOutcome{GameID: g.ID, Round: g.CurrentRound, NextRound: g.CurrentRound, Status: g.Status}
	if g.Status == StatusFinished {
		return out, &SettlementError{GameID: g.ID, Round: g.CurrentRound, Phase: "gate", Err: ErrGameFinished}
	}
	players, err := s.store.LoadPlayers(ctx, gameID)
	if err != nil {
		return out, err
	}
	if g.CurrentRound == 0 {
		return s.start(ctx, g, players)
	}

	bundles, err := s.gather(ctx, g, players)
	if err != nil {
		return out, err
	}

	settled := make([]settledPlayer, len(bundles))
	eg := new(errgroup.Group)
	for i, b := range bundles {
		eg.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &SettlementError{GameID: g.ID, Round: g.CurrentRound, PlayerID: b.Player.ID, Phase: "compute", Err: fmt.Errorf("panic: %v", r)}
				}
			}()
			res, next, err := s.rules.SettlePlayer(b)
			if err != nil {
				return &SettlementError{GameID: g.ID, Round: g.CurrentRound, PlayerID: b.Player.ID, Phase: "compute", Err: err}
			}
			res.CreatedAt = s.now().UTC()
			settled[i] = settledPlayer{result: res, next: next}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		s.log.Error("round computation failed", "game_id", g.ID, "round", g.CurrentRound, "err", err)
		return out, err
	}

	for _, sp := range settled {
		if err := s.store.SaveResult(ctx, sp.result); err != nil {
			s.log.Error("save result failed", "game_id", g.ID, "round", g.CurrentRound, "player_id", sp.result.PlayerID, "err", err)
			return out, &SettlementError{GameID: g.ID, Round: g.CurrentRound, PlayerID: sp.result.PlayerID, Phase: "persist", Err: err}
		}
		out.Results = append(out.Results, sp.result)
	}

	if g.CurrentRound+1 > g.NumberOfRounds {
		if err := s.store.UpdateGameRoundState(ctx, g.ID, g.CurrentRound, g.CurrentRound, StatusFinished); err != nil {
			return out, &SettlementError{GameID: g.ID, Round: g.CurrentRound, Phase: "finish", Err: err}
		}
		out.Status = StatusFinished
		s.log.Info("game finished", "game_id", g.ID, "round", g.CurrentRound)
		return out, nil
	}

	next := g.CurrentRound + 1
	for _, sp := range settled {
		if err := s.store.InitializeRound(ctx, g.ID, sp.result.PlayerID, next, DefaultDecisions(sp.next), sp.next); err != nil {
			return out, &SettlementError{GameID: g.ID, Round: g.CurrentRound, PlayerID: sp.result.PlayerID, Phase: "initialize", Err: err}
		}
	}
	if err := s.store.UpdateGameRoundState(ctx, g.ID, g.CurrentRound, next, StatusActive); err != nil {
		return out, &SettlementError{GameID: g.ID, Round: g.CurrentRound, Phase: "advance", Err: err}
	}
	out.NextRound = next
	out.Status = StatusActive
	s.log.Info("round settled", "game_id", g.ID, "round", g.CurrentRound, "next_round", next, "players", len(settled))
	return out, nil
}

// start leaves round 0: nothing is simulated, every player's round 1 is seeded
// from the initial field and the game becomes active.
func (s *Service) start(ctx context.Context, g Game, players []Player) (SettleOutcome, error) {
	out := SettleOutcome{GameID: g.ID, Round: 0, NextRound: 0, Status: g.Status}
	fields := make([][]Parcel, len(players))
	for i, p := range players {
		field, err := s.store.LoadFieldState(ctx, g.ID, p.ID, 0)
		if err != nil {
			return out, &SettlementError{GameID: g.ID, Round: 0, PlayerID: p.ID, Phase: "gather", Err: err}
		}
		fields[i] = field
	}
	for i, p := range players {
		if err := s.store.InitializeRound(ctx, g.ID, p.ID, 1, DefaultDecisions(fields[i]), fields[i]); err != nil {
			return out, &SettlementError{GameID: g.ID, Round: 0, PlayerID: p.ID, Phase: "initialize", Err: err}
		}
	}
	if err := s.store.UpdateGameRoundState(ctx, g.ID, 0, 1, StatusActive); err != nil {
		return out, &SettlementError{GameID: g.ID, Round: 0, Phase: "advance", Err: err}
	}
	out.NextRound = 1
	out.Status = StatusActive
	s.log.Info("game started", "game_id", g.ID, "players", len(players))
	return out, nil
}

// gather checks the submission gate and loads every player's input bundle.
// Any missing piece halts the whole round.
func (s *Service) gather(ctx context.Context, g Game, players []Player) ([]PlayerRound, error) {
	round := g.CurrentRound
	var missing []string
	decisions := make([]RoundDecisions, len(players))
	for i, p := range players {
		d, ok, err := s.store.LoadSubmittedRound(ctx, g.ID, p.ID, round)
		if err != nil {
			return nil, &SettlementError{GameID: g.ID, Round: round, PlayerID: p.ID, Phase: "gate", Err: err}
		}
		if !ok {
			missing = append(missing, p.ID)
			continue
		}
		decisions[i] = d
	}
	if len(missing) > 0 {
		return nil, &SettlementError{
			GameID:   g.ID,
			Round:    round,
			PlayerID: missing[0],
			Phase:    "gate",
			Err:      fmt.Errorf("%w: %d of %d players have not submitted", ErrAwaitingSubmissions, len(missing), len(players)),
		}
	}

	bundles := make([]PlayerRound, len(players))
	eg, ectx := errgroup.WithContext(ctx)
	for i, p := range players {
		eg.Go(func() error {
			fail := func(err error) error {
				return &SettlementError{GameID: g.ID, Round: round, PlayerID: p.ID, Phase: "gather", Err: err}
			}
			field, err := s.store.LoadFieldState(ectx, g.ID, p.ID, round)
			if err != nil {
				return fail(err)
			}
			if len(field) == 0 {
				return fail(ErrMissingFieldState)
			}
			b := PlayerRound{Game: g, Player: p, Round: round, Decisions: decisions[i], Field: field}
			if round > 1 {
				res, ok, err := s.store.LoadPreviousResult(ectx, g.ID, p.ID, round)
				if err != nil {
					return fail(err)
				}
				if !ok {
					return fail(ErrMissingPreviousResult)
				}
				b.Previous = &res
			}
			bundles[i] = b
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return bundles, nil
}

// Standings ranks players by the closing capital of their latest settled round.
func (s *Service) Standings(ctx context.Context, gameID string) ([]Standing, error) {
	g, err := s.store.LoadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	players, err := s.store.LoadPlayers(ctx, gameID)
	if err != nil {
		return nil, err
	}
	latest := g.CurrentRound - 1
	if g.Status == StatusFinished {
		latest = g.CurrentRound
	}
	out := make([]Standing, 0, len(players))
	for _, p := range players {
		row := Standing{PlayerID: p.ID, Name: p.Name, IsAI: p.IsAI}
		var res *Result
		if latest >= 1 {
			r, err := s.store.LoadResult(ctx, gameID, p.ID, latest)
			if err != nil && !errors.Is(err, ErrResultNotFound) {
				return nil, err
			}
			if err == nil {
				res = &r
				row.Round = latest
			}
		}
		row.ClosingCapital = capitalOf(res, s.rules)
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClosingCapital.GreaterThan(out[j].ClosingCapital) })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

// SettleActive runs one settlement pass over every active game. Games still
// waiting for human submissions, or already being settled elsewhere, are
// skipped. It returns how many games advanced.
func (s *Service) SettleActive(ctx context.Context) (int, error) {
	games, err := s.store.ListGames(ctx, StatusActive)
	if err != nil {
		return 0, fmt.Errorf("list games: %w", err)
	}
	advanced := 0
	var failed []error
	for _, g := range games {
		if err := ctx.Err(); err != nil {
			return advanced, err
		}
		_, err := s.Settle(ctx, g.ID)
		switch {
		case err == nil:
			advanced++
		case errors.Is(err, ErrAwaitingSubmissions), errors.Is(err, ErrSettlementInProgress):
			s.log.Debug("game not ready", "game_id", g.ID, "round", g.CurrentRound, "err", err)
		default:
			failed = append(failed, err)
		}
	}
	return advanced, errors.Join(failed...)
}
