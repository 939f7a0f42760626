package game

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"
)

type roundKey struct {
	gameID   string
	playerID string
	round    int
}

// MemoryStore keeps every record in process memory. It backs local play without
// a database and the service tests. Records are copied on the way in and out.
type MemoryStore struct {
	mu        sync.RWMutex
	games     map[string]Game
	players   map[string][]Player
	decisions map[roundKey]RoundDecisions
	fields    map[roundKey][]Parcel
	results   map[roundKey]Result
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:     map[string]Game{},
		players:   map[string][]Player{},
		decisions: map[roundKey]RoundDecisions{},
		fields:    map[roundKey][]Parcel{},
		results:   map[roundKey]Result{},
	}
}

func (m *MemoryStore) CreateGame(_ context.Context, g Game, players []Player, fields map[string][]Parcel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[g.ID]; ok {
		return fmt.Errorf("game %s already exists", g.ID)
	}
	m.games[g.ID] = cloneGame(g)
	m.players[g.ID] = slices.Clone(players)
	for playerID, field := range fields {
		m.fields[roundKey{g.ID, playerID, g.CurrentRound}] = slices.Clone(field)
	}
	return nil
}

func (m *MemoryStore) ListGames(_ context.Context, statuses ...GameStatus) ([]Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Game, 0, len(m.games))
	for _, g := range m.games {
		if len(statuses) == 0 || slices.Contains(statuses, g.Status) {
			out = append(out, cloneGame(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) LoadGame(_ context.Context, gameID string) (Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[gameID]
	if !ok {
		return Game{}, ErrGameNotFound
	}
	return cloneGame(g), nil
}

func (m *MemoryStore) LoadPlayers(_ context.Context, gameID string) ([]Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	players, ok := m.players[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	return slices.Clone(players), nil
}

func (m *MemoryStore) LoadSubmittedRound(_ context.Context, gameID, playerID string, round int) (RoundDecisions, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.decisions[roundKey{gameID, playerID, round}]
	if !ok || !d.Submitted {
		return RoundDecisions{}, false, nil
	}
	return cloneDecisions(d), true, nil
}

func (m *MemoryStore) SaveDecisions(_ context.Context, gameID, playerID string, round int, d RoundDecisions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := roundKey{gameID, playerID, round}
	if existing, ok := m.decisions[key]; ok && existing.Submitted {
		return ErrAlreadySubmitted
	}
	m.decisions[key] = cloneDecisions(d)
	return nil
}

func (m *MemoryStore) LoadFieldState(_ context.Context, gameID, playerID string, round int) ([]Parcel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	field, ok := m.fields[roundKey{gameID, playerID, round}]
	if !ok {
		return nil, ErrMissingFieldState
	}
	return slices.Clone(field), nil
}

func (m *MemoryStore) LoadPreviousResult(_ context.Context, gameID, playerID string, round int) (Result, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.results[roundKey{gameID, playerID, round - 1}]
	if !ok {
		return Result{}, false, nil
	}
	return cloneResult(res), true, nil
}

func (m *MemoryStore) LoadResult(_ context.Context, gameID, playerID string, round int) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.results[roundKey{gameID, playerID, round}]
	if !ok {
		return Result{}, ErrResultNotFound
	}
	return cloneResult(res), nil
}

func (m *MemoryStore) SaveResult(_ context.Context, res Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := roundKey{res.GameID, res.PlayerID, res.Round}
	// A retried settlement recomputes the same result; the first write wins.
	if _, ok := m.results[key]; ok {
		return nil
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	m.results[key] = cloneResult(res)
	return nil
}

func (m *MemoryStore) InitializeRound(_ context.Context, gameID, playerID string, round int, d RoundDecisions, parcels []Parcel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := roundKey{gameID, playerID, round}
	if _, ok := m.fields[key]; ok {
		return nil
	}
	m.fields[key] = slices.Clone(parcels)
	m.decisions[key] = cloneDecisions(d)
	return nil
}

func (m *MemoryStore) UpdateGameRoundState(_ context.Context, gameID string, from, to int, status GameStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return ErrGameNotFound
	}
	if g.Status == StatusFinished {
		return ErrGameFinished
	}
	if g.CurrentRound != from {
		return ErrSettlementInProgress
	}
	g.CurrentRound = to
	g.Status = status
	m.games[gameID] = g
	return nil
}

func cloneGame(g Game) Game {
	g.WeatherSequence = slices.Clone(g.WeatherSequence)
	g.VerminSequence = slices.Clone(g.VerminSequence)
	g.PlayerIDs = slices.Clone(g.PlayerIDs)
	g.AIStrategies = maps.Clone(g.AIStrategies)
	return g
}

func cloneDecisions(d RoundDecisions) RoundDecisions {
	d.Plantations = maps.Clone(d.Plantations)
	return d
}

func cloneResult(r Result) Result {
	r.Income.Harvest = maps.Clone(r.Income.Harvest)
	r.Yields = maps.Clone(r.Yields)
	r.Notes = maps.Clone(r.Notes)
	return r
}

func (m *MemoryStore) ClaimPlayer(_ context.Context, gameID, playerID, userID string) (Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	players, ok := m.players[gameID]
	if !ok {
		return Player{}, ErrGameNotFound
	}
	i := slices.IndexFunc(players, func(p Player) bool { return p.ID == playerID })
	if i < 0 {
		return Player{}, ErrPlayerNotFound
	}
	p := players[i]
	switch {
	case p.IsAI:
		return Player{}, fmt.Errorf("%w: player %s is AI controlled", ErrUnauthorized, p.ID)
	case p.OwnerID != "" && p.OwnerID != userID:
		return Player{}, ErrPlayerClaimed
	}
	p.OwnerID = userID
	players[i] = p
	return p, nil
}
