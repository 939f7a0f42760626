package game

import (
	"context"
	"errors"
	"io"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"testing"
)

func newTestService(store Store) *Service {
	rules := DefaultRules()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, rules, logger).
		WithDecisionGenerator(NewDecisionGenerator(rules, mathrand.New(mathrand.NewSource(7))))
}

func plantAll(field []Parcel, p Plantation) RoundDecisions {
	d := RoundDecisions{Plantations: map[int]Plantation{}}
	for _, parcel := range field {
		d.Plantations[parcel.Number] = p
	}
	return d
}

func startGame(t *testing.T, svc *Service, rounds int, humans []string, ai []Strategy) (Game, []Player) {
	t.Helper()
	ctx := context.Background()
	g, players, err := svc.CreateGame(ctx, CreateGameInput{
		AdminID:        "admin",
		NumberOfRounds: rounds,
		HumanPlayers:   humans,
		AIStrategies:   ai,
		Seed:           99,
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	out, err := svc.Settle(ctx, g.ID)
	if err != nil {
		t.Fatalf("start game: %v", err)
	}
	if out.NextRound != 1 || out.Status != StatusActive {
		t.Fatalf("start got round=%d status=%s", out.NextRound, out.Status)
	}
	g, err = svc.Game(ctx, g.ID)
	if err != nil {
		t.Fatalf("load game: %v", err)
	}
	return g, players
}

func submitWheat(t *testing.T, svc *Service, g Game, playerID string) {
	t.Helper()
	ctx := context.Background()
	field, err := svc.FieldState(ctx, g.ID, playerID, g.CurrentRound)
	if err != nil {
		t.Fatalf("field: %v", err)
	}
	if err := svc.SubmitDecisions(ctx, g.ID, playerID, g.CurrentRound, plantAll(field, Wheat)); err != nil {
		t.Fatalf("submit: %v", err)
	}
}

func TestCreateGame(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()
	g, players, err := svc.CreateGame(ctx, CreateGameInput{NumberOfRounds: 5, HumanPlayers: []string{"Ada"}, AIStrategies: []Strategy{"eco_conscious", "nonsense"}, Seed: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.Status != StatusPending || g.CurrentRound != 0 {
		t.Fatalf("got status=%s round=%d", g.Status, g.CurrentRound)
	}
	if len(g.WeatherSequence) != 5 || len(g.VerminSequence) != 5 {
		t.Fatalf("sequence lengths %d/%d want 5", len(g.WeatherSequence), len(g.VerminSequence))
	}
	if g.WeatherSequence[0] != WeatherNormal || g.VerminSequence[0] != VerminNone {
		t.Fatalf("first round should be calm, got %s/%s", g.WeatherSequence[0], g.VerminSequence[0])
	}
	if len(players) != 3 || players[0].IsAI || !players[1].IsAI {
		t.Fatalf("unexpected players: %+v", players)
	}
	if players[2].Strategy != StrategyBalanced {
		t.Fatalf("unknown strategy got=%s want=%s", players[2].Strategy, StrategyBalanced)
	}
	field, err := svc.FieldState(ctx, g.ID, players[0].ID, 0)
	if err != nil || len(field) != DefaultParcelCount {
		t.Fatalf("initial field len=%d err=%v", len(field), err)
	}

	again, _, err := svc.CreateGame(ctx, CreateGameInput{NumberOfRounds: 5, HumanPlayers: []string{"Ada"}, Seed: 1})
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	for i := range g.WeatherSequence {
		if g.WeatherSequence[i] != again.WeatherSequence[i] || g.VerminSequence[i] != again.VerminSequence[i] {
			t.Fatalf("seeded sequences differ at %d", i)
		}
	}
}

func TestCreateGameRejectsBadSetup(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()
	inputs := []CreateGameInput{
		{NumberOfRounds: 0, HumanPlayers: []string{"a"}},
		{NumberOfRounds: MaxRounds + 1, HumanPlayers: []string{"a"}},
		{NumberOfRounds: 3},
		{NumberOfRounds: 3, HumanPlayers: []string{"  "}},
	}
	for i, in := range inputs {
		if _, _, err := svc.CreateGame(ctx, in); !errors.Is(err, ErrInvalidGame) {
			t.Fatalf("input %d: got=%v want=%v", i, err, ErrInvalidGame)
		}
	}
}

func TestTwoRoundGame(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()
	g, players := startGame(t, svc, 2, []string{"Ada"}, []Strategy{StrategyProfitMaximizer})
	human, bot := players[0], players[1]

	submitWheat(t, svc, g, human.ID)
	out, err := svc.Settle(ctx, g.ID)
	if err != nil {
		t.Fatalf("settle round 1: %v", err)
	}
	if out.Round != 1 || out.NextRound != 2 || out.Status != StatusActive {
		t.Fatalf("round 1 outcome %+v", out)
	}
	if len(out.Results) != 2 || len(out.Synthesized) != 1 || out.Synthesized[0] != bot.ID {
		t.Fatalf("round 1 results=%d synthesized=%v", len(out.Results), out.Synthesized)
	}

	first, err := svc.Result(ctx, g.ID, human.ID, 1)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if !first.ClosingCapital.Equal(first.StartingCapital.Add(first.ProfitOrLoss)) {
		t.Fatalf("capital mismatch %s + %s != %s", first.StartingCapital, first.ProfitOrLoss, first.ClosingCapital)
	}
	if first.Yields[Wheat] <= 0 {
		t.Fatalf("expected a wheat harvest, got %v", first.Yields)
	}
	next, err := svc.FieldState(ctx, g.ID, human.ID, 2)
	if err != nil {
		t.Fatalf("round 2 field: %v", err)
	}
	if next[0].Current != Wheat || next[0].Previous != Fallow {
		t.Fatalf("round 2 field history current=%s previous=%s", next[0].Current, next[0].Previous)
	}

	g, _ = svc.Game(ctx, g.ID)
	submitWheat(t, svc, g, human.ID)
	out, err = svc.Settle(ctx, g.ID)
	if err != nil {
		t.Fatalf("settle round 2: %v", err)
	}
	if out.Status != StatusFinished {
		t.Fatalf("status got=%s want=%s", out.Status, StatusFinished)
	}
	second, err := svc.Result(ctx, g.ID, human.ID, 2)
	if err != nil {
		t.Fatalf("result 2: %v", err)
	}
	if !second.StartingCapital.Equal(first.ClosingCapital) {
		t.Fatalf("round 2 start %s want %s", second.StartingCapital, first.ClosingCapital)
	}
	if _, err := svc.FieldState(ctx, g.ID, human.ID, 3); !errors.Is(err, ErrMissingFieldState) {
		t.Fatalf("round 3 field got=%v want=%v", err, ErrMissingFieldState)
	}
	if _, ok, err := svc.Decisions(ctx, g.ID, human.ID, 3); err != nil || ok {
		t.Fatalf("round 3 decisions ok=%v err=%v", ok, err)
	}

	if _, err := svc.Settle(ctx, g.ID); !errors.Is(err, ErrGameFinished) {
		t.Fatalf("settle after finish got=%v want=%v", err, ErrGameFinished)
	}
	standings, err := svc.Standings(ctx, g.ID)
	if err != nil {
		t.Fatalf("standings: %v", err)
	}
	if len(standings) != 2 || standings[0].Rank != 1 || standings[0].ClosingCapital.LessThan(standings[1].ClosingCapital) {
		t.Fatalf("unexpected standings: %+v", standings)
	}
	if standings[0].Round != 2 {
		t.Fatalf("standings round got=%d want=2", standings[0].Round)
	}
}

func TestSettleWaitsForHumans(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()
	g, players := startGame(t, svc, 3, []string{"Ada", "Grace"}, []Strategy{StrategyBalanced})

	submitWheat(t, svc, g, players[0].ID)
	out, err := svc.Settle(ctx, g.ID)
	if !errors.Is(err, ErrAwaitingSubmissions) {
		t.Fatalf("got=%v want=%v", err, ErrAwaitingSubmissions)
	}
	var serr *SettlementError
	if !errors.As(err, &serr) || serr.PlayerID != players[1].ID || serr.Phase != "gate" {
		t.Fatalf("unexpected settlement error: %#v", err)
	}
	if len(out.Synthesized) != 1 {
		t.Fatalf("AI decisions should be stored while waiting, got %v", out.Synthesized)
	}
	if cur, _ := svc.Game(ctx, g.ID); cur.CurrentRound != 1 {
		t.Fatalf("round advanced to %d", cur.CurrentRound)
	}

	submitWheat(t, svc, g, players[1].ID)
	out, err = svc.Settle(ctx, g.ID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(out.Synthesized) != 0 {
		t.Fatalf("AI decisions regenerated: %v", out.Synthesized)
	}
	if out.NextRound != 2 {
		t.Fatalf("next round got=%d want=2", out.NextRound)
	}
}

func TestSettleRoundDoesNotSynthesize(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()
	g, players := startGame(t, svc, 2, []string{"Ada"}, []Strategy{StrategyEcoConscious})
	submitWheat(t, svc, g, players[0].ID)

	if _, err := svc.SettleRound(ctx, g.ID); !errors.Is(err, ErrAwaitingSubmissions) {
		t.Fatalf("got=%v want=%v", err, ErrAwaitingSubmissions)
	}
	ids, err := svc.EnsureDecisions(ctx, g.ID)
	if err != nil || len(ids) != 1 {
		t.Fatalf("ensure got=%v err=%v", ids, err)
	}
	if _, err := svc.SettleRound(ctx, g.ID); err != nil {
		t.Fatalf("settle round: %v", err)
	}
}

func TestSubmitDecisionsRejections(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()
	g, players := startGame(t, svc, 2, []string{"Ada"}, nil)
	human := players[0]
	field, _ := svc.FieldState(ctx, g.ID, human.ID, 1)

	if err := svc.SubmitDecisions(ctx, g.ID, human.ID, 2, plantAll(field, Oat)); !errors.Is(err, ErrWrongRound) {
		t.Fatalf("wrong round got=%v", err)
	}
	if err := svc.SubmitDecisions(ctx, g.ID, "nobody", 1, plantAll(field, Oat)); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("unknown player got=%v", err)
	}
	partial := plantAll(field[:3], Oat)
	if err := svc.SubmitDecisions(ctx, g.ID, human.ID, 1, partial); !errors.Is(err, ErrInvalidDecisions) {
		t.Fatalf("partial got=%v", err)
	}
	tooMuch := plantAll(field, Oat)
	tooMuch.MachineInvestment = 99
	if err := svc.SubmitDecisions(ctx, g.ID, human.ID, 1, tooMuch); !errors.Is(err, ErrInvalidDecisions) {
		t.Fatalf("investment got=%v", err)
	}
	if err := svc.SubmitDecisions(ctx, g.ID, human.ID, 1, plantAll(field, Oat)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.SubmitDecisions(ctx, g.ID, human.ID, 1, plantAll(field, Rye)); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("resubmit got=%v", err)
	}
	if _, err := svc.Game(ctx, "missing"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("missing game got=%v", err)
	}
}

// flakyStore fails SaveResult for one chosen player until healed.
type flakyStore struct {
	*MemoryStore
	mu       sync.Mutex
	failFor  string
	attempts int
}

var errDiskFull = errors.New("disk full")

func (f *flakyStore) SaveResult(ctx context.Context, res Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if res.PlayerID == f.failFor {
		return errDiskFull
	}
	return f.MemoryStore.SaveResult(ctx, res)
}

func (f *flakyStore) heal() {
	f.mu.Lock()
	f.failFor = ""
	f.mu.Unlock()
}

func TestPersistenceFailureHaltsRound(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore()}
	svc := newTestService(store)
	ctx := context.Background()
	g, players := startGame(t, svc, 3, []string{"Ada", "Grace"}, nil)
	for _, p := range players {
		submitWheat(t, svc, g, p.ID)
	}

	store.failFor = players[1].ID
	_, err := svc.Settle(ctx, g.ID)
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("got=%v want=%v", err, errDiskFull)
	}
	var serr *SettlementError
	if !errors.As(err, &serr) || serr.Phase != "persist" || serr.Round != 1 {
		t.Fatalf("unexpected error: %#v", err)
	}
	if cur, _ := svc.Game(ctx, g.ID); cur.CurrentRound != 1 || cur.Status != StatusActive {
		t.Fatalf("round advanced after failure: %+v", cur)
	}
	if _, err := svc.FieldState(ctx, g.ID, players[0].ID, 2); !errors.Is(err, ErrMissingFieldState) {
		t.Fatalf("next round initialized after failure: %v", err)
	}

	store.heal()
	out, err := svc.Settle(ctx, g.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if out.NextRound != 2 || len(out.Results) != 2 {
		t.Fatalf("retry outcome %+v", out)
	}
}

func TestConcurrentSettleIsRejected(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()
	g, _ := startGame(t, svc, 2, nil, []Strategy{StrategyBalanced})

	release, err := svc.acquire(g.ID)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := svc.Settle(ctx, g.ID); !errors.Is(err, ErrSettlementInProgress) {
		t.Fatalf("got=%v want=%v", err, ErrSettlementInProgress)
	}
	release()
	if _, err := svc.Settle(ctx, g.ID); err != nil {
		t.Fatalf("settle after release: %v", err)
	}
}

func TestAllAIGameRunsToCompletion(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()
	g, _ := startGame(t, svc, 4, nil, Strategies)
	for i := 1; i <= 4; i++ {
		out, err := svc.Settle(ctx, g.ID)
		if err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
		if len(out.Results) != len(Strategies) {
			t.Fatalf("round %d results=%d", i, len(out.Results))
		}
	}
	g, _ = svc.Game(ctx, g.ID)
	if g.Status != StatusFinished || g.CurrentRound != 4 {
		t.Fatalf("final state %s round %d", g.Status, g.CurrentRound)
	}
}

func TestSettleActiveSkipsWaitingGames(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()
	waiting, _ := startGame(t, svc, 2, []string{"Ada"}, nil)
	ready, _ := startGame(t, svc, 2, nil, []Strategy{StrategyBalanced})
	if _, _, err := svc.CreateGame(ctx, CreateGameInput{NumberOfRounds: 1, AIStrategies: []Strategy{StrategyBalanced}}); err != nil {
		t.Fatalf("create pending: %v", err)
	}

	advanced, err := svc.SettleActive(ctx)
	if err != nil {
		t.Fatalf("settle active: %v", err)
	}
	if advanced != 1 {
		t.Fatalf("advanced got=%d want=1", advanced)
	}
	if g, _ := svc.Game(ctx, ready.ID); g.CurrentRound != 2 {
		t.Fatalf("ready game round got=%d want=2", g.CurrentRound)
	}
	if g, _ := svc.Game(ctx, waiting.ID); g.CurrentRound != 1 {
		t.Fatalf("waiting game round got=%d want=1", g.CurrentRound)
	}
}

// pausingStore parks the first SaveResult until resume is closed.
type pausingStore struct {
	*MemoryStore
	once    sync.Once
	reached chan struct{}
	resume  chan struct{}
}

func (p *pausingStore) SaveResult(ctx context.Context, res Result) error {
	p.once.Do(func() {
		close(p.reached)
		<-p.resume
	})
	return p.MemoryStore.SaveResult(ctx, res)
}

func TestStaleSettlerCannotRewindRound(t *testing.T) {
	shared := NewMemoryStore()
	fast := newTestService(shared)
	slowStore := &pausingStore{MemoryStore: shared, reached: make(chan struct{}), resume: make(chan struct{})}
	slow := newTestService(slowStore)
	ctx := context.Background()
	g, players := startGame(t, fast, 4, nil, []Strategy{StrategyBalanced})

	done := make(chan error, 1)
	go func() {
		_, err := slow.Settle(ctx, g.ID)
		done <- err
	}()
	<-slowStore.reached

	for round := 1; round <= 2; round++ {
		out, err := fast.Settle(ctx, g.ID)
		if err != nil {
			t.Fatalf("fast settle round %d: %v", round, err)
		}
		if out.Round != round {
			t.Fatalf("fast settled round got=%d want=%d", out.Round, round)
		}
	}
	close(slowStore.resume)

	err := <-done
	if !errors.Is(err, ErrSettlementInProgress) {
		t.Fatalf("stale settle got=%v want=%v", err, ErrSettlementInProgress)
	}
	var se *SettlementError
	if !errors.As(err, &se) || se.Phase != "advance" || se.Round != 1 {
		t.Fatalf("expected advance failure for round 1, got %v", err)
	}
	after, err := shared.LoadGame(ctx, g.ID)
	if err != nil {
		t.Fatalf("load game: %v", err)
	}
	if after.CurrentRound != 3 || after.Status != StatusActive {
		t.Fatalf("game rewound to round %d status %s", after.CurrentRound, after.Status)
	}
	if _, err := shared.LoadResult(ctx, g.ID, players[0].ID, 2); err != nil {
		t.Fatalf("round 2 result lost: %v", err)
	}
}

func TestMemoryStoreRoundAdvanceIsCompareAndSet(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()
	g, _ := startGame(t, svc, 2, nil, []Strategy{StrategyBalanced})

	if err := store.UpdateGameRoundState(ctx, g.ID, 0, 1, StatusActive); !errors.Is(err, ErrSettlementInProgress) {
		t.Fatalf("stale advance got=%v want=%v", err, ErrSettlementInProgress)
	}
	if err := store.UpdateGameRoundState(ctx, g.ID, 1, 2, StatusActive); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := store.UpdateGameRoundState(ctx, g.ID, 2, 2, StatusFinished); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := store.UpdateGameRoundState(ctx, g.ID, 2, 2, StatusFinished); !errors.Is(err, ErrGameFinished) {
		t.Fatalf("finish twice got=%v want=%v", err, ErrGameFinished)
	}
	if err := store.UpdateGameRoundState(ctx, "missing", 0, 1, StatusActive); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("missing game got=%v want=%v", err, ErrGameNotFound)
	}
}

// lateWriterStore stores AI decisions and then reports that another writer
// got there first, as a second settler process would.
type lateWriterStore struct {
	*MemoryStore
}

func (l *lateWriterStore) SaveDecisions(ctx context.Context, gameID, playerID string, round int, d RoundDecisions) error {
	if err := l.MemoryStore.SaveDecisions(ctx, gameID, playerID, round, d); err != nil {
		return err
	}
	return ErrAlreadySubmitted
}

func TestEnsureDecisionsSkipsPlayersStoredElsewhere(t *testing.T) {
	svc := newTestService(&lateWriterStore{MemoryStore: NewMemoryStore()})
	ctx := context.Background()
	g, players := startGame(t, svc, 2, nil, []Strategy{StrategyBalanced, StrategyEcoConscious})

	ids, err := svc.EnsureDecisions(ctx, g.ID)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("synthesized got=%v want none", ids)
	}
	for _, p := range players {
		if _, ok, err := svc.Decisions(ctx, g.ID, p.ID, 1); err != nil || !ok {
			t.Fatalf("player %s decisions ok=%v err=%v", p.ID, ok, err)
		}
	}
	out, err := svc.SettleRound(ctx, g.ID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(out.Results) != 2 || len(out.Synthesized) != 0 {
		t.Fatalf("results=%d synthesized=%v", len(out.Results), out.Synthesized)
	}
}

func TestSeatOwnership(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()
	g, players := startGame(t, svc, 1, []string{"Ada", "Bob"}, []Strategy{StrategyBalanced})
	ada, bob, bot := players[0], players[1], players[2]
	if ada.OwnerID != "admin" || bob.OwnerID != "" || bot.OwnerID != "" {
		t.Fatalf("owners ada=%q bob=%q bot=%q", ada.OwnerID, bob.OwnerID, bot.OwnerID)
	}

	tests := []struct {
		name     string
		playerID string
		userID   string
		wantErr  error
	}{
		{name: "owner", playerID: ada.ID, userID: "admin"},
		{name: "stranger on owned seat", playerID: ada.ID, userID: "eve", wantErr: ErrUnauthorized},
		{name: "admin on empty seat", playerID: bob.ID, userID: "admin"},
		{name: "stranger on empty seat", playerID: bob.ID, userID: "eve", wantErr: ErrUnauthorized},
		{name: "ai seat", playerID: bot.ID, userID: "admin", wantErr: ErrUnauthorized},
		{name: "unknown seat", playerID: "nobody", userID: "admin", wantErr: ErrPlayerNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.AuthorizeSubmit(ctx, g.ID, tc.playerID, tc.userID)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got=%v want=%v", err, tc.wantErr)
			}
		})
	}

	claimed, err := svc.ClaimPlayer(ctx, g.ID, bob.ID, "eve")
	if err != nil || claimed.OwnerID != "eve" {
		t.Fatalf("claim player=%+v err=%v", claimed, err)
	}
	if _, err := svc.ClaimPlayer(ctx, g.ID, bob.ID, "admin"); !errors.Is(err, ErrPlayerClaimed) {
		t.Fatalf("claim taken seat got=%v want=%v", err, ErrPlayerClaimed)
	}
	if _, err := svc.ClaimPlayer(ctx, g.ID, bot.ID, "eve"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("claim ai seat got=%v want=%v", err, ErrUnauthorized)
	}
	if err := svc.AuthorizeSubmit(ctx, g.ID, bob.ID, "admin"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("admin on claimed seat got=%v want=%v", err, ErrUnauthorized)
	}
	if err := svc.AuthorizeSubmit(ctx, g.ID, bob.ID, "eve"); err != nil {
		t.Fatalf("owner on claimed seat: %v", err)
	}
	stored, _ := svc.Players(ctx, g.ID)
	if stored[1].OwnerID != "eve" {
		t.Fatalf("stored owner got=%q want=eve", stored[1].OwnerID)
	}

	field, err := svc.FieldState(ctx, g.ID, bot.ID, 1)
	if err != nil {
		t.Fatalf("bot field: %v", err)
	}
	if err := svc.SubmitDecisions(ctx, g.ID, bot.ID, 1, plantAll(field, Oat)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("submit for ai got=%v want=%v", err, ErrUnauthorized)
	}
}
