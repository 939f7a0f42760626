package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"soil/internal/api"
	"soil/internal/config"
	"soil/internal/game"
	"soil/internal/syncq"
)

func newAPI(t *testing.T) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := game.NewService(game.NewMemoryStore(), game.DefaultRules(), logger)
	srv := httptest.NewServer(api.New(config.APIConfig{SettleRPS: 100, SettleBurst: 100}, logger, nil, svc).Handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestClientPlaysARound(t *testing.T) {
	c := newAPI(t)
	ctx := context.Background()

	created, err := c.CreateGame(ctx, "", 1, []string{"Ada"}, []game.Strategy{game.StrategyRandomExplorer}, 3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	gameID, playerID := created.Game.ID, created.Players[0].ID
	if _, err := c.Settle(ctx, "", gameID); err != nil {
		t.Fatalf("start: %v", err)
	}
	field, err := c.Field(ctx, "", gameID, playerID, 1)
	if err != nil {
		t.Fatalf("field: %v", err)
	}
	d := game.DefaultDecisions(field)
	for n := range d.Plantations {
		d.Plantations[n] = game.Rye
	}
	cmd, err := SubmitCommand(gameID, playerID, 1, d)
	if err != nil {
		t.Fatalf("command: %v", err)
	}
	if err := c.Send(ctx, "", cmd); err != nil {
		t.Fatalf("send: %v", err)
	}
	err = c.Send(ctx, "", cmd)
	if !errors.Is(err, syncq.ErrPermanent) {
		t.Fatalf("duplicate send got=%v want=%v", err, syncq.ErrPermanent)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate send should keep the api status, got %v", err)
	}

	out, err := c.Settle(ctx, "", gameID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if out.Status != game.StatusFinished {
		t.Fatalf("status got=%s want=%s", out.Status, game.StatusFinished)
	}
	res, err := c.Result(ctx, "", gameID, playerID, 1)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if res.Yields[game.Rye] <= 0 {
		t.Fatalf("expected rye yield, got %v", res.Yields)
	}
	standings, err := c.Standings(ctx, "", gameID)
	if err != nil || len(standings) != 2 {
		t.Fatalf("standings=%v err=%v", standings, err)
	}
}

func TestAPIErrorCarriesStatus(t *testing.T) {
	c := newAPI(t)
	_, err := c.Game(context.Background(), "", "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got=%T %v", err, err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message == "" || !apiErr.Permanent() {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
	if (&APIError{StatusCode: http.StatusTooManyRequests}).Permanent() {
		t.Fatalf("429 should be retried")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	t.Setenv("SOIL_HOME", t.TempDir())
	empty, err := LoadSession()
	if err != nil || empty.AccessToken != "" {
		t.Fatalf("empty session=%+v err=%v", empty, err)
	}
	if err := empty.RequireGame(); err == nil {
		t.Fatalf("expected missing game error")
	}
	want := Session{AccessToken: "t", Email: "a@b.c", GameID: "g", PlayerID: "p"}
	if err := SaveSession(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadSession()
	if err != nil || got != want {
		t.Fatalf("got=%+v err=%v", got, err)
	}
	if err := ClearSession(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got, _ := LoadSession(); got.AccessToken != "" {
		t.Fatalf("session not cleared")
	}
}

func TestClientClaimsSeat(t *testing.T) {
	c := newAPI(t)
	ctx := context.Background()
	created, err := c.CreateGame(ctx, "", 1, []string{"Ada", "Bob"}, nil, 3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	bob := created.Players[1]
	if bob.OwnerID != "" {
		t.Fatalf("second seat owner got=%q want empty", bob.OwnerID)
	}
	claimed, err := c.ClaimPlayer(ctx, "", created.Game.ID, bob.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.ID != bob.ID || claimed.OwnerID == "" {
		t.Fatalf("claimed %+v", claimed)
	}
}
