package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"soil/internal/auth"
	"soil/internal/game"
	"soil/internal/syncq"

	"github.com/google/uuid"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.StatusCode, e.Message)
}

// Permanent reports whether retrying the same request cannot succeed.
func (e *APIError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Signup(ctx context.Context, email, password string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out, "")
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out, "")
	return out, err
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/refresh", "", map[string]any{
		"refresh_token": refreshToken,
	}, &out, "")
	return out, err
}

type CreatedGame struct {
	Game    game.Game     `json:"game"`
	Players []game.Player `json:"players"`
}

func (c *Client) CreateGame(ctx context.Context, accessToken string, rounds int, humans []string, strategies []game.Strategy, seed int64) (CreatedGame, error) {
	var out CreatedGame
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games", accessToken, map[string]any{
		"number_of_rounds": rounds,
		"human_players":    humans,
		"ai_strategies":    strategies,
		"seed":             seed,
	}, &out, "")
	return out, err
}

func (c *Client) Game(ctx context.Context, accessToken, gameID string) (game.Game, error) {
	var out game.Game
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/games/"+url.PathEscape(gameID), accessToken, nil, &out, "")
	return out, err
}

func (c *Client) Players(ctx context.Context, accessToken, gameID string) ([]game.Player, error) {
	var out struct {
		Players []game.Player `json:"players"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/games/"+url.PathEscape(gameID)+"/players", accessToken, nil, &out, "")
	return out.Players, err
}

// ClaimPlayer binds a human seat to the caller's account.
func (c *Client) ClaimPlayer(ctx context.Context, accessToken, gameID, playerID string) (game.Player, error) {
	var out game.Player
	path := "/v1/games/" + url.PathEscape(gameID) + "/players/" + url.PathEscape(playerID) + "/claim"
	err := c.jsonRequest(ctx, http.MethodPost, path, accessToken, nil, &out, "")
	return out, err
}

func (c *Client) Standings(ctx context.Context, accessToken, gameID string) ([]game.Standing, error) {
	var out struct {
		Standings []game.Standing `json:"standings"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/games/"+url.PathEscape(gameID)+"/standings", accessToken, nil, &out, "")
	return out.Standings, err
}

func (c *Client) Settle(ctx context.Context, accessToken, gameID string) (game.SettleOutcome, error) {
	var out game.SettleOutcome
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games/"+url.PathEscape(gameID)+"/settle", accessToken, nil, &out, "")
	return out, err
}

func roundPath(gameID, playerID string, round int, leaf string) string {
	return fmt.Sprintf("/v1/games/%s/players/%s/rounds/%d/%s", url.PathEscape(gameID), url.PathEscape(playerID), round, leaf)
}

func (c *Client) Field(ctx context.Context, accessToken, gameID, playerID string, round int) ([]game.Parcel, error) {
	var out struct {
		Parcels []game.Parcel `json:"parcels"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, roundPath(gameID, playerID, round, "field"), accessToken, nil, &out, "")
	return out.Parcels, err
}

func (c *Client) Result(ctx context.Context, accessToken, gameID, playerID string, round int) (game.Result, error) {
	var out game.Result
	err := c.jsonRequest(ctx, http.MethodGet, roundPath(gameID, playerID, round, "result"), accessToken, nil, &out, "")
	return out, err
}

// SubmitCommand builds the request that submits decisions, ready to send or queue.
func SubmitCommand(gameID, playerID string, round int, d game.RoundDecisions) (syncq.Command, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return syncq.Command{}, err
	}
	return syncq.Command{
		Method:         http.MethodPost,
		Path:           roundPath(gameID, playerID, round, "decisions"),
		Body:           body,
		IdempotencyKey: uuid.NewString(),
		Label:          fmt.Sprintf("round %d decisions", round),
	}, nil
}

// Send delivers a queued command. Rejections that will never succeed wrap
// syncq.ErrPermanent so a replay drops them.
func (c *Client) Send(ctx context.Context, accessToken string, cmd syncq.Command) error {
	var in any
	if len(cmd.Body) > 0 {
		in = cmd.Body
	}
	err := c.jsonRequest(ctx, cmd.Method, cmd.Path, accessToken, in, nil, cmd.IdempotencyKey)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Permanent() {
		return fmt.Errorf("%w: %w", syncq.ErrPermanent, err)
	}
	return err
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
