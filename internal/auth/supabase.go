package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrInvalidToken = errors.New("invalid access token")

// Identity is the authenticated caller behind a bearer token.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Verifier resolves a bearer token to an Identity.
type Verifier interface {
	Verify(ctx context.Context, accessToken string) (Identity, error)
}

type SupabaseClient struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

type Session struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int      `json:"expires_in"`
	TokenType    string   `json:"token_type"`
	User         Identity `json:"user"`
}

func NewSupabaseClient(baseURL, anonKey string) *SupabaseClient {
	return &SupabaseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (c *SupabaseClient) SignUp(ctx context.Context, email, password string) (Session, error) {
	var out Session
	err := c.postJSON(ctx, "/auth/v1/signup", credentials(email, password), &out)
	return out, err
}

func (c *SupabaseClient) Login(ctx context.Context, email, password string) (Session, error) {
	var out Session
	err := c.postJSON(ctx, "/auth/v1/token?grant_type=password", credentials(email, password), &out)
	return out, err
}

func (c *SupabaseClient) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	var out Session
	err := c.postJSON(ctx, "/auth/v1/token?grant_type=refresh_token", map[string]string{"refresh_token": refreshToken}, &out)
	return out, err
}

func credentials(email, password string) map[string]string {
	return map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	}
}

func (c *SupabaseClient) Verify(ctx context.Context, accessToken string) (Identity, error) {
	if strings.TrimSpace(accessToken) == "" {
		return Identity{}, ErrInvalidToken
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Identity{}, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Identity{}, fmt.Errorf("verify token status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return Identity{}, fmt.Errorf("decode user: %w", err)
	}
	if id.ID == "" {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}

func (c *SupabaseClient) postJSON(ctx context.Context, path string, in any, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.anonKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supabase request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("supabase status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StaticVerifier accepts a fixed token table. It backs local play and tests
// when no Supabase project is configured.
type StaticVerifier map[string]Identity

func (s StaticVerifier) Verify(_ context.Context, accessToken string) (Identity, error) {
	id, ok := s[accessToken]
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}
