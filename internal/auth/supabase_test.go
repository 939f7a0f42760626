package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func fakeSupabase(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "anon" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(Identity{ID: "u-1", Email: "farmer@example.com"})
	})
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if r.URL.Query().Get("grant_type") == "refresh_token" && body["refresh_token"] == "r" {
			_ = json.NewEncoder(w).Encode(Session{AccessToken: "fresh", RefreshToken: "r2", User: Identity{ID: "u-1"}})
			return
		}
		if r.URL.Query().Get("grant_type") != "password" || body["password"] != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(Session{AccessToken: "good", RefreshToken: "r", User: Identity{ID: "u-1", Email: body["email"]}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSupabaseVerify(t *testing.T) {
	srv := fakeSupabase(t)
	c := NewSupabaseClient(srv.URL+"/", "anon")
	ctx := context.Background()

	id, err := c.Verify(ctx, "good")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.ID != "u-1" {
		t.Fatalf("id got=%s want=u-1", id.ID)
	}
	if _, err := c.Verify(ctx, "bad"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("bad token got=%v want=%v", err, ErrInvalidToken)
	}
	if _, err := c.Verify(ctx, " "); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("blank token got=%v", err)
	}
}

func TestSupabaseLogin(t *testing.T) {
	srv := fakeSupabase(t)
	c := NewSupabaseClient(srv.URL, "anon")
	s, err := c.Login(context.Background(), " farmer@example.com ", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if s.AccessToken != "good" || s.User.Email != "farmer@example.com" {
		t.Fatalf("session %+v", s)
	}
	if _, err := c.Login(context.Background(), "farmer@example.com", "wrong"); err == nil {
		t.Fatalf("expected login failure")
	}
}

func TestSupabaseRefresh(t *testing.T) {
	srv := fakeSupabase(t)
	c := NewSupabaseClient(srv.URL, "anon")
	s, err := c.Refresh(context.Background(), "r")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if s.AccessToken != "fresh" || s.RefreshToken != "r2" {
		t.Fatalf("session %+v", s)
	}
	if _, err := c.Refresh(context.Background(), "stale"); err == nil {
		t.Fatalf("expected refresh failure")
	}
}

func TestStaticVerifier(t *testing.T) {
	v := StaticVerifier{"t": {ID: "admin"}}
	if id, err := v.Verify(context.Background(), "t"); err != nil || id.ID != "admin" {
		t.Fatalf("got=%+v err=%v", id, err)
	}
	if _, err := v.Verify(context.Background(), "x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got=%v", err)
	}
}
