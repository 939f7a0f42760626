package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"soil/internal/auth"
	"soil/internal/config"
	"soil/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type contextKey string

const userContextKey contextKey = "user"

// localUserID owns every request when token verification is disabled.
const localUserID = "local"

type UserContext struct {
	UserID string
	Email  string
	Token  string
}

// credentialProvider is implemented by verifiers that can also log users in.
type credentialProvider interface {
	SignUp(ctx context.Context, email, password string) (auth.Session, error)
	Login(ctx context.Context, email, password string) (auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (auth.Session, error)
}

type Server struct {
	cfg         config.APIConfig
	log         *slog.Logger
	auth        auth.Verifier
	game        *game.Service
	settleLimit *rate.Limiter
	mux         *chi.Mux
}

// New wires the HTTP surface. A nil verifier disables bearer-token checks.
func New(cfg config.APIConfig, logger *slog.Logger, verifier auth.Verifier, gameSvc *game.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	rps := cfg.SettleRPS
	if rps <= 0 {
		rps = 2
	}
	burst := max(cfg.SettleBurst, 1)
	s := &Server{
		cfg:         cfg,
		log:         logger,
		auth:        verifier,
		game:        gameSvc,
		settleLimit: rate.NewLimiter(rate.Limit(rps), burst),
		mux:         chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		if creds, ok := s.auth.(credentialProvider); ok {
			r.Post("/auth/signup", s.handleSignup(creds))
			r.Post("/auth/login", s.handleLogin(creds))
			r.Post("/auth/refresh", s.handleRefresh(creds))
		}

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/games", s.handleCreateGame)
			r.Get("/games/{id}", s.handleGame)
			r.Get("/games/{id}/players", s.handlePlayers)
			r.Post("/games/{id}/players/{pid}/claim", s.handleClaimPlayer)
			r.Get("/games/{id}/standings", s.handleStandings)
			r.With(s.limitSettle).Post("/games/{id}/settle", s.handleSettle)

			r.Route("/games/{id}/players/{pid}/rounds/{round}", func(r chi.Router) {
				r.Get("/field", s.handleField)
				r.Get("/decisions", s.handleGetDecisions)
				r.Post("/decisions", s.handleSubmitDecisions)
				r.Get("/result", s.handleResult)
			})
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		user := UserContext{UserID: localUserID, Token: token}
		if s.auth != nil {
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			id, err := s.auth.Verify(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, fmt.Sprintf("invalid token: %v", err))
				return
			}
			user = UserContext{UserID: id.ID, Email: id.Email, Token: token}
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) limitSettle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.settleLimit.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "settlement rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFromContext(ctx context.Context) (UserContext, error) {
	v := ctx.Value(userContextKey)
	user, ok := v.(UserContext)
	if !ok || user.UserID == "" {
		return UserContext{}, errors.New("missing auth context")
	}
	return user, nil
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleSignup(creds credentialProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in credentialsRequest
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		session, err := creds.SignUp(r.Context(), in.Email, in.Password)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, session)
	}
}

func (s *Server) handleLogin(creds credentialProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in credentialsRequest
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		session, err := creds.Login(r.Context(), in.Email, in.Password)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

func (s *Server) handleRefresh(creds credentialProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(in.RefreshToken) == "" {
			writeError(w, http.StatusBadRequest, "refresh_token is required")
			return
		}
		session, err := creds.Refresh(r.Context(), in.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		NumberOfRounds int             `json:"number_of_rounds"`
		HumanPlayers   []string        `json:"human_players"`
		AIStrategies   []game.Strategy `json:"ai_strategies"`
		Seed           int64           `json:"seed"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g, players, err := s.game.CreateGame(r.Context(), game.CreateGameInput{
		AdminID:        user.UserID,
		NumberOfRounds: in.NumberOfRounds,
		HumanPlayers:   in.HumanPlayers,
		AIStrategies:   in.AIStrategies,
		Seed:           in.Seed,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"game": g, "players": players})
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.game.Game(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.game.Players(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": players})
}

func (s *Server) handleClaimPlayer(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	p, err := s.game.ClaimPlayer(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "pid"), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.Standings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"standings": out})
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	gameID := chi.URLParam(r, "id")
	g, err := s.game.Game(r.Context(), gameID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if g.AdminID != "" && g.AdminID != user.UserID {
		writeDomainError(w, game.ErrUnauthorized)
		return
	}
	out, err := s.game.Settle(r.Context(), gameID)
	if err != nil {
		s.log.Warn("settle failed", "game_id", gameID, "request_id", middleware.GetReqID(r.Context()), "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// roundParams reads the game, player and round path parameters.
func roundParams(r *http.Request) (gameID, playerID string, round int, err error) {
	round, err = strconv.Atoi(chi.URLParam(r, "round"))
	if err != nil || round < 0 {
		return "", "", 0, fmt.Errorf("round must be a non-negative integer")
	}
	return chi.URLParam(r, "id"), chi.URLParam(r, "pid"), round, nil
}

func (s *Server) handleField(w http.ResponseWriter, r *http.Request) {
	gameID, playerID, round, err := roundParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	field, err := s.game.FieldState(r.Context(), gameID, playerID, round)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"round_number": round, "parcels": field})
}

func (s *Server) handleGetDecisions(w http.ResponseWriter, r *http.Request) {
	gameID, playerID, round, err := roundParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, ok, err := s.game.Decisions(r.Context(), gameID, playerID, round)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"submitted": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submitted": true, "decisions": d})
}

func (s *Server) handleSubmitDecisions(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	gameID, playerID, round, err := roundParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.game.AuthorizeSubmit(r.Context(), gameID, playerID, user.UserID); err != nil {
		writeDomainError(w, err)
		return
	}
	var d game.RoundDecisions
	if err := decodeJSON(r, &d); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key := idempotencyKey(r)
	if err := s.game.SubmitDecisions(r.Context(), gameID, playerID, round, d); err != nil {
		s.log.Info("decisions rejected", "game_id", gameID, "player_id", playerID, "round", round, "idempotency_key", key, "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "idempotency_key": key})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	gameID, playerID, round, err := roundParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.game.Result(r.Context(), gameID, playerID, round)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeDomainError(w http.ResponseWriter, err error) {
	var serr *game.SettlementError
	switch {
	case errors.Is(err, game.ErrAwaitingSubmissions),
		errors.Is(err, game.ErrGameFinished),
		errors.Is(err, game.ErrSettlementInProgress),
		errors.Is(err, game.ErrAlreadySubmitted),
		errors.Is(err, game.ErrWrongRound),
		errors.Is(err, game.ErrPlayerClaimed),
		errors.Is(err, game.ErrTxConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &serr):
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, game.ErrInvalidDecisions), errors.Is(err, game.ErrInvalidGame):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, game.ErrGameNotFound),
		errors.Is(err, game.ErrPlayerNotFound),
		errors.Is(err, game.ErrResultNotFound),
		errors.Is(err, game.ErrMissingFieldState):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
