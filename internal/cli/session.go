package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"soil/internal/syncq"
)

// Session is the signed-in user plus the game and player the CLI acts for.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Email        string `json:"email"`
	UserID       string `json:"user_id"`
	GameID       string `json:"game_id,omitempty"`
	PlayerID     string `json:"player_id,omitempty"`
}

func sessionPath() (string, error) {
	dir, err := syncq.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.json"), nil
}

func SaveSession(s Session) error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o600)
}

// LoadSession returns the stored session. A missing file is an empty session,
// which is enough against an API running without authentication.
func LoadSession() (Session, error) {
	path, err := sessionPath()
	if err != nil {
		return Session{}, err
	}
	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, nil
		}
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(body, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

// RequireGame fails unless a game and player have been selected.
func (s Session) RequireGame() error {
	if strings.TrimSpace(s.GameID) == "" || strings.TrimSpace(s.PlayerID) == "" {
		return fmt.Errorf("no game selected; run `soil game use <game-id> <player-id>` first")
	}
	return nil
}

func ClearSession() error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return os.Remove(path)
}
