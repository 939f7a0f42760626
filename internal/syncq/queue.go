package syncq

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Command is one request recorded while the API was unreachable.
type Command struct {
	Method         string          `json:"method"`
	Path           string          `json:"path"`
	Body           json.RawMessage `json:"body,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`
	Label          string          `json:"label,omitempty"`
}

// ErrPermanent marks a command the server rejected for good; Replay drops it.
var ErrPermanent = errors.New("command rejected permanently")

// Dir is where the CLI keeps its local state. SOIL_HOME overrides ~/.soil.
func Dir() (string, error) {
	dir := strings.TrimSpace(os.Getenv("SOIL_HOME"))
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".soil")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func queuePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "queue.json"), nil
}

func Load() ([]Command, error) {
	path, err := queuePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Command{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Command{}, nil
	}
	var out []Command
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func Save(commands []Command) error {
	path, err := queuePath()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func Push(cmd Command) error {
	commands, err := Load()
	if err != nil {
		return err
	}
	for _, existing := range commands {
		if cmd.IdempotencyKey != "" && existing.IdempotencyKey == cmd.IdempotencyKey {
			return nil
		}
	}
	commands = append(commands, cmd)
	return Save(commands)
}

// Replay sends queued commands in order. Delivered and permanently rejected
// commands leave the queue; the first transient failure stops the replay and
// keeps it and everything after it for the next attempt.
func Replay(ctx context.Context, send func(context.Context, Command) error) (delivered, dropped int, err error) {
	commands, err := Load()
	if err != nil {
		return 0, 0, err
	}
	i := 0
	for ; i < len(commands); i++ {
		if err = send(ctx, commands[i]); err != nil {
			if errors.Is(err, ErrPermanent) {
				dropped++
				err = nil
				continue
			}
			break
		}
		delivered++
	}
	if saveErr := Save(commands[i:]); saveErr != nil && err == nil {
		err = saveErr
	}
	return delivered, dropped, err
}
