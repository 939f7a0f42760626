package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"soil/internal/game"
)

func TestIsSerializationError(t *testing.T) {
	conflict := &pgconn.PgError{Code: "40001"}
	if !isSerializationError(conflict) {
		t.Fatalf("expected 40001 to be a serialization error")
	}
	if !isSerializationError(fmt.Errorf("save: %w", conflict)) {
		t.Fatalf("expected wrapped 40001 to be a serialization error")
	}
	if isSerializationError(&pgconn.PgError{Code: "23505"}) || isSerializationError(errors.New("boom")) {
		t.Fatalf("unexpected serialization match")
	}
}

func TestRetrySerializableRecovers(t *testing.T) {
	calls := 0
	err := retrySerializable(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("got err=%v calls=%d want nil/3", err, calls)
	}
}

func TestRetrySerializableStopsOnOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := retrySerializable(context.Background(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("got err=%v calls=%d", err, calls)
	}
}

func TestRetrySerializableGivesUp(t *testing.T) {
	if testing.Short() {
		t.Skip("waits through the full backoff")
	}
	calls := 0
	err := retrySerializable(context.Background(), func() error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})
	if !errors.Is(err, game.ErrTxConflict) || calls != maxTxAttempts {
		t.Fatalf("got err=%v calls=%d want %v/%d", err, calls, game.ErrTxConflict, maxTxAttempts)
	}
}

func TestRetrySerializableHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := retrySerializable(ctx, func() error {
		return &pgconn.PgError{Code: "40001"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got=%v want=%v", err, context.Canceled)
	}
}

func TestValidIDs(t *testing.T) {
	if !validIDs("3b241101-e2bb-4255-8caf-4136c566a962") {
		t.Fatalf("expected uuid to be valid")
	}
	if validIDs("3b241101-e2bb-4255-8caf-4136c566a962", "missing") {
		t.Fatalf("expected non-uuid to be rejected")
	}
}
