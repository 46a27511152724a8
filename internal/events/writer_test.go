package events

import (
	"context"
	"testing"
	"time"

	"robotctl/internal/db"
	"robotctl/internal/migrate"
)

func TestAppend(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := Writer{DB: conn, Now: func() time.Time { return fixed }}
	if err := w.Append(context.Background(), "req-1", "command %d created", 7); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Append(context.Background(), "", "no request id"); err != nil {
		t.Fatalf("append without request id: %v", err)
	}

	var ts, requestID, message string
	err = conn.QueryRow(`SELECT ts,COALESCE(request_id,''),message FROM logs WHERE id=1`).Scan(&ts, &requestID, &message)
	if err != nil {
		t.Fatalf("read log row: %v", err)
	}
	if ts != "2026-03-01T12:00:00Z" {
		t.Fatalf("ts = %q", ts)
	}
	if requestID != "req-1" || message != "command 7 created" {
		t.Fatalf("row = %q %q", requestID, message)
	}
}
