package repo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"robotctl/internal/db"
	"robotctl/internal/domain"
	"robotctl/internal/migrate"
)

func newTestRepo(t *testing.T) Repo {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return Repo{DB: conn}
}

func TestCommandRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	created, err := r.InsertCommand(ctx, domain.Command{CommandText: "MoveForward", Robot: "Robot1", User: "user"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("insert did not assign an id")
	}

	got, err := r.GetCommand(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != created {
		t.Fatalf("get = %+v, want %+v", got, created)
	}
}

func TestGetCommandNotFound(t *testing.T) {
	r := newTestRepo(t)
	if _, err := r.GetCommand(context.Background(), 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing = %v, want ErrNotFound", err)
	}
}

func TestUpdateCommand(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	created, err := r.InsertCommand(ctx, domain.Command{CommandText: "MoveForward", Robot: "Robot1", User: "user"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	next := domain.Command{CommandText: "TurnLeft", Robot: "Robot2", User: "operator"}
	updated, err := r.UpdateCommand(ctx, created.ID, next)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID {
		t.Fatalf("update changed id: %d -> %d", created.ID, updated.ID)
	}

	got, err := r.GetCommand(ctx, created.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.CommandText != "TurnLeft" || got.Robot != "Robot2" || got.User != "operator" {
		t.Fatalf("update not reflected: %+v", got)
	}

	// Re-applying the same update yields the same state.
	if _, err := r.UpdateCommand(ctx, created.ID, next); err != nil {
		t.Fatalf("re-apply update: %v", err)
	}
	again, err := r.GetCommand(ctx, created.ID)
	if err != nil {
		t.Fatalf("get after re-apply: %v", err)
	}
	if again != got {
		t.Fatalf("re-applied update changed state: %+v vs %+v", again, got)
	}
}

func TestUpdateCommandStrictPrecondition(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.UpdateCommand(ctx, 9999, domain.Command{CommandText: "TestUpdate", Robot: "Robot1", User: "user"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing = %v, want ErrNotFound", err)
	}
	// No upsert happened.
	if _, err := r.GetCommand(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing must not create a record")
	}
}

func TestListCommandsCreationOrder(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	texts := []string{"MoveForward", "TurnLeft", "TurnRight", "Stop"}
	var ids []int64
	for _, text := range texts {
		c, err := r.InsertCommand(ctx, domain.Command{CommandText: text, Robot: "Robot1", User: "user"})
		if err != nil {
			t.Fatalf("insert %s: %v", text, err)
		}
		ids = append(ids, c.ID)
	}

	items, err := r.ListCommands(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != len(texts) {
		t.Fatalf("list returned %d items, want %d", len(items), len(texts))
	}
	for i, item := range items {
		if item.CommandText != texts[i] || item.ID != ids[i] {
			t.Fatalf("item %d = %+v, want text %s id %d", i, item, texts[i], ids[i])
		}
	}
}

func TestConcurrentInsertsUniqueIDs(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	const n = 20
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := r.InsertCommand(ctx, domain.Command{CommandText: "Stop", Robot: "Robot1", User: "user"})
			if err != nil {
				t.Errorf("insert: %v", err)
				return
			}
			ids <- c.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d unique ids, want %d", len(seen), n)
	}
}

func TestCurrentStatusDefault(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	s, err := r.CurrentStatus(ctx)
	if err != nil {
		t.Fatalf("current status: %v", err)
	}
	if s != domain.DefaultStatus() {
		t.Fatalf("status = %+v, want default", s)
	}

	// The default is computed, not written back.
	var count int
	if err := r.DB.QueryRow(`SELECT COUNT(*) FROM robot_status`).Scan(&count); err != nil {
		t.Fatalf("count status rows: %v", err)
	}
	if count != 0 {
		t.Fatalf("default status was persisted (%d rows)", count)
	}
}

func TestSetStatus(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	want := domain.RobotStatus{Status: "Moving", Position: "4,2", Task: "Patrol"}
	if err := r.SetStatus(ctx, want); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, err := r.CurrentStatus(ctx)
	if err != nil {
		t.Fatalf("current status: %v", err)
	}
	if got != want {
		t.Fatalf("status = %+v, want %+v", got, want)
	}

	// Upsert keeps a single logical row.
	want.Task = "Return"
	if err := r.SetStatus(ctx, want); err != nil {
		t.Fatalf("set status again: %v", err)
	}
	got, err = r.CurrentStatus(ctx)
	if err != nil {
		t.Fatalf("current status: %v", err)
	}
	if got != want {
		t.Fatalf("status = %+v, want %+v", got, want)
	}
}
