package audit

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opensesame/core/internal/infrastructure/database"
	_ "github.com/opensesame/core/migrations"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "journal.db"), BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreate_GeneratesIDAndTimestamp(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := &Entry{Kind: KindDoorOpened, Source: "keypad", User: "alice"}
	if err := repo.Create(ctx, e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !strings.HasPrefix(e.ID, "acc-") || len(e.ID) != len("acc-")+8 {
		t.Errorf("ID = %q, want acc-XXXXXXXX", e.ID)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestList_FiltersAndOrders(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{Kind: KindDoorOpened, Source: "keypad", User: "alice", CreatedAt: base},
		{Kind: KindWrongAttempt, Source: "keypad", Detail: "timeout", CreatedAt: base.Add(time.Minute)},
		{Kind: KindDoorOpened, Source: "mqtt", CreatedAt: base.Add(2 * time.Minute)},
		{Kind: KindBusReset, Source: "buttons", Detail: "board 0x20", CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	all, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("List() returned %d entries, want 4", len(all))
	}
	if all[0].Kind != KindBusReset {
		t.Errorf("first entry kind = %q, want most recent (%q)", all[0].Kind, KindBusReset)
	}

	doors, err := repo.List(ctx, Filter{Kind: KindDoorOpened})
	if err != nil {
		t.Fatalf("List(kind) error = %v", err)
	}
	if len(doors) != 2 {
		t.Fatalf("List(kind) returned %d entries, want 2", len(doors))
	}
	if doors[1].User != "alice" {
		t.Errorf("oldest door entry user = %q, want alice", doors[1].User)
	}
	if doors[0].User != "" {
		t.Errorf("anonymous door entry user = %q, want empty", doors[0].User)
	}

	recent, err := repo.List(ctx, Filter{Since: base.Add(90 * time.Second)})
	if err != nil {
		t.Fatalf("List(since) error = %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("List(since) returned %d entries, want 2", len(recent))
	}

	limited, err := repo.List(ctx, Filter{Limit: 1})
	if err != nil {
		t.Fatalf("List(limit) error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("List(limit) returned %d entries, want 1", len(limited))
	}
}

func TestList_Empty(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.List(context.Background(), Filter{Kind: KindBusReset})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("List() = %v, want empty non-nil slice", got)
	}
}
