package store

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taeu.kr/portal/internal/platform/database"
	"taeu.kr/portal/internal/storage"
)

var _ storage.Storage = (*Scope)(nil)

func setupStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewStore(db), db
}

func TestScope_SetGetOverwrite(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()
	scope := st.Scope("session-a")

	if _, ok, err := scope.GetItem(ctx, "access_token"); err != nil || ok {
		t.Fatalf("expected missing item, got ok=%v err=%v", ok, err)
	}

	if err := scope.SetItem(ctx, "access_token", "A1"); err != nil {
		t.Fatalf("set item: %v", err)
	}
	if err := scope.SetItem(ctx, "access_token", "A2"); err != nil {
		t.Fatalf("overwrite item: %v", err)
	}

	value, ok, err := scope.GetItem(ctx, "access_token")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if !ok || value != "A2" {
		t.Fatalf("expected A2, got %q (ok=%v)", value, ok)
	}
}

func TestScope_IsolatedBySessionID(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	if err := st.Scope("session-a").SetItem(ctx, "access_token", "A1"); err != nil {
		t.Fatalf("set item: %v", err)
	}

	if _, ok, err := st.Scope("session-b").GetItem(ctx, "access_token"); err != nil || ok {
		t.Fatalf("expected other scope to be empty, got ok=%v err=%v", ok, err)
	}

	if err := st.Scope("session-b").RemoveItems(ctx, "access_token"); err != nil {
		t.Fatalf("remove items: %v", err)
	}
	if _, ok, _ := st.Scope("session-a").GetItem(ctx, "access_token"); !ok {
		t.Fatal("expected removal in another scope not to affect session-a")
	}
}

func TestScope_RemoveItems(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()
	scope := st.Scope("session-a")

	for _, key := range []string{"access_token", "refresh_token", "user_info", "other"} {
		if err := scope.SetItem(ctx, key, "v"); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}

	if err := scope.RemoveItems(ctx, "access_token", "refresh_token", "user_info"); err != nil {
		t.Fatalf("remove items: %v", err)
	}

	for _, key := range []string{"access_token", "refresh_token", "user_info"} {
		if _, ok, _ := scope.GetItem(ctx, key); ok {
			t.Fatalf("expected %s to be removed", key)
		}
	}
	if _, ok, _ := scope.GetItem(ctx, "other"); !ok {
		t.Fatal("expected unrelated key to survive")
	}
}

func TestScope_RemoveItemsIf(t *testing.T) {
	t.Run("removes when guard matches", func(t *testing.T) {
		st, _ := setupStore(t)
		ctx := context.Background()
		scope := st.Scope("session-a")
		_ = scope.SetItem(ctx, "access_token", "A1")
		_ = scope.SetItem(ctx, "refresh_token", "R1")

		removed, err := scope.RemoveItemsIf(ctx, "access_token", "A1", "refresh_token")
		if err != nil {
			t.Fatalf("remove if: %v", err)
		}
		if !removed {
			t.Fatal("expected removed=true")
		}
		if _, ok, _ := scope.GetItem(ctx, "access_token"); ok {
			t.Fatal("expected guard key to be removed")
		}
		if _, ok, _ := scope.GetItem(ctx, "refresh_token"); ok {
			t.Fatal("expected refresh_token to be removed")
		}
	})

	t.Run("keeps items when guard differs", func(t *testing.T) {
		st, _ := setupStore(t)
		ctx := context.Background()
		scope := st.Scope("session-a")
		_ = scope.SetItem(ctx, "access_token", "A2")
		_ = scope.SetItem(ctx, "refresh_token", "R2")

		removed, err := scope.RemoveItemsIf(ctx, "access_token", "A1", "refresh_token")
		if err != nil {
			t.Fatalf("remove if: %v", err)
		}
		if removed {
			t.Fatal("expected removed=false")
		}
		if value, _, _ := scope.GetItem(ctx, "refresh_token"); value != "R2" {
			t.Fatalf("expected refresh_token to survive, got %q", value)
		}
	})

	t.Run("only one concurrent caller wins", func(t *testing.T) {
		st, _ := setupStore(t)
		ctx := context.Background()
		scope := st.Scope("session-a")
		_ = scope.SetItem(ctx, "access_token", "A1")

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				removed, err := scope.RemoveItemsIf(ctx, "access_token", "A1", "refresh_token")
				if err != nil {
					t.Errorf("remove if: %v", err)
					return
				}
				if removed {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		if got := wins.Load(); got != 1 {
			t.Fatalf("expected exactly one winner, got %d", got)
		}
	})
}

func TestStore_Purge(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return base }
	_ = st.Scope("stale").SetItem(ctx, "access_token", "old")

	st.now = func() time.Time { return base.Add(48 * time.Hour) }
	_ = st.Scope("fresh").SetItem(ctx, "access_token", "new")

	purged, err := st.Purge(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged row, got %d", purged)
	}
	if _, ok, _ := st.Scope("stale").GetItem(ctx, "access_token"); ok {
		t.Fatal("expected stale scope to be purged")
	}
	if _, ok, _ := st.Scope("fresh").GetItem(ctx, "access_token"); !ok {
		t.Fatal("expected fresh scope to survive")
	}
}
