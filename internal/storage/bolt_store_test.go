package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T, opts Options) *boltStore {
	t.Helper()
	store, err := openBolt(filepath.Join(t.TempDir(), "stories.db"), normalizeOptions(opts))
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStoreMarksAndExpiresJobs(t *testing.T) {
	store := openTestStore(t, Options{
		JobTTL:          1 * time.Second,
		CleanupInterval: 1 * time.Second,
	})

	seen, err := store.SeenJob("t1/s1")
	if err != nil || seen {
		t.Fatalf("expected unseen job, seen=%v err=%v", seen, err)
	}

	if err := store.MarkJob("t1/s1"); err != nil {
		t.Fatalf("MarkJob: %v", err)
	}

	seen, err = store.SeenJob("t1/s1")
	if err != nil || !seen {
		t.Fatalf("expected job marked as seen, got seen=%v err=%v", seen, err)
	}

	// Fast-forward cleanup cadence and trigger expiry.
	store.lastCleanup.Store(time.Now().Add(-2 * time.Second).Unix())
	time.Sleep(1100 * time.Millisecond)

	seen, err = store.SeenJob("t1/s1")
	if err != nil {
		t.Fatalf("SeenJob after expiry: %v", err)
	}
	if seen {
		t.Fatalf("expected entry to expire and be removed")
	}
}

func TestNewStoreRejectsUnknownType(t *testing.T) {
	if _, err := NewStore("mongo", "", Options{}); err == nil {
		t.Fatalf("expected error for unsupported storage type")
	}
	if _, err := NewStore("bbolt", " ", Options{}); err == nil {
		t.Fatalf("expected error for missing path")
	}
}
