package cache

import (
	"fmt"
	"os"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "eihwaz-cache-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	store, err := OpenStore(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCache_SetGet(t *testing.T) {
	c := New(nil, 10, time.Hour, nil)
	mtime := time.Now()
	c.Set("k", []byte("v"), mtime)

	got, ok := c.Get("k", mtime)
	if !ok || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	if _, ok := c.Get("absent", mtime); ok {
		t.Error("absent key should miss")
	}
}

func TestCache_StaleMtimeInvalidates(t *testing.T) {
	c := New(nil, 10, time.Hour, nil)
	mtime := time.Now()
	c.Set("k", []byte("v"), mtime)

	// The source was modified after caching: the entry must not be served.
	if _, ok := c.Get("k", mtime.Add(time.Second)); ok {
		t.Fatal("stale entry should miss")
	}
	// The invalid entry was discarded; the same mtime misses now too.
	if _, ok := c.Get("k", mtime); ok {
		t.Fatal("discarded entry should stay gone")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New(nil, 10, 10*time.Millisecond, nil)
	mtime := time.Now()
	c.Set("k", []byte("v"), mtime)

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("k", mtime); ok {
		t.Fatal("expired entry should miss")
	}
}

func TestCache_EvictsOldestFirst(t *testing.T) {
	c := New(nil, 3, time.Hour, nil)
	mtime := time.Now()
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), []byte("v"), mtime)
		time.Sleep(2 * time.Millisecond)
	}
	c.Set("k3", []byte("v"), mtime)

	if _, ok := c.Get("k0", mtime); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := c.Get("k3", mtime); !ok {
		t.Error("newest entry should survive")
	}
	if s := c.Stats(); s.Evictions == 0 {
		t.Errorf("stats = %+v, want evictions", s)
	}
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := New(nil, 10, time.Hour, nil)
	mtime := time.Now()
	c.Set("a", []byte("1"), mtime)
	c.Set("b", []byte("2"), mtime)

	c.Delete("a")
	if _, ok := c.Get("a", mtime); ok {
		t.Error("deleted key should miss")
	}

	c.Clear()
	if _, ok := c.Get("b", mtime); ok {
		t.Error("cleared cache should miss")
	}
	if s := c.Stats(); s.Entries != 0 {
		t.Errorf("entries = %d, want 0", s.Entries)
	}
}

func TestCache_StatsCounters(t *testing.T) {
	c := New(nil, 10, time.Hour, nil)
	mtime := time.Now()
	c.Set("k", []byte("v"), mtime)

	c.Get("k", mtime)
	c.Get("k", mtime)
	c.Get("missing", mtime)

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Entries != 1 {
		t.Errorf("stats = %+v, want 2 hits, 1 miss, 1 entry", s)
	}
}

func TestCache_StoreTierSurvivesMemoryLoss(t *testing.T) {
	store := testStore(t)
	mtime := time.Now()

	first := New(nil, 10, time.Hour, store)
	first.Set("k", []byte("persisted"), mtime)

	// A fresh cache over the same store simulates a process restart.
	second := New(nil, 10, time.Hour, store)
	got, ok := second.Get("k", mtime)
	if !ok || string(got) != "persisted" {
		t.Fatalf("Get from store tier = %q, %v", got, ok)
	}

	// The promoted entry now serves from memory as a hit.
	second.Get("k", mtime)
	if s := second.Stats(); s.Hits != 1 {
		t.Errorf("stats = %+v, want one memory hit after promotion", s)
	}
}

func TestCache_StoreDropsStaleEntries(t *testing.T) {
	store := testStore(t)
	mtime := time.Now()

	first := New(nil, 10, time.Hour, store)
	first.Set("k", []byte("v"), mtime)

	second := New(nil, 10, time.Hour, store)
	if _, ok := second.Get("k", mtime.Add(time.Minute)); ok {
		t.Fatal("stale persisted entry should miss")
	}
	// The stale row was deleted from the store.
	if _, err := store.Get("k"); err == nil {
		t.Error("stale row should be removed from the store")
	}
}

func TestStore_RoundTrip(t *testing.T) {
	store := testStore(t)
	now := time.Now()
	e := &Entry{
		Key:         "k",
		Value:       []byte("payload"),
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
		SourceMtime: now,
	}
	if err := store.Put(e); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Value) != "payload" {
		t.Errorf("value = %q", got.Value)
	}
	if !got.ExpiresAt.Equal(e.ExpiresAt) {
		t.Errorf("expires = %v, want %v", got.ExpiresAt, e.ExpiresAt)
	}

	// Upsert replaces.
	e.Value = []byte("updated")
	if err := store.Put(e); err != nil {
		t.Fatal(err)
	}
	got, err = store.Get("k")
	if err != nil || string(got.Value) != "updated" {
		t.Errorf("value after upsert = %q, %v", got.Value, err)
	}
}

func TestStore_Prune(t *testing.T) {
	store := testStore(t)
	now := time.Now()

	expired := &Entry{Key: "old", Value: []byte("x"), CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour), SourceMtime: now}
	live := &Entry{Key: "new", Value: []byte("y"), CreatedAt: now, ExpiresAt: now.Add(time.Hour), SourceMtime: now}
	if err := store.Put(expired); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(live); err != nil {
		t.Fatal(err)
	}

	n, err := store.Prune(now)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}
	if _, err := store.Get("new"); err != nil {
		t.Errorf("live entry should survive prune: %v", err)
	}
}
