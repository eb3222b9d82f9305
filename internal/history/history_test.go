package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/soundforge/studio/internal/model"
	"github.com/spf13/afero"
)

// memStore is a Store kept in memory that can be told to fail.
type memStore struct {
	mu    sync.Mutex
	data  []model.MusicAsset
	saves int
	fail  error
}

func (s *memStore) Load(ctx context.Context) ([]model.MusicAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.MusicAsset, len(s.data))
	copy(out, s.data)
	return out, nil
}

func (s *memStore) Save(ctx context.Context, assets []model.MusicAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.saves++
	s.data = assets
	return nil
}

func titled(prompt string) func(int) model.MusicAsset {
	return func(n int) model.MusicAsset {
		return model.MusicAsset{
			Title:           fmt.Sprintf("Generation %d", n+1),
			SourcePrompt:    prompt,
			Genre:           model.DefaultGenre,
			DurationSeconds: model.DefaultDurationSeconds,
			AudioURL:        "https://example.com/a.mp3",
		}
	}
}

func TestInsertPrependsAndPersists(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	h := New(store)
	if err := h.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	first, err := h.Insert(ctx, titled("one"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	second, err := h.Insert(ctx, titled("two"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if first.Title != "Generation 1" || second.Title != "Generation 2" {
		t.Errorf("titles = %q, %q", first.Title, second.Title)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Errorf("ids not unique: %q %q", first.ID, second.ID)
	}

	list := h.List()
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("list order wrong: %+v", list)
	}
	if store.saves != 2 || len(store.data) != 2 || store.data[0].ID != second.ID {
		t.Errorf("store not updated with full snapshot: saves=%d data=%+v", store.saves, store.data)
	}
}

func TestInsertRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	h := New(&memStore{})
	_ = h.Load(ctx)

	asset := model.MusicAsset{ID: "fixed", Title: "x"}
	if _, err := h.Append(ctx, asset); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := h.Append(ctx, asset); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
	if h.Len() != 1 {
		t.Errorf("Len = %d, want 1", h.Len())
	}
}

func TestInsertCreatedAtNeverBeforeHead(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := base
	h := New(&memStore{}, WithClock(func() time.Time { return now }))
	_ = h.Load(ctx)

	a, _ := h.Insert(ctx, titled("a"))
	now = base.Add(-time.Minute) // clock went backwards
	b, _ := h.Insert(ctx, titled("b"))

	if b.CreatedAt.Before(a.CreatedAt) {
		t.Errorf("b.CreatedAt %v before head %v", b.CreatedAt, a.CreatedAt)
	}
	if b.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt not UTC: %v", b.CreatedAt.Location())
	}
}

func TestInsertKeepsAssetWhenSaveFails(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	h := New(store)
	_ = h.Load(ctx)

	store.fail = errors.New("disk full")
	asset, err := h.Insert(ctx, titled("kept"))

	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *PersistenceError", err)
	}
	if asset.ID == "" {
		t.Fatal("asset should be returned alongside a persistence error")
	}
	if h.Len() != 1 || !h.Dirty() {
		t.Fatalf("Len=%d Dirty=%v, want 1 true", h.Len(), h.Dirty())
	}

	store.fail = nil
	if err := h.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if h.Dirty() || len(store.data) != 1 {
		t.Errorf("after Flush Dirty=%v stored=%d", h.Dirty(), len(store.data))
	}
}

func TestLoadSeedsEmptyStore(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	h := New(&memStore{}, WithSeed(DefaultSeed(now)))
	if err := h.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	list := h.List()
	if len(list) != 3 || list[0].Title != "Sunset Dreams" {
		t.Fatalf("seed not applied: %+v", list)
	}

	next, _ := h.Insert(ctx, titled("new"))
	if next.Title != "Generation 4" {
		t.Errorf("title = %q, want Generation 4", next.Title)
	}
}

func TestLoadPrefersStoredDataOverSeed(t *testing.T) {
	ctx := context.Background()
	store := &memStore{data: []model.MusicAsset{{ID: "x", Title: "Stored"}}}
	h := New(store, WithSeed(DefaultSeed(time.Now())))
	_ = h.Load(ctx)
	if h.Len() != 1 {
		t.Errorf("Len = %d, want 1", h.Len())
	}
	if _, err := h.Get("x"); err != nil {
		t.Errorf("Get: %v", err)
	}
	if _, err := h.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentInsertsNumberUniquely(t *testing.T) {
	ctx := context.Background()
	h := New(&memStore{})
	_ = h.Load(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Insert(ctx, titled("c"))
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, a := range h.List() {
		if seen[a.Title] {
			t.Fatalf("duplicate title %q", a.Title)
		}
		seen[a.Title] = true
	}
	if len(seen) != 20 {
		t.Errorf("got %d assets, want 20", len(seen))
	}
}

func roundTrip(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	empty, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("empty store returned %d assets", len(empty))
	}

	h := New(store)
	_ = h.Load(ctx)
	a, err := h.Insert(ctx, titled("first"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	b, err := h.Insert(ctx, titled("second"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	reloaded := New(store)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	list := reloaded.List()
	if len(list) != 2 {
		t.Fatalf("reloaded %d assets, want 2", len(list))
	}
	if list[0].ID != b.ID || list[1].ID != a.ID {
		t.Errorf("order lost: %s %s", list[0].ID, list[1].ID)
	}
	if !list[0].CreatedAt.Equal(b.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", list[0].CreatedAt, b.CreatedAt)
	}
	if list[1].SourcePrompt != "first" || list[1].DurationSeconds != model.DefaultDurationSeconds {
		t.Errorf("fields lost: %+v", list[1])
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	roundTrip(t, NewFileStore(fs, "/data/history.json"))

	leftovers, _ := afero.Glob(fs, "/data/*.tmp")
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestFileStoreRejectsCorruptSnapshot(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/h.json", []byte("{not json"), 0o644)
	h := New(NewFileStore(fs, "/h.json"))
	if err := h.Load(context.Background()); err == nil {
		t.Fatal("expected error for corrupt snapshot")
	}
}

func TestFileStoreSaveFailureOnReadOnlyFs(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	store := NewFileStore(fs, "/data/history.json")
	if err := store.Save(context.Background(), nil); err == nil {
		t.Fatal("expected save error on read-only fs")
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLStore("sqlite", filepath.Join(t.TempDir(), "history.db"), "test", false)
	if err != nil {
		t.Fatalf("NewSQLStore: %v", err)
	}
	if err := store.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	roundTrip(t, store)
}

func TestNewSQLStoreUnknownType(t *testing.T) {
	if _, err := NewSQLStore("oracle", "", "ns", false); err == nil {
		t.Fatal("expected error for unknown db type")
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer client.Close()

	ns := fmt.Sprintf("test-%d", time.Now().UnixNano())
	defer client.Del(ctx, "history:"+ns)
	roundTrip(t, NewRedisStore(client, ns))
}
