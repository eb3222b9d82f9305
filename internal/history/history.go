// Package history keeps the ordered list of generated music assets and
// persists it as a single snapshot.
package history

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/soundforge/studio/internal/model"
)

var (
	ErrNotFound    = errors.New("history: asset not found")
	ErrDuplicateID = errors.New("history: duplicate asset id")
)

// PersistenceError reports a snapshot that could not be saved. The in-memory
// history already contains the change.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("history: failed to persist snapshot: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Store persists whole snapshots, newest asset first.
type Store interface {
	Load(ctx context.Context) ([]model.MusicAsset, error)
	Save(ctx context.Context, assets []model.MusicAsset) error
}

// Option configures a History
type Option func(*History)

// WithSeed sets the list used when the store holds no data.
func WithSeed(assets []model.MusicAsset) Option {
	return func(h *History) {
		h.seed = assets
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(h *History) {
		h.now = now
	}
}

// History is the in-memory, newest-first list of assets backed by a Store.
// All mutations are serialized and followed by a full snapshot save.
type History struct {
	store Store
	seed  []model.MusicAsset
	now   func() time.Time

	mu     sync.RWMutex
	assets []model.MusicAsset
	ids    map[string]struct{}
	dirty  bool
}

func New(store Store, opts ...Option) *History {
	h := &History{
		store: store,
		now:   time.Now,
		ids:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Load hydrates the list from the store, replacing the in-memory state.
func (h *History) Load(ctx context.Context) error {
	assets, err := h.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("history: failed to load snapshot: %w", err)
	}
	if len(assets) == 0 && len(h.seed) > 0 {
		assets = h.seed
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.assets = make([]model.MusicAsset, 0, len(assets))
	h.ids = make(map[string]struct{}, len(assets))
	for _, a := range assets {
		if _, ok := h.ids[a.ID]; ok {
			log.Printf("history: dropping duplicate asset %s from snapshot", a.ID)
			continue
		}
		h.ids[a.ID] = struct{}{}
		h.assets = append(h.assets, a)
	}
	h.dirty = false
	return nil
}

// Insert builds a new asset from the current history length and puts it at
// the front. An empty ID gets a ULID; a zero CreatedAt gets the current time.
// CreatedAt is stored in UTC with millisecond precision and never earlier
// than the previous head. A *PersistenceError is returned together with the
// inserted asset when only the save failed.
func (h *History) Insert(ctx context.Context, build func(count int) model.MusicAsset) (model.MusicAsset, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	asset := build(len(h.assets))
	if asset.ID == "" {
		asset.ID = ulid.Make().String()
	}
	if _, ok := h.ids[asset.ID]; ok {
		return model.MusicAsset{}, fmt.Errorf("%w: %s", ErrDuplicateID, asset.ID)
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = h.now()
	}
	asset.CreatedAt = asset.CreatedAt.UTC().Truncate(time.Millisecond)
	if len(h.assets) > 0 && asset.CreatedAt.Before(h.assets[0].CreatedAt) {
		asset.CreatedAt = h.assets[0].CreatedAt
	}

	h.assets = append([]model.MusicAsset{asset}, h.assets...)
	h.ids[asset.ID] = struct{}{}

	if err := h.saveLocked(ctx); err != nil {
		return asset, err
	}
	return asset, nil
}

// Append inserts a fully built asset.
func (h *History) Append(ctx context.Context, asset model.MusicAsset) (model.MusicAsset, error) {
	return h.Insert(ctx, func(int) model.MusicAsset { return asset })
}

// Flush retries the last failed save, if any.
func (h *History) Flush(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.dirty {
		return nil
	}
	return h.saveLocked(ctx)
}

func (h *History) saveLocked(ctx context.Context) error {
	snapshot := make([]model.MusicAsset, len(h.assets))
	copy(snapshot, h.assets)
	if err := h.store.Save(ctx, snapshot); err != nil {
		h.dirty = true
		return &PersistenceError{Err: err}
	}
	h.dirty = false
	return nil
}

// Dirty reports whether the in-memory list is ahead of the store.
func (h *History) Dirty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dirty
}

// List returns a copy of the assets, newest first.
func (h *History) List() []model.MusicAsset {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]model.MusicAsset, len(h.assets))
	copy(out, h.assets)
	return out
}

func (h *History) Get(id string) (model.MusicAsset, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, a := range h.assets {
		if a.ID == id {
			return a, nil
		}
	}
	return model.MusicAsset{}, ErrNotFound
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.assets)
}
