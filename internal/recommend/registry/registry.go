// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

// Package registry tracks versioned model artifacts.
//
// Artifact bytes live in a storage.Store; the index of versions lives in
// BadgerDB under model/{name}/{version:020d} so that a prefix scan in
// reverse yields the latest version first. Readers receive immutable
// handles; publishing a new version never mutates a handle already issued.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/crmrec/internal/logging"
	"github.com/tomtom215/crmrec/internal/recommend/storage"
)

// ErrNotFound is returned when no version of a model has been published.
var ErrNotFound = errors.New("model not found")

const keyPrefix = "model/"

// DefaultTrainTimeout bounds an on-demand training run started by
// LoadOrTrain.
const DefaultTrainTimeout = 30 * time.Minute

// Shape records the dimensions of a trained artifact.
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Entry is one indexed artifact version.
type Entry struct {
	Name      string    `json:"name"`
	Version   int64     `json:"version"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum"`
	SizeBytes int64     `json:"size_bytes"`
	Rows      int       `json:"rows"`
	Cols      int       `json:"cols"`
}

// Handle is an immutable view of one decoded artifact version.
type Handle[T any] struct {
	entry    Entry
	artifact *T
}

// Entry returns the index entry the handle was loaded from.
func (h *Handle[T]) Entry() Entry { return h.entry }

// Artifact returns the decoded artifact. Callers must not mutate it.
func (h *Handle[T]) Artifact() *T { return h.artifact }

type cacheKey struct {
	name    string
	version int64
}

// Registry indexes artifacts in BadgerDB and stores them via storage.Store.
type Registry struct {
	db      *badger.DB
	ownsDB  bool
	store   *storage.Store
	publish sync.Mutex
	group   singleflight.Group

	trainTimeout atomic.Int64

	cacheMu sync.RWMutex
	cache   map[cacheKey]interface{}
}

// Open opens (or creates) the badger index at indexPath. An empty indexPath
// keeps the index in memory.
func Open(indexPath string, store *storage.Store) (*Registry, error) {
	opts := badger.DefaultOptions(indexPath).WithLogger(badgerLogger{})
	if indexPath == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open registry index: %w", err)
	}
	r := New(db, store)
	r.ownsDB = true
	return r, nil
}

// New wraps an already open badger database.
func New(db *badger.DB, store *storage.Store) *Registry {
	r := &Registry{
		db:    db,
		store: store,
		cache: make(map[cacheKey]interface{}),
	}
	r.trainTimeout.Store(int64(DefaultTrainTimeout))
	return r
}

// SetTrainTimeout bounds on-demand training runs. d <= 0 restores the
// default.
func (r *Registry) SetTrainTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultTrainTimeout
	}
	r.trainTimeout.Store(int64(d))
}

// Close closes the index if the registry opened it.
func (r *Registry) Close() error {
	if !r.ownsDB {
		return nil
	}
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close registry index: %w", err)
	}
	return nil
}

func entryKey(name string, version int64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", keyPrefix, name, version))
}

func namePrefix(name string) []byte {
	return []byte(keyPrefix + name + "/")
}

// LatestEntry returns the highest indexed version of name.
func (r *Registry) LatestEntry(ctx context.Context, name string) (Entry, error) {
	var entry Entry
	found := false

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := namePrefix(name)
		seek := append(append([]byte{}, prefix...), 0xff)
		it.Seek(seek)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		found = true
		return it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return Entry{}, fmt.Errorf("read registry index: %w", err)
	}
	if !found {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

// Entries returns every indexed version of name, ascending.
func (r *Registry) Entries(ctx context.Context, name string) ([]Entry, error) {
	var entries []Entry
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := namePrefix(name)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list registry entries: %w", err)
	}
	return entries, nil
}

func (r *Registry) publishRaw(ctx context.Context, name string, artifact interface{}, shape Shape) (Entry, error) {
	r.publish.Lock()
	defer r.publish.Unlock()

	var next int64 = 1
	latest, err := r.LatestEntry(ctx, name)
	switch {
	case err == nil:
		next = latest.Version + 1
	case !errors.Is(err, ErrNotFound):
		return Entry{}, err
	}

	meta, err := r.store.Save(ctx, name, next, artifact)
	if err != nil {
		return Entry{}, fmt.Errorf("save %s v%d: %w", name, next, err)
	}

	entry := Entry{
		Name:      name,
		Version:   next,
		Path:      r.store.Path(name, next),
		CreatedAt: meta.SavedAt,
		Checksum:  meta.Checksum,
		SizeBytes: meta.SizeBytes,
		Rows:      shape.Rows,
		Cols:      shape.Cols,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal registry entry: %w", err)
	}
	if err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(name, next), data)
	}); err != nil {
		_ = r.store.Delete(ctx, name, next) //nolint:errcheck // unindexed file is harmless
		return Entry{}, fmt.Errorf("index %s v%d: %w", name, next, err)
	}

	r.cachePut(cacheKey{name, next}, artifact)
	logging.Info().
		Str("model", name).
		Int64("version", next).
		Int("rows", shape.Rows).
		Int("cols", shape.Cols).
		Msg("Model published")
	return entry, nil
}

// Prune removes all but the newest keep versions of name from both the
// index and the store. Artifact files of name that the index does not list,
// left by an interrupted publish or a lost index, are removed as well. It
// returns the number of versions removed.
func (r *Registry) Prune(ctx context.Context, name string, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}

	r.publish.Lock()
	defer r.publish.Unlock()

	entries, err := r.Entries(ctx, name)
	if err != nil {
		return 0, err
	}

	var stale []Entry
	if len(entries) > keep {
		stale = entries[:len(entries)-keep]
	}
	kept := make(map[int64]bool, keep)
	for _, e := range entries[len(stale):] {
		kept[e.Version] = true
	}

	if len(stale) > 0 {
		if err := r.db.Update(func(txn *badger.Txn) error {
			for _, e := range stale {
				if err := txn.Delete(entryKey(name, e.Version)); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return 0, fmt.Errorf("prune registry index: %w", err)
		}
	}

	for _, e := range stale {
		r.cacheDelete(cacheKey{name, e.Version})
		if err := r.store.Delete(ctx, name, e.Version); err != nil {
			logging.Warn().Err(err).Str("model", name).Int64("version", e.Version).Msg("Failed to delete pruned model file")
		}
	}
	return len(stale) + r.removeOrphans(ctx, name, kept), nil
}

// removeOrphans deletes files of name whose version is not in kept.
func (r *Registry) removeOrphans(ctx context.Context, name string, kept map[int64]bool) int {
	onDisk, err := r.store.Versions(name)
	if err != nil {
		logging.Warn().Err(err).Str("model", name).Msg("Failed to list model files")
		return 0
	}
	removed := 0
	for _, v := range onDisk {
		if kept[v] {
			continue
		}
		if err := r.store.Delete(ctx, name, v); err != nil {
			logging.Warn().Err(err).Str("model", name).Int64("version", v).Msg("Failed to delete orphaned model file")
			continue
		}
		logging.Info().Str("model", name).Int64("version", v).Msg("Removed unindexed model file")
		removed++
	}
	return removed
}

func (r *Registry) cacheGet(k cacheKey) (interface{}, bool) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	v, ok := r.cache[k]
	return v, ok
}

func (r *Registry) cachePut(k cacheKey, v interface{}) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	r.cache[k] = v
}

func (r *Registry) cacheDelete(k cacheKey) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	delete(r.cache, k)
}

// Publish stores artifact as the next version of name.
func Publish[T any](ctx context.Context, r *Registry, name string, artifact *T, shape Shape) (*Handle[T], error) {
	if artifact == nil {
		return nil, fmt.Errorf("publish %s: nil artifact", name)
	}
	entry, err := r.publishRaw(ctx, name, artifact, shape)
	if err != nil {
		return nil, err
	}
	return &Handle[T]{entry: entry, artifact: artifact}, nil
}

// Latest returns the newest version of name, decoding it on first use.
// ErrNotFound means nothing has been published yet.
func Latest[T any](ctx context.Context, r *Registry, name string) (*Handle[T], error) {
	entry, err := r.LatestEntry(ctx, name)
	if err != nil {
		return nil, err
	}

	key := cacheKey{name, entry.Version}
	if v, ok := r.cacheGet(key); ok {
		if art, ok := v.(*T); ok {
			return &Handle[T]{entry: entry, artifact: art}, nil
		}
	}

	art := new(T)
	if _, err := r.store.Load(ctx, name, entry.Version, art); err != nil {
		return nil, fmt.Errorf("load %s v%d: %w", name, entry.Version, err)
	}
	r.cachePut(key, art)
	return &Handle[T]{entry: entry, artifact: art}, nil
}

// TrainFunc builds a fresh artifact. A nil artifact with a nil error means
// there was no data to train on.
type TrainFunc[T any] func(ctx context.Context) (*T, Shape, error)

// LoadOrTrain returns the latest version of name, training and publishing
// one if none exists. Concurrent callers for the same name share a single
// training run. The run is detached from the caller that started it and
// bounded by the train timeout, so a cancelled caller returns its own
// context error without failing the others. A nil handle with a nil error
// means training found no data.
func LoadOrTrain[T any](ctx context.Context, r *Registry, name string, train TrainFunc[T]) (*Handle[T], error) {
	h, err := Latest[T](ctx, r, name)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	ch := r.group.DoChan(name, func() (interface{}, error) {
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(r.trainTimeout.Load()))
		defer cancel()

		// Another caller may have published between our miss and this call.
		if h, err := Latest[T](tctx, r, name); err == nil {
			return h, nil
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		logging.Info().Str("model", name).Msg("No published model, training on demand")
		art, shape, err := train(tctx)
		if err != nil {
			return nil, fmt.Errorf("train %s: %w", name, err)
		}
		if art == nil {
			return (*Handle[T])(nil), nil
		}
		return Publish(tctx, r, name, art, shape)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle[T]), nil
	}
}
