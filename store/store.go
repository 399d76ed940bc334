// Package store persists analysis results and reconciles new crawl output
// against what is already stored.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lukemcguire/portalaudit/result"
)

// ErrNotFound is returned when a result id does not exist.
var ErrNotFound = errors.New("result not found")

// Store is a collection of analysis results keyed by a store-assigned id.
// Implementations must be safe for concurrent use.
type Store interface {
	// ListAll returns every stored result in id order.
	ListAll(ctx context.Context) ([]result.AnalysisResult, error)
	// Get returns the result with the given id.
	Get(ctx context.Context, id int64) (result.AnalysisResult, error)
	// InsertMany stores results and returns them with their new ids.
	InsertMany(ctx context.Context, results []result.AnalysisResult) ([]result.AnalysisResult, error)
	// Update replaces the stored result with the same id.
	Update(ctx context.Context, r result.AnalysisResult) error
	// Delete removes the result with the given id.
	Delete(ctx context.Context, id int64) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	DataDir     string // sqlite: directory holding the database file
	RedisAddr   string
	RedisPrefix string
}

// Open returns the Store named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendSQLite:
		return OpenSQLite(ctx, opts.DataDir)
	case BackendRedis:
		return OpenRedis(ctx, opts.RedisAddr, opts.RedisPrefix)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

// FilterNew returns the results whose URL is neither in existing nor repeated
// earlier in results, preserving order.
func FilterNew(existing, results []result.AnalysisResult) []result.AnalysisResult {
	known := make(map[string]struct{}, len(existing)+len(results))
	for _, r := range existing {
		known[r.URL] = struct{}{}
	}

	fresh := make([]result.AnalysisResult, 0, len(results))
	for _, r := range results {
		if _, ok := known[r.URL]; ok {
			continue
		}
		known[r.URL] = struct{}{}
		fresh = append(fresh, r)
	}
	return fresh
}

// Reconciler appends crawl output to a Store without duplicating URLs.
// Persist calls on the same Reconciler are serialized so concurrent crawls
// cannot both insert a URL that neither saw in the store.
type Reconciler struct {
	mu    sync.Mutex
	store Store
}

// NewReconciler returns a Reconciler writing to s.
func NewReconciler(s Store) *Reconciler {
	return &Reconciler{store: s}
}

// Persist inserts the results whose URL is not yet stored and returns the
// inserted records with their ids.
func (r *Reconciler) Persist(ctx context.Context, results []result.AnalysisResult) ([]result.AnalysisResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stored results: %w", err)
	}

	fresh := FilterNew(existing, results)
	if len(fresh) == 0 {
		return []result.AnalysisResult{}, nil
	}

	inserted, err := r.store.InsertMany(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("insert results: %w", err)
	}
	return inserted, nil
}
