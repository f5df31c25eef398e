// Package geocache memoizes expensive artifact loads for the process
// lifetime. Each key is loaded at most once, concurrent first callers for the
// same key share one load, and different keys never wait on each other.
package geocache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Key identifies one cached artifact. Subject is the (state, service) key in
// string form, or empty for process-wide artifacts such as the national CBG
// index.
type Key struct {
	Artifact string
	Subject  string
}

func (k Key) String() string {
	if k.Subject == "" {
		return k.Artifact
	}
	return k.Artifact + ":" + k.Subject
}

// cell is a write-once slot. Both results and errors are kept: a load that
// failed is not retried.
type cell struct {
	once sync.Once
	val  any
	err  error
}

// Cache is a keyed store of write-once cells. It never evicts.
type Cache struct {
	mu     sync.Mutex
	cells  map[Key]*cell
	hits   atomic.Int64
	misses atomic.Int64
	loads  atomic.Int64
	failed atomic.Int64
}

// Stats contains cache statistics.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Loads   int64 `json:"loads"`
	Failed  int64 `json:"failed"`
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{cells: make(map[Key]*cell)}
}

// cellFor returns the cell for key, creating it if needed. The map lock is
// held only for the lookup, never during a load.
func (c *Cache) cellFor(key Key) *cell {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := c.cells[key]; ok {
		c.hits.Add(1)
		return cl
	}
	cl := &cell{}
	c.cells[key] = cl
	c.misses.Add(1)
	return cl
}

// Load returns the value cached under key, running loader on first use.
// Callers that arrive while the load is running block until it finishes and
// receive the same value (or error).
func Load[T any](c *Cache, key Key, loader func() (T, error)) (T, error) {
	cl := c.cellFor(key)
	cl.once.Do(func() {
		c.loads.Add(1)
		cl.val, cl.err = runLoader(key, loader)
		if cl.err != nil {
			c.failed.Add(1)
			zap.L().Warn("geocache: load failed",
				zap.String("key", key.String()),
				zap.Error(cl.err),
			)
		}
	})

	var zero T
	if cl.err != nil {
		return zero, cl.err
	}
	v, ok := cl.val.(T)
	if !ok {
		return zero, eris.Errorf("geocache: key %s holds %T, not %T", key, cl.val, zero)
	}
	return v, nil
}

// runLoader converts a loader panic into an error so the cell is never left
// holding a zero value with no error.
func runLoader[T any](key Key, loader func() (T, error)) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("geocache: loader for %s panicked: %v", key, r)
		}
	}()
	return loader()
}

// Invalidate drops the cell for key. It exists for test isolation; normal
// operation never invalidates.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cells, key)
}

// Stats returns cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	entries := len(c.cells)
	c.mu.Unlock()

	return Stats{
		Entries: entries,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Loads:   c.loads.Load(),
		Failed:  c.failed.Load(),
	}
}

// Warm runs jobs with at most concurrency in flight. Every job runs even if
// others fail; failures are joined into the returned error. Jobs not yet
// started are skipped once ctx is done.
func Warm(ctx context.Context, concurrency int, jobs map[string]func() error) error {
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var (
		mu   sync.Mutex
		errs []error
	)
	for name, job := range jobs {
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			if err := job(); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "geocache: warm")
	}
	return errors.Join(errs...)
}
