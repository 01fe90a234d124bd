package query

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/toppsdigital/cardsync/cache"
	"github.com/toppsdigital/cardsync/config"
	"github.com/toppsdigital/cardsync/errors"
	"github.com/toppsdigital/cardsync/gateway"
	"github.com/toppsdigital/cardsync/logger"
	"github.com/toppsdigital/cardsync/pipeline"
)

// Engine owns the polling loops. Each cache key with at least one
// subscriber gets its own refcounted watcher goroutine, so a slow or
// failed poll on one key never blocks another. Per-key loops are
// serial: a key never has two fetches in flight, which keeps write
// ordering monotonic per key.
type Engine struct {
	store   *cache.Store
	fetcher *Fetcher
	syncer  *Syncer
	log     *zap.SugaredLogger

	cfgMu sync.RWMutex
	cfg   *config.Config

	mu       sync.Mutex
	watchers map[cache.Key]*watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// watcher is the per-key polling state.
type watcher struct {
	req    Request
	refs   int
	kick   chan struct{}
	cancel context.CancelFunc
}

// NewEngine creates a polling engine over the given gateway and store.
func NewEngine(gw *gateway.Client, store *cache.Store, cfg *config.Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:    store,
		fetcher:  NewFetcher(gw, store),
		syncer:   NewSyncer(store),
		log:      logger.Logger,
		cfg:      cfg,
		watchers: make(map[cache.Key]*watcher),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the cache janitor.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.runJanitor()
	e.log.Infow("Query engine started",
		"sweep_interval", e.config().Cache.SweepInterval())
}

// Stop cancels every watcher and waits for goroutines to finish.
// In-flight fetches are allowed to complete; their results still land
// in the process-wide cache.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
	e.log.Infow("Query engine stopped")
}

// SetConfig swaps the engine configuration. Watchers pick the new
// intervals up on their next scheduling decision; used by config
// hot-reload.
func (e *Engine) SetConfig(cfg *config.Config) {
	e.cfgMu.Lock()
	e.cfg = cfg
	e.cfgMu.Unlock()
}

func (e *Engine) config() *config.Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// Subscription is one view's handle on a watched query.
type Subscription struct {
	Key     cache.Key
	updates chan cache.Entry
	close   func()
	once    sync.Once
}

// Updates delivers cache entry snapshots after every write to the key.
// Slow consumers miss intermediate snapshots, never the latest: the
// channel send is non-blocking and the cache always holds the newest
// value.
func (s *Subscription) Updates() <-chan cache.Entry {
	return s.updates
}

// Close releases the subscription. When the last subscriber of a key
// leaves, its polling loop stops.
func (s *Subscription) Close() {
	s.once.Do(s.close)
}

// Watch resolves a selector and subscribes to it. The watcher polls in
// the background per the scheduler's decisions; any cached value is
// delivered immediately.
func (e *Engine) Watch(sel Selector, opts Options) (*Subscription, error) {
	req, err := Resolve(sel, opts)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		Key:     req.Key,
		updates: make(chan cache.Entry, 16),
	}

	unsubStore := e.store.Subscribe(req.Key, func(key cache.Key) {
		entry, ok := e.store.Get(key)
		if !ok {
			return
		}
		select {
		case sub.updates <- entry:
		default:
		}
	})

	e.acquireWatcher(req)
	sub.close = func() {
		unsubStore()
		e.releaseWatcher(req.Key)
	}

	// Existing value is delivered immediately while the watcher decides
	// on a background refetch.
	if entry, ok := e.store.Get(req.Key); ok && !entry.FetchedAt.IsZero() {
		select {
		case sub.updates <- entry:
		default:
		}
	}

	return sub, nil
}

// Get returns the cached value for a selector, fetching synchronously
// when the cache is missing or stale. It does not start polling.
func (e *Engine) Get(ctx context.Context, sel Selector, opts Options) (interface{}, error) {
	req, err := Resolve(sel, opts)
	if err != nil {
		return nil, err
	}

	if entry, ok := e.store.Get(req.Key); ok && !entry.Stale(time.Now()) {
		return entry.Data, nil
	}
	return e.fetchWithRetry(ctx, req)
}

// Refresh forces an immediate refetch of a selector, bypassing
// freshness checks.
func (e *Engine) Refresh(ctx context.Context, sel Selector, opts Options) (interface{}, error) {
	req, err := Resolve(sel, opts)
	if err != nil {
		return nil, err
	}
	return e.fetchWithRetry(ctx, req)
}

// acquireWatcher refcounts the watcher for a key, starting its loop on
// first use.
func (e *Engine) acquireWatcher(req Request) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if w, ok := e.watchers[req.Key]; ok {
		w.refs++
		return
	}

	wctx, wcancel := context.WithCancel(e.ctx)
	w := &watcher{
		req:    req,
		refs:   1,
		kick:   make(chan struct{}, 1),
		cancel: wcancel,
	}
	e.watchers[req.Key] = w

	e.wg.Add(1)
	go e.runWatcher(wctx, w)

	e.log.Debugw("Watcher started",
		"key", req.Key,
		"selector", req.Selector)
}

// releaseWatcher drops one reference; the last reference cancels the
// polling loop. In-flight requests complete and still commit.
func (e *Engine) releaseWatcher(key cache.Key) {
	e.mu.Lock()
	defer e.mu.Unlock()

	w, ok := e.watchers[key]
	if !ok {
		return
	}
	w.refs--
	if w.refs > 0 {
		return
	}
	w.cancel()
	delete(e.watchers, key)

	e.log.Debugw("Watcher stopped",
		"key", key)
}

// runWatcher is the per-key polling loop: fetch when stale, then sleep
// per the scheduler. A terminal or non-pollable query parks until an
// invalidation kicks it awake.
func (e *Engine) runWatcher(ctx context.Context, w *watcher) {
	defer e.wg.Done()

	// Invalidations mark the entry stale; waking on them gives
	// mutation-driven refetch without polling terminal queries.
	unsub := e.store.Subscribe(w.req.Key, func(key cache.Key) {
		entry, ok := e.store.Get(key)
		if !ok || entry.Stale(time.Now()) {
			select {
			case w.kick <- struct{}{}:
			default:
			}
		}
	})
	defer unsub()

	// The first pass trusts a fresh cache entry; every wake-up after
	// that refetches. A poll interval is a promise to hit the backend,
	// not a staleness check: the stale window only gates on-demand reads.
	first := true
	for {
		var latest interface{}
		entry, ok := e.store.Get(w.req.Key)
		if first && ok && !entry.Stale(time.Now()) {
			latest = entry.Data
		} else {
			data, err := e.fetchWithRetry(ctx, w.req)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// Error already committed to the entry; keep the last
				// known data for the scheduling decision.
				latest = entry.Data
			} else {
				latest = data
			}
		}
		first = false

		interval, poll := NextInterval(w.req, latest, e.config())
		if !poll {
			select {
			case <-ctx.Done():
				return
			case <-w.kick:
				continue
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-w.kick:
		case <-time.After(interval):
		}
	}
}

// fetchWithRetry runs one fetch with exponential backoff, committing
// either the result or the final error to the cache entry.
func (e *Engine) fetchWithRetry(ctx context.Context, req Request) (interface{}, error) {
	cfg := e.config()
	maxAttempts := cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	e.store.SetFetching(req.Key, true)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		data, err := e.fetcher.Fetch(ctx, req)
		if err == nil {
			e.commit(req, data)
			return data, nil
		}
		lastErr = err

		// Validation failures and the empty-assets case are not
		// transient; retrying them only repeats the answer.
		if errors.IsInvalidRequestError(err) || errors.IsNoAssetsFound(err) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		if attempt < maxAttempts-1 {
			delay := RetryDelay(attempt, cfg.Retry)
			e.log.Warnw("Fetch failed, retrying",
				"key", req.Key,
				"attempt", attempt+1,
				"retry_in", delay,
				"error", err)
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
		}
	}

	e.store.SetError(req.Key, lastErr)
	e.log.Errorw("Fetch failed",
		"key", req.Key,
		"selector", req.Selector,
		"error", lastErr)
	return nil, lastErr
}

// commit runs a fresh result through the cross-entity synchronizer and
// writes it to the cache.
func (e *Engine) commit(req Request, data interface{}) {
	freshness := req.Freshness(e.config().Cache)

	switch req.Selector {
	case SelectorJobs:
		if jobs, ok := data.([]pipeline.Job); ok {
			e.syncer.SyncListToDetails(jobs)
		}
		e.store.Set(req.Key, data, freshness)

	case SelectorJobDetails:
		e.store.Set(req.Key, data, freshness)
		if job, ok := data.(pipeline.Job); ok {
			e.syncer.SyncDetailToLists(job)
		}

	case SelectorBatchJobs:
		if batch, ok := data.(gateway.BatchJobsResponse); ok {
			e.syncer.SyncListToDetails(batch.Jobs)
		}
		e.store.Set(req.Key, data, freshness)

	default:
		e.store.Set(req.Key, data, freshness)
	}
}

// runJanitor periodically evicts expired, unwatched entries.
func (e *Engine) runJanitor() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config().Cache.SweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case now := <-ticker.C:
			if removed := e.store.Sweep(now); removed > 0 {
				e.log.Debugw("Cache sweep",
					"evicted", removed)
			}
		}
	}
}

// Dispatcher returns a mutation dispatcher sharing this engine's cache
// and syncer.
func (e *Engine) Dispatcher(gw *gateway.Client) *Dispatcher {
	return NewDispatcher(gw, e.store, e.syncer, e.config())
}

// Store exposes the underlying cache for the push server and tests.
func (e *Engine) Store() *cache.Store {
	return e.store
}
