package tracker

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"inforojo/internal/domain"
)

type ETAAPI interface {
	ParaderoETA(ctx context.Context, id string) ([]domain.ETA, error)
}

type ETAMetrics interface {
	ObserveETAPoll(err error)
}

// ETAWatcher polls arrival estimates for watched paraderos. Watched results
// are kept until unwatched; one-off lookups expire after ttl.
type ETAWatcher struct {
	api      ETAAPI
	cache    *gocache.Cache
	interval time.Duration
	ttl      time.Duration
	metrics  ETAMetrics
	logger   *slog.Logger

	mu      sync.RWMutex
	watched map[string]struct{}
	wake    chan struct{}
}

func NewETAWatcher(api ETAAPI, interval, ttl time.Duration, logger *slog.Logger) *ETAWatcher {
	return &ETAWatcher{
		api:      api,
		cache:    gocache.New(ttl, 2*ttl),
		interval: interval,
		ttl:      ttl,
		logger:   logger.With("component", "eta_watcher"),
		watched:  make(map[string]struct{}),
		wake:     make(chan struct{}, 1),
	}
}

func (w *ETAWatcher) SetMetrics(m ETAMetrics) { w.metrics = m }

func (w *ETAWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollAll(ctx)
		case <-w.wake:
			w.pollAll(ctx)
		}
	}
}

// Watch starts polling id; the first poll happens right away.
func (w *ETAWatcher) Watch(id string) {
	w.mu.Lock()
	w.watched[id] = struct{}{}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *ETAWatcher) Unwatch(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.watched, id)
	w.cache.Delete(id)
}

func (w *ETAWatcher) Watched() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ids := make([]string, 0, len(w.watched))
	for id := range w.watched {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Latest returns the last polled ETAs for id, soonest first.
func (w *ETAWatcher) Latest(id string) ([]domain.ETA, bool) {
	v, ok := w.cache.Get(id)
	if !ok {
		return nil, false
	}
	etas := v.([]domain.ETA)
	out := make([]domain.ETA, len(etas))
	copy(out, etas)
	return out, true
}

// Fetch serves from the cache and otherwise asks the API.
func (w *ETAWatcher) Fetch(ctx context.Context, id string) ([]domain.ETA, error) {
	if etas, ok := w.Latest(id); ok {
		return etas, nil
	}
	return w.refresh(ctx, id)
}

func (w *ETAWatcher) pollAll(ctx context.Context) {
	for _, id := range w.Watched() {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.refresh(ctx, id); err != nil {
			w.logger.Warn("failed to poll eta", "id_paradero", id, "error", err)
		}
	}
}

func (w *ETAWatcher) refresh(ctx context.Context, id string) ([]domain.ETA, error) {
	etas, err := w.api.ParaderoETA(ctx, id)
	if w.metrics != nil {
		w.metrics.ObserveETAPoll(err)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(etas, func(i, j int) bool { return etas[i].Minutos < etas[j].Minutos })

	// Held across the Set so an Unwatch racing this poll cannot be undone by
	// a non-expiring entry.
	w.mu.Lock()
	defer w.mu.Unlock()
	ttl := w.ttl
	if _, ok := w.watched[id]; ok {
		ttl = gocache.NoExpiration
	}
	w.cache.Set(id, etas, ttl)
	return etas, nil
}
