package tracker

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"inforojo/internal/config"
	"inforojo/internal/domain"
	"inforojo/internal/geo"
	"inforojo/internal/store"
)

// FleetAPI is the part of the transit client the tracker polls.
type FleetAPI interface {
	ListCorredores(ctx context.Context) ([]*domain.Corredor, error)
	CorredorUbicacion(ctx context.Context, id string) (*domain.Ubicacion, error)
}

type Broadcaster interface {
	Broadcast(deltas []domain.PositionDelta)
}

type Publisher interface {
	PublishDeltas(deltas []domain.PositionDelta)
}

type Metrics interface {
	ObservePoll(d time.Duration, err error)
	SetTracked(n int)
	SetWatched(n int)
	AddDeltas(deltas []domain.PositionDelta)
}

// Tracker polls corredor positions and feeds them through the store to the
// hub and publisher.
type Tracker struct {
	api         FleetAPI
	store       *store.Store
	broadcaster Broadcaster
	publisher   Publisher
	metrics     Metrics
	logger      *slog.Logger

	pollInterval  time.Duration
	pruneInterval time.Duration
	concurrency   int
	zoomLevel     int

	watchMu sync.RWMutex
	watched map[string]struct{}

	ready   bool
	readyMu sync.RWMutex
}

type Option func(*Tracker)

func WithPublisher(p Publisher) Option { return func(t *Tracker) { t.publisher = p } }

func WithMetrics(m Metrics) Option { return func(t *Tracker) { t.metrics = m } }

func New(api FleetAPI, st *store.Store, broadcaster Broadcaster, cfg *config.Config, logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		api:           api,
		store:         st,
		broadcaster:   broadcaster,
		logger:        logger.With("component", "tracker"),
		pollInterval:  cfg.PollInterval,
		pruneInterval: cfg.PollInterval * 3,
		concurrency:   max(cfg.PollConcurrency, 1),
		zoomLevel:     cfg.TileZoomLevel,
		watched:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Run(ctx context.Context) {
	t.logger.Info("starting tracker", "interval", t.pollInterval, "concurrency", t.concurrency)

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	pruneTicker := time.NewTicker(t.pruneInterval)
	defer pruneTicker.Stop()

	t.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tracker stopped")
			return
		case <-ticker.C:
			t.poll(ctx)
		case <-pruneTicker.C:
			t.prune()
		}
	}
}

// Watch adds a corredor that is polled individually every tick.
func (t *Tracker) Watch(id string) {
	t.watchMu.Lock()
	t.watched[id] = struct{}{}
	n := len(t.watched)
	t.watchMu.Unlock()

	if t.metrics != nil {
		t.metrics.SetWatched(n)
	}
	t.logger.Debug("watching corredor", "id_corredor", id)
}

func (t *Tracker) Unwatch(id string) {
	t.watchMu.Lock()
	delete(t.watched, id)
	n := len(t.watched)
	t.watchMu.Unlock()

	if t.metrics != nil {
		t.metrics.SetWatched(n)
	}
}

func (t *Tracker) Watched() []string {
	t.watchMu.RLock()
	defer t.watchMu.RUnlock()
	ids := make([]string, 0, len(t.watched))
	for id := range t.watched {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type pollResult struct {
	fleet    []*domain.Corredor
	fleetErr error

	mu          sync.Mutex
	ubicaciones []*domain.Ubicacion
	failed      int
}

func (t *Tracker) poll(ctx context.Context) {
	start := time.Now()
	watched := t.Watched()

	var res pollResult
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)

	g.Go(func() error {
		res.fleet, res.fleetErr = t.api.ListCorredores(gctx)
		return nil
	})

	for _, id := range watched {
		g.Go(func() error {
			u, err := t.api.CorredorUbicacion(gctx, id)
			res.mu.Lock()
			defer res.mu.Unlock()
			if err != nil {
				res.failed++
				t.logger.Warn("failed to fetch corredor ubicacion", "id_corredor", id, "error", err)
				return nil
			}
			res.ubicaciones = append(res.ubicaciones, u)
			return nil
		})
	}

	_ = g.Wait()

	if ctx.Err() != nil {
		return
	}
	if res.fleetErr != nil {
		t.logger.Error("failed to fetch corredores", "error", res.fleetErr)
	}

	corredores := t.merge(res.fleet, res.ubicaciones)
	for _, c := range corredores {
		c.TileID = geo.TileID(c.Lat, c.Lng, t.zoomLevel)
	}

	deltas := t.store.Update(corredores)
	t.emit(deltas)

	ok := res.fleetErr == nil || (len(watched) > 0 && res.failed < len(watched))
	if t.metrics != nil {
		var err error
		if !ok {
			err = res.fleetErr
		}
		t.metrics.ObservePoll(time.Since(start), err)
		t.metrics.SetTracked(t.store.Count())
	}

	if ok && !t.IsReady() {
		t.setReady(true)
		t.logger.Info("tracker ready", "corredores", len(corredores))
	}

	t.logger.Debug("poll completed",
		"fleet", len(res.fleet),
		"watched", len(watched),
		"deltas", len(deltas),
		"total", t.store.Count(),
	)
}

// merge overlays individually polled positions on the fleet result. A
// watched corredor missing from the fleet keeps its last known attributes.
func (t *Tracker) merge(fleet []*domain.Corredor, ubicaciones []*domain.Ubicacion) []*domain.Corredor {
	byID := make(map[string]*domain.Corredor, len(fleet)+len(ubicaciones))
	out := make([]*domain.Corredor, 0, len(fleet)+len(ubicaciones))

	for _, c := range fleet {
		if !geo.ValidCoordinate(c.Lat, c.Lng) {
			t.logger.Debug("skipping corredor with invalid position", "id_corredor", c.ID)
			continue
		}
		byID[c.ID] = c
		out = append(out, c)
	}

	for _, u := range ubicaciones {
		if !geo.ValidCoordinate(u.Lat, u.Lng) {
			continue
		}
		c, ok := byID[u.IDCorredor]
		if !ok {
			if prev, found := t.store.Get(u.IDCorredor); found {
				c = prev
			} else {
				c = &domain.Corredor{ID: u.IDCorredor}
			}
			byID[c.ID] = c
			out = append(out, c)
		}
		c.Lat, c.Lng = u.Lat, u.Lng
		if !u.ActualizadoEn.IsZero() {
			c.ActualizadoEn = u.ActualizadoEn
		}
	}
	return out
}

func (t *Tracker) prune() {
	deltas := t.store.PruneStale()
	if len(deltas) > 0 {
		t.emit(deltas)
		t.logger.Info("pruned stale corredores", "count", len(deltas))
	}
}

func (t *Tracker) emit(deltas []domain.PositionDelta) {
	if len(deltas) == 0 {
		return
	}
	if t.broadcaster != nil {
		t.broadcaster.Broadcast(deltas)
	}
	if t.publisher != nil {
		t.publisher.PublishDeltas(deltas)
	}
	if t.metrics != nil {
		t.metrics.AddDeltas(deltas)
	}
}

func (t *Tracker) IsReady() bool {
	t.readyMu.RLock()
	defer t.readyMu.RUnlock()
	return t.ready
}

func (t *Tracker) setReady(ready bool) {
	t.readyMu.Lock()
	defer t.readyMu.Unlock()
	t.ready = ready
}
