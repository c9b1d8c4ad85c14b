package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"inforojo/internal/domain"
	"inforojo/internal/store"
)

type CatalogAPI interface {
	ListParaderos(ctx context.Context) ([]domain.Paradero, error)
	ListRutas(ctx context.Context) ([]domain.Ruta, error)
}

type CatalogMetrics interface {
	ObserveCatalog(paraderos, rutas int, err error)
}

// CatalogRefresher keeps the paradero and ruta catalog in sync with the API.
type CatalogRefresher struct {
	api      CatalogAPI
	catalog  *store.Catalog
	interval time.Duration
	metrics  CatalogMetrics
	logger   *slog.Logger
	onUpdate func(context.Context)

	ready   bool
	readyMu sync.RWMutex
}

func NewCatalogRefresher(api CatalogAPI, catalog *store.Catalog, interval time.Duration, logger *slog.Logger) *CatalogRefresher {
	return &CatalogRefresher{
		api:      api,
		catalog:  catalog,
		interval: interval,
		logger:   logger.With("component", "catalog_refresher"),
	}
}

// SetOnUpdate registers a hook run after each successful refresh.
func (r *CatalogRefresher) SetOnUpdate(fn func(context.Context)) {
	r.onUpdate = fn
}

func (r *CatalogRefresher) SetMetrics(m CatalogMetrics) { r.metrics = m }

func (r *CatalogRefresher) Start(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		r.logger.Error("initial catalog load failed", "error", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Error("catalog refresh failed", "error", err)
			}
		}
	}
}

// Refresh fetches paraderos and rutas together. The catalog is only replaced
// when both succeed.
func (r *CatalogRefresher) Refresh(ctx context.Context) error {
	start := time.Now()

	var (
		paraderos []domain.Paradero
		rutas     []domain.Ruta
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		paraderos, err = r.api.ListParaderos(gctx)
		if err != nil {
			return fmt.Errorf("list paraderos: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rutas, err = r.api.ListRutas(gctx)
		if err != nil {
			return fmt.Errorf("list rutas: %w", err)
		}
		return nil
	})

	err := g.Wait()
	if r.metrics != nil {
		r.metrics.ObserveCatalog(len(paraderos), len(rutas), err)
	}
	if err != nil {
		return err
	}

	r.catalog.UpdateAll(paraderos, rutas)
	r.setReady(true)

	stats := r.catalog.Stats()
	r.logger.Info("catalog refreshed",
		"paraderos", stats.ParaderosCount,
		"rutas", stats.RutasCount,
		"colapsados", stats.ColapsadosCount,
		"duration", time.Since(start),
	)

	if r.onUpdate != nil {
		r.onUpdate(ctx)
	}
	return nil
}

func (r *CatalogRefresher) IsReady() bool {
	r.readyMu.RLock()
	defer r.readyMu.RUnlock()
	return r.ready
}

func (r *CatalogRefresher) setReady(ready bool) {
	r.readyMu.Lock()
	defer r.readyMu.Unlock()
	r.ready = ready
}
