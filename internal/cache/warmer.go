package cache

import (
	"context"
	"log/slog"
	"time"

	"inforojo/internal/domain"
	"inforojo/internal/store"
)

type CacheWarmer struct {
	cache   Cache
	catalog *store.Catalog
	ttl     time.Duration
	logger  *slog.Logger
}

func NewCacheWarmer(cache Cache, catalog *store.Catalog, ttl time.Duration, logger *slog.Logger) *CacheWarmer {
	return &CacheWarmer{
		cache:   cache,
		catalog: catalog,
		ttl:     ttl,
		logger:  logger.With("component", "cache_warmer"),
	}
}

// WarmAll drops derived entries and rebuilds the catalog bundle. Errors are
// logged and never abort the refresh.
func (w *CacheWarmer) WarmAll(ctx context.Context) error {
	start := time.Now()
	w.logger.Info("starting cache warming")

	if err := w.cache.DeletePattern(ctx, "rutas:*"); err != nil {
		w.logger.Warn("failed to invalidate ruta entries", "error", err)
	}
	if err := w.cache.DeletePattern(ctx, "markers:*"); err != nil {
		w.logger.Warn("failed to invalidate marker entries", "error", err)
	}

	if err := w.warmSyncData(ctx); err != nil {
		w.logger.Error("failed to warm sync data", "error", err)
	}

	if err := w.warmRutasForParaderos(ctx); err != nil {
		w.logger.Error("failed to warm paradero rutas", "error", err)
	}

	w.logger.Info("cache warming completed", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (w *CacheWarmer) warmSyncData(ctx context.Context) error {
	start := time.Now()

	// The version key lets Sync answer 304 without reading the bundle, so it
	// must never outlive the bundle it describes.
	if err := w.cache.Delete(ctx, KeyCatalogVersion); err != nil {
		return err
	}
	syncData := w.BuildSyncData()
	if err := w.cache.SetJSONCompressed(ctx, KeyCatalogSync, syncData, w.ttl); err != nil {
		return err
	}
	if err := w.cache.SetJSON(ctx, KeyCatalogVersion, syncData.Version, w.ttl); err != nil {
		return err
	}

	w.logger.Info("warmed sync data",
		"rutas", len(syncData.Rutas),
		"paraderos", len(syncData.Paraderos),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (w *CacheWarmer) warmRutasForParaderos(ctx context.Context) error {
	start := time.Now()
	paraderos := w.catalog.Paraderos()
	warmed := 0

	for _, p := range paraderos {
		rutas := w.catalog.RutasForParadero(p.ID)
		if len(rutas) == 0 {
			continue
		}
		if err := w.cache.SetJSON(ctx, KeyRutasForParadero(p.ID), rutas, w.ttl); err != nil {
			w.logger.Debug("failed to cache paradero rutas", "id_paradero", p.ID, "error", err)
			continue
		}
		warmed++
	}

	w.logger.Info("warmed paradero rutas",
		"paraderos_warmed", warmed,
		"total_paraderos", len(paraderos),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// SyncData is the full catalog bundle a shell downloads on start.
type SyncData struct {
	Paraderos   []domain.Paradero `json:"paraderos"`
	Rutas       []domain.Ruta     `json:"rutas"`
	Version     string            `json:"version"`
	GeneratedAt time.Time         `json:"generated_at"`
}

func (w *CacheWarmer) BuildSyncData() *SyncData {
	stats := w.catalog.Stats()

	return &SyncData{
		Paraderos:   w.catalog.Paraderos(),
		Rutas:       w.catalog.Rutas(),
		Version:     stats.LastUpdate.UTC().Format(time.RFC3339Nano),
		GeneratedAt: time.Now().UTC(),
	}
}
