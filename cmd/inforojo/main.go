package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"inforojo/internal/cache"
	"inforojo/internal/config"
	"inforojo/internal/handler"
	"inforojo/internal/hub"
	"inforojo/internal/layers"
	"inforojo/internal/locshare"
	"inforojo/internal/metrics"
	"inforojo/internal/middleware"
	"inforojo/internal/publisher"
	"inforojo/internal/report"
	"inforojo/internal/session"
	"inforojo/internal/social"
	"inforojo/internal/store"
	"inforojo/internal/tracker"
	"inforojo/pkg/transitapi"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting inforojo server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"api_base_url", cfg.APIBaseURL,
		"redis_enabled", cfg.RedisEnabled,
		"share_enabled", cfg.ShareEnabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := session.Open(ctx, cfg.SessionDBPath)
	if err != nil {
		logger.Error("failed to open session store", "error", err, "path", cfg.SessionDBPath)
		os.Exit(1)
	}
	defer sess.Close()

	capaSet := layers.NewSet()
	if saved, ok, err := sess.LoadCapas(ctx); err != nil {
		logger.Warn("failed to load capa preferences", "error", err)
	} else if ok {
		capaSet.Replace(saved)
	}

	collector := metrics.NewCollector(cfg.PollInterval)

	apiClient := transitapi.New(cfg.APIBaseURL, cfg.APITimeout,
		transitapi.WithTokenSource(sess),
		transitapi.WithUserAgent("inforojo/"+version),
	)

	corredorStore := store.New(cfg.CorredorStaleAfter)
	catalog := store.NewCatalog()
	wsHub := hub.NewHub(logger)
	wsHub.SetMetrics(collector)

	var appCache cache.Cache
	if cfg.RedisEnabled {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Warn("redis unavailable, falling back to memory cache", "error", err)
		} else {
			defer redisCache.Close()
			appCache = redisCache
		}
	}
	if appCache == nil {
		appCache = cache.NewMemoryCache(cfg.CacheTTL, logger)
	}
	warmer := cache.NewCacheWarmer(appCache, catalog, cfg.CacheTTL, logger)

	var (
		deltaPublisher tracker.Publisher
		alertPublisher social.AlertPublisher
	)
	if cfg.NATSURL != "" {
		natsPub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, collector, logger)
		if err != nil {
			logger.Warn("nats unavailable, publishing disabled", "error", err)
		} else {
			defer natsPub.Close()
			deltaPublisher = natsPub
			alertPublisher = natsPub
		}
	}

	trackerOpts := []tracker.Option{tracker.WithMetrics(collector)}
	if deltaPublisher != nil {
		trackerOpts = append(trackerOpts, tracker.WithPublisher(deltaPublisher))
	}
	trk := tracker.New(apiClient, corredorStore, wsHub, cfg, logger, trackerOpts...)

	etaWatcher := tracker.NewETAWatcher(apiClient, cfg.ETAPollInterval, cfg.ETACacheTTL, logger)
	etaWatcher.SetMetrics(collector)

	refresher := tracker.NewCatalogRefresher(apiClient, catalog, cfg.CatalogRefreshInterval, logger)
	refresher.SetMetrics(collector)
	refresher.SetOnUpdate(func(ctx context.Context) {
		if err := warmer.WarmAll(ctx); err != nil {
			logger.Warn("cache warm failed", "error", err)
		}
	})

	reportSvc := report.NewService(apiClient, catalog, logger)
	socialSvc := social.NewService(apiClient, sess, alertPublisher, logger)
	notifPoller := social.NewNotificationPoller(socialSvc, sess, wsHub, cfg.NotificationInterval, logger)
	wsHub.OnRegister(notifPoller.Wake)

	var (
		fixSource locshare.Source
		fixSink   handler.FixSink
	)
	if cfg.ShareReplayFile != "" {
		fixSource = locshare.NewReplaySource(cfg.ShareReplayFile, cfg.ShareReplayEvery, logger)
	} else {
		channelSource := locshare.NewChannelSource(16)
		fixSource = channelSource
		fixSink = channelSource
	}
	states := locshare.NewStateFeed()
	sharer := locshare.NewSharer(fixSource, apiClient, sess, locshare.Options{
		MinDistance: cfg.ShareMinDistance,
		MinInterval: cfg.ShareMinInterval,
	}, logger)
	sharer.SetMetrics(collector)
	supervisor := locshare.NewSupervisor(ctx, sharer, states, logger)

	var autoShare handler.ShareControl
	if cfg.ShareEnabled {
		autoShare = supervisor
		if u, err := sess.Usuario(); err == nil && u.IsDriver() {
			if err := supervisor.Start(); err != nil {
				logger.Warn("failed to resume location sharing", "error", err)
			}
		}
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimitPerWindow > 0 {
		limiter = middleware.NewRateLimiter(ctx, cfg.RateLimitPerWindow, cfg.RateLimitWindow, cfg.RateLimitWhitelist, logger)
	}

	httpHandler := handler.NewHTTPHandler(corredorStore, trk)
	wsHandler := handler.NewWSHandler(wsHub, corredorStore, cfg.CORSOrigins, cfg.TileZoomLevel, logger)
	healthHandler := handler.NewHealthHandler(trk, refresher, corredorStore)
	catalogHandler := handler.NewCatalogHandler(catalog, apiClient, appCache, warmer, etaWatcher, reportSvc, cfg.CacheTTL, logger)
	mapHandler := handler.NewMapHandler(apiClient, capaSet, sess, appCache, cfg.ETACacheTTL, logger)
	reportHandler := handler.NewReportHandler(reportSvc, sess, logger)
	socialHandler := handler.NewSocialHandler(socialSvc, logger)
	sessionHandler := handler.NewSessionHandler(apiClient, sess, autoShare, logger)
	shareHandler := handler.NewShareHandler(supervisor, fixSink, states, logger)

	var statsLimiter handler.LimiterStatser
	if limiter != nil {
		statsLimiter = limiter
	}
	statsHandler := handler.NewStatsHandler(corredorStore, catalog, wsHub, statsLimiter, version)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/corredores", httpHandler.ListCorredores)
	mux.HandleFunc("GET /v1/corredores/{id}", httpHandler.GetCorredor)
	mux.HandleFunc("POST /v1/corredores/{id}/watch", httpHandler.WatchCorredor)
	mux.HandleFunc("DELETE /v1/corredores/{id}/watch", httpHandler.UnwatchCorredor)
	mux.HandleFunc("/v1/ws", wsHandler.ServeWS)

	mux.HandleFunc("GET /v1/paraderos", catalogHandler.ListParaderos)
	mux.HandleFunc("GET /v1/paraderos/cercano", catalogHandler.NearestParadero)
	mux.HandleFunc("GET /v1/paraderos/{id}", catalogHandler.GetParadero)
	mux.HandleFunc("GET /v1/paraderos/{id}/eta", catalogHandler.ParaderoETA)
	mux.HandleFunc("POST /v1/paraderos/{id}/watch", catalogHandler.WatchParadero)
	mux.HandleFunc("DELETE /v1/paraderos/{id}/watch", catalogHandler.UnwatchParadero)
	mux.HandleFunc("GET /v1/paraderos/{id}/rutas", catalogHandler.ParaderoRutas)
	mux.HandleFunc("GET /v1/rutas", catalogHandler.ListRutas)
	mux.HandleFunc("GET /v1/rutas/filtrar", catalogHandler.FiltrarRutas)
	mux.HandleFunc("GET /v1/rutas/{id}", catalogHandler.GetRuta)
	mux.HandleFunc("GET /v1/catalogo", catalogHandler.Sync)
	mux.HandleFunc("GET /v1/catalogo/stats", catalogHandler.CatalogStats)

	mux.HandleFunc("GET /v1/mapa/markers", mapHandler.Markers)
	mux.HandleFunc("GET /v1/capas", mapHandler.GetCapas)
	mux.HandleFunc("PUT /v1/capas", mapHandler.PutCapas)
	mux.HandleFunc("POST /v1/capas/{capa}/toggle", mapHandler.ToggleCapa)

	mux.HandleFunc("POST /v1/reportes/falla", reportHandler.ReportFalla)
	mux.HandleFunc("POST /v1/reportes/desvio", reportHandler.ReportDesvio)
	mux.HandleFunc("GET /v1/reportes/{tipo}", reportHandler.List)

	mux.HandleFunc("GET /v1/comentarios", socialHandler.ListComentarios)
	mux.HandleFunc("POST /v1/comentarios", socialHandler.PostComentario)
	mux.HandleFunc("GET /v1/notificaciones", socialHandler.ListNotificaciones)
	mux.HandleFunc("POST /v1/notificaciones/{id}/leida", socialHandler.MarkLeida)
	mux.HandleFunc("POST /v1/alertas", socialHandler.SendAlerta)

	mux.HandleFunc("POST /v1/session/login", sessionHandler.Login)
	mux.HandleFunc("GET /v1/session", sessionHandler.Get)
	mux.HandleFunc("DELETE /v1/session", sessionHandler.Logout)

	mux.HandleFunc("POST /v1/share/fix", shareHandler.PostFix)
	mux.HandleFunc("POST /v1/share/state", shareHandler.PostState)
	mux.HandleFunc("POST /v1/share/start", shareHandler.Start)
	mux.HandleFunc("POST /v1/share/stop", shareHandler.Stop)
	mux.HandleFunc("GET /v1/share", shareHandler.Status)

	mux.HandleFunc("GET /v1/stats", statsHandler.GetStats)
	mux.Handle("GET /metrics", collector.Handler())
	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)

	var root http.Handler = mux
	root = handler.GzipMiddleware(root)
	root = handler.CORSMiddleware(cfg.CORSOrigins)(root)
	if limiter != nil {
		root = limiter.Middleware(root)
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      root,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go wsHub.Run(ctx)
	go trk.Run(ctx)
	go etaWatcher.Run(ctx)
	go refresher.Start(ctx)
	go func() {
		if err := notifPoller.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("notification poller stopped", "error", err)
		}
	}()

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
	}

	supervisor.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
