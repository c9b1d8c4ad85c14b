package handler

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"inforojo/internal/domain"
	"inforojo/internal/middleware"
	"inforojo/internal/store"
)

// Stats tracks server-wide counters
type Stats struct {
	startTime     time.Time
	requestCount  atomic.Int64
	wsConnections atomic.Int64
	wsMessagesIn  atomic.Int64
	wsMessagesOut atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
}

// Global stats instance
var ServerStats = &Stats{
	startTime: time.Now(),
}

func (s *Stats) IncRequests()      { s.requestCount.Add(1) }
func (s *Stats) IncWSConnections() { s.wsConnections.Add(1) }
func (s *Stats) DecWSConnections() { s.wsConnections.Add(-1) }
func (s *Stats) IncWSMessagesIn()  { s.wsMessagesIn.Add(1) }
func (s *Stats) IncWSMessagesOut() { s.wsMessagesOut.Add(1) }
func (s *Stats) IncCacheHits()     { s.cacheHits.Add(1) }
func (s *Stats) IncCacheMisses()   { s.cacheMisses.Add(1) }

type LimiterStatser interface {
	Stats() middleware.LimiterStats
}

type ClientCounter interface {
	ClientCount() int
}

type StatsHandler struct {
	store   *store.Store
	catalog *store.Catalog
	clients ClientCounter
	limiter LimiterStatser
	version string
}

// NewStatsHandler builds the stats endpoint. limiter may be nil when rate
// limiting is disabled.
func NewStatsHandler(s *store.Store, catalog *store.Catalog, clients ClientCounter, limiter LimiterStatser, version string) *StatsHandler {
	return &StatsHandler{
		store:   s,
		catalog: catalog,
		clients: clients,
		limiter: limiter,
		version: version,
	}
}

type StatsResponse struct {
	Server     ServerStatsResponse      `json:"server"`
	Corredores CorredorStatsResponse    `json:"corredores"`
	Catalog    store.CatalogStats       `json:"catalog"`
	WebSocket  WebSocketStatsResponse   `json:"websocket"`
	Cache      CacheStatsResponse       `json:"cache"`
	RateLimit  *middleware.LimiterStats `json:"rate_limit,omitempty"`
	Go         GoStatsResponse          `json:"go"`
}

type ServerStatsResponse struct {
	Uptime        string    `json:"uptime"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
	RequestCount  int64     `json:"request_count"`
	Version       string    `json:"version"`
}

type CorredorStatsResponse struct {
	Total    int                   `json:"total"`
	ByEstado map[domain.Estado]int `json:"by_estado"`
}

type WebSocketStatsResponse struct {
	Clients     int   `json:"clients"`
	Connections int64 `json:"connections"`
	MessagesIn  int64 `json:"messages_in"`
	MessagesOut int64 `json:"messages_out"`
}

type CacheStatsResponse struct {
	Hits   int64   `json:"hits"`
	Misses int64   `json:"misses"`
	Ratio  float64 `json:"hit_ratio"`
}

type GoStatsResponse struct {
	Goroutines  int     `json:"goroutines"`
	HeapAlloc   uint64  `json:"heap_alloc_bytes"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	NumGC       uint32  `json:"num_gc"`
	GoVersion   string  `json:"go_version"`
}

func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	uptime := time.Since(ServerStats.startTime)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	hits := ServerStats.cacheHits.Load()
	misses := ServerStats.cacheMisses.Load()
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	response := StatsResponse{
		Server: ServerStatsResponse{
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			StartTime:     ServerStats.startTime,
			RequestCount:  ServerStats.requestCount.Load(),
			Version:       h.version,
		},
		Corredores: CorredorStatsResponse{
			Total:    h.store.Count(),
			ByEstado: h.store.CountByEstado(),
		},
		Catalog: h.catalog.Stats(),
		WebSocket: WebSocketStatsResponse{
			Clients:     h.clients.ClientCount(),
			Connections: ServerStats.wsConnections.Load(),
			MessagesIn:  ServerStats.wsMessagesIn.Load(),
			MessagesOut: ServerStats.wsMessagesOut.Load(),
		},
		Cache: CacheStatsResponse{
			Hits:   hits,
			Misses: misses,
			Ratio:  ratio,
		},
		Go: GoStatsResponse{
			Goroutines:  runtime.NumGoroutine(),
			HeapAlloc:   mem.HeapAlloc,
			HeapAllocMB: float64(mem.HeapAlloc) / 1024 / 1024,
			NumGC:       mem.NumGC,
			GoVersion:   runtime.Version(),
		},
	}
	if h.limiter != nil {
		ls := h.limiter.Stats()
		response.RateLimit = &ls
	}

	w.Header().Set("Cache-Control", "no-cache")
	respondJSON(w, http.StatusOK, response)
}
