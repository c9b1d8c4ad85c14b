package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inforojo/internal/domain"
)

type Collector struct {
	reg *prometheus.Registry

	Polls             *prometheus.CounterVec // result label: ok|error
	PollDuration      prometheus.Histogram
	TrackedCorredores prometheus.Gauge
	Deltas            *prometheus.CounterVec // type label: update|remove
	WatchedCorredores prometheus.Gauge

	ETAPolls *prometheus.CounterVec // result label: ok|error

	CatalogParaderos prometheus.Gauge
	CatalogRutas     prometheus.Gauge
	CatalogRefreshes *prometheus.CounterVec // result label: ok|error

	ShareFixes *prometheus.CounterVec // result label: sent|skipped|invalid|failed
	Sharing    prometheus.Gauge

	NotificationsPushed prometheus.Counter
	WSClients           prometheus.Gauge

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	PollInterval prometheus.Gauge // seconds
}

func NewCollector(pollInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inforojo_polls_total",
			Help: "Position polls against the transit API.",
		}, []string{"result"}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inforojo_poll_duration_seconds",
			Help:    "Duration of a full position poll.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		TrackedCorredores: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inforojo_tracked_corredores",
			Help: "Corredores currently held in the position store.",
		}),
		Deltas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inforojo_position_deltas_total",
			Help: "Position deltas produced by the store.",
		}, []string{"type"}),
		WatchedCorredores: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inforojo_watched_corredores",
			Help: "Corredores polled individually.",
		}),
		ETAPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inforojo_eta_polls_total",
			Help: "ETA polls for watched paraderos.",
		}, []string{"result"}),
		CatalogParaderos: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inforojo_catalog_paraderos",
			Help: "Paraderos in the local catalog.",
		}),
		CatalogRutas: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inforojo_catalog_rutas",
			Help: "Rutas in the local catalog.",
		}),
		CatalogRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inforojo_catalog_refreshes_total",
			Help: "Catalog refresh attempts.",
		}, []string{"result"}),
		ShareFixes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inforojo_share_fixes_total",
			Help: "Location fixes seen by the sharer.",
		}, []string{"result"}),
		Sharing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inforojo_share_active",
			Help: "1 while the location sharer is subscribed.",
		}),
		NotificationsPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inforojo_notifications_pushed_total",
			Help: "Notifications pushed to map views.",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inforojo_ws_clients",
			Help: "Connected WebSocket clients.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inforojo_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inforojo_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inforojo_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inforojo_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		PollInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inforojo_poll_interval_seconds",
			Help: "Position poll interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.Polls, c.PollDuration, c.TrackedCorredores, c.Deltas, c.WatchedCorredores,
		c.ETAPolls,
		c.CatalogParaderos, c.CatalogRutas, c.CatalogRefreshes,
		c.ShareFixes, c.Sharing,
		c.NotificationsPushed, c.WSClients,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.PollInterval,
	)

	c.PollInterval.Set(pollInterval.Seconds())

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Registry is exposed for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Tracker hooks.

func (c *Collector) ObservePoll(d time.Duration, err error) {
	c.Polls.WithLabelValues(result(err)).Inc()
	c.PollDuration.Observe(d.Seconds())
}

func (c *Collector) SetTracked(n int) { c.TrackedCorredores.Set(float64(n)) }

func (c *Collector) SetWatched(n int) { c.WatchedCorredores.Set(float64(n)) }

func (c *Collector) AddDeltas(deltas []domain.PositionDelta) {
	for _, d := range deltas {
		c.Deltas.WithLabelValues(string(d.Type)).Inc()
	}
}

func (c *Collector) ObserveETAPoll(err error) { c.ETAPolls.WithLabelValues(result(err)).Inc() }

func (c *Collector) ObserveCatalog(paraderos, rutas int, err error) {
	c.CatalogRefreshes.WithLabelValues(result(err)).Inc()
	if err == nil {
		c.CatalogParaderos.Set(float64(paraderos))
		c.CatalogRutas.Set(float64(rutas))
	}
}

// Sharer hooks.

func (c *Collector) ShareFix(outcome string) { c.ShareFixes.WithLabelValues(outcome).Inc() }

func (c *Collector) SetSharing(active bool) {
	if active {
		c.Sharing.Set(1)
	} else {
		c.Sharing.Set(0)
	}
}

// Hub hooks.

func (c *Collector) SetClients(n int) { c.WSClients.Set(float64(n)) }

func (c *Collector) NotificationPushed() { c.NotificationsPushed.Inc() }

// Publisher hooks.

func (c *Collector) NATSPublishedInc() { c.NATSPublished.Inc() }

func (c *Collector) NATSPublishErrInc() { c.NATSPublishErrs.Inc() }

func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}
