package metricsserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Collector is the process's Prometheus registry plus the counters named
// by the request protocol (§4.6) and the filter/fetch pipeline (§4.2-4.5).
// It implements MetricsHandler so it can be handed straight to
// StartMetricsServer.
type Collector struct {
	registry *prometheus.Registry
	handler  fasthttp.RequestHandler

	TilesGet        prometheus.Counter
	AdmRequest      prometheus.Counter
	TilesInvalid    *prometheus.CounterVec
	CacheHit        prometheus.Counter
	CacheHitRefresh prometheus.Counter
	CacheMiss       prometheus.Counter
	CacheMissPop    prometheus.Counter
	AdmEmptyResp    prometheus.Counter
	AdmAllFiltered  prometheus.Counter
	AdmFetchErrors  *prometheus.CounterVec
}

// NewCollector builds every counter and registers it on the collector's
// own registry. Metric names carry no namespace prefix.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		TilesGet: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tiles_get_total",
			Help: "Total /v1/tiles requests received.",
		}),
		AdmRequest: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tiles_adm_request_total",
			Help: "Total upstream partner fetches attempted.",
		}),
		TilesInvalid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiles_invalid_total",
			Help: "Tiles dropped by the validator, by rejection kind.",
		}, []string{"kind", "species"}),
		CacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tiles_cache_hit_total",
			Help: "Requests served from an unexpired Fresh slot.",
		}),
		CacheHitRefresh: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tiles_cache_hit_refreshing_total",
			Help: "Requests served stale content while a refresh is in flight.",
		}),
		CacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tiles_cache_miss_total",
			Help: "Requests that ran the assembly pipeline and committed a new Fresh slot.",
		}),
		CacheMissPop: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tiles_cache_miss_populating_total",
			Help: "Requests suppressed because another caller already owned the slot.",
		}),
		AdmEmptyResp: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filter_adm_empty_response_total",
			Help: "Upstream responses with zero tiles.",
		}),
		AdmAllFiltered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filter_adm_all_filtered_total",
			Help: "Upstream responses where every tile was rejected.",
		}),
		AdmFetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiles_adm_fetch_error_total",
			Help: "Upstream fetch failures, by kind.",
		}, []string{"kind"}),
	}

	registry.MustRegister(
		c.TilesGet,
		c.AdmRequest,
		c.TilesInvalid,
		c.CacheHit,
		c.CacheHitRefresh,
		c.CacheMiss,
		c.CacheMissPop,
		c.AdmEmptyResp,
		c.AdmAllFiltered,
		c.AdmFetchErrors,
	)

	c.handler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return c
}

// ServeHTTP implements MetricsHandler.
func (c *Collector) ServeHTTP(ctx *fasthttp.RequestCtx) {
	c.handler(ctx)
}
