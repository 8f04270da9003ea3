package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repofeed_cache_lookups_total",
		Help: "Cache lookups by result (hit, miss, expired, corrupt)",
	}, []string{"result"})

	CacheWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "repofeed_cache_write_errors_total",
		Help: "Failed cache writes and invalidations",
	})

	Fetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repofeed_fetch_total",
		Help: "GitHub fetches by outcome (ok, error)",
	}, []string{"outcome"})

	Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repofeed_fallback_total",
		Help: "Loads that ended in the fallback path, by policy",
	}, []string{"policy"})

	Renders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repofeed_render_total",
		Help: "Rendered responses by kind (page, grid)",
	}, []string{"kind"})
)
