package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 图库服务的 Prometheus 指标，通过 /metrics 暴露。
var (
	StoreRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_store_request_duration_seconds",
			Help:    "Duration of requests to the remote table store",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "table"},
	)

	TableFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_table_fetches_total",
			Help: "Table fetches performed by the aggregator, by result",
		},
		[]string{"table", "result"}, // "ok", "error"
	)

	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_records_dropped_total",
			Help: "Raw records dropped during normalization",
		},
		[]string{"table"},
	)

	AggregationCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_aggregation_cache_total",
			Help: "Aggregation cache lookups",
		},
		[]string{"result"}, // "hit", "miss"
	)

	SnapshotPhotos = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_snapshot_photos",
			Help: "Number of photos in the current aggregation snapshot",
		},
	)

	OrderingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_ordering_duration_seconds",
			Help:    "Time spent ordering a photo collection",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"algorithm"},
	)

	ClicksRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_clicks_recorded_total",
			Help: "Photo clicks recorded locally",
		},
	)

	CounterWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_counter_writes_total",
			Help: "Remote counter upserts, by kind and result",
		},
		[]string{"kind", "result"}, // kind: "click", "view"
	)

	ViewQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_view_queue_size",
			Help: "Pending view entries waiting for the next flush",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_sessions_active",
			Help: "Device sessions currently cached",
		},
	)

	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_sessions_evicted_total",
			Help: "Device sessions dropped after idling or exceeding capacity",
		},
	)
)
