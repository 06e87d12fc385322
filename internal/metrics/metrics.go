// Package metrics exposes Prometheus instrumentation for the crawl pipeline
// and the retrieval engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webgraph_messages_handled_total",
		Help: "Pipeline messages handled, by topic.",
	}, []string{"topic"})

	pagesCrawled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webgraph_pages_crawled_total",
		Help: "Pages processed by pool units, by result.",
	}, []string{"result"})

	nodesInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webgraph_nodes_inserted_total",
		Help: "Webpage records upserted into the graph store.",
	})

	searchStageSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webgraph_search_stage_seconds",
		Help:    "Retrieval stage latency, by stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
)

// MessageHandled counts one handled pipeline message.
func MessageHandled(topic string) {
	messagesHandled.WithLabelValues(topic).Inc()
}

// PageCrawled counts one processed page; result is "ok" or "error".
func PageCrawled(result string) {
	pagesCrawled.WithLabelValues(result).Inc()
}

// NodesInserted counts records written to the graph store.
func NodesInserted(n int) {
	nodesInserted.Add(float64(n))
}

// ObserveSearchStage records one retrieval stage's latency.
func ObserveSearchStage(stage string, d time.Duration) {
	searchStageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}
