package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	indexWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchd",
			Name:      "index_writes_total",
			Help:      "Index upserts and deletes by logical index and outcome",
		},
		[]string{"index", "op", "outcome"},
	)

	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchd",
			Name:      "queries_total",
			Help:      "Search queries by serving path",
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(indexWritesTotal)
	prometheus.MustRegister(queriesTotal)
}

// RecordIndexWrite counts one index mutation. op is "index" or "delete".
func RecordIndexWrite(index, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	indexWritesTotal.WithLabelValues(index, op, outcome).Inc()
}

// RecordQuery counts one search call. path is "active" or "fallback".
func RecordQuery(fallback bool) {
	path := "active"
	if fallback {
		path = "fallback"
	}
	queriesTotal.WithLabelValues(path).Inc()
}
