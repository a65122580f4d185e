package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the ingestion counters. A nil *Metrics records nothing.
type Metrics struct {
	files         *prometheus.CounterVec
	entities      prometheus.Counter
	relations     prometheus.Counter
	dangling      prometheus.Counter
	stageDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codegraph",
			Name:      "files_ingested_total",
			Help:      "Files processed by the ingestion pipeline, by outcome.",
		}, []string{"status"}),
		entities: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codegraph",
			Name:      "entities_added_total",
			Help:      "Entities newly stored in the graph.",
		}),
		relations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codegraph",
			Name:      "relationships_added_total",
			Help:      "Relationships stored in the graph.",
		}),
		dangling: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codegraph",
			Name:      "relationships_dangling_total",
			Help:      "Relationships dropped because an endpoint was not found.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codegraph",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage", "success"}),
	}
	if reg != nil {
		reg.MustRegister(m.files, m.entities, m.relations, m.dangling, m.stageDuration)
	}
	return m
}

func (m *Metrics) observeStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	success := "true"
	if err != nil {
		success = "false"
	}
	m.stageDuration.WithLabelValues(stage, success).Observe(d.Seconds())
}

func (m *Metrics) observeFile(r FileResult) {
	if m == nil {
		return
	}
	status := "ok"
	if r.Failed() {
		status = "failed"
	}
	m.files.WithLabelValues(status).Inc()
	m.entities.Add(float64(r.EntitiesAdded))
	m.relations.Add(float64(r.RelationsAdded))
	m.dangling.Add(float64(len(r.Dangling)))
}
