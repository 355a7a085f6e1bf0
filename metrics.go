package hashtrie

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the package's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	PagesLoaded   prometheus.Counter
	PageBytesRead prometheus.Counter
	TriesWritten  *prometheus.CounterVec
	RowsMerged    prometheus.Counter
	LiveRows      prometheus.Counter
}

// NewMetrics registers the collectors with reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PagesLoaded: f.NewCounter(prometheus.CounterOpts{
			Name: "hashtrie_pages_loaded_total",
			Help: "Leaf pages loaded from persisted tries.",
		}),
		PageBytesRead: f.NewCounter(prometheus.CounterOpts{
			Name: "hashtrie_page_bytes_read_total",
			Help: "Encoded bytes of leaf pages loaded from persisted tries.",
		}),
		TriesWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hashtrie_tries_written_total",
			Help: "Tries persisted to the store, by writer.",
		}, []string{"source"}),
		RowsMerged: f.NewCounter(prometheus.CounterOpts{
			Name: "hashtrie_rows_merged_total",
			Help: "Rows picked from leaf merge queues during scans and compactions.",
		}),
		LiveRows: f.NewCounter(prometheus.CounterOpts{
			Name: "hashtrie_live_rows_total",
			Help: "Events appended to live tables.",
		}),
	}
}

func (m *Metrics) pageLoaded(size int) {
	if m == nil {
		return
	}
	m.PagesLoaded.Inc()
	m.PageBytesRead.Add(float64(size))
}

func (m *Metrics) trieWritten(source string) {
	if m == nil {
		return
	}
	m.TriesWritten.WithLabelValues(source).Inc()
}

func (m *Metrics) rowMerged() {
	if m == nil {
		return
	}
	m.RowsMerged.Inc()
}

func (m *Metrics) liveRowAdded() {
	if m == nil {
		return
	}
	m.LiveRows.Inc()
}
