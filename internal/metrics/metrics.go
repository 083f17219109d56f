package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"loopscan/domain/echo"
)

const namespace = "loopscan"

// Recorder holds scan and HTTP metrics registered on one registry.
// A nil *Recorder records nothing.
type Recorder struct {
	scanDuration    *prometheus.HistogramVec
	pairsScored     prometheus.Counter
	matchesTotal    *prometheus.CounterVec
	invalidPatches  prometheus.Counter
	degeneratePairs prometheus.Counter
	nullRuns        *prometheus.CounterVec

	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
}

// NewRecorder creates the metrics and registers them on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		scanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Duration of one detection pass",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		pairsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_scored_total",
			Help:      "Total number of candidate pairs scored",
		}),
		matchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "matches_total",
				Help:      "Total number of matches by separation bin",
			},
			[]string{"bin"},
		),
		invalidPatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_patches_total",
			Help:      "Patches excluded for low coverage",
		}),
		degeneratePairs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degenerate_pairs_total",
			Help:      "Pairs with undefined correlation",
		}),
		nullRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "null_runs_total",
				Help:      "Null maps generated and scanned",
			},
			[]string{"provider"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
	reg.MustRegister(
		r.scanDuration,
		r.pairsScored,
		r.matchesTotal,
		r.invalidPatches,
		r.degeneratePairs,
		r.nullRuns,
		r.httpRequestDuration,
		r.httpRequestsTotal,
	)
	return r
}

// ObserveScan records one finished detection pass.
func (r *Recorder) ObserveScan(kind string, elapsed time.Duration, out *echo.ScanOutcome) {
	if r == nil || out == nil {
		return
	}
	r.scanDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	r.pairsScored.Add(float64(out.Diagnostics.ScoredPairs))
	r.invalidPatches.Add(float64(out.Diagnostics.InvalidPatches))
	r.degeneratePairs.Add(float64(out.Diagnostics.DegeneratePairs))
	for _, m := range out.Matches {
		r.matchesTotal.WithLabelValues(binLabel(m.Bin)).Inc()
	}
}

// NullRunDone counts one completed null ensemble member.
func (r *Recorder) NullRunDone(provider string) {
	if r == nil {
		return
	}
	r.nullRuns.WithLabelValues(provider).Inc()
}

func binLabel(bin float64) string {
	return strconv.FormatFloat(bin, 'f', -1, 64)
}
