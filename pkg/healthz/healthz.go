// Package healthz exposes the daemon's liveness/readiness state over HTTP
// and registers the Prometheus metrics both daemons publish.
package healthz

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status is the liveness payload served on "/".
type Status struct {
	Status        string `json:"status"` // "starting", "ok", "degraded"
	Component     string `json:"component"`
	Ethereum      string `json:"ethereum"`
	LastTickError string `json:"last_tick_error,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	startTime time.Time
	mu        sync.RWMutex
}

// New returns a Status initialized for the named component ("oracle" or
// "keeper").
func New(component string) *Status {
	return &Status{
		Status:    "starting",
		Component: component,
		Ethereum:  "unknown",
		startTime: time.Now(),
	}
}

func (s *Status) SetEthereum(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Ethereum = state
	s.updateOverallStatus()
}

func (s *Status) SetTickError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.LastTickError = ""
	} else {
		s.LastTickError = err.Error()
	}
	s.updateOverallStatus()
}

// updateOverallStatus must be called with s.mu held.
func (s *Status) updateOverallStatus() {
	switch {
	case s.Ethereum != "connected":
		s.Status = "degraded"
	case s.LastTickError != "":
		s.Status = "degraded"
	default:
		s.Status = "ok"
	}
}

func (s *Status) snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := *s
	out.UptimeSeconds = int64(time.Since(s.startTime).Seconds())
	return out
}

// Metrics are the counters/gauges registered on the healthz mux, shared by
// both daemons so the oracle and keeper tick loops publish the same shape
// of observability data.
type Metrics struct {
	TicksRun        prometheus.Counter
	TicksFailed     prometheus.Counter
	VotesPublished  prometheus.Counter
	QuorumReached   prometheus.Counter
	TxSubmitted     prometheus.Counter
	TxFeeEscalation prometheus.Counter
}

// NewMetrics registers the shared metric set against reg.
func NewMetrics(reg *prometheus.Registry, component string) *Metrics {
	m := &Metrics{
		TicksRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oracle_keeper_ticks_total", ConstLabels: prometheus.Labels{"component": component},
		}),
		TicksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oracle_keeper_ticks_failed_total", ConstLabels: prometheus.Labels{"component": component},
		}),
		VotesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oracle_keeper_votes_published_total", ConstLabels: prometheus.Labels{"component": component},
		}),
		QuorumReached: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oracle_keeper_quorum_reached_total", ConstLabels: prometheus.Labels{"component": component},
		}),
		TxSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oracle_keeper_transactions_submitted_total", ConstLabels: prometheus.Labels{"component": component},
		}),
		TxFeeEscalation: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oracle_keeper_fee_escalations_total", ConstLabels: prometheus.Labels{"component": component},
		}),
	}
	reg.MustRegister(m.TicksRun, m.TicksFailed, m.VotesPublished, m.QuorumReached, m.TxSubmitted, m.TxFeeEscalation)
	return m
}

// Serve runs the health/metrics HTTP server until ctx-independent process
// exit; callers run it in its own goroutine.
func Serve(addr string, status *Status, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		snap := status.snapshot()
		w.Header().Set("Content-Type", "application/json")
		if snap.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(snap)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return http.ListenAndServe(addr, mux)
}
