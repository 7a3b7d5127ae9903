// Package metrics exposes Prometheus metrics of the vault service.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder counts processed operations and collected fees. It implements
// vault.Observer.
type Recorder struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	fees       prometheus.Counter
	feeCount   prometheus.Counter
}

// NewRecorder registers the vault metrics on reg under namespace.
func NewRecorder(namespace string, reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Processed vault operations by outcome.",
		}, []string{"operation", "code"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time spent processing vault operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		fees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "early_exit_fees_total",
			Help:      "Sum of early-exit fees charged, in native base units.",
		}),
		feeCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "early_exits_total",
			Help:      "Withdrawals that paid a non-zero early-exit fee.",
		}),
	}
	reg.MustRegister(r.operations, r.durations, r.fees, r.feeCount)
	return r
}

// ObserveOperation records one operation outcome. An empty code means success.
func (r *Recorder) ObserveOperation(op string, code string, duration time.Duration) {
	if code == "" {
		code = "OK"
	}
	r.operations.WithLabelValues(op, code).Inc()
	r.durations.WithLabelValues(op).Observe(duration.Seconds())
}

// ObserveFee records a charged early-exit fee.
func (r *Recorder) ObserveFee(fee uint64) {
	if fee == 0 {
		return
	}
	r.fees.Add(float64(fee))
	r.feeCount.Inc()
}

// MetricsServer serves the registry on /metrics.
type MetricsServer struct {
	Registry *prometheus.Registry
	Recorder *Recorder
	srv      *http.Server
}

// New creates a metrics server listening on addr with the vault metrics and
// the Go runtime collectors registered.
func New(namespace, addr string) (*MetricsServer, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return &MetricsServer{
		Registry: reg,
		Recorder: NewRecorder(namespace, reg),
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
