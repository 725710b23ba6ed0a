package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	runsTotal         *prometheus.CounterVec
	runDuration       prometheus.Histogram
	runGenerations    prometheus.Histogram
	bestFitness       prometheus.Gauge
	unassignedOrders  prometheus.Gauge
}

// New 创建并注册所有指标，registry 为 nil 时使用默认的注册表
func New(registry *prometheus.Registry) *Metrics {
	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if registry != nil {
		registerer, gatherer = registry, registry
	}

	m := &Metrics{
		gatherer: gatherer,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "allocation_runs_total",
			Help: "Total allocation runs by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "allocation_run_duration_seconds",
			Help:    "Histogram of allocation run durations.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		runGenerations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "allocation_run_generations",
			Help:    "Histogram of generations evolved per allocation run.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 8),
		}),
		bestFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "allocation_best_fitness",
			Help: "Fitness of the plan returned by the latest finished run.",
		}),
		unassignedOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "allocation_unassigned_orders",
			Help: "Unassigned orders in the plan returned by the latest finished run.",
		}),
	}

	registerer.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.runsTotal,
		m.runDuration,
		m.runGenerations,
		m.bestFitness,
		m.unassignedOrders,
	)

	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Middleware 按路由模板统计请求，需要挂在 chi 路由上
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m == nil {
			return
		}

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RunFinished 记录一次成功结束的分配
func (m *Metrics) RunFinished(duration time.Duration, generations int, plan *domain.AllocationPlan) {
	if m == nil {
		return
	}

	m.runsTotal.WithLabelValues(string(domain.AllocationRunStatusFinished)).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.runGenerations.Observe(float64(generations))
	m.bestFitness.Set(plan.Fitness)

	unassigned := 0
	for _, allocation := range plan.Allocations {
		if !allocation.Assigned() {
			unassigned++
		}
	}
	m.unassignedOrders.Set(float64(unassigned))
}

func (m *Metrics) RunFailed() {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(string(domain.AllocationRunStatusFailed)).Inc()
}
