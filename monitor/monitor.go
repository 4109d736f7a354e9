// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ActiveRooms     prometheus.Gauge
	OnlineWatchers  prometheus.Gauge
	EngineExchanges prometheus.Counter
	EngineFailures  prometheus.Counter
	ExchangeLatency prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of live rooms",
		}),
		OnlineWatchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_watchers",
			Help:      "Number of connected live-update sessions",
		}),
		EngineExchanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_exchanges_total",
			Help:      "Total number of engine request/response exchanges",
		}),
		EngineFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_exchange_failures_total",
			Help:      "Engine exchanges that failed or timed out",
		}),
		ExchangeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_exchange_latency_seconds",
			Help:      "Engine exchange round-trip latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}

	prometheus.MustRegister(
		m.ActiveRooms,
		m.OnlineWatchers,
		m.EngineExchanges,
		m.EngineFailures,
		m.ExchangeLatency,
	)

	return m
}

type Monitor struct {
	metrics       *Metrics
	startTime     time.Time
	exchangeCount int64
	mutex         sync.Mutex
}

func NewMonitor(namespace string) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace),
		startTime: time.Now(),
	}
}

func (m *Monitor) StartServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())

	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))

	expvar.Publish("engine_exchanges", expvar.Func(func() interface{} {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		return m.exchangeCount
	}))

	go http.ListenAndServe(addr, nil)
}

func (m *Monitor) SetActiveRooms(count int) {
	m.metrics.ActiveRooms.Set(float64(count))
}

func (m *Monitor) IncWatchers() {
	m.metrics.OnlineWatchers.Inc()
}

func (m *Monitor) DecWatchers() {
	m.metrics.OnlineWatchers.Dec()
}

func (m *Monitor) ObserveExchange(duration time.Duration, ok bool) {
	m.metrics.EngineExchanges.Inc()
	if !ok {
		m.metrics.EngineFailures.Inc()
	}
	m.metrics.ExchangeLatency.Observe(duration.Seconds())

	m.mutex.Lock()
	m.exchangeCount++
	m.mutex.Unlock()
}
