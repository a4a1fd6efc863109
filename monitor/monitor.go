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
	OnlinePlayers   prometheus.Gauge
	ActiveRooms     prometheus.Gauge
	Actions         *prometheus.CounterVec
	UpdateConflicts prometheus.Counter
	UpdateExhausted prometheus.Counter
	RoundsAdvanced  prometheus.Counter
	CommandLatency  *prometheus.HistogramVec
}

func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of online players",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of rooms with a running game clock",
		}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Player actions by kind and result code",
		}, []string{"kind", "result"}),
		UpdateConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_update_conflicts_total",
			Help:      "Compare-and-swap saves that lost to a concurrent writer",
		}),
		UpdateExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_update_exhausted_total",
			Help:      "Room updates that gave up after the retry budget",
		}),
		RoundsAdvanced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_advanced_total",
			Help:      "Rounds advanced across all rooms",
		}),
		CommandLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_latency_seconds",
			Help:      "Command processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}, []string{"command"}),
	}

	registerer.MustRegister(
		m.OnlinePlayers,
		m.ActiveRooms,
		m.Actions,
		m.UpdateConflicts,
		m.UpdateExhausted,
		m.RoundsAdvanced,
		m.CommandLatency,
	)

	return m
}

// Monitor wraps the metrics. A nil *Monitor is valid and records nothing.
type Monitor struct {
	metrics      *Metrics
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
}

func NewMonitor(namespace string, registerer prometheus.Registerer) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace, registerer),
		startTime: time.Now(),
	}
}

func (m *Monitor) StartServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/vars", expvar.Handler())

	// 添加expvar指标
	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))

	expvar.Publish("requests", expvar.Func(func() interface{} {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		return m.requestCount
	}))

	go http.ListenAndServe(addr, mux)
}

func (m *Monitor) IncOnlinePlayers() {
	if m == nil {
		return
	}
	m.metrics.OnlinePlayers.Inc()
}

func (m *Monitor) DecOnlinePlayers() {
	if m == nil {
		return
	}
	m.metrics.OnlinePlayers.Dec()
}

func (m *Monitor) SetActiveRooms(count int) {
	if m == nil {
		return
	}
	m.metrics.ActiveRooms.Set(float64(count))
}

// ObserveAction counts one action; result is "ok" or a rejection code.
func (m *Monitor) ObserveAction(kind, result string) {
	if m == nil {
		return
	}
	m.metrics.Actions.WithLabelValues(kind, result).Inc()
}

func (m *Monitor) IncUpdateConflicts() {
	if m == nil {
		return
	}
	m.metrics.UpdateConflicts.Inc()
}

func (m *Monitor) IncUpdateExhausted() {
	if m == nil {
		return
	}
	m.metrics.UpdateExhausted.Inc()
}

func (m *Monitor) IncRoundsAdvanced() {
	if m == nil {
		return
	}
	m.metrics.RoundsAdvanced.Inc()
}

func (m *Monitor) ObserveCommand(command string, duration time.Duration) {
	if m == nil {
		return
	}
	m.metrics.CommandLatency.WithLabelValues(command).Observe(duration.Seconds())
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}
