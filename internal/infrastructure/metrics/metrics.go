// Package metrics exposes bridge counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-rnet/internal/rnet"
)

const namespace = "rnet"

// StatsSource is implemented by rnet.Manager.
type StatsSource interface {
	Stats() rnet.Stats
}

// NewRegistry creates a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the /metrics HTTP handler for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// RegisterManager exports the manager's counters. Values are read from
// Stats at scrape time.
func RegisterManager(reg prometheus.Registerer, src StatsSource) {
	counter := func(name, help string, get func(rnet.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(get(src.Stats())) })
	}

	reg.MustRegister(
		counter("frames_received_total", "Complete frames read from the bus.",
			func(s rnet.Stats) uint64 { return s.FramesRx }),
		counter("frames_sent_total", "Command frames written to the bus.",
			func(s rnet.Stats) uint64 { return s.FramesTx }),
		counter("bytes_received_total", "Raw bytes read from the bus.",
			func(s rnet.Stats) uint64 { return s.BytesRx }),
		counter("frames_unmatched_total", "Frames no decoder recognised.",
			func(s rnet.Stats) uint64 { return s.FramesUnmatched }),
		counter("updates_dispatched_total", "Zone state updates delivered to the listener.",
			func(s rnet.Stats) uint64 { return s.UpdatesDispatched }),
		counter("connect_attempts_total", "Transport connect attempts.",
			func(s rnet.Stats) uint64 { return s.ConnectAttempts }),
		counter("retries_scheduled_total", "Reconnect attempts scheduled.",
			func(s rnet.Stats) uint64 { return s.RetriesScheduled }),
		counter("errors_total", "Connection and write errors.",
			func(s rnet.Stats) uint64 { return s.ErrorsTotal }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online",
			Help:      "1 when the bus transport is online.",
		}, func() float64 {
			if src.Stats().State == rnet.StateOnline {
				return 1
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_activity_timestamp_seconds",
			Help:      "Unix time of the last frame received or sent.",
		}, func() float64 {
			last := src.Stats().LastActivity
			if last.IsZero() {
				return 0
			}
			return float64(last.UnixNano()) / 1e9
		}),
	)
}

// BridgeMetrics counts bridge-level traffic between MQTT/HTTP and the bus.
type BridgeMetrics struct {
	Commands     *prometheus.CounterVec // labels: command, result
	StatePublish *prometheus.CounterVec // labels: result
	Refreshes    prometheus.Counter
	ZonesTracked prometheus.Gauge
}

// NewBridgeMetrics registers and returns the bridge metrics.
func NewBridgeMetrics(reg prometheus.Registerer) *BridgeMetrics {
	m := &BridgeMetrics{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_commands_total",
			Help:      "Zone commands handled, by command and result.",
		}, []string{"command", "result"}),
		StatePublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_state_publish_total",
			Help:      "Zone state publishes to MQTT, by result.",
		}, []string{"result"}),
		Refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_refreshes_total",
			Help:      "Zone info refresh sweeps started.",
		}),
		ZonesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bridge_zones_tracked",
			Help:      "Zones with cached state.",
		}),
	}
	reg.MustRegister(m.Commands, m.StatePublish, m.Refreshes, m.ZonesTracked)
	return m
}
