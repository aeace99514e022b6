// Package metrics exposes bridge counters and gauges to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the bridge updates.
type Metrics struct {
	StatePublished  prometheus.Counter
	Commands        *prometheus.CounterVec
	Keypresses      *prometheus.CounterVec
	MQTTReconnects  prometheus.Counter
	SystemMessages  prometheus.Gauge
	PanelUpdateAge  prometheus.Gauge
	KeypressQueue   prometheus.Gauge
	MQTTConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		StatePublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aquabridge_state_published_total",
			Help: "State payloads published to MQTT.",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aquabridge_commands_total",
			Help: "Inbound MQTT messages by routing result.",
		}, []string{"result"}),
		Keypresses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aquabridge_keypresses_total",
			Help: "Keypresses written to the panel by result.",
		}, []string{"result"}),
		MQTTReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aquabridge_mqtt_reconnects_total",
			Help: "MQTT reconnect attempts after a lost connection.",
		}),
		SystemMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aquabridge_system_messages_active",
			Help: "System messages currently shown by the panel.",
		}),
		PanelUpdateAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aquabridge_panel_update_age_seconds",
			Help: "Seconds since the panel last sent an update.",
		}),
		KeypressQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aquabridge_keypress_queue_length",
			Help: "Keypresses waiting for the next write window.",
		}),
		MQTTConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aquabridge_mqtt_connected",
			Help: "1 while connected to the MQTT broker.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aquabridge_publish_duration_seconds",
			Help:    "Time spent waiting for MQTT publish acknowledgement.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.StatePublished,
		m.Commands,
		m.Keypresses,
		m.MQTTReconnects,
		m.SystemMessages,
		m.PanelUpdateAge,
		m.KeypressQueue,
		m.MQTTConnected,
		m.PublishDuration,
	)
	return m
}

// NewDefault registers with a fresh registry that also carries the Go and
// process collectors.
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return New(reg)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// SetConnected records the MQTT connection state.
func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.MQTTConnected.Set(1)
		return
	}
	m.MQTTConnected.Set(0)
}

// Reconnecting counts an MQTT reconnect attempt.
func (m *Metrics) Reconnecting(int) {
	m.MQTTReconnects.Inc()
}

// Published records a publish round trip.
func (m *Metrics) Published(d time.Duration) {
	m.PublishDuration.Observe(d.Seconds())
}
