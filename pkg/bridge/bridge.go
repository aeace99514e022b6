// Package bridge wires the panel port to MQTT. A Bridge owns the tracker,
// formatter, router, keypad queue and display mirror and receives every
// decoded panel event.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/aquabridge/pkg/db"
	"github.com/urmzd/aquabridge/pkg/display"
	"github.com/urmzd/aquabridge/pkg/entity"
	"github.com/urmzd/aquabridge/pkg/keypad"
	"github.com/urmzd/aquabridge/pkg/messages"
	"github.com/urmzd/aquabridge/pkg/metrics"
	"github.com/urmzd/aquabridge/pkg/panel"
	"github.com/urmzd/aquabridge/pkg/router"
	"github.com/urmzd/aquabridge/pkg/tracker"
)

const watchdogInterval = time.Second

// ErrPanelStalled is returned by Run when the panel stopped sending updates.
var ErrPanelStalled = errors.New("panel stopped updating")

// Key sources recorded in the key log.
const (
	SourceMQTT  = "mqtt"
	SourceHTTP  = "http"
	SourceMCP   = "mcp"
	SourcePanel = "panel"
)

// Publisher sends a message to the broker.
type Publisher interface {
	Publish(topic string, payload []byte, retain bool) error
}

// Health summarizes the bridge for the HTTP and MCP surfaces.
type Health struct {
	PanelConnected bool     `json:"panel_connected"`
	Updating       bool     `json:"updating"`
	LastUpdateAge  float64  `json:"last_update_age_seconds"`
	MQTTConnected  bool     `json:"mqtt_connected"`
	QueuedKeys     int      `json:"queued_keys"`
	SystemMessages []string `json:"system_messages"`
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithMetrics records counters and gauges in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithRecorder writes system messages and keypresses to the history store.
func WithRecorder(r *db.Recorder) Option {
	return func(b *Bridge) { b.recorder = r }
}

// WithDisplay mirrors panel LEDs into d.
func WithDisplay(d *display.Mirror) Option {
	return func(b *Bridge) { b.display = d }
}

// Bridge is the panel.Listener and MQTT message handler.
type Bridge struct {
	port      panel.Port
	tracker   *tracker.Tracker
	formatter *messages.Formatter
	router    *router.Router
	keys      *keypad.Queue
	display   *display.Mirror
	metrics   *metrics.Metrics
	recorder  *db.Recorder
	now       func() time.Time

	pubMu sync.RWMutex
	pub   Publisher

	stateMu   sync.RWMutex
	lastState json.RawMessage
}

// New creates a bridge and registers it as the port's listener.
func New(port panel.Port, t *tracker.Tracker, f *messages.Formatter, opts ...Option) *Bridge {
	b := &Bridge{
		port:      port,
		tracker:   t,
		formatter: f,
		keys:      keypad.NewQueue(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	b.router = router.New(f, port, mqttKeys{b}, router.WithObserver(b.observeCommand))
	b.keys.RegisterSender(b.sendKey)
	port.SetListener(b)
	return b
}

// SetPublisher installs the broker connection used for outbound messages.
func (b *Bridge) SetPublisher(p Publisher) {
	b.pubMu.Lock()
	b.pub = p
	b.pubMu.Unlock()
}

func (b *Bridge) publish(out messages.Outbound) {
	b.pubMu.RLock()
	pub := b.pub
	b.pubMu.RUnlock()
	if pub == nil {
		log.Debug().Str("topic", out.Topic).Msg("No publisher, dropping message")
		return
	}
	if err := pub.Publish(out.Topic, out.Payload, out.Retain); err != nil {
		log.Error().Err(err).Str("topic", out.Topic).Msg("Publish failed")
	}
}

// PanelChanged publishes the new state.
func (b *Bridge) PanelChanged(snap panel.Snapshot) {
	b.tracker.ObserveActivity()
	if msg := tracker.NormalizeMessage(snap.CheckSystemMessage); msg != "" {
		b.tracker.ObserveSystemMessage(msg)
		if b.recorder != nil {
			b.recorder.RecordMessage(msg, b.now())
		}
	}
	if b.display != nil {
		b.display.UpdateLEDs(snap.LEDs())
	}
	b.publishState(snap)
}

func (b *Bridge) publishState(snap panel.Snapshot) {
	active := b.tracker.ActiveMessages()
	payload, err := b.formatter.StatePayload(snap, staticMessages(active))
	if err != nil {
		log.Error().Err(err).Msg("Failed to build state payload")
		return
	}

	b.stateMu.Lock()
	b.lastState = payload
	b.stateMu.Unlock()

	log.Debug().Str("topic", b.formatter.StateTopic()).RawJSON("state", payload).Msg("Publishing state")
	b.publish(messages.Outbound{Topic: b.formatter.StateTopic(), Payload: payload})

	if b.metrics != nil {
		b.metrics.StatePublished.Inc()
		b.metrics.SystemMessages.Set(float64(len(active)))
	}
}

// TextUpdated mirrors raw display text.
func (b *Bridge) TextUpdated(raw string) {
	b.tracker.RecordDisplayText(raw)
}

// WriteWindow sends queued keypresses.
func (b *Bridge) WriteWindow() {
	if n := b.keys.Drain(keypad.DefaultDrainMax); n > 0 {
		log.Debug().Int("sent", n).Msg("Drained keypresses")
	}
	if b.metrics != nil {
		b.metrics.KeypressQueue.Set(float64(b.keys.Len()))
	}
}

func (b *Bridge) sendKey(k panel.Key) error {
	err := b.port.SendKey(context.Background(), k)
	result := "sent"
	if err != nil {
		result = "error"
	}
	if b.metrics != nil {
		b.metrics.Keypresses.WithLabelValues(result).Inc()
	}
	b.logKey(k.String(), SourcePanel, result)
	return err
}

func (b *Bridge) logKey(name, source, result string) {
	if b.recorder == nil {
		return
	}
	b.recorder.RecordKeypress(db.Keypress{Key: name, Source: source, Result: result, At: b.now()})
}

// HandleMessage routes an inbound MQTT message and publishes any replies.
func (b *Bridge) HandleMessage(topic string, payload []byte) {
	for _, out := range b.router.Dispatch(context.Background(), topic, string(payload)) {
		b.publish(out)
	}
}

// OnConnect publishes discovery after every (re)connect.
func (b *Bridge) OnConnect() {
	out, err := b.formatter.Discovery()
	if err != nil {
		log.Error().Err(err).Msg("Failed to build discovery payload")
		return
	}
	log.Info().Str("topic", out.Topic).Msg("Publishing discovery")
	b.publish(out)

	// Last known state, once the panel has reported.
	if snap := b.port.Snapshot(); !snap.UpdatedAt.IsZero() {
		b.publishState(snap)
	}
}

func (b *Bridge) observeCommand(r router.Result) {
	if b.metrics != nil {
		b.metrics.Commands.WithLabelValues(string(r)).Inc()
	}
}

// PressKey queues a named key for the next write window.
func (b *Bridge) PressKey(name, source string) error {
	if !b.keys.Enqueue(name) {
		return fmt.Errorf("%w: %s", panel.ErrUnknownKey, name)
	}
	b.queued(name, source)
	return nil
}

func (b *Bridge) enqueue(k panel.Key, source string) {
	b.keys.EnqueueKey(k)
	b.queued(k.String(), source)
}

func (b *Bridge) queued(name, source string) {
	b.logKey(name, source, "queued")
	if b.metrics != nil {
		b.metrics.KeypressQueue.Set(float64(b.keys.Len()))
	}
}

// SetEntity switches an enabled control on or off.
func (b *Bridge) SetEntity(ctx context.Context, key string, on bool) error {
	d, ok := b.formatter.Controls()[key]
	if !ok {
		return &entity.ConfigError{Key: key, Reason: "not an enabled switch or light"}
	}
	return b.port.SetState(ctx, d.State, on)
}

// Entities returns every exposed entity.
func (b *Bridge) Entities() []entity.Descriptor {
	var out []entity.Descriptor
	for _, c := range []entity.Catalog{
		b.formatter.Sensors(),
		b.formatter.Controls(),
		b.formatter.Buttons(),
		b.formatter.SystemMessageSensors(),
	} {
		for _, k := range c.Keys() {
			out = append(out, c[k])
		}
	}
	return out
}

// State returns the last published state payload, or nil before the
// first panel update.
func (b *Bridge) State() json.RawMessage {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.lastState
}

// Display returns the display mirror, which may be nil.
func (b *Bridge) Display() *display.Mirror {
	return b.display
}

// ActiveMessages returns the unexpired system messages.
func (b *Bridge) ActiveMessages() []string {
	return b.tracker.ActiveMessages()
}

// Health reports connectivity.
func (b *Bridge) Health() Health {
	h := Health{
		PanelConnected: b.port.IsConnected(),
		Updating:       b.tracker.IsUpdating(),
		LastUpdateAge:  b.tracker.LastUpdateAge().Seconds(),
		QueuedKeys:     b.keys.Len(),
		SystemMessages: b.tracker.ActiveMessages(),
	}
	b.pubMu.RLock()
	if c, ok := b.pub.(interface{ IsConnected() bool }); ok {
		h.MQTTConnected = c.IsConnected()
	}
	b.pubMu.RUnlock()
	return h
}

// Run polls panel liveness once a second. It returns nil when ctx is done
// and ErrPanelStalled when no update arrived within the source timeout.
func (b *Bridge) Run(ctx context.Context) error {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := b.check(); err != nil {
				return err
			}
		}
	}
}

func (b *Bridge) check() error {
	age := b.tracker.LastUpdateAge()
	log.Debug().Dur("age", age).Msg("Panel update age")
	if b.metrics != nil {
		b.metrics.PanelUpdateAge.Set(age.Seconds())
		b.metrics.KeypressQueue.Set(float64(b.keys.Len()))
	}
	if !b.tracker.IsUpdating() {
		return fmt.Errorf("%w: no update in %s", ErrPanelStalled, age.Truncate(time.Second))
	}
	return nil
}

// mqttKeys tags keypresses routed from MQTT.
type mqttKeys struct{ b *Bridge }

func (m mqttKeys) EnqueueKey(k panel.Key) { m.b.enqueue(k, SourceMQTT) }

// staticMessages serves one ActiveMessages result to the formatter so a
// single payload sees a consistent message set.
type staticMessages []string

func (s staticMessages) ActiveMessages() []string { return s }

var (
	_ panel.Listener     = (*Bridge)(nil)
	_ router.KeyQueue    = mqttKeys{}
	_ router.StateSetter = panel.Port(nil)
)
