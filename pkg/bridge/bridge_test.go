package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/aquabridge/pkg/display"
	"github.com/urmzd/aquabridge/pkg/entity"
	"github.com/urmzd/aquabridge/pkg/messages"
	"github.com/urmzd/aquabridge/pkg/metrics"
	"github.com/urmzd/aquabridge/pkg/panel"
	"github.com/urmzd/aquabridge/pkg/tracker"
)

const root = "homeassistant/device/aqualogic"

type published struct {
	topic   string
	payload string
	retain  bool
}

type recordingPublisher struct {
	mu        sync.Mutex
	msgs      []published
	connected bool
}

func (p *recordingPublisher) Publish(topic string, payload []byte, retain bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic, string(payload), retain})
	return nil
}

func (p *recordingPublisher) IsConnected() bool { return p.connected }

func (p *recordingPublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	bridge  *Bridge
	port    *panel.NullPort
	pub     *recordingPublisher
	clock   *fakeClock
	metrics *metrics.Metrics
	mirror  *display.Mirror
}

func newFixture(t *testing.T, enabled []string, sms []entity.SensorDef) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	mirror := display.NewMirror()
	tr := tracker.New(10*time.Second, 180*time.Second, tracker.WithClock(clock.Now), tracker.WithDisplay(mirror))
	f, err := messages.New("aqualogic", "homeassistant", enabled, sms)
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	port := panel.NewNullPort()
	b := New(port, tr, f, WithMetrics(m), WithDisplay(mirror))
	pub := &recordingPublisher{connected: true}
	b.SetPublisher(pub)

	return &fixture{bridge: b, port: port, pub: pub, clock: clock, metrics: m, mirror: mirror}
}

func TestNewRegistersListener(t *testing.T) {
	fx := newFixture(t, nil, nil)
	assert.Same(t, fx.bridge, fx.port.Listener())
}

func TestPanelChangedPublishesState(t *testing.T) {
	fx := newFixture(t, []string{"t_p", "f"}, []entity.SensorDef{{Text: "Low Salt", Key: "low_salt"}})

	fx.bridge.PanelChanged(panel.Snapshot{
		States:             panel.StateFilter | panel.StateCheckSystem,
		Attributes:         map[panel.Attribute]any{panel.AttrPoolTemp: 78},
		CheckSystemMessage: "Low Salt\x00 ",
	})

	msgs := fx.pub.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, root+"/state", msgs[0].topic)
	assert.False(t, msgs[0].retain)

	var state map[string]any
	require.NoError(t, json.Unmarshal([]byte(msgs[0].payload), &state))
	assert.Equal(t, map[string]any{
		"cs":       "ON",
		"sysm":     "Low Salt",
		"t_p":      float64(78),
		"f":        "ON",
		"low_salt": "ON",
	}, state)

	assert.JSONEq(t, msgs[0].payload, string(fx.bridge.State()))
	assert.Equal(t, []string{"Low Salt"}, fx.bridge.ActiveMessages())
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.StatePublished))
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.SystemMessages))
	assert.True(t, fx.mirror.Snapshot().LEDs["filter"])
}

func TestSystemMessagesExpire(t *testing.T) {
	fx := newFixture(t, nil, nil)

	fx.bridge.PanelChanged(panel.Snapshot{CheckSystemMessage: "Low Salt"})
	fx.clock.Advance(181 * time.Second)
	fx.bridge.PanelChanged(panel.Snapshot{})

	msgs := fx.pub.all()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].payload, `"sysm":"Low Salt"`)
	assert.Contains(t, msgs[1].payload, `"sysm":""`)
}

func TestTextUpdatedMirrorsDisplay(t *testing.T) {
	fx := newFixture(t, nil, nil)
	fx.clock.Advance(5 * time.Second)

	fx.bridge.TextUpdated("Pool Temp 78°F\x00")

	assert.Equal(t, "Pool Temp 78°F", fx.mirror.Snapshot().Lines[0])
	assert.Zero(t, fx.bridge.Health().LastUpdateAge)
}

func TestButtonCommandDrainsInWriteWindow(t *testing.T) {
	fx := newFixture(t, []string{"menu"}, nil)

	fx.bridge.HandleMessage(root+"/aqualogic_button_menu/set", []byte("PRESS"))
	fx.bridge.HandleMessage(root+"/aqualogic_button_pool_spa_toggle/set", []byte("PRESS"))
	assert.Empty(t, fx.port.Keys)
	assert.Equal(t, 2, fx.bridge.Health().QueuedKeys)

	fx.bridge.WriteWindow()

	assert.Equal(t, []panel.Key{panel.KeyMenu, panel.KeyPoolSpa}, fx.port.Keys)
	assert.Equal(t, 2.0, testutil.ToFloat64(fx.metrics.Keypresses.WithLabelValues("sent")))
	assert.Equal(t, 2.0, testutil.ToFloat64(fx.metrics.Commands.WithLabelValues("button")))
	assert.Equal(t, 0.0, testutil.ToFloat64(fx.metrics.KeypressQueue))
}

func TestControlCommandSetsState(t *testing.T) {
	fx := newFixture(t, []string{"l"}, nil)

	fx.bridge.HandleMessage(root+"/aqualogic_light_lights/set", []byte("ON"))

	assert.Equal(t, map[panel.State]bool{panel.StateLights: true}, fx.port.States)
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.Commands.WithLabelValues("control")))
}

func TestOnlineAnnouncementRepublishesDiscovery(t *testing.T) {
	fx := newFixture(t, nil, nil)

	fx.bridge.OnConnect()
	fx.bridge.HandleMessage("homeassistant/status", []byte("online"))

	msgs := fx.pub.all()
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Equal(t, root+"/config", m.topic)
		assert.True(t, m.retain)
	}
	assert.Equal(t, msgs[0].payload, msgs[1].payload)
}

func TestOnConnectRepublishesLastSnapshot(t *testing.T) {
	fx := newFixture(t, []string{"l"}, nil)
	fx.port.SetSnapshot(panel.Snapshot{States: panel.StateLights, UpdatedAt: fx.clock.Now()})

	fx.bridge.OnConnect()

	msgs := fx.pub.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, root+"/config", msgs[0].topic)
	assert.Equal(t, root+"/state", msgs[1].topic)

	var state map[string]any
	require.NoError(t, json.Unmarshal([]byte(msgs[1].payload), &state))
	assert.Equal(t, "ON", state["l"])
}

func TestUnroutedMessageIsCounted(t *testing.T) {
	fx := newFixture(t, nil, nil)

	fx.bridge.HandleMessage(root+"/nothing/set", []byte("ON"))

	assert.Empty(t, fx.pub.all())
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.Commands.WithLabelValues("miss")))
}

func TestPressKey(t *testing.T) {
	fx := newFixture(t, nil, nil)

	require.NoError(t, fx.bridge.PressKey("right", SourceHTTP))
	err := fx.bridge.PressKey("bogus", SourceHTTP)
	assert.True(t, errors.Is(err, panel.ErrUnknownKey))
	assert.Equal(t, 1, fx.bridge.Health().QueuedKeys)
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.KeypressQueue))

	fx.bridge.WriteWindow()
	assert.Equal(t, []panel.Key{panel.KeyRight}, fx.port.Keys)
}

func TestSetEntity(t *testing.T) {
	fx := newFixture(t, []string{"aux1"}, nil)
	ctx := context.Background()

	require.NoError(t, fx.bridge.SetEntity(ctx, "aux1", true))
	assert.True(t, fx.port.States[panel.StateAux1])

	var cfgErr *entity.ConfigError
	assert.ErrorAs(t, fx.bridge.SetEntity(ctx, "aux2", true), &cfgErr)
}

func TestEntities(t *testing.T) {
	fx := newFixture(t, []string{"t_a", "l"}, []entity.SensorDef{{Text: "Check Flow"}})

	var keys []string
	for _, d := range fx.bridge.Entities() {
		keys = append(keys, d.Key)
	}
	assert.Equal(t, []string{"t_a", "l", "pool_spa_toggle", "Check_Flow"}, keys)
}

func TestHealth(t *testing.T) {
	fx := newFixture(t, nil, nil)

	h := fx.bridge.Health()
	assert.False(t, h.PanelConnected)
	assert.True(t, h.Updating)
	assert.True(t, h.MQTTConnected)
	assert.Empty(t, h.SystemMessages)
}

func TestWatchdog(t *testing.T) {
	fx := newFixture(t, nil, nil)

	require.NoError(t, fx.bridge.check())
	assert.Equal(t, 0.0, testutil.ToFloat64(fx.metrics.PanelUpdateAge))

	fx.clock.Advance(11 * time.Second)
	err := fx.bridge.check()
	assert.True(t, errors.Is(err, ErrPanelStalled))
	assert.Equal(t, 11.0, testutil.ToFloat64(fx.metrics.PanelUpdateAge))
}

func TestRunStopsOnCancel(t *testing.T) {
	fx := newFixture(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, fx.bridge.Run(ctx))
}

func TestNoPublisher(t *testing.T) {
	fx := newFixture(t, nil, nil)
	fx.bridge.SetPublisher(nil)

	fx.bridge.PanelChanged(panel.Snapshot{})
	assert.NotNil(t, fx.bridge.State())
	assert.False(t, fx.bridge.Health().MQTTConnected)
}
