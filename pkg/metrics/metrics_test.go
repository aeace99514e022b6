package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.StatePublished.Inc()
	m.StatePublished.Inc()
	if got := testutil.ToFloat64(m.StatePublished); got != 2 {
		t.Fatalf("expected state published 2, got %f", got)
	}

	m.Commands.WithLabelValues("control").Inc()
	if got := testutil.ToFloat64(m.Commands.WithLabelValues("control")); got != 1 {
		t.Fatalf("expected control commands 1, got %f", got)
	}

	m.SetConnected(true)
	if got := testutil.ToFloat64(m.MQTTConnected); got != 1 {
		t.Fatalf("expected connected gauge 1, got %f", got)
	}
	m.SetConnected(false)
	if got := testutil.ToFloat64(m.MQTTConnected); got != 0 {
		t.Fatalf("expected connected gauge 0, got %f", got)
	}

	m.PublishDuration.Observe(0.01)
	if n := testutil.CollectAndCount(m.PublishDuration); n != 1 {
		t.Fatalf("expected 1 histogram, got %d", n)
	}
}

func TestHandler(t *testing.T) {
	m := NewDefault()
	m.KeypressQueue.Set(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "aquabridge_keypress_queue_length 3") {
		t.Errorf("metrics output missing queue gauge:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("expected go collector output")
	}
}
