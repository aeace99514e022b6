package display

import (
	"encoding/json"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirror_NormalizesLines(t *testing.T) {
	m := NewMirror()

	m.Update([]string{"Pool Temp 78°F"}, nil, nil)
	assert.Equal(t, []string{"Pool Temp 78°F", "", "", ""}, m.Snapshot().Lines)

	m.Update([]string{"a", "b", "c", "d", "e", "f"}, nil, nil)
	assert.Equal(t, []string{"a", "b", "c", "d"}, m.Snapshot().Lines)
}

func TestMirror_PartialUpdateKeepsBlinkAndLEDs(t *testing.T) {
	m := NewMirror()

	m.Update([]string{"one"}, []Position{{0, 3}}, map[string]bool{"filter": true})
	m.Update([]string{"two"}, nil, nil)

	s := m.Snapshot()
	assert.Equal(t, "two", s.Lines[0])
	assert.Equal(t, []Position{{0, 3}}, s.Blink)
	assert.Equal(t, map[string]bool{"filter": true}, s.LEDs)

	m.Update([]string{"three"}, []Position{}, map[string]bool{})
	s = m.Snapshot()
	assert.Empty(t, s.Blink)
	assert.Empty(t, s.LEDs)
}

func TestMirror_SnapshotIsACopy(t *testing.T) {
	m := NewMirror()
	m.Update([]string{"x"}, []Position{{1, 1}}, map[string]bool{"lights": false})

	s := m.Snapshot()
	s.Lines[0] = "mutated"
	s.LEDs["lights"] = true
	s.Blink[0] = Position{9, 9}

	fresh := m.Snapshot()
	assert.Equal(t, "x", fresh.Lines[0])
	assert.False(t, fresh.LEDs["lights"])
	assert.Equal(t, Position{1, 1}, fresh.Blink[0])
}

func TestMirror_JSONShape(t *testing.T) {
	m := NewMirror()
	m.Update([]string{"hello"}, []Position{{1, 2}}, map[string]bool{"pool": true})

	raw, err := json.Marshal(m.Snapshot())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "lines")
	assert.Contains(t, doc, "blink")
	assert.Contains(t, doc, "leds")
	assert.Contains(t, doc, "updatedAt")
	assert.Equal(t, []any{[]any{float64(1), float64(2)}}, doc["blink"])
}

func TestMirror_Subscribe(t *testing.T) {
	m := NewMirror()
	ch := m.Subscribe()

	m.Update([]string{"line"}, nil, nil)
	s := <-ch
	assert.Equal(t, "line", s.Lines[0])

	m.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)

	// Unsubscribing twice is harmless.
	m.Unsubscribe(ch)
}

func TestMirror_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	m := NewMirror()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if i%2 == 0 {
				m.Update([]string{"even", "even", "even", "even"}, nil, nil)
			} else {
				m.Update([]string{"odd", "odd", "odd", "odd"}, nil, nil)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s := m.Snapshot()
			for _, l := range s.Lines[1:] {
				if l != s.Lines[0] {
					t.Errorf("torn snapshot: %q", s.Lines)
					return
				}
			}
		}
	}()
	wg.Wait()
}

func TestMirror_LEDUpdatesNeverRestoreOlderText(t *testing.T) {
	m := NewMirror()
	const n = 500

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		on := false
		for {
			select {
			case <-stop:
				return
			default:
			}
			on = !on
			m.UpdateLEDs(map[string]bool{"filter": on})
		}
	}()

	for i := 1; i <= n; i++ {
		m.Update([]string{strconv.Itoa(i)}, nil, nil)
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, strconv.Itoa(n), m.Snapshot().Lines[0])
}
