// Package display mirrors the controller's LCD for the web UI.
package display

import (
	"sync"
	"sync/atomic"
	"time"
)

// Lines is the number of rows the mirror keeps.
const Lines = 4

// Position is a blinking character cell as [row, col].
type Position [2]int

// Snapshot is an immutable copy of the mirrored display.
type Snapshot struct {
	Lines     []string        `json:"lines"`
	Blink     []Position      `json:"blink"`
	LEDs      map[string]bool `json:"leds"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Updater accepts new display content.
type Updater interface {
	Update(lines []string, blink []Position, leds map[string]bool)
}

// Mirror holds the latest display snapshot. Writers are serialized;
// readers never block.
type Mirror struct {
	current atomic.Pointer[Snapshot]
	writeMu sync.Mutex
	now     func() time.Time

	subsMu sync.Mutex
	subs   map[chan Snapshot]struct{}
}

// NewMirror creates a mirror with four blank lines.
func NewMirror() *Mirror {
	m := &Mirror{
		now:  time.Now,
		subs: make(map[chan Snapshot]struct{}),
	}
	m.current.Store(&Snapshot{
		Lines:     make([]string, Lines),
		Blink:     []Position{},
		LEDs:      map[string]bool{},
		UpdatedAt: m.now(),
	})
	return m
}

// Update replaces the displayed lines, padded or truncated to four rows.
// A nil blink or leds keeps the previous value.
func (m *Mirror) Update(lines []string, blink []Position, leds map[string]bool) {
	m.apply(func(prev *Snapshot) []string { return lines }, blink, leds)
}

// UpdateLEDs replaces only the LED flags.
func (m *Mirror) UpdateLEDs(leds map[string]bool) {
	m.apply(func(prev *Snapshot) []string { return prev.Lines }, nil, leds)
}

// apply builds the next snapshot from the current one under writeMu.
func (m *Mirror) apply(lines func(prev *Snapshot) []string, blink []Position, leds map[string]bool) {
	m.writeMu.Lock()
	prev := m.current.Load()

	next := &Snapshot{
		Lines:     make([]string, Lines),
		Blink:     prev.Blink,
		LEDs:      prev.LEDs,
		UpdatedAt: m.now(),
	}
	copy(next.Lines, lines(prev))
	if blink != nil {
		next.Blink = append([]Position(nil), blink...)
	}
	if leds != nil {
		next.LEDs = make(map[string]bool, len(leds))
		for k, v := range leds {
			next.LEDs[k] = v
		}
	}
	m.current.Store(next)
	m.writeMu.Unlock()

	m.notify(next.copy())
}

// Snapshot returns a copy of the current display.
func (m *Mirror) Snapshot() Snapshot {
	return m.current.Load().copy()
}

// Subscribe returns a channel that receives every new snapshot. Slow
// subscribers miss updates rather than blocking writers.
func (m *Mirror) Subscribe() chan Snapshot {
	ch := make(chan Snapshot, 8)
	m.subsMu.Lock()
	m.subs[ch] = struct{}{}
	m.subsMu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch.
func (m *Mirror) Unsubscribe(ch chan Snapshot) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	if _, ok := m.subs[ch]; ok {
		delete(m.subs, ch)
		close(ch)
	}
}

func (m *Mirror) notify(s Snapshot) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for ch := range m.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

func (s *Snapshot) copy() Snapshot {
	out := Snapshot{
		Lines:     append([]string(nil), s.Lines...),
		Blink:     append([]Position{}, s.Blink...),
		LEDs:      make(map[string]bool, len(s.LEDs)),
		UpdatedAt: s.UpdatedAt,
	}
	for k, v := range s.LEDs {
		out.LEDs[k] = v
	}
	return out
}
