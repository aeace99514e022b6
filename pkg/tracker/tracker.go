// Package tracker keeps track of controller liveness and the transient
// "Check System" messages the panel displays.
package tracker

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/aquabridge/pkg/display"
	"github.com/urmzd/aquabridge/pkg/entity"
)

// Clock returns the current time.
type Clock func() time.Time

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.now = c }
}

// WithDisplay forwards display text to d.
func WithDisplay(d display.Updater) Option {
	return func(t *Tracker) { t.display = d }
}

// Tracker records device activity and a self-expiring set of system
// messages.
type Tracker struct {
	now     Clock
	display display.Updater

	connectTimeout time.Duration
	lastUpdate     time.Time
	liveMu         sync.RWMutex

	expiry     time.Duration
	registry   map[string]time.Time
	registryMu sync.Mutex
}

// New creates a Tracker. The panel is considered updating as long as some
// activity was seen within connectTimeout; system messages are forgotten
// expiry after they were last seen.
func New(connectTimeout, expiry time.Duration, opts ...Option) *Tracker {
	t := &Tracker{
		now:            time.Now,
		connectTimeout: connectTimeout,
		expiry:         expiry,
		registry:       make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.lastUpdate = t.now()
	return t
}

// NormalizeMessage trims spaces and NULs from display text.
func NormalizeMessage(text string) string {
	return entity.NormalizeMessage(text)
}

// ObserveSystemMessage records text as seen now and evicts every message
// not seen within the expiry window.
func (t *Tracker) ObserveSystemMessage(text string) {
	msg := NormalizeMessage(text)
	if msg == "" {
		return
	}

	now := t.now()
	cutoff := now.Add(-t.expiry)

	t.registryMu.Lock()
	defer t.registryMu.Unlock()

	if _, ok := t.registry[msg]; !ok {
		log.Info().Str("message", msg).Msg("New system message")
	}
	t.registry[msg] = now
	for k, seen := range t.registry {
		if !seen.After(cutoff) {
			log.Debug().Str("message", k).Msg("System message expired")
			delete(t.registry, k)
		}
	}
}

// ActiveMessages returns the unexpired messages in lexicographic order.
func (t *Tracker) ActiveMessages() []string {
	cutoff := t.now().Add(-t.expiry)

	t.registryMu.Lock()
	out := make([]string, 0, len(t.registry))
	for k, seen := range t.registry {
		if seen.After(cutoff) {
			out = append(out, k)
		}
	}
	t.registryMu.Unlock()

	sort.Strings(out)
	return out
}

// ObserveActivity marks the panel as alive now. The timestamp never moves
// backwards.
func (t *Tracker) ObserveActivity() {
	now := t.now()
	t.liveMu.Lock()
	if now.After(t.lastUpdate) {
		t.lastUpdate = now
	}
	t.liveMu.Unlock()
}

// LastUpdateAge returns the time since the last observed activity.
func (t *Tracker) LastUpdateAge() time.Duration {
	t.liveMu.RLock()
	last := t.lastUpdate
	t.liveMu.RUnlock()
	return t.now().Sub(last)
}

// IsUpdating reports whether activity was seen within the connect timeout.
func (t *Tracker) IsUpdating() bool {
	return t.LastUpdateAge() < t.connectTimeout
}

// ConnectTimeout returns the configured liveness window.
func (t *Tracker) ConnectTimeout() time.Duration {
	return t.connectTimeout
}

// RecordDisplayText counts as activity and mirrors the text as the first
// display line. Forwarding problems are logged and swallowed.
func (t *Tracker) RecordDisplayText(raw string) {
	t.ObserveActivity()
	log.Debug().Str("text", raw).Msg("Display text updated")

	if t.display == nil {
		return
	}

	text := strings.TrimSpace(strings.ReplaceAll(raw, "\x00", ""))
	defer func() {
		if r := recover(); r != nil {
			log.Debug().Err(fmt.Errorf("%v", r)).Msg("Display forward failed")
		}
	}()
	t.display.Update([]string{text, "", "", ""}, nil, nil)
}
