// Package router turns inbound MQTT messages into panel actions.
package router

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/aquabridge/pkg/entity"
	"github.com/urmzd/aquabridge/pkg/messages"
	"github.com/urmzd/aquabridge/pkg/panel"
)

// StateSetter switches a panel state on or off.
type StateSetter interface {
	SetState(ctx context.Context, st panel.State, enabled bool) error
}

// KeyQueue accepts keypresses for the next write window.
type KeyQueue interface {
	EnqueueKey(k panel.Key)
}

// Result classifies what Dispatch did with a message.
type Result string

const (
	ResultDiscovery Result = "discovery"
	ResultControl   Result = "control"
	ResultButton    Result = "button"
	ResultMiss      Result = "miss"
	ResultError     Result = "error"
)

// Router dispatches command topics. The topic tables are built once.
type Router struct {
	formatter *messages.Formatter
	states    StateSetter
	keys      KeyQueue

	controls map[string]entity.Descriptor
	buttons  map[string]entity.Descriptor

	observe func(Result)
}

// Option configures a Router.
type Option func(*Router)

// WithObserver calls fn with the outcome of every dispatch.
func WithObserver(fn func(Result)) Option {
	return func(r *Router) { r.observe = fn }
}

// New creates a router for the entities enabled in f.
func New(f *messages.Formatter, states StateSetter, keys KeyQueue, opts ...Option) *Router {
	r := &Router{
		formatter: f,
		states:    states,
		keys:      keys,
		controls:  make(map[string]entity.Descriptor),
		buttons:   make(map[string]entity.Descriptor),
		observe:   func(Result) {},
	}
	for _, d := range f.Controls() {
		r.controls[f.CommandTopic(d)] = d
	}
	for _, d := range f.Buttons() {
		r.buttons[f.CommandTopic(d)] = d
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dispatch handles one inbound message and returns the messages to publish
// in response.
func (r *Router) Dispatch(ctx context.Context, topic, payload string) []messages.Outbound {
	if r.formatter.IsOnlineAnnouncement(topic, payload) {
		out, err := r.formatter.Discovery()
		if err != nil {
			log.Error().Err(err).Msg("Failed to build discovery payload")
			r.observe(ResultError)
			return nil
		}
		log.Info().Msg("Home Assistant online, republishing discovery")
		r.observe(ResultDiscovery)
		return []messages.Outbound{out}
	}

	if d, ok := r.controls[topic]; ok {
		enabled := payload == "ON"
		log.Info().Str("entity", d.Key).Bool("enabled", enabled).Msg("Control command")
		if err := r.states.SetState(ctx, d.State, enabled); err != nil {
			log.Warn().Err(err).Str("entity", d.Key).Msg("Failed to set state")
			r.observe(ResultError)
			return nil
		}
		r.observe(ResultControl)
		return nil
	}

	if d, ok := r.buttons[topic]; ok {
		log.Info().Str("button", d.Key).Msg("Button command")
		r.keys.EnqueueKey(d.KeyCode)
		r.observe(ResultButton)
		return nil
	}

	log.Debug().Str("topic", topic).Str("payload", payload).Msg("No route for topic")
	r.observe(ResultMiss)
	return nil
}
