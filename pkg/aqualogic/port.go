package aqualogic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/aquabridge/pkg/panel"
)

// Opener opens the byte stream for a source string.
type Opener func(source string) (io.ReadWriteCloser, error)

// Port implements panel.Port over the AquaLogic RS-485 protocol.
type Port struct {
	source string
	open   Opener

	conn    io.ReadWriteCloser
	connMu  sync.Mutex
	writeMu sync.Mutex

	snap       panel.Snapshot
	heaterAuto bool
	snapMu     sync.RWMutex

	listener   panel.Listener
	listenerMu sync.RWMutex

	// Key frames queued by SetState, written one per keepalive.
	deferred   [][]byte
	deferredMu sync.Mutex

	connected bool
	done      chan struct{}
}

// NewPort creates a port for source, either a serial device path or a
// "host:port" network adapter address.
func NewPort(source string) *Port {
	return NewPortWithOpener(source, func(s string) (io.ReadWriteCloser, error) {
		return Open(s)
	})
}

// NewPortWithOpener creates a port that uses open to reach the controller.
func NewPortWithOpener(source string, open Opener) *Port {
	return &Port{
		source: source,
		open:   open,
		snap:   panel.Snapshot{Attributes: make(map[panel.Attribute]any)},
	}
}

// Connect opens the connection and starts the read loop. The loop stops
// when ctx is cancelled, Close is called or the stream fails.
func (p *Port) Connect(ctx context.Context) error {
	log.Info().Str("source", p.source).Msg("Connecting to panel")
	rw, err := p.open(p.source)
	if err != nil {
		return fmt.Errorf("connect %s: %w", p.source, err)
	}

	p.connMu.Lock()
	p.conn = rw
	p.connected = true
	p.done = make(chan struct{})
	done := p.done
	p.connMu.Unlock()

	go p.readLoop(rw, done)
	go func() {
		select {
		case <-ctx.Done():
			_ = p.Close()
		case <-done:
		}
	}()

	return nil
}

func (p *Port) readLoop(rw io.ReadWriteCloser, done chan struct{}) {
	defer close(done)
	defer func() {
		p.connMu.Lock()
		p.connected = false
		p.connMu.Unlock()
	}()

	fr := NewFrameReader(rw)
	for {
		f, err := fr.Next()
		if err != nil {
			if errors.Is(err, ErrChecksum) {
				log.Debug().Err(err).Msg("Dropping frame")
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				log.Info().Msg("Panel connection closed")
			} else {
				log.Error().Err(err).Msg("Panel read failed")
			}
			return
		}
		p.handleFrame(f)
	}
}

func (p *Port) handleFrame(f Frame) {
	switch f.Type {
	case FrameKeepAlive:
		p.writeDeferred()
		if l := p.currentListener(); l != nil {
			l.WriteWindow()
		}

	case FrameLEDs:
		states, flashing, ok := decodeLEDs(f.Data)
		if !ok {
			return
		}
		p.updateSnapshot(func(s *panel.Snapshot, heaterAuto bool) bool {
			if heaterAuto {
				states |= panel.StateHeaterAutoMode
			}
			states |= s.States & panel.StateFilterLowSpeed
			if s.States == states && s.Flashing == flashing {
				return false
			}
			s.States = states
			s.Flashing = flashing
			if states&panel.StateCheckSystem == 0 {
				s.CheckSystemMessage = ""
			}
			return true
		})

	case FrameDisplayUpdate:
		text := decodeText(f.Data)
		log.Debug().Str("text", text).Msg("Display update")
		if r, ok := parseDisplay(text); ok {
			p.applyReading(r)
		}
		if l := p.currentListener(); l != nil {
			l.TextUpdated(text)
		}

	case FramePumpStatus:
		speed, power, ok := decodePumpStatus(f.Data)
		if !ok {
			return
		}
		p.updateSnapshot(func(s *panel.Snapshot, _ bool) bool {
			changed := s.Attributes[panel.AttrPumpSpeed] != speed ||
				s.Attributes[panel.AttrPumpPower] != power
			s.Attributes[panel.AttrPumpSpeed] = speed
			s.Attributes[panel.AttrPumpPower] = power
			if speed > 0 && speed < 100 {
				s.States |= panel.StateFilterLowSpeed
			} else {
				s.States &^= panel.StateFilterLowSpeed
			}
			return changed
		})

	case FrameLongDisplayUpdate, FramePumpSpeedRequest:
		log.Debug().Stringer("type", f.Type).Msg("Ignoring frame")

	default:
		log.Debug().Stringer("type", f.Type).Int("len", len(f.Data)).Msg("Unhandled frame")
	}
}

func (p *Port) applyReading(r displayReading) {
	if r.heaterAuto != nil {
		p.snapMu.Lock()
		p.heaterAuto = *r.heaterAuto
		p.snapMu.Unlock()
	}

	p.updateSnapshot(func(s *panel.Snapshot, heaterAuto bool) bool {
		changed := false
		if r.attr != "" && s.Attributes[r.attr] != r.value {
			s.Attributes[r.attr] = r.value
			changed = true
		}
		if r.metric != nil && s.Metric != *r.metric {
			s.Metric = *r.metric
			changed = true
		}
		if r.checkSystem != nil && s.CheckSystemMessage != *r.checkSystem {
			s.CheckSystemMessage = *r.checkSystem
			changed = true
		}
		if r.heaterAuto != nil && heaterAuto != s.Get(panel.StateHeaterAutoMode) {
			if heaterAuto {
				s.States |= panel.StateHeaterAutoMode
			} else {
				s.States &^= panel.StateHeaterAutoMode
			}
			changed = true
		}
		return changed
	})
}

// updateSnapshot applies fn under the snapshot lock and notifies the
// listener outside of it when fn reports a change.
func (p *Port) updateSnapshot(fn func(s *panel.Snapshot, heaterAuto bool) bool) {
	p.snapMu.Lock()
	changed := fn(&p.snap, p.heaterAuto)
	if changed {
		p.snap.UpdatedAt = time.Now()
	}
	snap := p.snap.Clone()
	p.snapMu.Unlock()

	if !changed {
		return
	}
	if l := p.currentListener(); l != nil {
		l.PanelChanged(snap)
	}
}

func (p *Port) writeDeferred() {
	p.deferredMu.Lock()
	if len(p.deferred) == 0 {
		p.deferredMu.Unlock()
		return
	}
	frame := p.deferred[0]
	p.deferred = p.deferred[1:]
	p.deferredMu.Unlock()

	if err := p.write(frame); err != nil {
		log.Warn().Err(err).Msg("Failed to write queued state change")
	}
}

func (p *Port) write(frame []byte) error {
	p.connMu.Lock()
	conn, connected := p.conn, p.connected
	p.connMu.Unlock()
	if conn == nil || !connected {
		return panel.ErrNotConnected
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// SendKey writes the key frame immediately.
func (p *Port) SendKey(_ context.Context, key panel.Key) error {
	log.Debug().Stringer("key", key).Msg("Sending key")
	return p.write(EncodeKey(uint32(key)))
}

// SetState queues the toggle key for st if the panel is not already in the
// requested state. The key is written at the next keepalive.
func (p *Port) SetState(_ context.Context, st panel.State, enabled bool) error {
	key, ok := panel.KeyForState(st)
	if !ok {
		return fmt.Errorf("%w: %s", panel.ErrUnsupported, st)
	}
	if !p.IsConnected() {
		return panel.ErrNotConnected
	}

	p.snapMu.RLock()
	current := p.snap.Get(st)
	p.snapMu.RUnlock()
	if current == enabled {
		return nil
	}

	log.Debug().Stringer("state", st).Bool("enabled", enabled).Msg("Queueing state change")
	p.deferredMu.Lock()
	p.deferred = append(p.deferred, EncodeKey(uint32(key)))
	p.deferredMu.Unlock()
	return nil
}

// Snapshot returns a copy of the latest decoded state.
func (p *Port) Snapshot() panel.Snapshot {
	p.snapMu.RLock()
	defer p.snapMu.RUnlock()
	return p.snap.Clone()
}

func (p *Port) SetListener(l panel.Listener) {
	p.listenerMu.Lock()
	defer p.listenerMu.Unlock()
	p.listener = l
}

func (p *Port) currentListener() panel.Listener {
	p.listenerMu.RLock()
	defer p.listenerMu.RUnlock()
	return p.listener
}

func (p *Port) IsConnected() bool {
	p.connMu.Lock()
	defer p.connMu.Unlock()
	return p.connected
}

// Close closes the connection and waits for the read loop to exit.
func (p *Port) Close() error {
	p.connMu.Lock()
	conn, done := p.conn, p.done
	p.conn = nil
	p.connMu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()
	if done != nil {
		<-done
	}
	return err
}

var _ panel.Port = (*Port)(nil)
