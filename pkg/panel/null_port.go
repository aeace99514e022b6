package panel

import (
	"context"
	"sync"
)

// NullPort is a no-op port used when no controller is attached.
// It records requested keys and states so callers can be inspected.
type NullPort struct {
	mu       sync.Mutex
	listener Listener
	snap     Snapshot
	Keys     []Key
	States   map[State]bool
}

// NewNullPort creates a new NullPort.
func NewNullPort() *NullPort {
	return &NullPort{States: make(map[State]bool)}
}

func (p *NullPort) Connect(ctx context.Context) error {
	return nil
}

func (p *NullPort) SendKey(ctx context.Context, key Key) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Keys = append(p.Keys, key)
	return nil
}

func (p *NullPort) SetState(ctx context.Context, st State, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.States[st] = enabled
	if enabled {
		p.snap.States |= st
	} else {
		p.snap.States &^= st
	}
	return nil
}

func (p *NullPort) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap.Clone()
}

// SetSnapshot replaces the snapshot returned by Snapshot.
func (p *NullPort) SetSnapshot(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = s.Clone()
}

func (p *NullPort) SetListener(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listener = l
}

// Listener returns the installed listener.
func (p *NullPort) Listener() Listener {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listener
}

func (p *NullPort) IsConnected() bool {
	return false
}

func (p *NullPort) Close() error {
	return nil
}
