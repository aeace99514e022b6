package panel

import "context"

// Port is the device-facing side of the bridge. Implementations decode the
// controller protocol and deliver updates to a single registered Listener.
type Port interface {
	// Connect opens the underlying connection and starts decoding.
	Connect(ctx context.Context) error

	// SendKey writes a key event frame. Callers are expected to invoke it
	// from within Listener.WriteWindow.
	SendKey(ctx context.Context, key Key) error

	// SetState requests that a toggleable state be switched on or off.
	SetState(ctx context.Context, st State, enabled bool) error

	// Snapshot returns a copy of the latest decoded state.
	Snapshot() Snapshot

	// SetListener installs the receiver of decoded updates.
	SetListener(l Listener)

	// IsConnected returns true while the connection is open
	IsConnected() bool

	// Close stops decoding and closes the connection
	Close() error
}

// Listener receives decoded panel events on the device I/O goroutine.
type Listener interface {
	// PanelChanged is called when any decoded value changed.
	PanelChanged(snap Snapshot)

	// TextUpdated is called with the raw text of every display frame.
	TextUpdated(raw string)

	// WriteWindow is called right after a keepalive, the only time the
	// controller reliably accepts key frames.
	WriteWindow()
}
