package panel

import "errors"

var (
	// ErrNotConnected indicates the panel connection is not open
	ErrNotConnected = errors.New("panel not connected")

	// ErrUnknownKey indicates a symbolic key name has no key code
	ErrUnknownKey = errors.New("unknown key")

	// ErrUnsupported indicates a state cannot be changed from the keypad
	ErrUnsupported = errors.New("operation not supported")
)
