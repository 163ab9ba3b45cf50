// Package transport connects to whatever can emulate input on this
// machine (an EIS server over a socket or through the RemoteDesktop
// portal, or the kernel uinput device) and exposes pointer and keyboard
// capability handles bound to that connection.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable is returned when a transport cannot be established
	ErrUnavailable = errors.New("input emulation transport unavailable")
	// ErrUnsupported is returned for events a transport cannot express
	ErrUnsupported = errors.New("not supported by transport")
	// ErrClosed is returned when using a session after Close
	ErrClosed = errors.New("session is closed")
	// ErrNotEmulating is returned while the server has paused a device
	ErrNotEmulating = errors.New("device is not emulating")
)

// Convention is the coordinate space expected by absolute motion
type Convention int

const (
	// Pixels means absolute motion takes logical screen pixels
	Pixels Convention = iota
	// Normalized means absolute motion takes fractions in [0,1)
	Normalized
)

func (c Convention) String() string {
	if c == Normalized {
		return "normalized"
	}
	return "pixels"
}

// Discrete scroll values are expressed in wheel-detent fractions of 120,
// positive meaning down/right, matching libei.
const ScrollDetent = 120

// Transport opens sessions with one input-emulation backend
type Transport interface {
	Name() string
	Open(ctx context.Context) (Session, error)
}

// Session is one live connection and its capability handles. Pointer
// and Keyboard return nil when the server did not grant the capability.
type Session interface {
	Convention() Convention
	Pointer() Pointer
	Keyboard() Keyboard
	Close() error
}

// Pointer emits absolute motion, button and scroll events
type Pointer interface {
	MotionAbsolute(x, y float64) error
	Button(code uint32, pressed bool) error
	ScrollDiscrete(dx, dy int32) error
	ScrollStop(x, y bool) error
	// Frame commits the events queued since the previous frame
	Frame() error
}

// Keyboard emits key events using evdev key codes
type Keyboard interface {
	Key(code uint32, pressed bool) error
	Frame() error
}
