package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ThomasT75/uinput"
)

// uinputAbsMax is the resolution of the virtual absolute pointer
const uinputAbsMax = 32767

// evdev button codes accepted by the virtual mouse
const (
	btnLeft   = 0x110
	btnRight  = 0x111
	btnMiddle = 0x112
)

// Uinput creates kernel virtual devices. It needs write access to
// /dev/uinput and works under any compositor that reads evdev devices.
type Uinput struct {
	Path       string
	DeviceName string
	// Settle is how long to wait for the compositor to pick up new devices
	Settle time.Duration
}

// NewUinput returns a uinput transport on path
func NewUinput(path, name string) *Uinput {
	if path == "" {
		path = "/dev/uinput"
	}
	return &Uinput{Path: path, DeviceName: name, Settle: 200 * time.Millisecond}
}

func (u *Uinput) Name() string { return "uinput" }

// Available reports whether the device node can be opened for writing
func (u *Uinput) Available() bool {
	f, err := os.OpenFile(u.Path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

func (u *Uinput) Open(ctx context.Context) (Session, error) {
	if !u.Available() {
		return nil, fmt.Errorf("%w: cannot write %s", ErrUnavailable, u.Path)
	}

	tablet, err := uinput.CreateTouchPad(u.Path, []byte(u.DeviceName+" pointer"), 0, uinputAbsMax, 0, uinputAbsMax)
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual pointer: %w", err)
	}
	mouse, err := uinput.CreateMouse(u.Path, []byte(u.DeviceName+" mouse"))
	if err != nil {
		_ = tablet.Close()
		return nil, fmt.Errorf("failed to create virtual mouse: %w", err)
	}
	keyboard, err := uinput.CreateKeyboard(u.Path, []byte(u.DeviceName+" keyboard"))
	if err != nil {
		_ = tablet.Close()
		_ = mouse.Close()
		return nil, fmt.Errorf("failed to create virtual keyboard: %w", err)
	}

	if u.Settle > 0 {
		select {
		case <-time.After(u.Settle):
		case <-ctx.Done():
			s := &uinputSession{tablet: tablet, mouse: mouse, keyboard: keyboard}
			_ = s.Close()
			return nil, ctx.Err()
		}
	}

	return &uinputSession{tablet: tablet, mouse: mouse, keyboard: keyboard}, nil
}

type uinputSession struct {
	tablet   uinput.TouchPad
	mouse    uinput.Mouse
	keyboard uinput.Keyboard

	mu     sync.Mutex
	closed bool
}

func (s *uinputSession) Convention() Convention { return Normalized }
func (s *uinputSession) Pointer() Pointer       { return s }
func (s *uinputSession) Keyboard() Keyboard     { return s }

func (s *uinputSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Join(s.tablet.Close(), s.mouse.Close(), s.keyboard.Close())
}

func (s *uinputSession) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *uinputSession) MotionAbsolute(x, y float64) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.tablet.MoveTo(int32(x*uinputAbsMax), int32(y*uinputAbsMax))
}

// Button only knows left, right and middle: the virtual mouse does not
// declare the side buttons, so 4-7 report ErrUnsupported.
func (s *uinputSession) Button(code uint32, pressed bool) error {
	if err := s.check(); err != nil {
		return err
	}
	switch code {
	case btnLeft:
		if pressed {
			return s.mouse.LeftPress()
		}
		return s.mouse.LeftRelease()
	case btnRight:
		if pressed {
			return s.mouse.RightPress()
		}
		return s.mouse.RightRelease()
	case btnMiddle:
		if pressed {
			return s.mouse.MiddlePress()
		}
		return s.mouse.MiddleRelease()
	}
	return fmt.Errorf("%w: button 0x%x", ErrUnsupported, code)
}

// ScrollDiscrete takes libei-style values; the kernel wheel axis counts
// whole detents with positive meaning up.
func (s *uinputSession) ScrollDiscrete(dx, dy int32) error {
	if err := s.check(); err != nil {
		return err
	}
	if dy != 0 {
		if err := s.mouse.Wheel(false, -detents(dy)); err != nil {
			return err
		}
	}
	if dx != 0 {
		if err := s.mouse.Wheel(true, detents(dx)); err != nil {
			return err
		}
	}
	return nil
}

func detents(v int32) int32 {
	d := v / ScrollDetent
	if d == 0 {
		if v < 0 {
			return -1
		}
		return 1
	}
	return d
}

func (s *uinputSession) ScrollStop(x, y bool) error { return s.check() }

func (s *uinputSession) Key(code uint32, pressed bool) error {
	if err := s.check(); err != nil {
		return err
	}
	if pressed {
		return s.keyboard.KeyDown(int(code))
	}
	return s.keyboard.KeyUp(int(code))
}

// Frame is implicit: every uinput call ends with a SYN_REPORT
func (s *uinputSession) Frame() error { return s.check() }
