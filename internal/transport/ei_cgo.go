//go:build linux && cgo && !nolibei

package transport

/*
#cgo pkg-config: libei-1.0 liboeffis-1.0
#include <stdlib.h>
#include <stdbool.h>
#include <libei.h>
#include <liboeffis.h>

// ei_seat_bind_capabilities is variadic and cannot be called from Go
static void waygui_bind_capabilities(struct ei_seat *seat) {
    ei_seat_bind_capabilities(seat,
        EI_DEVICE_CAP_POINTER_ABSOLUTE,
        EI_DEVICE_CAP_BUTTON,
        EI_DEVICE_CAP_SCROLL,
        EI_DEVICE_CAP_KEYBOARD,
        NULL);
}
*/
import "C"

import (
	"context"
	"fmt"
	"syscall"
	"time"
	"unsafe"

	"github.com/bnema/waygui/internal/logger"
)

// extraDeviceWait is how long the handshake keeps waiting for the other
// capability once one device is emulating
const extraDeviceWait = 500 * time.Millisecond

type eiSession struct {
	ei     *C.struct_ei
	oeffis *C.struct_oeffis

	seat     *C.struct_ei_seat
	devices  []*eiDevice
	pointer  *eiDevice
	keyboard *eiDevice

	sequence     uint32
	connected    bool
	disconnected bool
	closed       bool
}

type eiDevice struct {
	s         *eiSession
	dev       *C.struct_ei_device
	emulating bool
}

func newSender(name string) (*eiSession, error) {
	ei := C.ei_new_sender(nil)
	if ei == nil {
		return nil, fmt.Errorf("%w: ei_new_sender failed", ErrUnavailable)
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	C.ei_configure_name(ei, cname)
	return &eiSession{ei: ei}, nil
}

func openSocket(ctx context.Context, name, path string) (Session, error) {
	s, err := newSender(name)
	if err != nil {
		return nil, err
	}

	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	if rc := C.ei_setup_backend_socket(s.ei, cpath); rc < 0 {
		s.release()
		return nil, fmt.Errorf("%w: connect %s: %v", ErrUnavailable, path, syscall.Errno(-rc))
	}
	logger.Debugf("EI: connected to socket %s", path)

	if err := s.handshake(ctx); err != nil {
		s.release()
		return nil, err
	}
	return s, nil
}

func openPortal(ctx context.Context, name string) (Session, error) {
	o := C.oeffis_new(nil)
	if o == nil {
		return nil, fmt.Errorf("%w: oeffis_new failed", ErrUnavailable)
	}

	C.oeffis_create_session(o, C.uint32_t(C.OEFFIS_DEVICE_KEYBOARD|C.OEFFIS_DEVICE_POINTER))
	logger.Debug("EI: requested RemoteDesktop session from the portal")

	eisFd, err := waitForPortal(ctx, o)
	if err != nil {
		C.oeffis_unref(o)
		return nil, err
	}

	s, err := newSender(name)
	if err != nil {
		C.oeffis_unref(o)
		return nil, err
	}
	s.oeffis = o

	if rc := C.ei_setup_backend_fd(s.ei, C.int(eisFd)); rc < 0 {
		s.release()
		return nil, fmt.Errorf("%w: portal fd: %v", ErrUnavailable, syscall.Errno(-rc))
	}

	if err := s.handshake(ctx); err != nil {
		s.release()
		return nil, err
	}
	return s, nil
}

func waitForPortal(ctx context.Context, o *C.struct_oeffis) (int, error) {
	fd := int(C.oeffis_get_fd(o))
	for {
		if _, err := waitReadable(ctx, fd); err != nil {
			return -1, fmt.Errorf("%w: waiting for portal: %v", ErrUnavailable, err)
		}
		C.oeffis_dispatch(o)

		switch C.oeffis_get_event(o) {
		case C.OEFFIS_EVENT_CONNECTED_TO_EIS:
			eisFd := int(C.oeffis_get_eis_fd(o))
			if eisFd < 0 {
				return -1, fmt.Errorf("%w: portal returned no EIS fd", ErrUnavailable)
			}
			logger.Debug("EI: portal granted an EIS connection")
			return eisFd, nil
		case C.OEFFIS_EVENT_CLOSED, C.OEFFIS_EVENT_DISCONNECTED:
			msg := "session closed"
			if cmsg := C.oeffis_get_error_message(o); cmsg != nil {
				msg = C.GoString(cmsg)
			}
			return -1, fmt.Errorf("%w: portal: %s", ErrUnavailable, msg)
		}
	}
}

// handshake dispatches until the server has resumed the devices we need
func (s *eiSession) handshake(ctx context.Context) error {
	fd := int(C.ei_get_fd(s.ei))
	var firstReady time.Time

	for {
		if s.disconnected {
			return fmt.Errorf("%w: server disconnected during handshake", ErrUnavailable)
		}
		if s.ready() {
			return nil
		}
		if s.partiallyReady() {
			if firstReady.IsZero() {
				firstReady = time.Now()
			} else if time.Since(firstReady) > extraDeviceWait {
				logger.Warn("EI: server offered only part of the requested capabilities")
				return nil
			}
		}

		if _, err := waitReadable(ctx, fd); err != nil {
			if s.partiallyReady() {
				return nil
			}
			return fmt.Errorf("%w: handshake: %v", ErrUnavailable, err)
		}
		s.dispatch()
	}
}

func (s *eiSession) ready() bool {
	return s.pointer != nil && s.pointer.emulating &&
		s.keyboard != nil && s.keyboard.emulating
}

func (s *eiSession) partiallyReady() bool {
	return (s.pointer != nil && s.pointer.emulating) ||
		(s.keyboard != nil && s.keyboard.emulating)
}

// dispatch reads pending protocol data and applies every queued event
func (s *eiSession) dispatch() {
	C.ei_dispatch(s.ei)

	for ev := C.ei_get_event(s.ei); ev != nil; ev = C.ei_get_event(s.ei) {
		s.handleEvent(ev)
		C.ei_event_unref(ev)
	}
}

func (s *eiSession) handleEvent(ev *C.struct_ei_event) {
	switch C.ei_event_get_type(ev) {
	case C.EI_EVENT_CONNECT:
		s.connected = true
		logger.Debug("EI: handshake accepted")
	case C.EI_EVENT_DISCONNECT:
		s.disconnected = true
		for _, d := range s.devices {
			d.emulating = false
		}
		logger.Warn("EI: server disconnected")
	case C.EI_EVENT_SEAT_ADDED:
		if s.seat != nil {
			return
		}
		s.seat = C.ei_seat_ref(C.ei_event_get_seat(ev))
		C.waygui_bind_capabilities(s.seat)
	case C.EI_EVENT_SEAT_REMOVED:
		if C.ei_event_get_seat(ev) == s.seat {
			C.ei_seat_unref(s.seat)
			s.seat = nil
		}
	case C.EI_EVENT_DEVICE_ADDED:
		s.addDevice(C.ei_event_get_device(ev))
	case C.EI_EVENT_DEVICE_REMOVED:
		s.removeDevice(C.ei_event_get_device(ev))
	case C.EI_EVENT_DEVICE_RESUMED:
		if d := s.lookup(C.ei_event_get_device(ev)); d != nil {
			s.sequence++
			C.ei_device_start_emulating(d.dev, C.uint32_t(s.sequence))
			d.emulating = true
		}
	case C.EI_EVENT_DEVICE_PAUSED:
		if d := s.lookup(C.ei_event_get_device(ev)); d != nil {
			d.emulating = false
		}
	}
}

func (s *eiSession) addDevice(dev *C.struct_ei_device) {
	d := &eiDevice{s: s, dev: C.ei_device_ref(dev)}
	s.devices = append(s.devices, d)

	if s.pointer == nil && bool(C.ei_device_has_capability(dev, C.EI_DEVICE_CAP_POINTER_ABSOLUTE)) {
		s.pointer = d
	}
	if s.keyboard == nil && bool(C.ei_device_has_capability(dev, C.EI_DEVICE_CAP_KEYBOARD)) {
		s.keyboard = d
	}
}

func (s *eiSession) removeDevice(dev *C.struct_ei_device) {
	for i, d := range s.devices {
		if d.dev != dev {
			continue
		}
		if s.pointer == d {
			s.pointer = nil
		}
		if s.keyboard == d {
			s.keyboard = nil
		}
		d.emulating = false
		C.ei_device_unref(d.dev)
		s.devices = append(s.devices[:i], s.devices[i+1:]...)
		return
	}
}

func (s *eiSession) lookup(dev *C.struct_ei_device) *eiDevice {
	for _, d := range s.devices {
		if d.dev == dev {
			return d
		}
	}
	return nil
}

func (s *eiSession) Convention() Convention { return Pixels }

func (s *eiSession) Pointer() Pointer {
	if s.pointer == nil {
		return nil
	}
	return s.pointer
}

func (s *eiSession) Keyboard() Keyboard {
	if s.keyboard == nil {
		return nil
	}
	return s.keyboard
}

func (s *eiSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.release()
	return nil
}

func (s *eiSession) release() {
	for _, d := range s.devices {
		if d.emulating {
			C.ei_device_stop_emulating(d.dev)
		}
		C.ei_device_unref(d.dev)
	}
	s.devices = nil
	s.pointer = nil
	s.keyboard = nil

	if s.seat != nil {
		C.ei_seat_unref(s.seat)
		s.seat = nil
	}
	if s.ei != nil {
		C.ei_unref(s.ei)
		s.ei = nil
	}
	if s.oeffis != nil {
		C.oeffis_unref(s.oeffis)
		s.oeffis = nil
	}
}

// ready picks up pause, resume and disconnect before emitting
func (d *eiDevice) ready() error {
	if d.s.closed {
		return ErrClosed
	}
	d.s.dispatch()
	if d.s.disconnected {
		return fmt.Errorf("%w: server disconnected", ErrUnavailable)
	}
	if !d.emulating {
		return ErrNotEmulating
	}
	return nil
}

func (d *eiDevice) require(cap C.enum_ei_device_capability, what string) error {
	if err := d.ready(); err != nil {
		return err
	}
	if !bool(C.ei_device_has_capability(d.dev, cap)) {
		return fmt.Errorf("%w: device has no %s capability", ErrUnsupported, what)
	}
	return nil
}

func (d *eiDevice) MotionAbsolute(x, y float64) error {
	if err := d.require(C.EI_DEVICE_CAP_POINTER_ABSOLUTE, "absolute pointer"); err != nil {
		return err
	}
	C.ei_device_pointer_motion_absolute(d.dev, C.double(x), C.double(y))
	return nil
}

func (d *eiDevice) Button(code uint32, pressed bool) error {
	if err := d.require(C.EI_DEVICE_CAP_BUTTON, "button"); err != nil {
		return err
	}
	C.ei_device_button_button(d.dev, C.uint32_t(code), C.bool(pressed))
	return nil
}

func (d *eiDevice) ScrollDiscrete(dx, dy int32) error {
	if err := d.require(C.EI_DEVICE_CAP_SCROLL, "scroll"); err != nil {
		return err
	}
	C.ei_device_scroll_discrete(d.dev, C.int32_t(dx), C.int32_t(dy))
	return nil
}

func (d *eiDevice) ScrollStop(x, y bool) error {
	if err := d.require(C.EI_DEVICE_CAP_SCROLL, "scroll"); err != nil {
		return err
	}
	C.ei_device_scroll_stop(d.dev, C.bool(x), C.bool(y))
	return nil
}

func (d *eiDevice) Key(code uint32, pressed bool) error {
	if err := d.require(C.EI_DEVICE_CAP_KEYBOARD, "keyboard"); err != nil {
		return err
	}
	C.ei_device_keyboard_key(d.dev, C.uint32_t(code), C.bool(pressed))
	return nil
}

func (d *eiDevice) Frame() error {
	if d.s.closed {
		return ErrClosed
	}
	if !d.emulating {
		return ErrNotEmulating
	}
	C.ei_device_frame(d.dev, C.ei_now(d.s.ei))
	return nil
}
