package transport

import (
	"context"
	"fmt"
	"sync"
)

// EventKind names one recorded emission
type EventKind string

const (
	EventMotion     EventKind = "motion"
	EventButton     EventKind = "button"
	EventScroll     EventKind = "scroll"
	EventScrollStop EventKind = "scroll-stop"
	EventKey        EventKind = "key"
	EventFrame      EventKind = "frame"
)

// Event is one emission captured by a Recorder
type Event struct {
	Kind    EventKind
	Code    uint32
	Pressed bool
	X, Y    float64
	DX, DY  int32
}

func (e Event) String() string {
	switch e.Kind {
	case EventMotion:
		return fmt.Sprintf("motion %.0f,%.0f", e.X, e.Y)
	case EventButton, EventKey:
		state := "release"
		if e.Pressed {
			state = "press"
		}
		return fmt.Sprintf("%s 0x%x %s", e.Kind, e.Code, state)
	case EventScroll:
		return fmt.Sprintf("scroll %d,%d", e.DX, e.DY)
	case EventScrollStop:
		return fmt.Sprintf("scroll-stop x=%v y=%v", e.X != 0, e.Y != 0)
	}
	return string(e.Kind)
}

// Recorder is an in-memory transport. It backs --dry-run and tests.
type Recorder struct {
	// Conv selects the coordinate convention reported by sessions
	Conv Convention
	// OpenErr makes every Open fail when set
	OpenErr error
	// FailOn makes the matching event kind fail when emitted
	FailOn map[EventKind]error
	// FailKey makes key presses of the matching code fail
	FailKey map[uint32]error
	// NoKeyboard and NoPointer withhold a capability from sessions
	NoKeyboard bool
	NoPointer  bool

	mu     sync.Mutex
	events []Event
	opens  int
	closes int
}

// NewRecorder returns a recorder reporting pixel coordinates
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Name() string { return "recorder" }

func (r *Recorder) Open(ctx context.Context) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.OpenErr != nil {
		return nil, r.OpenErr
	}
	r.opens++
	return &recorderSession{rec: r}, nil
}

// Events returns a copy of everything emitted so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset forgets recorded events
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Opens reports how many sessions were opened
func (r *Recorder) Opens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens
}

// Closes reports how many session Close calls released a connection
func (r *Recorder) Closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

func (r *Recorder) record(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.FailOn[e.Kind]; ok {
		return err
	}
	if err, ok := r.FailKey[e.Code]; ok && e.Kind == EventKey && e.Pressed {
		return err
	}
	r.events = append(r.events, e)
	return nil
}

type recorderSession struct {
	rec    *Recorder
	closed bool
}

func (s *recorderSession) Convention() Convention { return s.rec.Conv }

func (s *recorderSession) Pointer() Pointer {
	if s.rec.NoPointer {
		return nil
	}
	return s
}

func (s *recorderSession) Keyboard() Keyboard {
	if s.rec.NoKeyboard {
		return nil
	}
	return s
}

func (s *recorderSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.rec.mu.Lock()
	s.rec.closes++
	s.rec.mu.Unlock()
	return nil
}

func (s *recorderSession) emit(e Event) error {
	if s.closed {
		return ErrClosed
	}
	return s.rec.record(e)
}

func (s *recorderSession) MotionAbsolute(x, y float64) error {
	return s.emit(Event{Kind: EventMotion, X: x, Y: y})
}

func (s *recorderSession) Button(code uint32, pressed bool) error {
	return s.emit(Event{Kind: EventButton, Code: code, Pressed: pressed})
}

func (s *recorderSession) ScrollDiscrete(dx, dy int32) error {
	return s.emit(Event{Kind: EventScroll, DX: dx, DY: dy})
}

func (s *recorderSession) ScrollStop(x, y bool) error {
	e := Event{Kind: EventScrollStop}
	if x {
		e.X = 1
	}
	if y {
		e.Y = 1
	}
	return s.emit(e)
}

func (s *recorderSession) Key(code uint32, pressed bool) error {
	return s.emit(Event{Kind: EventKey, Code: code, Pressed: pressed})
}

func (s *recorderSession) Frame() error {
	return s.emit(Event{Kind: EventFrame})
}
