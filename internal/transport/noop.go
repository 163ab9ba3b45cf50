package transport

import "context"

// Noop accepts every event and does nothing. It stands in when no real
// transport could be established and fallback is enabled.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Open(ctx context.Context) (Session, error) {
	return noopSession{}, nil
}

type noopSession struct{}

func (noopSession) Convention() Convention { return Pixels }
func (noopSession) Pointer() Pointer       { return noopDevice{} }
func (noopSession) Keyboard() Keyboard     { return noopDevice{} }
func (noopSession) Close() error           { return nil }

type noopDevice struct{}

func (noopDevice) MotionAbsolute(x, y float64) error      { return nil }
func (noopDevice) Button(code uint32, pressed bool) error { return nil }
func (noopDevice) ScrollDiscrete(dx, dy int32) error      { return nil }
func (noopDevice) ScrollStop(x, y bool) error             { return nil }
func (noopDevice) Key(code uint32, pressed bool) error    { return nil }
func (noopDevice) Frame() error                           { return nil }
