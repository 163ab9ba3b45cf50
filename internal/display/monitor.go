// Package display answers screen-size and pointer-location questions by
// asking the compositor tools that know (wlr-randr, hyprctl, xrandr,
// xdotool). Every answer is best effort: tools may be missing and their
// text output may change.
package display

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
)

var (
	// ErrNoProvider is returned when no provider can answer a query
	ErrNoProvider = errors.New("no display provider available")
	// ErrNoMonitors is returned when a tool ran but reported no active output
	ErrNoMonitors = errors.New("no active monitors found")
	// ErrUnsupported is returned by providers that cannot answer a query
	ErrUnsupported = errors.New("query not supported by provider")
)

// Monitor represents a physical display
type Monitor struct {
	Name    string
	X       int32 // Position in global coordinate space
	Y       int32
	Width   int32
	Height  int32
	Primary bool
	Scale   float64
}

// Contains checks if a point is within this monitor
func (m *Monitor) Contains(x, y int32) bool {
	return x >= m.X && x < m.X+m.Width && y >= m.Y && y < m.Y+m.Height
}

// LogicalSize is the mode size divided by the output scale, the space
// compositors and libei regions use for absolute coordinates
func (m *Monitor) LogicalSize() Size {
	scale := m.Scale
	if scale <= 0 {
		scale = 1
	}
	return Size{
		Width:  int(math.Round(float64(m.Width) / scale)),
		Height: int(math.Round(float64(m.Height) / scale)),
	}
}

// Size is a screen resolution in pixels
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Valid reports whether both dimensions are positive
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Provider answers display questions for one platform tool
type Provider interface {
	Name() string
	Monitors(ctx context.Context) ([]*Monitor, error)
	CursorPosition(ctx context.Context) (x, y int, err error)
}

// Runner executes an external tool and returns its stdout
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs tools through os/exec
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%s not found: %w", name, err)
	}
	return exec.CommandContext(ctx, name, args...).Output()
}

// PrimaryMonitor returns the monitor flagged primary, else the first one
func PrimaryMonitor(monitors []*Monitor) *Monitor {
	for _, m := range monitors {
		if m.Primary {
			return m
		}
	}
	if len(monitors) > 0 {
		return monitors[0]
	}
	return nil
}

// determinePrimaryMonitor marks the monitor at (0,0) as primary when no
// tool flagged one, with fallback to the first monitor
func determinePrimaryMonitor(monitors []*Monitor) {
	for _, m := range monitors {
		if m.Primary {
			return
		}
	}

	for _, m := range monitors {
		if m.X == 0 && m.Y == 0 {
			m.Primary = true
			return
		}
	}

	if len(monitors) > 0 {
		monitors[0].Primary = true
	}
}
