package display

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
)

// xrandrProvider covers XWayland sessions where only xrandr answers
type xrandrProvider struct {
	run Runner
}

func newXrandrProvider(run Runner) Provider {
	return &xrandrProvider{run: run}
}

func (x *xrandrProvider) Name() string { return "xrandr" }

func (x *xrandrProvider) Monitors(ctx context.Context) ([]*Monitor, error) {
	output, err := x.run(ctx, "xrandr", "--current")
	if err != nil {
		return nil, fmt.Errorf("failed to run xrandr: %w", err)
	}
	return parseXrandr(output)
}

func (x *xrandrProvider) CursorPosition(ctx context.Context) (int, int, error) {
	return 0, 0, fmt.Errorf("xrandr: %w", ErrUnsupported)
}

// parseXrandr reads "NAME connected [primary] WxH+X+Y ..." lines. When no
// output line carries geometry, the "Screen 0: ... current W x H" header
// is used instead.
func parseXrandr(output []byte) ([]*Monitor, error) {
	var monitors []*Monitor
	var screen Size

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "Screen ") {
			if i := strings.Index(line, "current "); i >= 0 {
				fmt.Sscanf(line[i:], "current %d x %d", &screen.Width, &screen.Height)
			}
			continue
		}

		if !strings.Contains(line, " connected") {
			continue
		}

		parts := strings.Fields(line)
		m := &Monitor{Name: parts[0], Scale: 1.0, Primary: strings.Contains(line, " primary ")}
		for _, part := range parts[2:] {
			var w, h, px, py int32
			if n, _ := fmt.Sscanf(part, "%dx%d+%d+%d", &w, &h, &px, &py); n == 4 {
				m.Width, m.Height, m.X, m.Y = w, h, px, py
				break
			}
		}
		if m.Width > 0 && m.Height > 0 {
			monitors = append(monitors, m)
		}
	}

	if len(monitors) == 0 && screen.Valid() {
		monitors = append(monitors, &Monitor{Name: "screen", Width: int32(screen.Width), Height: int32(screen.Height), Scale: 1.0})
	}
	if len(monitors) == 0 {
		return nil, ErrNoMonitors
	}

	determinePrimaryMonitor(monitors)
	return monitors, nil
}
