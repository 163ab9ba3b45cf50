package display

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// xdotoolProvider only answers pointer location (XWayland)
type xdotoolProvider struct {
	run Runner
}

func newXdotoolProvider(run Runner) Provider {
	return &xdotoolProvider{run: run}
}

func (x *xdotoolProvider) Name() string { return "xdotool" }

func (x *xdotoolProvider) Monitors(ctx context.Context) ([]*Monitor, error) {
	return nil, fmt.Errorf("xdotool: %w", ErrUnsupported)
}

func (x *xdotoolProvider) CursorPosition(ctx context.Context) (int, int, error) {
	output, err := x.run(ctx, "xdotool", "getmouselocation", "--shell")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to run xdotool: %w", err)
	}
	return parseXdotoolLocation(output)
}

// parseXdotoolLocation reads the --shell form: X=..\nY=..\nSCREEN=..
func parseXdotoolLocation(output []byte) (int, int, error) {
	var x, y int
	var haveX, haveY bool

	for _, line := range strings.Split(string(output), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		switch key {
		case "X":
			x, haveX = n, true
		case "Y":
			y, haveY = n, true
		}
	}

	if !haveX || !haveY {
		return 0, 0, fmt.Errorf("unexpected xdotool output: %q", strings.TrimSpace(string(output)))
	}
	return x, y, nil
}
