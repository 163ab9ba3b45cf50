package display

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bnema/waygui/internal/logger"
)

// wlrRandrProvider uses wlr-randr (wlroots compositors)
type wlrRandrProvider struct {
	run Runner
}

func newWlrRandrProvider(run Runner) Provider {
	return &wlrRandrProvider{run: run}
}

func (w *wlrRandrProvider) Name() string { return "wlr-randr" }

func (w *wlrRandrProvider) Monitors(ctx context.Context) ([]*Monitor, error) {
	output, err := w.run(ctx, "wlr-randr", "--json")
	if err == nil {
		monitors, jsonErr := parseWlrRandrJSON(output)
		if jsonErr == nil {
			return monitors, nil
		}
		logger.Debugf("wlr-randr --json output not usable: %v", jsonErr)
	} else {
		logger.Debug("JSON mode failed, falling back to text parsing")
	}

	output, err = w.run(ctx, "wlr-randr")
	if err != nil {
		return nil, fmt.Errorf("failed to run wlr-randr: %w", err)
	}
	return parseWlrRandrText(output)
}

func (w *wlrRandrProvider) CursorPosition(ctx context.Context) (int, int, error) {
	return 0, 0, fmt.Errorf("wlr-randr: %w", ErrUnsupported)
}

func parseWlrRandrJSON(output []byte) ([]*Monitor, error) {
	var outputs []struct {
		Name    string  `json:"name"`
		Enabled bool    `json:"enabled"`
		Scale   float64 `json:"scale"`
		Modes   []struct {
			Width   int  `json:"width"`
			Height  int  `json:"height"`
			Current bool `json:"current"`
		} `json:"modes"`
		Position struct {
			X int `json:"x"`
			Y int `json:"y"`
		} `json:"position"`
	}

	if err := json.Unmarshal(output, &outputs); err != nil {
		return nil, fmt.Errorf("failed to parse wlr-randr JSON: %w", err)
	}

	var monitors []*Monitor
	for _, out := range outputs {
		if !out.Enabled {
			continue
		}

		var width, height int
		for _, mode := range out.Modes {
			if mode.Current {
				width, height = mode.Width, mode.Height
				break
			}
		}
		if width == 0 || height == 0 {
			logger.Warnf("Skipping monitor %s with invalid dimensions: %dx%d", out.Name, width, height)
			continue
		}

		scale := out.Scale
		if scale == 0 {
			scale = 1.0
		}

		monitors = append(monitors, &Monitor{
			Name:   out.Name,
			X:      int32(out.Position.X),
			Y:      int32(out.Position.Y),
			Width:  int32(width),
			Height: int32(height),
			Scale:  scale,
		})
	}

	if len(monitors) == 0 {
		return nil, ErrNoMonitors
	}

	determinePrimaryMonitor(monitors)
	return monitors, nil
}

// parseWlrRandrText parses the human-readable output, e.g.
//
//	DP-1 "Dell Inc. DELL U2720Q (DP-1)"
//	  Enabled: yes
//	  Modes:
//	    3840x2160 px, 59.997002 Hz (preferred, current)
//	  Position: 0,0
//	  Scale: 1.500000
func parseWlrRandrText(output []byte) ([]*Monitor, error) {
	var monitors []*Monitor
	var current *Monitor
	disabled := false

	flush := func() {
		if current != nil && !disabled && current.Width > 0 && current.Height > 0 {
			monitors = append(monitors, current)
		}
	}

	for _, raw := range strings.Split(string(output), "\n") {
		if raw == "" {
			continue
		}

		// Output header lines are not indented
		if raw[0] != ' ' && raw[0] != '\t' {
			flush()
			current = &Monitor{Name: strings.Fields(raw)[0], Scale: 1.0}
			disabled = false
			continue
		}
		if current == nil {
			continue
		}

		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "Enabled:"):
			disabled = !strings.Contains(line, "yes")
		case strings.HasPrefix(line, "Position:"):
			var x, y int32
			if _, err := fmt.Sscanf(strings.TrimSpace(strings.TrimPrefix(line, "Position:")), "%d,%d", &x, &y); err == nil {
				current.X, current.Y = x, y
			}
		case strings.HasPrefix(line, "Scale:"):
			var scale float64
			if _, err := fmt.Sscanf(strings.TrimSpace(strings.TrimPrefix(line, "Scale:")), "%f", &scale); err == nil && scale > 0 {
				current.Scale = scale
			}
		case strings.Contains(line, "current"):
			var w, h int32
			if _, err := fmt.Sscanf(strings.Fields(line)[0], "%dx%d", &w, &h); err == nil {
				current.Width, current.Height = w, h
			}
		}
	}
	flush()

	if len(monitors) == 0 {
		return nil, ErrNoMonitors
	}

	determinePrimaryMonitor(monitors)
	return monitors, nil
}
