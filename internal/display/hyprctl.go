package display

import (
	"context"
	"encoding/json"
	"fmt"
)

// hyprctlProvider queries Hyprland, which also exposes the cursor position
type hyprctlProvider struct {
	run Runner
}

func newHyprctlProvider(run Runner) Provider {
	return &hyprctlProvider{run: run}
}

func (h *hyprctlProvider) Name() string { return "hyprctl" }

func (h *hyprctlProvider) Monitors(ctx context.Context) ([]*Monitor, error) {
	output, err := h.run(ctx, "hyprctl", "monitors", "-j")
	if err != nil {
		return nil, fmt.Errorf("failed to run hyprctl: %w", err)
	}
	return parseHyprctlMonitors(output)
}

func (h *hyprctlProvider) CursorPosition(ctx context.Context) (int, int, error) {
	output, err := h.run(ctx, "hyprctl", "cursorpos", "-j")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to run hyprctl: %w", err)
	}

	var pos struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	if err := json.Unmarshal(output, &pos); err != nil {
		return 0, 0, fmt.Errorf("failed to parse hyprctl cursorpos: %w", err)
	}
	return pos.X, pos.Y, nil
}

func parseHyprctlMonitors(output []byte) ([]*Monitor, error) {
	var hyprMonitors []struct {
		ID       int     `json:"id"`
		Name     string  `json:"name"`
		Width    int     `json:"width"`
		Height   int     `json:"height"`
		X        int     `json:"x"`
		Y        int     `json:"y"`
		Scale    float64 `json:"scale"`
		Focused  bool    `json:"focused"`
		Disabled bool    `json:"disabled"`
	}

	if err := json.Unmarshal(output, &hyprMonitors); err != nil {
		return nil, fmt.Errorf("failed to parse hyprctl output: %w", err)
	}

	var monitors []*Monitor
	for _, hm := range hyprMonitors {
		if hm.Disabled || hm.Width == 0 || hm.Height == 0 {
			continue
		}
		monitors = append(monitors, &Monitor{
			Name:   hm.Name,
			X:      int32(hm.X),
			Y:      int32(hm.Y),
			Width:  int32(hm.Width),
			Height: int32(hm.Height),
			Scale:  hm.Scale,
		})
	}

	if len(monitors) == 0 {
		return nil, ErrNoMonitors
	}

	determinePrimaryMonitor(monitors)
	return monitors, nil
}
