package display

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/waygui/internal/config"
	"github.com/bnema/waygui/internal/logger"
)

// New returns the provider selected by name. "auto" tries every tool in
// order of preference; "static" never runs anything.
func New(name string, fallback Size, run Runner) (Provider, error) {
	if run == nil {
		run = ExecRunner
	}

	switch name {
	case config.ProviderAuto, "":
		return &chainProvider{providers: []Provider{
			newWlrRandrProvider(run),
			newHyprctlProvider(run),
			newXrandrProvider(run),
			newXdotoolProvider(run),
			newStaticProvider(fallback),
		}}, nil
	case config.ProviderWlrRandr:
		return newWlrRandrProvider(run), nil
	case config.ProviderHyprctl:
		return newHyprctlProvider(run), nil
	case config.ProviderXrandr:
		return &chainProvider{providers: []Provider{newXrandrProvider(run), newXdotoolProvider(run)}}, nil
	case config.ProviderStatic:
		return newStaticProvider(fallback), nil
	default:
		return nil, fmt.Errorf("unknown display provider %q", name)
	}
}

// chainProvider asks each provider in turn and returns the first answer
type chainProvider struct {
	providers []Provider
}

func (c *chainProvider) Name() string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, ",")
}

func (c *chainProvider) Monitors(ctx context.Context) ([]*Monitor, error) {
	var errs []error
	for _, p := range c.providers {
		monitors, err := p.Monitors(ctx)
		if err == nil {
			logger.Debugf("Display: %s reported %d monitor(s)", p.Name(), len(monitors))
			return monitors, nil
		}
		if !errors.Is(err, ErrUnsupported) {
			logger.Debugf("Display: %s failed: %v", p.Name(), err)
			errs = append(errs, err)
		}
	}
	return nil, errors.Join(append([]error{ErrNoProvider}, errs...)...)
}

func (c *chainProvider) CursorPosition(ctx context.Context) (int, int, error) {
	var errs []error
	for _, p := range c.providers {
		x, y, err := p.CursorPosition(ctx)
		if err == nil {
			return x, y, nil
		}
		if !errors.Is(err, ErrUnsupported) {
			errs = append(errs, err)
		}
	}
	return 0, 0, errors.Join(append([]error{ErrNoProvider}, errs...)...)
}

// staticProvider reports a fixed size and never knows the pointer
type staticProvider struct {
	size Size
}

func newStaticProvider(size Size) Provider {
	return &staticProvider{size: size}
}

func (s *staticProvider) Name() string { return "static" }

func (s *staticProvider) Monitors(ctx context.Context) ([]*Monitor, error) {
	if !s.size.Valid() {
		return nil, ErrNoMonitors
	}
	return []*Monitor{{
		Name:    "static",
		Width:   int32(s.size.Width),
		Height:  int32(s.size.Height),
		Primary: true,
		Scale:   1.0,
	}}, nil
}

func (s *staticProvider) CursorPosition(ctx context.Context) (int, int, error) {
	return 0, 0, fmt.Errorf("static: %w", ErrUnsupported)
}
