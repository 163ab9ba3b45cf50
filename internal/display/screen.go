package display

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/waygui/internal/logger"
)

// Screen caches the primary monitor size in logical pixels. A failed refresh keeps the
// last good value, or the fallback before any refresh succeeded. The
// cache can go stale if outputs change within the refresh interval.
type Screen struct {
	provider Provider
	ttl      time.Duration // zero refreshes on every call

	mu      sync.Mutex
	cached  Size
	fetched time.Time
	now     func() time.Time
}

// NewScreen wraps a provider with a size cache seeded with fallback
func NewScreen(provider Provider, fallback Size, ttl time.Duration) *Screen {
	return &Screen{provider: provider, cached: fallback, ttl: ttl, now: time.Now}
}

// Provider returns the underlying provider
func (s *Screen) Provider() Provider {
	return s.provider
}

// Size refreshes the cache through the provider and returns it
func (s *Screen) Size(ctx context.Context) Size {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ttl > 0 && !s.fetched.IsZero() && s.now().Sub(s.fetched) < s.ttl {
		return s.cached
	}

	monitors, err := s.provider.Monitors(ctx)
	if err != nil {
		logger.Debugf("Display: keeping cached size %s: %v", s.cached, err)
		return s.cached
	}

	primary := PrimaryMonitor(monitors)
	if primary == nil {
		return s.cached
	}
	size := primary.LogicalSize()
	if !size.Valid() {
		return s.cached
	}

	s.cached = size
	s.fetched = s.now()
	return size
}

// Cached returns the last known size without running any tool
func (s *Screen) Cached() Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cached
}

// CursorPosition asks the provider where the pointer really is
func (s *Screen) CursorPosition(ctx context.Context) (int, int, error) {
	return s.provider.CursorPosition(ctx)
}
