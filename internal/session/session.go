// Package session owns the single input-emulation connection of a
// process and turns automation-style calls (move, click, scroll, key)
// into pointer and keyboard events on it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/waygui/internal/config"
	"github.com/bnema/waygui/internal/display"
	"github.com/bnema/waygui/internal/keymap"
	"github.com/bnema/waygui/internal/logger"
	"github.com/bnema/waygui/internal/transport"
)

var (
	// ErrTransportUnavailable is returned by EnsureConnected when no
	// transport could be opened and the no-op fallback is disabled
	ErrTransportUnavailable = errors.New("no input emulation transport available")
	// ErrEmit wraps failures of an individual emission
	ErrEmit = errors.New("input emission failed")
	// ErrNoCapability is returned when the server withheld pointer or keyboard
	ErrNoCapability = errors.New("capability not granted")
	// ErrInvalidButton is returned for buttons outside left, middle, right, 1-7
	ErrInvalidButton = keymap.ErrInvalidButton
)

// State of the connection
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Point is a screen position in logical pixels
type Point struct {
	X, Y int
}

// Options configures a Backend
type Options struct {
	// Transports are tried in order by EnsureConnected
	Transports []transport.Transport
	// FallbackNoop degrades to the no-op transport instead of failing
	FallbackNoop bool
	// Strict makes Handle return emission errors instead of logging them
	Strict bool
	// Screen supplies the screen size; a static 1920x1080 is used if nil
	Screen          *display.Screen
	ScrollStepDelay time.Duration
	ConnectTimeout  time.Duration
}

// Backend is the adapter: one connection, its capability handles, the
// last-known pointer position and the screen-size cache. Every method
// is serialized on one mutex.
type Backend struct {
	opts Options

	mu        sync.Mutex
	sess      transport.Session
	transport string
	degraded  bool
	pos       Point

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a disconnected backend
func New(opts Options) *Backend {
	if opts.Screen == nil {
		fallback := display.Size{
			Width:  config.DefaultConfig.Display.DefaultWidth,
			Height: config.DefaultConfig.Display.DefaultHeight,
		}
		provider, _ := display.New(config.ProviderStatic, fallback, nil)
		opts.Screen = display.NewScreen(provider, fallback, 0)
	}
	return &Backend{opts: opts, sleep: sleepCtx}
}

// OptionsFromConfig builds transports and the screen provider from cfg
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	transports, err := transport.FromConfig(cfg.Backend)
	if err != nil {
		return Options{}, err
	}

	fallback := display.Size{Width: cfg.Display.DefaultWidth, Height: cfg.Display.DefaultHeight}
	provider, err := display.New(cfg.Display.Provider, fallback, display.ExecRunner)
	if err != nil {
		return Options{}, err
	}

	return Options{
		Transports:      transports,
		FallbackNoop:    cfg.Backend.FallbackNoop,
		Strict:          cfg.Backend.Strict,
		Screen:          display.NewScreen(provider, fallback, cfg.Display.RefreshInterval),
		ScrollStepDelay: cfg.Backend.ScrollStepDelay,
		ConnectTimeout:  cfg.Backend.ConnectTimeout,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnsureConnected opens a session on first use. Later calls are no-ops
// until Close.
func (b *Backend) EnsureConnected(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ensureLocked(ctx)
}

func (b *Backend) ensureLocked(ctx context.Context) error {
	if b.sess != nil {
		return nil
	}

	if b.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.ConnectTimeout)
		defer cancel()
	}

	var errs []error
	for _, t := range b.opts.Transports {
		logger.Debugf("Session: trying %s transport", t.Name())
		sess, err := t.Open(ctx)
		if err != nil {
			logger.Debugf("Session: %s transport failed: %v", t.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
			continue
		}
		b.sess = sess
		b.transport = t.Name()
		b.degraded = false
		logger.Infof("Session: connected via %s (%s coordinates)", t.Name(), sess.Convention())
		return nil
	}

	cause := errors.Join(errs...)
	if !b.opts.FallbackNoop {
		return fmt.Errorf("%w: %w", ErrTransportUnavailable, cause)
	}

	logger.Warnf("Session: no input emulation available, events will be dropped: %v", cause)
	sess, _ := transport.Noop{}.Open(ctx)
	b.sess = sess
	b.transport = transport.Noop{}.Name()
	b.degraded = true
	return nil
}

// Close releases the session. Repeated calls do nothing.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sess == nil {
		return nil
	}
	sess := b.sess
	b.sess = nil
	b.transport = ""
	b.degraded = false

	if err := sess.Close(); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	logger.Debug("Session: closed")
	return nil
}

// State reports whether a session is open
func (b *Backend) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sess != nil {
		return Connected
	}
	return Disconnected
}

// Degraded reports whether events are being dropped by the no-op fallback
func (b *Backend) Degraded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.degraded
}

// Status is a snapshot for status output
type Status struct {
	State      State
	Transport  string
	Convention transport.Convention
	Degraded   bool
	Position   Point
	Size       display.Size
}

// Status snapshots the backend without connecting
func (b *Backend) Status(ctx context.Context) Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := Status{
		State:     Disconnected,
		Transport: b.transport,
		Degraded:  b.degraded,
		Position:  b.pos,
		Size:      b.opts.Screen.Size(ctx),
	}
	if b.sess != nil {
		st.State = Connected
		st.Convention = b.sess.Convention()
	}
	return st
}

// Handle applies the strict policy to an operation result. Emission
// failures are logged and dropped unless the backend is strict. Events
// the transport cannot express at all and other errors are returned
// unchanged.
func (b *Backend) Handle(err error) error {
	if err == nil || b.opts.Strict || !errors.Is(err, ErrEmit) || errors.Is(err, transport.ErrUnsupported) {
		return err
	}
	logger.Warnf("Session: %v", err)
	return nil
}

func emitErr(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrEmit, what, err)
}
