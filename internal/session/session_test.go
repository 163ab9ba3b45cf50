package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bnema/waygui/internal/display"
	"github.com/bnema/waygui/internal/keymap"
	"github.com/bnema/waygui/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSize = display.Size{Width: 800, Height: 600}

// fakeProvider reports a fixed screen and cursor
type fakeProvider struct {
	size      display.Size
	cursorX   int
	cursorY   int
	cursorErr error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Monitors(ctx context.Context) ([]*display.Monitor, error) {
	return []*display.Monitor{{Name: "fake", Width: int32(f.size.Width), Height: int32(f.size.Height), Primary: true}}, nil
}

func (f *fakeProvider) CursorPosition(ctx context.Context) (int, int, error) {
	return f.cursorX, f.cursorY, f.cursorErr
}

func newTestBackend(t *testing.T, transports ...transport.Transport) *Backend {
	t.Helper()
	b := New(Options{
		Transports: transports,
		Screen:     display.NewScreen(&fakeProvider{size: testSize}, testSize, 0),
	})
	b.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func only(events []transport.Event, kinds ...transport.EventKind) []transport.Event {
	var out []transport.Event
	for _, e := range events {
		for _, k := range kinds {
			if e.Kind == k {
				out = append(out, e)
			}
		}
	}
	return out
}

func TestClampStaysOnScreen(t *testing.T) {
	b := newTestBackend(t, transport.NewRecorder())
	ctx := context.Background()

	tests := []struct {
		x, y         int
		wantX, wantY int
	}{
		{-10, -10, 0, 0},
		{800, 600, 799, 599},
		{5000, 20, 799, 20},
		{20, -1, 20, 0},
		{-1, 9999, 0, 599},
		{400, 300, 400, 300},
	}

	for _, tt := range tests {
		x, y := b.Clamp(ctx, tt.x, tt.y)
		assert.Equal(t, tt.wantX, x, "x for (%d,%d)", tt.x, tt.y)
		assert.Equal(t, tt.wantY, y, "y for (%d,%d)", tt.x, tt.y)
		assert.True(t, x >= 0 && x < testSize.Width && y >= 0 && y < testSize.Height)
	}
}

func TestMoveToUpdatesPosition(t *testing.T) {
	rec := transport.NewRecorder()
	b := newTestBackend(t, rec)
	ctx := context.Background()

	points := []struct{ x, y, wantX, wantY int }{
		{100, 200, 100, 200},
		{-50, 10, 0, 10},
		{9000, 9000, 799, 599},
	}
	for _, p := range points {
		require.NoError(t, b.MoveTo(ctx, p.x, p.y))
		assert.Equal(t, Point{X: p.wantX, Y: p.wantY}, b.Position())
	}

	motions := only(rec.Events(), transport.EventMotion)
	require.Len(t, motions, 3)
	assert.Equal(t, 799.0, motions[2].X)
	assert.Equal(t, 599.0, motions[2].Y)
}

func TestMoveToUsesLogicalPixels(t *testing.T) {
	scaled := &scaledProvider{width: 3840, height: 2160, scale: 1.5}
	rec := transport.NewRecorder()
	b := New(Options{
		Transports: []transport.Transport{rec},
		Screen:     display.NewScreen(scaled, testSize, 0),
	})
	t.Cleanup(func() { _ = b.Close() })

	ctx := context.Background()
	assert.Equal(t, display.Size{Width: 2560, Height: 1440}, b.Size(ctx))

	require.NoError(t, b.MoveTo(ctx, 3000, 2000))
	motions := only(rec.Events(), transport.EventMotion)
	require.Len(t, motions, 1)
	assert.Equal(t, "motion 2559,1439", motions[0].String())
}

// scaledProvider reports one output with a fractional scale
type scaledProvider struct {
	width, height int32
	scale         float64
}

func (s *scaledProvider) Name() string { return "scaled" }

func (s *scaledProvider) Monitors(ctx context.Context) ([]*display.Monitor, error) {
	return []*display.Monitor{{Name: "eDP-1", Width: s.width, Height: s.height, Scale: s.scale, Primary: true}}, nil
}

func (s *scaledProvider) CursorPosition(ctx context.Context) (int, int, error) {
	return 0, 0, display.ErrUnsupported
}

func TestMoveToNormalized(t *testing.T) {
	rec := &transport.Recorder{Conv: transport.Normalized}
	b := newTestBackend(t, rec)

	require.NoError(t, b.MoveTo(context.Background(), 400, 150))
	motion := only(rec.Events(), transport.EventMotion)[0]
	assert.InDelta(t, 0.5, motion.X, 1e-9)
	assert.InDelta(t, 0.25, motion.Y, 1e-9)
	assert.Equal(t, Point{X: 400, Y: 150}, b.Position())

	// The far edge maps just below 1, never onto it
	require.NoError(t, b.MoveTo(context.Background(), 5000, 5000))
	motion = only(rec.Events(), transport.EventMotion)[1]
	assert.InDelta(t, 799.0/800.0, motion.X, 1e-9)
	assert.InDelta(t, 599.0/600.0, motion.Y, 1e-9)
	assert.Less(t, motion.X, 1.0)
}

func TestClickIsDownThenUp(t *testing.T) {
	buttons := map[string]uint32{
		"left": 0x110, "middle": 0x112, "right": 0x111,
		"1": 0x110, "2": 0x112, "3": 0x111,
		"4": 0x113, "5": 0x114, "6": 0x115, "7": 0x116,
	}

	for name, code := range buttons {
		t.Run(name, func(t *testing.T) {
			rec := transport.NewRecorder()
			b := newTestBackend(t, rec)

			require.NoError(t, b.Click(context.Background(), 10, 10, name))

			presses := only(rec.Events(), transport.EventButton)
			require.Len(t, presses, 2)
			assert.Equal(t, transport.Event{Kind: transport.EventButton, Code: code, Pressed: true}, presses[0])
			assert.Equal(t, transport.Event{Kind: transport.EventButton, Code: code, Pressed: false}, presses[1])
		})
	}
}

func TestInvalidButtonEmitsNothing(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"0", "8", "wheel", "", "-1"} {
		t.Run(name, func(t *testing.T) {
			rec := transport.NewRecorder()
			b := newTestBackend(t, rec)

			assert.ErrorIs(t, b.Click(ctx, 1, 1, name), ErrInvalidButton)
			assert.ErrorIs(t, b.MouseDown(ctx, 1, 1, name), ErrInvalidButton)
			assert.ErrorIs(t, b.MouseUp(ctx, 1, 1, name), ErrInvalidButton)
			assert.ErrorIs(t, b.Drag(ctx, 1, 1, name), keymap.ErrInvalidButton)
			assert.Empty(t, rec.Events())
		})
	}
}

func TestZeroScrollEmitsNothing(t *testing.T) {
	rec := transport.NewRecorder()
	b := newTestBackend(t, rec)
	ctx := context.Background()

	require.NoError(t, b.VScroll(ctx, 0, nil))
	require.NoError(t, b.HScroll(ctx, 0, &Point{X: 5, Y: 5}))
	assert.Empty(t, rec.Events())
	assert.Equal(t, 0, rec.Opens())
}

func TestVScrollSteps(t *testing.T) {
	ctx := context.Background()

	t.Run("up", func(t *testing.T) {
		rec := transport.NewRecorder()
		b := newTestBackend(t, rec)
		require.NoError(t, b.VScroll(ctx, 3, nil))

		events := only(rec.Events(), transport.EventScroll, transport.EventScrollStop)
		require.Len(t, events, 4)
		for _, e := range events[:3] {
			assert.Equal(t, transport.EventScroll, e.Kind)
			assert.Equal(t, int32(-transport.ScrollDetent), e.DY)
			assert.Zero(t, e.DX)
		}
		assert.Equal(t, transport.EventScrollStop, events[3].Kind)
	})

	t.Run("down", func(t *testing.T) {
		rec := transport.NewRecorder()
		b := newTestBackend(t, rec)
		require.NoError(t, b.Scroll(ctx, -2, nil))

		events := only(rec.Events(), transport.EventScroll, transport.EventScrollStop)
		require.Len(t, events, 3)
		assert.Equal(t, int32(transport.ScrollDetent), events[0].DY)
		assert.Equal(t, int32(transport.ScrollDetent), events[1].DY)
		assert.Equal(t, transport.EventScrollStop, events[2].Kind)
		assert.Equal(t, 1.0, events[2].Y)
	})

	t.Run("horizontal with move", func(t *testing.T) {
		rec := transport.NewRecorder()
		b := newTestBackend(t, rec)
		require.NoError(t, b.HScroll(ctx, 1, &Point{X: 30, Y: 40}))

		events := rec.Events()
		assert.Equal(t, transport.EventMotion, events[0].Kind)
		scrolls := only(events, transport.EventScroll)
		require.Len(t, scrolls, 1)
		assert.Equal(t, int32(transport.ScrollDetent), scrolls[0].DX)
		assert.Equal(t, Point{X: 30, Y: 40}, b.Position())
	})
}

func TestScrollStepDelay(t *testing.T) {
	rec := transport.NewRecorder()
	b := newTestBackend(t, rec)
	b.opts.ScrollStepDelay = 5 * time.Millisecond

	var slept []time.Duration
	b.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	require.NoError(t, b.VScroll(context.Background(), 4, nil))
	assert.Len(t, slept, 4)
	assert.Equal(t, 5*time.Millisecond, slept[0])
}

func TestCancelledScrollStillStops(t *testing.T) {
	rec := transport.NewRecorder()
	b := newTestBackend(t, rec)
	b.sleep = func(ctx context.Context, d time.Duration) error { return context.Canceled }

	err := b.VScroll(context.Background(), 5, nil)
	assert.ErrorIs(t, err, context.Canceled)

	events := rec.Events()
	scrolls := only(events, transport.EventScroll, transport.EventScrollStop)
	require.Len(t, scrolls, 2)
	assert.Equal(t, transport.EventScroll, scrolls[0].Kind)
	assert.Equal(t, transport.EventScrollStop, scrolls[1].Kind)
	assert.Equal(t, transport.EventFrame, events[len(events)-1].Kind)
}

func TestShiftedKeys(t *testing.T) {
	rec := transport.NewRecorder()
	b := newTestBackend(t, rec)
	ctx := context.Background()
	a, ok := keymap.Lookup("a")
	require.True(t, ok)

	require.NoError(t, b.KeyDown(ctx, "A"))
	keys := only(rec.Events(), transport.EventKey)
	require.Len(t, keys, 2)
	assert.Equal(t, transport.Event{Kind: transport.EventKey, Code: keymap.ShiftCode, Pressed: true}, keys[0])
	assert.Equal(t, transport.Event{Kind: transport.EventKey, Code: a.Code, Pressed: true}, keys[1])

	rec.Reset()
	require.NoError(t, b.KeyUp(ctx, "A"))
	keys = only(rec.Events(), transport.EventKey)
	require.Len(t, keys, 2)
	assert.Equal(t, transport.Event{Kind: transport.EventKey, Code: a.Code}, keys[0])
	assert.Equal(t, transport.Event{Kind: transport.EventKey, Code: keymap.ShiftCode}, keys[1])
}

func TestUnmappedKeyIsNoop(t *testing.T) {
	rec := transport.NewRecorder()
	b := newTestBackend(t, rec)

	require.NoError(t, b.KeyDown(context.Background(), "notakey"))
	require.NoError(t, b.KeyUp(context.Background(), "€"))
	assert.Empty(t, rec.Events())
}

func TestCloseTwice(t *testing.T) {
	rec := transport.NewRecorder()
	b := newTestBackend(t, rec)

	require.NoError(t, b.EnsureConnected(context.Background()))
	assert.Equal(t, Connected, b.State())

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.Equal(t, 1, rec.Closes())
	assert.Equal(t, Disconnected, b.State())

	// a closed backend reconnects lazily
	require.NoError(t, b.MoveTo(context.Background(), 1, 1))
	assert.Equal(t, 2, rec.Opens())
}

func TestEnsureConnectedIsIdempotent(t *testing.T) {
	rec := transport.NewRecorder()
	b := newTestBackend(t, rec)
	ctx := context.Background()

	require.NoError(t, b.EnsureConnected(ctx))
	require.NoError(t, b.EnsureConnected(ctx))
	require.NoError(t, b.MoveTo(ctx, 1, 1))
	assert.Equal(t, 1, rec.Opens())
}

func TestTransportOrderAndFallback(t *testing.T) {
	ctx := context.Background()
	broken := &transport.Recorder{OpenErr: transport.ErrUnavailable}

	t.Run("falls through to the next transport", func(t *testing.T) {
		rec := transport.NewRecorder()
		b := newTestBackend(t, broken, rec)
		require.NoError(t, b.EnsureConnected(ctx))
		assert.False(t, b.Degraded())
		assert.Equal(t, 1, rec.Opens())
	})

	t.Run("unavailable without fallback", func(t *testing.T) {
		b := newTestBackend(t, broken)
		err := b.EnsureConnected(ctx)
		assert.ErrorIs(t, err, ErrTransportUnavailable)
		assert.ErrorIs(t, err, transport.ErrUnavailable)
		assert.ErrorIs(t, b.MoveTo(ctx, 1, 1), ErrTransportUnavailable)
		assert.Equal(t, Disconnected, b.State())
	})

	t.Run("degrades to noop with fallback", func(t *testing.T) {
		b := newTestBackend(t, broken)
		b.opts.FallbackNoop = true
		require.NoError(t, b.MoveTo(ctx, 10, 10))
		assert.True(t, b.Degraded())
		assert.Equal(t, "noop", b.Status(ctx).Transport)
		assert.Equal(t, Point{X: 10, Y: 10}, b.Position())

		require.NoError(t, b.Close())
		assert.False(t, b.Degraded())
	})
}

func TestEmissionErrorsAndStrict(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("broken pipe")
	rec := &transport.Recorder{FailOn: map[transport.EventKind]error{transport.EventButton: boom}}
	b := newTestBackend(t, rec)

	err := b.MouseDown(ctx, 1, 1, "left")
	assert.ErrorIs(t, err, ErrEmit)
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, b.Handle(err))
	assert.ErrorIs(t, b.Handle(b.Click(ctx, 1, 1, "9")), ErrInvalidButton)

	b.opts.Strict = true
	assert.ErrorIs(t, b.Handle(err), boom)
}

func TestUnsupportedEventIsNotSwallowed(t *testing.T) {
	ctx := context.Background()
	unsupported := fmt.Errorf("%w: button 0x113", transport.ErrUnsupported)
	rec := &transport.Recorder{FailOn: map[transport.EventKind]error{transport.EventButton: unsupported}}
	b := newTestBackend(t, rec)

	err := b.Handle(b.Click(ctx, 1, 1, "4"))
	assert.ErrorIs(t, err, transport.ErrUnsupported)
	assert.ErrorIs(t, err, ErrEmit)
}

func TestHotkeyReleasesHeldKeysOnFailure(t *testing.T) {
	ctrl, ok := keymap.Lookup("ctrl")
	require.True(t, ok)
	alt, ok := keymap.Lookup("alt")
	require.True(t, ok)
	del, ok := keymap.Lookup("delete")
	require.True(t, ok)

	boom := errors.New("broken pipe")
	rec := &transport.Recorder{FailKey: map[uint32]error{del.Code: boom}}
	b := newTestBackend(t, rec)

	err := b.Hotkey(context.Background(), "ctrl", "alt", "delete")
	assert.ErrorIs(t, err, boom)

	keys := only(rec.Events(), transport.EventKey)
	require.Len(t, keys, 4)
	assert.Equal(t, transport.Event{Kind: transport.EventKey, Code: ctrl.Code, Pressed: true}, keys[0])
	assert.Equal(t, transport.Event{Kind: transport.EventKey, Code: alt.Code, Pressed: true}, keys[1])
	assert.Equal(t, transport.Event{Kind: transport.EventKey, Code: alt.Code}, keys[2])
	assert.Equal(t, transport.Event{Kind: transport.EventKey, Code: ctrl.Code}, keys[3])
}

func TestMissingCapability(t *testing.T) {
	rec := &transport.Recorder{NoKeyboard: true}
	b := newTestBackend(t, rec)

	err := b.KeyDown(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNoCapability)
	assert.ErrorIs(t, err, ErrEmit)
}

func TestPressHotkeyWrite(t *testing.T) {
	ctx := context.Background()
	code := func(name string) uint32 {
		k, ok := keymap.Lookup(name)
		require.True(t, ok)
		return k.Code
	}

	t.Run("hotkey releases in reverse", func(t *testing.T) {
		rec := transport.NewRecorder()
		b := newTestBackend(t, rec)
		require.NoError(t, b.Hotkey(ctx, "ctrl", "shift", "t"))

		keys := only(rec.Events(), transport.EventKey)
		require.Len(t, keys, 6)
		assert.Equal(t, []uint32{code("ctrl"), code("shift"), code("t"), code("t"), code("shift"), code("ctrl")},
			[]uint32{keys[0].Code, keys[1].Code, keys[2].Code, keys[3].Code, keys[4].Code, keys[5].Code})
		assert.True(t, keys[2].Pressed)
		assert.False(t, keys[3].Pressed)
	})

	t.Run("press taps each key", func(t *testing.T) {
		rec := transport.NewRecorder()
		b := newTestBackend(t, rec)
		require.NoError(t, b.Press(ctx, "enter", "tab"))

		keys := only(rec.Events(), transport.EventKey)
		require.Len(t, keys, 4)
		assert.Equal(t, code("enter"), keys[1].Code)
		assert.False(t, keys[1].Pressed)
		assert.Equal(t, code("tab"), keys[2].Code)
	})

	t.Run("write types characters", func(t *testing.T) {
		rec := transport.NewRecorder()
		b := newTestBackend(t, rec)
		require.NoError(t, b.Write(ctx, "Hi!\n", 0))

		keys := only(rec.Events(), transport.EventKey)
		// H and ! are shifted: 4 events each, i and newline: 2 each
		require.Len(t, keys, 12)
		assert.Equal(t, keymap.ShiftCode, keys[0].Code)
		assert.Equal(t, code("enter"), keys[10].Code)
	})
}

func TestDrag(t *testing.T) {
	rec := transport.NewRecorder()
	b := newTestBackend(t, rec)
	ctx := context.Background()

	require.NoError(t, b.MoveTo(ctx, 10, 10))
	rec.Reset()
	require.NoError(t, b.Drag(ctx, 100, 120, "left"))

	events := only(rec.Events(), transport.EventMotion, transport.EventButton)
	require.Len(t, events, 4)
	assert.Equal(t, transport.EventMotion, events[0].Kind)
	assert.Equal(t, 10.0, events[0].X)
	assert.True(t, events[1].Pressed)
	assert.Equal(t, 100.0, events[2].X)
	assert.False(t, events[3].Pressed)
	assert.Equal(t, Point{X: 100, Y: 120}, b.Position())
}

func TestSyncPosition(t *testing.T) {
	provider := &fakeProvider{size: testSize, cursorX: 900, cursorY: 50}
	b := New(Options{Screen: display.NewScreen(provider, testSize, 0)})

	p, err := b.SyncPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Point{X: 799, Y: 50}, p)
	assert.Equal(t, p, b.Position())

	provider.cursorErr = display.ErrUnsupported
	_, err = b.SyncPosition(context.Background())
	assert.ErrorIs(t, err, display.ErrUnsupported)
	assert.Equal(t, Point{X: 799, Y: 50}, b.Position())
}

func TestConcurrentUse(t *testing.T) {
	rec := transport.NewRecorder()
	b := newTestBackend(t, rec)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, b.Click(ctx, i, i, "left"))
			assert.NoError(t, b.VScroll(ctx, 2, nil))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, rec.Opens())
	assert.Len(t, only(rec.Events(), transport.EventButton), 16)
	assert.Len(t, only(rec.Events(), transport.EventScrollStop), 8)
}
