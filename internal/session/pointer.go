package session

import (
	"context"

	"github.com/bnema/waygui/internal/display"
	"github.com/bnema/waygui/internal/keymap"
	"github.com/bnema/waygui/internal/logger"
	"github.com/bnema/waygui/internal/transport"
)

// Size returns the screen size, refreshed through the display provider
func (b *Backend) Size(ctx context.Context) display.Size {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opts.Screen.Size(ctx)
}

// Clamp limits x,y to [0,width-1] x [0,height-1]
func (b *Backend) Clamp(ctx context.Context, x, y int) (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return clamp(b.opts.Screen.Size(ctx), x, y)
}

func clamp(size display.Size, x, y int) (int, int) {
	return clampAxis(x, size.Width), clampAxis(y, size.Height)
}

func clampAxis(v, extent int) int {
	if v < 0 {
		return 0
	}
	if extent > 0 && v > extent-1 {
		return extent - 1
	}
	return v
}

// Position returns the last position this backend moved to. The
// protocol cannot query the real cursor; see SyncPosition.
func (b *Backend) Position() Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pos
}

// SyncPosition asks the display provider for the real cursor position
// and adopts it as the last-known position.
func (b *Backend) SyncPosition(ctx context.Context) (Point, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	x, y, err := b.opts.Screen.CursorPosition(ctx)
	if err != nil {
		return b.pos, err
	}
	x, y = clamp(b.opts.Screen.Size(ctx), x, y)
	b.pos = Point{X: x, Y: y}
	return b.pos, nil
}

func (b *Backend) pointer() (transport.Pointer, error) {
	p := b.sess.Pointer()
	if p == nil {
		return nil, emitErr("pointer", ErrNoCapability)
	}
	return p, nil
}

// MoveTo moves the pointer to x,y after clamping to the screen
func (b *Backend) MoveTo(ctx context.Context, x, y int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.moveLocked(ctx, x, y)
}

func (b *Backend) moveLocked(ctx context.Context, x, y int) error {
	if err := b.ensureLocked(ctx); err != nil {
		return err
	}
	p, err := b.pointer()
	if err != nil {
		return err
	}

	size := b.opts.Screen.Size(ctx)
	cx, cy := clamp(size, x, y)

	fx, fy := float64(cx), float64(cy)
	if b.sess.Convention() == transport.Normalized {
		fx, fy = fx/float64(size.Width), fy/float64(size.Height)
	}

	if err := p.MotionAbsolute(fx, fy); err != nil {
		return emitErr("motion", err)
	}
	if err := p.Frame(); err != nil {
		return emitErr("frame", err)
	}
	b.pos = Point{X: cx, Y: cy}
	return nil
}

// MouseDown moves to x,y and presses button
func (b *Backend) MouseDown(ctx context.Context, x, y int, button string) error {
	return b.buttonAt(ctx, x, y, button, true)
}

// MouseUp moves to x,y and releases button
func (b *Backend) MouseUp(ctx context.Context, x, y int, button string) error {
	return b.buttonAt(ctx, x, y, button, false)
}

func (b *Backend) buttonAt(ctx context.Context, x, y int, button string, pressed bool) error {
	code, err := buttonCode(button)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.moveLocked(ctx, x, y); err != nil {
		return err
	}
	return b.buttonLocked(code, pressed)
}

func buttonCode(button string) (uint32, error) {
	btn, err := keymap.ParseButton(button)
	if err != nil {
		return 0, err
	}
	return btn.Code()
}

func (b *Backend) buttonLocked(code uint32, pressed bool) error {
	p, err := b.pointer()
	if err != nil {
		return err
	}
	if err := p.Button(code, pressed); err != nil {
		return emitErr("button", err)
	}
	if err := p.Frame(); err != nil {
		return emitErr("frame", err)
	}
	return nil
}

// Click is MouseDown immediately followed by MouseUp. The two halves
// are separate emissions; a failure between them can leave the button
// held.
func (b *Backend) Click(ctx context.Context, x, y int, button string) error {
	if _, err := buttonCode(button); err != nil {
		return err
	}
	if err := b.MouseDown(ctx, x, y, button); err != nil {
		return err
	}
	return b.MouseUp(ctx, x, y, button)
}

// Drag presses button at the current position, moves to x,y and
// releases there.
func (b *Backend) Drag(ctx context.Context, x, y int, button string) error {
	code, err := buttonCode(button)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	from := b.pos
	if err := b.moveLocked(ctx, from.X, from.Y); err != nil {
		return err
	}
	if err := b.buttonLocked(code, true); err != nil {
		return err
	}
	if err := b.moveLocked(ctx, x, y); err != nil {
		return err
	}
	return b.buttonLocked(code, false)
}

// VScroll scrolls by clicks wheel detents, positive meaning up. When at
// is set the pointer moves there first.
func (b *Backend) VScroll(ctx context.Context, clicks int, at *Point) error {
	// libei counts positive y as down
	return b.scroll(ctx, 0, -clicks, at)
}

// HScroll scrolls horizontally, positive meaning right
func (b *Backend) HScroll(ctx context.Context, clicks int, at *Point) error {
	return b.scroll(ctx, clicks, 0, at)
}

// Scroll is VScroll
func (b *Backend) Scroll(ctx context.Context, clicks int, at *Point) error {
	return b.VScroll(ctx, clicks, at)
}

func (b *Backend) scroll(ctx context.Context, dx, dy int, at *Point) error {
	if dx == 0 && dy == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if at != nil {
		if err := b.moveLocked(ctx, at.X, at.Y); err != nil {
			return err
		}
	} else if err := b.ensureLocked(ctx); err != nil {
		return err
	}
	p, err := b.pointer()
	if err != nil {
		return err
	}

	steps := abs(dx) + abs(dy)
	stepX := int32(sign(dx) * transport.ScrollDetent)
	stepY := int32(sign(dy) * transport.ScrollDetent)

	for i := 0; i < steps; i++ {
		if err := p.ScrollDiscrete(stepX, stepY); err != nil {
			return emitErr("scroll", err)
		}
		if err := p.Frame(); err != nil {
			return emitErr("frame", err)
		}
		if err := b.sleep(ctx, b.opts.ScrollStepDelay); err != nil {
			// Close the scroll sequence even when cut short
			if stopErr := stopScroll(p, dx != 0, dy != 0); stopErr != nil {
				logger.Debugf("Session: %v", stopErr)
			}
			return err
		}
	}

	if err := stopScroll(p, dx != 0, dy != 0); err != nil {
		return err
	}
	logger.Debugf("Session: scrolled %d,%d detents", dx, dy)
	return nil
}

func stopScroll(p transport.Pointer, horizontal, vertical bool) error {
	if err := p.ScrollStop(horizontal, vertical); err != nil {
		return emitErr("scroll stop", err)
	}
	if err := p.Frame(); err != nil {
		return emitErr("frame", err)
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
