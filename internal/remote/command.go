// Package remote exposes the automation backend to other processes:
// JSON commands over WebSocket and text or framed protobuf commands
// over SSH. Every command goes through Dispatch.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/bnema/waygui/internal/display"
	"github.com/bnema/waygui/internal/session"
)

// ErrUnknownOp is returned for commands naming no known operation
var ErrUnknownOp = errors.New("unknown operation")

// Operation names
const (
	OpMoveTo    = "moveTo"
	OpMouseDown = "mouseDown"
	OpMouseUp   = "mouseUp"
	OpClick     = "click"
	OpDrag      = "drag"
	OpScroll    = "scroll"
	OpVScroll   = "vscroll"
	OpHScroll   = "hscroll"
	OpKeyDown   = "keyDown"
	OpKeyUp     = "keyUp"
	OpPress     = "press"
	OpHotkey    = "hotkey"
	OpWrite     = "write"
	OpPosition  = "position"
	OpSize      = "size"
)

// Backend is what commands run against; *session.Backend implements it
type Backend interface {
	MoveTo(ctx context.Context, x, y int) error
	MouseDown(ctx context.Context, x, y int, button string) error
	MouseUp(ctx context.Context, x, y int, button string) error
	Click(ctx context.Context, x, y int, button string) error
	Drag(ctx context.Context, x, y int, button string) error
	VScroll(ctx context.Context, clicks int, at *session.Point) error
	HScroll(ctx context.Context, clicks int, at *session.Point) error
	KeyDown(ctx context.Context, key string) error
	KeyUp(ctx context.Context, key string) error
	Press(ctx context.Context, keys ...string) error
	Hotkey(ctx context.Context, keys ...string) error
	Write(ctx context.Context, text string, interval time.Duration) error
	Position() session.Point
	Size(ctx context.Context) display.Size
	Handle(err error) error
}

// ButtonArg accepts a button as a JSON string ("left") or number (1)
type ButtonArg string

func (b *ButtonArg) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*b = ButtonArg(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("button must be a name or number: %w", err)
	}
	if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
		return fmt.Errorf("%w: got %v", session.ErrInvalidButton, n)
	}
	*b = ButtonArg(strconv.Itoa(int(n)))
	return nil
}

// Command is one automation request. X and Y are optional for pointer
// operations and default to the last-known position.
type Command struct {
	Op       string    `json:"op"`
	X        *int      `json:"x,omitempty"`
	Y        *int      `json:"y,omitempty"`
	Button   ButtonArg `json:"button,omitempty"`
	Clicks   int       `json:"clicks,omitempty"`
	Key      string    `json:"key,omitempty"`
	Keys     []string  `json:"keys,omitempty"`
	Text     string    `json:"text,omitempty"`
	Interval float64   `json:"interval,omitempty"` // seconds between typed characters
}

// Result answers a Command
type Result struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	X      *int   `json:"x,omitempty"`
	Y      *int   `json:"y,omitempty"`
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`
}

// String renders the result as one line of text
func (r Result) String() string {
	switch {
	case !r.OK:
		return "error: " + r.Error
	case r.X != nil && r.Y != nil:
		return fmt.Sprintf("%d %d", *r.X, *r.Y)
	case r.Width != nil && r.Height != nil:
		return fmt.Sprintf("%d %d", *r.Width, *r.Height)
	}
	return "ok"
}

func intp(v int) *int { return &v }

func (c Command) button() string {
	if c.Button == "" {
		return "left"
	}
	return string(c.Button)
}

func (c Command) point(b Backend) (int, int) {
	pos := b.Position()
	x, y := pos.X, pos.Y
	if c.X != nil {
		x = *c.X
	}
	if c.Y != nil {
		y = *c.Y
	}
	return x, y
}

func (c Command) at() *session.Point {
	if c.X == nil || c.Y == nil {
		return nil
	}
	return &session.Point{X: *c.X, Y: *c.Y}
}

func (c Command) keys() []string {
	if len(c.Keys) > 0 {
		return c.Keys
	}
	if c.Key != "" {
		return []string{c.Key}
	}
	return nil
}

// Dispatch runs cmd against b. Emission failures follow the backend's
// strict policy; everything else is reported in the result.
func Dispatch(ctx context.Context, b Backend, cmd Command) Result {
	var err error

	switch cmd.Op {
	case OpMoveTo:
		x, y := cmd.point(b)
		err = b.MoveTo(ctx, x, y)
	case OpMouseDown:
		x, y := cmd.point(b)
		err = b.MouseDown(ctx, x, y, cmd.button())
	case OpMouseUp:
		x, y := cmd.point(b)
		err = b.MouseUp(ctx, x, y, cmd.button())
	case OpClick:
		x, y := cmd.point(b)
		clicks := cmd.Clicks
		if clicks <= 0 {
			clicks = 1
		}
		for i := 0; i < clicks && err == nil; i++ {
			err = b.Click(ctx, x, y, cmd.button())
		}
	case OpDrag:
		if cmd.X == nil || cmd.Y == nil {
			err = errors.New("drag needs x and y")
			break
		}
		err = b.Drag(ctx, *cmd.X, *cmd.Y, cmd.button())
	case OpScroll, OpVScroll:
		err = b.VScroll(ctx, cmd.Clicks, cmd.at())
	case OpHScroll:
		err = b.HScroll(ctx, cmd.Clicks, cmd.at())
	case OpKeyDown:
		err = b.KeyDown(ctx, cmd.Key)
	case OpKeyUp:
		err = b.KeyUp(ctx, cmd.Key)
	case OpPress:
		err = b.Press(ctx, cmd.keys()...)
	case OpHotkey:
		err = b.Hotkey(ctx, cmd.keys()...)
	case OpWrite:
		err = b.Write(ctx, cmd.Text, time.Duration(cmd.Interval*float64(time.Second)))
	case OpPosition:
		pos := b.Position()
		return Result{OK: true, X: intp(pos.X), Y: intp(pos.Y)}
	case OpSize:
		size := b.Size(ctx)
		return Result{OK: true, Width: intp(size.Width), Height: intp(size.Height)}
	default:
		err = fmt.Errorf("%w %q", ErrUnknownOp, cmd.Op)
	}

	if err = b.Handle(err); err != nil {
		return Result{Error: err.Error()}
	}
	return Result{OK: true}
}
