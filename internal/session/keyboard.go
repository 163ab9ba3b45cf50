package session

import (
	"context"
	"time"

	"github.com/bnema/waygui/internal/keymap"
	"github.com/bnema/waygui/internal/logger"
)

// KeyDown presses key. Unknown names are ignored. Shifted symbols press
// shift first.
func (b *Backend) KeyDown(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.keyLocked(ctx, key, true)
}

// KeyUp releases key, releasing shift last for shifted symbols
func (b *Backend) KeyUp(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.keyLocked(ctx, key, false)
}

type keyStroke struct {
	code    uint32
	pressed bool
}

func (b *Backend) keyLocked(ctx context.Context, name string, pressed bool) error {
	key, ok := keymap.Lookup(name)
	if !ok {
		logger.Debugf("Session: ignoring unmapped key %q", name)
		return nil
	}

	if err := b.ensureLocked(ctx); err != nil {
		return err
	}
	kb := b.sess.Keyboard()
	if kb == nil {
		return emitErr("keyboard", ErrNoCapability)
	}

	var seq []keyStroke
	switch {
	case key.Shift && pressed:
		seq = []keyStroke{{keymap.ShiftCode, true}, {key.Code, true}}
	case key.Shift:
		seq = []keyStroke{{key.Code, false}, {keymap.ShiftCode, false}}
	default:
		seq = []keyStroke{{key.Code, pressed}}
	}

	for _, ks := range seq {
		if err := kb.Key(ks.code, ks.pressed); err != nil {
			return emitErr("key", err)
		}
	}
	if err := kb.Frame(); err != nil {
		return emitErr("frame", err)
	}
	return nil
}

// Press taps each key in turn
func (b *Backend) Press(ctx context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, k := range keys {
		if err := b.keyLocked(ctx, k, true); err != nil {
			return err
		}
		if err := b.keyLocked(ctx, k, false); err != nil {
			return err
		}
	}
	return nil
}

// Hotkey holds keys down in order and releases them in reverse. If a
// key fails to go down, the keys already held are released first.
func (b *Backend) Hotkey(ctx context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, k := range keys {
		if err := b.keyLocked(ctx, k, true); err != nil {
			for j := i - 1; j >= 0; j-- {
				if upErr := b.keyLocked(ctx, keys[j], false); upErr != nil {
					logger.Debugf("Session: releasing %q: %v", keys[j], upErr)
				}
			}
			return err
		}
	}
	for i := len(keys) - 1; i >= 0; i-- {
		if err := b.keyLocked(ctx, keys[i], false); err != nil {
			return err
		}
	}
	return nil
}

// Write types text one character at a time, pausing interval between
// characters. Characters without a key are skipped.
func (b *Backend) Write(ctx context.Context, text string, interval time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, r := range []rune(text) {
		if i > 0 {
			if err := b.sleep(ctx, interval); err != nil {
				return err
			}
		}
		ch := string(r)
		if err := b.keyLocked(ctx, ch, true); err != nil {
			return err
		}
		if err := b.keyLocked(ctx, ch, false); err != nil {
			return err
		}
	}
	return nil
}
