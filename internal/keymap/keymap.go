// Package keymap translates desktop-automation key and button names into
// Linux evdev codes understood by both libei and uinput.
package keymap

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ThomasT75/uinput"
)

// ErrInvalidButton is returned for buttons outside left, middle, right and 1-7
var ErrInvalidButton = errors.New("button argument not in ('left', 'middle', 'right', 1, 2, 3, 4, 5, 6, 7)")

// Button is a logical mouse button id, 1 to 7
type Button int

const (
	ButtonLeft   Button = 1
	ButtonMiddle Button = 2
	ButtonRight  Button = 3
)

// evdev button codes from linux/input-event-codes.h
const (
	btnLeft    uint32 = 0x110
	btnRight   uint32 = 0x111
	btnMiddle  uint32 = 0x112
	btnSide    uint32 = 0x113
	btnExtra   uint32 = 0x114
	btnForward uint32 = 0x115
	btnBack    uint32 = 0x116
)

var buttonNames = map[string]Button{
	"left":   ButtonLeft,
	"middle": ButtonMiddle,
	"right":  ButtonRight,
}

// 4-7 were wheel buttons under X11; here they map onto the extra
// pointer buttons since scrolling has dedicated scroll events.
var buttonCodes = map[Button]uint32{
	1: btnLeft,
	2: btnMiddle,
	3: btnRight,
	4: btnSide,
	5: btnExtra,
	6: btnForward,
	7: btnBack,
}

// ParseButton resolves "left", "middle", "right" or "1".."7".
func ParseButton(name string) (Button, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if b, ok := buttonNames[name]; ok {
		return b, nil
	}
	n, err := strconv.Atoi(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidButton, name)
	}
	return ButtonFromInt(n)
}

// ButtonFromInt validates a numeric button id.
func ButtonFromInt(n int) (Button, error) {
	b := Button(n)
	if _, ok := buttonCodes[b]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrInvalidButton, n)
	}
	return b, nil
}

// Code returns the evdev code for the button.
func (b Button) Code() (uint32, error) {
	code, ok := buttonCodes[b]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrInvalidButton, int(b))
	}
	return code, nil
}

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonMiddle:
		return "middle"
	case ButtonRight:
		return "right"
	default:
		return strconv.Itoa(int(b))
	}
}

// Key is a resolved keyboard key
type Key struct {
	Code  uint32
	Shift bool // symbol needs shift held
}

// ShiftCode is the modifier used to produce shifted symbols
const ShiftCode = uint32(uinput.KeyLeftshift)

// Lookup resolves an automation key name or single character. The second
// result is false for unmapped keys.
func Lookup(name string) (Key, bool) {
	if k, ok := keys[name]; ok {
		return k, true
	}
	if k, ok := keys[strings.ToLower(name)]; ok && len(name) > 1 {
		return k, true
	}
	return Key{}, false
}

// Names returns every key name the table knows, for help output.
func Names() []string {
	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	return names
}

func plain(code int) Key   { return Key{Code: uint32(code)} }
func shifted(code int) Key { return Key{Code: uint32(code), Shift: true} }

var keys = buildKeys()

func buildKeys() map[string]Key {
	m := map[string]Key{
		// unshifted punctuation
		" ":  plain(uinput.KeySpace),
		"`":  plain(uinput.KeyGrave),
		"-":  plain(uinput.KeyMinus),
		"=":  plain(uinput.KeyEqual),
		"[":  plain(uinput.KeyLeftbrace),
		"]":  plain(uinput.KeyRightbrace),
		"\\": plain(uinput.KeyBackslash),
		";":  plain(uinput.KeySemicolon),
		"'":  plain(uinput.KeyApostrophe),
		",":  plain(uinput.KeyComma),
		".":  plain(uinput.KeyDot),
		"/":  plain(uinput.KeySlash),
		"\n": plain(uinput.KeyEnter),
		"\r": plain(uinput.KeyEnter),
		"\t": plain(uinput.KeyTab),

		// shifted punctuation
		"~":  shifted(uinput.KeyGrave),
		"!":  shifted(uinput.Key1),
		"@":  shifted(uinput.Key2),
		"#":  shifted(uinput.Key3),
		"$":  shifted(uinput.Key4),
		"%":  shifted(uinput.Key5),
		"^":  shifted(uinput.Key6),
		"&":  shifted(uinput.Key7),
		"*":  shifted(uinput.Key8),
		"(":  shifted(uinput.Key9),
		")":  shifted(uinput.Key0),
		"_":  shifted(uinput.KeyMinus),
		"+":  shifted(uinput.KeyEqual),
		"{":  shifted(uinput.KeyLeftbrace),
		"}":  shifted(uinput.KeyRightbrace),
		"|":  shifted(uinput.KeyBackslash),
		":":  shifted(uinput.KeySemicolon),
		"\"": shifted(uinput.KeyApostrophe),
		"<":  shifted(uinput.KeyComma),
		">":  shifted(uinput.KeyDot),
		"?":  shifted(uinput.KeySlash),

		// named keys
		"space":       plain(uinput.KeySpace),
		"enter":       plain(uinput.KeyEnter),
		"return":      plain(uinput.KeyEnter),
		"tab":         plain(uinput.KeyTab),
		"backspace":   plain(uinput.KeyBackspace),
		"esc":         plain(uinput.KeyEsc),
		"escape":      plain(uinput.KeyEsc),
		"delete":      plain(uinput.KeyDelete),
		"del":         plain(uinput.KeyDelete),
		"insert":      plain(uinput.KeyInsert),
		"home":        plain(uinput.KeyHome),
		"end":         plain(uinput.KeyEnd),
		"pageup":      plain(uinput.KeyPageup),
		"pgup":        plain(uinput.KeyPageup),
		"pagedown":    plain(uinput.KeyPagedown),
		"pgdn":        plain(uinput.KeyPagedown),
		"up":          plain(uinput.KeyUp),
		"down":        plain(uinput.KeyDown),
		"left":        plain(uinput.KeyLeft),
		"right":       plain(uinput.KeyRight),
		"shift":       plain(uinput.KeyLeftshift),
		"shiftleft":   plain(uinput.KeyLeftshift),
		"shiftright":  plain(uinput.KeyRightshift),
		"ctrl":        plain(uinput.KeyLeftctrl),
		"ctrlleft":    plain(uinput.KeyLeftctrl),
		"ctrlright":   plain(uinput.KeyRightctrl),
		"alt":         plain(uinput.KeyLeftalt),
		"altleft":     plain(uinput.KeyLeftalt),
		"altright":    plain(uinput.KeyRightalt),
		"option":      plain(uinput.KeyLeftalt),
		"win":         plain(uinput.KeyLeftmeta),
		"winleft":     plain(uinput.KeyLeftmeta),
		"winright":    plain(uinput.KeyRightmeta),
		"super":       plain(uinput.KeyLeftmeta),
		"command":     plain(uinput.KeyLeftmeta),
		"apps":        plain(uinput.KeyCompose),
		"capslock":    plain(uinput.KeyCapslock),
		"numlock":     plain(uinput.KeyNumlock),
		"scrolllock":  plain(uinput.KeyScrolllock),
		"printscreen": plain(uinput.KeySysrq),
		"prtsc":       plain(uinput.KeySysrq),
		"prtscr":      plain(uinput.KeySysrq),
		"print":       plain(uinput.KeySysrq),
		"pause":       plain(uinput.KeyPause),
		"volumemute":  plain(uinput.KeyMute),
		"volumedown":  plain(uinput.KeyVolumedown),
		"volumeup":    plain(uinput.KeyVolumeup),
		"playpause":   plain(uinput.KeyPlaypause),
		"nexttrack":   plain(uinput.KeyNextsong),
		"prevtrack":   plain(uinput.KeyPrevioussong),
		"stop":        plain(uinput.KeyStopcd),

		"browserback":    plain(uinput.KeyBack),
		"browserforward": plain(uinput.KeyForward),

		// keypad
		"num0":      plain(uinput.KeyKp0),
		"num1":      plain(uinput.KeyKp1),
		"num2":      plain(uinput.KeyKp2),
		"num3":      plain(uinput.KeyKp3),
		"num4":      plain(uinput.KeyKp4),
		"num5":      plain(uinput.KeyKp5),
		"num6":      plain(uinput.KeyKp6),
		"num7":      plain(uinput.KeyKp7),
		"num8":      plain(uinput.KeyKp8),
		"num9":      plain(uinput.KeyKp9),
		"multiply":  plain(uinput.KeyKpasterisk),
		"add":       plain(uinput.KeyKpplus),
		"subtract":  plain(uinput.KeyKpminus),
		"decimal":   plain(uinput.KeyKpdot),
		"divide":    plain(uinput.KeyKpslash),
		"separator": plain(uinput.KeyKpcomma),
	}

	letters := []int{
		uinput.KeyA, uinput.KeyB, uinput.KeyC, uinput.KeyD, uinput.KeyE, uinput.KeyF,
		uinput.KeyG, uinput.KeyH, uinput.KeyI, uinput.KeyJ, uinput.KeyK, uinput.KeyL,
		uinput.KeyM, uinput.KeyN, uinput.KeyO, uinput.KeyP, uinput.KeyQ, uinput.KeyR,
		uinput.KeyS, uinput.KeyT, uinput.KeyU, uinput.KeyV, uinput.KeyW, uinput.KeyX,
		uinput.KeyY, uinput.KeyZ,
	}
	for i, code := range letters {
		m[string(rune('a'+i))] = plain(code)
		m[string(rune('A'+i))] = shifted(code)
	}

	digits := []int{
		uinput.Key0, uinput.Key1, uinput.Key2, uinput.Key3, uinput.Key4,
		uinput.Key5, uinput.Key6, uinput.Key7, uinput.Key8, uinput.Key9,
	}
	for i, code := range digits {
		m[string(rune('0'+i))] = plain(code)
	}

	fkeys := []int{
		uinput.KeyF1, uinput.KeyF2, uinput.KeyF3, uinput.KeyF4, uinput.KeyF5, uinput.KeyF6,
		uinput.KeyF7, uinput.KeyF8, uinput.KeyF9, uinput.KeyF10, uinput.KeyF11, uinput.KeyF12,
		uinput.KeyF13, uinput.KeyF14, uinput.KeyF15, uinput.KeyF16, uinput.KeyF17, uinput.KeyF18,
		uinput.KeyF19, uinput.KeyF20, uinput.KeyF21, uinput.KeyF22, uinput.KeyF23, uinput.KeyF24,
	}
	for i, code := range fkeys {
		m[fmt.Sprintf("f%d", i+1)] = plain(code)
	}

	return m
}
