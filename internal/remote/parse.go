package remote

import (
	"fmt"
	"strconv"
	"strings"
)

// opAliases maps the lower-cased words accepted in text commands to ops
var opAliases = map[string]string{
	"move":      OpMoveTo,
	"moveto":    OpMoveTo,
	"down":      OpMouseDown,
	"mousedown": OpMouseDown,
	"up":        OpMouseUp,
	"mouseup":   OpMouseUp,
	"click":     OpClick,
	"drag":      OpDrag,
	"scroll":    OpScroll,
	"vscroll":   OpVScroll,
	"hscroll":   OpHScroll,
	"keydown":   OpKeyDown,
	"keyup":     OpKeyUp,
	"press":     OpPress,
	"hotkey":    OpHotkey,
	"write":     OpWrite,
	"type":      OpWrite,
	"position":  OpPosition,
	"size":      OpSize,
}

// ParseLine reads one text command, for example "click 10 20 right",
// "scroll -3", "hotkey ctrl c" or "write hello world".
func ParseLine(line string) (Command, error) {
	line = strings.TrimSpace(line)
	word, rest, _ := strings.Cut(line, " ")
	if word == "" {
		return Command{}, fmt.Errorf("empty command")
	}

	op, ok := opAliases[strings.ToLower(word)]
	if !ok {
		return Command{}, fmt.Errorf("%w %q", ErrUnknownOp, word)
	}
	cmd := Command{Op: op}
	args := strings.Fields(rest)

	var err error
	switch op {
	case OpMoveTo:
		if len(args) != 2 {
			return cmd, fmt.Errorf("%s needs x y", word)
		}
		cmd.X, cmd.Y, err = parsePoint(args)
	case OpMouseDown, OpMouseUp, OpClick, OpDrag:
		if len(args) >= 2 {
			cmd.X, cmd.Y, err = parsePoint(args[:2])
			args = args[2:]
		} else if op == OpDrag {
			return cmd, fmt.Errorf("%s needs x y", word)
		}
		if len(args) > 0 {
			cmd.Button = ButtonArg(args[0])
		}
		if op == OpClick && len(args) > 1 {
			cmd.Clicks, err = strconv.Atoi(args[1])
		}
	case OpScroll, OpVScroll, OpHScroll:
		if len(args) != 1 && len(args) != 3 {
			return cmd, fmt.Errorf("%s needs clicks [x y]", word)
		}
		if cmd.Clicks, err = strconv.Atoi(args[0]); err != nil {
			break
		}
		if len(args) == 3 {
			cmd.X, cmd.Y, err = parsePoint(args[1:])
		}
	case OpKeyDown, OpKeyUp:
		if len(args) != 1 {
			return cmd, fmt.Errorf("%s needs one key", word)
		}
		cmd.Key = args[0]
	case OpPress, OpHotkey:
		if len(args) == 0 {
			return cmd, fmt.Errorf("%s needs at least one key", word)
		}
		cmd.Keys = args
	case OpWrite:
		cmd.Text = rest
	}

	if err != nil {
		return cmd, fmt.Errorf("invalid %s arguments: %w", word, err)
	}
	return cmd, nil
}

func parsePoint(args []string) (*int, *int, error) {
	x, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, nil, err
	}
	y, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, nil, err
	}
	return &x, &y, nil
}
