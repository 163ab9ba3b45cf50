package cmd

import (
	"fmt"
	"strconv"

	"github.com/bnema/waygui/internal/remote"
	"github.com/spf13/cobra"
)

var (
	buttonFlag string
	clicksFlag int
	fromFlag   []int
)

var moveCmd = &cobra.Command{
	Use:     "move <x> <y>",
	Aliases: []string{"moveto"},
	Short:   "Move the pointer to absolute screen coordinates",
	Long: `Move the pointer to x,y in screen pixels. Coordinates outside the
screen are clamped to the nearest edge.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, y, err := parseXY(args)
		if err != nil {
			return err
		}
		return dispatch(cmd, remote.Command{Op: remote.OpMoveTo, X: x, Y: y})
	},
}

var clickCmd = &cobra.Command{
	Use:   "click [x y]",
	Short: "Click a mouse button",
	Long: `Click at x,y, or at the current pointer position when no coordinates
are given. Buttons: left, middle, right or 1-7, where 4-7 are the side,
extra, forward and back buttons. The uinput transport only has left,
middle and right, and fails on 4-7.`,
	Args: optionalXY,
	RunE: func(cmd *cobra.Command, args []string) error {
		x, y, err := parseXY(args)
		if err != nil {
			return err
		}
		return dispatch(cmd, remote.Command{
			Op:     remote.OpClick,
			X:      x,
			Y:      y,
			Button: remote.ButtonArg(buttonFlag),
			Clicks: clicksFlag,
		})
	},
}

var mouseDownCmd = &cobra.Command{
	Use:   "down [x y]",
	Short: "Press a mouse button without releasing it",
	Args:  optionalXY,
	RunE: func(cmd *cobra.Command, args []string) error {
		return buttonCommand(cmd, remote.OpMouseDown, args)
	},
}

var mouseUpCmd = &cobra.Command{
	Use:   "up [x y]",
	Short: "Release a mouse button",
	Args:  optionalXY,
	RunE: func(cmd *cobra.Command, args []string) error {
		return buttonCommand(cmd, remote.OpMouseUp, args)
	},
}

var dragCmd = &cobra.Command{
	Use:   "drag <x> <y>",
	Short: "Press a button, move to x,y and release",
	Long: `Drag from the current pointer position, or from --from x,y, to the
given coordinates.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, y, err := parseXY(args)
		if err != nil {
			return err
		}
		if len(fromFlag) != 0 && len(fromFlag) != 2 {
			return fmt.Errorf("--from needs x,y")
		}

		var commands []remote.Command
		if len(fromFlag) == 2 {
			commands = append(commands, remote.Command{Op: remote.OpMoveTo, X: &fromFlag[0], Y: &fromFlag[1]})
		}
		commands = append(commands, remote.Command{Op: remote.OpDrag, X: x, Y: y, Button: remote.ButtonArg(buttonFlag)})
		return dispatch(cmd, commands...)
	},
}

var scrollCmd = &cobra.Command{
	Use:     "scroll <clicks> [x y]",
	Aliases: []string{"vscroll"},
	Short:   "Scroll vertically by wheel clicks, positive is up",
	Long: `Scroll vertically by wheel clicks, positive is up. Put -- before a
negative count: waygui scroll -- -3`,
	Args: cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return scrollCommand(cmd, remote.OpVScroll, args)
	},
}

var hscrollCmd = &cobra.Command{
	Use:   "hscroll <clicks> [x y]",
	Short: "Scroll horizontally by wheel clicks, positive is right",
	Args:  cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return scrollCommand(cmd, remote.OpHScroll, args)
	},
}

func init() {
	for _, c := range []*cobra.Command{clickCmd, mouseDownCmd, mouseUpCmd, dragCmd} {
		c.Flags().StringVarP(&buttonFlag, "button", "b", "left", "mouse button")
	}
	clickCmd.Flags().IntVarP(&clicksFlag, "clicks", "n", 1, "number of clicks")
	dragCmd.Flags().IntSliceVar(&fromFlag, "from", nil, "start position as x,y")

	rootCmd.AddCommand(moveCmd, clickCmd, mouseDownCmd, mouseUpCmd, dragCmd, scrollCmd, hscrollCmd)
}

func buttonCommand(cmd *cobra.Command, op string, args []string) error {
	x, y, err := parseXY(args)
	if err != nil {
		return err
	}
	return dispatch(cmd, remote.Command{Op: op, X: x, Y: y, Button: remote.ButtonArg(buttonFlag)})
}

func scrollCommand(cmd *cobra.Command, op string, args []string) error {
	clicks, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid clicks %q", args[0])
	}
	if len(args) == 2 {
		return fmt.Errorf("scroll position needs both x and y")
	}
	x, y, err := parseXY(args[1:])
	if err != nil {
		return err
	}
	return dispatch(cmd, remote.Command{Op: op, Clicks: clicks, X: x, Y: y})
}

// optionalXY accepts no arguments or exactly two
func optionalXY(cmd *cobra.Command, args []string) error {
	if len(args) != 0 && len(args) != 2 {
		return fmt.Errorf("expected no arguments or x y, got %d arguments", len(args))
	}
	return nil
}

// parseXY parses "x y"; empty args give nil coordinates
func parseXY(args []string) (*int, *int, error) {
	if len(args) == 0 {
		return nil, nil, nil
	}
	x, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("invalid x %q", args[0])
	}
	y, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, nil, fmt.Errorf("invalid y %q", args[1])
	}
	return &x, &y, nil
}
