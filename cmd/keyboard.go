package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bnema/waygui/internal/remote"
	"github.com/spf13/cobra"
)

var intervalFlag time.Duration

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Press or release individual keys",
	Long: `Key names follow the usual automation vocabulary: letters, digits,
punctuation, enter, tab, esc, f1-f24, ctrl, shift, alt, win, arrows and so on.
Unknown names are ignored.`,
}

var keyDownCmd = &cobra.Command{
	Use:   "down <key>",
	Short: "Hold a key down",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return dispatch(cmd, remote.Command{Op: remote.OpKeyDown, Key: args[0]})
	},
}

var keyUpCmd = &cobra.Command{
	Use:   "up <key>",
	Short: "Release a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return dispatch(cmd, remote.Command{Op: remote.OpKeyUp, Key: args[0]})
	},
}

var keyPressCmd = &cobra.Command{
	Use:   "press <key>...",
	Short: "Press and release each key in turn",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return dispatch(cmd, remote.Command{Op: remote.OpPress, Keys: args})
	},
}

var hotkeyCmd = &cobra.Command{
	Use:   "hotkey <key>...",
	Short: "Press a key combination, for example: hotkey ctrl shift t",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return dispatch(cmd, remote.Command{Op: remote.OpHotkey, Keys: args})
	},
}

var typeCmd = &cobra.Command{
	Use:     "type [text]",
	Aliases: []string{"write"},
	Short:   "Type text, read from stdin when no argument is given",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var text string
		if len(args) == 1 {
			text = args[0]
		} else {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			text = strings.TrimSuffix(string(data), "\n")
		}
		return dispatch(cmd, remote.Command{Op: remote.OpWrite, Text: text, Interval: intervalFlag.Seconds()})
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run text commands from stdin, one per line",
	Long: `Run a script of text commands such as:

  move 100 200
  click
  type hello
  hotkey ctrl s

Blank lines and lines starting with # are skipped. The backend connects
once for the whole script.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScript(cmd, cmd.InOrStdin())
	},
}

func init() {
	typeCmd.Flags().DurationVarP(&intervalFlag, "interval", "i", 0, "pause between characters")

	keyCmd.AddCommand(keyDownCmd, keyUpCmd, keyPressCmd)
	rootCmd.AddCommand(keyCmd, hotkeyCmd, typeCmd, runCmd)
}

func runScript(cmd *cobra.Command, r io.Reader) error {
	var commands []remote.Command
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		c, err := remote.ParseLine(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		commands = append(commands, c)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	return dispatch(cmd, commands...)
}
