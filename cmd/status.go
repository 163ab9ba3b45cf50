package cmd

import (
	"context"
	"fmt"

	"github.com/bnema/waygui/internal/remote"
	"github.com/bnema/waygui/internal/session"
	"github.com/bnema/waygui/internal/ui"
	"github.com/spf13/cobra"
)

var positionCmd = &cobra.Command{
	Use:   "position",
	Short: "Print the pointer position as \"x y\"",
	Long: `Print the cursor position reported by the compositor (hyprctl) or X
server (xdotool). When 'waygui serve' is running its last-known position is
printed instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return dispatch(cmd, remote.Command{Op: remote.OpPosition})
	},
}

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Print the screen size as \"width height\"",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return dispatch(cmd, remote.Command{Op: remote.OpSize})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the backend state without emitting input",
	Long: `Show which transport would be used, the screen size and the cursor
position. Pass --connect to open a session first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		connect, _ := cmd.Flags().GetBool("connect")
		return withBackend(cmd, func(ctx context.Context, b *session.Backend) error {
			if connect {
				if err := b.EnsureConnected(ctx); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), ui.FormatResult(false, "Connect", err.Error()))
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderStatus(b.Status(ctx)))
			return nil
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Open an input session and report whether it works",
	Long: `Connect with the configured transport and report the result. With the
portal transport this shows the consent dialog; the spinner runs until it is
answered or the connect timeout passes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(ctx context.Context, b *session.Backend) error {
			err := ui.RunConnect(cmd.OutOrStdout(), "Opening input session", func() error {
				return b.EnsureConnected(ctx)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderStatus(b.Status(ctx)))
			return nil
		})
	},
}

func init() {
	statusCmd.Flags().Bool("connect", false, "open an input session before reporting")
	rootCmd.AddCommand(positionCmd, sizeCmd, statusCmd, checkCmd)
}
