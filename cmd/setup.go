package cmd

import (
	"fmt"

	"github.com/bnema/waygui/internal/config"
	"github.com/bnema/waygui/internal/setup"
	"github.com/bnema/waygui/internal/ui"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Check the environment and choose an input transport",
	Long: `Report which input transports look usable on this machine, then walk
through choosing the transport and screen-size provider. The answers are
saved to the config file.

Pass --check to only print the report.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().Bool("check", false, "only report, do not prompt")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.FormatHeader("waygui setup"))

	cfg := config.Get()
	for _, c := range setup.CheckEnvironment(cfg.Backend) {
		fmt.Fprintln(out, ui.FormatResult(c.OK, c.Name, c.Info))
	}
	fmt.Fprintln(out)

	if only, _ := cmd.Flags().GetBool("check"); only {
		return nil
	}
	return setup.RunInteractiveSetup()
}
