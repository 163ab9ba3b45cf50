package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/bnema/waygui/internal/config"
	"github.com/bnema/waygui/internal/logger"
	"github.com/bnema/waygui/internal/ui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage waygui configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, ui.FormatField("Config file", config.GetConfigPath()))

		fmt.Fprintln(out, "\n"+ui.HeaderStyle.Render("[backend]"))
		fmt.Fprintln(out, ui.FormatField("Transport", cfg.Backend.Transport))
		fmt.Fprintln(out, ui.FormatField("Socket", orDefault(cfg.Backend.SocketPath, "(discover)")))
		fmt.Fprintln(out, ui.FormatField("App name", cfg.Backend.AppName))
		fmt.Fprintln(out, ui.FormatField("Fallback", cfg.Backend.FallbackNoop))
		fmt.Fprintln(out, ui.FormatField("Strict", cfg.Backend.Strict))
		fmt.Fprintln(out, ui.FormatField("Timeout", cfg.Backend.ConnectTimeout))
		fmt.Fprintln(out, ui.FormatField("Scroll step", cfg.Backend.ScrollStepDelay))
		fmt.Fprintln(out, ui.FormatField("uinput", cfg.Backend.UinputPath))

		fmt.Fprintln(out, "\n"+ui.HeaderStyle.Render("[display]"))
		fmt.Fprintln(out, ui.FormatField("Provider", cfg.Display.Provider))
		fmt.Fprintln(out, ui.FormatField("Fallback", fmt.Sprintf("%dx%d", cfg.Display.DefaultWidth, cfg.Display.DefaultHeight)))
		fmt.Fprintln(out, ui.FormatField("Refresh", cfg.Display.RefreshInterval))

		fmt.Fprintln(out, "\n"+ui.HeaderStyle.Render("[server]"))
		fmt.Fprintln(out, ui.FormatField("Bind", cfg.Server.BindAddress))
		fmt.Fprintln(out, ui.FormatField("WebSocket", wsSummary(cfg.Server)))
		fmt.Fprintln(out, ui.FormatField("SSH", cfg.Server.SSHPort))
		fmt.Fprintln(out, ui.FormatField("Host key", cfg.Server.SSHHostKeyPath))
		fmt.Fprintln(out, ui.FormatField("Whitelist", strings.Join(cfg.Server.SSHWhitelist, ", ")))
		fmt.Fprintln(out, ui.FormatField("Only", cfg.Server.SSHWhitelistOnly))

		fmt.Fprintln(out, "\n"+ui.HeaderStyle.Render("[logging]"))
		fmt.Fprintln(out, ui.FormatField("Level", orDefault(cfg.Logging.LogLevel, "(LOG_LEVEL)")))
		fmt.Fprintln(out, ui.FormatField("File", cfg.Logging.FileLogging))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.GetConfigPath())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file with defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.GetConfigPath()
		if _, err := os.Stat(configPath); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				logger.Infof("Configuration file already exists at: %s", configPath)
				logger.Info("Use --force to overwrite")
				return nil
			}
		}

		if err := config.Save(); err != nil {
			return err
		}

		logger.Infof("Configuration initialized at: %s", configPath)
		return nil
	},
}

var configSSHCmd = &cobra.Command{
	Use:   "ssh",
	Short: "Manage the SSH key whitelist",
}

var configSSHListCmd = &cobra.Command{
	Use:   "list",
	Short: "List whitelisted SSH keys",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Get()
		out := cmd.OutOrStdout()

		if len(cfg.Server.SSHWhitelist) == 0 {
			fmt.Fprintln(out, ui.MutedStyle.Italic(true).Render("No SSH keys in whitelist"))
		}
		for i, fp := range cfg.Server.SSHWhitelist {
			fmt.Fprintf(out, "%d. %s\n", i+1, fp)
		}

		mode := "DISABLED, all keys are accepted"
		if cfg.Server.SSHWhitelistOnly {
			mode = "ENABLED, new keys need approval"
		}
		fmt.Fprintln(out, ui.FormatField("Whitelist-only", mode))
	},
}

var configSSHAddCmd = &cobra.Command{
	Use:   "add <fingerprint>",
	Short: "Whitelist an SSH key fingerprint (SHA256:...)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !strings.HasPrefix(args[0], "SHA256:") {
			return fmt.Errorf("expected a SHA256 fingerprint, got %q", args[0])
		}
		if err := config.AddSSHKeyToWhitelist(args[0]); err != nil {
			return err
		}
		logger.Infof("Added SSH key to whitelist: %s", args[0])
		return nil
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing config file")

	configSSHCmd.AddCommand(configSSHListCmd, configSSHAddCmd)
	configCmd.AddCommand(configShowCmd, configPathCmd, configInitCmd, configSSHCmd)
	rootCmd.AddCommand(configCmd)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func wsSummary(s config.ServerConfig) string {
	state := "disabled"
	if s.WSEnabled {
		state = "enabled"
	}
	token := "no token"
	if s.WSToken != "" {
		token = "token set"
	}
	return fmt.Sprintf("%d (%s, %s)", s.WSPort, state, token)
}
