package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnema/waygui/internal/config"
	"github.com/bnema/waygui/internal/ipc"
	"github.com/bnema/waygui/internal/logger"
	"github.com/bnema/waygui/internal/remote"
	"github.com/bnema/waygui/internal/session"
	"github.com/bnema/waygui/internal/transport"
	"github.com/bnema/waygui/internal/ui"
	"github.com/spf13/cobra"
)

var (
	configPath    string
	transportFlag string
	dryRun        bool
	directFlag    bool

	rootCmd = &cobra.Command{
		Use:   "waygui",
		Short: "waygui - desktop GUI automation for Wayland",
		Long: `waygui moves the pointer, clicks, scrolls and types on a Wayland desktop.

Input is emulated through libei, either via the RemoteDesktop portal or a
direct EIS socket, with uinput as a fallback. Commands can be run one at a
time from the shell or served over WebSocket and SSH with 'waygui serve'.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

// Execute runs the root command
func Execute() error {
	defer logger.Close()
	rootCmd.Version = Version
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/waygui/waygui.toml)")
	rootCmd.PersistentFlags().StringVarP(&transportFlag, "transport", "t", "", "input transport: auto, portal, socket, uinput, noop")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "record events and print them instead of emitting")
	rootCmd.PersistentFlags().BoolVar(&directFlag, "direct", false, "open a session here even when 'waygui serve' is running")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	config.SetConfigPath(configPath)
	if err := config.Init(); err != nil {
		return err
	}

	cfg := config.Get()
	if cfg.Logging.LogLevel != "" {
		logger.SetLevel(cfg.Logging.LogLevel)
	}
	if cfg.Logging.FileLogging {
		if err := logger.EnableFileLogging(); err != nil {
			logger.Warnf("File logging disabled: %v", err)
		}
	}

	if transportFlag != "" {
		cfg.Backend.Transport = transportFlag
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// commandContext is cancelled on SIGINT and SIGTERM
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// newBackend builds the backend from config. With --dry-run every
// transport is replaced by a recorder, which is returned too.
func newBackend() (*session.Backend, *transport.Recorder, error) {
	opts, err := session.OptionsFromConfig(config.Get())
	if err != nil {
		return nil, nil, err
	}

	var rec *transport.Recorder
	if dryRun {
		rec = transport.NewRecorder()
		opts.Transports = []transport.Transport{rec}
		opts.FallbackNoop = false
	}
	return session.New(opts), rec, nil
}

// withBackend runs fn against a fresh backend and closes it afterwards.
// The last-known position starts at the real cursor when the display
// provider can report it.
func withBackend(cmd *cobra.Command, fn func(ctx context.Context, b *session.Backend) error) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	b, rec, err := newBackend()
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Debugf("Closing backend: %v", err)
		}
	}()

	if _, err := b.SyncPosition(ctx); err != nil {
		logger.Debugf("Cursor position unknown: %v", err)
	}

	err = fn(ctx, b)
	if b.Degraded() {
		fmt.Fprintln(cmd.ErrOrStderr(), ui.FormatWarning("no input transport available, events were dropped"))
	}
	if rec != nil {
		fmt.Fprintln(cmd.OutOrStdout(), ui.RenderEvents(rec.Events()))
	}
	return err
}

// daemonClient returns a client for a running "waygui serve", or nil
// when commands should run in this process
func daemonClient() *ipc.Client {
	if dryRun || directFlag {
		return nil
	}
	client, err := ipc.NewClient("", config.Get().Backend.ConnectTimeout+time.Minute)
	if err != nil || !client.Running() {
		return nil
	}
	logger.Debug("Forwarding to running waygui serve")
	return client
}

// dispatch runs commands through a running server when there is one,
// otherwise against a local backend. Results that carry data are printed.
func dispatch(cmd *cobra.Command, commands ...remote.Command) error {
	if client := daemonClient(); client != nil {
		for _, c := range commands {
			res, err := client.Send(c)
			if err != nil {
				return err
			}
			if err := printResult(cmd, c, res); err != nil {
				return err
			}
		}
		return nil
	}

	return withBackend(cmd, func(ctx context.Context, b *session.Backend) error {
		for _, c := range commands {
			if err := printResult(cmd, c, remote.Dispatch(ctx, b, c)); err != nil {
				return err
			}
		}
		return nil
	})
}

func printResult(cmd *cobra.Command, c remote.Command, res remote.Result) error {
	if !res.OK {
		return fmt.Errorf("%s: %s", c.Op, res.Error)
	}
	if res.X != nil || res.Width != nil {
		fmt.Fprintln(cmd.OutOrStdout(), res.String())
	}
	return nil
}
