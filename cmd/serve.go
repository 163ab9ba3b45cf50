package cmd

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/bnema/waygui/internal/config"
	"github.com/bnema/waygui/internal/ipc"
	"github.com/bnema/waygui/internal/logger"
	"github.com/bnema/waygui/internal/remote"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveBind    string
	serveWSPort  int
	serveSSHPort int
	serveWS      bool
	serveNoSSH   bool
	serveApprove bool
	serveNoIPC   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve automation commands over SSH and WebSocket",
	Long: `Keep one input session open and accept commands from other processes.

SSH clients either run one text command (ssh -p 52531 host click 10 20) or
open a session and exchange length-prefixed protobuf frames.

The WebSocket endpoint is off unless --ws or server.ws_enabled is set, and
then needs server.ws_token (or WAYGUI_SERVER_WS_TOKEN). Clients send the
token as "Authorization: Bearer <token>" or ?token=, then JSON such as
{"op":"click","x":10,"y":20} to /ws.

Other waygui commands on this machine are forwarded to the running server
over a unix socket, so they share its session (pass --direct to opt out).

SSH keys must be whitelisted unless ssh_whitelist_only is off. With
--approve, unknown keys are offered for approval on this terminal.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveBind, "bind", "b", "", "bind address")
	serveCmd.Flags().IntVar(&serveWSPort, "ws-port", 0, "WebSocket port")
	serveCmd.Flags().IntVar(&serveSSHPort, "ssh-port", 0, "SSH port")
	serveCmd.Flags().BoolVar(&serveWS, "ws", false, "enable the WebSocket endpoint")
	serveCmd.Flags().BoolVar(&serveNoSSH, "no-ssh", false, "disable the SSH endpoint")
	serveCmd.Flags().BoolVar(&serveNoIPC, "no-ipc", false, "do not accept commands from local waygui invocations")
	serveCmd.Flags().BoolVar(&serveApprove, "approve", false, "prompt to approve unknown SSH keys")

	_ = viper.BindPFlag("server.bind_address", serveCmd.Flags().Lookup("bind"))
	_ = viper.BindPFlag("server.ws_port", serveCmd.Flags().Lookup("ws-port"))
	_ = viper.BindPFlag("server.ssh_port", serveCmd.Flags().Lookup("ssh-port"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	wsOn := serveWS || cfg.Server.WSEnabled
	if !wsOn && serveNoSSH && serveNoIPC {
		return fmt.Errorf("nothing to serve: every endpoint is disabled")
	}
	if wsOn && cfg.Server.WSToken == "" {
		return fmt.Errorf("the WebSocket endpoint needs server.ws_token")
	}

	if serveBind != "" {
		cfg.Server.BindAddress = serveBind
	}
	if serveWSPort != 0 {
		cfg.Server.WSPort = serveWSPort
	}
	if serveSSHPort != 0 {
		cfg.Server.SSHPort = serveSSHPort
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	b, rec, err := newBackend()
	if err != nil {
		return err
	}
	defer b.Close()
	if rec != nil {
		logger.Info("Dry run: events are recorded, not emitted")
	}

	if err := b.EnsureConnected(ctx); err != nil {
		// The backend reconnects lazily on the first command.
		logger.Warnf("Input session not ready: %v", err)
	} else if st := b.Status(ctx); st.Degraded {
		logger.Warn("No input transport available, events will be dropped")
	} else {
		logger.Infof("Input session open via %s", st.Transport)
	}

	if _, err := b.SyncPosition(ctx); err != nil {
		logger.Debugf("Cursor position unknown: %v", err)
	}

	if !serveNoIPC {
		sock, err := ipc.NewSocketServer("", b)
		if err != nil {
			return err
		}
		if err := sock.Start(ctx); err != nil {
			return fmt.Errorf("failed to start IPC socket: %w", err)
		}
		defer sock.Stop()
	}

	if wsOn {
		ws := remote.NewWSServer(net.JoinHostPort(cfg.Server.BindAddress, strconv.Itoa(cfg.Server.WSPort)), cfg.Server.WSToken, b)
		if err := ws.Start(ctx); err != nil {
			return fmt.Errorf("failed to start WebSocket server: %w", err)
		}
		defer ws.Stop()
	}

	if !serveNoSSH {
		ssh := remote.NewSSHServer(net.JoinHostPort(cfg.Server.BindAddress, strconv.Itoa(cfg.Server.SSHPort)), cfg.Server.SSHHostKeyPath, b)
		if serveApprove {
			ssh.OnAuthRequest = promptApproval()
		}
		if err := ssh.Start(ctx); err != nil {
			return fmt.Errorf("failed to start SSH server: %w", err)
		}
		defer ssh.Stop()
	}

	<-ctx.Done()
	logger.Info("Shutting down")
	return nil
}

// promptApproval asks on the terminal whether to accept an unknown key.
// Prompts are serialized; an unanswered prompt denies after 30 seconds.
func promptApproval() func(addr, fingerprint string) bool {
	var mu sync.Mutex
	return func(addr, fingerprint string) bool {
		mu.Lock()
		defer mu.Unlock()

		var approved bool
		confirm := huh.NewConfirm().
			Title(fmt.Sprintf("Allow SSH key from %s?", addr)).
			Description(fingerprint).
			Affirmative("Allow").
			Negative("Deny").
			Value(&approved)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := huh.NewForm(huh.NewGroup(confirm)).RunWithContext(ctx); err != nil {
			logger.Warnf("SSH approval for %s denied: %v", addr, err)
			return false
		}
		return approved
	}
}
