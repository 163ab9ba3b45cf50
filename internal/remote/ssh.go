package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/bnema/waygui/internal/config"
	"github.com/bnema/waygui/internal/logger"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	gossh "golang.org/x/crypto/ssh"
)

// SSHServer runs automation commands for clients whose public key is
// whitelisted. "ssh host -- click 10 20" runs one text command; a
// session without a command exchanges length-prefixed protobuf frames.
type SSHServer struct {
	addr        string
	hostKeyPath string
	backend     Backend
	sshServer   *ssh.Server

	// OnAuthRequest approves keys missing from the whitelist when
	// whitelist-only mode is on. Approved keys are saved.
	OnAuthRequest func(addr, fingerprint string) bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSSHServer creates a new SSH server on addr
func NewSSHServer(addr, hostKeyPath string, backend Backend) *SSHServer {
	return &SSHServer{
		addr:        addr,
		hostKeyPath: hostKeyPath,
		backend:     backend,
		stop:        make(chan struct{}),
	}
}

// Start begins listening for SSH connections
func (s *SSHServer) Start(ctx context.Context) error {
	server, err := wish.NewServer(
		wish.WithAddress(s.addr),
		wish.WithHostKeyPath(s.hostKeyPath),
		wish.WithPublicKeyAuth(s.publicKeyAuth),
		wish.WithMiddleware(
			s.sessionHandler(ctx),
			s.loggingMiddleware(),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create SSH server: %w", err)
	}
	s.sshServer = server

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		logger.Infof("SSH server listening on %s", s.addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			logger.Errorf("SSH server error: %v", err)
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stop:
		}
	}()
	return nil
}

// Stop shuts down the SSH server
func (s *SSHServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.sshServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.sshServer.Shutdown(ctx)
		}
		s.wg.Wait()
	})
}

func (s *SSHServer) publicKeyAuth(ctx ssh.Context, key ssh.PublicKey) bool {
	var goKey gossh.PublicKey
	if k, ok := key.(gossh.PublicKey); ok {
		goKey = k
	} else {
		parsed, err := gossh.ParsePublicKey(key.Marshal())
		if err != nil {
			logger.Errorf("Failed to parse public key: %v", err)
			return false
		}
		goKey = parsed
	}

	fingerprint := gossh.FingerprintSHA256(goKey)
	addr := ctx.RemoteAddr().String()
	logger.Infof("SSH authentication attempt addr=%s user=%s key=%s", addr, ctx.User(), fingerprint)

	return s.authorize(addr, fingerprint)
}

func (s *SSHServer) authorize(addr, fingerprint string) bool {
	if config.IsSSHKeyWhitelisted(fingerprint) {
		return true
	}
	if !config.Get().Server.SSHWhitelistOnly {
		logger.Info("Accepting SSH key (whitelist-only mode disabled)")
		return true
	}

	if s.OnAuthRequest != nil && s.OnAuthRequest(addr, fingerprint) {
		if err := config.AddSSHKeyToWhitelist(fingerprint); err != nil {
			logger.Errorf("Failed to add key to whitelist: %v", err)
		}
		logger.Infof("SSH key approved key=%s addr=%s", fingerprint, addr)
		return true
	}

	logger.Infof("SSH key denied key=%s addr=%s", fingerprint, addr)
	return false
}

func (s *SSHServer) loggingMiddleware() wish.Middleware {
	return func(h ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			logger.Debugf("SSH session started: user=%s addr=%s", sess.User(), sess.RemoteAddr())
			h(sess)
			logger.Debugf("SSH session ended: addr=%s", sess.RemoteAddr())
		}
	}
}

func (s *SSHServer) sessionHandler(ctx context.Context) wish.Middleware {
	return func(h ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			if args := sess.Command(); len(args) > 0 {
				code := s.runExec(ctx, sess, strings.Join(args, " "))
				_ = sess.Exit(code)
				return
			}

			done := make(chan struct{})
			defer close(done)
			go func() {
				select {
				case <-ctx.Done():
				case <-s.stop:
				case <-done:
					return
				}
				_ = sess.Close()
			}()

			if err := s.serveStream(ctx, sess); err != nil {
				logger.Debugf("SSH stream from %s ended: %v", sess.RemoteAddr(), err)
			}
		}
	}
}

// runExec runs one text command and returns the exit status
func (s *SSHServer) runExec(ctx context.Context, w io.Writer, line string) int {
	cmd, err := ParseLine(line)
	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
		return 2
	}

	res := Dispatch(ctx, s.backend, cmd)
	fmt.Fprintln(w, res.String())
	if !res.OK {
		return 1
	}
	return 0
}

// serveStream answers framed commands until EOF
func (s *SSHServer) serveStream(ctx context.Context, rw io.ReadWriter) error {
	return ServeFrames(ctx, s.backend, rw)
}
