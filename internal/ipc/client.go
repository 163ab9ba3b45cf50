package ipc

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/bnema/waygui/internal/logger"
	"github.com/bnema/waygui/internal/remote"
)

// ErrNotRunning is returned when no server listens on the socket
var ErrNotRunning = errors.New("waygui serve is not running")

// Client sends commands to a running server. Each Send uses its own
// connection.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for path, or for the default socket when
// path is empty
func NewClient(path string, timeout time.Duration) (*Client, error) {
	if path == "" {
		var err error
		if path, err = SocketPath(); err != nil {
			return nil, err
		}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{socketPath: path, timeout: timeout}, nil
}

// Send runs cmd on the server and returns its result
func (c *Client) Send(cmd remote.Command) (remote.Result, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return remote.Result{}, fmt.Errorf("%w: %w", ErrNotRunning, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debugf("Failed to close IPC connection: %v", err)
		}
	}()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		logger.Warnf("Failed to set connection deadline: %v", err)
	}
	return remote.RoundTrip(conn, cmd)
}

// Running reports whether a server accepts connections on the socket
func (c *Client) Running() bool {
	conn, err := net.DialTimeout("unix", c.socketPath, 100*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
