package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// EIMode selects how an EI transport reaches the EIS server
type EIMode int

const (
	// EISocket connects to a socket exported by the compositor
	EISocket EIMode = iota
	// EIPortal asks xdg-desktop-portal's RemoteDesktop for a connection
	EIPortal
)

// EI is a libei sender transport. Absolute motion is given in logical
// pixels of the compositor's regions.
type EI struct {
	Mode       EIMode
	SocketPath string
	AppName    string
}

// NewSocket returns a transport connecting to an EIS socket. An empty
// path is resolved through ResolveSocketPath when opening.
func NewSocket(path, appName string) *EI {
	return &EI{Mode: EISocket, SocketPath: path, AppName: appName}
}

// NewPortal returns a transport negotiating through the RemoteDesktop portal
func NewPortal(appName string) *EI {
	return &EI{Mode: EIPortal, AppName: appName}
}

func (e *EI) Name() string {
	if e.Mode == EIPortal {
		return "portal"
	}
	return "socket"
}

// Open performs the handshake and waits until devices are emulating or
// ctx expires. Portal sessions may block on a user consent dialog.
func (e *EI) Open(ctx context.Context) (Session, error) {
	name := e.AppName
	if name == "" {
		name = "waygui"
	}

	if e.Mode == EIPortal {
		return openPortal(ctx, name)
	}

	path, err := ResolveSocketPath(e.SocketPath)
	if err != nil {
		return nil, err
	}
	return openSocket(ctx, name, path)
}

// pollInterval bounds each wait so a cancelled ctx is noticed promptly
const pollInterval = 100 * time.Millisecond

// waitReadable blocks until fd is readable, the poll interval elapses or
// ctx is done. It reports whether fd became readable.
func waitReadable(ctx context.Context, fd int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	timeout := pollInterval
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return false, context.DeadlineExceeded
	}

	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return false, nil
		}
		return false, fmt.Errorf("poll: %w", err)
	}
	if n > 0 && fds[0].Revents&(unix.POLLHUP|unix.POLLERR) != 0 && fds[0].Revents&unix.POLLIN == 0 {
		return false, fmt.Errorf("%w: connection hung up", ErrUnavailable)
	}
	return n > 0, nil
}
