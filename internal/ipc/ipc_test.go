package ipc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/waygui/internal/config"
	"github.com/bnema/waygui/internal/display"
	"github.com/bnema/waygui/internal/remote"
	"github.com/bnema/waygui/internal/session"
	"github.com/bnema/waygui/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*SocketServer, *transport.Recorder) {
	t.Helper()
	rec := transport.NewRecorder()
	size := display.Size{Width: 800, Height: 600}
	provider, err := display.New(config.ProviderStatic, size, nil)
	require.NoError(t, err)

	b := session.New(session.Options{
		Transports: []transport.Transport{rec},
		Screen:     display.NewScreen(provider, size, 0),
	})
	t.Cleanup(func() { _ = b.Close() })

	// Unix socket paths are length limited, keep it short
	srv, err := NewSocketServer(filepath.Join(t.TempDir(), "w.sock"), b)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(srv.Stop)
	return srv, rec
}

func TestSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	path, err := SocketPath()
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000/waygui.sock", path)

	t.Setenv("XDG_RUNTIME_DIR", "")
	path, err = SocketPath()
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), "waygui-")
}

func TestClientSend(t *testing.T) {
	srv, rec := startServer(t)

	client, err := NewClient(srv.Path(), time.Second)
	require.NoError(t, err)
	assert.True(t, client.Running())

	res, err := client.Send(remote.Command{Op: remote.OpClick, X: ptr(900), Y: ptr(10)})
	require.NoError(t, err)
	assert.True(t, res.OK, res.Error)

	res, err = client.Send(remote.Command{Op: remote.OpPosition})
	require.NoError(t, err)
	assert.Equal(t, "799 10", res.String())

	res, err = client.Send(remote.Command{Op: "warp"})
	require.NoError(t, err)
	assert.False(t, res.OK)

	assert.NotEmpty(t, rec.Events())
	assert.Equal(t, 1, rec.Opens(), "every client shares one session")
}

func TestSecondServerRefused(t *testing.T) {
	srv, _ := startServer(t)

	other, err := NewSocketServer(srv.Path(), nil)
	require.NoError(t, err)
	assert.Error(t, other.Start(context.Background()))
}

func TestStopRemovesSocket(t *testing.T) {
	srv, _ := startServer(t)
	srv.Stop()
	srv.Stop()

	client, err := NewClient(srv.Path(), 100*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, client.Running())

	_, err = client.Send(remote.Command{Op: remote.OpSize})
	assert.ErrorIs(t, err, ErrNotRunning)
}

func ptr(v int) *int { return &v }
