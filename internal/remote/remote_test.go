package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bnema/waygui/internal/config"
	"github.com/bnema/waygui/internal/display"
	"github.com/bnema/waygui/internal/session"
	"github.com/bnema/waygui/internal/transport"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func newBackend(t *testing.T) (*session.Backend, *transport.Recorder) {
	t.Helper()
	rec := transport.NewRecorder()
	size := display.Size{Width: 1000, Height: 500}
	provider, err := display.New(config.ProviderStatic, size, nil)
	require.NoError(t, err)

	b := session.New(session.Options{
		Transports: []transport.Transport{rec},
		Screen:     display.NewScreen(provider, size, 0),
	})
	t.Cleanup(func() { _ = b.Close() })
	return b, rec
}

func kinds(events []transport.Event) []transport.EventKind {
	out := make([]transport.EventKind, 0, len(events))
	for _, e := range events {
		if e.Kind != transport.EventFrame {
			out = append(out, e.Kind)
		}
	}
	return out
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"move 10 20", Command{Op: OpMoveTo, X: intp(10), Y: intp(20)}},
		{"click", Command{Op: OpClick}},
		{"click 5 6 right", Command{Op: OpClick, X: intp(5), Y: intp(6), Button: "right"}},
		{"click 5 6 left 2", Command{Op: OpClick, X: intp(5), Y: intp(6), Button: "left", Clicks: 2}},
		{"down middle", Command{Op: OpMouseDown, Button: "middle"}},
		{"drag 100 200", Command{Op: OpDrag, X: intp(100), Y: intp(200)}},
		{"scroll -3", Command{Op: OpScroll, Clicks: -3}},
		{"hscroll 2 1 1", Command{Op: OpHScroll, Clicks: 2, X: intp(1), Y: intp(1)}},
		{"keyDown shift", Command{Op: OpKeyDown, Key: "shift"}},
		{"hotkey ctrl alt t", Command{Op: OpHotkey, Keys: []string{"ctrl", "alt", "t"}}},
		{"type hello  world", Command{Op: OpWrite, Text: "hello  world"}},
		{"size", Command{Op: OpSize}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLineErrors(t *testing.T) {
	for _, line := range []string{"", "jump 1 2", "move 1", "move a b", "drag", "scroll", "scroll x", "keyup", "press"} {
		_, err := ParseLine(line)
		assert.Error(t, err, line)
	}

	_, err := ParseLine("teleport")
	assert.ErrorIs(t, err, ErrUnknownOp)
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("move then position", func(t *testing.T) {
		b, _ := newBackend(t)
		res := Dispatch(ctx, b, Command{Op: OpMoveTo, X: intp(2000), Y: intp(20)})
		require.True(t, res.OK, res.Error)

		res = Dispatch(ctx, b, Command{Op: OpPosition})
		assert.Equal(t, "999 20", res.String())
	})

	t.Run("click defaults to left at current position", func(t *testing.T) {
		b, rec := newBackend(t)
		require.NoError(t, b.MoveTo(ctx, 3, 4))
		rec.Reset()

		res := Dispatch(ctx, b, Command{Op: OpClick, Clicks: 2})
		require.True(t, res.OK)
		buttons := 0
		for _, e := range rec.Events() {
			if e.Kind == transport.EventButton {
				buttons++
				assert.Equal(t, uint32(0x110), e.Code)
			}
		}
		assert.Equal(t, 4, buttons)
	})

	t.Run("invalid button", func(t *testing.T) {
		b, rec := newBackend(t)
		res := Dispatch(ctx, b, Command{Op: OpClick, Button: "9"})
		assert.False(t, res.OK)
		assert.Contains(t, res.Error, "button")
		assert.Empty(t, rec.Events())
	})

	t.Run("scroll and keys", func(t *testing.T) {
		b, rec := newBackend(t)
		require.True(t, Dispatch(ctx, b, Command{Op: OpVScroll, Clicks: 1}).OK)
		require.True(t, Dispatch(ctx, b, Command{Op: OpPress, Key: "a"}).OK)
		assert.Equal(t, []transport.EventKind{
			transport.EventScroll, transport.EventScrollStop, transport.EventKey, transport.EventKey,
		}, kinds(rec.Events()))
	})

	t.Run("size", func(t *testing.T) {
		b, _ := newBackend(t)
		res := Dispatch(ctx, b, Command{Op: OpSize})
		assert.Equal(t, 1000, *res.Width)
		assert.Equal(t, 500, *res.Height)
	})

	t.Run("unknown op", func(t *testing.T) {
		b, _ := newBackend(t)
		res := Dispatch(ctx, b, Command{Op: "teleport"})
		assert.False(t, res.OK)
	})

	t.Run("emission errors follow strict policy", func(t *testing.T) {
		rec := &transport.Recorder{FailOn: map[transport.EventKind]error{transport.EventMotion: errors.New("gone")}}
		b := session.New(session.Options{Transports: []transport.Transport{rec}})
		defer b.Close()
		assert.True(t, Dispatch(ctx, b, Command{Op: OpMoveTo, X: intp(1), Y: intp(1)}).OK)

		strict := session.New(session.Options{Transports: []transport.Transport{rec}, Strict: true})
		defer strict.Close()
		assert.False(t, Dispatch(ctx, strict, Command{Op: OpMoveTo, X: intp(1), Y: intp(1)}).OK)
	})
}

func TestButtonArgJSON(t *testing.T) {
	var cmd Command
	require.NoError(t, json.Unmarshal([]byte(`{"op":"click","button":3}`), &cmd))
	assert.Equal(t, ButtonArg("3"), cmd.Button)

	require.NoError(t, json.Unmarshal([]byte(`{"op":"click","button":"right"}`), &cmd))
	assert.Equal(t, ButtonArg("right"), cmd.Button)

	assert.Error(t, json.Unmarshal([]byte(`{"op":"click","button":{}}`), &cmd))

	for _, raw := range []string{`4.7`, `1e300`, `-1e20`} {
		err := json.Unmarshal([]byte(`{"op":"click","button":`+raw+`}`), &cmd)
		assert.ErrorIs(t, err, session.ErrInvalidButton, raw)
	}
}

func TestFrames(t *testing.T) {
	var buf bytes.Buffer
	in, err := CommandToStruct(Command{Op: OpClick, X: intp(7), Y: intp(8), Button: "right"})
	require.NoError(t, err)
	require.NoError(t, WriteFrame(&buf, in))

	assert.Equal(t, []byte{0, 0}, buf.Bytes()[:2])

	var out structpb.Struct
	require.NoError(t, ReadFrame(&buf, &out))
	cmd, err := CommandFromStruct(&out)
	require.NoError(t, err)
	assert.Equal(t, 7, *cmd.X)
	assert.Equal(t, ButtonArg("right"), cmd.Button)

	oversized := bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff})
	assert.Error(t, ReadFrame(oversized, &out))
}

func TestWebSocketServer(t *testing.T) {
	b, _ := newBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ws := NewWSServer("127.0.0.1:0", "s3cret", b)
	srv := httptest.NewServer(ws.Handler(ctx))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer s3cret"}})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Command{Op: OpMoveTo, X: intp(10), Y: intp(11)}))
	var res Result
	require.NoError(t, conn.ReadJSON(&res))
	assert.True(t, res.OK)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"position"}`)))
	require.NoError(t, conn.ReadJSON(&res))
	assert.Equal(t, 10, *res.X)
	assert.Equal(t, 11, *res.Y)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	res = Result{}
	require.NoError(t, conn.ReadJSON(&res))
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "invalid command")
}

func TestWebSocketRefusals(t *testing.T) {
	b, rec := newBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ws := NewWSServer("127.0.0.1:0", "s3cret", b)
	srv := httptest.NewServer(ws.Handler(ctx))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	tests := []struct {
		name   string
		url    string
		header http.Header
		status int
	}{
		{
			name:   "missing token",
			url:    url,
			status: http.StatusUnauthorized,
		},
		{
			name:   "wrong token",
			url:    url + "?token=guess",
			status: http.StatusUnauthorized,
		},
		{
			name: "rebound host name",
			url:  url,
			header: http.Header{
				"Host":          {"evil.example:52530"},
				"Origin":        {"http://evil.example:52530"},
				"Authorization": {"Bearer s3cret"},
			},
			status: http.StatusForbidden,
		},
		{
			name: "foreign origin",
			url:  url + "?token=s3cret",
			header: http.Header{
				"Origin": {"http://evil.example"},
			},
			status: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(tt.url, tt.header)
			if conn != nil {
				conn.Close()
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
	assert.Empty(t, rec.Events())

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=s3cret", http.Header{"Origin": {srv.URL}})
	require.NoError(t, err)
	conn.Close()
}

func TestWebSocketAllowedHosts(t *testing.T) {
	local := NewWSServer("127.0.0.1:52530", "t", nil)
	assert.True(t, local.allowedHost("127.0.0.1:52530"))
	assert.True(t, local.allowedHost("localhost:52530"))
	assert.True(t, local.allowedHost("[::1]:52530"))
	assert.False(t, local.allowedHost("evil.example:52530"))
	assert.False(t, local.allowedHost("192.168.1.5:52530"))
	assert.False(t, local.allowedHost(""))

	lan := NewWSServer("192.168.1.5:52530", "t", nil)
	assert.True(t, lan.allowedHost("192.168.1.5:52530"))
	assert.False(t, lan.allowedHost("10.0.0.1:52530"))

	all := NewWSServer("0.0.0.0:52530", "t", nil)
	assert.True(t, all.allowedHost("10.0.0.1:52530"))
	assert.False(t, all.allowedHost("evil.example:52530"))

	noToken := NewWSServer("127.0.0.1:0", "", nil)
	assert.False(t, noToken.authorized(httptest.NewRequest(http.MethodGet, "/ws?token=", nil)))
}

func TestSSHStream(t *testing.T) {
	b, rec := newBackend(t)
	s := NewSSHServer("127.0.0.1:0", "", b)

	server, client := net.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- s.serveStream(context.Background(), server)
		server.Close()
	}()

	in, err := CommandToStruct(Command{Op: OpHotkey, Keys: []string{"ctrl", "c"}})
	require.NoError(t, err)
	require.NoError(t, WriteFrame(client, in))

	var out structpb.Struct
	require.NoError(t, ReadFrame(client, &out))
	res, err := ResultFromStruct(&out)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Len(t, kinds(rec.Events()), 4)

	client.Close()
	assert.NoError(t, <-done)
}

func TestSSHExec(t *testing.T) {
	b, _ := newBackend(t)
	s := NewSSHServer("127.0.0.1:0", "", b)
	var out bytes.Buffer

	assert.Equal(t, 0, s.runExec(context.Background(), &out, "move 5 6"))
	out.Reset()
	assert.Equal(t, 0, s.runExec(context.Background(), &out, "position"))
	assert.Equal(t, "5 6\n", out.String())

	out.Reset()
	assert.Equal(t, 1, s.runExec(context.Background(), &out, "click 1 1 wheel"))
	assert.True(t, strings.HasPrefix(out.String(), "error:"))

	assert.Equal(t, 2, s.runExec(context.Background(), &out, "fly"))
}

func TestSSHAuthorize(t *testing.T) {
	config.SetConfigPath(filepath.Join(t.TempDir(), "waygui.toml"))
	t.Cleanup(func() {
		config.SetConfigPath("")
		config.Set(nil)
	})
	cfg := config.DefaultConfig
	cfg.Server.SSHWhitelist = []string{"SHA256:known"}
	cfg.Server.SSHWhitelistOnly = true
	config.Set(&cfg)

	s := NewSSHServer("127.0.0.1:0", "", nil)
	assert.True(t, s.authorize("1.2.3.4:1", "SHA256:known"))
	assert.False(t, s.authorize("1.2.3.4:1", "SHA256:stranger"))

	s.OnAuthRequest = func(addr, fingerprint string) bool { return fingerprint == "SHA256:friend" }
	assert.True(t, s.authorize("1.2.3.4:1", "SHA256:friend"))
	assert.True(t, config.IsSSHKeyWhitelisted("SHA256:friend"))
	assert.False(t, s.authorize("1.2.3.4:1", "SHA256:stranger"))

	cfg.Server.SSHWhitelistOnly = false
	assert.True(t, s.authorize("1.2.3.4:1", "SHA256:stranger"))
}
