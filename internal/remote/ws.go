package remote

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bnema/waygui/internal/logger"
	"github.com/gorilla/websocket"
)

const (
	wsReadLimit    = 64 * 1024
	wsPongWait     = 60 * time.Second
	wsPingInterval = 50 * time.Second
	wsWriteWait    = 10 * time.Second
)

// WSServer accepts JSON commands on /ws and answers each with a JSON result.
// Clients must present the shared token, as "Authorization: Bearer <token>"
// or a token query parameter. The Host header must be a loopback name or
// the bind host; when bound to every interface any IP literal is accepted
// but DNS names never are.
type WSServer struct {
	addr     string
	token    string
	backend  Backend
	upgrader websocket.Upgrader

	server *http.Server

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	addr string
}

// NewWSServer creates a WebSocket server on addr. An empty token refuses
// every client.
func NewWSServer(addr, token string, backend Backend) *WSServer {
	s := &WSServer{
		addr:    addr,
		token:   token,
		backend: backend,
		clients: make(map[*wsClient]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin lets non-browser clients through; browser pages must be
// served from an allowed host
func (s *WSServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return s.allowedHost(u.Host)
}

func (s *WSServer) allowedHost(hostport string) bool {
	host := hostOnly(hostport)
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip != nil && ip.IsLoopback() {
		return true
	}

	bind := hostOnly(s.addr)
	if bindIP := net.ParseIP(bind); bind == "" || (bindIP != nil && bindIP.IsUnspecified()) {
		// Listening on every interface: any address literal, no names
		return ip != nil
	}
	return strings.EqualFold(host, bind)
}

func hostOnly(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return strings.Trim(hostport, "[]")
}

func (s *WSServer) authorized(r *http.Request) bool {
	if s.token == "" {
		return false
	}
	got := r.URL.Query().Get("token")
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		got = strings.TrimPrefix(auth, "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) == 1
}

// Handler returns the HTTP handler serving /ws
func (s *WSServer) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.handleWebSocket(ctx, w, r)
	})
	return mux
}

// Start listens and serves until ctx is cancelled or Stop is called
func (s *WSServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.server = &http.Server{Handler: s.Handler(ctx), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Infof("WebSocket server listening on ws://%s/ws", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("WebSocket server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop closes the listener and every client
func (s *WSServer) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}

	s.mu.Lock()
	for c := range s.clients {
		_ = c.conn.Close()
	}
	s.mu.Unlock()
}

func (s *WSServer) handleWebSocket(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if !s.allowedHost(r.Host) {
		logger.Warnf("WS: refused request for host %q from %s", r.Host, r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if !s.authorized(r) {
		logger.Warnf("WS: refused unauthenticated client %s", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("WS: failed to upgrade connection: %v", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, 16), addr: r.RemoteAddr}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	logger.Infof("WS: client connected from %s", c.addr)

	go c.writePump()
	s.readPump(ctx, c)
}

// readPump runs commands in arrival order until the connection drops
func (s *WSServer) readPump(ctx context.Context, c *wsClient) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		close(c.send)
		logger.Infof("WS: client %s disconnected", c.addr)
	}()

	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warnf("WS: read error: %v", err)
			}
			return
		}

		var res Result
		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			res = Result{Error: "invalid command: " + err.Error()}
		} else {
			logger.Debugf("WS: %s from %s", cmd.Op, c.addr)
			res = Dispatch(ctx, s.backend, cmd)
		}

		data, err := json.Marshal(res)
		if err != nil {
			logger.Errorf("WS: failed to marshal result: %v", err)
			continue
		}
		select {
		case c.send <- data:
		default:
			logger.Warnf("WS: client %s is not reading results, dropping it", c.addr)
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
