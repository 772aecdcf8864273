package network

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// echoHandler responde "ECHO~<frame>" e derruba o peer quando recebe "KICK".
type echoHandler struct {
	mu          sync.Mutex
	connects    int
	disconnects map[string]int
	frames      []string
}

func newEchoHandler() *echoHandler {
	return &echoHandler{disconnects: make(map[string]int)}
}

func (h *echoHandler) OnConnect(p Peer) {
	h.mu.Lock()
	h.connects++
	h.mu.Unlock()
}

func (h *echoHandler) OnDisconnect(p Peer) {
	h.mu.Lock()
	h.disconnects[p.ID()]++
	h.mu.Unlock()
	// Depois de desconectado, Send não entrega nada.
	p.Send("late")
}

func (h *echoHandler) OnMessage(p Peer, frame string) {
	h.mu.Lock()
	h.frames = append(h.frames, frame)
	h.mu.Unlock()

	if frame == "KICK" {
		p.Send("ERROR~bye")
		p.Disconnect()
		p.Disconnect()
		return
	}
	p.Send("ECHO~" + frame)
}

func (h *echoHandler) disconnectCounts() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]int, len(h.disconnects))
	for k, v := range h.disconnects {
		out[k] = v
	}
	return out
}

func (h *echoHandler) totalDisconnects() int {
	n := 0
	for _, v := range h.disconnectCounts() {
		n += v
	}
	return n
}

func startServer(t *testing.T, opts Options) (*Server, *echoHandler, string, context.CancelFunc) {
	t.Helper()
	h := newEchoHandler()
	srv := NewServer(h, opts, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go srv.Hub().Run(ctx)
	go func() { _ = srv.Serve(ctx, ln) }()
	t.Cleanup(cancel)
	return srv, h, ln.Addr().String(), cancel
}

func dialLines(t *testing.T, addr string) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	return conn, bufio.NewReader(conn)
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimRight(line, "\r\n")
}

func TestTCPEchoPreservesOrder(t *testing.T) {
	_, h, addr, _ := startServer(t, DefaultOptions())
	conn, r := dialLines(t, addr)

	_, err := conn.Write([]byte("one\r\ntwo\nthree\n"))
	require.NoError(t, err)

	assert.Equal(t, "ECHO~one", readLine(t, r))
	assert.Equal(t, "ECHO~two", readLine(t, r))
	assert.Equal(t, "ECHO~three", readLine(t, r))

	h.mu.Lock()
	assert.Equal(t, []string{"one", "two", "three"}, h.frames)
	assert.Equal(t, 1, h.connects)
	h.mu.Unlock()
}

func TestKickFlushesPendingFramesThenCloses(t *testing.T) {
	_, h, addr, _ := startServer(t, DefaultOptions())
	conn, r := dialLines(t, addr)

	_, err := conn.Write([]byte("KICK\n"))
	require.NoError(t, err)

	assert.Equal(t, "ERROR~bye", readLine(t, r))
	_, err = r.ReadString('\n')
	assert.Error(t, err)

	require.Eventually(t, func() bool { return h.totalDisconnects() == 1 }, 2*time.Second, 10*time.Millisecond)
	// O readLoop também sai quando a conexão fecha; a contagem não pode dobrar.
	time.Sleep(50 * time.Millisecond)
	for _, n := range h.disconnectCounts() {
		assert.Equal(t, 1, n)
	}
}

func TestPeerCloseTriggersSingleDisconnect(t *testing.T) {
	_, h, addr, _ := startServer(t, DefaultOptions())
	conn, r := dialLines(t, addr)

	_, err := conn.Write([]byte("ping\n"))
	require.NoError(t, err)
	assert.Equal(t, "ECHO~ping", readLine(t, r))
	conn.Close()

	require.Eventually(t, func() bool { return h.totalDisconnects() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestOversizeFrameClosesConnection(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxMessageSize = 16
	_, h, addr, _ := startServer(t, opts)
	conn, r := dialLines(t, addr)

	_, err := conn.Write([]byte(strings.Repeat("x", 100) + "\n"))
	require.NoError(t, err)

	_, err = r.ReadString('\n')
	assert.Error(t, err)
	require.Eventually(t, func() bool { return h.totalDisconnects() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestFrameAtLimitAcceptsCRLF(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxMessageSize = 16
	_, h, addr, _ := startServer(t, opts)
	conn, r := dialLines(t, addr)

	frame := strings.Repeat("x", 16)
	_, err := conn.Write([]byte(frame + "\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "ECHO~"+frame, readLine(t, r))

	_, err = conn.Write([]byte(frame + "y\r\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.totalDisconnects() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestRateLimitDisconnects(t *testing.T) {
	opts := DefaultOptions()
	opts.RateLimit = 1
	opts.RateBurst = 2
	_, h, addr, _ := startServer(t, opts)
	conn, r := dialLines(t, addr)

	_, err := conn.Write([]byte(strings.Repeat("spam\n", 20)))
	require.NoError(t, err)

	echoes := 0
	for {
		if _, err := r.ReadString('\n'); err != nil {
			break
		}
		echoes++
	}
	assert.LessOrEqual(t, echoes, 2)
	require.Eventually(t, func() bool { return h.totalDisconnects() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketTransport(t *testing.T) {
	h := newEchoHandler()
	srv := NewServer(h, DefaultOptions(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Hub().Run(ctx)

	ts := httptest.NewServer(http.HandlerFunc(srv.ServeWS))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("LIST")))
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ECHO~LIST", string(data))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("KICK")))
	_, data, err = ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ERROR~bye", string(data))

	_, _, err = ws.ReadMessage()
	assert.Error(t, err)
	require.Eventually(t, func() bool { return h.totalDisconnects() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubCallRunsOnHub(t *testing.T) {
	h := newEchoHandler()
	hub := NewHub(h, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	ran := false
	require.NoError(t, hub.Call(context.Background(), func() { ran = true }))
	assert.True(t, ran)

	cancel()
	<-hub.Done()
	assert.ErrorIs(t, hub.Call(context.Background(), func() {}), ErrHubClosed)
}

func TestShutdownDisconnectsEveryone(t *testing.T) {
	_, h, addr, cancel := startServer(t, DefaultOptions())
	_, r1 := dialLines(t, addr)
	c2, r2 := dialLines(t, addr)

	_, err := c2.Write([]byte("hi\n"))
	require.NoError(t, err)
	assert.Equal(t, "ECHO~hi", readLine(t, r2))
	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.connects == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	_, err = r1.ReadString('\n')
	assert.Error(t, err)
	_, err = r2.ReadString('\n')
	assert.Error(t, err)
	require.Eventually(t, func() bool { return h.totalDisconnects() == 2 }, 2*time.Second, 10*time.Millisecond)
}
