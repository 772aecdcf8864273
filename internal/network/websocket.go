package network

import (
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn leva o mesmo protocolo de texto sobre WebSocket: uma mensagem de texto = um frame.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func newWSConn(conn *websocket.Conn, opts Options) *wsConn {
	conn.SetReadLimit(int64(opts.MaxMessageSize))
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	// O pong renova o deadline de leitura, mantendo a conexão viva.
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &wsConn{conn: conn, writeTimeout: opts.WriteTimeout}
}

func (w *wsConn) ReadFrame() (string, error) {
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		if err == websocket.ErrReadLimit {
			return "", ErrFrameTooLarge
		}
		return "", err
	}
	_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (w *wsConn) WriteFrame(frame string) error {
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	return w.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (w *wsConn) Ping(deadline time.Time) error {
	return w.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

// Close envia o frame de fechamento antes de derrubar o socket.
func (w *wsConn) Close() error {
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return w.conn.Close()
}

func (w *wsConn) RemoteAddr() string { return w.conn.RemoteAddr().String() }
