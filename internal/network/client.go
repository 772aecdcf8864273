package network

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client é a representação de um jogador conectado do ponto de vista do servidor.
// Ele agrupa a conexão, o canal de saída e o limitador de entrada.
type Client struct {
	id   string
	conn frameConn
	hub  *Hub
	log  *zap.Logger

	// Canal bufferizado de saída. O Hub coloca frames aqui e o writeLoop os escreve.
	// Só o Hub fecha este canal.
	send chan string

	limiter      *rate.Limiter
	writeTimeout time.Duration

	// Acessados SOMENTE pela goroutine do Hub.
	closed  bool
	kicking bool
}

var _ Peer = (*Client)(nil)

func newClient(hub *Hub, conn frameConn, opts Options, log *zap.Logger) *Client {
	id := uuid.NewString()
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	return &Client{
		id:           id,
		conn:         conn,
		hub:          hub,
		log:          log.With(zap.String("conn", id), zap.String("remote", conn.RemoteAddr())),
		send:         make(chan string, opts.SendBuffer),
		limiter:      rate.NewLimiter(limit, opts.RateBurst),
		writeTimeout: opts.WriteTimeout,
	}
}

func (c *Client) ID() string         { return c.id }
func (c *Client) RemoteAddr() string { return c.conn.RemoteAddr() }

// Send enfileira o frame sem bloquear o Hub. Um cliente lento demais é derrubado.
func (c *Client) Send(frame string) bool {
	if c.closed || c.kicking {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.log.Warn("send buffer full, dropping client")
		c.hub.kick(c)
		return false
	}
}

func (c *Client) Disconnect() {
	if c.closed {
		return
	}
	c.hub.kick(c)
}

func (c *Client) readLoop() {
	// Garante que o Hub fique sabendo da saída, a menos que já tenha parado.
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
	}()

	for {
		frame, err := c.conn.ReadFrame()
		if err != nil {
			c.logReadError(err)
			return
		}
		if !c.limiter.Allow() {
			c.log.Warn("inbound rate limit exceeded, disconnecting")
			return
		}

		select {
		case c.hub.incoming <- clientMessage{client: c, frame: frame}:
		case <-c.hub.done:
			return
		}
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		c.log.Debug("connection closed")
	case errors.Is(err, ErrFrameTooLarge):
		c.log.Warn("frame too large, disconnecting", zap.Error(err))
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.log.Debug("websocket closed by peer")
	default:
		c.log.Info("read error", zap.Error(err))
	}
}

// writeLoop escreve os frames do canal send até o Hub fechá-lo e então fecha a conexão.
func (c *Client) writeLoop() {
	pings, stop := pingTicker(c.conn)
	defer func() {
		stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteFrame(frame); err != nil {
				c.log.Info("write error", zap.Error(err))
				return
			}
		case <-pings:
			p := c.conn.(pinger)
			if err := p.Ping(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
		}
	}
}
