// START OF FILE dotsboxes/internal/network/server.go
package network

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options controla os limites de cada conexão.
type Options struct {
	MaxMessageSize int
	SendBuffer     int
	WriteTimeout   time.Duration
	// IdleTimeout derruba conexões TCP sem tráfego de entrada. Zero desliga.
	IdleTimeout time.Duration
	// RateLimit em frames por segundo. Zero desliga.
	RateLimit float64
	RateBurst int
}

func DefaultOptions() Options {
	return Options{
		MaxMessageSize: DefaultMaxMessageSize,
		SendBuffer:     256,
		WriteTimeout:   10 * time.Second,
		RateLimit:      50,
		RateBurst:      100,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.RateBurst <= 0 {
		o.RateBurst = d.RateBurst
	}
	return o
}

// Server aceita conexões TCP e WebSocket e as entrega ao Hub.
type Server struct {
	hub      *Hub
	opts     Options
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer recebe o EventHandler que será injetado no Hub.
// O Hub precisa estar rodando (Hub().Run) para as conexões serem aceitas.
func NewServer(handler EventHandler, opts Options, log *zap.Logger) *Server {
	opts = opts.withDefaults()
	return &Server{
		hub:  NewHub(handler, log.Named("hub")),
		opts: opts,
		log:  log,
		upgrader: websocket.Upgrader{
			// Qualquer origem é aceita; o protocolo não usa cookies.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// ListenTCP abre o listener e atende até ctx ser cancelado.
func (s *Server) ListenTCP(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve roda o loop de accept. Devolve nil quando ctx é cancelado.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("tcp listener started", zap.String("addr", ln.Addr().String()))

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warn("temporary accept error", zap.Error(err))
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return err
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetKeepAlive(true)
			_ = tcp.SetKeepAlivePeriod(30 * time.Second)
			_ = tcp.SetNoDelay(true)
		}
		go s.attach(newLineConn(conn, s.opts))
	}
}

// ServeWS promove a requisição HTTP para WebSocket. Registrado em "/ws".
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Info("websocket upgrade failed", zap.Error(err))
		return
	}
	s.attach(newWSConn(conn, s.opts))
}

func (s *Server) attach(fc frameConn) {
	c := newClient(s.hub, fc, s.opts, s.log.Named("client"))
	if !s.hub.add(c) {
		fc.Close()
		return
	}
	go c.writeLoop()
	go c.readLoop()
}

//END OF FILE dotsboxes/internal/network/server.go
