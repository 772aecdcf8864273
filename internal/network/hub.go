package network

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var ErrHubClosed = errors.New("hub closed")

// clientMessage empacota um frame com o cliente que o enviou.
type clientMessage struct {
	client *Client
	frame  string
}

// call é uma função executada dentro da goroutine do Hub.
type call struct {
	fn   func()
	done chan struct{}
}

// Hub mantém o conjunto de clientes ativos e entrega os eventos ao handler,
// um por vez. Toda a lógica do jogo roda nesta goroutine.
type Hub struct {
	// Acessado SOMENTE pela goroutine do Hub.
	clients map[*Client]struct{}
	kicks   []*Client

	register   chan *Client
	unregister chan *Client
	incoming   chan clientMessage
	calls      chan call
	done       chan struct{}

	handler EventHandler
	log     *zap.Logger
}

func NewHub(handler EventHandler, log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan clientMessage),
		calls:      make(chan call),
		done:       make(chan struct{}),
		handler:    handler,
		log:        log,
	}
}

// Run processa eventos até ctx ser cancelado; então derruba todos os clientes.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.log.Debug("client registered", zap.String("conn", c.id), zap.Int("clients", len(h.clients)))
			h.handler.OnConnect(c)

		case c := <-h.unregister:
			h.remove(c)

		case m := <-h.incoming:
			// Frames de quem já foi derrubado são descartados.
			if _, ok := h.clients[m.client]; ok && !m.client.kicking {
				h.handler.OnMessage(m.client, m.frame)
			}

		case cl := <-h.calls:
			cl.fn()
			close(cl.done)
		}
		h.flush()
	}
}

// Done fecha quando o Hub para.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Call executa fn na goroutine do Hub e espera terminar.
func (h *Hub) Call(ctx context.Context, fn func()) error {
	cl := call{fn: fn, done: make(chan struct{})}
	select {
	case h.calls <- cl:
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cl.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// add entrega um cliente novo ao Hub. Devolve false se o Hub já parou.
func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// kick agenda a remoção para depois do evento atual, para que os frames
// enfileirados durante o evento ainda saiam antes do fechamento.
func (h *Hub) kick(c *Client) {
	if c.kicking || c.closed {
		return
	}
	c.kicking = true
	h.kicks = append(h.kicks, c)
}

func (h *Hub) flush() {
	// OnDisconnect pode derrubar outros clientes, então repetimos até esvaziar.
	for len(h.kicks) > 0 {
		c := h.kicks[0]
		h.kicks = h.kicks[1:]
		h.remove(c)
	}
}

// remove é o único caminho de saída: garante um OnDisconnect por cliente.
func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.closed = true
	// Fechar o canal é o sinal para o writeLoop terminar e fechar a conexão.
	close(c.send)
	h.log.Debug("client unregistered", zap.String("conn", c.id), zap.Int("clients", len(h.clients)))
	h.handler.OnDisconnect(c)
}

func (h *Hub) shutdown() {
	close(h.done)
	for c := range h.clients {
		h.remove(c)
	}
	h.flush()
	h.log.Info("hub stopped")
}
