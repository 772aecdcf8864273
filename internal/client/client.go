package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"dotsboxes/internal/protocol"
)

const DefaultTimeout = 5 * time.Second

var (
	ErrDisconnected    = errors.New("disconnected from server")
	ErrAlreadyLoggedIn = errors.New("identity already logged in")
)

// ServerError é um ERROR recebido como resposta a um pedido.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return "server error: " + e.Message }

type Options struct {
	// Timeout limita cada pedido com resposta. Zero usa DefaultTimeout.
	Timeout     time.Duration
	EventBuffer int
	Logger      *zap.Logger
}

// pending é um pedido aguardando uma resposta de um dos tipos aceitos.
type pending struct {
	accepts map[string]bool
	reply   chan protocol.Message
}

// Client fala o protocolo de linha com o servidor. Respostas são casadas com
// os pedidos pendentes pelo tipo, em ordem FIFO; o resto vai para Events.
type Client struct {
	conn    net.Conn
	timeout time.Duration
	log     *zap.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending []*pending
	err     error

	events    chan protocol.Message
	done      chan struct{}
	quit      chan struct{}
	closeOnce sync.Once
}

func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(conn, opts), nil
}

// New assume a conexão e inicia a leitura.
func New(conn net.Conn, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Client{
		conn:    conn,
		timeout: opts.Timeout,
		log:     opts.Logger,
		events:  make(chan protocol.Message, opts.EventBuffer),
		done:    make(chan struct{}),
		quit:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Events recebe NEWGAME, MOVE, GAMEOVER e ERRORs sem pedido pendente.
// Fecha quando a conexão termina.
func (c *Client) Events() <-chan protocol.Message { return c.events }

// Done fecha quando a conexão termina.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err devolve o motivo do encerramento, depois de Done.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Next espera o próximo evento assíncrono.
func (c *Client) Next(ctx context.Context) (protocol.Message, error) {
	select {
	case m, ok := <-c.events:
		if !ok {
			return protocol.Message{}, ErrDisconnected
		}
		return m, nil
	case <-ctx.Done():
		return protocol.Message{}, ctx.Err()
	}
}

// ============================================================================
// Pedidos
// ============================================================================

// Hello faz o handshake e devolve a descrição do servidor.
func (c *Client) Hello(ctx context.Context, description string) (string, error) {
	m, err := c.request(ctx, protocol.HelloRequest(description), protocol.CmdHello)
	if err != nil {
		return "", err
	}
	desc, _ := m.Arg(0)
	return desc, nil
}

// Login devolve ErrAlreadyLoggedIn se o nome estiver em uso.
func (c *Client) Login(ctx context.Context, identity string) error {
	m, err := c.request(ctx, protocol.LoginRequest(identity), protocol.CmdLogin, protocol.CmdAlreadyLoggedIn)
	if err != nil {
		return err
	}
	if m.Command == protocol.CmdAlreadyLoggedIn {
		return ErrAlreadyLoggedIn
	}
	return nil
}

func (c *Client) List(ctx context.Context) ([]string, error) {
	m, err := c.request(ctx, protocol.ListRequest(), protocol.CmdList)
	if err != nil {
		return nil, err
	}
	return m.Args, nil
}

// Queue alterna a presença na fila. O servidor não responde.
func (c *Client) Queue() error {
	return c.write(protocol.QueueRequest())
}

// Move envia a jogada. A confirmação chega como MOVE em Events.
func (c *Client) Move(location int) error {
	return c.write(protocol.MoveRequest(location))
}

// request envia msg e espera uma resposta de um dos tipos aceitos ou um ERROR.
// O timeout do cliente sempre se aplica, mesmo com ctx sem prazo.
func (c *Client) request(ctx context.Context, msg protocol.Message, accepts ...string) (protocol.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	p := &pending{accepts: map[string]bool{protocol.CmdError: true}, reply: make(chan protocol.Message, 1)}
	for _, cmd := range accepts {
		p.accepts[cmd] = true
	}

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return protocol.Message{}, ErrDisconnected
	}
	c.pending = append(c.pending, p)
	c.mu.Unlock()

	if err := c.write(msg); err != nil {
		c.drop(p)
		return protocol.Message{}, err
	}

	var reply protocol.Message
	select {
	case reply = <-p.reply:
	case <-c.done:
		select {
		case reply = <-p.reply:
		default:
			return protocol.Message{}, ErrDisconnected
		}
	case <-ctx.Done():
		c.drop(p)
		return protocol.Message{}, fmt.Errorf("%s: %w", msg.Command, ctx.Err())
	}

	if reply.Command == protocol.CmdError {
		text, _ := reply.Arg(0)
		return reply, &ServerError{Message: text}
	}
	return reply, nil
}

func (c *Client) drop(p *pending) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, q := range c.pending {
		if q == p {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

func (c *Client) write(msg protocol.Message) error {
	select {
	case <-c.done:
		return ErrDisconnected
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if _, err := c.conn.Write([]byte(msg.Encode() + "\n")); err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return nil
}

// ============================================================================
// Leitura
// ============================================================================

// readLoop é o único escritor de events e o único a chamar shutdown.
func (c *Client) readLoop() {
	sc := bufio.NewScanner(c.conn)
	for sc.Scan() {
		msg, err := protocol.Parse(sc.Text())
		if err == nil {
			err = protocol.ValidateReply(msg)
		}
		if err != nil {
			c.log.Debug("ignoring bad frame", zap.Error(err))
			continue
		}
		if c.resolve(msg) {
			continue
		}
		select {
		case c.events <- msg:
		case <-c.quit:
			c.shutdown(ErrDisconnected)
			return
		}
	}

	err := ErrDisconnected
	if scErr := sc.Err(); scErr != nil {
		err = fmt.Errorf("%w: %v", ErrDisconnected, scErr)
	}
	c.shutdown(err)
}

// resolve entrega msg ao pedido pendente mais antigo que a aceita.
func (c *Client) resolve(msg protocol.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.pending {
		if p.accepts[msg.Command] {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			p.reply <- msg
			return true
		}
	}
	return false
}

func (c *Client) shutdown(err error) {
	c.mu.Lock()
	c.err = err
	c.pending = nil
	c.mu.Unlock()

	close(c.done)
	close(c.events)
	c.conn.Close()
	c.log.Debug("connection closed", zap.Error(err))
}

// Close encerra a conexão e libera todos os pedidos pendentes com ErrDisconnected.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.quit)
		err = c.conn.Close()
	})
	<-c.done
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
