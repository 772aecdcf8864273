package session

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"dotsboxes/internal/events"
	"dotsboxes/internal/game"
	"dotsboxes/internal/metrics"
	"dotsboxes/internal/network"
	"dotsboxes/internal/protocol"
)

// CommandHandlerFunc define a assinatura das funções que tratam um comando.
// Um erro devolvido vira uma resposta ERROR (ver ProtocolError).
type CommandHandlerFunc func(h *GameHandler, s *Session, msg protocol.Message) error

// Options configura o GameHandler. Campos nil recebem implementações vazias.
type Options struct {
	Description       string
	BoardSize         int
	MaxIdentityLength int
	NewEngine         EngineFactory
	Publisher         events.Publisher
	Metrics           *metrics.Collectors
	Logger            *zap.Logger
}

// GameHandler implementa network.EventHandler. Todo o estado é tocado
// somente pela goroutine do Hub, exceto o Registry, que tem lock próprio.
type GameHandler struct {
	opts       Options
	sessions   map[network.Peer]*Session
	registry   *Registry
	matchmaker *Matchmaker
	metrics    *metrics.Collectors
	log        *zap.Logger
	now        func() time.Time

	// Um roteador por fase. Comando conhecido fora do roteador da fase é erro fatal.
	routers map[Phase]map[string]CommandHandlerFunc
}

var _ network.EventHandler = (*GameHandler)(nil)

func NewGameHandler(opts Options) *GameHandler {
	if opts.Description == "" {
		opts.Description = "Minor 14 - Server"
	}
	if opts.BoardSize == 0 {
		opts.BoardSize = game.DefaultDim
	}
	if opts.MaxIdentityLength == 0 {
		opts.MaxIdentityLength = 32
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	if opts.NewEngine == nil {
		dim := opts.BoardSize
		opts.NewEngine = func(first, second string) (game.Engine, error) {
			return game.New(first, second, dim)
		}
	}

	log := opts.Logger.Named("session")
	h := &GameHandler{
		opts:     opts,
		sessions: make(map[network.Peer]*Session),
		registry: NewRegistry(),
		metrics:  opts.Metrics,
		log:      log,
		now:      time.Now,
		routers:  make(map[Phase]map[string]CommandHandlerFunc),
	}
	h.matchmaker = NewMatchmaker(opts.NewEngine, opts.Publisher, opts.Metrics, log.Named("matchmaker"))

	h.registerHandshakeHandlers()
	h.registerLobbyHandlers()
	h.registerMatchHandlers()
	return h
}

func (h *GameHandler) Registry() *Registry     { return h.registry }
func (h *GameHandler) Matchmaker() *Matchmaker { return h.matchmaker }

// --- Implementação da Interface network.EventHandler ---

func (h *GameHandler) OnConnect(p network.Peer) {
	s := newSession(p, h.now())
	h.sessions[p] = s
	h.metrics.ConnectionsActive.Inc()
	h.log.Debug("session created", zap.String("session", s.ID), zap.String("remote", p.RemoteAddr()),
		zap.Int("sessions", len(h.sessions)))
}

// OnDisconnect é o único caminho de limpeza, qualquer que seja a causa da queda.
func (h *GameHandler) OnDisconnect(p network.Peer) {
	s, ok := h.sessions[p]
	if !ok {
		return
	}
	delete(h.sessions, p)
	h.metrics.ConnectionsActive.Dec()

	h.matchmaker.DisconnectCleanup(s)
	if s.Identity != "" && h.registry.Remove(s) {
		h.metrics.SessionsLoggedIn.Dec()
	}
	h.log.Info("session closed", zap.String("session", s.ID), zap.String("identity", s.Identity),
		zap.Stringer("phase", s.Phase), zap.Duration("age", h.now().Sub(s.ConnectedAt)))
}

func (h *GameHandler) OnMessage(p network.Peer, frame string) {
	s, ok := h.sessions[p]
	if !ok {
		return
	}

	msg, err := protocol.Parse(frame)
	if err != nil {
		h.fail(s, rejectf("%v", err))
		return
	}

	if err := h.dispatch(s, msg); err != nil {
		h.fail(s, err)
	}
}

// dispatch escolhe o roteador da fase atual e executa o handler do comando.
func (h *GameHandler) dispatch(s *Session, msg protocol.Message) error {
	handler, found := h.routers[s.Phase][msg.Command]
	if !found {
		if perr := wrongPhase(msg.Command); perr != nil {
			return perr
		}
		return rejectf("unknown command: %s", msg.Command)
	}

	if err := protocol.ValidateRequest(msg); err != nil {
		return rejectf("%v", err)
	}
	return handler(h, s, msg)
}

// wrongPhase devolve o erro fatal para um comando de cliente fora da sua fase.
func wrongPhase(command string) *ProtocolError {
	switch command {
	case protocol.CmdHello:
		return fatalf("handshake already completed")
	case protocol.CmdLogin:
		return fatalf("not connected")
	case protocol.CmdList, protocol.CmdQueue:
		return fatalf("not logged in")
	case protocol.CmdMove:
		return fatalf("not in a game")
	}
	return nil
}

// fail envia o ERROR e, se o erro for fatal, derruba a conexão.
func (h *GameHandler) fail(s *Session, err error) {
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		perr = rejectf("%v", err)
	}

	s.send(protocol.Error("%s", perr.Message))
	if !perr.Fatal {
		h.metrics.ProtocolErrors.WithLabelValues("false").Inc()
		h.log.Debug("request rejected", zap.String("session", s.name()), zap.String("error", perr.Message))
		return
	}

	h.metrics.ProtocolErrors.WithLabelValues("true").Inc()
	h.log.Info("protocol violation, disconnecting", zap.String("session", s.name()),
		zap.Stringer("phase", s.Phase), zap.String("error", perr.Message))
	s.Peer.Disconnect()
}

// handleClientError registra o ERROR vindo do cliente e não responde.
func handleClientError(h *GameHandler, s *Session, msg protocol.Message) error {
	text, _ := msg.Arg(0)
	h.log.Info("client reported error", zap.String("session", s.name()), zap.String("message", text))
	return nil
}

func (h *GameHandler) route(phase Phase, command string, fn CommandHandlerFunc) {
	if h.routers[phase] == nil {
		h.routers[phase] = make(map[string]CommandHandlerFunc)
	}
	h.routers[phase][command] = fn
}
