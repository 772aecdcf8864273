package session

import (
	"errors"

	"go.uber.org/zap"

	"dotsboxes/internal/protocol"
)

func handleHello(h *GameHandler, s *Session, msg protocol.Message) error {
	desc, _ := msg.Arg(0)
	s.Phase = PhaseConnected
	s.send(protocol.Hello(h.opts.Description))
	h.log.Debug("handshake completed", zap.String("session", s.ID), zap.String("client", desc))
	return nil
}

func handleLogin(h *GameHandler, s *Session, msg protocol.Message) error {
	if len(msg.Args) > 1 {
		return rejectf("%v: must not contain the field separator", ErrInvalidIdentity)
	}
	name := msg.Args[0]
	if err := ValidateIdentity(name, h.opts.MaxIdentityLength); err != nil {
		return rejectf("%v", err)
	}

	if err := h.registry.Register(s, name); err != nil {
		if errors.Is(err, ErrAlreadyLoggedIn) {
			// Continua em CONNECTED para o cliente tentar outro nome.
			s.send(protocol.AlreadyLoggedIn())
			return nil
		}
		return err
	}

	s.Identity = name
	s.Phase = PhaseLoggedIn
	h.metrics.SessionsLoggedIn.Inc()
	s.send(protocol.LoginAccepted())
	h.log.Info("player logged in", zap.String("session", s.ID), zap.String("identity", name))
	return nil
}

func handleList(h *GameHandler, s *Session, msg protocol.Message) error {
	s.send(protocol.List(h.registry.Identities()...))
	return nil
}

// handleQueue alterna a presença na fila.
func handleQueue(h *GameHandler, s *Session, msg protocol.Message) error {
	if s.Queued {
		h.matchmaker.Dequeue(s)
		return nil
	}
	h.matchmaker.Enqueue(s)
	return nil
}

func (h *GameHandler) registerHandshakeHandlers() {
	h.route(PhaseNew, protocol.CmdHello, handleHello)
	h.route(PhaseNew, protocol.CmdError, handleClientError)

	h.route(PhaseConnected, protocol.CmdLogin, handleLogin)
	h.route(PhaseConnected, protocol.CmdError, handleClientError)
}

func (h *GameHandler) registerLobbyHandlers() {
	h.route(PhaseLoggedIn, protocol.CmdList, handleList)
	h.route(PhaseLoggedIn, protocol.CmdQueue, handleQueue)
	h.route(PhaseLoggedIn, protocol.CmdError, handleClientError)
}
