package session

import (
	"dotsboxes/internal/protocol"
)

func handleMove(h *GameHandler, s *Session, msg protocol.Message) error {
	location, err := msg.IntArg(0)
	if err != nil {
		return rejectf("%v", err)
	}
	return h.matchmaker.ApplyMove(s, location)
}

// handleQueueInGame recusa QUEUE durante a partida sem derrubar a sessão.
func handleQueueInGame(h *GameHandler, s *Session, msg protocol.Message) error {
	return rejectf("already in game")
}

// registerMatchHandlers popula o roteador com os comandos disponíveis durante uma partida.
func (h *GameHandler) registerMatchHandlers() {
	h.route(PhaseInGame, protocol.CmdMove, handleMove)
	h.route(PhaseInGame, protocol.CmdList, handleList)
	h.route(PhaseInGame, protocol.CmdQueue, handleQueueInGame)
	h.route(PhaseInGame, protocol.CmdError, handleClientError)
}
