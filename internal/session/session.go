package session

import (
	"time"

	"dotsboxes/internal/network"
	"dotsboxes/internal/protocol"
)

// Phase é a fase do protocolo em que a sessão está.
type Phase int

const (
	PhaseNew Phase = iota
	PhaseConnected
	PhaseLoggedIn
	PhaseInGame
)

func (p Phase) String() string {
	switch p {
	case PhaseNew:
		return "NEW"
	case PhaseConnected:
		return "CONNECTED"
	case PhaseLoggedIn:
		return "LOGGED_IN"
	case PhaseInGame:
		return "IN_GAME"
	}
	return "UNKNOWN"
}

// Session representa um cliente conectado. Os campos mutáveis só são tocados
// na goroutine do Hub.
type Session struct {
	ID          string
	Peer        network.Peer
	Identity    string // vazio até o login
	Phase       Phase
	Queued      bool
	ConnectedAt time.Time
}

func newSession(p network.Peer, now time.Time) *Session {
	return &Session{
		ID:          p.ID(),
		Peer:        p,
		Phase:       PhaseNew,
		ConnectedAt: now,
	}
}

func (s *Session) send(m protocol.Message) bool {
	return s.Peer.Send(m.Encode())
}

// name é usado nos logs antes e depois do login.
func (s *Session) name() string {
	if s.Identity != "" {
		return s.Identity
	}
	return s.ID
}
