package session

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyLoggedIn = errors.New("identity already logged in")
	ErrInvalidIdentity = errors.New("invalid username")
)

// ProtocolError é a resposta ERROR enviada ao cliente.
// Fatal indica que a conexão deve ser derrubada logo após o envio.
type ProtocolError struct {
	Message string
	Fatal   bool
}

func (e *ProtocolError) Error() string {
	if e.Fatal {
		return "fatal protocol error: " + e.Message
	}
	return e.Message
}

// fatalf: uso fora de ordem do protocolo (fase errada).
func fatalf(format string, args ...any) *ProtocolError {
	return &ProtocolError{Message: fmt.Sprintf(format, args...), Fatal: true}
}

// rejectf: recusa de negócio ou mensagem malformada; a sessão continua.
func rejectf(format string, args ...any) *ProtocolError {
	return &ProtocolError{Message: fmt.Sprintf(format, args...)}
}
