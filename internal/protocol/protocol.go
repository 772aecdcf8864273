// START OF FILE dotsboxes/internal/protocol/protocol.go
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Separator divide os campos de um frame. O primeiro campo é sempre o comando.
const Separator = "~"

// Comandos do protocolo. HELLO, LOGIN, LIST, MOVE e ERROR existem nos dois sentidos.
const (
	CmdHello           = "HELLO"
	CmdLogin           = "LOGIN"
	CmdAlreadyLoggedIn = "ALREADYLOGGEDIN"
	CmdList            = "LIST"
	CmdQueue           = "QUEUE"
	CmdNewGame         = "NEWGAME"
	CmdMove            = "MOVE"
	CmdGameOver        = "GAMEOVER"
	CmdError           = "ERROR"
)

// Motivos aceitos em GAMEOVER.
const (
	ReasonVictory    = "VICTORY"
	ReasonDraw       = "DRAW"
	ReasonDisconnect = "DISCONNECT"
)

var (
	ErrMalformed      = errors.New("malformed message")
	ErrUnknownCommand = errors.New("unknown command")
)

// Message é o evento estruturado que circula dentro de um frame de texto.
type Message struct {
	Command string
	Args    []string
}

// Parse transforma um frame (sem o delimitador de linha) em Message.
// Só o formato é verificado aqui; a aridade de cada comando fica com Validate.
func Parse(frame string) (Message, error) {
	frame = strings.TrimRight(frame, "\r\n")
	if strings.TrimSpace(frame) == "" {
		return Message{}, fmt.Errorf("%w: empty frame", ErrMalformed)
	}

	fields := strings.Split(frame, Separator)
	msg := Message{Command: fields[0]}
	if len(fields) > 1 {
		msg.Args = fields[1:]
	}
	return msg, nil
}

// Encode gera o frame de texto da mensagem, sem quebra de linha.
func (m Message) Encode() string {
	if len(m.Args) == 0 {
		return m.Command
	}
	return m.Command + Separator + strings.Join(m.Args, Separator)
}

func (m Message) String() string { return m.Encode() }

// Arg devolve o i-ésimo argumento, se existir.
func (m Message) Arg(i int) (string, bool) {
	if i < 0 || i >= len(m.Args) {
		return "", false
	}
	return m.Args[i], true
}

// IntArg lê o i-ésimo argumento como inteiro.
func (m Message) IntArg(i int) (int, error) {
	raw, ok := m.Arg(i)
	if !ok {
		return 0, fmt.Errorf("%w: %s expects argument %d", ErrMalformed, m.Command, i+1)
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %s argument %q is not an integer", ErrMalformed, m.Command, raw)
	}
	return n, nil
}

// Known informa se o comando faz parte do protocolo.
func Known(command string) bool {
	switch command {
	case CmdHello, CmdLogin, CmdAlreadyLoggedIn, CmdList, CmdQueue,
		CmdNewGame, CmdMove, CmdGameOver, CmdError:
		return true
	}
	return false
}

// ValidateRequest confere a aridade de um comando enviado por um cliente.
func ValidateRequest(m Message) error {
	switch m.Command {
	case CmdHello, CmdList, CmdQueue, CmdError:
		return nil
	case CmdLogin:
		if name, ok := m.Arg(0); !ok || name == "" {
			return fmt.Errorf("%w: no username provided", ErrMalformed)
		}
		return nil
	case CmdMove:
		if len(m.Args) != 1 {
			return fmt.Errorf("%w: MOVE expects exactly one location", ErrMalformed)
		}
		_, err := m.IntArg(0)
		return err
	case CmdAlreadyLoggedIn, CmdNewGame, CmdGameOver:
		// Comandos que só o servidor envia.
		return fmt.Errorf("%w: %s", ErrUnknownCommand, m.Command)
	}
	return fmt.Errorf("%w: %s", ErrUnknownCommand, m.Command)
}

// ValidateReply confere a aridade de um comando enviado pelo servidor.
func ValidateReply(m Message) error {
	switch m.Command {
	case CmdHello, CmdLogin, CmdAlreadyLoggedIn, CmdList, CmdError:
		return nil
	case CmdNewGame:
		if len(m.Args) < 2 {
			return fmt.Errorf("%w: NEWGAME expects two identities", ErrMalformed)
		}
		return nil
	case CmdMove:
		_, err := m.IntArg(0)
		return err
	case CmdGameOver:
		if len(m.Args) < 1 {
			return fmt.Errorf("%w: GAMEOVER expects a reason", ErrMalformed)
		}
		switch m.Args[0] {
		case ReasonVictory, ReasonDraw, ReasonDisconnect:
			return nil
		}
		return fmt.Errorf("%w: unknown GAMEOVER reason %q", ErrMalformed, m.Args[0])
	}
	return fmt.Errorf("%w: %s", ErrUnknownCommand, m.Command)
}

//END OF FILE dotsboxes/internal/protocol/protocol.go
