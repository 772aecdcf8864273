package protocol

// Mensagens no sentido servidor -> cliente.

import (
	"fmt"
	"strconv"
	"strings"
)

// textSafe troca o separador e quebras de linha para o texto caber num único campo.
var textSafe = strings.NewReplacer(Separator, "-", "\r", " ", "\n", " ")

func Hello(description string) Message {
	return Message{Command: CmdHello, Args: []string{description}}
}

// LoginAccepted confirma o login. Sem argumentos.
func LoginAccepted() Message {
	return Message{Command: CmdLogin}
}

func AlreadyLoggedIn() Message {
	return Message{Command: CmdAlreadyLoggedIn}
}

// List monta o roster. Uma lista vazia vira apenas "LIST".
func List(identities ...string) Message {
	if len(identities) == 0 {
		return Message{Command: CmdList}
	}
	args := make([]string, len(identities))
	copy(args, identities)
	return Message{Command: CmdList, Args: args}
}

// NewGame anuncia uma partida. first joga primeiro.
func NewGame(first, second string) Message {
	return Message{Command: CmdNewGame, Args: []string{first, second}}
}

func Move(location int) Message {
	return Message{Command: CmdMove, Args: []string{strconv.Itoa(location)}}
}

// GameOver sempre leva o campo do vencedor, mesmo vazio (ex.: "GAMEOVER~DRAW~").
func GameOver(reason, winner string) Message {
	return Message{Command: CmdGameOver, Args: []string{reason, winner}}
}

func Error(format string, args ...any) Message {
	return Message{Command: CmdError, Args: []string{textSafe.Replace(fmt.Sprintf(format, args...))}}
}

// ============================================================================
// Mensagens no sentido cliente -> servidor
// ============================================================================

func HelloRequest(description string) Message {
	return Message{Command: CmdHello, Args: []string{description}}
}

func LoginRequest(identity string) Message {
	return Message{Command: CmdLogin, Args: []string{identity}}
}

func ListRequest() Message {
	return Message{Command: CmdList}
}

func QueueRequest() Message {
	return Message{Command: CmdQueue}
}

func MoveRequest(location int) Message {
	return Move(location)
}
