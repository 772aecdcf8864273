// START OF FILE dotsboxes/internal/network/handler.go
package network

// Peer é a visão que a lógica do jogo tem de uma conexão.
// Send e Disconnect só podem ser chamados na goroutine do Hub
// (dentro do EventHandler ou de Hub.Call).
type Peer interface {
	ID() string
	RemoteAddr() string

	// Send enfileira um frame sem bloquear. Devolve false se o peer já foi
	// desconectado ou se o buffer de saída estourou (nesse caso ele é derrubado).
	Send(frame string) bool

	// Disconnect agenda o fechamento. Frames já enfileirados ainda são escritos.
	Disconnect()
}

// EventHandler é a interface que conecta a lógica da rede com a lógica do jogo.
// Todos os métodos rodam na goroutine do Hub, um evento por vez.
type EventHandler interface {
	// OnConnect é chamado quando um novo cliente se conecta com sucesso.
	OnConnect(p Peer)

	// OnDisconnect é chamado exatamente uma vez por conexão, seja qual for o motivo.
	OnDisconnect(p Peer)

	// OnMessage recebe cada frame na ordem em que chegou, já sem o delimitador.
	OnMessage(p Peer, frame string)
}

//END OF FILE dotsboxes/internal/network/handler.go
