package network

import "time"

const (
	// Tempo máximo para aguardar por um pong do cliente WebSocket.
	pongWait = 60 * time.Second

	// Frequência dos pings. Deve ser menor que pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// pinger é implementado pelos transportes que têm keepalive próprio.
// O writeLoop só cria o ticker quando a conexão é um pinger.
type pinger interface {
	Ping(deadline time.Time) error
}

// pingTicker devolve o canal do ticker e a função para pará-lo.
// Para conexões sem keepalive o canal é nil e nunca dispara.
func pingTicker(conn frameConn) (<-chan time.Time, func()) {
	if _, ok := conn.(pinger); !ok {
		return nil, func() {}
	}
	t := time.NewTicker(pingPeriod)
	return t.C, t.Stop
}
