package session

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dotsboxes/internal/events"
	"dotsboxes/internal/metrics"
)

// fakePeer grava os frames enviados. Disconnect apenas marca o pedido;
// o harness faz o papel do Hub e chama OnDisconnect depois do evento.
type fakePeer struct {
	id     string
	frames []string
	kicked bool
	closed bool
}

func (p *fakePeer) ID() string         { return p.id }
func (p *fakePeer) RemoteAddr() string { return "test:" + p.id }
func (p *fakePeer) Disconnect()        { p.kicked = true }

func (p *fakePeer) Send(frame string) bool {
	if p.closed || p.kicked {
		return false
	}
	p.frames = append(p.frames, frame)
	return true
}

// take devolve e limpa o que foi recebido.
func (p *fakePeer) take() []string {
	out := p.frames
	p.frames = nil
	return out
}

type harness struct {
	t       *testing.T
	h       *GameHandler
	events  *events.Recorder
	metrics *metrics.Collectors
	peers   []*fakePeer
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	rec := &events.Recorder{}
	m := metrics.New(prometheus.NewRegistry())
	opts.Publisher = rec
	opts.Metrics = m
	opts.Logger = zap.NewNop()
	return &harness{t: t, h: NewGameHandler(opts), events: rec, metrics: m}
}

func (hs *harness) connect(id string) *fakePeer {
	p := &fakePeer{id: id}
	hs.h.OnConnect(p)
	hs.peers = append(hs.peers, p)
	return p
}

// send entrega um frame e aplica um eventual Disconnect como o Hub faria.
func (hs *harness) send(p *fakePeer, frame string) []string {
	hs.h.OnMessage(p, frame)
	out := p.take()
	hs.flush()
	return out
}

func (hs *harness) flush() {
	for _, p := range hs.peers {
		if p.kicked && !p.closed {
			p.closed = true
			hs.h.OnDisconnect(p)
		}
	}
}

func (hs *harness) drop(p *fakePeer) {
	if p.closed {
		return
	}
	p.closed = true
	hs.h.OnDisconnect(p)
}

// login completa HELLO e LOGIN e limpa as respostas.
func (hs *harness) login(name string) *fakePeer {
	hs.t.Helper()
	p := hs.connect(name)
	require.Equal(hs.t, []string{"HELLO~Minor 14 - Server"}, hs.send(p, "HELLO~test client"))
	require.Equal(hs.t, []string{"LOGIN"}, hs.send(p, "LOGIN~"+name))
	return p
}

func (hs *harness) session(p *fakePeer) *Session {
	return hs.h.sessions[p]
}

// pair coloca a e b na fila, nessa ordem, e descarta o NEWGAME.
func (hs *harness) pair(a, b *fakePeer) {
	hs.t.Helper()
	require.Empty(hs.t, hs.send(a, "QUEUE"))
	hs.send(b, "QUEUE")
	a.take()
	require.Equal(hs.t, PhaseInGame, hs.session(a).Phase)
	require.Equal(hs.t, PhaseInGame, hs.session(b).Phase)
}
