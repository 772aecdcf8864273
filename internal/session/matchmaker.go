package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dotsboxes/internal/events"
	"dotsboxes/internal/game"
	"dotsboxes/internal/metrics"
	"dotsboxes/internal/protocol"
)

// EngineFactory cria o motor de regras de uma partida nova. first joga primeiro.
type EngineFactory func(first, second string) (game.Engine, error)

// Match é uma partida em andamento entre duas sessões.
type Match struct {
	ID        string
	First     *Session
	Second    *Session
	Engine    game.Engine
	StartedAt time.Time
}

// Other devolve o adversário de s.
func (m *Match) Other(s *Session) *Session {
	if m.First == s {
		return m.Second
	}
	return m.First
}

func (m *Match) players() [2]string {
	return [2]string{m.First.Identity, m.Second.Identity}
}

// pairKey identifica o par sem depender da ordem.
type pairKey struct{ a, b string }

func keyOf(x, y *Session) pairKey {
	if x.ID < y.ID {
		return pairKey{x.ID, y.ID}
	}
	return pairKey{y.ID, x.ID}
}

// Matchmaker mantém a fila FIFO e a tabela de partidas.
// Não é seguro para uso concorrente: roda apenas na goroutine do Hub.
type Matchmaker struct {
	queue     []*Session
	matches   map[pairKey]*Match
	bySession map[*Session]*Match

	newEngine EngineFactory
	publisher events.Publisher
	metrics   *metrics.Collectors
	log       *zap.Logger
	now       func() time.Time
}

func NewMatchmaker(newEngine EngineFactory, pub events.Publisher, m *metrics.Collectors, log *zap.Logger) *Matchmaker {
	return &Matchmaker{
		matches:   make(map[pairKey]*Match),
		bySession: make(map[*Session]*Match),
		newEngine: newEngine,
		publisher: pub,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// ============================================================================
// Fila
// ============================================================================

// Enqueue coloca s no fim da fila (se ainda não estiver) e tenta formar pares.
func (mm *Matchmaker) Enqueue(s *Session) {
	if s.Queued {
		return
	}
	mm.queue = append(mm.queue, s)
	s.Queued = true
	mm.log.Debug("player queued", zap.String("identity", s.Identity), zap.Int("queue", len(mm.queue)))
	mm.tryPair()
	mm.metrics.QueueLength.Set(float64(len(mm.queue)))
}

// Dequeue tira s da fila. Sem efeito se não estiver nela.
func (mm *Matchmaker) Dequeue(s *Session) {
	for i, queued := range mm.queue {
		if queued == s {
			mm.queue = append(mm.queue[:i], mm.queue[i+1:]...)
			break
		}
	}
	if s.Queued {
		mm.log.Debug("player left queue", zap.String("identity", s.Identity), zap.Int("queue", len(mm.queue)))
	}
	s.Queued = false
	mm.metrics.QueueLength.Set(float64(len(mm.queue)))
}

func (mm *Matchmaker) QueueLen() int { return len(mm.queue) }

// Queue devolve as identidades na ordem de chegada.
func (mm *Matchmaker) Queue() []string {
	out := make([]string, len(mm.queue))
	for i, s := range mm.queue {
		out[i] = s.Identity
	}
	return out
}

// tryPair junta os dois mais antigos enquanto houver pelo menos dois na fila.
func (mm *Matchmaker) tryPair() {
	for len(mm.queue) >= 2 {
		first, second := mm.queue[0], mm.queue[1]
		mm.queue = mm.queue[2:]
		first.Queued = false
		second.Queued = false

		engine, err := mm.newEngine(first.Identity, second.Identity)
		if err != nil {
			mm.log.Error("could not create game", zap.String("first", first.Identity),
				zap.String("second", second.Identity), zap.Error(err))
			first.send(protocol.Error("could not start game"))
			second.send(protocol.Error("could not start game"))
			continue
		}
		mm.start(first, second, engine)
	}
}

// ============================================================================
// Partidas
// ============================================================================

func (mm *Matchmaker) start(first, second *Session, engine game.Engine) {
	m := &Match{
		ID:        uuid.NewString(),
		First:     first,
		Second:    second,
		Engine:    engine,
		StartedAt: mm.now(),
	}
	mm.matches[keyOf(first, second)] = m
	mm.bySession[first] = m
	mm.bySession[second] = m
	first.Phase = PhaseInGame
	second.Phase = PhaseInGame

	msg := protocol.NewGame(first.Identity, second.Identity)
	first.send(msg)
	second.send(msg)

	mm.metrics.MatchesActive.Set(float64(len(mm.matches)))
	mm.log.Info("match started", zap.String("match", m.ID),
		zap.String("first", first.Identity), zap.String("second", second.Identity))
	mm.publish(events.Event{Type: events.MatchStarted, MatchID: m.ID, Players: m.players()})
}

// MatchOf devolve a partida da sessão, se houver.
func (mm *Matchmaker) MatchOf(s *Session) (*Match, bool) {
	m, ok := mm.bySession[s]
	return m, ok
}

// Match busca a partida pelo par, em qualquer ordem.
func (mm *Matchmaker) Match(x, y *Session) (*Match, bool) {
	m, ok := mm.matches[keyOf(x, y)]
	return m, ok
}

func (mm *Matchmaker) ActiveMatches() int { return len(mm.matches) }

// ApplyMove valida e aplica a jogada de s. Recusas não alteram o motor.
func (mm *Matchmaker) ApplyMove(s *Session, location int) error {
	m, ok := mm.bySession[s]
	if !ok {
		return fatalf("not in a game")
	}

	if !m.Engine.IsValidMove(location) {
		mm.metrics.MovesTotal.WithLabelValues("rejected").Inc()
		return rejectf("invalid move")
	}
	if m.Engine.CurrentTurn() != s.Identity {
		mm.metrics.MovesTotal.WithLabelValues("rejected").Inc()
		return rejectf("not your turn")
	}

	res, err := m.Engine.ApplyMove(location)
	if err != nil {
		mm.metrics.MovesTotal.WithLabelValues("rejected").Inc()
		return rejectf("invalid move")
	}
	mm.metrics.MovesTotal.WithLabelValues("accepted").Inc()

	move := protocol.Move(location)
	m.First.send(move)
	m.Second.send(move)

	loc := location
	mm.publish(events.Event{
		Type:     events.MatchMove,
		MatchID:  m.ID,
		Players:  m.players(),
		Mover:    res.Mover,
		Location: &loc,
	})

	if !res.Terminal && !m.Engine.IsTerminal() {
		return nil
	}

	reason := protocol.ReasonDraw
	winner, decided := m.Engine.Winner()
	if decided {
		reason = protocol.ReasonVictory
	}
	over := protocol.GameOver(reason, winner)
	m.First.send(over)
	m.Second.send(over)
	mm.end(m, reason, winner)
	return nil
}

// DisconnectCleanup tira s da fila e encerra a partida dela, avisando só o sobrevivente.
func (mm *Matchmaker) DisconnectCleanup(s *Session) {
	mm.Dequeue(s)

	m, ok := mm.bySession[s]
	if !ok {
		return
	}
	survivor := m.Other(s)
	survivor.send(protocol.GameOver(protocol.ReasonDisconnect, survivor.Identity))
	mm.end(m, protocol.ReasonDisconnect, survivor.Identity)
}

// end remove a partida das tabelas e devolve os dois jogadores ao lobby.
func (mm *Matchmaker) end(m *Match, reason, winner string) {
	delete(mm.matches, keyOf(m.First, m.Second))
	delete(mm.bySession, m.First)
	delete(mm.bySession, m.Second)
	for _, s := range []*Session{m.First, m.Second} {
		if s.Phase == PhaseInGame {
			s.Phase = PhaseLoggedIn
		}
	}

	mm.metrics.MatchesActive.Set(float64(len(mm.matches)))
	mm.metrics.GamesFinished.WithLabelValues(reason).Inc()
	mm.log.Info("match ended", zap.String("match", m.ID), zap.String("reason", reason),
		zap.String("winner", winner), zap.Duration("duration", mm.now().Sub(m.StartedAt)))
	mm.publish(events.Event{
		Type:    events.MatchEnded,
		MatchID: m.ID,
		Players: m.players(),
		Reason:  reason,
		Winner:  winner,
		Scores:  m.Engine.Scores(),
	})
}

func (mm *Matchmaker) publish(ev events.Event) {
	ev.At = mm.now()
	if err := mm.publisher.Publish(context.Background(), ev); err != nil {
		mm.log.Warn("publish match event failed", zap.String("type", ev.Type), zap.Error(err))
	}
}
