package session

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dotsboxes/internal/events"
	"dotsboxes/internal/game"
	"dotsboxes/internal/metrics"
)

func newTestMatchmaker(factory EngineFactory) (*Matchmaker, *events.Recorder, *metrics.Collectors) {
	if factory == nil {
		factory = func(first, second string) (game.Engine, error) { return game.New(first, second, 5) }
	}
	rec := &events.Recorder{}
	m := metrics.New(nil)
	return NewMatchmaker(factory, rec, m, zap.NewNop()), rec, m
}

func loggedIn(name string) (*Session, *fakePeer) {
	p := &fakePeer{id: name + "-conn"}
	return &Session{ID: p.id, Peer: p, Identity: name, Phase: PhaseLoggedIn}, p
}

func TestEnqueueIsIdempotent(t *testing.T) {
	mm, _, m := newTestMatchmaker(nil)
	a, _ := loggedIn("alice")

	mm.Enqueue(a)
	mm.Enqueue(a)
	assert.Equal(t, 1, mm.QueueLen())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueueLength))

	mm.Dequeue(a)
	mm.Dequeue(a)
	assert.Equal(t, 0, mm.QueueLen())
	assert.False(t, a.Queued)
}

func TestTryPairTakesTwoOldest(t *testing.T) {
	mm, rec, m := newTestMatchmaker(nil)
	a, pa := loggedIn("a")
	b, pb := loggedIn("b")
	c, pc := loggedIn("c")
	d, _ := loggedIn("d")

	mm.Enqueue(a)
	mm.Enqueue(b)
	mm.Enqueue(c)

	assert.Equal(t, []string{"NEWGAME~a~b"}, pa.take())
	assert.Equal(t, []string{"NEWGAME~a~b"}, pb.take())
	assert.Empty(t, pc.take())
	assert.Equal(t, []string{"c"}, mm.Queue())

	mm.Enqueue(d)
	assert.Equal(t, 2, mm.ActiveMatches())
	assert.Equal(t, float64(2), testutil.ToFloat64(m.MatchesActive))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.QueueLength))

	match, ok := mm.MatchOf(d)
	require.True(t, ok)
	assert.Same(t, c, match.First)
	assert.Same(t, c, match.Other(d))

	byPair, ok := mm.Match(d, c)
	require.True(t, ok)
	assert.Same(t, match, byPair)
	assert.Len(t, rec.OfType(events.MatchStarted), 2)
}

func TestEngineFailureKeepsPlayersInLobby(t *testing.T) {
	mm, _, _ := newTestMatchmaker(func(string, string) (game.Engine, error) {
		return nil, errors.New("boom")
	})
	a, pa := loggedIn("a")
	b, _ := loggedIn("b")

	mm.Enqueue(a)
	mm.Enqueue(b)

	assert.Equal(t, []string{"ERROR~could not start game"}, pa.take())
	assert.Equal(t, PhaseLoggedIn, a.Phase)
	assert.Equal(t, 0, mm.ActiveMatches())
	assert.Equal(t, 0, mm.QueueLen())
}

func TestApplyMoveWithoutMatch(t *testing.T) {
	mm, _, _ := newTestMatchmaker(nil)
	a, _ := loggedIn("a")

	err := mm.ApplyMove(a, 0)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.True(t, perr.Fatal)
	assert.Equal(t, "not in a game", perr.Message)
}

func TestRejectedMoveLeavesEngineUntouched(t *testing.T) {
	mm, _, m := newTestMatchmaker(nil)
	a, _ := loggedIn("a")
	b, _ := loggedIn("b")
	mm.Enqueue(a)
	mm.Enqueue(b)
	match, _ := mm.MatchOf(a)

	before := len(match.Engine.ValidMoves())
	err := mm.ApplyMove(b, 0)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.False(t, perr.Fatal)
	assert.Equal(t, before, len(match.Engine.ValidMoves()))
	assert.Equal(t, "a", match.Engine.CurrentTurn())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MovesTotal.WithLabelValues("rejected")))
}

func TestDisconnectCleanupNotifiesSurvivorOnce(t *testing.T) {
	mm, _, _ := newTestMatchmaker(nil)
	a, pa := loggedIn("a")
	b, pb := loggedIn("b")
	mm.Enqueue(a)
	mm.Enqueue(b)
	pa.take()
	pb.take()

	mm.DisconnectCleanup(a)
	mm.DisconnectCleanup(a)

	assert.Equal(t, []string{"GAMEOVER~DISCONNECT~b"}, pb.take())
	assert.Empty(t, pa.take())
	assert.Equal(t, PhaseLoggedIn, b.Phase)
	_, ok := mm.MatchOf(b)
	assert.False(t, ok)
}
