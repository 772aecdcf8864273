package client_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dotsboxes/internal/client"
	"dotsboxes/internal/events"
	"dotsboxes/internal/network"
	"dotsboxes/internal/protocol"
	"dotsboxes/internal/session"
)

func startStack(t *testing.T) (string, *events.Recorder) {
	t.Helper()
	rec := &events.Recorder{}
	handler := session.NewGameHandler(session.Options{Publisher: rec})
	srv := network.NewServer(handler, network.DefaultOptions(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Hub().Run(ctx)
	go func() { _ = srv.Serve(ctx, ln) }()
	return ln.Addr().String(), rec
}

func loginAs(t *testing.T, addr, name string) *client.Client {
	t.Helper()
	ctx := context.Background()
	c, err := client.Dial(ctx, addr, client.Options{Timeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	desc, err := c.Hello(ctx, "e2e")
	require.NoError(t, err)
	require.Equal(t, "Minor 14 - Server", desc)
	require.NoError(t, c.Login(ctx, name))
	return c
}

func next(t *testing.T, c *client.Client) protocol.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m, err := c.Next(ctx)
	require.NoError(t, err)
	return m
}

func TestAliceAndBob(t *testing.T) {
	addr, rec := startStack(t)
	ctx := context.Background()

	alice := loginAs(t, addr, "alice")
	bob := loginAs(t, addr, "bob")

	roster, err := alice.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, roster)

	// O LIST depois do QUEUE garante que a fila de alice foi processada antes da de bob.
	require.NoError(t, alice.Queue())
	_, err = alice.List(ctx)
	require.NoError(t, err)
	require.NoError(t, bob.Queue())

	assert.Equal(t, protocol.NewGame("alice", "bob"), next(t, alice))
	assert.Equal(t, protocol.NewGame("alice", "bob"), next(t, bob))

	require.NoError(t, bob.Move(999))
	ev := next(t, bob)
	assert.Equal(t, protocol.CmdError, ev.Command)

	require.NoError(t, bob.Move(0))
	assert.Equal(t, protocol.Error("not your turn"), next(t, bob))

	require.NoError(t, alice.Move(0))
	assert.Equal(t, protocol.Move(0), next(t, alice))
	assert.Equal(t, protocol.Move(0), next(t, bob))

	require.NoError(t, alice.Close())
	assert.Equal(t, protocol.GameOver(protocol.ReasonDisconnect, "bob"), next(t, bob))

	require.Eventually(t, func() bool { return len(rec.OfType(events.MatchEnded)) == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Len(t, rec.OfType(events.MatchMove), 1)
}

func TestDuplicateLoginOverTCP(t *testing.T) {
	addr, _ := startStack(t)
	ctx := context.Background()
	loginAs(t, addr, "alice")

	c, err := client.Dial(ctx, addr, client.Options{Timeout: 2 * time.Second})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Hello(ctx, "e2e")
	require.NoError(t, err)
	assert.ErrorIs(t, c.Login(ctx, "alice"), client.ErrAlreadyLoggedIn)
	assert.NoError(t, c.Login(ctx, "alice2"))
}

func TestFatalErrorDisconnectsClient(t *testing.T) {
	addr, _ := startStack(t)
	ctx := context.Background()

	c, err := client.Dial(ctx, addr, client.Options{Timeout: 2 * time.Second})
	require.NoError(t, err)
	defer c.Close()

	// LIST antes do login: o servidor responde ERROR e fecha.
	_, err = c.List(ctx)
	var serr *client.ServerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "not logged in", serr.Message)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("server did not close the connection")
	}
}
