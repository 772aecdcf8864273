// cmd/bots/simple-bot/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dotsboxes/internal/client"
	"dotsboxes/internal/config"
	"dotsboxes/internal/game"
	"dotsboxes/internal/logging"
	"dotsboxes/internal/protocol"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "simple-bot",
		Usage: "connects N bots that queue and play random legal moves",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Sources: cli.EnvVars("DOTSBOXES_CONFIG")},
			&cli.StringFlag{Name: "server", Usage: "server TCP address"},
			&cli.IntFlag{Name: "bots", Value: 2, Usage: "number of concurrent bots"},
			&cli.IntFlag{Name: "games", Value: 0, Usage: "games per bot (0 = until interrupted)"},
			&cli.DurationFlag{Name: "think", Value: 200 * time.Millisecond, Usage: "max delay before each move"},
			&cli.StringFlag{Name: "prefix", Value: "bot", Usage: "identity prefix"},
		},
		Action: run,
	}
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "simple-bot:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.IsSet("server") {
		cfg.Client.ServerAddr = cmd.String("server")
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	g, gctx := errgroup.WithContext(ctx)
	for i := 1; i <= int(cmd.Int("bots")); i++ {
		b := &bot{
			name:  fmt.Sprintf("%s-%d", cmd.String("prefix"), i),
			addr:  cfg.Client.ServerAddr,
			dim:   cfg.Game.BoardSize,
			games: int(cmd.Int("games")),
			think: cmd.Duration("think"),
			opts:  client.Options{Timeout: cfg.Client.RequestTimeout, Logger: log.Named("client")},
		}
		b.log = log.With(zap.String("bot", b.name))
		g.Go(func() error { return b.run(gctx) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// bot espelha o tabuleiro localmente para saber quais linhas estão livres.
type bot struct {
	name  string
	addr  string
	dim   int
	games int
	think time.Duration
	opts  client.Options
	log   *zap.Logger

	conn   *client.Client
	engine *game.Game
	played int
}

func (b *bot) run(ctx context.Context) error {
	conn, err := client.Dial(ctx, b.addr, b.opts)
	if err != nil {
		return err
	}
	defer conn.Close()
	b.conn = conn

	desc, err := conn.Hello(ctx, "simple-bot")
	if err != nil {
		return fmt.Errorf("%s handshake: %w", b.name, err)
	}
	if err := b.login(ctx); err != nil {
		return err
	}
	b.log.Info("login success", zap.String("server", desc))

	if err := conn.Queue(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-conn.Events():
			if !ok {
				return fmt.Errorf("%s: %w", b.name, client.ErrDisconnected)
			}
			done, err := b.handle(msg)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// login tenta o nome base e, se estiver em uso, acrescenta um sufixo.
func (b *bot) login(ctx context.Context) error {
	name := b.name
	for attempt := 0; attempt < 5; attempt++ {
		err := b.conn.Login(ctx, name)
		if err == nil {
			b.name = name
			return nil
		}
		if !errors.Is(err, client.ErrAlreadyLoggedIn) {
			return fmt.Errorf("%s login: %w", name, err)
		}
		name = fmt.Sprintf("%s-%d", b.name, rand.Intn(10000))
	}
	return fmt.Errorf("%s login: %w", b.name, client.ErrAlreadyLoggedIn)
}

// handle devolve true quando o bot já jogou todas as partidas pedidas.
func (b *bot) handle(msg protocol.Message) (bool, error) {
	switch msg.Command {
	case protocol.CmdNewGame:
		first, _ := msg.Arg(0)
		second, _ := msg.Arg(1)
		g, err := game.New(first, second, b.dim)
		if err != nil {
			return false, err
		}
		b.engine = g
		b.log.Info("new game", zap.String("first", first), zap.String("second", second))
		return false, b.maybeMove()

	case protocol.CmdMove:
		if b.engine == nil {
			return false, nil
		}
		loc, err := msg.IntArg(0)
		if err != nil {
			return false, err
		}
		if _, err := b.engine.ApplyMove(loc); err != nil {
			return false, fmt.Errorf("board out of sync at %d: %w", loc, err)
		}
		return false, b.maybeMove()

	case protocol.CmdGameOver:
		reason, _ := msg.Arg(0)
		winner, _ := msg.Arg(1)
		b.engine = nil
		b.played++
		b.log.Info("game over", zap.String("reason", reason), zap.String("winner", winner),
			zap.Int("played", b.played))
		if b.games > 0 && b.played >= b.games {
			return true, nil
		}
		return false, b.conn.Queue()

	case protocol.CmdError:
		text, _ := msg.Arg(0)
		b.log.Warn("server error", zap.String("message", text))
	}
	return false, nil
}

// maybeMove joga uma linha livre aleatória quando é a vez do bot.
func (b *bot) maybeMove() error {
	if b.engine == nil || b.engine.IsTerminal() || b.engine.CurrentTurn() != b.name {
		return nil
	}
	moves := b.engine.ValidMoves()
	if len(moves) == 0 {
		return nil
	}
	if b.think > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(b.think))))
	}
	return b.conn.Move(moves[rand.Intn(len(moves))])
}
