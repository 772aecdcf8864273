// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dotsboxes/internal/config"
	"dotsboxes/internal/events"
	"dotsboxes/internal/logging"
	"dotsboxes/internal/metrics"
	"dotsboxes/internal/network"
	"dotsboxes/internal/services/cluster"
	"dotsboxes/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "dotsboxes-server:", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "dotsboxes-server",
		Usage: "Dots and Boxes match server (TCP line protocol + WebSocket)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a .toml or .yaml config file",
				Sources: cli.EnvVars("DOTSBOXES_CONFIG"),
			},
			&cli.StringFlag{Name: "tcp-addr", Usage: "TCP listen address for the line protocol"},
			&cli.StringFlag{Name: "http-addr", Usage: "HTTP listen address for /ws, /health, /metrics and /sessions"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.IntFlag{Name: "board-size", Usage: "boxes per side"},
			&cli.BoolFlag{Name: "consul-register", Usage: "register the service in consul"},
		},
		Action: run,
	}
}

// loadConfig lê o arquivo/ambiente e aplica as flags por último.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if cmd.IsSet("tcp-addr") {
		cfg.Server.TCPAddr = cmd.String("tcp-addr")
	}
	if cmd.IsSet("http-addr") {
		cfg.Server.HTTPAddr = cmd.String("http-addr")
	}
	if cmd.IsSet("log-level") {
		cfg.Logging.Level = cmd.String("log-level")
	}
	if cmd.IsSet("board-size") {
		cfg.Game.BoardSize = int(cmd.Int("board-size"))
	}
	if cmd.IsSet("consul-register") {
		cfg.Consul.Register = cmd.Bool("consul-register")
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("service", cfg.Server.Name))
	log.Info("configuration loaded",
		zap.String("tcp", cfg.Server.TCPAddr),
		zap.String("http", cfg.Server.HTTPAddr),
		zap.Int("board_size", cfg.Game.BoardSize))

	// Métricas
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	health := cluster.NewHealthAggregator()

	// Stream de eventos de partida
	var pub events.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		np, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject, cfg.Server.Name, log.Named("nats"))
		if err != nil {
			return err
		}
		defer func() {
			if err := np.Close(); err != nil {
				log.Warn("nats drain failed", zap.Error(err))
			}
		}()
		health.AddCheck("nats", np.Check)
		pub = np
		log.Info("publishing match events to nats", zap.String("url", cfg.NATS.URL))
	}

	handler := session.NewGameHandler(session.Options{
		Description:       cfg.Server.Description,
		BoardSize:         cfg.Game.BoardSize,
		MaxIdentityLength: cfg.Game.MaxIdentityLength,
		Publisher:         pub,
		Metrics:           m,
		Logger:            log,
	})
	srv := network.NewServer(handler, network.Options{
		MaxMessageSize: cfg.Network.MaxMessageSize,
		SendBuffer:     cfg.Network.SendBuffer,
		WriteTimeout:   cfg.Network.WriteTimeout,
		IdleTimeout:    cfg.Network.IdleTimeout,
		RateLimit:      cfg.Network.RateLimit,
		RateBurst:      cfg.Network.RateBurst,
	}, log.Named("network"))

	health.AddCheck("hub", func() error {
		select {
		case <-srv.Hub().Done():
			return errors.New("hub stopped")
		default:
			return nil
		}
	})

	if cfg.Consul.Register {
		deregister, err := registerInConsul(cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := deregister(); err != nil {
				log.Warn("consul deregistration failed", zap.Error(err))
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		srv.Hub().Run(gctx)
		return nil
	})

	if cfg.Server.TCPAddr != "" {
		g.Go(func() error { return srv.ListenTCP(gctx, cfg.Server.TCPAddr) })
	}

	if cfg.Server.HTTPAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", srv.ServeWS)
		mux.Handle("/health", health.Handler())
		mux.Handle("/metrics", metrics.Handler(reg))
		mux.Handle("/sessions", session.RosterHandler(handler, srv.Hub()))

		httpSrv := &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("http listener started", zap.String("addr", cfg.Server.HTTPAddr))
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.Info("server stopped")
	return err
}

func registerInConsul(cfg *config.Config, log *zap.Logger) (func() error, error) {
	client, err := cluster.NewConsulClient(cfg.Consul.Addr, log.Named("consul"))
	if err != nil {
		return nil, err
	}
	return cluster.RegisterService(client, cluster.Registration{
		ServiceName: cfg.Consul.ServiceName,
		TCPAddr:     cfg.Server.TCPAddr,
		HTTPAddr:    cfg.Server.HTTPAddr,
	}, log.Named("consul"))
}
