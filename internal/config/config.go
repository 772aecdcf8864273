package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config agrupa toda a configuração do servidor e dos bots.
type Config struct {
	Server  ServerConfig  `toml:"server" yaml:"server"`
	Network NetworkConfig `toml:"network" yaml:"network"`
	Game    GameConfig    `toml:"game" yaml:"game"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
	NATS    NATSConfig    `toml:"nats" yaml:"nats"`
	Consul  ConsulConfig  `toml:"consul" yaml:"consul"`
	Client  ClientConfig  `toml:"client" yaml:"client"`
}

type ServerConfig struct {
	Name        string `toml:"name" yaml:"name"`
	Description string `toml:"description" yaml:"description"` // enviado no HELLO
	TCPAddr     string `toml:"tcp_addr" yaml:"tcp_addr"`
	HTTPAddr    string `toml:"http_addr" yaml:"http_addr"` // /ws, /health, /metrics, /sessions
}

type NetworkConfig struct {
	MaxMessageSize int           `toml:"max_message_size" yaml:"max_message_size"`
	SendBuffer     int           `toml:"send_buffer" yaml:"send_buffer"`
	WriteTimeout   time.Duration `toml:"write_timeout" yaml:"write_timeout"`
	IdleTimeout    time.Duration `toml:"idle_timeout" yaml:"idle_timeout"` // 0 desliga
	RateLimit      float64       `toml:"rate_limit" yaml:"rate_limit"`     // frames/s, 0 desliga
	RateBurst      int           `toml:"rate_burst" yaml:"rate_burst"`
}

type GameConfig struct {
	BoardSize         int `toml:"board_size" yaml:"board_size"`
	MaxIdentityLength int `toml:"max_identity_length" yaml:"max_identity_length"`
}

type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // "json" or "console"
}

type NATSConfig struct {
	URL     string `toml:"url" yaml:"url"` // vazio desliga o stream de eventos
	Subject string `toml:"subject" yaml:"subject"`
}

type ConsulConfig struct {
	Addr        string `toml:"addr" yaml:"addr"`
	ServiceName string `toml:"service_name" yaml:"service_name"`
	Register    bool   `toml:"register" yaml:"register"`
}

type ClientConfig struct {
	ServerAddr     string        `toml:"server_addr" yaml:"server_addr"`
	RequestTimeout time.Duration `toml:"request_timeout" yaml:"request_timeout"`
}

// Load aplica, em ordem: padrões, arquivo (se path não for vazio), .env e
// variáveis de ambiente. O resultado é validado.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// .env é opcional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("config %s: unsupported extension", path)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name:        "dotsboxes",
			Description: "Minor 14 - Server",
			TCPAddr:     ":4444",
			HTTPAddr:    ":8080",
		},
		Network: NetworkConfig{
			MaxMessageSize: 4 * 1024,
			SendBuffer:     256,
			WriteTimeout:   10 * time.Second,
			RateLimit:      50,
			RateBurst:      100,
		},
		Game: GameConfig{
			BoardSize:         5,
			MaxIdentityLength: 32,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		NATS: NATSConfig{
			Subject: "dotsboxes.matches",
		},
		Consul: ConsulConfig{
			Addr:        "consul:8500",
			ServiceName: "dotsboxes-server",
		},
		Client: ClientConfig{
			ServerAddr:     "localhost:4444",
			RequestTimeout: 5 * time.Second,
		},
	}
}

// applyEnv sobrescreve campos com as variáveis de ambiente presentes.
func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	str("DOTSBOXES_NAME", &cfg.Server.Name)
	str("DOTSBOXES_DESCRIPTION", &cfg.Server.Description)
	str("DOTSBOXES_TCP_ADDR", &cfg.Server.TCPAddr)
	str("DOTSBOXES_HTTP_ADDR", &cfg.Server.HTTPAddr)
	str("DOTSBOXES_LOG_LEVEL", &cfg.Logging.Level)
	str("DOTSBOXES_LOG_FORMAT", &cfg.Logging.Format)
	str("DOTSBOXES_SERVER_ADDR", &cfg.Client.ServerAddr)
	str("NATS_URL", &cfg.NATS.URL)
	str("NATS_SUBJECT", &cfg.NATS.Subject)
	str("CONSUL_HTTP_ADDR", &cfg.Consul.Addr)
	str("CONSUL_SERVICE_NAME", &cfg.Consul.ServiceName)

	if v, ok := os.LookupEnv("DOTSBOXES_BOARD_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DOTSBOXES_BOARD_SIZE: %w", err)
		}
		cfg.Game.BoardSize = n
	}
	if v, ok := os.LookupEnv("DOTSBOXES_IDLE_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DOTSBOXES_IDLE_TIMEOUT: %w", err)
		}
		cfg.Network.IdleTimeout = d
	}
	if v, ok := os.LookupEnv("DOTSBOXES_REQUEST_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DOTSBOXES_REQUEST_TIMEOUT: %w", err)
		}
		cfg.Client.RequestTimeout = d
	}
	if v, ok := os.LookupEnv("CONSUL_REGISTER"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CONSUL_REGISTER: %w", err)
		}
		cfg.Consul.Register = b
	}
	return nil
}

// Validate confere os limites que o servidor assume.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.TCPAddr == "" && c.Server.HTTPAddr == "" {
		errs = append(errs, errors.New("server: at least one of tcp_addr or http_addr is required"))
	}
	if c.Game.BoardSize < 1 || c.Game.BoardSize > 10 {
		errs = append(errs, fmt.Errorf("game: board_size %d out of range 1..10", c.Game.BoardSize))
	}
	if c.Game.MaxIdentityLength < 1 {
		errs = append(errs, fmt.Errorf("game: max_identity_length must be positive"))
	}
	if c.Network.MaxMessageSize < 64 {
		errs = append(errs, fmt.Errorf("network: max_message_size %d is below 64", c.Network.MaxMessageSize))
	}
	if c.Network.SendBuffer < 1 {
		errs = append(errs, fmt.Errorf("network: send_buffer must be positive"))
	}
	if c.Network.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("network: rate_limit must not be negative"))
	}
	if c.Client.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("client: request_timeout is mandatory"))
	}
	if c.Consul.Register && c.Consul.Addr == "" {
		errs = append(errs, fmt.Errorf("consul: register requires addr"))
	}
	return errors.Join(errs...)
}
