package cluster

import (
	"fmt"
	"net"
	"os"
	"strconv"

	consul "github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

// Registration descreve como o servidor se anuncia no Consul.
type Registration struct {
	ServiceName string
	TCPAddr     string // porta do protocolo de jogo
	HTTPAddr    string // porta do /health
	Tags        []string
}

// ServiceID monta um ID único a partir do hostname.
func ServiceID(serviceName string) string {
	hostname := os.Getenv("HOSTNAME")
	if hostname == "" {
		// Fallback caso a variável de ambiente não esteja setada
		hostname, _ = os.Hostname()
	}
	return fmt.Sprintf("%s-%s", serviceName, hostname)
}

// BuildRegistration gera o registro com um check HTTP apontando para /health.
func BuildRegistration(r Registration) (*consul.AgentServiceRegistration, error) {
	port, err := portOf(r.TCPAddr)
	if err != nil {
		return nil, fmt.Errorf("tcp addr: %w", err)
	}
	healthPort, err := portOf(r.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("http addr: %w", err)
	}

	id := ServiceID(r.ServiceName)
	hostname, _ := os.Hostname()
	if h := os.Getenv("HOSTNAME"); h != "" {
		hostname = h
	}

	return &consul.AgentServiceRegistration{
		ID:   id,
		Name: r.ServiceName,
		Port: port,
		Tags: append([]string{"dotsboxes", "tcp"}, r.Tags...),
		Meta: map[string]string{"http_port": strconv.Itoa(healthPort)},
		Check: &consul.AgentServiceCheck{
			HTTP:     fmt.Sprintf("http://%s:%d/health", hostname, healthPort),
			Timeout:  "5s",
			Interval: "10s",
			// desregistra automaticamente se ficar crítico por mais de 1 minuto
			DeregisterCriticalServiceAfter: "1m",
		},
	}, nil
}

// RegisterService registra o serviço e devolve a função que o remove no shutdown.
func RegisterService(client *consul.Client, r Registration, log *zap.Logger) (func() error, error) {
	reg, err := BuildRegistration(r)
	if err != nil {
		return nil, err
	}
	if err := client.Agent().ServiceRegister(reg); err != nil {
		return nil, fmt.Errorf("register %s in consul: %w", reg.ID, err)
	}
	log.Info("service registered in consul", zap.String("id", reg.ID), zap.Int("port", reg.Port))

	deregister := func() error {
		if err := client.Agent().ServiceDeregister(reg.ID); err != nil {
			return fmt.Errorf("deregister %s: %w", reg.ID, err)
		}
		log.Info("service deregistered from consul", zap.String("id", reg.ID))
		return nil
	}
	return deregister, nil
}

func portOf(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 {
		return 0, fmt.Errorf("invalid port in %q", addr)
	}
	return port, nil
}
