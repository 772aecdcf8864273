package events

import (
	"context"
	"sync"
	"time"
)

// Tipos de evento publicados pelo matchmaker.
const (
	MatchStarted = "match.started"
	MatchMove    = "match.move"
	MatchEnded   = "match.ended"
)

// Event é o payload JSON publicado no stream de partidas.
type Event struct {
	Type     string         `json:"type"`
	MatchID  string         `json:"match_id"`
	Players  [2]string      `json:"players"`
	Mover    string         `json:"mover,omitempty"`
	Location *int           `json:"location,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Winner   string         `json:"winner,omitempty"`
	Scores   map[string]int `json:"scores,omitempty"`
	At       time.Time      `json:"at"`
}

// Publisher recebe os eventos de partida. Falhas são do chamador decidir;
// o servidor apenas as registra no log.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop descarta tudo. Usado quando o NATS não está configurado.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder guarda os eventos em memória.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events devolve uma cópia do que foi publicado até agora.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType filtra os eventos gravados por tipo.
func (r *Recorder) OfType(typ string) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
