package session

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"dotsboxes/internal/network"
)

// Snapshot é o estado público do servidor exposto em /sessions.
type Snapshot struct {
	Identities []string      `json:"identities"`
	Sessions   int           `json:"sessions"`
	Queue      []string      `json:"queue"`
	Matches    []MatchStatus `json:"matches"`
}

type MatchStatus struct {
	ID      string         `json:"id"`
	Players [2]string      `json:"players"`
	Turn    string         `json:"turn"`
	Scores  map[string]int `json:"scores"`
	Started time.Time      `json:"started"`
}

// Snapshot deve rodar na goroutine do Hub.
func (h *GameHandler) Snapshot() Snapshot {
	snap := Snapshot{
		Identities: h.registry.Identities(),
		Sessions:   len(h.sessions),
		Queue:      h.matchmaker.Queue(),
		Matches:    make([]MatchStatus, 0, len(h.matchmaker.matches)),
	}
	for _, m := range h.matchmaker.matches {
		snap.Matches = append(snap.Matches, MatchStatus{
			ID:      m.ID,
			Players: m.players(),
			Turn:    m.Engine.CurrentTurn(),
			Scores:  m.Engine.Scores(),
			Started: m.StartedAt,
		})
	}
	return snap
}

// RosterHandler serve o Snapshot em JSON, coletado dentro do Hub.
func RosterHandler(h *GameHandler, hub *network.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		var snap Snapshot
		if err := hub.Call(ctx, func() { snap = h.Snapshot() }); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(snap)
	}
}
