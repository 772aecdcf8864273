package session

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"dotsboxes/internal/protocol"
)

// Registry garante que cada identidade pertence a no máximo uma sessão viva.
// Protegido por RWMutex para que leitores fora do Hub (HTTP) vejam um snapshot consistente.
type Registry struct {
	mu         sync.RWMutex
	byIdentity map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{byIdentity: make(map[string]*Session)}
}

// Register reserva identity para s. Checagem e inserção são atômicas.
func (r *Registry) Register(s *Session, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.byIdentity[identity]; ok && owner != s {
		return ErrAlreadyLoggedIn
	}
	r.byIdentity[identity] = s
	return nil
}

// Remove libera a identidade da sessão, se for dela.
func (r *Registry) Remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.byIdentity[s.Identity]; ok && owner == s {
		delete(r.byIdentity, s.Identity)
		return true
	}
	return false
}

func (r *Registry) Lookup(identity string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byIdentity[identity]
	return s, ok
}

// Identities devolve um snapshot ordenado das identidades logadas.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.byIdentity))
	for id := range r.byIdentity {
		out = append(out, id)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity)
}

// ValidateIdentity recusa nomes que quebrariam o framing ou excedem maxLen runas.
func ValidateIdentity(name string, maxLen int) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidIdentity)
	case strings.Contains(name, protocol.Separator):
		return fmt.Errorf("%w: must not contain the field separator", ErrInvalidIdentity)
	case strings.ContainsAny(name, "\r\n"):
		return fmt.Errorf("%w: must not contain line breaks", ErrInvalidIdentity)
	case !utf8.ValidString(name):
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidIdentity)
	case maxLen > 0 && utf8.RuneCountInString(name) > maxLen:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidIdentity, maxLen)
	}
	return nil
}
