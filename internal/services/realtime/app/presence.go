package server

import "sync"

// presenceRegistry tracks which usernames currently hold a live connection.
// Invariant: at most one entry per username at any time.
type presenceRegistry struct {
	mu         sync.Mutex
	byUsername map[string]string
}

func newPresenceRegistry() *presenceRegistry {
	return &presenceRegistry{byUsername: make(map[string]string)}
}

// tryRegister claims the username for connID. The check-and-set is atomic:
// when the username is already claimed the registry is left untouched and
// the caller must reject the new connection, never the existing one.
func (p *presenceRegistry) tryRegister(username string, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byUsername[username]; exists {
		return false
	}
	p.byUsername[username] = connID
	return true
}

// unregister releases the username. No-op if absent.
func (p *presenceRegistry) unregister(username string) {
	p.mu.Lock()
	delete(p.byUsername, username)
	p.mu.Unlock()
}

func (p *presenceRegistry) isRegistered(username string) bool {
	p.mu.Lock()
	_, ok := p.byUsername[username]
	p.mu.Unlock()
	return ok
}
