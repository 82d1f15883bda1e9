package engine

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// HandlingGuard tracks which (guild, user) pairs currently have a remediation
// cycle in flight, so a burst of violation signals for one user triggers
// exactly one cycle. Callers must Release on every exit path.
type HandlingGuard struct {
	inflight *xsync.MapOf[string, struct{}]
}

func NewHandlingGuard() *HandlingGuard {
	return &HandlingGuard{
		inflight: xsync.NewMapOf[string, struct{}](),
	}
}

func guardKey(guildID, userID string) string {
	return guildID + "/" + userID
}

// TryAcquire claims the pair; false means a cycle is already in flight.
func (g *HandlingGuard) TryAcquire(guildID, userID string) bool {
	_, loaded := g.inflight.LoadOrStore(guardKey(guildID, userID), struct{}{})
	return !loaded
}

func (g *HandlingGuard) Release(guildID, userID string) {
	g.inflight.Delete(guardKey(guildID, userID))
}

// Held reports whether a cycle is in flight for the pair.
func (g *HandlingGuard) Held(guildID, userID string) bool {
	_, ok := g.inflight.Load(guardKey(guildID, userID))
	return ok
}
