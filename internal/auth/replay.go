package auth

import (
	"sync"
	"time"
)

// ReplayGuard remembers redeemed token ids until they expire so one-time
// tokens cannot be exchanged twice by the same process.
type ReplayGuard struct {
	mu    sync.Mutex
	spent map[string]time.Time
	now   func() time.Time
}

func NewReplayGuard(now func() time.Time) *ReplayGuard {
	if now == nil {
		now = time.Now
	}
	return &ReplayGuard{spent: map[string]time.Time{}, now: now}
}

// Redeem marks id as used. It returns false when id was already redeemed
// and has not yet expired.
func (g *ReplayGuard) Redeem(id string, expiresAt time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	for k, exp := range g.spent {
		if now.After(exp) {
			delete(g.spent, k)
		}
	}
	if _, ok := g.spent[id]; ok {
		return false
	}
	g.spent[id] = expiresAt
	return true
}
