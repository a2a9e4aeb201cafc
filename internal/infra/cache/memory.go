package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryGuard защищает от повторной отправки в пределах одного процесса.
type MemoryGuard struct {
	mu    sync.Mutex
	held  map[string]memoryLease
	seq   uint64
	clock func() time.Time
}

type memoryLease struct {
	token   uint64
	expires time.Time
}

// NewMemoryGuard создаёт guard в памяти.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]memoryLease), clock: time.Now}
}

// Acquire занимает ключ на ttl. Просроченная аренда считается свободной.
func (g *MemoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock()
	if lease, ok := g.held[key]; ok && now.Before(lease.expires) {
		return nil, false, nil
	}
	g.seq++
	token := g.seq
	g.held[key] = memoryLease{token: token, expires: now.Add(ttl)}
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		// Освобождаем только свою аренду: после истечения ttl ключ мог занять другой.
		if lease, ok := g.held[key]; ok && lease.token == token {
			delete(g.held, key)
		}
	}, true, nil
}
