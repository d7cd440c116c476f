package digest

import (
	"sync"

	"github.com/tsumugi-bot/tsumugi/internal/buffer"
)

// Guard tracks conversation keys with a flush in flight. At most one flush
// runs per key; a trigger arriving while its key is held is dropped, not
// queued.
type Guard struct {
	mu       sync.Mutex
	inflight map[buffer.Key]struct{}
}

func NewGuard() *Guard {
	return &Guard{inflight: map[buffer.Key]struct{}{}}
}

// TryAcquire marks key as in flight. Returns false if a flush already holds
// it.
func (g *Guard) TryAcquire(key buffer.Key) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.inflight[key]; held {
		return false
	}
	g.inflight[key] = struct{}{}
	return true
}

// Release clears the in-flight mark. Must run on every exit path of a flush;
// a leaked mark blocks the key until process restart.
func (g *Guard) Release(key buffer.Key) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, key)
}
