package assessment

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/frma/frma/internal/platform/inference"
)

// Handle owns one live session together with its in-flight submission.
// All access to session goes through mu.
type Handle struct {
	mu      sync.Mutex
	session *Session
	profile *inference.Profile
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHandle(s *Session) *Handle {
	return &Handle{session: s}
}

// abandon discards the in-flight submission, if any.
func (h *Handle) abandon() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.session.Invalidate()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// Store keeps live sessions by id.
type Store interface {
	Put(h *Handle)
	Get(id string) (*Handle, bool)
	Delete(id string)
	Len() int
}

// MemoryStore is a bounded in-process Store. Sessions idle for longer than
// the TTL, or pushed out by newer ones, are abandoned.
type MemoryStore struct {
	cache *expirable.LRU[string, *Handle]
}

func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	onEvict := func(_ string, h *Handle) { h.abandon() }
	return &MemoryStore{cache: expirable.NewLRU[string, *Handle](size, onEvict, ttl)}
}

// Put must not be called while holding h.mu.
func (m *MemoryStore) Put(h *Handle) { m.cache.Add(h.session.ID, h) }

// Get renews the session's TTL, so only sessions nobody reads expire.
func (m *MemoryStore) Get(id string) (*Handle, bool) {
	h, ok := m.cache.Get(id)
	if ok {
		m.cache.Add(id, h)
	}
	return h, ok
}

// Delete must not be called while holding the handle's lock.
func (m *MemoryStore) Delete(id string) { m.cache.Remove(id) }

func (m *MemoryStore) Len() int { return m.cache.Len() }
