package memory

import (
	"sync"
	"time"

	"literature-agent-be/pkg/session"

	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps one controller per session id in memory. Idle
// sessions expire; every access slides the expiry.
type SessionRepository struct {
	cache *cache.Cache
	mu    sync.Mutex
	ttl   time.Duration
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &SessionRepository{
		cache: cache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (r *SessionRepository) Get(sessionID string) (*session.Controller, bool) {
	if x, found := r.cache.Get(sessionID); found {
		ctrl := x.(*session.Controller)
		r.cache.Set(sessionID, ctrl, r.ttl)
		return ctrl, true
	}
	return nil, false
}

// GetOrCreate returns the session's controller, building it on first use
func (r *SessionRepository) GetOrCreate(sessionID string, create func(id string) *session.Controller) *session.Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ctrl, ok := r.Get(sessionID); ok {
		return ctrl
	}
	ctrl := create(sessionID)
	r.cache.Set(ctrl.ID(), ctrl, r.ttl)
	return ctrl
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}
