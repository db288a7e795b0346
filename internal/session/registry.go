package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// ErrNotFound indicates that a session could not be located.
var ErrNotFound = errors.New("session not found")

const defaultSessionTTL = 12 * time.Hour

// Registry keeps live sessions in process memory with a TTL so abandoned
// sessions eventually disappear. There is no persistence across restarts.
type Registry struct {
	cache *gocache.Cache
}

// NewRegistry constructs a registry with the given session TTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Registry{cache: gocache.New(ttl, 10*time.Minute)}
}

// Create stores a fresh FORM-phase session and returns it.
func (r *Registry) Create() *Session {
	sess := newSession(uuid.NewString())
	r.cache.SetDefault(sess.ID, sess)
	return sess
}

// Get returns the session for the ID and refreshes its TTL.
func (r *Registry) Get(id string) (*Session, error) {
	value, ok := r.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	sess := value.(*Session)
	r.cache.SetDefault(id, sess)
	return sess, nil
}

// Replace swaps in a fresh FORM-phase session under an existing ID. Used
// by reset so UI clients keep their handle.
func (r *Registry) Replace(id string) (*Session, error) {
	if _, ok := r.cache.Get(id); !ok {
		return nil, ErrNotFound
	}
	sess := newSession(id)
	r.cache.SetDefault(id, sess)
	return sess, nil
}

// Delete removes a session outright.
func (r *Registry) Delete(id string) {
	r.cache.Delete(id)
}
