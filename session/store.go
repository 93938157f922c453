package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is the server-side state for one authenticated client. ID, UserID,
// Role, Claims, CSRF, and CreatedAt are written once at creation and safe to
// read from any goroutine afterwards. LastSeen and the key/value area belong
// to the store and are touched only under its lock.
type Record struct {
	ID        string
	UserID    int64
	Role      string
	Claims    map[string]string
	CSRF      string
	CreatedAt time.Time
	LastSeen  time.Time

	values map[string]string
}

// Store maps session ids to records. Records expire ttl after their last
// access; Get refreshes the clock on hit.
type Store struct {
	mu      sync.Mutex
	records map[string]*Record
	ttl     time.Duration
	now     func() time.Time
}

// NewStore returns a store whose records expire ttl after last access.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		records: make(map[string]*Record),
		ttl:     ttl,
		now:     time.Now,
	}
}

// TTL returns the configured session lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create mints a session for the user: random id, random CSRF token.
// The store takes ownership of claims.
func (s *Store) Create(userID int64, role string, claims map[string]string) *Record {
	now := s.now()
	rec := &Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		Claims:    claims,
		CSRF:      uuid.NewString(),
		CreatedAt: now,
		LastSeen:  now,
		values:    make(map[string]string),
	}

	s.mu.Lock()
	s.records[rec.ID] = rec
	s.mu.Unlock()
	return rec
}

// Get resolves a session id. Expired records are removed on the way; a hit
// refreshes LastSeen. Returns nil when the id is unknown or expired.
func (s *Store) Get(id string) *Record {
	if id == "" {
		return nil
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	if now.Sub(rec.LastSeen) > s.ttl {
		delete(s.records, id)
		return nil
	}
	rec.LastSeen = now
	return rec
}

// Destroy removes a session. Unknown ids are a no-op.
func (s *Store) Destroy(id string) {
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
}

// Len returns the number of live records, expired ones included until swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Sweep removes records idle past the TTL as of now and reports how many
// went. Meant to run periodically; Get already drops expired records lazily.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.records {
		if now.Sub(rec.LastSeen) > s.ttl {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}

// SetValue stores a raw key/value pair on the session. No-op when the id is
// unknown.
func (s *Store) SetValue(id, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		rec.values[key] = value
	}
}

// Value reads a raw key/value pair from the session.
func (s *Store) Value(id, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return "", false
	}
	v, ok := rec.values[key]
	return v, ok
}

// DeleteValue removes a raw key/value pair from the session.
func (s *Store) DeleteValue(id, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		delete(rec.values, key)
	}
}
