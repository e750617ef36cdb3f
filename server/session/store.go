// Package session keeps login sessions in memory.
//
// Every connection worker reads and writes the store, so all access goes
// through xsync's MapOf. Expiry is lazy: an expired entry is dropped when
// it is read, there is no sweeper. Entries that are never read again stay
// in memory until restart.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

type record struct {
	userID  int64
	expires time.Time
}

type Store struct {
	ttl time.Duration
	now func() time.Time
	m   *xsync.MapOf[string, record]
}

type Option func(*Store)

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		ttl: ttl,
		now: time.Now,
		m:   xsync.NewMapOf[string, record](),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create starts a session for userID and returns its opaque token.
func (s *Store) Create(userID int64) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("session: token: %w", err)
	}
	token := id.String()

	s.m.Store(token, record{userID: userID, expires: s.now().Add(s.ttl)})
	return token, nil
}

// UserID returns the user behind token. An expired token is deleted
// in the same atomic step and reported as absent.
func (s *Store) UserID(token string) (int64, bool) {
	now := s.now()
	var (
		uid   int64
		alive bool
	)

	s.m.Compute(token, func(old record, loaded bool) (record, bool) {
		if !loaded {
			// nothing stored, ask for delete so no empty entry is created
			return old, true
		}
		if now.After(old.expires) {
			return old, true
		}
		uid, alive = old.userID, true
		return old, false
	})
	return uid, alive
}

// Delete is idempotent.
func (s *Store) Delete(token string) {
	s.m.Delete(token)
}

// Len counts stored entries, expired ones included until they are read.
func (s *Store) Len() int {
	return s.m.Size()
}
