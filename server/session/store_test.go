package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clock that tests move by hand
type fakeClock struct {
	ns atomic.Int64
}

func newFakeClock() *fakeClock {
	c := &fakeClock{}
	c.ns.Store(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	return c
}

func (c *fakeClock) Now() time.Time          { return time.Unix(0, c.ns.Load()) }
func (c *fakeClock) Advance(d time.Duration) { c.ns.Add(int64(d)) }

func TestCreateThenLookup(t *testing.T) {
	s := NewStore(time.Hour)

	tok, err := s.Create(42)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	uid, ok := s.UserID(tok)
	assert.True(t, ok)
	assert.Equal(t, int64(42), uid)
}

func TestTokensAreUnique(t *testing.T) {
	s := NewStore(time.Hour)
	seen := map[string]bool{}
	for range 100 {
		tok, err := s.Create(1)
		require.NoError(t, err)
		require.False(t, seen[tok])
		seen[tok] = true
	}
	assert.Equal(t, 100, s.Len())
}

func TestExpiredIsRemovedOnRead(t *testing.T) {
	clk := newFakeClock()
	s := NewStore(30*time.Second, WithClock(clk.Now))

	tok, err := s.Create(7)
	require.NoError(t, err)

	// expiry instant itself is still valid
	clk.Advance(30 * time.Second)
	_, ok := s.UserID(tok)
	require.True(t, ok)

	clk.Advance(time.Second)
	_, ok = s.UserID(tok)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestExpiredStaysUntilRead(t *testing.T) {
	clk := newFakeClock()
	s := NewStore(time.Second, WithClock(clk.Now))

	_, err := s.Create(1)
	require.NoError(t, err)
	clk.Advance(time.Hour)

	assert.Equal(t, 1, s.Len())
}

func TestUnknownTokenAddsNothing(t *testing.T) {
	s := NewStore(time.Hour)

	_, ok := s.UserID("nope")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := NewStore(time.Hour)
	tok, err := s.Create(3)
	require.NoError(t, err)

	s.Delete(tok)
	s.Delete(tok)
	s.Delete("never-existed")

	_, ok := s.UserID(tok)
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore(time.Hour)

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			for range 200 {
				tok, err := s.Create(uid)
				if !assert.NoError(t, err) {
					return
				}
				got, ok := s.UserID(tok)
				assert.True(t, ok)
				assert.Equal(t, uid, got)
				s.Delete(tok)
			}
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, 0, s.Len())
}
