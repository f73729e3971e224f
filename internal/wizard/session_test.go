package wizard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionStore(t *testing.T) {
	catalog := newCatalog(t)
	created := 0
	store := NewSessionStore(10*time.Minute, func(int64) *Session {
		created++
		return &Session{Wizard: New(catalog, newFakeBackend())}
	})
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	a := store.GetOrCreate(1)
	assert.Same(t, a, store.GetOrCreate(1))
	assert.Equal(t, 1, created)

	// Closed wizards are replaced.
	a.Wizard.Cancel()
	b := store.GetOrCreate(1)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, created)

	store.GetOrCreate(2)
	now = now.Add(5 * time.Minute)
	store.GetOrCreate(2)

	now = now.Add(6 * time.Minute)
	assert.Equal(t, 1, store.Cleanup(), "only user 1 idled past the timeout")
	assert.Nil(t, store.Get(1))
	assert.NotNil(t, store.Get(2))

	store.Delete(2)
	assert.Nil(t, store.Get(2))
}
