package identity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonbook/internal/apperr"
	"salonbook/internal/model"
)

type memStore struct {
	mu      sync.Mutex
	clients map[string]*model.Client
	nextID  int64
	creates int

	// raceWith, when set, is inserted right before the next create to
	// simulate another request winning the race.
	raceWith *model.Client
	failGet  error
}

func newMemStore() *memStore {
	return &memStore{clients: map[string]*model.Client{}}
}

func (m *memStore) GetClientByNationalID(_ context.Context, nid string) (*model.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	c, ok := m.clients[nid]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) CreateClient(_ context.Context, c *model.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.raceWith != nil {
		m.nextID++
		m.raceWith.ID = m.nextID
		m.clients[m.raceWith.NationalID] = m.raceWith
		m.raceWith = nil
	}
	if _, ok := m.clients[c.NationalID]; ok {
		return apperr.ErrConflict
	}
	m.nextID++
	c.ID = m.nextID
	cp := *c
	m.clients[c.NationalID] = &cp
	return nil
}

func TestResolveOrCreate_NewClient(t *testing.T) {
	store := newMemStore()
	r := NewResolver(store, nil)

	res, err := r.ResolveOrCreate(context.Background(), Input{
		FullName:   " Dana Ruiz ",
		Email:      "dana@example.com",
		Phone:      "+1 (555) 010-2030",
		NationalID: "ab-123 45",
	})
	require.NoError(t, err)
	assert.True(t, res.IsNew)
	assert.Equal(t, "AB12345", res.Client.NationalID)
	assert.Equal(t, "Dana Ruiz", res.Client.FullName)
	assert.Equal(t, "+15550102030", res.Client.Phone)
	assert.NotZero(t, res.Client.ID)
}

func TestResolveOrCreate_ExistingReturnedUnchanged(t *testing.T) {
	store := newMemStore()
	store.clients["AB12345"] = &model.Client{ID: 7, FullName: "Dana Ruiz", Email: "old@example.com", NationalID: "AB12345"}
	r := NewResolver(store, nil)

	res, err := r.ResolveOrCreate(context.Background(), Input{
		FullName:   "Someone Else",
		Email:      "new@example.com",
		NationalID: "AB12345",
	})
	require.NoError(t, err)
	assert.False(t, res.IsNew)
	assert.Equal(t, int64(7), res.Client.ID)
	assert.Equal(t, "old@example.com", res.Client.Email)
	assert.Zero(t, store.creates)
}

func TestResolveOrCreate_Idempotent(t *testing.T) {
	store := newMemStore()
	r := NewResolver(store, nil)
	in := Input{FullName: "Dana Ruiz", NationalID: "X1"}

	first, err := r.ResolveOrCreate(context.Background(), in)
	require.NoError(t, err)
	second, err := r.ResolveOrCreate(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, first.IsNew)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.Client.ID, second.Client.ID)
	assert.Len(t, store.clients, 1)
}

func TestResolveOrCreate_LostRaceReadsWinner(t *testing.T) {
	store := newMemStore()
	store.raceWith = &model.Client{FullName: "Winner", NationalID: "X1"}
	r := NewResolver(store, nil)

	res, err := r.ResolveOrCreate(context.Background(), Input{FullName: "Loser", NationalID: "X1"})
	require.NoError(t, err)
	assert.False(t, res.IsNew)
	assert.Equal(t, "Winner", res.Client.FullName)
}

func TestResolveOrCreate_Validation(t *testing.T) {
	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{"missing national id", Input{FullName: "A"}, "nationalId"},
		{"blank national id", Input{FullName: "A", NationalID: " - "}, "nationalId"},
		{"missing name", Input{NationalID: "X1"}, "fullName"},
		{"bad email", Input{FullName: "A", NationalID: "X1", Email: "nope"}, "email"},
		{"bad phone", Input{FullName: "A", NationalID: "X1", Phone: "12"}, "phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			_, err := NewResolver(store, nil).ResolveOrCreate(context.Background(), tt.in)
			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Zero(t, store.creates)
		})
	}
}

func TestResolveOrCreate_StoreFailure(t *testing.T) {
	store := newMemStore()
	boom := errors.New("disk gone")
	store.failGet = boom

	_, err := NewResolver(store, nil).ResolveOrCreate(context.Background(), Input{FullName: "A", NationalID: "X1"})
	assert.ErrorIs(t, err, boom)
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+7 (999) 123-45-67", "+79991234567", true},
		{"8 999 123 45 67", "89991234567", true},
		{"555-0100", "5550100", true},
		{"123", "", false},
		{"", "", false},
		{"+1234567890123456", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizePhone(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
