package wizard

import (
	"sync"
	"time"
)

// Session pairs a user's wizard with its last activity.
type Session struct {
	Wizard    *Wizard
	Query     *AvailabilityQuery
	StartedAt time.Time
	UpdatedAt time.Time
	// Input collects client fields typed during confirmation.
	Input Draft

	mu sync.Mutex
}

// Draft holds confirmation fields entered one at a time.
type Draft struct {
	FullName   string
	Email      string
	Phone      string
	NationalID string
	// Field is the one awaiting input, empty when none is.
	Field string

	skipped map[string]bool
}

// Skip records that an optional field was left blank on purpose.
func (d *Draft) Skip(field string) {
	if d.skipped == nil {
		d.skipped = make(map[string]bool)
	}
	d.skipped[field] = true
}

func (d *Draft) Skipped(field string) bool { return d.skipped[field] }

// Lock serialises handling of one user's updates.
func (s *Session) Lock() { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

func (s *Session) Touch(now time.Time) { s.UpdatedAt = now }

func (s *Session) expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.UpdatedAt) > timeout
}

func (s *Session) close() {
	if s.Query != nil {
		s.Query.Close()
	}
}

// SessionStore keeps one wizard per user and drops idle or closed ones.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	timeout  time.Duration
	factory  func(userID int64) *Session
	now      func() time.Time
}

func NewSessionStore(timeout time.Duration, factory func(userID int64) *Session) *SessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[int64]*Session),
		timeout:  timeout,
		factory:  factory,
		now:      time.Now,
	}
}

func (ss *SessionStore) Get(userID int64) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.sessions[userID]
}

// GetOrCreate returns the live session of userID, replacing an expired or
// closed one.
func (ss *SessionStore) GetOrCreate(userID int64) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := ss.now()
	if s, ok := ss.sessions[userID]; ok {
		if !s.expired(now, ss.timeout) && !s.Wizard.Closed() {
			s.Touch(now)
			return s
		}
		s.close()
	}

	s := ss.factory(userID)
	s.StartedAt, s.UpdatedAt = now, now
	ss.sessions[userID] = s
	return s
}

func (ss *SessionStore) Delete(userID int64) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if s, ok := ss.sessions[userID]; ok {
		s.close()
		delete(ss.sessions, userID)
	}
}

// Cleanup removes expired and closed sessions and reports how many.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := ss.now()
	removed := 0
	for userID, s := range ss.sessions {
		if s.expired(now, ss.timeout) || s.Wizard.Closed() {
			s.close()
			delete(ss.sessions, userID)
			removed++
		}
	}
	return removed
}
