// Package contracts keeps track of registrations that wait for a signed work contract.
// When an event requires a contract, the registration write is deferred: the signing collaborator
// is called with the event and staff data, and the actual write happens once the collaborator
// reports completion through the callback endpoint.
package contracts

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// How long a signing request stays open before it is discarded
const defaultLifetime = 72 * time.Hour

// ErrNotFound is returned when a completion callback references an unknown or expired token
var ErrNotFound = fmt.Errorf("no pending contract for this token")

// SignRequest is the payload sent to the external contract-signing collaborator
type SignRequest struct {
	Token         string    `json:"token"`
	EventID       uint      `json:"eventId"`
	EventTitle    string    `json:"eventTitle"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate,omitempty"`
	StaffCategory string    `json:"staffCategory"`
	UserID        uint      `json:"userId"`
	UserName      string    `json:"userName"`
}

// Pending is a registration intent waiting for the signing collaborator to report back
type Pending struct {
	// The signing token identifying this intent
	Token string
	// The event the staff member wants to register for
	EventID uint
	// The staff member
	UserID uint
	// The requested staff category
	Category string
	// When was the signing request created?
	CreatedAt time.Time
	// When will the intent be discarded?
	ExpiresAt time.Time
}

// Manager holds the pending signing intents in memory. Intents do not survive a restart - the
// staff member simply registers again in that case
type Manager struct {
	mu       sync.Mutex
	pending  map[string]Pending
	lifetime time.Duration
}

// NewManager creates a new contract manager
func NewManager() *Manager {
	return NewManagerWithLifetime(defaultLifetime)
}

// NewManagerWithLifetime creates a new contract manager with a custom intent lifetime
func NewManagerWithLifetime(lifetime time.Duration) *Manager {
	return &Manager{
		pending:  map[string]Pending{},
		lifetime: lifetime,
	}
}

// Add stores a new signing intent and returns its token
func (m *Manager) Add(eventID uint, userID uint, category string) Pending {
	now := time.Now()
	p := Pending{
		Token:     uuid.NewString(),
		EventID:   eventID,
		UserID:    userID,
		Category:  category,
		CreatedAt: now,
		ExpiresAt: now.Add(m.lifetime),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeLocked(now)
	m.pending[p.Token] = p
	return p
}

// Take removes and returns the intent for the given token. Unknown and expired tokens yield
// ErrNotFound
func (m *Manager) Take(token string) (*Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeLocked(time.Now())
	p, ok := m.pending[token]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.pending, token)
	return &p, nil
}

// Len returns the number of currently pending intents
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *Manager) purgeLocked(now time.Time) {
	for token, p := range m.pending {
		if p.ExpiresAt.Before(now) {
			delete(m.pending, token)
		}
	}
}
