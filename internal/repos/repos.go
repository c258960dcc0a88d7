// Package repos contains the repository interfaces needed in Backstage
// It exists to prevent circular dependencies between backstage and the repo implementations
package repos

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/eventworks/backstage/internal/models"
)

var (
	// ErrEntityNotExisting is fired by a repository when an entity that is updated or deleted does not exist
	ErrEntityNotExisting = fmt.Errorf("cannot update: Entity does not exist")
	// ErrDuplicateRegistration is fired when a registration insert collides with an existing
	// active registration of the same user for the same event
	ErrDuplicateRegistration = fmt.Errorf("user already has an active registration for this event")
)

// EventRepo defines a repository that handles storing and querying internal events
type EventRepo interface {
	// Create creates a new event
	Create(ev *models.Event) error
	// Update updates the given event
	Update(ev *models.Event) error
	// Delete removes the given event
	Delete(id uint) error
	// GetByID returns the event with the given ID
	GetByID(id uint) (*models.Event, error)
	// SetStatus overwrites the stored status of the given event - used for cancellations
	SetStatus(id uint, status models.EventStatus) error
	// FindUpcoming returns all events starting at or after the given point in time,
	// ordered by their start time ascending
	FindUpcoming(from time.Time) ([]models.Event, error)
	// Find searches for events matching the given search string - supports pagination
	Find(search string, offset uint, limit uint) ([]models.Event, uint, error)
}

// RegistrationRepo defines a repository that stores staff registrations for events
type RegistrationRepo interface {
	// Create inserts a new registration. A collision with an existing active registration of the
	// same user for the same event is reported as ErrDuplicateRegistration
	Create(reg *models.Registration) error
	// ReplaceActive removes any active registration of the user for the event and inserts the
	// given one in a single transaction - used for role changes
	ReplaceActive(reg *models.Registration) error
	// Delete removes a registration
	Delete(id uint) error
	// GetByID returns the registration with the given ID
	GetByID(id uint) (*models.Registration, error)
	// GetActiveFor returns the active registration of the given user for the given event.
	// Withdrawn and rejected rows do not count
	GetActiveFor(eventID uint, userID uint) (*models.Registration, error)
	// ListByUser returns all registrations of the given user, newest first
	ListByUser(userID uint) ([]models.Registration, error)
	// ListByEvent returns all registrations for the given event
	ListByEvent(eventID uint) ([]models.Registration, error)
	// SetStatus updates the status of the given registration
	SetStatus(id uint, status models.RegistrationStatus) error
	// CountSignedUpByCategory returns the number of signed-up registrations per event and
	// category for the given events
	CountSignedUpByCategory(eventIDs []uint) (map[uint]map[string]uint, error)
}

// UserRepo defines a repository that is able to store, query and authenticate users and their
// qualifications
type UserRepo interface {
	// Create creates a new user
	Create(u *models.User) error
	// Update updates an existing user
	Update(u *models.User) error
	// Delete removes an existing user from the user storage
	Delete(id uint) error
	// GetByID returns the user with the given ID
	GetByID(id uint) (*models.User, error)
	// GetByCredentials returns the user which has the given username and password - this is used
	// for login. A failed match returns nil without an error
	GetByCredentials(username string, password string) (*models.User, error)
	// Find searches for users matching the given search string - supports pagination
	Find(search string, offset uint, limit uint) ([]models.User, uint, error)
	// Count returns the total number of user accounts
	Count() (uint, error)
	// QualificationsFor returns the qualifications held by the given user
	QualificationsFor(userID uint) ([]models.Qualification, error)
	// SetQualifications replaces the qualification assignment of the given user
	SetQualifications(userID uint, qualificationIDs []uint) error
	// ListQualifications returns the full qualification catalog
	ListQualifications() ([]models.Qualification, error)
	// CreateQualification adds a new entry to the qualification catalog
	CreateQualification(q *models.Qualification) error
	// DeleteQualification removes a qualification from the catalog and all its assignments
	DeleteQualification(id uint) error
	// CreateInvitation stores a new invitation
	CreateInvitation(inv *models.Invitation) error
	// GetInvitation returns the invitation with the given token
	GetInvitation(token string) (*models.Invitation, error)
	// MarkInvitationRedeemed sets the redemption timestamp on the given invitation
	MarkInvitationRedeemed(token string, when time.Time) error
	// ListInvitations returns all invitations, newest first
	ListInvitations() ([]models.Invitation, error)
}

// SessionRepo stores information about active API sessions
type SessionRepo interface {
	// CreateFor creates a new session for the given user ID
	CreateFor(userID uint) (*models.Session, error)
	// GetByID returns the session associated with the given session ID and extends it's expiry if requested
	GetByID(sessionID string, extend bool) (*models.Session, error)
	// Delete removes a session from the session storage
	Delete(sessionID string) error
}

// ContactRepo defines a repository that stores quote requests from the public booking form
type ContactRepo interface {
	// Create stores a new contact request
	Create(req *models.ContactRequest) error
	// Update updates an existing contact request
	Update(req *models.ContactRequest) error
	// Delete removes a contact request
	Delete(id uint) error
	// GetByID returns the contact request with the given ID
	GetByID(id uint) (*models.ContactRequest, error)
	// Find searches for contact requests matching the given search string - supports pagination
	Find(search string, offset uint, limit uint) ([]models.ContactRequest, uint, error)
}

// -- Helpers for SQLX repos -------------------------------------------------------------------------------------------

// DoRollback rolls back a transaction and catches any error resulting from it while appending the original error
func DoRollback(tx *sqlx.Tx, originalError error) error {
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("doRollback: Transaction rollback failed: %v; Recent error: %v", err, originalError)
	}
	return originalError
}
