package models

import "time"

// RegistrationStatus describes the state of a staff member's registration for an event
type RegistrationStatus string

const (
	// RegStatusSignedUp is the initial state after a staff member registered for an event
	RegStatusSignedUp = RegistrationStatus("signed_up")
	// RegStatusConfirmed is set by an administrator once the assignment is fixed
	RegStatusConfirmed = RegistrationStatus("confirmed")
	// RegStatusRejected is set by an administrator when the staff member is not needed
	RegStatusRejected = RegistrationStatus("rejected")
	// RegStatusWithdrawn marks a registration the staff member has taken back
	RegStatusWithdrawn = RegistrationStatus("withdrawn")
)

// ValidRegistrationStatus checks if the given value is one of the known registration states
func ValidRegistrationStatus(s RegistrationStatus) bool {
	switch s {
	case RegStatusSignedUp, RegStatusConfirmed, RegStatusRejected, RegStatusWithdrawn:
		return true
	}
	return false
}

// Active tells whether a registration in the given status occupies a slot in its category
func (s RegistrationStatus) Active() bool {
	return s != RegStatusWithdrawn && s != RegStatusRejected
}

// Registration links a staff member to one staff category of an event.
// A staff member holds at most one active registration per event - the storage layer enforces
// this with a partial unique index over the statuses Active() reports true for.
type Registration struct {
	// Internal ID
	ID uint `db:"id" json:"id"`
	// The event this registration belongs to
	EventID uint `db:"eventId" json:"eventId"`
	// The staff member who signed up
	UserID uint `db:"userId" json:"userId"`
	// The staff category the member signed up for - one of the event's requirement categories
	Category string `db:"category" json:"category"`
	// Current state of the registration
	Status RegistrationStatus `db:"status" json:"status"`
	// Optional remarks by the staff member
	Notes string `db:"notes" json:"notes,omitempty"`
	// Creation date of this entry
	CreatedAt time.Time `db:"createdAt" json:"createdAt"`
	// Date of the last update of this entry
	UpdatedAt time.Time `db:"updatedAt" json:"updatedAt"`
}
