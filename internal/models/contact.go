package models

import "time"

// ContactStatus describes the processing state of a contact request
type ContactStatus string

const (
	// ContactStatusNew marks a request nobody has looked at yet
	ContactStatusNew = ContactStatus("new")
	// ContactStatusInProgress marks a request somebody is currently working on
	ContactStatusInProgress = ContactStatus("inProgress")
	// ContactStatusDone marks a request that has been answered
	ContactStatusDone = ContactStatus("done")
)

// ValidContactStatus checks if the given value is one of the known contact request states
func ValidContactStatus(s ContactStatus) bool {
	switch s {
	case ContactStatusNew, ContactStatusInProgress, ContactStatusDone:
		return true
	}
	return false
}

// ContactRequest is a quote request submitted through the public multi-step booking form
type ContactRequest struct {
	// Internal ID
	ID uint `db:"id" json:"id"`
	// Name of the person asking for a quote
	Name string `db:"name" json:"name"`
	// E-mail address for the reply
	Email string `db:"email" json:"email"`
	// Optional phone number
	Phone string `db:"phone" json:"phone,omitempty"`
	// What kind of event is planned, e.g. "wedding" or "corporate"
	EventType string `db:"eventType" json:"eventType"`
	// The planned date of the event
	EventDate time.Time `db:"eventDate" json:"eventDate"`
	// Free-text message from the form
	Message string `db:"message" json:"message,omitempty"`
	// Processing state inside the admin console
	Status ContactStatus `db:"status" json:"status"`
	// Creation date of this entry
	CreatedAt time.Time `db:"createdAt" json:"createdAt"`
	// Date of the last update of this entry
	UpdatedAt time.Time `db:"updatedAt" json:"updatedAt"`
}
