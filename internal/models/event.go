package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// EventStatus describes the lifecycle state of an internal event
type EventStatus string

const (
	// StatusPlanned marks an event that has not started yet
	StatusPlanned = EventStatus("planned")
	// StatusRunning marks an event that is currently taking place
	StatusRunning = EventStatus("running")
	// StatusCompleted marks an event that lies in the past
	StatusCompleted = EventStatus("completed")
	// StatusCancelled marks an event that has been called off by an administrator
	StatusCancelled = EventStatus("cancelled")
)

// DefaultEventDuration is the duration assumed for events that have no end timestamp set
const DefaultEventDuration = 4 * time.Hour

// Event describes an internal event of the company that staff members can sign up for
type Event struct {
	// Internal ID
	ID uint `db:"id" json:"id"`
	// Title of the event
	Title string `db:"title" json:"title"`
	// A little description of the event
	Description string `db:"description" json:"description,omitempty"`
	// Where does the event take place?
	Location string `db:"location" json:"location"`
	// The expected number of guests
	GuestCount uint `db:"guestCount" json:"guestCount,omitempty"`
	// When does/did the event start?
	StartsAt time.Time `db:"startsAt" json:"startsAt"`
	// When does/did the event end? Zero value means "unknown" - a default duration is assumed then
	EndsAt time.Time `db:"endsAt" json:"endsAt,omitempty"`
	// The status stored by an administrator. Only the cancellation is authoritative - everything
	// else is derived from the timestamps on read (see EffectiveStatus)
	StoredStatus EventStatus `db:"status" json:"-"`
	// The staff requirements per category, in the order an administrator entered them.
	// Stored as a JSON text column - the repository decodes it, so sqlx must not map it.
	StaffRequirements []StaffRequirement `db:"-" json:"staffRequirements"`
	// Qualifications a staff member needs to hold to sign up for a category
	QualificationRequirements []QualificationRequirement `db:"-" json:"qualificationRequirements,omitempty"`
	// The payment structure per category
	Pricing []PriceRate `db:"-" json:"pricing,omitempty"`
	// Internal notes
	Notes string `db:"notes" json:"notes,omitempty"`
	// Set when staff members have to sign a work contract before their registration is accepted
	ContractRequired bool `db:"contractRequired" json:"contractRequired"`
	// Creation date of this entry
	CreatedAt time.Time `db:"createdAt" json:"createdAt"`
	// Date of the last update of this entry
	UpdatedAt time.Time `db:"updatedAt" json:"updatedAt"`
}

// Status returns the effective lifecycle status of the event at the given point in time.
// defaultDuration is assumed for events without an end timestamp - pass 0 to use
// DefaultEventDuration
func (e *Event) Status(now time.Time, defaultDuration time.Duration) EventStatus {
	return EffectiveStatus(e.StartsAt, e.EndsAt, e.StoredStatus, now, defaultDuration)
}

// Requirement returns the staff requirement for the given category or nil if the event does not
// list the category
func (e *Event) Requirement(category string) *StaffRequirement {
	for i := range e.StaffRequirements {
		if e.StaffRequirements[i].Category == category {
			return &e.StaffRequirements[i]
		}
	}
	return nil
}

// EffectiveStatus derives the lifecycle status of an event from its timestamps.
// An explicit cancellation always wins. Events without an end timestamp are assumed to last
// defaultDuration (administrators can tune it in the booking configuration); a zero
// defaultDuration falls back to DefaultEventDuration. The result is never written back to storage.
func EffectiveStatus(startsAt time.Time, endsAt time.Time, stored EventStatus, now time.Time, defaultDuration time.Duration) EventStatus {
	if stored == StatusCancelled {
		return StatusCancelled
	}
	if defaultDuration <= 0 {
		defaultDuration = DefaultEventDuration
	}
	end := endsAt
	if end.IsZero() {
		end = startsAt.Add(defaultDuration)
	}
	if end.Before(now) {
		return StatusCompleted
	}
	if !startsAt.After(now) {
		return StatusRunning
	}
	return StatusPlanned
}

// StaffRequirement defines how many staff members of one category an event needs
type StaffRequirement struct {
	// The staff category, e.g. "DJ" or "Lighting"
	Category string `json:"category"`
	// The number of staff members needed in this category
	Count uint `json:"count"`
}

// QualificationRequirement lists the qualifications needed for working in one staff category
// of a specific event
type QualificationRequirement struct {
	// The staff category the requirement applies to
	Category string `json:"category"`
	// The names of the qualifications a staff member has to hold
	Qualifications []string `json:"qualifications"`
}

// UnmarshalJSON accepts qualification entries both as bare name strings and as objects carrying
// a "name" property - older admin clients stored both shapes
func (q *QualificationRequirement) UnmarshalJSON(data []byte) error {
	var raw struct {
		Category       string            `json:"category"`
		Qualifications []json.RawMessage `json:"qualifications"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	q.Category = raw.Category
	q.Qualifications = nil
	for _, entry := range raw.Qualifications {
		name, err := qualificationName(entry)
		if err != nil {
			return err
		}
		q.Qualifications = append(q.Qualifications, name)
	}
	return nil
}

func qualificationName(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", fmt.Errorf("empty qualification entry")
	}
	if data[0] == '"' {
		var name string
		err := json.Unmarshal(data, &name)
		return name, err
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", err
	}
	return obj.Name, nil
}

// PriceRate defines the payment for one staff category of an event
type PriceRate struct {
	// The staff category the rate applies to
	Category string `json:"category"`
	// Payment per hour in cents
	HourlyRate uint `json:"hourlyRate,omitempty"`
	// Fixed payment for the whole event in cents
	FixedRate uint `json:"fixedRate,omitempty"`
}

// -- Stored-field normalization ---------------------------------------------------------------------------------------

// The requirement columns have seen several client generations writing different shapes into them:
// a JSON array, a single object, or the JSON re-encoded as a string. normalizeStoredList unwraps
// all of them into a list of raw elements so that the decoding happens in exactly one place.
func normalizeStoredList(raw []byte) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch raw[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	case '{':
		// A single object - wrap it
		return []json.RawMessage{json.RawMessage(raw)}, nil
	case '"':
		// JSON re-encoded as a string - unquote and try again
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, err
		}
		return normalizeStoredList([]byte(inner))
	}
	return nil, fmt.Errorf("unsupported stored list shape starting with %q", raw[0])
}

// ParseStaffRequirements decodes a stored staff requirements field.
// Malformed input is an error for the caller to log - the entity itself stays usable with an
// empty requirement list.
func ParseStaffRequirements(raw string) ([]StaffRequirement, error) {
	list, err := normalizeStoredList([]byte(raw))
	if err != nil {
		return nil, err
	}
	ret := []StaffRequirement{}
	for _, entry := range list {
		var req StaffRequirement
		if err := json.Unmarshal(entry, &req); err != nil {
			return nil, err
		}
		ret = append(ret, req)
	}
	return ret, nil
}

// ParseQualificationRequirements decodes a stored qualification requirements field
func ParseQualificationRequirements(raw string) ([]QualificationRequirement, error) {
	list, err := normalizeStoredList([]byte(raw))
	if err != nil {
		return nil, err
	}
	ret := []QualificationRequirement{}
	for _, entry := range list {
		var req QualificationRequirement
		if err := json.Unmarshal(entry, &req); err != nil {
			return nil, err
		}
		ret = append(ret, req)
	}
	return ret, nil
}

// ParsePriceRates decodes a stored pricing field
func ParsePriceRates(raw string) ([]PriceRate, error) {
	list, err := normalizeStoredList([]byte(raw))
	if err != nil {
		return nil, err
	}
	ret := []PriceRate{}
	for _, entry := range list {
		var rate PriceRate
		if err := json.Unmarshal(entry, &rate); err != nil {
			return nil, err
		}
		ret = append(ret, rate)
	}
	return ret, nil
}

// -- Qualification gate -----------------------------------------------------------------------------------------------

// MissingQualifications returns the names of all qualifications required for the given category
// that are not contained in the held set. Events without qualification requirements - globally or
// for the category in question - require nothing.
func MissingQualifications(reqs []QualificationRequirement, category string, held []string) []string {
	heldSet := make(map[string]bool, len(held))
	for _, name := range held {
		heldSet[name] = true
	}
	var missing []string
	for _, req := range reqs {
		if req.Category != category {
			continue
		}
		for _, name := range req.Qualifications {
			if !heldSet[name] {
				missing = append(missing, name)
			}
		}
	}
	return missing
}

// Eligible checks if a staff member holding the given qualifications may work in the given
// category of an event
func Eligible(reqs []QualificationRequirement, category string, held []string) bool {
	return len(MissingQualifications(reqs, category, held)) == 0
}
