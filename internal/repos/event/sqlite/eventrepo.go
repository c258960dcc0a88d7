// Package sqlite provides an event repository that stores its data inside a SQLite database
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eventworks/backstage/internal/log"
	"github.com/eventworks/backstage/internal/models"
	"github.com/eventworks/backstage/internal/repos"
	"github.com/jmoiron/sqlx"
)

const (
	eventFields = `title, description, location, guestCount, startsAt, endsAt, status,
        staffRequirements, qualificationRequirements, pricing, notes, contractRequired,
        createdAt, updatedAt`
)

// eventRow is the raw database shape of an event. The three requirement columns are stored as
// JSON text and normalized into their model types in exactly one place (rowToEvent)
type eventRow struct {
	models.Event
	StaffRequirementsRaw string `db:"staffRequirements"`
	QualificationsRaw    string `db:"qualificationRequirements"`
	PricingRaw           string `db:"pricing"`
}

// EventRepo is a repository that stores its data inside a SQLite database
type EventRepo struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// New creates a new event repository instance with the given database and logger
func New(db *sqlx.DB, logger *logrus.Entry) *EventRepo {
	return &EventRepo{
		db:     db,
		logger: logger,
	}
}

// rowToEvent converts a raw database row into the event model. Malformed requirement JSON is
// logged and replaced by an empty list - a broken column must not take down the whole catalog
func (r *EventRepo) rowToEvent(row *eventRow) *models.Event {
	ev := row.Event
	var err error
	if ev.StaffRequirements, err = models.ParseStaffRequirements(row.StaffRequirementsRaw); err != nil {
		r.logger.WithError(err).WithField(log.FldEvent, ev.ID).Error("Malformed staff requirements - using empty list")
		ev.StaffRequirements = []models.StaffRequirement{}
	}
	if ev.QualificationRequirements, err = models.ParseQualificationRequirements(row.QualificationsRaw); err != nil {
		r.logger.WithError(err).WithField(log.FldEvent, ev.ID).Error("Malformed qualification requirements - using empty list")
		ev.QualificationRequirements = []models.QualificationRequirement{}
	}
	if ev.Pricing, err = models.ParsePriceRates(row.PricingRaw); err != nil {
		r.logger.WithError(err).WithField(log.FldEvent, ev.ID).Error("Malformed pricing - using empty list")
		ev.Pricing = []models.PriceRate{}
	}
	return &ev
}

// marshalLists encodes the requirement lists of an event for storage
func marshalLists(ev *models.Event) (string, string, string, error) {
	staff, err := json.Marshal(ev.StaffRequirements)
	if err != nil {
		return "", "", "", err
	}
	quals, err := json.Marshal(ev.QualificationRequirements)
	if err != nil {
		return "", "", "", err
	}
	pricing, err := json.Marshal(ev.Pricing)
	if err != nil {
		return "", "", "", err
	}
	return string(staff), string(quals), string(pricing), nil
}

// Create creates a new event
func (r *EventRepo) Create(ev *models.Event) error {
	r.logger.WithField("title", ev.Title).Debug("Adding new event")
	staff, quals, pricing, err := marshalLists(ev)
	if err != nil {
		return fmt.Errorf("Create: Failed to encode requirement lists: %v", err)
	}
	if ev.StoredStatus == "" {
		ev.StoredStatus = models.StatusPlanned
	}
	query := fmt.Sprintf(
		"INSERT INTO Events(%s) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))",
		eventFields,
	)
	res, err := r.db.Exec(query, ev.Title, ev.Description, ev.Location, ev.GuestCount, ev.StartsAt,
		ev.EndsAt, ev.StoredStatus, staff, quals, pricing, ev.Notes, ev.ContractRequired)
	if err != nil {
		return err
	}
	// Setting the dates like this should be enough for now
	ev.CreatedAt = time.Now()
	ev.UpdatedAt = time.Now()
	var id int64
	if id, err = res.LastInsertId(); err == nil {
		ev.ID = uint(id)
	}
	return err
}

// Update updates the given event
func (r *EventRepo) Update(ev *models.Event) error {
	r.logger.WithField(log.FldID, ev.ID).Debug("Updating event")
	staff, quals, pricing, err := marshalLists(ev)
	if err != nil {
		return fmt.Errorf("Update: Failed to encode requirement lists: %v", err)
	}
	query := `UPDATE Events SET title = ?, description = ?, location = ?, guestCount = ?,
        startsAt = ?, endsAt = ?, status = ?, staffRequirements = ?, qualificationRequirements = ?,
        pricing = ?, notes = ?, contractRequired = ?, updatedAt = datetime('now') WHERE id = ?`
	res, err := r.db.Exec(query, ev.Title, ev.Description, ev.Location, ev.GuestCount, ev.StartsAt,
		ev.EndsAt, ev.StoredStatus, staff, quals, pricing, ev.Notes, ev.ContractRequired, ev.ID)
	if err != nil {
		return err
	}
	ev.UpdatedAt = time.Now()
	var num int64
	if num, err = res.RowsAffected(); err == nil {
		if num == 0 {
			return repos.ErrEntityNotExisting
		}
	}
	return err
}

// Delete removes the given event
func (r *EventRepo) Delete(id uint) error {
	r.logger.WithField(log.FldID, id).Debug("Deleting event")
	query := "DELETE FROM Events WHERE id = ?"
	res, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}
	var num int64
	if num, err = res.RowsAffected(); err == nil {
		if num == 0 {
			return repos.ErrEntityNotExisting
		}
	}
	return err
}

// SetStatus overwrites the stored status of the given event
func (r *EventRepo) SetStatus(id uint, status models.EventStatus) error {
	r.logger.WithField(log.FldID, id).WithField("status", status).Debug("Setting event status")
	query := "UPDATE Events SET status = ?, updatedAt = datetime('now') WHERE id = ?"
	res, err := r.db.Exec(query, status, id)
	if err != nil {
		return err
	}
	var num int64
	if num, err = res.RowsAffected(); err == nil {
		if num == 0 {
			return repos.ErrEntityNotExisting
		}
	}
	return err
}

// GetByID returns the event with the given ID
func (r *EventRepo) GetByID(id uint) (*models.Event, error) {
	r.logger.WithField(log.FldID, id).Debug("Loading event")
	query := fmt.Sprintf("SELECT id, %s FROM Events WHERE id = ?", eventFields)
	var row eventRow
	err := r.db.Get(&row, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			// Nothing found
			return nil, repos.ErrEntityNotExisting
		}
		return nil, err
	}
	return r.rowToEvent(&row), nil
}

// FindUpcoming returns all events starting at or after the given point in time, ordered by their
// start time ascending
func (r *EventRepo) FindUpcoming(from time.Time) ([]models.Event, error) {
	query := fmt.Sprintf("SELECT id, %s FROM Events WHERE startsAt >= ? ORDER BY startsAt ASC", eventFields)
	var rows []eventRow
	if err := r.db.Select(&rows, query, from); err != nil {
		return nil, err
	}
	ret := make([]models.Event, 0, len(rows))
	for i := range rows {
		ret = append(ret, *r.rowToEvent(&rows[i]))
	}
	return ret, nil
}

// Find searches for events matching the given search string - supports pagination
func (r *EventRepo) Find(search string, offset uint, limit uint) ([]models.Event, uint, error) {
	if limit == 0 {
		limit = 50
	}
	r.logger.WithFields(logrus.Fields{
		log.FldSearch: search,
		log.FldOffset: offset,
		log.FldLimit:  limit,
	}).Debug("Searching for event")
	// For now, we're using a simple LIKE search
	search = "%" + search + "%"
	query := fmt.Sprintf(`SELECT id, %s FROM Events WHERE
        title LIKE $1 OR description LIKE $1 OR location LIKE $1
        ORDER BY startsAt DESC
        LIMIT $2 OFFSET $3`, eventFields)
	var rows []eventRow
	err := r.db.Select(&rows, query, search, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	ret := make([]models.Event, 0, len(rows))
	for i := range rows {
		ret = append(ret, *r.rowToEvent(&rows[i]))
	}
	// Query the full count
	query = `SELECT COUNT(*) FROM Events WHERE title LIKE $1 OR description LIKE $1 OR location LIKE $1`
	var numRows uint
	if err = r.db.Get(&numRows, query, search); err != nil {
		return nil, 0, err
	}
	return ret, numRows, nil
}
