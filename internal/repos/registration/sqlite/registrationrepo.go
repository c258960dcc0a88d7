// Package sqlite provides a registration repository that stores its data inside a SQLite database
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/eventworks/backstage/internal/log"
	"github.com/eventworks/backstage/internal/models"
	"github.com/eventworks/backstage/internal/repos"
	"github.com/jmoiron/sqlx"
)

const (
	registrationFields = `eventId, userId, category, status, notes, createdAt, updatedAt`
)

// categoryCount is a helper for scanning the aggregation query
type categoryCount struct {
	EventID  uint   `db:"eventId"`
	Category string `db:"category"`
	Count    uint   `db:"count"`
}

// RegistrationRepo is a repository that stores its data inside a SQLite database
type RegistrationRepo struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// New creates a new registration repository instance with the given database and logger
func New(db *sqlx.DB, logger *logrus.Entry) *RegistrationRepo {
	return &RegistrationRepo{
		db:     db,
		logger: logger,
	}
}

// mapConstraintError translates a unique index violation on the active-registration index into
// the duplicate registration error the services report to the user
func mapConstraintError(err error) error {
	if sqliteErr, ok := err.(sqlite3.Error); ok && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return repos.ErrDuplicateRegistration
	}
	return err
}

// Create inserts a new registration
func (r *RegistrationRepo) Create(reg *models.Registration) error {
	r.logger.WithFields(logrus.Fields{
		log.FldEvent:    reg.EventID,
		log.FldUser:     reg.UserID,
		log.FldCategory: reg.Category,
	}).Debug("Adding new registration")
	if reg.Status == "" {
		reg.Status = models.RegStatusSignedUp
	}
	query := fmt.Sprintf(
		"INSERT INTO Registrations(%s) VALUES(?, ?, ?, ?, ?, datetime('now'), datetime('now'))",
		registrationFields,
	)
	res, err := r.db.Exec(query, reg.EventID, reg.UserID, reg.Category, reg.Status, reg.Notes)
	if err != nil {
		return mapConstraintError(err)
	}
	// Setting the dates like this should be enough for now
	reg.CreatedAt = time.Now()
	reg.UpdatedAt = time.Now()
	var id int64
	if id, err = res.LastInsertId(); err == nil {
		reg.ID = uint(id)
	}
	return err
}

// ReplaceActive removes any active registration of the user for the event and inserts the given
// one in a single transaction. This is the role-change path - the partial unique index on
// (eventId, userId) makes sure two concurrent inserts cannot both survive. Withdrawn and rejected
// rows stay in place as history
func (r *RegistrationRepo) ReplaceActive(reg *models.Registration) error {
	r.logger.WithFields(logrus.Fields{
		log.FldEvent:    reg.EventID,
		log.FldUser:     reg.UserID,
		log.FldCategory: reg.Category,
	}).Debug("Replacing active registration")
	if reg.Status == "" {
		reg.Status = models.RegStatusSignedUp
	}
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("ReplaceActive: Failed to start transaction: %v", err)
	}
	query := `DELETE FROM Registrations WHERE eventId = ? AND userId = ? AND status NOT IN (?, ?)`
	if _, err = tx.Exec(query, reg.EventID, reg.UserID, models.RegStatusWithdrawn, models.RegStatusRejected); err != nil {
		return repos.DoRollback(tx, fmt.Errorf("ReplaceActive: Failed to remove previous registration: %v", err))
	}
	query = fmt.Sprintf(
		"INSERT INTO Registrations(%s) VALUES(?, ?, ?, ?, ?, datetime('now'), datetime('now'))",
		registrationFields,
	)
	res, err := tx.Exec(query, reg.EventID, reg.UserID, reg.Category, reg.Status, reg.Notes)
	if err != nil {
		return repos.DoRollback(tx, mapConstraintError(err))
	}
	var id int64
	if id, err = res.LastInsertId(); err == nil {
		reg.ID = uint(id)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ReplaceActive: Failed to commit transaction: %v", err)
	}
	reg.CreatedAt = time.Now()
	reg.UpdatedAt = time.Now()
	return nil
}

// Delete removes a registration
func (r *RegistrationRepo) Delete(id uint) error {
	r.logger.WithField(log.FldID, id).Debug("Deleting registration")
	query := "DELETE FROM Registrations WHERE id = ?"
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

// GetByID returns the registration with the given ID
func (r *RegistrationRepo) GetByID(id uint) (*models.Registration, error) {
	query := fmt.Sprintf("SELECT id, %s FROM Registrations WHERE id = ?", registrationFields)
	var reg models.Registration
	err := r.db.Get(&reg, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			// Nothing found
			return nil, repos.ErrEntityNotExisting
		}
		return nil, err
	}
	return &reg, nil
}

// GetActiveFor returns the active registration of the given user for the given event. Withdrawn
// and rejected registrations do not count - the member may sign up again
func (r *RegistrationRepo) GetActiveFor(eventID uint, userID uint) (*models.Registration, error) {
	query := fmt.Sprintf(
		"SELECT id, %s FROM Registrations WHERE eventId = ? AND userId = ? AND status NOT IN (?, ?)",
		registrationFields,
	)
	var reg models.Registration
	err := r.db.Get(&reg, query, eventID, userID, models.RegStatusWithdrawn, models.RegStatusRejected)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repos.ErrEntityNotExisting
		}
		return nil, err
	}
	return &reg, nil
}

// ListByUser returns all registrations of the given user, newest first
func (r *RegistrationRepo) ListByUser(userID uint) ([]models.Registration, error) {
	query := fmt.Sprintf(
		"SELECT id, %s FROM Registrations WHERE userId = ? ORDER BY createdAt DESC, id DESC",
		registrationFields,
	)
	var ret []models.Registration
	if err := r.db.Select(&ret, query, userID); err != nil {
		return nil, err
	}
	return ret, nil
}

// ListByEvent returns all registrations for the given event
func (r *RegistrationRepo) ListByEvent(eventID uint) ([]models.Registration, error) {
	query := fmt.Sprintf(
		"SELECT id, %s FROM Registrations WHERE eventId = ? ORDER BY category ASC, createdAt ASC",
		registrationFields,
	)
	var ret []models.Registration
	if err := r.db.Select(&ret, query, eventID); err != nil {
		return nil, err
	}
	return ret, nil
}

// SetStatus updates the status of the given registration
func (r *RegistrationRepo) SetStatus(id uint, status models.RegistrationStatus) error {
	r.logger.WithField(log.FldID, id).WithField("status", status).Debug("Setting registration status")
	query := "UPDATE Registrations SET status = ?, updatedAt = datetime('now') WHERE id = ?"
	res, err := r.db.Exec(query, status, id)
	if err != nil {
		return mapConstraintError(err)
	}
	var num int64
	if num, err = res.RowsAffected(); err == nil {
		if num == 0 {
			return repos.ErrEntityNotExisting
		}
	}
	return err
}

// CountSignedUpByCategory returns the number of signed-up registrations per event and category
// for the given events. Events or categories without registrations have no entry in the result
func (r *RegistrationRepo) CountSignedUpByCategory(eventIDs []uint) (map[uint]map[string]uint, error) {
	ret := map[uint]map[string]uint{}
	if len(eventIDs) == 0 {
		return ret, nil
	}
	query := fmt.Sprintf(`SELECT eventId, category, COUNT(*) as count FROM Registrations
        WHERE status = ? AND eventId IN (?%s)
        GROUP BY eventId, category`, strings.Repeat(", ?", len(eventIDs)-1))
	params := []interface{}{models.RegStatusSignedUp}
	for _, id := range eventIDs {
		params = append(params, id)
	}
	rows, err := r.db.Queryx(query, params...)
	if err != nil {
		return nil, errors.Wrap(err, "CountSignedUpByCategory: Failed to query database")
	}
	defer rows.Close()
	for rows.Next() {
		var cc categoryCount
		if err = rows.StructScan(&cc); err != nil {
			return nil, errors.Wrap(err, "CountSignedUpByCategory: Failed to scan row")
		}
		if _, ok := ret[cc.EventID]; !ok {
			ret[cc.EventID] = map[string]uint{}
		}
		ret[cc.EventID][cc.Category] = cc.Count
	}
	return ret, rows.Err()
}
