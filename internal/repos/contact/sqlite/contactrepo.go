// Package sqlite provides a contact request repository that stores its data inside a SQLite database
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eventworks/backstage/internal/log"
	"github.com/eventworks/backstage/internal/models"
	"github.com/eventworks/backstage/internal/repos"
	"github.com/jmoiron/sqlx"
)

const (
	contactFields = `name, email, phone, eventType, eventDate, message, status, createdAt, updatedAt`
)

// ContactRepo is a repository that stores its data inside a SQLite database
type ContactRepo struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// New creates a new contact request repository instance with the given database and logger
func New(db *sqlx.DB, logger *logrus.Entry) *ContactRepo {
	return &ContactRepo{
		db:     db,
		logger: logger,
	}
}

// Create stores a new contact request
func (r *ContactRepo) Create(req *models.ContactRequest) error {
	r.logger.WithField("email", req.Email).Debug("Adding new contact request")
	if req.Status == "" {
		req.Status = models.ContactStatusNew
	}
	query := fmt.Sprintf(
		"INSERT INTO ContactRequests(%s) VALUES(?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))",
		contactFields,
	)
	res, err := r.db.Exec(query, req.Name, req.Email, req.Phone, req.EventType, req.EventDate,
		req.Message, req.Status)
	if err != nil {
		return err
	}
	req.CreatedAt = time.Now()
	req.UpdatedAt = time.Now()
	var id int64
	if id, err = res.LastInsertId(); err == nil {
		req.ID = uint(id)
	}
	return err
}

// Update updates an existing contact request
func (r *ContactRepo) Update(req *models.ContactRequest) error {
	r.logger.WithField(log.FldID, req.ID).Debug("Updating contact request")
	query := `UPDATE ContactRequests SET name = ?, email = ?, phone = ?, eventType = ?,
        eventDate = ?, message = ?, status = ?, updatedAt = datetime('now') WHERE id = ?`
	res, err := r.db.Exec(query, req.Name, req.Email, req.Phone, req.EventType, req.EventDate,
		req.Message, req.Status, req.ID)
	if err != nil {
		return err
	}
	req.UpdatedAt = time.Now()
	var num int64
	if num, err = res.RowsAffected(); err == nil {
		if num == 0 {
			return repos.ErrEntityNotExisting
		}
	}
	return err
}

// Delete removes a contact request
func (r *ContactRepo) Delete(id uint) error {
	r.logger.WithField(log.FldID, id).Debug("Deleting contact request")
	res, err := r.db.Exec("DELETE FROM ContactRequests WHERE id = ?", id)
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

// GetByID returns the contact request with the given ID
func (r *ContactRepo) GetByID(id uint) (*models.ContactRequest, error) {
	query := fmt.Sprintf("SELECT id, %s FROM ContactRequests WHERE id = ?", contactFields)
	var req models.ContactRequest
	err := r.db.Get(&req, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			// Nothing found
			return nil, repos.ErrEntityNotExisting
		}
		return nil, err
	}
	return &req, nil
}

// Find searches for contact requests matching the given search string - supports pagination
func (r *ContactRepo) Find(search string, offset uint, limit uint) ([]models.ContactRequest, uint, error) {
	if limit == 0 {
		limit = 50
	}
	r.logger.WithFields(logrus.Fields{
		log.FldSearch: search,
		log.FldOffset: offset,
		log.FldLimit:  limit,
	}).Debug("Searching for contact request")
	search = "%" + search + "%"
	query := fmt.Sprintf(`SELECT id, %s FROM ContactRequests WHERE
        name LIKE $1 OR email LIKE $1 OR eventType LIKE $1
        ORDER BY createdAt DESC
        LIMIT $2 OFFSET $3`, contactFields)
	var ret []models.ContactRequest
	if err := r.db.Select(&ret, query, search, limit, offset); err != nil {
		return nil, 0, err
	}
	query = `SELECT COUNT(*) FROM ContactRequests WHERE name LIKE $1 OR email LIKE $1 OR eventType LIKE $1`
	var numRows uint
	if err := r.db.Get(&numRows, query, search); err != nil {
		return nil, 0, err
	}
	return ret, numRows, nil
}
