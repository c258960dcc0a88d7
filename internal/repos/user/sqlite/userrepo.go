// Package sqlite provides a user repository that stores its data inside a SQLite database
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
	userFields          = `name, passwordHash, fullName, email, role, createdAt, updatedAt`
	qualificationFields = `name, description`
	invitationFields    = `token, email, role, expiresAt, redeemedAt, createdAt`
)

// UserRepo is a repository that stores users, their qualifications and invitations inside a
// SQLite database
type UserRepo struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// New creates a new user repository instance with the given database and logger
func New(db *sqlx.DB, logger *logrus.Entry) *UserRepo {
	return &UserRepo{
		db:     db,
		logger: logger,
	}
}

// Create creates a new user
func (r *UserRepo) Create(u *models.User) error {
	r.logger.WithField("name", u.Name).Debug("Adding new user")
	if u.Role == "" {
		u.Role = models.RoleStaff
	}
	query := fmt.Sprintf("INSERT INTO Users(%s) VALUES(?, ?, ?, ?, ?, datetime('now'), datetime('now'))", userFields)
	res, err := r.db.Exec(query, u.Name, u.PasswordHash, u.FullName, u.Email, u.Role)
	if err != nil {
		return err
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = time.Now()
	var id int64
	if id, err = res.LastInsertId(); err == nil {
		u.ID = uint(id)
	}
	return err
}

// Update updates an existing user
func (r *UserRepo) Update(u *models.User) error {
	r.logger.WithField(log.FldID, u.ID).Debug("Updating user")
	query := `UPDATE Users SET name = ?, passwordHash = ?, fullName = ?, email = ?, role = ?,
        updatedAt = datetime('now') WHERE id = ?`
	res, err := r.db.Exec(query, u.Name, u.PasswordHash, u.FullName, u.Email, u.Role, u.ID)
	if err != nil {
		return err
	}
	u.UpdatedAt = time.Now()
	var num int64
	if num, err = res.RowsAffected(); err == nil {
		if num == 0 {
			return repos.ErrEntityNotExisting
		}
	}
	return err
}

// Delete removes an existing user and their qualification assignments
func (r *UserRepo) Delete(id uint) error {
	r.logger.WithField(log.FldID, id).Debug("Deleting user")
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("Delete: Failed to start transaction: %v", err)
	}
	res, err := tx.Exec("DELETE FROM Users WHERE id = ?", id)
	if err != nil {
		return repos.DoRollback(tx, err)
	}
	var num int64
	if num, err = res.RowsAffected(); err == nil {
		if num == 0 {
			return repos.DoRollback(tx, repos.ErrEntityNotExisting)
		}
	}
	if _, err = tx.Exec("DELETE FROM UserQualifications WHERE userId = ?", id); err != nil {
		return repos.DoRollback(tx, fmt.Errorf("Delete: Failed to remove qualification assignments: %v", err))
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("Delete: Failed to commit transaction: %v", err)
	}
	return nil
}

// GetByID returns the user with the given ID
func (r *UserRepo) GetByID(id uint) (*models.User, error) {
	query := fmt.Sprintf("SELECT id, %s FROM Users WHERE id = ?", userFields)
	var u models.User
	err := r.db.Get(&u, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			// Nothing found
			return nil, repos.ErrEntityNotExisting
		}
		return nil, err
	}
	return &u, nil
}

// GetByCredentials returns the user which has the given username and password - this is used for
// login. A failed match returns nil without an error
func (r *UserRepo) GetByCredentials(username string, password string) (*models.User, error) {
	query := fmt.Sprintf("SELECT id, %s FROM Users WHERE name = ?", userFields)
	var u models.User
	err := r.db.Get(&u, query, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if u.CheckPassword(password) != nil {
		return nil, nil
	}
	return &u, nil
}

// Find searches for users matching the given search string - supports pagination
func (r *UserRepo) Find(search string, offset uint, limit uint) ([]models.User, uint, error) {
	if limit == 0 {
		limit = 50
	}
	r.logger.WithFields(logrus.Fields{
		log.FldSearch: search,
		log.FldOffset: offset,
		log.FldLimit:  limit,
	}).Debug("Searching for user")
	search = "%" + search + "%"
	query := fmt.Sprintf(`SELECT id, %s FROM Users WHERE
        name LIKE $1 OR fullName LIKE $1 OR email LIKE $1
        ORDER BY name ASC
        LIMIT $2 OFFSET $3`, userFields)
	var ret []models.User
	if err := r.db.Select(&ret, query, search, limit, offset); err != nil {
		return nil, 0, err
	}
	query = `SELECT COUNT(*) FROM Users WHERE name LIKE $1 OR fullName LIKE $1 OR email LIKE $1`
	var numRows uint
	if err := r.db.Get(&numRows, query, search); err != nil {
		return nil, 0, err
	}
	return ret, numRows, nil
}

// Count returns the total number of user accounts
func (r *UserRepo) Count() (uint, error) {
	var num uint
	if err := r.db.Get(&num, "SELECT COUNT(*) FROM Users"); err != nil {
		return 0, err
	}
	return num, nil
}

// -- Qualifications ---------------------------------------------------------------------------------------------------

// QualificationsFor returns the qualifications held by the given user
func (r *UserRepo) QualificationsFor(userID uint) ([]models.Qualification, error) {
	query := `SELECT q.id, q.name, q.description FROM Qualifications q
        INNER JOIN UserQualifications uq ON uq.qualificationId = q.id
        WHERE uq.userId = ? ORDER BY q.name ASC`
	var ret []models.Qualification
	if err := r.db.Select(&ret, query, userID); err != nil {
		return nil, err
	}
	return ret, nil
}

// SetQualifications replaces the qualification assignment of the given user
func (r *UserRepo) SetQualifications(userID uint, qualificationIDs []uint) error {
	r.logger.WithField(log.FldUser, userID).Debug("Replacing qualification assignment")
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("SetQualifications: Failed to start transaction: %v", err)
	}
	if _, err = tx.Exec("DELETE FROM UserQualifications WHERE userId = ?", userID); err != nil {
		return repos.DoRollback(tx, fmt.Errorf("SetQualifications: Failed to clear assignment: %v", err))
	}
	for _, qid := range qualificationIDs {
		if _, err = tx.Exec("INSERT INTO UserQualifications(userId, qualificationId) VALUES(?, ?)", userID, qid); err != nil {
			return repos.DoRollback(tx, fmt.Errorf("SetQualifications: Failed to assign qualification #%d: %v", qid, err))
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("SetQualifications: Failed to commit transaction: %v", err)
	}
	return nil
}

// ListQualifications returns the full qualification catalog
func (r *UserRepo) ListQualifications() ([]models.Qualification, error) {
	query := fmt.Sprintf("SELECT id, %s FROM Qualifications ORDER BY name ASC", qualificationFields)
	var ret []models.Qualification
	if err := r.db.Select(&ret, query); err != nil {
		return nil, err
	}
	return ret, nil
}

// CreateQualification adds a new entry to the qualification catalog
func (r *UserRepo) CreateQualification(q *models.Qualification) error {
	r.logger.WithField("name", q.Name).Debug("Adding new qualification")
	query := fmt.Sprintf("INSERT INTO Qualifications(%s) VALUES(?, ?)", qualificationFields)
	res, err := r.db.Exec(query, q.Name, q.Description)
	if err != nil {
		return err
	}
	var id int64
	if id, err = res.LastInsertId(); err == nil {
		q.ID = uint(id)
	}
	return err
}

// DeleteQualification removes a qualification from the catalog and all its assignments
func (r *UserRepo) DeleteQualification(id uint) error {
	r.logger.WithField(log.FldID, id).Debug("Deleting qualification")
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("DeleteQualification: Failed to start transaction: %v", err)
	}
	res, err := tx.Exec("DELETE FROM Qualifications WHERE id = ?", id)
	if err != nil {
		return repos.DoRollback(tx, err)
	}
	var num int64
	if num, err = res.RowsAffected(); err == nil {
		if num == 0 {
			return repos.DoRollback(tx, repos.ErrEntityNotExisting)
		}
	}
	if _, err = tx.Exec("DELETE FROM UserQualifications WHERE qualificationId = ?", id); err != nil {
		return repos.DoRollback(tx, fmt.Errorf("DeleteQualification: Failed to remove assignments: %v", err))
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("DeleteQualification: Failed to commit transaction: %v", err)
	}
	return nil
}

// -- Invitations ------------------------------------------------------------------------------------------------------

// CreateInvitation stores a new invitation
func (r *UserRepo) CreateInvitation(inv *models.Invitation) error {
	r.logger.WithField("email", inv.Email).Debug("Adding new invitation")
	query := fmt.Sprintf("INSERT INTO Invitations(%s) VALUES(?, ?, ?, ?, NULL, datetime('now'))",
		`token, email, role, expiresAt, redeemedAt, createdAt`)
	if _, err := r.db.Exec(query, inv.Token, inv.Email, inv.Role, inv.ExpiresAt); err != nil {
		return err
	}
	inv.CreatedAt = time.Now()
	return nil
}

// GetInvitation returns the invitation with the given token
func (r *UserRepo) GetInvitation(token string) (*models.Invitation, error) {
	query := fmt.Sprintf("SELECT %s FROM Invitations WHERE token = ?", invitationFields)
	var inv models.Invitation
	err := r.db.Get(&inv, query, token)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repos.ErrEntityNotExisting
		}
		return nil, err
	}
	return &inv, nil
}

// MarkInvitationRedeemed sets the redemption timestamp on the given invitation
func (r *UserRepo) MarkInvitationRedeemed(token string, when time.Time) error {
	query := "UPDATE Invitations SET redeemedAt = ? WHERE token = ? AND redeemedAt IS NULL"
	res, err := r.db.Exec(query, when, token)
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

// ListInvitations returns all invitations, newest first
func (r *UserRepo) ListInvitations() ([]models.Invitation, error) {
	query := fmt.Sprintf("SELECT %s FROM Invitations ORDER BY createdAt DESC", invitationFields)
	var ret []models.Invitation
	if err := r.db.Select(&ret, query); err != nil {
		return nil, err
	}
	return ret, nil
}
