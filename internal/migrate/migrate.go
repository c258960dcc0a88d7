// Package migrate handles SQL database migration for the internal Backstage database
package migrate

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

var migrations []dbMigration

type dbMigration struct {
	Version uint
	Queries []string
}

// Execute runs the current DB migration on the given database
func (mig *dbMigration) Execute(db *sqlx.DB, logger *logrus.Entry) error {
	// Check if the migration has already run
	query := `SELECT success FROM Migrations WHERE version = $1`
	var success = false
	err := db.QueryRow(query, mig.Version).Scan(&success)
	if err != nil && err != sql.ErrNoRows {
		logger.WithError(err).Error("Failed to fetch version information")
		return err
	}
	if !success {
		// We need to execute this migration
		logger.Infof("Executing DB migration #%d", mig.Version)
		for i, query := range mig.Queries {
			logger.Infof("Query %d of %d...", (i + 1), len(mig.Queries))
			if _, err := db.Exec(query); err != nil {
				logger.WithError(err).Errorf("Query #%d failed", (i + 1))
				db.Exec(`REPLACE INTO Migrations(version, success) VALUES($1, 0)`, mig.Version)
				return err
			}
		}
		// Queries executed successfully - save our status
		db.Exec(`REPLACE INTO Migrations(version, success) VALUES($1, 1)`, mig.Version)
	}
	return nil
}

// ExecuteMigrationsOnDb executes the database migrations on the given database instance
func ExecuteMigrationsOnDb(db *sqlx.DB, logger *logrus.Entry) error {
	// Create the migrations table if it does not exist, yet
	query := `CREATE TABLE IF NOT EXISTS Migrations (
                version   INTEGER NOT NULL,
                success   INTEGER NOT NULL DEFAULT 0,
                PRIMARY KEY(version)
            )`
	if _, err := db.Exec(query); err != nil {
		logger.WithError(err).Error("Failed to create migrations table")
		return err
	}
	for _, mig := range migrations {
		if err := mig.Execute(db, logger); err != nil {
			logger.WithError(err).Errorf("Failed to execute migration #%d", mig.Version)
			return err
		}
	}
	return nil
}

// For now, the migrations are part of the package...
func init() {
	migrations = []dbMigration{
		{
			Version: 1,
			Queries: []string{
				`CREATE TABLE "Events" (
                    id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
                    title VARCHAR(128) NOT NULL DEFAULT '',
                    description TEXT NOT NULL DEFAULT '',
                    location VARCHAR(255) NOT NULL DEFAULT '',
                    guestCount INTEGER NOT NULL DEFAULT 0,
                    startsAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    endsAt DATETIME NOT NULL DEFAULT '0001-01-01 00:00:00+00:00',
                    status VARCHAR(16) NOT NULL DEFAULT 'planned',
                    staffRequirements TEXT NOT NULL DEFAULT '[]',
                    qualificationRequirements TEXT NOT NULL DEFAULT '[]',
                    pricing TEXT NOT NULL DEFAULT '[]',
                    notes TEXT NOT NULL DEFAULT '',
                    contractRequired INTEGER NOT NULL DEFAULT 0,
                    createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
                );`,
				`CREATE TABLE "Registrations" (
                    id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
                    eventId INTEGER NOT NULL,
                    userId INTEGER NOT NULL,
                    category VARCHAR(64) NOT NULL DEFAULT '',
                    status VARCHAR(16) NOT NULL DEFAULT 'signed_up',
                    notes TEXT NOT NULL DEFAULT '',
                    createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
                );`,
				`CREATE TABLE "Users" (
                    id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
                    name VARCHAR(64) NOT NULL UNIQUE,
                    passwordHash VARCHAR(128) NOT NULL DEFAULT '',
                    fullName VARCHAR(128) NOT NULL DEFAULT '',
                    email VARCHAR(128) NOT NULL DEFAULT '',
                    role VARCHAR(16) NOT NULL DEFAULT 'staff',
                    createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
                );`,
				`CREATE TABLE "Qualifications" (
                    id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
                    name VARCHAR(128) NOT NULL,
                    description TEXT NOT NULL DEFAULT ''
                );`,
				`CREATE TABLE "UserQualifications" (
                    userId INTEGER NOT NULL,
                    qualificationId INTEGER NOT NULL,
                    PRIMARY KEY(userId, qualificationId)
                );`,
				`CREATE TABLE "ContactRequests" (
                    id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
                    name VARCHAR(128) NOT NULL DEFAULT '',
                    email VARCHAR(128) NOT NULL DEFAULT '',
                    phone VARCHAR(64) NOT NULL DEFAULT '',
                    eventType VARCHAR(64) NOT NULL DEFAULT '',
                    eventDate DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    message TEXT NOT NULL DEFAULT '',
                    status VARCHAR(16) NOT NULL DEFAULT 'new',
                    createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
                );`,
				// One active registration per user and event - role changes replace the row
				// inside a transaction instead of racing a delete against an insert
				`CREATE UNIQUE INDEX idx_registration_active ON Registrations (eventId, userId)
                    WHERE status != 'withdrawn';`,
				`CREATE INDEX idx_registration_event ON Registrations (eventId ASC, status ASC);`,
				`CREATE INDEX idx_registration_user ON Registrations (userId ASC);`,
				`CREATE INDEX idx_event_start ON Events (startsAt ASC);`,
				`CREATE INDEX idx_contact_status ON ContactRequests (status ASC);`,
			},
		},
		{
			Version: 2,
			Queries: []string{
				`CREATE TABLE "Invitations" (
                    token VARCHAR(64) NOT NULL PRIMARY KEY,
                    email VARCHAR(128) NOT NULL DEFAULT '',
                    role VARCHAR(16) NOT NULL DEFAULT 'staff',
                    expiresAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    redeemedAt DATETIME NULL,
                    createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
                );`,
			},
		},
		{
			Version: 3,
			Queries: []string{
				// A rejected registration frees its slot, so it must not block the member from
				// signing up again either
				`DROP INDEX idx_registration_active;`,
				`CREATE UNIQUE INDEX idx_registration_active ON Registrations (eventId, userId)
                    WHERE status NOT IN ('withdrawn', 'rejected');`,
			},
		},
	}
}
