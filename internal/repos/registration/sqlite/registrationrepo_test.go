package sqlite

import (
	"io/ioutil"
	"testing"

	"github.com/eventworks/backstage/internal/migrate"
	"github.com/eventworks/backstage/internal/models"
	"github.com/eventworks/backstage/internal/repos"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	_ "github.com/mattn/go-sqlite3"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.Out = ioutil.Discard
	return logrus.NewEntry(l)
}

// openTestRepo runs the migrations on a fresh in-memory database
func openTestRepo(t *testing.T) *RegistrationRepo {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// The pool must not open a second connection - every connection gets its own memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := migrate.ExecuteMigrationsOnDb(db, testLogger()); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return New(db, testLogger())
}

func TestCreateAndGetByID(t *testing.T) {
	repo := openTestRepo(t)

	reg := &models.Registration{EventID: 7, UserID: 42, Category: "DJ"}
	assert.NoError(t, repo.Create(reg))
	assert.NotZero(t, reg.ID)
	// Missing status defaults to signed_up
	assert.Equal(t, models.RegStatusSignedUp, reg.Status)

	got, err := repo.GetByID(reg.ID)
	assert.NoError(t, err)
	assert.Equal(t, uint(7), got.EventID)
	assert.Equal(t, uint(42), got.UserID)
	assert.Equal(t, "DJ", got.Category)
	assert.Equal(t, models.RegStatusSignedUp, got.Status)
}

func TestCreateDuplicateHitsIndex(t *testing.T) {
	repo := openTestRepo(t)

	assert.NoError(t, repo.Create(&models.Registration{EventID: 7, UserID: 42, Category: "DJ"}))
	// A second active registration for the same user and event violates the partial unique index
	err := repo.Create(&models.Registration{EventID: 7, UserID: 42, Category: "Lighting"})
	assert.Equal(t, repos.ErrDuplicateRegistration, err)
	// Other users and other events are unaffected
	assert.NoError(t, repo.Create(&models.Registration{EventID: 7, UserID: 43, Category: "DJ"}))
	assert.NoError(t, repo.Create(&models.Registration{EventID: 8, UserID: 42, Category: "DJ"}))
}

func TestWithdrawnRowFreesTheIndex(t *testing.T) {
	repo := openTestRepo(t)

	reg := &models.Registration{EventID: 7, UserID: 42, Category: "DJ"}
	assert.NoError(t, repo.Create(reg))
	assert.NoError(t, repo.SetStatus(reg.ID, models.RegStatusWithdrawn))

	// After withdrawing, the member can sign up again
	again := &models.Registration{EventID: 7, UserID: 42, Category: "Lighting"}
	assert.NoError(t, repo.Create(again))

	active, err := repo.GetActiveFor(7, 42)
	assert.NoError(t, err)
	assert.Equal(t, again.ID, active.ID)
	// The withdrawn row stays around as history
	all, err := repo.ListByEvent(7)
	assert.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRejectedRowFreesTheIndex(t *testing.T) {
	repo := openTestRepo(t)

	reg := &models.Registration{EventID: 7, UserID: 42, Category: "DJ"}
	assert.NoError(t, repo.Create(reg))
	assert.NoError(t, repo.SetStatus(reg.ID, models.RegStatusRejected))

	// A rejection frees the slot and must not block a new attempt either
	_, err := repo.GetActiveFor(7, 42)
	assert.Equal(t, repos.ErrEntityNotExisting, err)
	assert.NoError(t, repo.Create(&models.Registration{EventID: 7, UserID: 42, Category: "Lighting"}))
}

func TestGetActiveForUnknown(t *testing.T) {
	repo := openTestRepo(t)
	_, err := repo.GetActiveFor(99, 42)
	assert.Equal(t, repos.ErrEntityNotExisting, err)
}

func TestReplaceActiveMovesTheCategory(t *testing.T) {
	repo := openTestRepo(t)

	assert.NoError(t, repo.Create(&models.Registration{EventID: 7, UserID: 42, Category: "DJ"}))
	replacement := &models.Registration{EventID: 7, UserID: 42, Category: "Lighting"}
	assert.NoError(t, repo.ReplaceActive(replacement))

	// Exactly one row remains and it carries the new category
	all, err := repo.ListByEvent(7)
	assert.NoError(t, err)
	if assert.Len(t, all, 1) {
		assert.Equal(t, "Lighting", all[0].Category)
	}

	counts, err := repo.CountSignedUpByCategory([]uint{7})
	assert.NoError(t, err)
	assert.Equal(t, uint(0), counts[7]["DJ"])
	assert.Equal(t, uint(1), counts[7]["Lighting"])
}

func TestReplaceActiveKeepsRejectedHistory(t *testing.T) {
	repo := openTestRepo(t)

	rejected := &models.Registration{EventID: 7, UserID: 42, Category: "DJ"}
	assert.NoError(t, repo.Create(rejected))
	assert.NoError(t, repo.SetStatus(rejected.ID, models.RegStatusRejected))
	assert.NoError(t, repo.Create(&models.Registration{EventID: 7, UserID: 42, Category: "Lighting"}))

	// The category change replaces only the active row - the rejection record survives
	assert.NoError(t, repo.ReplaceActive(&models.Registration{EventID: 7, UserID: 42, Category: "Sound"}))
	all, err := repo.ListByEvent(7)
	assert.NoError(t, err)
	assert.Len(t, all, 2)
	got, err := repo.GetByID(rejected.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.RegStatusRejected, got.Status)
}

func TestCountSignedUpByCategory(t *testing.T) {
	repo := openTestRepo(t)

	assert.NoError(t, repo.Create(&models.Registration{EventID: 7, UserID: 42, Category: "DJ"}))
	assert.NoError(t, repo.Create(&models.Registration{EventID: 7, UserID: 43, Category: "Lighting"}))
	assert.NoError(t, repo.Create(&models.Registration{EventID: 7, UserID: 44, Category: "Lighting"}))
	assert.NoError(t, repo.Create(&models.Registration{EventID: 8, UserID: 42, Category: "DJ"}))

	// Confirmed and withdrawn rows do not count as signed up
	confirmed := &models.Registration{EventID: 7, UserID: 45, Category: "DJ"}
	assert.NoError(t, repo.Create(confirmed))
	assert.NoError(t, repo.SetStatus(confirmed.ID, models.RegStatusConfirmed))
	withdrawn := &models.Registration{EventID: 7, UserID: 46, Category: "DJ"}
	assert.NoError(t, repo.Create(withdrawn))
	assert.NoError(t, repo.SetStatus(withdrawn.ID, models.RegStatusWithdrawn))

	counts, err := repo.CountSignedUpByCategory([]uint{7, 8})
	assert.NoError(t, err)
	assert.Equal(t, uint(1), counts[7]["DJ"])
	assert.Equal(t, uint(2), counts[7]["Lighting"])
	assert.Equal(t, uint(1), counts[8]["DJ"])

	// No event IDs, no query
	counts, err = repo.CountSignedUpByCategory(nil)
	assert.NoError(t, err)
	assert.Empty(t, counts)
}

func TestDeleteUnknownRegistration(t *testing.T) {
	repo := openTestRepo(t)
	assert.Equal(t, repos.ErrEntityNotExisting, repo.Delete(99))
}
