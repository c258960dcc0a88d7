package sqlite

import (
	"io/ioutil"
	"testing"
	"time"

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
func openTestRepo(t *testing.T) (*EventRepo, *sqlx.DB) {
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
	return New(db, testLogger()), db
}

func sampleEvent() *models.Event {
	return &models.Event{
		Title:    "Sommerfest Müller GmbH",
		Location: "Musterstadt",
		StartsAt: time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2026, 8, 2, 1, 0, 0, 0, time.UTC),
		StaffRequirements: []models.StaffRequirement{
			{Category: "DJ", Count: 1},
			{Category: "Lighting", Count: 2},
		},
		QualificationRequirements: []models.QualificationRequirement{
			{Category: "Lighting", Qualifications: []string{"Rigging"}},
		},
		Pricing: []models.PriceRate{
			{Category: "DJ", HourlyRate: 4500},
		},
	}
}

func TestCreateAndGetByID(t *testing.T) {
	repo, _ := openTestRepo(t)

	ev := sampleEvent()
	assert.NoError(t, repo.Create(ev))
	assert.NotZero(t, ev.ID)
	assert.Equal(t, models.StatusPlanned, ev.StoredStatus)

	got, err := repo.GetByID(ev.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Sommerfest Müller GmbH", got.Title)
	assert.True(t, got.StartsAt.Equal(ev.StartsAt))
	// The JSON columns come back as their model types
	if assert.Len(t, got.StaffRequirements, 2) {
		assert.Equal(t, "DJ", got.StaffRequirements[0].Category)
		assert.Equal(t, uint(2), got.StaffRequirements[1].Count)
	}
	if assert.Len(t, got.QualificationRequirements, 1) {
		assert.Equal(t, []string{"Rigging"}, got.QualificationRequirements[0].Qualifications)
	}
	if assert.Len(t, got.Pricing, 1) {
		assert.Equal(t, uint(4500), got.Pricing[0].HourlyRate)
	}
}

func TestGetByIDUnknown(t *testing.T) {
	repo, _ := openTestRepo(t)
	_, err := repo.GetByID(99)
	assert.Equal(t, repos.ErrEntityNotExisting, err)
}

func TestMalformedRequirementColumn(t *testing.T) {
	repo, db := openTestRepo(t)

	ev := sampleEvent()
	assert.NoError(t, repo.Create(ev))
	// A broken column left behind by an old client must not make the row unreadable
	_, err := db.Exec("UPDATE Events SET staffRequirements = ? WHERE id = ?", `[{"category": "DJ"`, ev.ID)
	assert.NoError(t, err)

	got, err := repo.GetByID(ev.ID)
	assert.NoError(t, err)
	assert.Empty(t, got.StaffRequirements)
	// The intact columns still decode
	assert.Len(t, got.QualificationRequirements, 1)
}

func TestSingleObjectRequirementColumn(t *testing.T) {
	repo, db := openTestRepo(t)

	ev := sampleEvent()
	assert.NoError(t, repo.Create(ev))
	// Old clients stored a single object instead of an array
	_, err := db.Exec("UPDATE Events SET staffRequirements = ? WHERE id = ?", `{"category": "DJ", "count": 3}`, ev.ID)
	assert.NoError(t, err)

	got, err := repo.GetByID(ev.ID)
	assert.NoError(t, err)
	if assert.Len(t, got.StaffRequirements, 1) {
		assert.Equal(t, uint(3), got.StaffRequirements[0].Count)
	}
}

func TestFindUpcoming(t *testing.T) {
	repo, _ := openTestRepo(t)

	past := sampleEvent()
	past.Title = "Altes Fest"
	past.StartsAt = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	past.EndsAt = time.Date(2026, 5, 1, 23, 0, 0, 0, time.UTC)
	assert.NoError(t, repo.Create(past))
	later := sampleEvent()
	later.Title = "Herbstfest"
	later.StartsAt = time.Date(2026, 10, 1, 18, 0, 0, 0, time.UTC)
	later.EndsAt = time.Time{}
	assert.NoError(t, repo.Create(later))
	assert.NoError(t, repo.Create(sampleEvent()))

	list, err := repo.FindUpcoming(time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
	// Past events are filtered, the rest is ordered by start time
	if assert.Len(t, list, 2) {
		assert.Equal(t, "Sommerfest Müller GmbH", list[0].Title)
		assert.Equal(t, "Herbstfest", list[1].Title)
	}
}

func TestUpdate(t *testing.T) {
	repo, _ := openTestRepo(t)

	ev := sampleEvent()
	assert.NoError(t, repo.Create(ev))
	ev.Title = "Sommerfest Schmidt AG"
	ev.StaffRequirements = []models.StaffRequirement{{Category: "DJ", Count: 2}}
	assert.NoError(t, repo.Update(ev))

	got, err := repo.GetByID(ev.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Sommerfest Schmidt AG", got.Title)
	if assert.Len(t, got.StaffRequirements, 1) {
		assert.Equal(t, uint(2), got.StaffRequirements[0].Count)
	}

	missing := sampleEvent()
	missing.ID = 99
	assert.Equal(t, repos.ErrEntityNotExisting, repo.Update(missing))
}

func TestSetStatus(t *testing.T) {
	repo, _ := openTestRepo(t)

	ev := sampleEvent()
	assert.NoError(t, repo.Create(ev))
	assert.NoError(t, repo.SetStatus(ev.ID, models.StatusCancelled))

	got, err := repo.GetByID(ev.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.StoredStatus)

	assert.Equal(t, repos.ErrEntityNotExisting, repo.SetStatus(99, models.StatusCancelled))
}

func TestFind(t *testing.T) {
	repo, _ := openTestRepo(t)

	assert.NoError(t, repo.Create(sampleEvent()))
	other := sampleEvent()
	other.Title = "Weihnachtsfeier"
	assert.NoError(t, repo.Create(other))

	list, total, err := repo.Find("Sommerfest", 0, 10)
	assert.NoError(t, err)
	assert.Equal(t, uint(1), total)
	if assert.Len(t, list, 1) {
		assert.Equal(t, "Sommerfest Müller GmbH", list[0].Title)
	}

	// An empty search term matches everything
	_, total, err = repo.Find("", 0, 10)
	assert.NoError(t, err)
	assert.Equal(t, uint(2), total)
}

func TestDeleteUnknownEvent(t *testing.T) {
	repo, _ := openTestRepo(t)
	assert.Equal(t, repos.ErrEntityNotExisting, repo.Delete(99))
}
