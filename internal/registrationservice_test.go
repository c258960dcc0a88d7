package internal

import (
	"testing"
	"time"

	"github.com/eventworks/backstage/internal/contracts"
	"github.com/eventworks/backstage/internal/models"
	"github.com/eventworks/backstage/internal/notify"
	"github.com/eventworks/backstage/internal/repos"
	"github.com/stretchr/testify/assert"
	"golang.org/x/net/context"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func staffedEvent() *models.Event {
	return &models.Event{
		ID:       7,
		Title:    "Sommerfest Müller GmbH",
		StartsAt: testNow.Add(48 * time.Hour),
		EndsAt:   testNow.Add(54 * time.Hour),
		StaffRequirements: []models.StaffRequirement{
			{Category: "DJ", Count: 1},
			{Category: "Lighting", Count: 2},
		},
		QualificationRequirements: []models.QualificationRequirement{
			{Category: "Lighting", Qualifications: []string{"Rigging"}},
		},
	}
}

func staffMember() models.User {
	return models.User{ID: 42, Name: "jane", FullName: "Jane Doe", Email: "jane@example.com", Role: models.RoleStaff}
}

type regServiceDeps struct {
	events  *mockEventRepo
	regs    *mockRegistrationRepo
	users   *mockUserRepo
	pending *contracts.Manager
	config  *stubConfig
}

func newRegService(d *regServiceDeps) RegistrationService {
	if d.events == nil {
		d.events = &mockEventRepo{}
	}
	if d.regs == nil {
		d.regs = &mockRegistrationRepo{}
	}
	if d.users == nil {
		d.users = &mockUserRepo{}
	}
	if d.pending == nil {
		d.pending = contracts.NewManager()
	}
	if d.config == nil {
		d.config = &stubConfig{}
	}
	logger := testLogger()
	svc := NewRegistrationService(
		d.regs, d.events, d.users, d.pending, notify.NewWebhook(logger), d.config, logger,
	).(*registrationService)
	svc.timeFunc = func() time.Time { return testNow }
	return svc
}

func TestRegisterSuccess(t *testing.T) {
	var created *models.Registration
	d := &regServiceDeps{
		events: &mockEventRepo{
			getByIDFn: func(id uint) (*models.Event, error) { return staffedEvent(), nil },
		},
		regs: &mockRegistrationRepo{
			createFn: func(reg *models.Registration) error {
				reg.ID = 99
				created = reg
				return nil
			},
		},
	}
	svc := newRegService(d)

	res, err := svc.Register(ctxWithUser(staffMember()), 7, "DJ")

	assert.NoError(t, err)
	assert.False(t, res.ContractRequired)
	if assert.NotNil(t, res.Registration) {
		assert.Equal(t, uint(99), res.Registration.ID)
		assert.Equal(t, models.RegStatusSignedUp, res.Registration.Status)
	}
	if assert.NotNil(t, created) {
		assert.Equal(t, uint(7), created.EventID)
		assert.Equal(t, uint(42), created.UserID)
		assert.Equal(t, "DJ", created.Category)
	}
}

func TestRegisterEventNotFound(t *testing.T) {
	svc := newRegService(&regServiceDeps{
		events: &mockEventRepo{
			getByIDFn: func(id uint) (*models.Event, error) { return nil, repos.ErrEntityNotExisting },
		},
	})

	_, err := svc.Register(ctxWithUser(staffMember()), 999, "DJ")
	assertErrCode(t, err, ErrCodeEventNotFound)
}

func TestRegisterClosedEvent(t *testing.T) {
	// The event is long over - its stored status still says "planned"
	ev := staffedEvent()
	ev.StartsAt = testNow.Add(-48 * time.Hour)
	ev.EndsAt = testNow.Add(-44 * time.Hour)
	svc := newRegService(&regServiceDeps{
		events: &mockEventRepo{
			getByIDFn: func(id uint) (*models.Event, error) { return ev, nil },
		},
	})

	_, err := svc.Register(ctxWithUser(staffMember()), 7, "DJ")
	assertErrCode(t, err, ErrCodeEventNotOpen)
}

func TestRegisterUsesConfiguredDuration(t *testing.T) {
	// An open-ended event that started 5 hours ago is already closed under the built-in 4-hour
	// assumption, but still accepts registrations when 8 hours are configured
	ev := staffedEvent()
	ev.StartsAt = testNow.Add(-5 * time.Hour)
	ev.EndsAt = time.Time{}
	deps := func(cfg *stubConfig) *regServiceDeps {
		return &regServiceDeps{
			events: &mockEventRepo{
				getByIDFn: func(id uint) (*models.Event, error) { return ev, nil },
			},
			regs: &mockRegistrationRepo{
				createFn: func(reg *models.Registration) error { return nil },
			},
			config: cfg,
		}
	}

	svc := newRegService(deps(&stubConfig{}))
	_, err := svc.Register(ctxWithUser(staffMember()), 7, "DJ")
	assertErrCode(t, err, ErrCodeEventNotOpen)

	svc = newRegService(deps(&stubConfig{cfg: models.AppConfig{
		Booking: models.BookingConfig{DefaultEventDurationHours: 8},
	}}))
	_, err = svc.Register(ctxWithUser(staffMember()), 7, "DJ")
	assert.NoError(t, err)
}

func TestRegisterCancelledEvent(t *testing.T) {
	ev := staffedEvent()
	ev.StoredStatus = models.StatusCancelled
	svc := newRegService(&regServiceDeps{
		events: &mockEventRepo{
			getByIDFn: func(id uint) (*models.Event, error) { return ev, nil },
		},
	})

	_, err := svc.Register(ctxWithUser(staffMember()), 7, "DJ")
	assertErrCode(t, err, ErrCodeEventNotOpen)
}

func TestRegisterUnknownCategory(t *testing.T) {
	svc := newRegService(&regServiceDeps{
		events: &mockEventRepo{
			getByIDFn: func(id uint) (*models.Event, error) { return staffedEvent(), nil },
		},
	})

	_, err := svc.Register(ctxWithUser(staffMember()), 7, "Catering")
	assertErrCode(t, err, ErrCodeCategoryNotFound)
}

func TestRegisterMissingQualification(t *testing.T) {
	svc := newRegService(&regServiceDeps{
		events: &mockEventRepo{
			getByIDFn: func(id uint) (*models.Event, error) { return staffedEvent(), nil },
		},
	})

	_, err := svc.Register(ctxWithUser(staffMember()), 7, "Lighting")
	assertErrCode(t, err, ErrCodeNotQualified)
	data, ok := err.(*HTTPError).Data().(map[string]interface{})
	if assert.True(t, ok) {
		assert.Equal(t, []string{"Rigging"}, data["missing"])
	}
}

func TestRegisterQualifiedMember(t *testing.T) {
	d := &regServiceDeps{
		events: &mockEventRepo{
			getByIDFn: func(id uint) (*models.Event, error) { return staffedEvent(), nil },
		},
		regs: &mockRegistrationRepo{
			createFn: func(reg *models.Registration) error { return nil },
		},
		users: &mockUserRepo{
			qualificationsForFn: func(userID uint) ([]models.Qualification, error) {
				return []models.Qualification{{ID: 1, Name: "Rigging"}}, nil
			},
		},
	}
	svc := newRegService(d)

	_, err := svc.Register(ctxWithUser(staffMember()), 7, "Lighting")
	assert.NoError(t, err)
}

func TestRegisterFullCategoryAllowedByDefault(t *testing.T) {
	// Over-booking is allowed unless the rejectFullCategories flag is set
	d := &regServiceDeps{
		events: &mockEventRepo{
			getByIDFn: func(id uint) (*models.Event, error) { return staffedEvent(), nil },
		},
		regs: &mockRegistrationRepo{
			createFn: func(reg *models.Registration) error { return nil },
			countFn: func(eventIDs []uint) (map[uint]map[string]uint, error) {
				return map[uint]map[string]uint{7: {"DJ": 1}}, nil
			},
		},
	}
	svc := newRegService(d)

	_, err := svc.Register(ctxWithUser(staffMember()), 7, "DJ")
	assert.NoError(t, err)
}

func TestRegisterFullCategoryRejected(t *testing.T) {
	d := &regServiceDeps{
		events: &mockEventRepo{
			getByIDFn: func(id uint) (*models.Event, error) { return staffedEvent(), nil },
		},
		regs: &mockRegistrationRepo{
			countFn: func(eventIDs []uint) (map[uint]map[string]uint, error) {
				return map[uint]map[string]uint{7: {"DJ": 1}}, nil
			},
		},
		config: &stubConfig{cfg: models.AppConfig{
			Booking: models.BookingConfig{RejectFullCategories: true},
		}},
	}
	svc := newRegService(d)

	_, err := svc.Register(ctxWithUser(staffMember()), 7, "DJ")
	assertErrCode(t, err, ErrCodeCategoryFull)
}

func TestRegisterCategoryChange(t *testing.T) {
	// An active registration on another category of the same event gets replaced, not duplicated
	replaced := false
	d := &regServiceDeps{
		events: &mockEventRepo{
			getByIDFn: func(id uint) (*models.Event, error) { return staffedEvent(), nil },
		},
		regs: &mockRegistrationRepo{
			getActiveForFn: func(eventID uint, userID uint) (*models.Registration, error) {
				return &models.Registration{ID: 5, EventID: 7, UserID: 42, Category: "Lighting", Status: models.RegStatusSignedUp}, nil
			},
			replaceActiveFn: func(reg *models.Registration) error {
				replaced = true
				return nil
			},
		},
	}
	svc := newRegService(d)

	res, err := svc.Register(ctxWithUser(staffMember()), 7, "DJ")
	assert.NoError(t, err)
	assert.True(t, replaced)
	assert.Equal(t, "DJ", res.Registration.Category)
}

func TestRegisterAlreadyRegistered(t *testing.T) {
	d := &regServiceDeps{
		events: &mockEventRepo{
			getByIDFn: func(id uint) (*models.Event, error) { return staffedEvent(), nil },
		},
		regs: &mockRegistrationRepo{
			getActiveForFn: func(eventID uint, userID uint) (*models.Registration, error) {
				return &models.Registration{ID: 5, EventID: 7, UserID: 42, Category: "DJ", Status: models.RegStatusSignedUp}, nil
			},
		},
	}
	svc := newRegService(d)

	_, err := svc.Register(ctxWithUser(staffMember()), 7, "DJ")
	assertErrCode(t, err, ErrCodeAlreadyRegistered)
}

func TestRegisterDuplicateRace(t *testing.T) {
	// A concurrent request may win the unique index between the check and the insert
	d := &regServiceDeps{
		events: &mockEventRepo{
			getByIDFn: func(id uint) (*models.Event, error) { return staffedEvent(), nil },
		},
		regs: &mockRegistrationRepo{
			createFn: func(reg *models.Registration) error { return repos.ErrDuplicateRegistration },
		},
	}
	svc := newRegService(d)

	_, err := svc.Register(ctxWithUser(staffMember()), 7, "DJ")
	assertErrCode(t, err, ErrCodeAlreadyRegistered)
}

func TestRegisterContractRequired(t *testing.T) {
	ev := staffedEvent()
	ev.ContractRequired = true
	created := false
	pending := contracts.NewManager()
	d := &regServiceDeps{
		events: &mockEventRepo{
			getByIDFn: func(id uint) (*models.Event, error) { return ev, nil },
		},
		regs: &mockRegistrationRepo{
			createFn: func(reg *models.Registration) error {
				created = true
				return nil
			},
		},
		pending: pending,
	}
	svc := newRegService(d)

	res, err := svc.Register(ctxWithUser(staffMember()), 7, "DJ")

	assert.NoError(t, err)
	assert.True(t, res.ContractRequired)
	assert.NotEmpty(t, res.ContractToken)
	assert.Nil(t, res.Registration)
	// Nothing is written until the contract comes back signed
	assert.False(t, created)
	assert.Equal(t, 1, pending.Len())
}

func TestCompleteContract(t *testing.T) {
	var created *models.Registration
	pending := contracts.NewManager()
	intent := pending.Add(7, 42, "DJ")
	d := &regServiceDeps{
		events: &mockEventRepo{
			getByIDFn: func(id uint) (*models.Event, error) { return staffedEvent(), nil },
		},
		regs: &mockRegistrationRepo{
			createFn: func(reg *models.Registration) error {
				created = reg
				return nil
			},
		},
		users: &mockUserRepo{
			getByIDFn: func(id uint) (*models.User, error) {
				u := staffMember()
				return &u, nil
			},
		},
		pending: pending,
	}
	svc := newRegService(d)

	reg, err := svc.CompleteContract(context.Background(), intent.Token)

	assert.NoError(t, err)
	assert.NotNil(t, reg)
	if assert.NotNil(t, created) {
		assert.Equal(t, uint(7), created.EventID)
		assert.Equal(t, uint(42), created.UserID)
		assert.Equal(t, "DJ", created.Category)
	}
	assert.Equal(t, 0, pending.Len())
}

func TestCompleteContractUnknownToken(t *testing.T) {
	svc := newRegService(&regServiceDeps{})
	_, err := svc.CompleteContract(context.Background(), "bogus")
	assertErrCode(t, err, ErrCodeContractNotFound)
}

func TestUnregisterOwn(t *testing.T) {
	var newStatus models.RegistrationStatus
	d := &regServiceDeps{
		regs: &mockRegistrationRepo{
			getByIDFn: func(id uint) (*models.Registration, error) {
				return &models.Registration{ID: 5, EventID: 7, UserID: 42, Category: "DJ", Status: models.RegStatusSignedUp}, nil
			},
			setStatusFn: func(id uint, status models.RegistrationStatus) error {
				newStatus = status
				return nil
			},
		},
	}
	svc := newRegService(d)

	err := svc.Unregister(ctxWithUser(staffMember()), 5)
	assert.NoError(t, err)
	assert.Equal(t, models.RegStatusWithdrawn, newStatus)
}

func TestUnregisterForeignRegistration(t *testing.T) {
	d := &regServiceDeps{
		regs: &mockRegistrationRepo{
			getByIDFn: func(id uint) (*models.Registration, error) {
				return &models.Registration{ID: 5, EventID: 7, UserID: 1, Category: "DJ", Status: models.RegStatusSignedUp}, nil
			},
		},
	}
	svc := newRegService(d)

	err := svc.Unregister(ctxWithUser(staffMember()), 5)
	assertErrCode(t, err, ErrCodeNotAllowed)
}

func TestUnregisterForeignAsAdmin(t *testing.T) {
	var newStatus models.RegistrationStatus
	d := &regServiceDeps{
		regs: &mockRegistrationRepo{
			getByIDFn: func(id uint) (*models.Registration, error) {
				return &models.Registration{ID: 5, EventID: 7, UserID: 1, Category: "DJ", Status: models.RegStatusSignedUp}, nil
			},
			setStatusFn: func(id uint, status models.RegistrationStatus) error {
				newStatus = status
				return nil
			},
		},
	}
	svc := newRegService(d)

	admin := models.User{ID: 2, Name: "boss", Role: models.RoleAdmin}
	err := svc.Unregister(ctxWithUser(admin), 5)
	assert.NoError(t, err)
	assert.Equal(t, models.RegStatusWithdrawn, newStatus)
}

func TestSetStatusValidation(t *testing.T) {
	svc := newRegService(&regServiceDeps{})
	err := svc.SetStatus(context.Background(), 5, models.RegStatusWithdrawn)
	assertErrCode(t, err, ErrCodeIllegalValue)
}

func TestSetStatusConfirm(t *testing.T) {
	var newStatus models.RegistrationStatus
	d := &regServiceDeps{
		regs: &mockRegistrationRepo{
			getByIDFn: func(id uint) (*models.Registration, error) {
				return &models.Registration{ID: 5, EventID: 7, UserID: 42, Status: models.RegStatusSignedUp}, nil
			},
			setStatusFn: func(id uint, status models.RegistrationStatus) error {
				newStatus = status
				return nil
			},
		},
	}
	svc := newRegService(d)

	err := svc.SetStatus(context.Background(), 5, models.RegStatusConfirmed)
	assert.NoError(t, err)
	assert.Equal(t, models.RegStatusConfirmed, newStatus)
}

func TestListMineJoinsEvents(t *testing.T) {
	d := &regServiceDeps{
		regs: &mockRegistrationRepo{
			listByUserFn: func(userID uint) ([]models.Registration, error) {
				return []models.Registration{
					{ID: 5, EventID: 7, UserID: 42, Category: "DJ", Status: models.RegStatusSignedUp},
				}, nil
			},
		},
		events: &mockEventRepo{
			getByIDFn: func(id uint) (*models.Event, error) { return staffedEvent(), nil },
		},
	}
	svc := newRegService(d)

	list, err := svc.ListMine(ctxWithUser(staffMember()))
	assert.NoError(t, err)
	if assert.Len(t, list, 1) {
		assert.Equal(t, "Sommerfest Müller GmbH", list[0].EventTitle)
		assert.Equal(t, models.StatusPlanned, list[0].EventStatus)
	}
}
