package internal

import (
	"io/ioutil"
	"testing"
	"time"

	"github.com/eventworks/backstage/internal/ctxhelper"
	"github.com/eventworks/backstage/internal/models"
	"github.com/eventworks/backstage/internal/repos"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"golang.org/x/net/context"
)

// --- Test helpers ---

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.Out = ioutil.Discard
	return logrus.NewEntry(l)
}

// ctxWithUser places the given user in the context the way the session decoder does
func ctxWithUser(user models.User) context.Context {
	return context.WithValue(context.Background(), ctxhelper.KeyUser, user)
}

// assertErrCode checks that the error is an HTTPError carrying the given machine-readable code
func assertErrCode(t *testing.T, err error, code string) {
	t.Helper()
	if assert.Error(t, err) {
		httpErr, ok := err.(*HTTPError)
		if assert.True(t, ok, "expected an HTTPError, got %T", err) {
			assert.Equal(t, code, httpErr.ErrorCode())
		}
	}
}

// --- Mock EventRepo ---

type mockEventRepo struct {
	createFn       func(ev *models.Event) error
	updateFn       func(ev *models.Event) error
	deleteFn       func(id uint) error
	getByIDFn      func(id uint) (*models.Event, error)
	setStatusFn    func(id uint, status models.EventStatus) error
	findUpcomingFn func(from time.Time) ([]models.Event, error)
	findFn         func(search string, offset uint, limit uint) ([]models.Event, uint, error)
}

func (m *mockEventRepo) Create(ev *models.Event) error {
	return m.createFn(ev)
}
func (m *mockEventRepo) Update(ev *models.Event) error {
	return m.updateFn(ev)
}
func (m *mockEventRepo) Delete(id uint) error {
	return m.deleteFn(id)
}
func (m *mockEventRepo) GetByID(id uint) (*models.Event, error) {
	return m.getByIDFn(id)
}
func (m *mockEventRepo) SetStatus(id uint, status models.EventStatus) error {
	return m.setStatusFn(id, status)
}
func (m *mockEventRepo) FindUpcoming(from time.Time) ([]models.Event, error) {
	return m.findUpcomingFn(from)
}
func (m *mockEventRepo) Find(search string, offset uint, limit uint) ([]models.Event, uint, error) {
	return m.findFn(search, offset, limit)
}

// --- Mock RegistrationRepo ---

type mockRegistrationRepo struct {
	createFn        func(reg *models.Registration) error
	replaceActiveFn func(reg *models.Registration) error
	deleteFn        func(id uint) error
	getByIDFn       func(id uint) (*models.Registration, error)
	getActiveForFn  func(eventID uint, userID uint) (*models.Registration, error)
	listByUserFn    func(userID uint) ([]models.Registration, error)
	listByEventFn   func(eventID uint) ([]models.Registration, error)
	setStatusFn     func(id uint, status models.RegistrationStatus) error
	countFn         func(eventIDs []uint) (map[uint]map[string]uint, error)
}

func (m *mockRegistrationRepo) Create(reg *models.Registration) error {
	return m.createFn(reg)
}
func (m *mockRegistrationRepo) ReplaceActive(reg *models.Registration) error {
	return m.replaceActiveFn(reg)
}
func (m *mockRegistrationRepo) Delete(id uint) error {
	return m.deleteFn(id)
}
func (m *mockRegistrationRepo) GetByID(id uint) (*models.Registration, error) {
	return m.getByIDFn(id)
}
func (m *mockRegistrationRepo) GetActiveFor(eventID uint, userID uint) (*models.Registration, error) {
	if m.getActiveForFn == nil {
		return nil, repos.ErrEntityNotExisting
	}
	return m.getActiveForFn(eventID, userID)
}
func (m *mockRegistrationRepo) ListByUser(userID uint) ([]models.Registration, error) {
	if m.listByUserFn == nil {
		return nil, nil
	}
	return m.listByUserFn(userID)
}
func (m *mockRegistrationRepo) ListByEvent(eventID uint) ([]models.Registration, error) {
	return m.listByEventFn(eventID)
}
func (m *mockRegistrationRepo) SetStatus(id uint, status models.RegistrationStatus) error {
	return m.setStatusFn(id, status)
}
func (m *mockRegistrationRepo) CountSignedUpByCategory(eventIDs []uint) (map[uint]map[string]uint, error) {
	if m.countFn == nil {
		return map[uint]map[string]uint{}, nil
	}
	return m.countFn(eventIDs)
}

// --- Mock UserRepo ---

type mockUserRepo struct {
	createFn                 func(u *models.User) error
	updateFn                 func(u *models.User) error
	deleteFn                 func(id uint) error
	getByIDFn                func(id uint) (*models.User, error)
	getByCredentialsFn       func(username string, password string) (*models.User, error)
	findFn                   func(search string, offset uint, limit uint) ([]models.User, uint, error)
	countFn                  func() (uint, error)
	qualificationsForFn      func(userID uint) ([]models.Qualification, error)
	setQualificationsFn      func(userID uint, qualificationIDs []uint) error
	listQualificationsFn     func() ([]models.Qualification, error)
	createQualificationFn    func(q *models.Qualification) error
	deleteQualificationFn    func(id uint) error
	createInvitationFn       func(inv *models.Invitation) error
	getInvitationFn          func(token string) (*models.Invitation, error)
	markInvitationRedeemedFn func(token string, when time.Time) error
	listInvitationsFn        func() ([]models.Invitation, error)
}

func (m *mockUserRepo) Create(u *models.User) error {
	return m.createFn(u)
}
func (m *mockUserRepo) Update(u *models.User) error {
	return m.updateFn(u)
}
func (m *mockUserRepo) Delete(id uint) error {
	return m.deleteFn(id)
}
func (m *mockUserRepo) GetByID(id uint) (*models.User, error) {
	return m.getByIDFn(id)
}
func (m *mockUserRepo) GetByCredentials(username string, password string) (*models.User, error) {
	return m.getByCredentialsFn(username, password)
}
func (m *mockUserRepo) Find(search string, offset uint, limit uint) ([]models.User, uint, error) {
	return m.findFn(search, offset, limit)
}
func (m *mockUserRepo) Count() (uint, error) {
	return m.countFn()
}
func (m *mockUserRepo) QualificationsFor(userID uint) ([]models.Qualification, error) {
	if m.qualificationsForFn == nil {
		return nil, nil
	}
	return m.qualificationsForFn(userID)
}
func (m *mockUserRepo) SetQualifications(userID uint, qualificationIDs []uint) error {
	return m.setQualificationsFn(userID, qualificationIDs)
}
func (m *mockUserRepo) ListQualifications() ([]models.Qualification, error) {
	return m.listQualificationsFn()
}
func (m *mockUserRepo) CreateQualification(q *models.Qualification) error {
	return m.createQualificationFn(q)
}
func (m *mockUserRepo) DeleteQualification(id uint) error {
	return m.deleteQualificationFn(id)
}
func (m *mockUserRepo) CreateInvitation(inv *models.Invitation) error {
	return m.createInvitationFn(inv)
}
func (m *mockUserRepo) GetInvitation(token string) (*models.Invitation, error) {
	return m.getInvitationFn(token)
}
func (m *mockUserRepo) MarkInvitationRedeemed(token string, when time.Time) error {
	return m.markInvitationRedeemedFn(token, when)
}
func (m *mockUserRepo) ListInvitations() ([]models.Invitation, error) {
	return m.listInvitationsFn()
}

// --- Stub ConfigService ---

// stubConfig serves a fixed configuration and swallows writes
type stubConfig struct {
	cfg models.AppConfig
}

func (s *stubConfig) Load(ctx context.Context) error                         { return nil }
func (s *stubConfig) LoadFromFile(ctx context.Context, filename string) error { return nil }
func (s *stubConfig) Write(ctx context.Context) error                        { return nil }
func (s *stubConfig) WriteToFile(ctx context.Context, filename string) error { return nil }
func (s *stubConfig) GetConfig() models.AppConfig                            { return s.cfg }
func (s *stubConfig) BookingSettings(ctx context.Context) models.BookingConfig {
	return s.cfg.Booking
}
func (s *stubConfig) UpdateBookingSettings(ctx context.Context, settings models.BookingConfig) error {
	s.cfg.Booking = settings
	return nil
}
