package internal

import (
	"fmt"
	"net/http"
	"time"

	"github.com/eventworks/backstage/internal/contracts"
	"github.com/eventworks/backstage/internal/ctxhelper"
	logging "github.com/eventworks/backstage/internal/log"
	"github.com/eventworks/backstage/internal/models"
	"github.com/eventworks/backstage/internal/notify"
	"github.com/eventworks/backstage/internal/repos"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// RegistrationResult is returned from a registration attempt. When the event requires a signed
// contract, no registration is written yet - the caller receives the token the contract
// collaborator will confirm with instead
type RegistrationResult struct {
	ContractRequired bool                 `json:"contractRequired"`
	ContractToken    string               `json:"contractToken,omitempty"`
	Registration     *models.Registration `json:"registration,omitempty"`
}

// MyRegistration is a registration of the current user joined with the event it belongs to
type MyRegistration struct {
	models.Registration
	EventTitle  string             `json:"eventTitle"`
	EventStarts time.Time          `json:"eventStarts"`
	EventStatus models.EventStatus `json:"eventStatus"`
}

// RegistrationService provides service functions for staff signing up for events
type RegistrationService interface {
	// Register signs the current user up for one staff category of an event
	Register(ctx context.Context, eventID uint, category string) (*RegistrationResult, error)
	// CompleteContract finishes a registration that was deferred until the contract got signed
	CompleteContract(ctx context.Context, token string) (*models.Registration, error)
	// Unregister withdraws a registration. Users can only withdraw their own
	Unregister(ctx context.Context, id uint) error
	// ListMine returns the current user's registrations together with their events
	ListMine(ctx context.Context) ([]MyRegistration, error)
	// ListForEvent returns all registrations of one event
	ListForEvent(ctx context.Context, eventID uint) ([]models.Registration, error)
	// SetStatus confirms or rejects a registration
	SetStatus(ctx context.Context, id uint, status models.RegistrationStatus) error
}

// -- RegistrationService implementation -------------------------------------------------------------------------------

type registrationService struct {
	regs     repos.RegistrationRepo
	events   repos.EventRepo
	users    repos.UserRepo
	pending  *contracts.Manager
	webhook  *notify.Webhook
	config   ConfigService
	logger   *logrus.Entry
	timeFunc func() time.Time
}

// NewRegistrationService creates a new registration service instance
func NewRegistrationService(
	regs repos.RegistrationRepo,
	events repos.EventRepo,
	users repos.UserRepo,
	pending *contracts.Manager,
	webhook *notify.Webhook,
	config ConfigService,
	logger *logrus.Entry,
) RegistrationService {
	return &registrationService{
		regs:     regs,
		events:   events,
		users:    users,
		pending:  pending,
		webhook:  webhook,
		config:   config,
		logger:   logger,
		timeFunc: time.Now,
	}
}

// Register signs the current user up for one staff category of an event
func (s *registrationService) Register(ctx context.Context, eventID uint, category string) (*RegistrationResult, error) {
	user := ctxhelper.User(ctx)
	ev, err := s.events.GetByID(eventID)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, MakeError(http.StatusNotFound, ErrCodeEventNotFound,
				fmt.Sprintf("Event #%d does not exist", eventID),
			)
		}
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while retrieving event #%d", eventID), err,
		)
	}
	now := s.timeFunc()
	duration := s.config.GetConfig().Booking.EventDuration()
	if status := ev.Status(now, duration); status == models.StatusCancelled || status == models.StatusCompleted {
		return nil, MakeErrorWithData(http.StatusConflict, ErrCodeEventNotOpen,
			fmt.Sprintf("Event #%d no longer accepts registrations", eventID),
			map[string]interface{}{
				"status": status,
			},
		)
	}
	req := ev.Requirement(category)
	if req == nil {
		return nil, MakeError(http.StatusNotFound, ErrCodeCategoryNotFound,
			fmt.Sprintf("Event #%d has no staff category '%s'", eventID, category),
		)
	}
	quals, err := s.users.QualificationsFor(user.ID)
	if err != nil {
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			"Error while loading user qualifications", err,
		)
	}
	held := make([]string, 0, len(quals))
	for _, q := range quals {
		held = append(held, q.Name)
	}
	if missing := models.MissingQualifications(ev.QualificationRequirements, category, held); len(missing) > 0 {
		return nil, MakeErrorWithData(http.StatusForbidden, ErrCodeNotQualified,
			fmt.Sprintf("Missing qualifications for category '%s'", category),
			map[string]interface{}{
				"missing": missing,
			},
		)
	}
	if s.config.GetConfig().Booking.RejectFullCategories {
		filled, err := s.regs.CountSignedUpByCategory([]uint{eventID})
		if err != nil {
			return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
				"Error while aggregating registrations", err,
			)
		}
		if filled[eventID][category] >= req.Count {
			return nil, MakeError(http.StatusConflict, ErrCodeCategoryFull,
				fmt.Sprintf("All %d slots of category '%s' are taken", req.Count, category),
			)
		}
	}
	if ev.ContractRequired {
		return s.deferForContract(ev, user, category)
	}
	reg, err := s.performWrite(eventID, user.ID, category)
	if err != nil {
		return nil, err
	}
	s.sendConfirmation(ev, user, category)
	return &RegistrationResult{Registration: reg}, nil
}

// deferForContract parks the registration intent and notifies the contract collaborator. The
// registration itself is written when the collaborator calls back with the token
func (s *registrationService) deferForContract(ev *models.Event, user *models.User, category string) (*RegistrationResult, error) {
	intent := s.pending.Add(ev.ID, user.ID, category)
	payload := contracts.SignRequest{
		Token:         intent.Token,
		EventID:       ev.ID,
		EventTitle:    ev.Title,
		StartDate:     ev.StartsAt,
		EndDate:       ev.EndsAt,
		StaffCategory: category,
		UserID:        user.ID,
		UserName:      user.FullName,
	}
	if err := s.webhook.Post(s.config.GetConfig().Webhooks.ContractURL, payload); err != nil {
		s.logger.WithFields(logrus.Fields{
			logging.FldEvent:    ev.ID,
			logging.FldContract: intent.Token,
		}).WithError(err).Error("Failed to hand the contract over for signing")
	}
	s.logger.WithFields(logrus.Fields{
		logging.FldEvent:    ev.ID,
		logging.FldUser:     user.ID,
		logging.FldCategory: category,
		logging.FldContract: intent.Token,
	}).Info("Registration deferred until the contract is signed")
	return &RegistrationResult{
		ContractRequired: true,
		ContractToken:    intent.Token,
	}, nil
}

// CompleteContract finishes a registration that was deferred until the contract got signed
func (s *registrationService) CompleteContract(ctx context.Context, token string) (*models.Registration, error) {
	intent, err := s.pending.Take(token)
	if err != nil {
		return nil, MakeError(http.StatusNotFound, ErrCodeContractNotFound,
			"No pending contract exists for this token",
		)
	}
	reg, err := s.performWrite(intent.EventID, intent.UserID, intent.Category)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		logging.FldEvent:    intent.EventID,
		logging.FldUser:     intent.UserID,
		logging.FldContract: token,
	}).Info("Contract signed - registration written")
	if ev, evErr := s.events.GetByID(intent.EventID); evErr == nil {
		if user, uErr := s.users.GetByID(intent.UserID); uErr == nil {
			s.sendConfirmation(ev, user, intent.Category)
		}
	}
	return reg, nil
}

// performWrite writes the registration row. An existing active registration of the same user on
// the same event means a category change and gets replaced in one transaction
func (s *registrationService) performWrite(eventID uint, userID uint, category string) (*models.Registration, error) {
	reg := &models.Registration{
		EventID:  eventID,
		UserID:   userID,
		Category: category,
		Status:   models.RegStatusSignedUp,
	}
	existing, err := s.regs.GetActiveFor(eventID, userID)
	if err != nil && err != repos.ErrEntityNotExisting {
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			"Error while checking for an existing registration", err,
		)
	}
	if existing != nil {
		if existing.Category == category {
			return nil, MakeError(http.StatusConflict, ErrCodeAlreadyRegistered,
				fmt.Sprintf("Already registered for category '%s' of event #%d", category, eventID),
			)
		}
		err = s.regs.ReplaceActive(reg)
	} else {
		err = s.regs.Create(reg)
	}
	if err == repos.ErrDuplicateRegistration {
		// A concurrent registration won the race for the unique index
		return nil, MakeError(http.StatusConflict, ErrCodeAlreadyRegistered,
			fmt.Sprintf("Already registered for event #%d", eventID),
		)
	}
	if err != nil {
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			"Error while writing the registration", err,
		)
	}
	return reg, nil
}

func (s *registrationService) sendConfirmation(ev *models.Event, user *models.User, category string) {
	if user.Email == "" {
		return
	}
	s.webhook.SendMail(s.config.GetConfig().Webhooks.MailURL, notify.Mail{
		To:      user.Email,
		Subject: fmt.Sprintf("You are signed up: %s", ev.Title),
		Body: fmt.Sprintf(
			"Hi %s,\n\nyou are signed up as '%s' for '%s' starting %s.\n",
			user.FullName, category, ev.Title, ev.StartsAt.Format("02.01.2006 15:04"),
		),
	})
}

// Unregister withdraws a registration. Users can only withdraw their own
func (s *registrationService) Unregister(ctx context.Context, id uint) error {
	user := ctxhelper.User(ctx)
	reg, err := s.getRegistration(id)
	if err != nil {
		return err
	}
	if reg.UserID != user.ID && !user.IsAdmin() {
		return MakeError(http.StatusForbidden, ErrCodeNotAllowed,
			"You can only withdraw your own registrations",
		)
	}
	if err := s.regs.SetStatus(id, models.RegStatusWithdrawn); err != nil {
		return MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while withdrawing registration #%d", id), err,
		)
	}
	s.logger.WithFields(logrus.Fields{
		logging.FldRegistration: id,
		logging.FldUser:         user.ID,
	}).Info("Registration withdrawn")
	return nil
}

func (s *registrationService) getRegistration(id uint) (*models.Registration, error) {
	reg, err := s.regs.GetByID(id)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, MakeError(http.StatusNotFound, ErrCodeRegistrationNotFound,
				fmt.Sprintf("Registration #%d does not exist", id),
			)
		}
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while retrieving registration #%d", id), err,
		)
	}
	return reg, nil
}

// ListMine returns the current user's registrations together with their events
func (s *registrationService) ListMine(ctx context.Context) ([]MyRegistration, error) {
	user := ctxhelper.User(ctx)
	regs, err := s.regs.ListByUser(user.ID)
	if err != nil {
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			"Error while loading own registrations", err,
		)
	}
	now := s.timeFunc()
	duration := s.config.GetConfig().Booking.EventDuration()
	ret := make([]MyRegistration, 0, len(regs))
	for _, reg := range regs {
		entry := MyRegistration{Registration: reg}
		ev, err := s.events.GetByID(reg.EventID)
		if err != nil {
			// The event may have been deleted - keep the bare registration in the list
			s.logger.WithField(logging.FldEvent, reg.EventID).WithError(err).
				Warn("Registration references a missing event")
		} else {
			entry.EventTitle = ev.Title
			entry.EventStarts = ev.StartsAt
			entry.EventStatus = ev.Status(now, duration)
		}
		ret = append(ret, entry)
	}
	return ret, nil
}

// ListForEvent returns all registrations of one event
func (s *registrationService) ListForEvent(ctx context.Context, eventID uint) ([]models.Registration, error) {
	if _, err := s.events.GetByID(eventID); err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, MakeError(http.StatusNotFound, ErrCodeEventNotFound,
				fmt.Sprintf("Event #%d does not exist", eventID),
			)
		}
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while retrieving event #%d", eventID), err,
		)
	}
	regs, err := s.regs.ListByEvent(eventID)
	if err != nil {
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while loading registrations of event #%d", eventID), err,
		)
	}
	return regs, nil
}

// SetStatus confirms or rejects a registration
func (s *registrationService) SetStatus(ctx context.Context, id uint, status models.RegistrationStatus) error {
	if status != models.RegStatusConfirmed && status != models.RegStatusRejected {
		return MakeErrorWithData(http.StatusBadRequest, ErrCodeIllegalValue,
			"A registration can only be confirmed or rejected here",
			map[string]interface{}{
				"status": status,
			},
		)
	}
	if _, err := s.getRegistration(id); err != nil {
		return err
	}
	if err := s.regs.SetStatus(id, status); err != nil {
		return MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while updating registration #%d", id), err,
		)
	}
	return nil
}
