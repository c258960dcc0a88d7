package internal

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eventworks/backstage/internal/ctxhelper"
	"github.com/eventworks/backstage/internal/models"
	"github.com/eventworks/backstage/internal/repos"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// SlotState is the presentation state of one staff category of an event for the current user
type SlotState string

const (
	// SlotRegistered - the current user already holds this category on this event
	SlotRegistered = SlotState("registered")
	// SlotOpen - there are free slots and the user is qualified
	SlotOpen = SlotState("open")
	// SlotFull - all slots of the category are taken. Shown even when the user would also lack
	// qualifications - a full category is the more useful label
	SlotFull = SlotState("full")
	// SlotBlocked - the user lacks at least one required qualification
	SlotBlocked = SlotState("blocked")
)

// CategorySlot combines the required and filled counts of one staff category with the
// qualification check for the current user
type CategorySlot struct {
	Category string    `json:"category"`
	Required uint      `json:"required"`
	Filled   uint      `json:"filled"`
	State    SlotState `json:"state"`
	// The qualification names the current user is missing for this category
	MissingQualifications []string `json:"missingQualifications,omitempty"`
}

// EventDetails is the staffing view of an event. It is assembled on every read and never stored
type EventDetails struct {
	models.Event
	// The lifecycle status derived from the timestamps - the stored field only contributes the
	// explicit cancellation
	EffectiveStatus models.EventStatus `json:"status"`
	Slots           []CategorySlot     `json:"slots"`
}

// EventService provides service functions for working with internal events
type EventService interface {
	List(ctx context.Context, search *Search) ([]models.Event, uint, error)
	Get(ctx context.Context, id uint) (*EventDetails, error)
	Create(ctx context.Context, event *models.Event) (*models.Event, error)
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id uint) error
	Cancel(ctx context.Context, id uint) error
	// ListStaffing returns the events of the given time window as staffing view models for the
	// current user
	ListStaffing(ctx context.Context, window StaffingWindow) ([]EventDetails, error)
}

// -- EventService implementation --------------------------------------------------------------------------------------

type eventService struct {
	repo     repos.EventRepo
	regs     repos.RegistrationRepo
	users    repos.UserRepo
	config   ConfigService
	logger   *logrus.Entry
	timeFunc func() time.Time
}

// NewEventService creates a new event service instance
func NewEventService(repo repos.EventRepo, regs repos.RegistrationRepo, users repos.UserRepo, config ConfigService, logger *logrus.Entry) EventService {
	return &eventService{
		repo:     repo,
		regs:     regs,
		users:    users,
		config:   config,
		logger:   logger,
		timeFunc: time.Now,
	}
}

// List searches for events matching the given search term
func (s *eventService) List(ctx context.Context, search *Search) ([]models.Event, uint, error) {
	events, numRows, err := s.repo.Find(search.Search, search.Offset, search.Limit)
	if err != nil {
		return nil, 0, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while searching events",
			err,
		)
	}
	return events, numRows, nil
}

// Get returns the staffing view of the event with the given ID
func (s *eventService) Get(ctx context.Context, id uint) (*EventDetails, error) {
	ev, err := s.getEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	details, err := s.assemble(ctx, []models.Event{*ev})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

func (s *eventService) getEvent(ctx context.Context, id uint) (*models.Event, error) {
	ev, err := s.repo.GetByID(id)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, MakeError(http.StatusNotFound, ErrCodeEventNotFound,
				fmt.Sprintf("Event #%d does not exist", id),
			)
		}
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while retrieving event #%d", id), err,
		)
	}
	return ev, nil
}

// Create creates a new event
func (s *eventService) Create(ctx context.Context, event *models.Event) (*models.Event, error) {
	if err := validateEvent(event); err != nil {
		return nil, err
	}
	event.StoredStatus = models.StatusPlanned
	if err := s.repo.Create(event); err != nil {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while creating event",
			err,
		)
	}
	return event, nil
}

// validateEvent checks the fields an administrator can get wrong
func validateEvent(event *models.Event) error {
	event.Title = strings.TrimSpace(event.Title)
	if event.Title == "" {
		return MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeRequiredFieldMissing,
			"Event title missing",
			map[string]string{
				"field": "title",
			},
		)
	}
	if !event.EndsAt.IsZero() && event.EndsAt.Before(event.StartsAt) {
		return MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeIllegalValue,
			"Event cannot end before it starts",
			map[string]string{
				"field": "endsAt",
			},
		)
	}
	return nil
}

// Update updates an existing event
func (s *eventService) Update(ctx context.Context, event *models.Event) error {
	originalEvent, err := s.getEvent(ctx, event.ID)
	if err != nil {
		return err
	}
	if err := validateEvent(event); err != nil {
		return err
	}
	// The stored status is not writable through updates - cancellation has its own operation
	event.StoredStatus = originalEvent.StoredStatus
	event.CreatedAt = originalEvent.CreatedAt
	if err := s.repo.Update(event); err != nil {
		if err == repos.ErrEntityNotExisting {
			return MakeError(
				http.StatusNotFound,
				ErrCodeEventNotFound,
				fmt.Sprintf("Event #%d does not exist", event.ID),
			)
		}
		return MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			fmt.Sprintf("Error while updating event #%d", event.ID),
			err,
		)
	}
	return nil
}

// Delete removes an existing event from the repository
func (s *eventService) Delete(ctx context.Context, id uint) error {
	err := s.repo.Delete(id)
	if err == repos.ErrEntityNotExisting {
		return MakeError(
			http.StatusNotFound,
			ErrCodeEventNotFound,
			fmt.Sprintf("Event #%d does not exist", id),
		)
	}
	return err
}

// Cancel marks an event as cancelled. The cancellation is the only stored status that overrides
// the derived lifecycle
func (s *eventService) Cancel(ctx context.Context, id uint) error {
	err := s.repo.SetStatus(id, models.StatusCancelled)
	if err == repos.ErrEntityNotExisting {
		return MakeError(
			http.StatusNotFound,
			ErrCodeEventNotFound,
			fmt.Sprintf("Event #%d does not exist", id),
		)
	}
	if err != nil {
		return MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			fmt.Sprintf("Error while cancelling event #%d", id),
			err,
		)
	}
	return nil
}

// ListStaffing returns the events of the given time window as staffing view models
func (s *eventService) ListStaffing(ctx context.Context, window StaffingWindow) ([]EventDetails, error) {
	now := s.timeFunc()
	from := now
	if window == WindowMonth {
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}
	events, err := s.repo.FindUpcoming(from)
	if err != nil {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while loading the event catalog",
			err,
		)
	}
	return s.assemble(ctx, events)
}

// assemble merges the requirement counts, the registration aggregation and the qualification
// check for the current user into view models. The merge is pure - nothing is cached or written
func (s *eventService) assemble(ctx context.Context, events []models.Event) ([]EventDetails, error) {
	now := s.timeFunc()
	duration := s.config.GetConfig().Booking.EventDuration()
	eventIDs := make([]uint, 0, len(events))
	for _, ev := range events {
		eventIDs = append(eventIDs, ev.ID)
	}
	filled, err := s.regs.CountSignedUpByCategory(eventIDs)
	if err != nil {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while aggregating registrations",
			err,
		)
	}
	// The current user's perspective: held qualifications and own registrations
	var heldNames []string
	ownCategory := map[uint]string{}
	if user := ctxhelper.User(ctx); user != nil {
		quals, err := s.users.QualificationsFor(user.ID)
		if err != nil {
			return nil, MakeErrorWithData(
				http.StatusInternalServerError,
				ErrCodeRepoError,
				"Error while loading user qualifications",
				err,
			)
		}
		for _, q := range quals {
			heldNames = append(heldNames, q.Name)
		}
		own, err := s.regs.ListByUser(user.ID)
		if err != nil {
			return nil, MakeErrorWithData(
				http.StatusInternalServerError,
				ErrCodeRepoError,
				"Error while loading own registrations",
				err,
			)
		}
		for _, reg := range own {
			if reg.Status.Active() {
				ownCategory[reg.EventID] = reg.Category
			}
		}
	}
	ret := make([]EventDetails, 0, len(events))
	for _, ev := range events {
		details := EventDetails{
			Event:           ev,
			EffectiveStatus: ev.Status(now, duration),
		}
		for _, req := range ev.StaffRequirements {
			slot := CategorySlot{
				Category:              req.Category,
				Required:              req.Count,
				Filled:                filled[ev.ID][req.Category],
				MissingQualifications: models.MissingQualifications(ev.QualificationRequirements, req.Category, heldNames),
			}
			switch {
			case ownCategory[ev.ID] == req.Category:
				slot.State = SlotRegistered
			case slot.Filled >= slot.Required:
				slot.State = SlotFull
			case len(slot.MissingQualifications) > 0:
				slot.State = SlotBlocked
			default:
				slot.State = SlotOpen
			}
			details.Slots = append(details.Slots, slot)
		}
		ret = append(ret, details)
	}
	return ret, nil
}
