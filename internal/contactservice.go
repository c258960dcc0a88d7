package internal

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/eventworks/backstage/internal/models"
	"github.com/eventworks/backstage/internal/notify"
	"github.com/eventworks/backstage/internal/repos"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// ContactService provides service functions for the quote requests submitted through the
// public website form
type ContactService interface {
	// Submit stores a new contact request. This is the only public write of the service
	Submit(ctx context.Context, req *models.ContactRequest) (*models.ContactRequest, error)
	List(ctx context.Context, search *Search) ([]models.ContactRequest, uint, error)
	Get(ctx context.Context, id uint) (*models.ContactRequest, error)
	Update(ctx context.Context, req *models.ContactRequest) error
	Delete(ctx context.Context, id uint) error
}

// -- ContactService implementation ------------------------------------------------------------------------------------

type contactService struct {
	contacts repos.ContactRepo
	webhook  *notify.Webhook
	config   ConfigService
	logger   *logrus.Entry
}

// NewContactService creates a new contact service instance
func NewContactService(contacts repos.ContactRepo, webhook *notify.Webhook, config ConfigService, logger *logrus.Entry) ContactService {
	return &contactService{
		contacts: contacts,
		webhook:  webhook,
		config:   config,
		logger:   logger,
	}
}

// Submit stores a new contact request and announces it via mail
func (s *contactService) Submit(ctx context.Context, req *models.ContactRequest) (*models.ContactRequest, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" {
		return nil, MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeRequiredFieldMissing,
			"Name missing",
			map[string]string{
				"field": "name",
			},
		)
	}
	if req.Email == "" {
		return nil, MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeRequiredFieldMissing,
			"Email address missing",
			map[string]string{
				"field": "email",
			},
		)
	}
	req.ID = 0
	req.Status = models.ContactStatusNew
	if err := s.contacts.Create(req); err != nil {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while storing the contact request",
			err,
		)
	}
	cfg := s.config.GetConfig()
	if cfg.Webhooks.NotifyAddress != "" {
		s.webhook.SendMail(cfg.Webhooks.MailURL, notify.Mail{
			To:      cfg.Webhooks.NotifyAddress,
			Subject: fmt.Sprintf("New quote request from %s", req.Name),
			Body: fmt.Sprintf(
				"%s (%s) asked for a quote.\nEvent type: %s\n\n%s\n",
				req.Name, req.Email, req.EventType, req.Message,
			),
		})
	}
	return req, nil
}

// List searches for contact requests matching the given search term
func (s *contactService) List(ctx context.Context, search *Search) ([]models.ContactRequest, uint, error) {
	reqs, numRows, err := s.contacts.Find(search.Search, search.Offset, search.Limit)
	if err != nil {
		return nil, 0, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while searching contact requests",
			err,
		)
	}
	return reqs, numRows, nil
}

// Get returns one contact request
func (s *contactService) Get(ctx context.Context, id uint) (*models.ContactRequest, error) {
	req, err := s.contacts.GetByID(id)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, MakeError(http.StatusNotFound, ErrCodeContactNotFound,
				fmt.Sprintf("Contact request #%d does not exist", id),
			)
		}
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while retrieving contact request #%d", id), err,
		)
	}
	return req, nil
}

// Update updates an existing contact request - mostly used to move it through its workflow states
func (s *contactService) Update(ctx context.Context, req *models.ContactRequest) error {
	original, err := s.Get(ctx, req.ID)
	if err != nil {
		return err
	}
	if req.Status == "" {
		req.Status = original.Status
	}
	if !models.ValidContactStatus(req.Status) {
		return MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeIllegalValue,
			fmt.Sprintf("'%s' is not a valid contact request status", req.Status),
			map[string]string{
				"field": "status",
			},
		)
	}
	req.CreatedAt = original.CreatedAt
	if err := s.contacts.Update(req); err != nil {
		return MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			fmt.Sprintf("Error while updating contact request #%d", req.ID),
			err,
		)
	}
	return nil
}

// Delete removes a contact request
func (s *contactService) Delete(ctx context.Context, id uint) error {
	err := s.contacts.Delete(id)
	if err == repos.ErrEntityNotExisting {
		return MakeError(
			http.StatusNotFound,
			ErrCodeContactNotFound,
			fmt.Sprintf("Contact request #%d does not exist", id),
		)
	}
	return err
}
