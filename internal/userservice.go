package internal

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	logging "github.com/eventworks/backstage/internal/log"
	"github.com/eventworks/backstage/internal/models"
	"github.com/eventworks/backstage/internal/notify"
	"github.com/eventworks/backstage/internal/repos"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// UserDetails is a user together with the qualifications assigned to them
type UserDetails struct {
	models.User
	Qualifications []models.Qualification `json:"qualifications"`
}

// RedeemRequest carries the account data a new staff member chooses when redeeming an invitation
type RedeemRequest struct {
	Name     string `json:"name"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

// UserService provides service functions for managing staff accounts, their qualifications and
// the invitations that create new accounts
type UserService interface {
	List(ctx context.Context, search *Search) ([]models.User, uint, error)
	Get(ctx context.Context, id uint) (*UserDetails, error)
	Create(ctx context.Context, user *models.User, password string) (*models.User, error)
	Update(ctx context.Context, user *models.User, password string) error
	Delete(ctx context.Context, id uint) error
	// SetQualifications replaces the qualification assignment of one user
	SetQualifications(ctx context.Context, userID uint, qualificationIDs []uint) error
	ListQualifications(ctx context.Context) ([]models.Qualification, error)
	CreateQualification(ctx context.Context, q *models.Qualification) (*models.Qualification, error)
	DeleteQualification(ctx context.Context, id uint) error
	// Invite creates an invitation token for the given email address and mails it out
	Invite(ctx context.Context, email string, role models.UserRole) (*models.Invitation, error)
	ListInvitations(ctx context.Context) ([]models.Invitation, error)
	// Redeem turns an invitation into a staff account. This is the only unauthenticated way to
	// create a user
	Redeem(ctx context.Context, token string, req *RedeemRequest) (*models.User, error)
}

// -- UserService implementation ---------------------------------------------------------------------------------------

type userService struct {
	users    repos.UserRepo
	webhook  *notify.Webhook
	config   ConfigService
	logger   *logrus.Entry
	timeFunc func() time.Time
}

// NewUserService creates a new user service instance
func NewUserService(users repos.UserRepo, webhook *notify.Webhook, config ConfigService, logger *logrus.Entry) UserService {
	return &userService{
		users:    users,
		webhook:  webhook,
		config:   config,
		logger:   logger,
		timeFunc: time.Now,
	}
}

// List searches for users matching the given search term
func (s *userService) List(ctx context.Context, search *Search) ([]models.User, uint, error) {
	users, numRows, err := s.users.Find(search.Search, search.Offset, search.Limit)
	if err != nil {
		return nil, 0, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while searching users",
			err,
		)
	}
	return users, numRows, nil
}

// Get returns one user together with their qualifications
func (s *userService) Get(ctx context.Context, id uint) (*UserDetails, error) {
	user, err := s.getUser(id)
	if err != nil {
		return nil, err
	}
	quals, err := s.users.QualificationsFor(id)
	if err != nil {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while loading user qualifications",
			err,
		)
	}
	return &UserDetails{
		User:           *user,
		Qualifications: quals,
	}, nil
}

func (s *userService) getUser(id uint) (*models.User, error) {
	user, err := s.users.GetByID(id)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, MakeError(http.StatusNotFound, ErrCodeUserNotFound,
				fmt.Sprintf("User #%d does not exist", id),
			)
		}
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while retrieving user #%d", id), err,
		)
	}
	return user, nil
}

func validateUser(user *models.User) error {
	user.Name = strings.ToLower(strings.TrimSpace(user.Name))
	if user.Name == "" {
		return MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeRequiredFieldMissing,
			"User name missing",
			map[string]string{
				"field": "name",
			},
		)
	}
	if user.Role == "" {
		user.Role = models.RoleStaff
	}
	if !models.ValidUserRole(user.Role) {
		return MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeIllegalValue,
			fmt.Sprintf("'%s' is not a valid user role", user.Role),
			map[string]string{
				"field": "role",
			},
		)
	}
	return nil
}

// Create creates a new user account
func (s *userService) Create(ctx context.Context, user *models.User, password string) (*models.User, error) {
	if err := validateUser(user); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeRequiredFieldMissing,
			"Password missing",
			map[string]string{
				"field": "password",
			},
		)
	}
	if err := user.SetPassword(password); err != nil {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeUnknown,
			"Error while hashing the password",
			err,
		)
	}
	if err := s.users.Create(user); err != nil {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while creating user",
			err,
		)
	}
	return user, nil
}

// Update updates an existing user account. An empty password leaves the stored hash untouched
func (s *userService) Update(ctx context.Context, user *models.User, password string) error {
	original, err := s.getUser(user.ID)
	if err != nil {
		return err
	}
	if err := validateUser(user); err != nil {
		return err
	}
	user.PasswordHash = original.PasswordHash
	user.CreatedAt = original.CreatedAt
	if password != "" {
		if err := user.SetPassword(password); err != nil {
			return MakeErrorWithData(
				http.StatusInternalServerError,
				ErrCodeUnknown,
				"Error while hashing the password",
				err,
			)
		}
	}
	if err := s.users.Update(user); err != nil {
		return MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			fmt.Sprintf("Error while updating user #%d", user.ID),
			err,
		)
	}
	return nil
}

// Delete removes a user account
func (s *userService) Delete(ctx context.Context, id uint) error {
	err := s.users.Delete(id)
	if err == repos.ErrEntityNotExisting {
		return MakeError(
			http.StatusNotFound,
			ErrCodeUserNotFound,
			fmt.Sprintf("User #%d does not exist", id),
		)
	}
	return err
}

// SetQualifications replaces the qualification assignment of one user
func (s *userService) SetQualifications(ctx context.Context, userID uint, qualificationIDs []uint) error {
	if _, err := s.getUser(userID); err != nil {
		return err
	}
	if err := s.users.SetQualifications(userID, qualificationIDs); err != nil {
		return MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			fmt.Sprintf("Error while assigning qualifications to user #%d", userID),
			err,
		)
	}
	return nil
}

// ListQualifications returns the full qualification catalog
func (s *userService) ListQualifications(ctx context.Context) ([]models.Qualification, error) {
	quals, err := s.users.ListQualifications()
	if err != nil {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while loading the qualification catalog",
			err,
		)
	}
	return quals, nil
}

// CreateQualification adds a new entry to the qualification catalog
func (s *userService) CreateQualification(ctx context.Context, q *models.Qualification) (*models.Qualification, error) {
	q.Name = strings.TrimSpace(q.Name)
	if q.Name == "" {
		return nil, MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeRequiredFieldMissing,
			"Qualification name missing",
			map[string]string{
				"field": "name",
			},
		)
	}
	if err := s.users.CreateQualification(q); err != nil {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while creating qualification",
			err,
		)
	}
	return q, nil
}

// DeleteQualification removes an entry from the qualification catalog
func (s *userService) DeleteQualification(ctx context.Context, id uint) error {
	err := s.users.DeleteQualification(id)
	if err == repos.ErrEntityNotExisting {
		return MakeError(
			http.StatusNotFound,
			ErrCodeQualificationNotFound,
			fmt.Sprintf("Qualification #%d does not exist", id),
		)
	}
	return err
}

// Invite creates an invitation token for the given email address and mails it out
func (s *userService) Invite(ctx context.Context, email string, role models.UserRole) (*models.Invitation, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeRequiredFieldMissing,
			"Email address missing",
			map[string]string{
				"field": "email",
			},
		)
	}
	if role == "" {
		role = models.RoleStaff
	}
	if !models.ValidUserRole(role) {
		return nil, MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeIllegalValue,
			fmt.Sprintf("'%s' is not a valid user role", role),
			map[string]string{
				"field": "role",
			},
		)
	}
	validDays := s.config.GetConfig().Booking.InvitationValidDays
	if validDays == 0 {
		validDays = 14
	}
	inv := &models.Invitation{
		Token:     uuid.NewString(),
		Email:     email,
		Role:      role,
		ExpiresAt: s.timeFunc().Add(time.Duration(validDays) * 24 * time.Hour),
	}
	if err := s.users.CreateInvitation(inv); err != nil {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while storing the invitation",
			err,
		)
	}
	s.webhook.SendMail(s.config.GetConfig().Webhooks.MailURL, notify.Mail{
		To:      email,
		Subject: "You have been invited to join the crew",
		Body: fmt.Sprintf(
			"Use the token %s to create your account. The invitation expires on %s.\n",
			inv.Token, inv.ExpiresAt.Format("02.01.2006"),
		),
	})
	s.logger.WithField(logging.FldUser, email).Info("Invitation created")
	return inv, nil
}

// ListInvitations returns all invitations including the redeemed ones
func (s *userService) ListInvitations(ctx context.Context) ([]models.Invitation, error) {
	invs, err := s.users.ListInvitations()
	if err != nil {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while loading invitations",
			err,
		)
	}
	return invs, nil
}

// Redeem turns an invitation into a staff account
func (s *userService) Redeem(ctx context.Context, token string, req *RedeemRequest) (*models.User, error) {
	inv, err := s.users.GetInvitation(token)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, MakeError(
				http.StatusNotFound,
				ErrCodeInvitationNotUsable,
				"This invitation does not exist",
			)
		}
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while loading the invitation",
			err,
		)
	}
	now := s.timeFunc()
	if !inv.Usable(now) {
		return nil, MakeError(
			http.StatusGone,
			ErrCodeInvitationNotUsable,
			"This invitation has expired or has already been redeemed",
		)
	}
	user := &models.User{
		Name:     req.Name,
		FullName: req.FullName,
		Email:    inv.Email,
		Role:     inv.Role,
	}
	created, err := s.Create(ctx, user, req.Password)
	if err != nil {
		return nil, err
	}
	if err := s.users.MarkInvitationRedeemed(token, now); err != nil {
		s.logger.WithError(err).Error("Failed to mark invitation as redeemed")
	}
	s.logger.WithField(logging.FldUser, created.ID).Info("Invitation redeemed - account created")
	return created, nil
}
