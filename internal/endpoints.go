package internal

import (
	"fmt"

	"github.com/eventworks/backstage/internal/models"
	"github.com/go-kit/kit/endpoint"
	"golang.org/x/net/context"
)

// EventEndpoints is a collection of endpoints for working with the event service
type EventEndpoints struct {
	List         endpoint.Endpoint
	Get          endpoint.Endpoint
	Create       endpoint.Endpoint
	Update       endpoint.Endpoint
	Delete       endpoint.Endpoint
	Cancel       endpoint.Endpoint
	ListStaffing endpoint.Endpoint
}

// RegistrationEndpoints is a collection of endpooints for working with the registration service
type RegistrationEndpoints struct {
	Register         endpoint.Endpoint
	CompleteContract endpoint.Endpoint
	Unregister       endpoint.Endpoint
	ListMine         endpoint.Endpoint
	ListForEvent     endpoint.Endpoint
	SetStatus        endpoint.Endpoint
}

// SessionEndpoints is a collection of endpoints for working with the session service
type SessionEndpoints struct {
	Login  endpoint.Endpoint
	Logout endpoint.Endpoint
	WhoAmI endpoint.Endpoint
}

// UserEndpoints is a collection of endpoints for working with the user service
type UserEndpoints struct {
	List                endpoint.Endpoint
	Get                 endpoint.Endpoint
	Create              endpoint.Endpoint
	Update              endpoint.Endpoint
	Delete              endpoint.Endpoint
	SetQualifications   endpoint.Endpoint
	ListQualifications  endpoint.Endpoint
	CreateQualification endpoint.Endpoint
	DeleteQualification endpoint.Endpoint
	Invite              endpoint.Endpoint
	ListInvitations     endpoint.Endpoint
	Redeem              endpoint.Endpoint
}

// ContactEndpoints is a collection of endpoints for working with the contact request service
type ContactEndpoints struct {
	Submit endpoint.Endpoint
	List   endpoint.Endpoint
	Get    endpoint.Endpoint
	Update endpoint.Endpoint
	Delete endpoint.Endpoint
}

// ConfigEndpoints is a collection of endpoints for changing the system's configuration
type ConfigEndpoints struct {
	GetBookingSettings    endpoint.Endpoint
	UpdateBookingSettings endpoint.Endpoint
}

// The base for all responses which always contains an "ok" property to show if the call was successful and a
// data element containing the result of the request
type basicResponse struct {
	OK   bool        `json:"ok"`
	Data interface{} `json:"data,omitempty"`
}

type pagingResponse struct {
	Rows uint        `json:"rows"`
	List interface{} `json:"list"`
}

// A request made when logging in
type loginRequest struct {
	User string `json:"user"`
	Pass string `json:"password"`
}

// A request for signing up for one staff category of an event
type registerRequest struct {
	EventID  uint   `json:"eventId"`
	Category string `json:"category"`
}

// A request for changing the status of a registration
type registrationStatusRequest struct {
	ID     uint
	Status models.RegistrationStatus `json:"status"`
}

// A request carrying a user and the new password - the password never travels inside the user model
type userRequest struct {
	models.User
	Password string `json:"password"`
}

// A request for replacing the qualification assignment of one user
type qualificationAssignment struct {
	UserID           uint
	QualificationIDs []uint `json:"qualificationIds"`
}

// A request for inviting a new staff member
type inviteRequest struct {
	Email string          `json:"email"`
	Role  models.UserRole `json:"role"`
}

// A request for redeeming an invitation token
type redeemRequest struct {
	Token string
	RedeemRequest
}

// -- Events -----------------------------------------------------------------------------------------------------------

// MakeEventEndpoints builds the endpoints needed to communicate with the Event Service
func MakeEventEndpoints(s EventService) EventEndpoints {
	return EventEndpoints{
		List:         EnsureAdmin(makeListEventsEndpoint(s)),
		Get:          EnsureUserLoggedIn(makeGetEventEndpoint(s)),
		Create:       EnsureAdmin(makeCreateEventEndpoint(s)),
		Update:       EnsureAdmin(makeUpdateEventEndpoint(s)),
		Delete:       EnsureAdmin(makeDeleteEventEndpoint(s)),
		Cancel:       EnsureAdmin(makeCancelEventEndpoint(s)),
		ListStaffing: EnsureUserLoggedIn(makeListStaffingEndpoint(s)),
	}
}

func makeListEventsEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		se, ok := request.(Search)
		if !ok {
			return nil, fmt.Errorf("illegal search parameter")
		}
		list, numRows, err := s.List(ctx, &se)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, pagingResponse{numRows, list}}, nil
	}
}

func makeGetEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(uint)
		if !ok {
			return nil, fmt.Errorf("illegal event ID")
		}
		ev, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, ev}, nil
	}
}

func makeCreateEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		event, ok := request.(models.Event)
		if !ok {
			return nil, fmt.Errorf("illegal event parameter")
		}
		ev, err := s.Create(ctx, &event)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, ev}, nil
	}
}

func makeUpdateEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		event, ok := request.(models.Event)
		if !ok {
			return nil, fmt.Errorf("illegal event parameter")
		}
		err := s.Update(ctx, &event)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeDeleteEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(uint)
		if !ok {
			return nil, fmt.Errorf("illegal event ID")
		}
		err := s.Delete(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeCancelEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(uint)
		if !ok {
			return nil, fmt.Errorf("illegal event ID")
		}
		err := s.Cancel(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeListStaffingEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		window, ok := request.(StaffingWindow)
		if !ok {
			return nil, fmt.Errorf("illegal staffing window")
		}
		list, err := s.ListStaffing(ctx, window)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, list}, nil
	}
}

// -- Registrations ----------------------------------------------------------------------------------------------------

// MakeRegistrationEndpoints builds the endpoints needed to communicate with the Registration Service
func MakeRegistrationEndpoints(s RegistrationService) RegistrationEndpoints {
	return RegistrationEndpoints{
		Register: EnsureUserLoggedIn(makeRegisterEndpoint(s)),
		// The contract collaborator calls back with the token it received - there is no session
		CompleteContract: makeCompleteContractEndpoint(s),
		Unregister:       EnsureUserLoggedIn(makeUnregisterEndpoint(s)),
		ListMine:         EnsureUserLoggedIn(makeListMineEndpoint(s)),
		ListForEvent:     EnsureAdmin(makeListForEventEndpoint(s)),
		SetStatus:        EnsureAdmin(makeSetRegistrationStatusEndpoint(s)),
	}
}

func makeRegisterEndpoint(s RegistrationService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(registerRequest)
		if !ok {
			return nil, fmt.Errorf("illegal registration request")
		}
		res, err := s.Register(ctx, req.EventID, req.Category)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, res}, nil
	}
}

func makeCompleteContractEndpoint(s RegistrationService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		token, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal contract token")
		}
		reg, err := s.CompleteContract(ctx, token)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, reg}, nil
	}
}

func makeUnregisterEndpoint(s RegistrationService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(uint)
		if !ok {
			return nil, fmt.Errorf("illegal registration ID")
		}
		err := s.Unregister(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeListMineEndpoint(s RegistrationService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		list, err := s.ListMine(ctx)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, list}, nil
	}
}

func makeListForEventEndpoint(s RegistrationService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		eventID, ok := request.(uint)
		if !ok {
			return nil, fmt.Errorf("illegal event ID")
		}
		list, err := s.ListForEvent(ctx, eventID)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, list}, nil
	}
}

func makeSetRegistrationStatusEndpoint(s RegistrationService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(registrationStatusRequest)
		if !ok {
			return nil, fmt.Errorf("illegal status request")
		}
		if err := s.SetStatus(ctx, req.ID, req.Status); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

// -- Sessions ---------------------------------------------------------------------------------------------------------

// MakeSessionEndpoints builds the endpoints needed to communicate with the Session Service
func MakeSessionEndpoints(s SessionService) SessionEndpoints {
	return SessionEndpoints{
		Login:  makeLoginEndpoint(s),
		Logout: makeLogoutEndpoint(s),
		WhoAmI: makeWhoAmIEndpoint(s),
	}
}

func makeLoginEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		se, ok := request.(loginRequest)
		if !ok {
			return nil, fmt.Errorf("illegal login request")
		}
		si, err := s.Login(ctx, se.User, se.Pass)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, si}, nil
	}
}

func makeLogoutEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal session token")
		}
		err := s.Logout(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeWhoAmIEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal session token")
		}
		si, err := s.WhoAmI(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, si}, nil
	}
}

// -- Users ------------------------------------------------------------------------------------------------------------

// MakeUserEndpoints builds the endpoints needed to communicate with the User Service
func MakeUserEndpoints(s UserService) UserEndpoints {
	return UserEndpoints{
		List:                EnsureAdmin(makeListUsersEndpoint(s)),
		Get:                 EnsureAdmin(makeGetUserEndpoint(s)),
		Create:              EnsureAdmin(makeCreateUserEndpoint(s)),
		Update:              EnsureAdmin(makeUpdateUserEndpoint(s)),
		Delete:              EnsureAdmin(makeDeleteUserEndpoint(s)),
		SetQualifications:   EnsureAdmin(makeSetQualificationsEndpoint(s)),
		ListQualifications:  EnsureUserLoggedIn(makeListQualificationsEndpoint(s)),
		CreateQualification: EnsureAdmin(makeCreateQualificationEndpoint(s)),
		DeleteQualification: EnsureAdmin(makeDeleteQualificationEndpoint(s)),
		Invite:              EnsureAdmin(makeInviteEndpoint(s)),
		ListInvitations:     EnsureAdmin(makeListInvitationsEndpoint(s)),
		// Redeeming an invitation is how new accounts come into existence - it cannot require one
		Redeem: makeRedeemEndpoint(s),
	}
}

func makeListUsersEndpoint(s UserService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		se, ok := request.(Search)
		if !ok {
			return nil, fmt.Errorf("illegal search parameter")
		}
		list, numRows, err := s.List(ctx, &se)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, pagingResponse{numRows, list}}, nil
	}
}

func makeGetUserEndpoint(s UserService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(uint)
		if !ok {
			return nil, fmt.Errorf("illegal user ID")
		}
		user, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, user}, nil
	}
}

func makeCreateUserEndpoint(s UserService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(userRequest)
		if !ok {
			return nil, fmt.Errorf("illegal user parameter")
		}
		user, err := s.Create(ctx, &req.User, req.Password)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, user}, nil
	}
}

func makeUpdateUserEndpoint(s UserService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(userRequest)
		if !ok {
			return nil, fmt.Errorf("illegal user parameter")
		}
		if err := s.Update(ctx, &req.User, req.Password); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeDeleteUserEndpoint(s UserService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(uint)
		if !ok {
			return nil, fmt.Errorf("illegal user ID")
		}
		if err := s.Delete(ctx, id); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeSetQualificationsEndpoint(s UserService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(qualificationAssignment)
		if !ok {
			return nil, fmt.Errorf("illegal qualification assignment")
		}
		if err := s.SetQualifications(ctx, req.UserID, req.QualificationIDs); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeListQualificationsEndpoint(s UserService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		list, err := s.ListQualifications(ctx)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, list}, nil
	}
}

func makeCreateQualificationEndpoint(s UserService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		q, ok := request.(models.Qualification)
		if !ok {
			return nil, fmt.Errorf("illegal qualification parameter")
		}
		created, err := s.CreateQualification(ctx, &q)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, created}, nil
	}
}

func makeDeleteQualificationEndpoint(s UserService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(uint)
		if !ok {
			return nil, fmt.Errorf("illegal qualification ID")
		}
		if err := s.DeleteQualification(ctx, id); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeInviteEndpoint(s UserService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(inviteRequest)
		if !ok {
			return nil, fmt.Errorf("illegal invitation request")
		}
		inv, err := s.Invite(ctx, req.Email, req.Role)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, inv}, nil
	}
}

func makeListInvitationsEndpoint(s UserService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		list, err := s.ListInvitations(ctx)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, list}, nil
	}
}

func makeRedeemEndpoint(s UserService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(redeemRequest)
		if !ok {
			return nil, fmt.Errorf("illegal redemption request")
		}
		user, err := s.Redeem(ctx, req.Token, &req.RedeemRequest)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, user}, nil
	}
}

// -- Contact requests -------------------------------------------------------------------------------------------------

// MakeContactEndpoints builds the endpoints needed to communicate with the Contact Service
func MakeContactEndpoints(s ContactService) ContactEndpoints {
	return ContactEndpoints{
		// The quote form on the website is the one write anyone may perform
		Submit: makeSubmitContactEndpoint(s),
		List:   EnsureAdmin(makeListContactsEndpoint(s)),
		Get:    EnsureAdmin(makeGetContactEndpoint(s)),
		Update: EnsureAdmin(makeUpdateContactEndpoint(s)),
		Delete: EnsureAdmin(makeDeleteContactEndpoint(s)),
	}
}

func makeSubmitContactEndpoint(s ContactService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(models.ContactRequest)
		if !ok {
			return nil, fmt.Errorf("illegal contact request")
		}
		created, err := s.Submit(ctx, &req)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, created}, nil
	}
}

func makeListContactsEndpoint(s ContactService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		se, ok := request.(Search)
		if !ok {
			return nil, fmt.Errorf("illegal search parameter")
		}
		list, numRows, err := s.List(ctx, &se)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, pagingResponse{numRows, list}}, nil
	}
}

func makeGetContactEndpoint(s ContactService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(uint)
		if !ok {
			return nil, fmt.Errorf("illegal contact request ID")
		}
		req, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, req}, nil
	}
}

func makeUpdateContactEndpoint(s ContactService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(models.ContactRequest)
		if !ok {
			return nil, fmt.Errorf("illegal contact request")
		}
		if err := s.Update(ctx, &req); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeDeleteContactEndpoint(s ContactService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(uint)
		if !ok {
			return nil, fmt.Errorf("illegal contact request ID")
		}
		if err := s.Delete(ctx, id); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

// -- Configuration ----------------------------------------------------------------------------------------------------

// MakeConfigEndpoints creates the endpoints needed to use the configuration service
func MakeConfigEndpoints(s ConfigService) ConfigEndpoints {
	return ConfigEndpoints{
		GetBookingSettings:    EnsureAdmin(makeGetBookingSettingsEndpoint(s)),
		UpdateBookingSettings: EnsureAdmin(makeUpdateBookingSettingsEndpoint(s)),
	}
}

func makeGetBookingSettingsEndpoint(s ConfigService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		return basicResponse{true, s.BookingSettings(ctx)}, nil
	}
}

func makeUpdateBookingSettingsEndpoint(s ConfigService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		settings, ok := request.(models.BookingConfig)
		if !ok {
			return nil, fmt.Errorf("illegal settings parameter")
		}
		if err := s.UpdateBookingSettings(ctx, settings); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}
