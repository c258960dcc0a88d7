package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/eventworks/backstage/internal/ctxhelper"
	"github.com/eventworks/backstage/internal/log"
	"github.com/eventworks/backstage/internal/models"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/kardianos/osext"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const (
	apiBasePath = "/api"
)

// Defines an error that defines the HTTP status that should be returned
type httpStatuser interface {
	Status() int
}

// Defines an error that returns a machine-readable error code
type errorCoder interface {
	ErrorCode() string
}

// Defines an error that contains a data field with additional information
type dataBearer interface {
	Data() interface{}
}

type errorResponse struct {
	basicResponse
	// The error code
	Error   string      `json:"error"`
	Message string      `json:"errorMessage"`
	Details interface{} `json:"errorDetails,omitempty"`
}

// MakeHTTPHandler creates the main HTTP handler for the Backstage service
func MakeHTTPHandler(
	es EventService,
	rs RegistrationService,
	us UserService,
	cos ContactService,
	sServ SessionService,
	cs ConfigService,
	logger *logrus.Entry,
) http.Handler {
	r := mux.NewRouter()

	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(encodeError),
		httptransport.ServerBefore(makeContextInjector(logger)),
		httptransport.ServerBefore(makeSessionDecoder(sServ)),
	}

	// -- Event service --------------------------------
	{
		evEp := MakeEventEndpoints(es)

		// List
		r.Methods(http.MethodGet).Path(apiBasePath + "/events").Handler(httptransport.NewServer(
			evEp.List,
			decodeSearchRequest,
			encodeJSONResponse,
			options...,
		))

		// Get
		r.Methods(http.MethodGet).Path(apiBasePath + "/events/{id:[0-9]+}").Handler(httptransport.NewServer(
			evEp.Get,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Create
		r.Methods(http.MethodPost).Path(apiBasePath + "/events").Handler(httptransport.NewServer(
			evEp.Create,
			decodeEvent,
			encodeJSONResponse,
			options...,
		))

		// Update
		r.Methods(http.MethodPut).Path(apiBasePath + "/events/{id:[0-9]+}").Handler(httptransport.NewServer(
			evEp.Update,
			decodeEventUpdate,
			encodeJSONResponse,
			options...,
		))

		// Delete
		r.Methods(http.MethodDelete).Path(apiBasePath + "/events/{id:[0-9]+}").Handler(httptransport.NewServer(
			evEp.Delete,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Cancel
		r.Methods(http.MethodPost).Path(apiBasePath + "/events/{id:[0-9]+}/cancel").Handler(httptransport.NewServer(
			evEp.Cancel,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// ListStaffing
		r.Methods(http.MethodGet).Path(apiBasePath + "/staffing").Handler(httptransport.NewServer(
			evEp.ListStaffing,
			decodeStaffingWindow,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Registration service -------------------------
	{
		rEp := MakeRegistrationEndpoints(rs)

		// Register
		r.Methods(http.MethodPost).Path(apiBasePath + "/registrations").Handler(httptransport.NewServer(
			rEp.Register,
			decodeRegisterRequest,
			encodeJSONResponse,
			options...,
		))

		// Unregister
		r.Methods(http.MethodDelete).Path(apiBasePath + "/registrations/{id:[0-9]+}").Handler(httptransport.NewServer(
			rEp.Unregister,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// ListMine
		r.Methods(http.MethodGet).Path(apiBasePath + "/registrations/mine").Handler(httptransport.NewServer(
			rEp.ListMine,
			decodeNilRequest,
			encodeJSONResponse,
			options...,
		))

		// ListForEvent
		r.Methods(http.MethodGet).Path(apiBasePath + "/events/{id:[0-9]+}/registrations").Handler(httptransport.NewServer(
			rEp.ListForEvent,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// SetStatus
		r.Methods(http.MethodPut).Path(apiBasePath + "/registrations/{id:[0-9]+}/status").Handler(httptransport.NewServer(
			rEp.SetStatus,
			decodeRegistrationStatusRequest,
			encodeJSONResponse,
			options...,
		))

		// CompleteContract - called by the contract collaborator, not by a browser session
		r.Methods(http.MethodPost).Path(apiBasePath + "/contracts/{token}/complete").Handler(httptransport.NewServer(
			rEp.CompleteContract,
			decodeTokenFromPath,
			encodeJSONResponse,
			options...,
		))
	}

	// -- User service ---------------------------------
	{
		uEp := MakeUserEndpoints(us)

		// List
		r.Methods(http.MethodGet).Path(apiBasePath + "/users").Handler(httptransport.NewServer(
			uEp.List,
			decodeSearchRequest,
			encodeJSONResponse,
			options...,
		))

		// Get
		r.Methods(http.MethodGet).Path(apiBasePath + "/users/{id:[0-9]+}").Handler(httptransport.NewServer(
			uEp.Get,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Create
		r.Methods(http.MethodPost).Path(apiBasePath + "/users").Handler(httptransport.NewServer(
			uEp.Create,
			decodeUserRequest,
			encodeJSONResponse,
			options...,
		))

		// Update
		r.Methods(http.MethodPut).Path(apiBasePath + "/users/{id:[0-9]+}").Handler(httptransport.NewServer(
			uEp.Update,
			decodeUserUpdateRequest,
			encodeJSONResponse,
			options...,
		))

		// Delete
		r.Methods(http.MethodDelete).Path(apiBasePath + "/users/{id:[0-9]+}").Handler(httptransport.NewServer(
			uEp.Delete,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// SetQualifications
		r.Methods(http.MethodPut).Path(apiBasePath + "/users/{id:[0-9]+}/qualifications").Handler(httptransport.NewServer(
			uEp.SetQualifications,
			decodeQualificationAssignment,
			encodeJSONResponse,
			options...,
		))

		// ListQualifications
		r.Methods(http.MethodGet).Path(apiBasePath + "/qualifications").Handler(httptransport.NewServer(
			uEp.ListQualifications,
			decodeNilRequest,
			encodeJSONResponse,
			options...,
		))

		// CreateQualification
		r.Methods(http.MethodPost).Path(apiBasePath + "/qualifications").Handler(httptransport.NewServer(
			uEp.CreateQualification,
			decodeQualification,
			encodeJSONResponse,
			options...,
		))

		// DeleteQualification
		r.Methods(http.MethodDelete).Path(apiBasePath + "/qualifications/{id:[0-9]+}").Handler(httptransport.NewServer(
			uEp.DeleteQualification,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Invite
		r.Methods(http.MethodPost).Path(apiBasePath + "/invitations").Handler(httptransport.NewServer(
			uEp.Invite,
			decodeInviteRequest,
			encodeJSONResponse,
			options...,
		))

		// ListInvitations
		r.Methods(http.MethodGet).Path(apiBasePath + "/invitations").Handler(httptransport.NewServer(
			uEp.ListInvitations,
			decodeNilRequest,
			encodeJSONResponse,
			options...,
		))

		// Redeem
		r.Methods(http.MethodPost).Path(apiBasePath + "/invitations/{token}/redeem").Handler(httptransport.NewServer(
			uEp.Redeem,
			decodeRedeemRequest,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Contact service ------------------------------
	{
		cEp := MakeContactEndpoints(cos)

		// Submit - the public quote form posts here
		r.Methods(http.MethodPost).Path(apiBasePath + "/contact").Handler(httptransport.NewServer(
			cEp.Submit,
			decodeContactRequest,
			encodeJSONResponse,
			options...,
		))

		// List
		r.Methods(http.MethodGet).Path(apiBasePath + "/contactRequests").Handler(httptransport.NewServer(
			cEp.List,
			decodeSearchRequest,
			encodeJSONResponse,
			options...,
		))

		// Get
		r.Methods(http.MethodGet).Path(apiBasePath + "/contactRequests/{id:[0-9]+}").Handler(httptransport.NewServer(
			cEp.Get,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Update
		r.Methods(http.MethodPut).Path(apiBasePath + "/contactRequests/{id:[0-9]+}").Handler(httptransport.NewServer(
			cEp.Update,
			decodeContactUpdateRequest,
			encodeJSONResponse,
			options...,
		))

		// Delete
		r.Methods(http.MethodDelete).Path(apiBasePath + "/contactRequests/{id:[0-9]+}").Handler(httptransport.NewServer(
			cEp.Delete,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Config service -------------------------------
	{
		configEndpoints := MakeConfigEndpoints(cs)

		// GetBookingSettings
		r.Methods(http.MethodGet).Path(apiBasePath + "/config/booking").Handler(httptransport.NewServer(
			configEndpoints.GetBookingSettings,
			decodeNilRequest,
			encodeJSONResponse,
			options...,
		))

		// UpdateBookingSettings
		r.Methods(http.MethodPut).Path(apiBasePath + "/config/booking").Handler(httptransport.NewServer(
			configEndpoints.UpdateBookingSettings,
			decodeBookingSettings,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Session Service ------------------------------
	{
		sEp := MakeSessionEndpoints(sServ)

		// Login
		r.Methods(http.MethodPost).Path(apiBasePath + "/login").Handler(httptransport.NewServer(
			sEp.Login,
			decodeLoginRequest,
			encodeJSONResponse,
			options...,
		))

		// Logout
		r.Methods(http.MethodPost).Path(apiBasePath + "/logout").Handler(httptransport.NewServer(
			sEp.Logout,
			decodeToken,
			encodeJSONResponse,
			options...,
		))

		// WhoAmI
		r.Methods(http.MethodGet).Path(apiBasePath + "/whoami").Handler(httptransport.NewServer(
			sEp.WhoAmI,
			decodeToken,
			encodeJSONResponse,
			options...,
		))
	}

	// Simple alive answer for checking if HTTP can be reached
	r.Methods(http.MethodGet).Path("/alive").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		data := map[string]bool{"ok": true}
		json.NewEncoder(w).Encode(data)
	})

	// Plain file service for the UI serving everything from the "ui" folder right beside the application executable
	execDir, err := osext.ExecutableFolder()
	if err != nil {
		panic(err)
	}
	uiDir := filepath.Join(execDir, "ui")
	r.Methods(http.MethodGet).PathPrefix("/").Handler(http.FileServer(http.Dir(uiDir)))

	return r
}

// decodeNilRequest just does nothing with the request. It is used for endpoints that don't need anything to be passed
func decodeNilRequest(_ context.Context, r *http.Request) (request interface{}, err error) {
	return nil, nil
}

// decodeLoginRequest decodes a login request from the JSON body
func decodeLoginRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req loginRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		return nil, MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalJSON,
			fmt.Sprintf("Failed to decode JSON body: %v", err),
		)
	}
	return req, nil
}

// decodeToken gets the token from the call's context
func decodeToken(ctx context.Context, r *http.Request) (request interface{}, err error) {
	session := ctxhelper.Session(ctx)
	if session == nil {
		return nil, MakeError(
			http.StatusBadRequest,
			ErrCodeNotLoggedIn,
			"You need an active session for this operation",
		)
	}
	return session.ID, nil
}

// decodePaginationRequest reads the pagination information from the request's query variables
func decodePaginationRequest(_ context.Context, r *http.Request) (request interface{}, err error) {
	val := r.URL.Query()
	pag := Pagination{
		Limit: 50,
	}
	if i, err := strconv.ParseUint(val.Get("offset"), 10, 64); err == nil {
		pag.Offset = uint(i)
	}
	if i, err := strconv.ParseUint(val.Get("limit"), 10, 64); err == nil {
		pag.Limit = uint(i)
	}
	return pag, nil
}

// decodeSearchRequest decodes the parameters of a search by checking the GET variables "search", "limit" and "offset"
func decodeSearchRequest(ctx context.Context, r *http.Request) (request interface{}, err error) {
	val := r.URL.Query()
	pag, _ := decodePaginationRequest(ctx, r)
	search := Search{
		Search:     val.Get("search"),
		Pagination: pag.(Pagination),
	}
	return search, nil
}

// decodeStaffingWindow reads the requested time window from the "window" query variable
func decodeStaffingWindow(_ context.Context, r *http.Request) (interface{}, error) {
	window := StaffingWindow(r.URL.Query().Get("window"))
	switch window {
	case "":
		return WindowUpcoming, nil
	case WindowUpcoming, WindowMonth:
		return window, nil
	}
	return nil, MakeError(
		http.StatusBadRequest,
		ErrCodeIllegalValue,
		fmt.Sprintf("'%s' is not a valid staffing window", window),
	)
}

// decodeEvent tries to load an event object from the provided HTTP request's body
func decodeEvent(_ context.Context, r *http.Request) (interface{}, error) {
	var ev models.Event
	err := json.NewDecoder(r.Body).Decode(&ev)
	if err != nil {
		return nil, MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalJSON,
			fmt.Sprintf("Failed to decode JSON body: %v", err),
		)
	}
	return ev, nil
}

// Decodes an event from an update request where the ID of the event is in the path
func decodeEventUpdate(ctx context.Context, r *http.Request) (interface{}, error) {
	ev, err := decodeEvent(ctx, r)
	if err != nil {
		return nil, err
	}
	id, err := decodeIDFromPath(ctx, r)
	if err != nil {
		return nil, err
	}
	ret := ev.(models.Event)
	ret.ID = id.(uint)
	return ret, nil
}

// decodeRegisterRequest reads the event and staff category to sign up for from the JSON body
func decodeRegisterRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req registerRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		return nil, MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalJSON,
			fmt.Sprintf("Failed to decode JSON body: %v", err),
		)
	}
	return req, nil
}

// decodeRegistrationStatusRequest reads the new status from the JSON body and the registration ID from the path
func decodeRegistrationStatusRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	var req registrationStatusRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		return nil, MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalJSON,
			fmt.Sprintf("Failed to decode JSON body: %v", err),
		)
	}
	id, err := getUintFromPath("id", r)
	if err != nil {
		return nil, err
	}
	req.ID = id
	return req, nil
}

// decodeUserRequest reads a user and the accompanying password from the JSON body
func decodeUserRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req userRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		return nil, MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalJSON,
			fmt.Sprintf("Failed to decode JSON body: %v", err),
		)
	}
	return req, nil
}

// Decodes a user from an update request where the ID of the user is in the path
func decodeUserUpdateRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	tmp, err := decodeUserRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	id, err := getUintFromPath("id", r)
	if err != nil {
		return nil, err
	}
	ret := tmp.(userRequest)
	ret.User.ID = id
	return ret, nil
}

// decodeQualificationAssignment reads the qualification IDs from the JSON body and the user ID from the path
func decodeQualificationAssignment(_ context.Context, r *http.Request) (interface{}, error) {
	var req qualificationAssignment
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		return nil, MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalJSON,
			fmt.Sprintf("Failed to decode JSON body: %v", err),
		)
	}
	id, err := getUintFromPath("id", r)
	if err != nil {
		return nil, err
	}
	req.UserID = id
	return req, nil
}

// decodeQualification reads a qualification catalog entry from the JSON body
func decodeQualification(_ context.Context, r *http.Request) (interface{}, error) {
	var q models.Qualification
	err := json.NewDecoder(r.Body).Decode(&q)
	if err != nil {
		return nil, MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalJSON,
			fmt.Sprintf("Failed to decode JSON body: %v", err),
		)
	}
	return q, nil
}

// decodeInviteRequest reads an invitation request from the JSON body
func decodeInviteRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req inviteRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		return nil, MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalJSON,
			fmt.Sprintf("Failed to decode JSON body: %v", err),
		)
	}
	return req, nil
}

// decodeRedeemRequest reads the account data from the JSON body and the invitation token from the path
func decodeRedeemRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req redeemRequest
	err := json.NewDecoder(r.Body).Decode(&req.RedeemRequest)
	if err != nil {
		return nil, MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalJSON,
			fmt.Sprintf("Failed to decode JSON body: %v", err),
		)
	}
	vars := mux.Vars(r)
	token, ok := vars["token"]
	if !ok || strings.TrimSpace(token) == "" {
		return nil, MakeError(http.StatusBadRequest, ErrCodeRequiredFieldMissing, "Missing invitation token")
	}
	req.Token = token
	return req, nil
}

// decodeContactRequest reads a contact request from the JSON body
func decodeContactRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req models.ContactRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		return nil, MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalJSON,
			fmt.Sprintf("Failed to decode JSON body: %v", err),
		)
	}
	return req, nil
}

// Decodes a contact request from an update request where its ID is in the path
func decodeContactUpdateRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	tmp, err := decodeContactRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	id, err := getUintFromPath("id", r)
	if err != nil {
		return nil, err
	}
	ret := tmp.(models.ContactRequest)
	ret.ID = id
	return ret, nil
}

// decodeBookingSettings reads the booking configuration section from the JSON body
func decodeBookingSettings(_ context.Context, r *http.Request) (interface{}, error) {
	var settings models.BookingConfig
	err := json.NewDecoder(r.Body).Decode(&settings)
	if err != nil {
		return nil, MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalJSON,
			fmt.Sprintf("Failed to decode JSON body: %v", err),
		)
	}
	return settings, nil
}

// decodeTokenFromPath reads a string token from the "token" path variable
func decodeTokenFromPath(_ context.Context, r *http.Request) (interface{}, error) {
	vars := mux.Vars(r)
	token, ok := vars["token"]
	if !ok || strings.TrimSpace(token) == "" {
		return nil, MakeError(http.StatusBadRequest, ErrCodeRequiredFieldMissing, "Missing token")
	}
	return token, nil
}

// getUintFromPath is a helper function that gets a uint from the given path variable
func getUintFromPath(varname string, r *http.Request) (uint, error) {
	errmsg := fmt.Sprintf("Value for '%s' is no valid unsigned integer", varname)
	vars := mux.Vars(r)
	str, ok := vars[varname]
	if !ok {
		return 0, MakeError(http.StatusBadRequest, ErrCodeInvalidUint, errmsg)
	}
	id, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return 0, MakeError(http.StatusBadRequest, ErrCodeInvalidUint, errmsg)
	}
	return uint(id), nil
}

// Decodes an ID from the "id" path variable provided by GoRilla
func decodeIDFromPath(ctx context.Context, r *http.Request) (interface{}, error) {
	return getUintFromPath("id", r)
}

// Encodes a typical JSON response
func encodeJSONResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(response)
}

// Builds an error response based on the incoming error
func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	if err == nil {
		panic("encodeError with nil error")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if st, ok := err.(httpStatuser); ok {
		w.WriteHeader(st.Status())
	} else {
		w.WriteHeader(http.StatusInternalServerError)
	}
	ret := errorResponse{
		basicResponse: basicResponse{false, nil},
		Message:       err.Error(),
		Error:         ErrCodeUnknown,
	}
	if cd, ok := err.(errorCoder); ok {
		ret.Error = cd.ErrorCode()
	}
	if db, ok := err.(dataBearer); ok {
		if data := db.Data(); data != nil {
			if err, ok := data.(error); ok {
				ret.Details = err.Error()
			} else {
				ret.Details = data
			}
		}
	}
	json.NewEncoder(w).Encode(&ret)
}

// makeSessionDecoder returns a function that is used in every HTTP call to decode the session used, if a session
// token is sent by the client
func makeSessionDecoder(s SessionService) httptransport.RequestFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		token := strings.TrimSpace(r.Header.Get("token"))
		logger := ctxhelper.Logger(ctx)
		if token != "" {
			// Try to load the session's data
			sess, user, err := s.GetContents(ctx, token, true)
			if err != nil {
				logger.WithError(err).WithField(log.FldSession, token).Error("Failed to retrieve session information")
				return ctx
			}
			if sess == nil || user == nil {
				// Nobody logged in
				return ctx
			}
			ctx = context.WithValue(ctx, ctxhelper.KeySession, *sess)
			ctx = context.WithValue(ctx, ctxhelper.KeyUser, *user)
			ctx = context.WithValue(ctx, ctxhelper.KeyLogger, logger.WithFields(logrus.Fields{
				log.FldSession: sess.ID,
				log.FldUser:    user.ID,
			}))
		}
		return ctx
	}
}

func makeContextInjector(logger *logrus.Entry) httptransport.RequestFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		return context.WithValue(ctx, ctxhelper.KeyLogger, logger)
	}
}
