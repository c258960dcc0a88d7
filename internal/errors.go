package internal

const (
	// ErrCodeUnknown is the error code for unknown errors
	ErrCodeUnknown = "UNKNOWN_ERROR"
	// ErrCodeRepoError is returned when the request to a repo fails with an error
	ErrCodeRepoError = "STORAGE_QUERY_FAILED"
	// ErrCodeRequiredFieldMissing is returned when at least one required field has not been populated on an incoming
	// request
	ErrCodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	// ErrCodeIllegalJSON is returned when the request did not contain a valid JSON body
	ErrCodeIllegalJSON = "ILLEGAL_JSON_REQUEST"
	// ErrCodeIllegalValue is returned when any field in the transferred data does not validate for some reason
	ErrCodeIllegalValue = "ILLEGAL_VALUE"
	// ErrCodeInvalidUint is returned when an ID is required inside a request, but is not provided or in a wrong format
	ErrCodeInvalidUint = "INVALID_UINT"
	// ErrCodeEventNotFound is returned when an operation works on an event that does not exist
	ErrCodeEventNotFound = "EVENT_NOT_FOUND"
	// ErrCodeEventNotOpen is returned when a staff member tries to register for an event that is
	// cancelled or already over
	ErrCodeEventNotOpen = "EVENT_NOT_OPEN"
	// ErrCodeCategoryNotFound is returned when a registration references a staff category the
	// event does not list
	ErrCodeCategoryNotFound = "CATEGORY_NOT_FOUND"
	// ErrCodeCategoryFull is returned when write-time capacity checking is enabled and all slots
	// of the requested category are taken
	ErrCodeCategoryFull = "CATEGORY_FULL"
	// ErrCodeNotQualified is returned when the staff member does not hold all qualifications the
	// event requires for the requested category
	ErrCodeNotQualified = "NOT_QUALIFIED"
	// ErrCodeAlreadyRegistered is returned when the user already holds an active registration for
	// the event
	ErrCodeAlreadyRegistered = "ALREADY_REGISTERED"
	// ErrCodeRegistrationNotFound is returned when an operation works on a registration that does not exist
	ErrCodeRegistrationNotFound = "REGISTRATION_NOT_FOUND"
	// ErrCodeContractNotFound is returned when a contract completion callback references an
	// unknown or expired signing token
	ErrCodeContractNotFound = "CONTRACT_NOT_FOUND"
	// ErrCodeContactNotFound is returned when an operation works on a contact request that does not exist
	ErrCodeContactNotFound = "CONTACT_REQUEST_NOT_FOUND"
	// ErrCodeUserNotFound is returned when a referenced user does not exist
	ErrCodeUserNotFound = "USER_NOT_FOUND"
	// ErrCodeQualificationNotFound is returned when a referenced qualification does not exist
	ErrCodeQualificationNotFound = "QUALIFICATION_NOT_FOUND"
	// ErrCodeInvitationNotUsable is returned when an invitation token is unknown, expired or
	// already redeemed
	ErrCodeInvitationNotUsable = "INVITATION_NOT_USABLE"
	// ErrCodeLoginFailed is returned when the user fails to login for some reason
	ErrCodeLoginFailed = "LOGIN_FAILED"
	// ErrCodeNotLoggedIn is returned when the user tried to access an API that needs a logged-in user, but the user
	// has no authenticated session
	ErrCodeNotLoggedIn = "NOT_LOGGED_IN"
	// ErrCodeNotAllowed is returned when the logged-in user lacks the permissions for an operation
	ErrCodeNotAllowed = "NOT_ALLOWED"
)

// HTTPError is an error that contains information about the error message to return to the client
type HTTPError struct {
	message string
	code    string
	status  int
	data    interface{}
}

// MakeError creates a new HTTPError with the given contents
func MakeError(status int, code, message string) *HTTPError {
	return MakeErrorWithData(status, code, message, nil)
}

// MakeErrorWithData creates a new HTTPError with the given contents and an additional data element
func MakeErrorWithData(status int, code, message string, data interface{}) *HTTPError {
	return &HTTPError{message, code, status, data}
}

// Error implements the errorer interface
func (e *HTTPError) Error() string {
	return e.message
}

// Status returns the HTTP status that should be returned
func (e *HTTPError) Status() int {
	return e.status
}

// ErrorCode returns the machine-readable error code
func (e *HTTPError) ErrorCode() string {
	return e.code
}

// Data returns additional data about the error
func (e *HTTPError) Data() interface{} {
	return e.data
}
