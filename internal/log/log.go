package log

const (
	// FldFile is the name of the log field for storing file name information
	FldFile = "file"
	// FldPath is the name of the log field for storing path name information
	FldPath = "path"
	// FldTransport is the name of the log field for storing a transport name
	FldTransport = "transport"
	// FldSession is the name of the log field for storing the session ID
	FldSession = "session"
	// FldUser is the name of the log field for storing the ID of the currently active user
	FldUser = "user"
	// FldEvent is the name of the log field for storing an event ID
	FldEvent = "event"
	// FldCategory is the name of the log field for storing a staff category
	FldCategory = "category"
	// FldRegistration is the name of the log field for storing a registration ID
	FldRegistration = "registration"
	// FldContract is the name of the log field for storing a contract signing token
	FldContract = "contract"
	// FldVersion is the version number of the application
	FldVersion = "ver"
	// FldURL is the target URL of an outgoing webhook call
	FldURL = "url"
	// FldID is the ID of an entity used in the log entry
	FldID = "id"
	// FldSearch is a search term used in a search
	FldSearch = "search"
	// FldOffset is the requested offset value in a search
	FldOffset = "offset"
	// FldLimit is the requested result limit in a search
	FldLimit = "limit"
)
