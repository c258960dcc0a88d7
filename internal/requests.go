package internal

// -- Request data -----------------------------------------------------------------------------------------------------

// Pagination describes a request that uses paging data to retrieve only a subset of the full result
type Pagination struct {
	// Position in the resultset to start the returned result at
	Offset uint
	// Number of items to return
	Limit uint
}

// Search describes a typical search request with a search term and pagination information
type Search struct {
	Pagination
	// The string to search for
	Search string
}

// StaffingWindow selects the time window for the staffing event list
type StaffingWindow string

const (
	// WindowUpcoming lists events starting now or later
	WindowUpcoming = StaffingWindow("upcoming")
	// WindowMonth lists events from the first day of the current month onwards
	WindowMonth = StaffingWindow("month")
)
