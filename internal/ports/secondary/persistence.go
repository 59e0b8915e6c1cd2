package secondary

import "context"

// RunRepository defines the secondary port for audit run persistence.
type RunRepository interface {
	// Create persists a finished run together with its per-check results.
	Create(ctx context.Context, run *RunRecord) error

	// GetByID retrieves a run by its ID.
	GetByID(ctx context.Context, id string) (*RunRecord, error)

	// List retrieves runs matching the given filters, newest first.
	List(ctx context.Context, filters RunFilters) ([]*RunRecord, error)

	// GetNextID returns the next available run ID.
	GetNextID(ctx context.Context) (string, error)
}

// RunRecord represents an audit run as stored in persistence.
type RunRecord struct {
	ID         string
	Domain     string
	NodeCount  int
	OK         bool
	ReportJSON string
	StartedAt  string
	FinishedAt string
	Checks     []*CheckResultRecord
}

// CheckResultRecord is the stored outcome of one check in a run.
// MissingOK and DuplicatesOK are nil when the analysis does not apply.
type CheckResultRecord struct {
	RunID        string
	CheckName    string
	DisplayName  string
	ItemCountOK  bool
	MissingOK    *bool
	DuplicatesOK *bool
	Errors       string
}

// RunFilters contains filter options for querying runs.
type RunFilters struct {
	Domain     string
	FailedOnly bool
	Limit      int
}
