// Package primary defines the primary ports (driving adapters) for the application.
package primary

import (
	"context"

	"github.com/example/ipacheck/internal/core/consistency"
)

// AuditService defines the primary port for consistency audits.
type AuditService interface {
	// RunAudit collects every check from every node and evaluates them.
	// A node that cannot be reached never aborts the run; its results are recorded as unavailable.
	RunAudit(ctx context.Context, req AuditRequest) (*AuditRun, error)

	// GetRun retrieves a stored run by ID.
	GetRun(ctx context.Context, runID string) (*AuditRun, error)

	// ListRuns lists stored runs.
	ListRuns(ctx context.Context, filters RunFilters) ([]*RunSummary, error)
}

// AuditRequest contains parameters for an audit run.
type AuditRequest struct {
	Domain string
	Hosts  []string // empty means discover nodes for Domain
	Checks []string // empty means the whole catalog
	Save   bool     // persist the run in history
}

// AuditRun is a finished audit at the port boundary.
type AuditRun struct {
	ID         string // empty when the run was not saved
	Domain     string
	StartedAt  string
	FinishedAt string
	Report     consistency.ConsistencyReport
	// EvaluationErrors lists per-check problems that made a status fail loudly.
	EvaluationErrors []string
}

// RunSummary is a stored run without its full report.
type RunSummary struct {
	ID         string
	Domain     string
	NodeCount  int
	OK         bool
	Failed     []string
	StartedAt  string
	FinishedAt string
}

// RunFilters contains filter options for listing runs.
type RunFilters struct {
	Domain     string
	FailedOnly bool
	Limit      int
}
