package secondary

import "github.com/example/ipacheck/internal/core/consistency"

// MetricsPublisher exports the outcome of a run to a monitoring system.
type MetricsPublisher interface {
	Publish(domain string, report consistency.ConsistencyReport) error
}
