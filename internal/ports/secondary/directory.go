// Package secondary defines the secondary ports (driven adapters) for the application.
package secondary

import (
	"context"

	"github.com/example/ipacheck/internal/core/consistency"
)

// DirectoryConnector opens query sessions against directory nodes.
type DirectoryConnector interface {
	// Connect binds to the node at host. The returned session serves every check for that node.
	Connect(ctx context.Context, host string) (DirectorySession, error)

	// FallbackLabel returns the display label to use when host cannot be reached.
	FallbackLabel(host string) string
}

// DirectorySession is a bound connection to one node.
type DirectorySession interface {
	// Label returns the short display name of the node.
	Label() string

	// Collect runs the query behind spec and returns its result.
	// A failed query returns an error; the caller records the pair as unavailable.
	Collect(ctx context.Context, spec consistency.CheckSpec) (consistency.NodeResult, error)

	// Close releases the connection.
	Close() error
}

// NodeDiscovery resolves the directory nodes of a domain.
type NodeDiscovery interface {
	// Discover returns the node hostnames serving domain, in a stable order.
	Discover(ctx context.Context, domain string) ([]string, error)
}
