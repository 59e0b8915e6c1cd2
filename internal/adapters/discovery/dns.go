// Package discovery resolves the directory servers of a domain.
package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/example/ipacheck/internal/ports/secondary"
)

// SRVResolver is the subset of net.Resolver used for discovery.
type SRVResolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
}

// DNSDiscovery finds servers through the _ldap._tcp SRV records of the domain.
type DNSDiscovery struct {
	resolver SRVResolver
}

// NewDNSDiscovery creates a DNSDiscovery. A nil resolver uses the system resolver.
func NewDNSDiscovery(resolver SRVResolver) *DNSDiscovery {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &DNSDiscovery{resolver: resolver}
}

// Discover returns the SRV targets sorted by priority, then name.
func (d *DNSDiscovery) Discover(ctx context.Context, domain string) ([]string, error) {
	_, addrs, err := d.resolver.LookupSRV(ctx, "ldap", "tcp", domain)
	if err != nil {
		return nil, fmt.Errorf("failed to look up _ldap._tcp.%s: %w", domain, err)
	}

	sort.SliceStable(addrs, func(i, j int) bool {
		if addrs[i].Priority != addrs[j].Priority {
			return addrs[i].Priority < addrs[j].Priority
		}
		return addrs[i].Target < addrs[j].Target
	})

	hosts := make([]string, 0, len(addrs))
	seen := map[string]bool{}
	for _, a := range addrs {
		host := strings.TrimSuffix(a.Target, ".")
		if host == "" || seen[host] {
			continue
		}
		seen[host] = true
		hosts = append(hosts, host)
	}
	return hosts, nil
}

// Ensure DNSDiscovery implements the interface.
var _ secondary.NodeDiscovery = (*DNSDiscovery)(nil)
