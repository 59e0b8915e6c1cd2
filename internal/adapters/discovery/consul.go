package discovery

import (
	"context"
	"fmt"
	"sort"

	consulapi "github.com/hashicorp/consul/api"

	"github.com/example/ipacheck/internal/ports/secondary"
)

// FQDNMetaKey is the service meta key holding a server's hostname.
const FQDNMetaKey = "fqdn"

// catalog is the subset of *consulapi.Catalog used for discovery.
type catalog interface {
	Service(service, tag string, q *consulapi.QueryOptions) ([]*consulapi.CatalogService, *consulapi.QueryMeta, error)
}

// ConsulOptions configures a ConsulDiscovery.
type ConsulOptions struct {
	Address    string // host:port of the agent; empty uses CONSUL_HTTP_ADDR or the default
	Service    string
	Tag        string
	Datacenter string
}

// ConsulDiscovery finds servers registered as a service in the Consul catalog.
type ConsulDiscovery struct {
	catalog catalog
	opts    ConsulOptions
}

// NewConsulDiscovery creates a ConsulDiscovery talking to the configured agent.
func NewConsulDiscovery(opts ConsulOptions) (*ConsulDiscovery, error) {
	cfg := consulapi.DefaultConfig()
	if opts.Address != "" {
		cfg.Address = opts.Address
	}
	if opts.Datacenter != "" {
		cfg.Datacenter = opts.Datacenter
	}
	cli, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return &ConsulDiscovery{catalog: cli.Catalog(), opts: opts}, nil
}

// Discover returns the sorted hostnames registered for the service.
// The domain is used as the tag when no tag is configured.
func (d *ConsulDiscovery) Discover(ctx context.Context, domain string) ([]string, error) {
	tag := d.opts.Tag
	if tag == "" {
		tag = domain
	}

	q := (&consulapi.QueryOptions{}).WithContext(ctx)
	services, _, err := d.catalog.Service(d.opts.Service, tag, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query consul service %s: %w", d.opts.Service, err)
	}

	seen := map[string]bool{}
	hosts := make([]string, 0, len(services))
	for _, s := range services {
		host := s.ServiceMeta[FQDNMetaKey]
		if host == "" {
			host = s.Node
		}
		if host == "" || seen[host] {
			continue
		}
		seen[host] = true
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts, nil
}

// Ensure ConsulDiscovery implements the interface.
var _ secondary.NodeDiscovery = (*ConsulDiscovery)(nil)
