// Package ldap collects check results from FreeIPA directory servers over LDAPS.
package ldap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/example/ipacheck/internal/core/consistency"
	"github.com/example/ipacheck/internal/ports/secondary"
)

// DefaultBindDN is the bind identity used when none is configured.
const DefaultBindDN = "cn=Directory Manager"

// DefaultTimeout bounds the network dial and every request.
const DefaultTimeout = 3 * time.Second

// ErrNamingContextMismatch is returned when a server serves a different suffix than the domain.
var ErrNamingContextMismatch = errors.New("default naming context does not match domain")

// SRVResolver is the subset of net.Resolver used for the AD trust check.
type SRVResolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
}

// searcher is the subset of *goldap.Conn used by sessions.
type searcher interface {
	Search(req *goldap.SearchRequest) (*goldap.SearchResult, error)
}

// Options configures a Connector.
type Options struct {
	Domain        string
	BindDN        string
	BindPassword  string
	Timeout       time.Duration
	SkipTLSVerify bool
	Resolver      SRVResolver
}

// Connector implements secondary.DirectoryConnector for FreeIPA servers.
type Connector struct {
	opts   Options
	baseDN string
	dial   func(ctx context.Context, host string) (searcher, func(), error)
}

// NewConnector creates a Connector. Zero options fall back to package defaults.
func NewConnector(opts Options) *Connector {
	if opts.BindDN == "" {
		opts.BindDN = DefaultBindDN
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Resolver == nil {
		opts.Resolver = net.DefaultResolver
	}
	c := &Connector{opts: opts, baseDN: BaseDN(opts.Domain)}
	c.dial = c.dialLDAPS
	return c
}

// FallbackLabel returns the host without the domain.
func (c *Connector) FallbackLabel(host string) string {
	return ShortHost(host, c.opts.Domain)
}

// Connect binds to host and reads its identity from cn=config.
func (c *Connector) Connect(ctx context.Context, host string) (secondary.DirectorySession, error) {
	conn, closeFn, err := c.dial(ctx, host)
	if err != nil {
		return nil, err
	}

	s := &Session{conn: conn, close: closeFn, connector: c, host: host, fqdn: host}
	cfg, err := s.configEntry(ctx)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to read cn=config on %s: %w", host, err)
	}

	if fqdn := cfg.GetAttributeValue("nsslapd-localhost"); fqdn != "" {
		s.fqdn = fqdn
	}
	if naming := cfg.GetAttributeValue("nsslapd-defaultnamingcontext"); !strings.EqualFold(naming, c.baseDN) {
		s.Close()
		return nil, fmt.Errorf("%w: %s serves %q, expected %q", ErrNamingContextMismatch, host, naming, c.baseDN)
	}
	return s, nil
}

func (c *Connector) dialLDAPS(ctx context.Context, host string) (searcher, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	conn, err := goldap.DialURL("ldaps://"+host,
		goldap.DialWithDialer(&net.Dialer{Timeout: c.opts.Timeout}),
		goldap.DialWithTLSConfig(&tls.Config{
			ServerName:         host,
			InsecureSkipVerify: c.opts.SkipTLSVerify,
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", host, err)
	}
	conn.SetTimeout(c.opts.Timeout)

	if err := conn.Bind(c.opts.BindDN, c.opts.BindPassword); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to bind to %s as %s: %w", host, c.opts.BindDN, err)
	}
	return conn, func() { conn.Close() }, nil
}

// Session implements secondary.DirectorySession over one bound connection.
type Session struct {
	conn      searcher
	close     func()
	connector *Connector
	host      string
	fqdn      string
}

// Label returns the server's own hostname without the domain.
func (s *Session) Label() string {
	return ShortHost(s.fqdn, s.connector.opts.Domain)
}

// Close releases the connection.
func (s *Session) Close() error {
	if s.close != nil {
		s.close()
		s.close = nil
	}
	return nil
}

// Collect runs the query behind spec.
func (s *Session) Collect(ctx context.Context, spec consistency.CheckSpec) (consistency.NodeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if q, ok := listSearches[spec.Name]; ok {
		entries, err := s.search(q)
		if err != nil {
			return nil, err
		}
		return consistency.ListResult{Records: toRecords(entries)}, nil
	}

	switch spec.Name {
	case "conflicts":
		entries, err := s.search(conflictSearch)
		if err != nil {
			return nil, err
		}
		return scalar(consistency.IntValue(int64(len(entries)))), nil

	case "ghosts":
		entries, err := s.search(ghostSearch)
		if err != nil {
			return nil, err
		}
		var n int64
		if len(entries) > 0 {
			n = CountGhostReplicas(entries[0].GetAttributeValues("nscpentrywsi"))
		}
		return scalar(consistency.IntValue(n)), nil

	case "bind":
		cfg, err := s.configEntry(ctx)
		if err != nil {
			return nil, err
		}
		return scalar(consistency.TextValue(AnonBindMode(cfg.GetAttributeValue("nsslapd-allow-anonymous-access")))), nil

	case "msdcs":
		ok, err := s.adTrust(ctx)
		if err != nil {
			return nil, err
		}
		return scalar(consistency.BoolValue(ok)), nil

	case "replicas":
		entries, err := s.search(replicaSearch)
		if err != nil {
			return nil, err
		}
		lines, err := ReplicationLines(entries, s.connector.opts.Domain)
		if err != nil {
			return nil, err
		}
		return scalar(consistency.TextValue(lines)), nil
	}

	return nil, fmt.Errorf("no LDAP query for check %q", spec.Name)
}

// search runs q; a missing base entry yields no entries.
func (s *Session) search(q search) ([]*goldap.Entry, error) {
	req := q.request(s.connector.baseDN)
	res, err := s.conn.Search(req)
	if goldap.IsErrorWithCode(err, goldap.LDAPResultNoSuchObject) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search %s %s failed: %w", req.BaseDN, req.Filter, err)
	}
	return res.Entries, nil
}

func (s *Session) configEntry(ctx context.Context) (*goldap.Entry, error) {
	entries, err := s.search(configSearch)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("cn=config not readable")
	}
	return entries[0], nil
}

// adTrust reports whether the node is advertised as a Kerberos DC for AD trusts.
func (s *Session) adTrust(ctx context.Context) (bool, error) {
	name := "_kerberos._tcp.Default-First-Site-Name._sites.dc._msdcs." + s.connector.opts.Domain
	_, addrs, err := s.connector.opts.Resolver.LookupSRV(ctx, "", "", name)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	for _, a := range addrs {
		if strings.Contains(a.Target, s.fqdn) {
			return true, nil
		}
	}
	return false, nil
}

func scalar(v consistency.Value) consistency.ScalarResult {
	return consistency.ScalarResult{Value: v}
}

// Ensure Connector and Session implement the interfaces.
var (
	_ secondary.DirectoryConnector = (*Connector)(nil)
	_ secondary.DirectorySession   = (*Session)(nil)
)
