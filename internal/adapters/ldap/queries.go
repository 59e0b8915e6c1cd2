package ldap

import (
	"fmt"
	"strings"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/example/ipacheck/internal/core/consistency"
)

// search describes one LDAP query. base receives the domain base DN.
type search struct {
	base   func(baseDN string) string
	scope  int
	filter string
	attrs  []string
}

func under(rdn string) func(string) string {
	return func(baseDN string) string { return rdn + "," + baseDN }
}

func fixed(dn string) func(string) string {
	return func(string) string { return dn }
}

// listSearches maps list checks to the query returning their entries.
var listSearches = map[string]search{
	"users":    {base: under("cn=users,cn=accounts"), scope: goldap.ScopeWholeSubtree, filter: "(objectClass=person)"},
	"susers":   {base: under("cn=staged users,cn=accounts,cn=provisioning"), scope: goldap.ScopeWholeSubtree, filter: "(objectClass=person)"},
	"pusers":   {base: under("cn=deleted users,cn=accounts,cn=provisioning"), scope: goldap.ScopeWholeSubtree, filter: "(objectClass=person)"},
	"hosts":    {base: under("cn=computers,cn=accounts"), scope: goldap.ScopeWholeSubtree, filter: "(fqdn=*)"},
	"services": {base: under("cn=services,cn=accounts"), scope: goldap.ScopeWholeSubtree, filter: "(krbprincipalname=*)"},
	"ugroups":  {base: under("cn=groups,cn=accounts"), scope: goldap.ScopeWholeSubtree, filter: "(objectClass=ipausergroup)"},
	"hgroups":  {base: under("cn=hostgroups,cn=accounts"), scope: goldap.ScopeWholeSubtree, filter: "(objectClass=ipahostgroup)"},
	"ngroups":  {base: under("cn=ng,cn=alt"), scope: goldap.ScopeSingleLevel, filter: "(ipaUniqueID=*)"},
	"hbac":     {base: under("cn=hbac"), scope: goldap.ScopeSingleLevel, filter: "(ipaUniqueID=*)"},
	"sudo":     {base: under("cn=sudorules,cn=sudo"), scope: goldap.ScopeSingleLevel, filter: "(ipaUniqueID=*)"},
	"zones":    {base: under("cn=dns"), scope: goldap.ScopeSingleLevel, filter: "(|(objectClass=idnszone)(objectClass=idnsforwardzone))"},
	"certs":    {base: fixed("ou=certificateRepository,ou=ca,o=ipaca"), scope: goldap.ScopeSingleLevel, filter: "(certStatus=*)", attrs: []string{"subjectName"}},
}

var (
	configSearch = search{
		base:   fixed("cn=config"),
		scope:  goldap.ScopeBaseObject,
		filter: "(objectClass=*)",
		attrs:  []string{"nsslapd-localhost", "nsslapd-defaultnamingcontext", "nsslapd-allow-anonymous-access"},
	}
	conflictSearch = search{
		base:   func(baseDN string) string { return baseDN },
		scope:  goldap.ScopeWholeSubtree,
		filter: "(|(nsds5ReplConflict=*)(&(objectclass=ldapsubentry)(nsds5ReplConflict=*)))",
		attrs:  []string{"nsds5ReplConflict"},
	}
	ghostSearch = search{
		base:   func(baseDN string) string { return baseDN },
		scope:  goldap.ScopeWholeSubtree,
		filter: "(&(objectclass=nstombstone)(nsUniqueId=ffffffff-ffffffff-ffffffff-ffffffff))",
		attrs:  []string{"nscpentrywsi"},
	}
	replicaSearch = search{
		base: func(baseDN string) string {
			return "cn=replica,cn=" + EscapeSuffix(baseDN) + ",cn=mapping tree,cn=config"
		},
		scope:  goldap.ScopeSingleLevel,
		filter: "(objectClass=*)",
		attrs:  []string{"nsDS5ReplicaHost", "nsds5replicaLastUpdateStatus"},
	}
)

func (s search) request(baseDN string) *goldap.SearchRequest {
	return goldap.NewSearchRequest(
		s.base(baseDN),
		s.scope,
		goldap.NeverDerefAliases,
		0, 0, false,
		s.filter,
		s.attrs,
		nil,
	)
}

// BaseDN converts a DNS domain to its directory suffix: example.com -> dc=example,dc=com.
func BaseDN(domain string) string {
	return "dc=" + strings.ReplaceAll(domain, ".", ",dc=")
}

// EscapeSuffix escapes a suffix for use as a mapping tree RDN value.
func EscapeSuffix(baseDN string) string {
	return strings.NewReplacer("=", `\3D`, ",", `\2C`).Replace(baseDN)
}

// ShortHost strips the domain from an FQDN.
func ShortHost(fqdn, domain string) string {
	if domain == "" {
		return fqdn
	}
	return strings.Replace(fqdn, "."+domain, "", 1)
}

// CountGhostReplicas counts tombstone RUV elements naming a replica without an LDAP URL.
func CountGhostReplicas(values []string) int64 {
	var n int64
	for _, v := range values {
		if strings.Contains(v, "replica ") && !strings.Contains(v, "ldap") {
			n++
		}
	}
	return n
}

// AnonBindMode normalizes nsslapd-allow-anonymous-access to ON, OFF, ROOTDSE or ERROR.
func AnonBindMode(value string) string {
	switch value {
	case "on", "off", "rootdse":
		return strings.ToUpper(value)
	}
	return "ERROR"
}

// ReplicationCode extracts the numeric code from nsds5replicaLastUpdateStatus,
// e.g. "Error (0) Replica acquired successfully" -> "0".
func ReplicationCode(status string) string {
	status = strings.Replace(status, "Error ", "", -1)
	code, _, _ := strings.Cut(status, " ")
	return strings.Trim(code, "()")
}

// ReplicationLines renders one "<short host> <code>" line per agreement entry.
func ReplicationLines(entries []*goldap.Entry, domain string) (string, error) {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		host := e.GetAttributeValue("nsDS5ReplicaHost")
		status := e.GetAttributeValue("nsds5replicaLastUpdateStatus")
		if host == "" || status == "" {
			return "", fmt.Errorf("agreement %s lacks host or status", e.DN)
		}
		lines = append(lines, ShortHost(host, domain)+" "+ReplicationCode(status))
	}
	return strings.Join(lines, "\n"), nil
}

// toRecords converts search entries into records keyed by DN.
func toRecords(entries []*goldap.Entry) []consistency.Record {
	records := make([]consistency.Record, 0, len(entries))
	for _, e := range entries {
		attrs := make(map[string][]string, len(e.Attributes))
		for _, a := range e.Attributes {
			attrs[a.Name] = append(attrs[a.Name], a.Values...)
		}
		records = append(records, consistency.NewRecord(e.DN, attrs))
	}
	return records
}
