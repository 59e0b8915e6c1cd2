package consistency

// ResultKind says whether a check yields entries or a single value.
type ResultKind int

const (
	KindList ResultKind = iota
	KindScalar
)

// AggregationPolicy selects how per-node summaries are judged.
type AggregationPolicy int

const (
	// GenericEquality passes when every node reports the same, non-absent summary.
	GenericEquality AggregationPolicy = iota
	// ZeroTolerance passes only when every node reports exactly zero.
	ZeroTolerance
	// ReplicationCodes passes when every replication agreement line carries an accepted code.
	ReplicationCodes
)

func (p AggregationPolicy) String() string {
	switch p {
	case ZeroTolerance:
		return "zero-tolerance"
	case ReplicationCodes:
		return "replication-codes"
	}
	return "generic"
}

// UniqueIDAttribute is the per-entry identifier assigned by the directory.
const UniqueIDAttribute = "ipaUniqueID"

// DuplicateIdentity configures duplicate detection for a check.
// An empty Attribute means the entry key itself is the logical identity.
type DuplicateIdentity struct {
	Attribute         string
	UniqueIDAttribute string
}

// CheckSpec declares one comparison.
type CheckSpec struct {
	Name           string
	DisplayName    string
	Kind           ResultKind
	MissingRecords bool
	Duplicates     *DuplicateIdentity // nil disables duplicate detection
	Policy         AggregationPolicy
}

func byKey() *DuplicateIdentity {
	return &DuplicateIdentity{UniqueIDAttribute: UniqueIDAttribute}
}

func byAttribute(name string) *DuplicateIdentity {
	return &DuplicateIdentity{Attribute: name, UniqueIDAttribute: UniqueIDAttribute}
}

// Catalog returns the checks in display order. Each call returns a fresh slice.
func Catalog() []CheckSpec {
	return []CheckSpec{
		{Name: "users", DisplayName: "Active Users", Kind: KindList, MissingRecords: true, Duplicates: byKey()},
		{Name: "susers", DisplayName: "Stage Users", Kind: KindList, MissingRecords: true, Duplicates: byKey()},
		{Name: "pusers", DisplayName: "Preserved Users", Kind: KindList, MissingRecords: true, Duplicates: byKey()},
		{Name: "hosts", DisplayName: "Hosts", Kind: KindList, MissingRecords: true, Duplicates: byKey()},
		{Name: "services", DisplayName: "Services", Kind: KindList, MissingRecords: true, Duplicates: byKey()},
		{Name: "ugroups", DisplayName: "User Groups", Kind: KindList, MissingRecords: true, Duplicates: byKey()},
		{Name: "hgroups", DisplayName: "Host Groups", Kind: KindList, MissingRecords: true, Duplicates: byKey()},
		{Name: "ngroups", DisplayName: "Netgroups", Kind: KindList, MissingRecords: true, Duplicates: byKey()},
		{Name: "hbac", DisplayName: "HBAC Rules", Kind: KindList, MissingRecords: true, Duplicates: byAttribute("cn")},
		{Name: "sudo", DisplayName: "SUDO Rules", Kind: KindList, MissingRecords: true, Duplicates: byAttribute("cn")},
		{Name: "zones", DisplayName: "DNS Zones", Kind: KindList},
		{Name: "certs", DisplayName: "Certificates", Kind: KindList, MissingRecords: true},
		{Name: "conflicts", DisplayName: "LDAP Conflicts", Kind: KindScalar, Policy: ZeroTolerance},
		{Name: "ghosts", DisplayName: "Ghost Replicas", Kind: KindScalar, Policy: ZeroTolerance},
		{Name: "bind", DisplayName: "Anonymous BIND", Kind: KindScalar},
		{Name: "msdcs", DisplayName: "Microsoft ADTrust", Kind: KindScalar},
		{Name: "replicas", DisplayName: "Replication Status", Kind: KindScalar, Policy: ReplicationCodes},
	}
}

// Lookup finds a check by name.
func Lookup(name string) (CheckSpec, bool) {
	for _, spec := range Catalog() {
		if spec.Name == name {
			return spec, true
		}
	}
	return CheckSpec{}, false
}
