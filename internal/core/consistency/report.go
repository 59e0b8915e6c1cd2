package consistency

// NodeInfo pairs a node address with its display label.
type NodeInfo struct {
	Address string `json:"address" yaml:"address"`
	Label   string `json:"label" yaml:"label"`
}

// MissingRecordReport lists, per answering node, the keys other nodes hold and it does not.
type MissingRecordReport struct {
	OK          bool                `json:"ok" yaml:"ok"`
	AllKeys     []string            `json:"all_keys" yaml:"all_keys"`
	MissingKeys map[string][]string `json:"missing_keys" yaml:"missing_keys"`
}

// DuplicateGroup collects the unique ids seen for one logical identifier.
type DuplicateGroup struct {
	LogicalID         string              `json:"logical_id" yaml:"logical_id"`
	DistinctUniqueIDs []string            `json:"unique_ids" yaml:"unique_ids"`
	PerNode           map[string][]string `json:"nodes" yaml:"nodes"`
	PerEntry          map[string][]string `json:"entries" yaml:"entries"`
}

// Conflicting reports whether more than one distinct entry backs the logical identifier.
func (g DuplicateGroup) Conflicting() bool {
	return len(g.DistinctUniqueIDs) > 1
}

// DuplicateReport holds the conflicting groups of one check, keyed by logical identifier.
type DuplicateReport struct {
	OK        bool                      `json:"ok" yaml:"ok"`
	Attribute string                    `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Groups    map[string]DuplicateGroup `json:"groups" yaml:"groups"`
}

// CheckReport is the outcome of one check across all nodes.
// Missing and Duplicates are nil when the analysis does not apply to the check.
type CheckReport struct {
	Name        string               `json:"name" yaml:"name"`
	DisplayName string               `json:"display_name" yaml:"display_name"`
	Nodes       map[string]Value     `json:"nodes" yaml:"nodes"`
	ItemCountOK bool                 `json:"status_item_count" yaml:"status_item_count"`
	Missing     *MissingRecordReport `json:"missing,omitempty" yaml:"missing,omitempty"`
	Duplicates  *DuplicateReport     `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	Errors      []string             `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// OK reports whether every applicable analysis passed and nothing failed to evaluate.
func (c CheckReport) OK() bool {
	if !c.ItemCountOK || len(c.Errors) > 0 {
		return false
	}
	if c.Missing != nil && !c.Missing.OK {
		return false
	}
	if c.Duplicates != nil && !c.Duplicates.OK {
		return false
	}
	return true
}

// ConsistencyReport is the merged result of one audit run, checks in catalog order.
type ConsistencyReport struct {
	Nodes  []NodeInfo    `json:"nodes" yaml:"nodes"`
	Checks []CheckReport `json:"checks" yaml:"checks"`
}

// OK reports whether every check passed.
func (r ConsistencyReport) OK() bool {
	for _, c := range r.Checks {
		if !c.OK() {
			return false
		}
	}
	return true
}

// Check returns the report of the named check.
func (r ConsistencyReport) Check(name string) (CheckReport, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckReport{}, false
}

// Failed returns the names of the checks that did not pass.
func (r ConsistencyReport) Failed() []string {
	var names []string
	for _, c := range r.Checks {
		if !c.OK() {
			names = append(names, c.Name)
		}
	}
	return names
}

// NodeAddresses returns the node addresses in report order.
func (r ConsistencyReport) NodeAddresses() []string {
	out := make([]string, len(r.Nodes))
	for i, n := range r.Nodes {
		out[i] = n.Address
	}
	return out
}
