package consistency

// NodeResult is what one node returned for one check.
// It is exactly one of ListResult, ScalarResult or Unavailable.
type NodeResult interface {
	nodeResult()
}

// ListResult holds the entries a list-typed check returned.
type ListResult struct {
	Records []Record
}

// ScalarResult holds the single value a scalar-typed check returned.
type ScalarResult struct {
	Value Value
}

// Unavailable marks a (node, check) pair whose result could not be collected.
type Unavailable struct {
	Reason string
}

func (ListResult) nodeResult()   {}
func (ScalarResult) nodeResult() {}
func (Unavailable) nodeResult()  {}

// Summarize reduces a result to its comparable summary:
// the entry count for lists, the raw value for scalars, absent otherwise.
func Summarize(r NodeResult) Value {
	switch res := r.(type) {
	case ListResult:
		return IntValue(int64(len(res.Records)))
	case ScalarResult:
		return res.Value
	case Unavailable:
		return AbsentValue()
	}
	return AbsentValue()
}

// Snapshot holds every collected result, indexed by check name then node.
type Snapshot map[string]map[string]NodeResult

// Put stores the result of one (check, node) pair.
func (s Snapshot) Put(check, node string, r NodeResult) {
	byNode, ok := s[check]
	if !ok {
		byNode = map[string]NodeResult{}
		s[check] = byNode
	}
	byNode[node] = r
}

// Get returns the result for a (check, node) pair. A pair that was never
// stored is reported as Unavailable so omission never looks like agreement.
func (s Snapshot) Get(check, node string) NodeResult {
	if r, ok := s[check][node]; ok && r != nil {
		return r
	}
	return Unavailable{Reason: "no result collected"}
}
