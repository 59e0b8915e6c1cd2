package consistency

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when a node answers a list check with a scalar or the reverse.
var ErrShapeMismatch = errors.New("result shape does not match check")

// Evaluate runs every analysis that applies to spec over the results of nodes.
// Evaluation problems are recorded on the report, force the affected status to
// false and are also returned so the caller can log or escalate them.
func Evaluate(spec CheckSpec, nodes []string, results map[string]NodeResult, policy ReplicationPolicy) (CheckReport, error) {
	report := CheckReport{
		Name:        spec.Name,
		DisplayName: spec.DisplayName,
		Nodes:       make(map[string]Value, len(nodes)),
	}
	var errs []error

	summaries := make([]Value, 0, len(nodes))
	shapeOK := true
	for _, node := range nodes {
		res, ok := results[node]
		if !ok || res == nil {
			res = Unavailable{Reason: "no result collected"}
		}
		if err := checkShape(spec, node, res); err != nil {
			errs = append(errs, err)
			shapeOK = false
		}
		v := Summarize(res)
		report.Nodes[node] = v
		summaries = append(summaries, v)
	}

	countOK, err := ItemCountOK(spec, summaries, policy)
	if err != nil {
		errs = append(errs, err)
		countOK = false
	}
	report.ItemCountOK = countOK && shapeOK

	if spec.MissingRecords {
		report.Missing = FindMissing(nodes, results)
	}

	if spec.Duplicates != nil {
		dup, err := FindDuplicates(*spec.Duplicates, nodes, results)
		if err != nil {
			errs = append(errs, err)
			dup = &DuplicateReport{Attribute: spec.Duplicates.Attribute, Groups: map[string]DuplicateGroup{}}
		}
		report.Duplicates = dup
	}

	for _, e := range errs {
		report.Errors = append(report.Errors, e.Error())
	}
	if len(errs) > 0 {
		return report, fmt.Errorf("check %s: %w", spec.Name, errors.Join(errs...))
	}
	return report, nil
}

func checkShape(spec CheckSpec, node string, res NodeResult) error {
	switch res.(type) {
	case ListResult:
		if spec.Kind != KindList {
			return fmt.Errorf("%w: node %s returned entries for scalar check %s", ErrShapeMismatch, node, spec.Name)
		}
	case ScalarResult:
		if spec.Kind != KindScalar {
			return fmt.Errorf("%w: node %s returned a value for list check %s", ErrShapeMismatch, node, spec.Name)
		}
	}
	return nil
}

// Assemble evaluates every check of the catalog over the snapshot and merges
// the outcomes into one report. The report is always complete; the returned
// error joins the evaluation problems of individual checks.
func Assemble(catalog []CheckSpec, nodes []NodeInfo, snapshot Snapshot, policy ReplicationPolicy) (ConsistencyReport, error) {
	addresses := make([]string, len(nodes))
	for i, n := range nodes {
		addresses[i] = n.Address
	}

	report := ConsistencyReport{
		Nodes:  append([]NodeInfo{}, nodes...),
		Checks: make([]CheckReport, 0, len(catalog)),
	}
	var errs []error
	for _, spec := range catalog {
		results := make(map[string]NodeResult, len(addresses))
		for _, addr := range addresses {
			results[addr] = snapshot.Get(spec.Name, addr)
		}
		check, err := Evaluate(spec, addresses, results, policy)
		if err != nil {
			errs = append(errs, err)
		}
		report.Checks = append(report.Checks, check)
	}
	return report, errors.Join(errs...)
}
