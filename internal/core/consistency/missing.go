package consistency

import "sort"

// stringSet is an unordered set of strings with sorted emission.
type stringSet map[string]struct{}

func (s stringSet) add(v string) { s[v] = struct{}{} }

func (s stringSet) has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s stringSet) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// FindMissing computes, for every node that answered with a list, which keys
// present on some other node are absent from it. Nodes without a list result
// take no part in the comparison. Keys are compared byte for byte.
func FindMissing(nodes []string, results map[string]NodeResult) *MissingRecordReport {
	all := stringSet{}
	perNode := map[string]stringSet{}

	for _, node := range nodes {
		list, ok := results[node].(ListResult)
		if !ok {
			continue
		}
		keys := stringSet{}
		for _, rec := range list.Records {
			keys.add(rec.Key)
			all.add(rec.Key)
		}
		perNode[node] = keys
	}

	report := &MissingRecordReport{
		OK:          true,
		AllKeys:     all.sorted(),
		MissingKeys: make(map[string][]string, len(perNode)),
	}
	for node, keys := range perNode {
		missing := []string{}
		for _, key := range report.AllKeys {
			if !keys.has(key) {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			report.OK = false
		}
		report.MissingKeys[node] = missing
	}
	return report
}
