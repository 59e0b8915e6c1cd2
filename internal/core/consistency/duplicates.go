package consistency

import (
	"errors"
	"fmt"
)

// ErrMissingUniqueID is returned when an entry lacks the attribute carrying its unique id.
var ErrMissingUniqueID = errors.New("entry has no unique id")

// ErrMissingIdentity is returned when an entry lacks the attribute naming its logical identity.
var ErrMissingIdentity = errors.New("entry has no identity attribute")

type groupAccumulator struct {
	ids      stringSet
	perNode  map[string]stringSet
	perEntry map[string]stringSet
}

func newGroupAccumulator() *groupAccumulator {
	return &groupAccumulator{
		ids:      stringSet{},
		perNode:  map[string]stringSet{},
		perEntry: map[string]stringSet{},
	}
}

func (g *groupAccumulator) add(node, entry, uid string) {
	g.ids.add(uid)
	if g.perNode[node] == nil {
		g.perNode[node] = stringSet{}
	}
	g.perNode[node].add(uid)
	if g.perEntry[entry] == nil {
		g.perEntry[entry] = stringSet{}
	}
	g.perEntry[entry].add(uid)
}

func (g *groupAccumulator) group(logicalID string) DuplicateGroup {
	out := DuplicateGroup{
		LogicalID:         logicalID,
		DistinctUniqueIDs: g.ids.sorted(),
		PerNode:           make(map[string][]string, len(g.perNode)),
		PerEntry:          make(map[string][]string, len(g.perEntry)),
	}
	for node, ids := range g.perNode {
		out.PerNode[node] = ids.sorted()
	}
	for entry, ids := range g.perEntry {
		out.PerEntry[entry] = ids.sorted()
	}
	return out
}

// LogicalID derives the identity used to recognise the same entity across nodes.
func LogicalID(identity DuplicateIdentity, rec Record) (string, error) {
	if identity.Attribute == "" {
		return rec.Key, nil
	}
	id, ok := rec.First(identity.Attribute)
	if !ok {
		return "", fmt.Errorf("%w: %s has no %s", ErrMissingIdentity, rec.Key, identity.Attribute)
	}
	return id, nil
}

// FindDuplicates groups every entry of every answering node by logical
// identifier and keeps the groups backed by more than one distinct unique id.
// An entry without a unique id aborts the analysis: skipping it could hide a conflict.
func FindDuplicates(identity DuplicateIdentity, nodes []string, results map[string]NodeResult) (*DuplicateReport, error) {
	uidAttr := identity.UniqueIDAttribute
	if uidAttr == "" {
		uidAttr = UniqueIDAttribute
	}

	groups := map[string]*groupAccumulator{}
	for _, node := range nodes {
		list, ok := results[node].(ListResult)
		if !ok {
			continue
		}
		for _, rec := range list.Records {
			logicalID, err := LogicalID(identity, rec)
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", node, err)
			}
			uid, ok := rec.First(uidAttr)
			if !ok {
				return nil, fmt.Errorf("node %s: %w: %s has no %s", node, ErrMissingUniqueID, rec.Key, uidAttr)
			}
			acc, ok := groups[logicalID]
			if !ok {
				acc = newGroupAccumulator()
				groups[logicalID] = acc
			}
			acc.add(node, rec.Key, uid)
		}
	}

	report := &DuplicateReport{
		OK:        true,
		Attribute: identity.Attribute,
		Groups:    map[string]DuplicateGroup{},
	}
	for logicalID, acc := range groups {
		if len(acc.ids) <= 1 {
			continue
		}
		report.OK = false
		report.Groups[logicalID] = acc.group(logicalID)
	}
	return report, nil
}
