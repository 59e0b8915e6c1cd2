// Package consistency compares per-node directory snapshots and reports divergence.
//
// Everything in this package is pure: callers hand in fully collected results
// and get back reports. Nothing here talks to a directory server.
package consistency

import (
	"sort"
	"strings"
)

// Record is one directory entry as returned by a query.
type Record struct {
	Key        string
	Attributes map[string][]string
}

// NewRecord builds a Record from a key and attribute pairs.
func NewRecord(key string, attrs map[string][]string) Record {
	if attrs == nil {
		attrs = map[string][]string{}
	}
	return Record{Key: key, Attributes: attrs}
}

// Values returns the values of the named attribute.
// ok is false when the attribute is absent; a present attribute may still hold zero values.
// Names are matched exactly first, then case-insensitively; among several
// case-insensitive matches the lowest name in byte order wins.
func (r Record) Values(name string) (values []string, ok bool) {
	if v, found := r.Attributes[name]; found {
		return v, true
	}
	var matches []string
	for attr := range r.Attributes {
		if strings.EqualFold(attr, name) {
			matches = append(matches, attr)
		}
	}
	if len(matches) == 0 {
		return nil, false
	}
	sort.Strings(matches)
	return r.Attributes[matches[0]], true
}

// First returns the first value of the named attribute.
// ok is false when the attribute is absent or has no values.
func (r Record) First(name string) (string, bool) {
	values, ok := r.Values(name)
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
