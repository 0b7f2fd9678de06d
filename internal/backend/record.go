// File: internal/backend/record.go
package backend

import (
	"sort"
	"strings"
)

// Record is one process execution match. It is a plain comparable value;
// two records with identical fields are the same record no matter which
// query produced them.
type Record struct {
	Endpoint string
	Username string
	Path     string
	Cmdline  string
}

// normalize folds endpoint and username to lower case. Sensor hostnames and
// usernames come back in inconsistent case across backends and OS versions,
// and they must not defeat deduplication.
func (r Record) normalize() Record {
	r.Endpoint = strings.ToLower(r.Endpoint)
	r.Username = strings.ToLower(r.Username)
	return r
}

// less orders records for deterministic output.
func (r Record) less(o Record) bool {
	if r.Endpoint != o.Endpoint {
		return r.Endpoint < o.Endpoint
	}
	if r.Username != o.Username {
		return r.Username < o.Username
	}
	if r.Path != o.Path {
		return r.Path < o.Path
	}
	return r.Cmdline < o.Cmdline
}

// ResultSet is a deduplicated set of Records.
type ResultSet map[Record]struct{}

// NewResultSet returns an empty ResultSet.
func NewResultSet() ResultSet {
	return make(ResultSet)
}

// Add inserts a record, normalizing it first.
func (s ResultSet) Add(r Record) {
	s[r.normalize()] = struct{}{}
}

// Union merges other into s. Merging the same set twice is a no-op.
func (s ResultSet) Union(other ResultSet) {
	for r := range other {
		s[r] = struct{}{}
	}
}

// Len reports the number of unique records.
func (s ResultSet) Len() int {
	return len(s)
}

// Rows returns the records in a stable sorted order for emission.
func (s ResultSet) Rows() []Record {
	rows := make([]Record, 0, len(s))
	for r := range s {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].less(rows[j]) })
	return rows
}
