// File: internal/query/query.go

// Package query assembles search-query strings for either backend dialect:
// the per-field OR clauses built from criteria terms, and the shared base
// fragment (time window plus host/user constraints) appended to every query.
package query

import (
	"fmt"
	"strings"

	"github.com/cafogleman/cb-response-surveyor/internal/backend"
)

// Options are the caller-supplied base-query constraints.
type Options struct {
	Days     int
	Minutes  int
	Hostname string
	Username string
}

// FieldClause ORs terms together under one field, parenthesized:
// (field:t1 OR field:t2). Term order follows the input.
func FieldClause(field string, terms []string) string {
	atoms := make([]string, 0, len(terms))
	for _, term := range terms {
		atoms = append(atoms, fmt.Sprintf("%s:%s", field, term))
	}
	return "(" + strings.Join(atoms, " OR ") + ")"
}

// BaseFragment renders the clauses appended to every constructed query:
// the dialect time window, then host and user constraints when set. Each
// clause carries its own leading space; "" means no constraints at all.
func BaseFragment(b backend.Backend, opts Options) string {
	var sb strings.Builder
	sb.WriteString(b.TimeWindow(opts.Days, opts.Minutes))
	if opts.Hostname != "" {
		fmt.Fprintf(&sb, " %s:%s", b.HostField(), opts.Hostname)
	}
	if opts.Username != "" {
		fmt.Fprintf(&sb, " %s:%s", b.UserField(), opts.Username)
	}
	return sb.String()
}

// CheckConflicts rejects a raw query that already constrains a field the
// caller also supplied through a dedicated flag. Letting both through would
// silently AND two different values of the same field.
func CheckConflicts(rawQuery string, b backend.Backend, opts Options) error {
	if rawQuery == "" {
		return nil
	}
	if opts.Hostname != "" && strings.Contains(rawQuery, b.HostField()) {
		return fmt.Errorf("cannot use --hostname with %q in query", b.HostField()+":")
	}
	if opts.Username != "" && strings.Contains(rawQuery, b.UserField()) {
		return fmt.Errorf("cannot use --username with %q in query", b.UserField()+":")
	}
	return nil
}
