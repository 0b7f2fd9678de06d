// File: internal/backend/backend.go

// Package backend talks to the two Carbon Black process-search dialects:
// the on-prem EDR Response server and the Carbon Black Cloud Enterprise EDR
// API. Callers work against the Backend interface and never branch on which
// dialect is active; each implementation maps its own field names onto the
// shared Record shape.
package backend

import (
	"context"
	"errors"
)

// ErrTranslation marks a query that the cloud backend refused to translate
// from the Response dialect. It is the one recoverable search failure: the
// caller logs it, counts zero results for that query, and moves on.
var ErrTranslation = errors.New("query translation rejected")

// Backend is the capability both dialects provide: select process records
// matching a query string, streamed to a visitor.
type Backend interface {
	// Name identifies the dialect in logs.
	Name() string

	// HostField and UserField are the dialect's query field names for
	// endpoint hostname and process username. They drive both base-query
	// construction and the flag/raw-query conflict check.
	HostField() string
	UserField() string

	// TimeWindow renders the dialect's time-bound clause, with a leading
	// space, or "" when neither bound is set. Days take precedence over
	// minutes.
	TimeWindow(days, minutes int) string

	// ConvertQuery translates a Response-dialect query into this dialect.
	// The Response backend returns its input unchanged. A refusal is
	// reported wrapped in ErrTranslation.
	ConvertQuery(ctx context.Context, query string) (string, error)

	// Search executes query and calls visit for each matching record in
	// arrival order. Returning false from visit stops the iteration early.
	// Cancellation is checked cooperatively between records; records already
	// delivered to visit stay delivered, and ctx.Err() is returned.
	Search(ctx context.Context, query string, visit func(Record) bool) error
}
