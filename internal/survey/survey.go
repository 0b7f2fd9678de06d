// File: internal/survey/survey.go

// Package survey is the executor and aggregator: it turns criteria groups
// into backend queries, collects each query's matches into a deduplicated
// ResultSet, and hands unique rows to the output writer with their
// provenance labels.
package survey

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cafogleman/cb-response-surveyor/internal/backend"
	"github.com/cafogleman/cb-response-surveyor/internal/criteria"
	"github.com/cafogleman/cb-response-surveyor/internal/output"
	"github.com/cafogleman/cb-response-surveyor/internal/query"
)

// Surveyor runs one survey against one backend. Queries execute strictly
// one after another; the only suspension points are the backend's own
// network calls.
type Surveyor struct {
	backend   backend.Backend
	writer    *output.Writer
	base      string
	translate bool
	logger    *zap.Logger
	runID     string
}

// New wires a Surveyor. The base fragment is built once per invocation and
// appended to every query the surveyor executes.
func New(b backend.Backend, w *output.Writer, base string, translate bool, logger *zap.Logger) *Surveyor {
	runID := uuid.New().String()
	return &Surveyor{
		backend:   b,
		writer:    w,
		base:      base,
		translate: translate,
		logger:    logger.Named("survey").With(zap.String("run_id", runID)),
		runID:     runID,
	}
}

// ProcessSearch executes one query and returns its deduplicated results.
//
// Two failures are deliberately soft. A translation refusal skips the query
// with zero results. A context cancellation stops collecting and keeps
// whatever arrived before the interrupt; the batch carries on with the next
// query, matching the operator expectation that Ctrl-C bails out of a
// runaway query, not the whole survey.
func (s *Surveyor) ProcessSearch(ctx context.Context, q string) (backend.ResultSet, error) {
	results := backend.NewResultSet()

	if s.translate {
		translated, err := s.backend.ConvertQuery(ctx, q)
		if err != nil {
			if errors.Is(err, backend.ErrTranslation) {
				s.logger.Warn("Can't convert query, skipping", zap.String("query", q), zap.Error(err))
				return results, nil
			}
			return nil, err
		}
		q = translated
	}

	q += s.base

	err := s.backend.Search(ctx, q, func(r backend.Record) bool {
		results.Add(r)
		return true
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.logger.Warn("Interrupted, returning what we have", zap.Int("partial", results.Len()))
			return results, nil
		}
		return nil, err
	}
	return results, nil
}

// NestedSearch runs one query per field in the group and unions the
// results. Fields are independent units, not a cross-product.
func (s *Surveyor) NestedSearch(ctx context.Context, group criteria.Group) (backend.ResultSet, error) {
	results := backend.NewResultSet()

	for _, field := range group.Fields() {
		q := query.FieldClause(field, group.FieldTerms[field])
		fieldResults, err := s.ProcessSearch(ctx, q)
		if err != nil {
			return nil, err
		}
		results.Union(fieldResults)
	}
	return results, nil
}

// Run surveys every group in order, writing unique rows as each group
// completes. The reported count per group is unique records, not raw
// matches.
func (s *Surveyor) Run(ctx context.Context, groups []criteria.Group) error {
	s.logger.Info("Starting survey",
		zap.String("backend", s.backend.Name()),
		zap.Int("groups", len(groups)),
	)

	for _, group := range groups {
		var (
			results backend.ResultSet
			err     error
		)
		if group.RawQuery != "" {
			results, err = s.ProcessSearch(ctx, group.RawQuery)
		} else {
			results, err = s.NestedSearch(ctx, group)
		}
		if err != nil {
			return err
		}

		s.logger.Info("Program surveyed",
			zap.String("program", group.Program),
			zap.String("source", group.Source),
			zap.Int("results", results.Len()),
		)

		if err := s.writer.WriteRecords(results.Rows(), group.Program, group.Source); err != nil {
			return err
		}
	}
	return nil
}
