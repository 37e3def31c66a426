// Package service decides which sets a record belongs to and keeps record
// membership current from inside the record write transaction
package service

import (
	"context"
	stderrs "errors"
	"slices"
	"time"

	"oaiserver/internal/core/query"
	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/platform/logger"
	"oaiserver/internal/platform/metrics"
	str "oaiserver/internal/platform/strings"
	records "oaiserver/internal/services/records/domain"
	sets "oaiserver/internal/services/sets/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer spans are recorded under
const TracerName = "oaiserver/membership"

// Result is the outcome of evaluating one record
type Result struct {
	// Sets is the new effective membership, sorted
	Sets []string `json:"sets"`
	// Changed reports whether Sets differs from the record's stored sets
	Changed bool `json:"changed"`
	// Failed lists specs left undecided by a transient failure
	Failed []string `json:"failed,omitempty"`
}

// EvaluatorOption customizes an Evaluator
type EvaluatorOption func(*Evaluator)

// WithMatcher decides records one at a time
func WithMatcher(m query.Matcher) EvaluatorOption {
	return func(e *Evaluator) { e.matcher, e.searcher = m, nil }
}

// WithSearcher decides membership by searching the corpus and testing the record id
func WithSearcher(s query.Searcher) EvaluatorOption {
	return func(e *Evaluator) { e.searcher, e.matcher = s, nil }
}

// WithSearchTimeout bounds every capability call
func WithSearchTimeout(d time.Duration) EvaluatorOption {
	return func(e *Evaluator) { e.timeout = d }
}

// WithTracer overrides the global tracer
func WithTracer(t trace.Tracer) EvaluatorOption { return func(e *Evaluator) { e.tracer = t } }

// WithEvaluatorMetrics records evaluation latency and failures
func WithEvaluatorMetrics(m *metrics.Metrics) EvaluatorOption {
	return func(e *Evaluator) { e.metrics = m }
}

// Evaluator computes set membership for records against a registry snapshot
type Evaluator struct {
	matcher  query.Matcher
	searcher query.Searcher
	timeout  time.Duration
	tracer   trace.Tracer
	metrics  *metrics.Metrics
}

// NewEvaluator defaults to in-process matching with a 2s bound
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		matcher: query.InProcess{},
		timeout: 2 * time.Second,
		tracer:  otel.Tracer(TracerName),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate decides rec against every set in snap
// a transient failure returns the partial result together with an Unavailable error
func (e *Evaluator) Evaluate(ctx context.Context, rec *records.Record, snap *sets.Snapshot) (Result, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "membership.evaluate", trace.WithAttributes(
		attribute.Int64("record.id", rec.ID),
		attribute.Int("sets.count", snap.Len()),
	))
	defer span.End()

	out := make([]string, 0, len(rec.ManualSets))
	for _, spec := range rec.ManualSets {
		if snap.Has(spec) {
			out = append(out, spec)
		}
	}

	var (
		failed    []string
		transient error
	)
	for _, set := range snap.Sets {
		q, ok := snap.Queries[set.Spec]
		if !ok {
			continue
		}
		hit, err := e.decide(ctx, rec, q)
		if err == nil {
			if hit {
				out = append(out, set.Spec)
			}
			continue
		}
		if perr.IsCode(err, perr.ErrorCodeUnavailable) {
			failed = append(failed, set.Spec)
			if transient == nil {
				transient = err
			}
			e.metrics.PercolateError(kind(err))
			continue
		}
		e.metrics.PercolateError("eval")
		logger.C(ctx).Warn().Err(err).
			Str("spec", set.Spec).
			Int64("record_id", rec.ID).
			Msg("set pattern failed to evaluate; treating as no match")
	}

	res := Result{Sets: str.SortedUnique(out), Failed: failed}
	res.Changed = !str.SameSet(res.Sets, rec.Sets)
	e.metrics.ObservePercolate(time.Since(start))

	span.SetAttributes(attribute.Int("sets.matched", len(res.Sets)), attribute.Bool("changed", res.Changed))
	if transient != nil {
		span.RecordError(transient)
		span.SetStatus(codes.Error, "search capability unavailable")
		return res, transient
	}
	return res, nil
}

func (e *Evaluator) decide(ctx context.Context, rec *records.Record, q query.Query) (bool, error) {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if e.searcher != nil {
		ids, err := e.searcher.Search(cctx, q)
		if err != nil {
			if cctx.Err() != nil || perr.IsCode(err, perr.ErrorCodeUnavailable) {
				return false, query.Transient(err)
			}
			return false, err
		}
		return slices.Contains(ids, rec.ID), nil
	}
	doc := rec.Content
	if doc == nil {
		doc = query.Document{}
	}
	return e.matcher.Matches(cctx, doc, q)
}

func kind(err error) string {
	if stderrs.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "transient"
}
