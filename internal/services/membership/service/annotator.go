package service

import (
	"context"
	"slices"

	"oaiserver/internal/core/ident"
	"oaiserver/internal/modkit/repokit"
	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/platform/logger"
	str "oaiserver/internal/platform/strings"
	records "oaiserver/internal/services/records/domain"
	sets "oaiserver/internal/services/sets/domain"
)

// HookName is the name both pre-commit hooks are registered under
const HookName = "membership"

// SnapshotSource yields the current registry snapshot
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*sets.Snapshot, error)
}

// HookTarget exposes the record write hook chains
type HookTarget interface {
	BeforeInsert() *repokit.Hooks[*records.Record]
	BeforeUpdate() *repokit.Hooks[*records.Record]
}

// AnnotatorOption customizes an Annotator
type AnnotatorOption func(*Annotator)

// WithFailOnTransient decides whether an unreachable search capability aborts the write
func WithFailOnTransient(v bool) AnnotatorOption {
	return func(a *Annotator) { a.failOnTransient = v }
}

// Annotator keeps Record.Sets current as records are written
type Annotator struct {
	eval   *Evaluator
	source SnapshotSource
	target HookTarget
	ids    *ident.Provider

	failOnTransient bool
}

// NewAnnotator wires the evaluator to a registry and the record hook chains
func NewAnnotator(eval *Evaluator, source SnapshotSource, target HookTarget, ids *ident.Provider, opts ...AnnotatorOption) *Annotator {
	a := &Annotator{eval: eval, source: source, target: target, ids: ids, failOnTransient: true}
	for _, o := range opts {
		o(a)
	}
	return a
}

// RegisterSignals attaches both hooks; calling it again is a no-op
func (a *Annotator) RegisterSignals() {
	ins := a.target.BeforeInsert().Register(HookName, a.OnBeforeInsert)
	upd := a.target.BeforeUpdate().Register(HookName, a.OnBeforeUpdate)
	if ins || upd {
		logger.Named("membership").Info().Msg("record membership hooks registered")
	}
}

// UnregisterSignals detaches both hooks; calling it again is a no-op
func (a *Annotator) UnregisterSignals() {
	ins := a.target.BeforeInsert().Unregister(HookName)
	upd := a.target.BeforeUpdate().Unregister(HookName)
	if ins || upd {
		logger.Named("membership").Info().Msg("record membership hooks unregistered")
	}
}

// OnBeforeInsert is the insert hook
func (a *Annotator) OnBeforeInsert(ctx context.Context, q repokit.Queryer, rec *records.Record) error {
	_, err := a.Annotate(ctx, q, rec)
	return err
}

// OnBeforeUpdate is the update hook
func (a *Annotator) OnBeforeUpdate(ctx context.Context, q repokit.Queryer, rec *records.Record) error {
	_, err := a.Annotate(ctx, q, rec)
	return err
}

// Annotate implements the records annotator port
func (a *Annotator) Annotate(ctx context.Context, _ repokit.Queryer, rec *records.Record) (bool, error) {
	if rec.OAIID == "" && rec.ID > 0 && a.ids != nil {
		rec.OAIID = a.ids.ToOAIID(rec.ID)
	}
	snap, err := a.source.Snapshot(ctx)
	if err != nil {
		return false, perr.Wrap(err, perr.CodeOf(err), "load set registry")
	}

	res, err := a.eval.Evaluate(ctx, rec, snap)
	if err != nil {
		if a.failOnTransient {
			return false, err
		}
		// undecided sets keep whatever the record had
		for _, spec := range res.Failed {
			if slices.Contains(rec.Sets, spec) {
				res.Sets = append(res.Sets, spec)
			}
		}
		res.Sets = str.SortedUnique(res.Sets)
		res.Changed = !str.SameSet(res.Sets, rec.Sets)
		logger.C(ctx).Warn().Err(err).
			Int64("record_id", rec.ID).
			Strs("undecided", res.Failed).
			Msg("search unavailable; keeping prior membership for undecided sets")
	}
	rec.Sets = res.Sets
	return res.Changed, nil
}
