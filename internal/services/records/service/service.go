// Package service implements record writes with pre-commit hook chains
package service

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"oaiserver/internal/core/ident"
	"oaiserver/internal/modkit/repokit"
	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/platform/logger"
	"oaiserver/internal/platform/metrics"
	str "oaiserver/internal/platform/strings"
	ptime "oaiserver/internal/platform/time"
	"oaiserver/internal/services/records/domain"
	"oaiserver/internal/services/records/repo"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Config for the records service
type Config struct {
	// BatchSize is how many ids one recompute worker takes at a time
	BatchSize int
	// Workers bounds recompute parallelism
	Workers int
}

// Option customizes a Service
type Option func(*Service)

// WithClock overrides the clock used for timestamps
func WithClock(c ptime.Clock) Option { return func(s *Service) { s.clock = c } }

// WithMetrics counts recompute outcomes
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithSetChecker validates manual assignments against the registry
func WithSetChecker(c domain.SetChecker) Option { return func(s *Service) { s.sets = c } }

// WithAnnotator enables Recompute
func WithAnnotator(a domain.Annotator) Option { return func(s *Service) { s.annotator = a } }

// Service implements domain.ReaderPort and domain.AdminPort
type Service struct {
	db     repokit.TxRunner
	binder repokit.Binder[repo.Storage]
	ids    *ident.Provider
	cfg    Config

	clock     ptime.Clock
	metrics   *metrics.Metrics
	sets      domain.SetChecker
	annotator domain.Annotator

	beforeInsert repokit.Hooks[*domain.Record]
	beforeUpdate repokit.Hooks[*domain.Record]
}

// New constructs the records service
func New(db repokit.TxRunner, binder repokit.Binder[repo.Storage], ids *ident.Provider, cfg Config, opts ...Option) *Service {
	if db == nil {
		panic("records.Service requires a non-nil TxRunner")
	}
	if binder == nil {
		panic("records.Service requires a non-nil Storage binder")
	}
	if ids == nil {
		panic("records.Service requires an identifier provider")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	s := &Service{db: db, binder: binder, ids: ids, cfg: cfg, clock: ptime.System}
	s.Use(opts...)
	return s
}

// Use applies options after construction
func (s *Service) Use(opts ...Option) {
	for _, o := range opts {
		o(s)
	}
}

// BeforeInsert is the hook chain run inside the insert transaction
func (s *Service) BeforeInsert() *repokit.Hooks[*domain.Record] { return &s.beforeInsert }

// BeforeUpdate is the hook chain run inside every update transaction
func (s *Service) BeforeUpdate() *repokit.Hooks[*domain.Record] { return &s.beforeUpdate }

// Get implements domain.ReaderPort
func (s *Service) Get(ctx context.Context, id int64) (domain.Record, error) {
	return s.binder.Bind(s.db).Get(ctx, id)
}

// GetByOAIID implements domain.ReaderPort
func (s *Service) GetByOAIID(ctx context.Context, oaiID string) (domain.Record, error) {
	return s.binder.Bind(s.db).GetByOAIID(ctx, oaiID)
}

// List implements domain.ReaderPort
func (s *Service) List(ctx context.Context, f domain.Filter, limit int) ([]domain.Record, error) {
	return s.binder.Bind(s.db).List(ctx, f, limit)
}

// Count implements domain.ReaderPort
func (s *Service) Count(ctx context.Context, f domain.Filter) (int64, error) {
	return s.binder.Bind(s.db).Count(ctx, f)
}

// Earliest implements domain.ReaderPort
func (s *Service) Earliest(ctx context.Context) (time.Time, bool, error) {
	return s.binder.Bind(s.db).Earliest(ctx)
}

// Create implements domain.AdminPort
func (s *Service) Create(ctx context.Context, in domain.Input) (domain.Record, error) {
	manual := str.SortedUnique(in.ManualSets)
	for _, spec := range manual {
		if err := s.checkSet(ctx, spec); err != nil {
			return domain.Record{}, err
		}
	}

	var out domain.Record
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		id, err := r.NextID(ctx)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		rec := &domain.Record{
			ID:         id,
			UUID:       uuid.New(),
			Content:    in.Content,
			Sets:       []string{},
			ManualSets: manual,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.beforeInsert.Run(ctx, q, rec); err != nil {
			return err
		}
		s.ensureOAIID(rec)
		if err := r.Insert(ctx, rec); err != nil {
			return err
		}
		out = *rec
		return nil
	})
	if err != nil {
		return domain.Record{}, err
	}
	logger.C(ctx).Debug().Int64("record_id", out.ID).Strs("sets", out.Sets).Msg("record created")
	return out, nil
}

// Update implements domain.AdminPort
func (s *Service) Update(ctx context.Context, id int64, in domain.ContentInput) (domain.Record, error) {
	return s.mutate(ctx, id, func(rec *domain.Record) error {
		rec.Content = in.Content
		return nil
	})
}

// Assign implements domain.AdminPort; the annotator re-runs in the same transaction
func (s *Service) Assign(ctx context.Context, id int64, spec string) (domain.Record, error) {
	if err := s.checkSet(ctx, spec); err != nil {
		return domain.Record{}, err
	}
	return s.mutate(ctx, id, func(rec *domain.Record) error {
		rec.ManualSets = str.SortedUnique(append(rec.ManualSets, spec))
		return nil
	})
}

// Unassign implements domain.AdminPort
func (s *Service) Unassign(ctx context.Context, id int64, spec string) (domain.Record, error) {
	return s.mutate(ctx, id, func(rec *domain.Record) error {
		if !slices.Contains(rec.ManualSets, spec) {
			return perr.NotFoundf("record %d is not manually assigned to %q", id, spec)
		}
		rec.ManualSets = str.Without(rec.ManualSets, spec)
		return nil
	})
}

// Delete implements domain.AdminPort; the record stays as a tombstone
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		rec, err := r.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if rec.Deleted() {
			return perr.NotFoundf("record %d not found", id)
		}
		now := s.clock.Now()
		rec.DeletedAt = &now
		rec.UpdatedAt = now
		return r.Update(ctx, &rec)
	})
}

// Purge implements domain.AdminPort
func (s *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		n, err = s.binder.Bind(q).Purge(ctx, before)
		return err
	})
	if err == nil && n > 0 {
		logger.C(ctx).Info().Int64("records", n).Time("before", before).Msg("tombstones purged")
	}
	return n, err
}

// RetractSet removes spec from every record inside the caller's transaction
func (s *Service) RetractSet(ctx context.Context, q repokit.Queryer, spec string) (int64, error) {
	return s.binder.Bind(q).RetractSet(ctx, spec, s.clock.Now())
}

// Recompute re-annotates every live record; failures are counted, not fatal
func (s *Service) Recompute(ctx context.Context) (domain.Stats, error) {
	if s.annotator == nil {
		return domain.Stats{}, perr.Unavailablef("membership evaluation is not configured")
	}
	var scanned, changed, unchanged, failed atomic.Int64
	log := logger.C(ctx)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	var after int64
	for {
		ids, err := s.binder.Bind(s.db).IDs(ctx, after, s.cfg.BatchSize)
		if err != nil {
			_ = g.Wait()
			return domain.Stats{}, err
		}
		if len(ids) == 0 {
			break
		}
		after = ids[len(ids)-1]
		batch := ids
		g.Go(func() error {
			for _, id := range batch {
				if err := gctx.Err(); err != nil {
					return err
				}
				scanned.Add(1)
				moved, err := s.recomputeOne(gctx, id)
				switch {
				case err != nil:
					failed.Add(1)
					log.Warn().Err(err).Int64("record_id", id).Msg("recompute failed for record")
				case moved:
					changed.Add(1)
					s.metrics.Recomputed("changed")
				default:
					unchanged.Add(1)
					s.metrics.Recomputed("unchanged")
				}
			}
			return nil
		})
		if len(ids) < s.cfg.BatchSize {
			break
		}
	}
	err := g.Wait()
	st := domain.Stats{
		Scanned:   scanned.Load(),
		Changed:   changed.Load(),
		Unchanged: unchanged.Load(),
		Failed:    failed.Load(),
	}
	log.Info().
		Int64("scanned", st.Scanned).
		Int64("changed", st.Changed).
		Int64("failed", st.Failed).
		Dur("took", time.Since(start)).
		Msg("membership recomputed")
	return st, err
}

// Rescan implements the registry's rescan port
func (s *Service) Rescan(ctx context.Context, reason string) error {
	logger.C(ctx).Info().Str("reason", reason).Msg("rescanning record membership")
	_, err := s.Recompute(ctx)
	return err
}

func (s *Service) recomputeOne(ctx context.Context, id int64) (bool, error) {
	var moved bool
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		rec, err := r.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if rec.Deleted() {
			return nil
		}
		changed, err := s.annotator.Annotate(ctx, q, &rec)
		if err != nil || !changed {
			return err
		}
		moved = true
		return r.WriteSets(ctx, id, rec.Sets, s.clock.Now())
	})
	return moved, err
}

// mutate loads a live record, applies fn, runs the update hooks and writes it back
func (s *Service) mutate(ctx context.Context, id int64, fn func(*domain.Record) error) (domain.Record, error) {
	var out domain.Record
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		rec, err := r.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if rec.Deleted() {
			return perr.Conflictf("record %d is deleted", id)
		}
		if err := fn(&rec); err != nil {
			return err
		}
		rec.UpdatedAt = s.clock.Now()
		if err := s.beforeUpdate.Run(ctx, q, &rec); err != nil {
			return err
		}
		s.ensureOAIID(&rec)
		if err := r.Update(ctx, &rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	return out, err
}

func (s *Service) ensureOAIID(rec *domain.Record) {
	if rec.OAIID == "" {
		rec.OAIID = s.ids.ToOAIID(rec.ID)
	}
}

func (s *Service) checkSet(ctx context.Context, spec string) error {
	if s.sets == nil {
		return nil
	}
	ok, err := s.sets.Exists(ctx, spec)
	if err != nil {
		return err
	}
	if !ok {
		return perr.WithField(perr.Validationf("set %q does not exist", spec), "spec")
	}
	return nil
}
