// Package service implements the set registry
package service

import (
	"context"
	"strings"
	"sync/atomic"

	"oaiserver/internal/core/oai"
	"oaiserver/internal/core/query"
	"oaiserver/internal/modkit/repokit"
	"oaiserver/internal/platform/cache"
	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/platform/logger"
	"oaiserver/internal/platform/metrics"
	ptime "oaiserver/internal/platform/time"
	"oaiserver/internal/services/sets/domain"
	"oaiserver/internal/services/sets/repo"

	"golang.org/x/sync/singleflight"
)

// Rescan policies for pattern changes
const (
	RescanEager = "eager"
	RescanLazy  = "lazy"
)

// snapshotKey is the cache entry holding the ordered set list
const snapshotKey = "snapshot"

// Config for the registry
type Config struct {
	MaxDepth int
	Rescan   string
}

// Option customizes a Service
type Option func(*Service)

// WithClock overrides the clock used for timestamps
func WithClock(c ptime.Clock) Option { return func(s *Service) { s.clock = c } }

// WithMetrics records cache hits and misses
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithRetractor removes deleted specs from records in the delete transaction
func WithRetractor(r domain.Retractor) Option { return func(s *Service) { s.retractor = r } }

// WithRescanner re-evaluates records after pattern changes when rescan is eager
func WithRescanner(r domain.Rescanner) Option { return func(s *Service) { s.rescanner = r } }

// Service implements domain.RegistryPort and domain.AdminPort
type Service struct {
	db     repokit.TxRunner
	binder repokit.Binder[repo.Storage]
	parser query.Parser
	cache  cache.Cache[[]domain.Set]
	cfg    Config

	clock     ptime.Clock
	metrics   *metrics.Metrics
	retractor domain.Retractor
	rescanner domain.Rescanner

	sf  singleflight.Group
	gen atomic.Uint64
}

// New constructs the registry; db, binder, parser and cache are required
func New(db repokit.TxRunner, binder repokit.Binder[repo.Storage], parser query.Parser, c cache.Cache[[]domain.Set], cfg Config, opts ...Option) *Service {
	if db == nil {
		panic("sets.Service requires a non-nil TxRunner")
	}
	if binder == nil {
		panic("sets.Service requires a non-nil Storage binder")
	}
	if parser == nil {
		panic("sets.Service requires a query parser")
	}
	if c == nil {
		panic("sets.Service requires a cache")
	}
	if cfg.Rescan == "" {
		cfg.Rescan = RescanEager
	}
	s := &Service{db: db, binder: binder, parser: parser, cache: c, cfg: cfg, clock: ptime.System}
	s.Use(opts...)
	return s
}

// Use applies options after construction; cross module ports are wired this way
func (s *Service) Use(opts ...Option) {
	for _, o := range opts {
		o(s)
	}
}

// Parser returns the configured query parser
func (s *Service) Parser() query.Parser { return s.parser }

// Get implements domain.RegistryPort
func (s *Service) Get(ctx context.Context, spec string) (domain.Set, error) {
	return s.binder.Bind(s.db).Get(ctx, spec)
}

// Exists reports whether spec is registered
func (s *Service) Exists(ctx context.Context, spec string) (bool, error) {
	_, err := s.Get(ctx, spec)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return false, nil
	}
	return err == nil, err
}

// List implements domain.RegistryPort; next is "" on the last page
func (s *Service) List(ctx context.Context, after string, limit int) ([]domain.Set, string, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.binder.Bind(s.db).List(ctx, after, limit+1)
	if err != nil {
		return nil, "", err
	}
	if len(rows) <= limit {
		return rows, "", nil
	}
	rows = rows[:limit]
	return rows, rows[limit-1].Spec, nil
}

// Count implements domain.RegistryPort
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.binder.Bind(s.db).Count(ctx)
}

// Create implements domain.AdminPort
func (s *Service) Create(ctx context.Context, in domain.SetInput) (domain.Set, error) {
	if err := oai.ValidateSpec(in.Spec, s.cfg.MaxDepth); err != nil {
		return domain.Set{}, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return domain.Set{}, perr.WithField(perr.Validationf("name is required"), "name")
	}
	pattern, err := s.compile(in.SearchPattern)
	if err != nil {
		return domain.Set{}, err
	}

	now := s.clock.Now()
	set := domain.Set{
		Spec:          in.Spec,
		Name:          in.Name,
		Description:   in.Description,
		SearchPattern: pattern,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		if parent := set.Parent(); parent != "" {
			if _, err := r.Get(ctx, parent); err != nil {
				if perr.IsCode(err, perr.ErrorCodeNotFound) {
					return perr.WithField(perr.Validationf("parent set %q does not exist", parent), "spec")
				}
				return err
			}
		}
		return r.Insert(ctx, set)
	})
	if err != nil {
		return domain.Set{}, err
	}
	s.invalidate(ctx)
	logger.C(ctx).Info().Str("spec", set.Spec).Bool("dynamic", pattern != nil).Msg("set created")

	if pattern != nil {
		s.rescan(ctx, "set created: "+set.Spec)
	}
	return set, nil
}

// Update implements domain.AdminPort
// spec is immutable; a name change never touches membership
func (s *Service) Update(ctx context.Context, spec string, p domain.SetPatch) (domain.Set, error) {
	if p.Spec != nil && *p.Spec != spec {
		return domain.Set{}, perr.WithField(perr.Validationf("spec %q is immutable", spec), "spec")
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return domain.Set{}, perr.WithField(perr.Validationf("name cannot be empty"), "name")
	}
	if p.ClearSearchPattern && p.SearchPattern != nil {
		return domain.Set{}, perr.WithField(perr.Validationf("search_pattern and clear_search_pattern are exclusive"), query.FieldPattern)
	}
	var next *string
	if p.SearchPattern != nil {
		var err error
		if next, err = s.compile(p.SearchPattern); err != nil {
			return domain.Set{}, err
		}
	}

	var out domain.Set
	var patternChanged bool
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		cur, err := r.Get(ctx, spec)
		if err != nil {
			return err
		}
		if p.Name != nil {
			cur.Name = *p.Name
		}
		if p.Description != nil {
			cur.Description = *p.Description
		}
		if p.ClearSearchPattern || (p.SearchPattern != nil && next == nil) {
			patternChanged = cur.SearchPattern != nil
			cur.SearchPattern = nil
		} else if next != nil {
			patternChanged = cur.Pattern() != *next
			cur.SearchPattern = next
		}
		cur.UpdatedAt = s.clock.Now()
		out = cur
		return r.Update(ctx, cur)
	})
	if err != nil {
		return domain.Set{}, err
	}
	s.invalidate(ctx)
	logger.C(ctx).Info().Str("spec", spec).Bool("pattern_changed", patternChanged).Msg("set updated")

	if patternChanged {
		s.rescan(ctx, "set pattern changed: "+spec)
	}
	return out, nil
}

// Delete implements domain.AdminPort
// the set row and its retraction from records commit together
func (s *Service) Delete(ctx context.Context, spec string) error {
	var retracted int64
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		if _, err := r.Get(ctx, spec); err != nil {
			return err
		}
		has, err := r.HasChildren(ctx, spec)
		if err != nil {
			return err
		}
		if has {
			return perr.Conflictf("set %q has child sets; delete them first", spec)
		}
		if err := r.Delete(ctx, spec); err != nil {
			return err
		}
		if s.retractor != nil {
			n, err := s.retractor.RetractSet(ctx, q, spec)
			if err != nil {
				return err
			}
			retracted = n
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	logger.C(ctx).Info().Str("spec", spec).Int64("records", retracted).Msg("set deleted")
	return nil
}

// Snapshot implements domain.RegistryPort
// patterns that no longer compile are logged and left out of Queries
func (s *Service) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	sets, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	queries := make(map[string]query.Query, len(sets))
	for _, set := range sets {
		if set.SearchPattern == nil {
			continue
		}
		q, err := s.parser.Parse(*set.SearchPattern)
		if err != nil {
			s.metrics.PercolateError("parse")
			logger.C(ctx).Warn().Err(err).Str("spec", set.Spec).Msg("stored search pattern does not compile")
			continue
		}
		queries[set.Spec] = q
	}
	return domain.NewSnapshot(sets, queries), nil
}

// Invalidate drops the cached snapshot
func (s *Service) Invalidate(ctx context.Context) { s.invalidate(ctx) }

func (s *Service) load(ctx context.Context) ([]domain.Set, error) {
	sets, ok, err := s.cache.Get(ctx, snapshotKey)
	switch {
	case err != nil:
		s.metrics.CacheResult("error")
		logger.C(ctx).Warn().Err(err).Msg("set cache read failed; loading from storage")
	case ok:
		s.metrics.CacheResult("hit")
		return sets, nil
	default:
		s.metrics.CacheResult("miss")
	}

	v, err, _ := s.sf.Do(snapshotKey, func() (any, error) {
		gen := s.gen.Load()
		all, err := s.binder.Bind(s.db).All(ctx)
		if err != nil {
			return nil, err
		}
		if all == nil {
			all = []domain.Set{}
		}
		// a write that landed while loading would be masked by this entry
		if s.gen.Load() == gen {
			if err := s.cache.Set(ctx, snapshotKey, all); err != nil {
				logger.C(ctx).Warn().Err(err).Msg("set cache write failed")
			}
		}
		return all, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Set), nil
}

func (s *Service) invalidate(ctx context.Context) {
	s.gen.Add(1)
	if err := s.cache.Invalidate(ctx, snapshotKey); err != nil {
		logger.C(ctx).Error().Err(err).Msg("set cache invalidation failed; entries expire by ttl")
	}
}

func (s *Service) rescan(ctx context.Context, reason string) {
	if s.cfg.Rescan != RescanEager || s.rescanner == nil {
		return
	}
	if err := s.rescanner.Rescan(ctx, reason); err != nil {
		logger.C(ctx).Error().Err(err).Str("reason", reason).Msg("rescan failed; run recompute to converge")
	}
}

// compile trims a pattern and checks it parses; blank means no pattern
func (s *Service) compile(p *string) (*string, error) {
	if p == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil, nil
	}
	if _, err := s.parser.Parse(v); err != nil {
		return nil, err
	}
	return &v, nil
}
