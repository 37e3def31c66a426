// Package service buffers harvest events and writes them in batches
package service

import (
	"context"
	"sync/atomic"
	"time"

	"oaiserver/internal/platform/logger"
	harvest "oaiserver/internal/services/harvest/domain"
	"oaiserver/internal/services/harvestlog/domain"
	"oaiserver/internal/services/harvestlog/repo"
)

// Config for the harvest log
type Config struct {
	// Batch is the most entries written at once
	Batch int
	// Buffer bounds queued entries; events beyond it are dropped
	Buffer     int
	FlushEvery time.Duration
	HardLimit  int
}

// Service implements harvest.EventSink, domain.WriterPort and domain.QueryPort
type Service struct {
	storage repo.Storage
	cfg     Config
	queue   chan domain.Entry
	dropped atomic.Int64
}

// New constructs the harvest log over storage
func New(storage repo.Storage, cfg Config) *Service {
	if storage == nil {
		panic("harvestlog.Service requires storage")
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 500
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 4096
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 2 * time.Second
	}
	if cfg.HardLimit <= 0 {
		cfg.HardLimit = 100
	}
	return &Service{storage: storage, cfg: cfg, queue: make(chan domain.Entry, cfg.Buffer)}
}

// Record implements harvest.EventSink; it never blocks
func (s *Service) Record(ctx context.Context, e harvest.Event) {
	select {
	case s.queue <- domain.Entry{
		At:       e.At,
		Verb:     e.Verb,
		Outcome:  e.Outcome,
		Set:      e.Set,
		Prefix:   e.Prefix,
		Items:    e.Items,
		Resumed:  e.Resumed,
		Duration: e.Duration,
	}:
	default:
		if s.dropped.Add(1)%1000 == 1 {
			logger.C(ctx).Warn().Int64("dropped", s.dropped.Load()).Msg("harvest log buffer full; dropping events")
		}
	}
}

// Dropped is the number of events lost to a full buffer
func (s *Service) Dropped() int64 { return s.dropped.Load() }

// Run writes queued entries until ctx ends, then flushes what is left
func (s *Service) Run(ctx context.Context) error {
	log := logger.Named("harvestlog")
	tick := time.NewTicker(s.cfg.FlushEvery)
	defer tick.Stop()

	batch := make([]domain.Entry, 0, s.cfg.Batch)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := s.storage.WriteBatch(ctx, batch); err != nil {
			log.Error().Err(err).Int("entries", len(batch)).Msg("harvest log write failed; entries dropped")
		}
		batch = batch[:0]
	}

	for {
		select {
		case e := <-s.queue:
			batch = append(batch, e)
			if len(batch) >= s.cfg.Batch {
				flush(ctx)
			}
		case <-tick.C:
			flush(ctx)
		case <-ctx.Done():
		drain:
			for {
				select {
				case e := <-s.queue:
					batch = append(batch, e)
				default:
					break drain
				}
			}
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			flush(fctx)
			cancel()
			return nil
		}
	}
}

// WriteBatch implements domain.WriterPort
func (s *Service) WriteBatch(ctx context.Context, xs []domain.Entry) error {
	return s.storage.WriteBatch(ctx, xs)
}

// ByVerb implements domain.QueryPort
func (s *Service) ByVerb(ctx context.Context, w domain.Window) ([]domain.VerbStat, error) {
	return s.storage.ByVerb(ctx, w)
}

// BySet implements domain.QueryPort
func (s *Service) BySet(ctx context.Context, w domain.Window, limit int) ([]domain.SetStat, error) {
	if limit <= 0 || limit > s.cfg.HardLimit {
		limit = s.cfg.HardLimit
	}
	return s.storage.BySet(ctx, w, limit)
}
