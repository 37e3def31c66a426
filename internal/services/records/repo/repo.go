// Package repo provides record storage
package repo

import (
	"context"
	"time"

	"oaiserver/internal/modkit/repokit"
	"oaiserver/internal/services/records/domain"
)

// Storage defines the record repository
type Storage interface {
	// NextID reserves an id before the pre-commit hooks run
	NextID(ctx context.Context) (int64, error)
	Insert(ctx context.Context, r *domain.Record) error
	Update(ctx context.Context, r *domain.Record) error
	Get(ctx context.Context, id int64) (domain.Record, error)
	// GetForUpdate locks the row for the rest of the transaction
	GetForUpdate(ctx context.Context, id int64) (domain.Record, error)
	GetByOAIID(ctx context.Context, oaiID string) (domain.Record, error)
	List(ctx context.Context, f domain.Filter, limit int) ([]domain.Record, error)
	Count(ctx context.Context, f domain.Filter) (int64, error)
	// IDs pages live record ids in ascending order
	IDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
	WriteSets(ctx context.Context, id int64, sets []string, at time.Time) error
	// RetractSet removes spec from effective and manual membership everywhere
	RetractSet(ctx context.Context, spec string, at time.Time) (int64, error)
	Earliest(ctx context.Context) (time.Time, bool, error)
	// Purge hard deletes tombstones older than before
	Purge(ctx context.Context, before time.Time) (int64, error)
}

type (
	pg       struct{ q repokit.Queryer }
	pgBinder struct{}
)

// NewPG constructs a repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return pgBinder{} }

// Bind implements repokit.Binder
func (pgBinder) Bind(q repokit.Queryer) Storage { return &pg{q: repokit.RequireQueryer(q)} }
