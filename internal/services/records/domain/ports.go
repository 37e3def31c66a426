package domain

import (
	"context"
	"time"

	"oaiserver/internal/modkit/repokit"
)

// ReaderPort is the read surface the harvest module consumes
type ReaderPort interface {
	Get(ctx context.Context, id int64) (Record, error)
	GetByOAIID(ctx context.Context, oaiID string) (Record, error)
	// List returns up to limit records passing f in ascending id order
	List(ctx context.Context, f Filter, limit int) ([]Record, error)
	Count(ctx context.Context, f Filter) (int64, error)
	// Earliest is the oldest datestamp; ok is false on an empty repository
	Earliest(ctx context.Context) (t time.Time, ok bool, err error)
}

// AdminPort mutates records
type AdminPort interface {
	Create(ctx context.Context, in Input) (Record, error)
	Update(ctx context.Context, id int64, in ContentInput) (Record, error)
	Delete(ctx context.Context, id int64) error
	Assign(ctx context.Context, id int64, spec string) (Record, error)
	Unassign(ctx context.Context, id int64, spec string) (Record, error)
	Recompute(ctx context.Context) (Stats, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Annotator recomputes a record's set membership in place
// changed reports whether Sets differs from what was stored
type Annotator interface {
	Annotate(ctx context.Context, q repokit.Queryer, rec *Record) (changed bool, err error)
}

// SetChecker validates manual assignments
type SetChecker interface {
	Exists(ctx context.Context, spec string) (bool, error)
}
