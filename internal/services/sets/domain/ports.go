package domain

import (
	"context"

	"oaiserver/internal/modkit/repokit"
)

// RegistryPort is the set registry surface other modules consume
type RegistryPort interface {
	Get(ctx context.Context, spec string) (Set, error)
	List(ctx context.Context, after string, limit int) ([]Set, string, error)
	Count(ctx context.Context) (int64, error)
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// AdminPort mutates the registry
type AdminPort interface {
	Create(ctx context.Context, in SetInput) (Set, error)
	Update(ctx context.Context, spec string, p SetPatch) (Set, error)
	Delete(ctx context.Context, spec string) error
}

// Retractor removes a spec from every record inside the caller's transaction
type Retractor interface {
	RetractSet(ctx context.Context, q repokit.Queryer, spec string) (int64, error)
}

// Rescanner re-evaluates stored records after a pattern change
type Rescanner interface {
	Rescan(ctx context.Context, reason string) error
}
