// Package repo provides the set registry storage
package repo

import (
	"context"

	"oaiserver/internal/modkit/repokit"
	"oaiserver/internal/services/sets/domain"
)

// Storage defines the set registry repository
type Storage interface {
	Get(ctx context.Context, spec string) (domain.Set, error)
	// List returns up to limit sets with spec > after, ordered by spec
	List(ctx context.Context, after string, limit int) ([]domain.Set, error)
	All(ctx context.Context) ([]domain.Set, error)
	Count(ctx context.Context) (int64, error)
	Insert(ctx context.Context, s domain.Set) error
	Update(ctx context.Context, s domain.Set) error
	Delete(ctx context.Context, spec string) error
	HasChildren(ctx context.Context, spec string) (bool, error)
}

type (
	pg       struct{ q repokit.Queryer }
	pgBinder struct{}
)

// NewPG constructs a repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return pgBinder{} }

// Bind implements repokit.Binder
func (pgBinder) Bind(q repokit.Queryer) Storage { return &pg{q: repokit.RequireQueryer(q)} }
