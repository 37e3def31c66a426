package repo

import (
	"context"

	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/platform/store"
	"oaiserver/internal/services/sets/domain"
)

const setColumns = `spec, name, description, search_pattern, created_at, updated_at`

func scanSet(r store.Row) (domain.Set, error) {
	var s domain.Set
	err := r.Scan(&s.Spec, &s.Name, &s.Description, &s.SearchPattern, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// Get implements Storage
func (s *pg) Get(ctx context.Context, spec string) (domain.Set, error) {
	set, err := store.One(ctx, s.q, scanSet,
		`SELECT `+setColumns+` FROM oai_sets WHERE spec = $1`, spec)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return domain.Set{}, perr.NotFoundf("set %q not found", spec)
	}
	return set, perr.FromPostgres(err, "get set")
}

// List implements Storage
func (s *pg) List(ctx context.Context, after string, limit int) ([]domain.Set, error) {
	out, err := store.Many(ctx, s.q, scanSet,
		`SELECT `+setColumns+` FROM oai_sets WHERE spec > $1 ORDER BY spec LIMIT $2`, after, limit)
	return out, perr.FromPostgres(err, "list sets")
}

// All implements Storage
func (s *pg) All(ctx context.Context) ([]domain.Set, error) {
	out, err := store.Many(ctx, s.q, scanSet, `SELECT `+setColumns+` FROM oai_sets ORDER BY spec`)
	return out, perr.FromPostgres(err, "load sets")
}

// Count implements Storage
func (s *pg) Count(ctx context.Context) (int64, error) {
	n, err := store.Scalar[int64](ctx, s.q, `SELECT count(*) FROM oai_sets`)
	return n, perr.FromPostgres(err, "count sets")
}

// Insert implements Storage
func (s *pg) Insert(ctx context.Context, set domain.Set) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO oai_sets (`+setColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		set.Spec, set.Name, set.Description, set.SearchPattern, set.CreatedAt, set.UpdatedAt)
	if perr.IsDuplicateKey(err) {
		return perr.Wrapf(err, perr.ErrorCodeDuplicateKey, "set %q already exists", set.Spec)
	}
	return perr.FromPostgres(err, "insert set")
}

// Update implements Storage
func (s *pg) Update(ctx context.Context, set domain.Set) error {
	err := store.ExecOne(ctx, s.q, `
		UPDATE oai_sets
		SET name = $2, description = $3, search_pattern = $4, updated_at = $5
		WHERE spec = $1`,
		set.Spec, set.Name, set.Description, set.SearchPattern, set.UpdatedAt)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return perr.NotFoundf("set %q not found", set.Spec)
	}
	return perr.FromPostgres(err, "update set")
}

// Delete implements Storage
func (s *pg) Delete(ctx context.Context, spec string) error {
	err := store.ExecOne(ctx, s.q, `DELETE FROM oai_sets WHERE spec = $1`, spec)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return perr.NotFoundf("set %q not found", spec)
	}
	return perr.FromPostgres(err, "delete set")
}

// HasChildren implements Storage
func (s *pg) HasChildren(ctx context.Context, spec string) (bool, error) {
	ok, err := store.Scalar[bool](ctx, s.q,
		`SELECT EXISTS (SELECT 1 FROM oai_sets WHERE starts_with(spec, $1 || ':'))`, spec)
	return ok, perr.FromPostgres(err, "check child sets")
}
