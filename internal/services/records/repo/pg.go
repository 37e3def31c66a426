package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/platform/store"
	"oaiserver/internal/services/records/domain"
)

const recordColumns = `id, uuid, oai_id, content, oai_sets, manual_sets, created_at, updated_at, deleted_at`

func scanRecord(r store.Row) (domain.Record, error) {
	var (
		rec   domain.Record
		oaiID *string
	)
	err := r.Scan(&rec.ID, &rec.UUID, &oaiID, &rec.Content, &rec.Sets, &rec.ManualSets,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.DeletedAt)
	if oaiID != nil {
		rec.OAIID = *oaiID
	}
	if rec.Sets == nil {
		rec.Sets = []string{}
	}
	if rec.ManualSets == nil {
		rec.ManualSets = []string{}
	}
	return rec, err
}

// arrays are NOT NULL in the schema
func array(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// NextID implements Storage
func (s *pg) NextID(ctx context.Context) (int64, error) {
	id, err := store.Scalar[int64](ctx, s.q, `SELECT nextval(pg_get_serial_sequence('records', 'id'))`)
	return id, perr.FromPostgres(err, "reserve record id")
}

// Insert implements Storage
func (s *pg) Insert(ctx context.Context, r *domain.Record) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.UUID, nullable(r.OAIID), r.Content, array(r.Sets), array(r.ManualSets),
		r.CreatedAt, r.UpdatedAt, r.DeletedAt)
	if perr.IsDuplicateKey(err) {
		return perr.Wrapf(err, perr.ErrorCodeDuplicateKey, "record %d already exists", r.ID)
	}
	return perr.FromPostgres(err, "insert record")
}

// Update implements Storage
func (s *pg) Update(ctx context.Context, r *domain.Record) error {
	err := store.ExecOne(ctx, s.q, `
		UPDATE records
		SET oai_id = $2, content = $3, oai_sets = $4, manual_sets = $5, updated_at = $6, deleted_at = $7
		WHERE id = $1`,
		r.ID, nullable(r.OAIID), r.Content, array(r.Sets), array(r.ManualSets), r.UpdatedAt, r.DeletedAt)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return perr.NotFoundf("record %d not found", r.ID)
	}
	return perr.FromPostgres(err, "update record")
}

func (s *pg) one(ctx context.Context, what, sql string, args ...any) (domain.Record, error) {
	rec, err := store.One(ctx, s.q, scanRecord, sql, args...)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return domain.Record{}, perr.NotFoundf("record %s not found", what)
	}
	return rec, perr.FromPostgres(err, "get record")
}

// Get implements Storage
func (s *pg) Get(ctx context.Context, id int64) (domain.Record, error) {
	return s.one(ctx, fmt.Sprint(id), `SELECT `+recordColumns+` FROM records WHERE id = $1`, id)
}

// GetForUpdate implements Storage
func (s *pg) GetForUpdate(ctx context.Context, id int64) (domain.Record, error) {
	return s.one(ctx, fmt.Sprint(id), `SELECT `+recordColumns+` FROM records WHERE id = $1 FOR UPDATE`, id)
}

// GetByOAIID implements Storage
func (s *pg) GetByOAIID(ctx context.Context, oaiID string) (domain.Record, error) {
	return s.one(ctx, fmt.Sprintf("%q", oaiID), `SELECT `+recordColumns+` FROM records WHERE oai_id = $1`, oaiID)
}

// where renders f as a WHERE clause, appending to args
func where(f domain.Filter, args *[]any) string {
	arg := func(v any) string { *args = append(*args, v); return fmt.Sprintf("$%d", len(*args)) }

	var sb strings.Builder
	sb.WriteString("WHERE id > " + arg(f.AfterID) + "\n")
	if f.Set != "" {
		p := arg(f.Set)
		sb.WriteString("  AND EXISTS (SELECT 1 FROM unnest(oai_sets) s WHERE s = " + p + " OR starts_with(s, " + p + " || ':'))\n")
	}
	if f.Window.From != nil {
		sb.WriteString("  AND updated_at >= " + arg(*f.Window.From) + "\n")
	}
	if f.Window.Until != nil {
		sb.WriteString("  AND updated_at <= " + arg(*f.Window.Until) + "\n")
	}
	switch {
	case !f.Deleted.Include:
		sb.WriteString("  AND deleted_at IS NULL\n")
	case f.Deleted.Since != nil:
		sb.WriteString("  AND (deleted_at IS NULL OR deleted_at >= " + arg(*f.Deleted.Since) + ")\n")
	}
	return sb.String()
}

// List implements Storage
func (s *pg) List(ctx context.Context, f domain.Filter, limit int) ([]domain.Record, error) {
	var args []any
	sql := `SELECT ` + recordColumns + ` FROM records ` + where(f, &args)
	args = append(args, limit)
	sql += fmt.Sprintf("ORDER BY id\nLIMIT $%d", len(args))
	out, err := store.Many(ctx, s.q, scanRecord, sql, args...)
	return out, perr.FromPostgres(err, "list records")
}

// Count implements Storage
func (s *pg) Count(ctx context.Context, f domain.Filter) (int64, error) {
	var args []any
	n, err := store.Scalar[int64](ctx, s.q, `SELECT count(*) FROM records `+where(f, &args), args...)
	return n, perr.FromPostgres(err, "count records")
}

// IDs implements Storage
func (s *pg) IDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	out, err := store.Many(ctx, s.q, func(r store.Row) (int64, error) {
		var id int64
		return id, r.Scan(&id)
	}, `SELECT id FROM records WHERE id > $1 AND deleted_at IS NULL ORDER BY id LIMIT $2`, afterID, limit)
	return out, perr.FromPostgres(err, "page record ids")
}

// WriteSets implements Storage
func (s *pg) WriteSets(ctx context.Context, id int64, sets []string, at time.Time) error {
	err := store.ExecOne(ctx, s.q,
		`UPDATE records SET oai_sets = $2, updated_at = $3 WHERE id = $1`, id, array(sets), at)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return perr.NotFoundf("record %d not found", id)
	}
	return perr.FromPostgres(err, "write record sets")
}

// RetractSet implements Storage
func (s *pg) RetractSet(ctx context.Context, spec string, at time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE records
		SET oai_sets = array_remove(oai_sets, $1),
			manual_sets = array_remove(manual_sets, $1),
			updated_at = $2
		WHERE $1 = ANY(oai_sets) OR $1 = ANY(manual_sets)`, spec, at)
	if err != nil {
		return 0, perr.FromPostgres(err, "retract set")
	}
	return tag.RowsAffected(), nil
}

// Earliest implements Storage
func (s *pg) Earliest(ctx context.Context) (time.Time, bool, error) {
	t, err := store.Scalar[*time.Time](ctx, s.q, `SELECT min(updated_at) FROM records`)
	if err != nil {
		return time.Time{}, false, perr.FromPostgres(err, "earliest datestamp")
	}
	if t == nil {
		return time.Time{}, false, nil
	}
	return *t, true, nil
}

// Purge implements Storage
func (s *pg) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM records WHERE deleted_at IS NOT NULL AND deleted_at < $1`, before)
	if err != nil {
		return 0, perr.FromPostgres(err, "purge tombstones")
	}
	return tag.RowsAffected(), nil
}
