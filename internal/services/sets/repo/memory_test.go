package repo

import (
	"context"
	"errors"
	"testing"

	"oaiserver/internal/modkit/repokit"
	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/platform/store/mem"
	"oaiserver/internal/services/sets/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCRUD(t *testing.T) {
	ctx := context.Background()
	db := mem.New()
	m := NewMemory()
	s := m.Bind(db)

	for _, spec := range []string{"b", "a", "a:x", "c"} {
		require.NoError(t, s.Insert(ctx, domain.Set{Spec: spec, Name: spec}))
	}
	assert.True(t, perr.IsCode(s.Insert(ctx, domain.Set{Spec: "a"}), perr.ErrorCodeDuplicateKey))

	page, err := s.List(ctx, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a:x"}, specs(page))
	page, err = s.List(ctx, "a:x", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, specs(page))

	has, err := s.HasChildren(ctx, "a")
	require.NoError(t, err)
	assert.True(t, has)
	has, err = s.HasChildren(ctx, "b")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.Update(ctx, domain.Set{Spec: "b", Name: "Bee"}))
	got, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "Bee", got.Name)

	require.NoError(t, s.Delete(ctx, "c"))
	_, err = s.Get(ctx, "c")
	assert.True(t, perr.IsCode(err, perr.ErrorCodeNotFound))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestMemoryRollback(t *testing.T) {
	ctx := context.Background()
	db := mem.New()
	m := NewMemory()
	require.NoError(t, m.Bind(db).Insert(ctx, domain.Set{Spec: "keep", Name: "k"}))

	boom := errors.New("boom")
	err := db.Tx(ctx, func(q repokit.Queryer) error {
		s := m.Bind(q)
		require.NoError(t, s.Insert(ctx, domain.Set{Spec: "new"}))
		require.NoError(t, s.Update(ctx, domain.Set{Spec: "keep", Name: "changed"}))
		require.NoError(t, s.Delete(ctx, "keep"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	all, err := m.Bind(db).All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "k", all[0].Name)
}

func specs(xs []domain.Set) []string {
	out := make([]string, len(xs))
	for i, s := range xs {
		out[i] = s.Spec
	}
	return out
}
