//go:build integration_pg

package repo

import (
	"context"
	"errors"
	"testing"

	"oaiserver/internal/modkit/repokit"
	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/platform/testkit/pgtest"
	"oaiserver/internal/services/sets/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGStorage(t *testing.T) {
	db := pgtest.Start(t)
	ctx := context.Background()
	s := NewPG().Bind(db)

	pattern := "title:quantum"
	for _, spec := range []string{"b", "a", "a:x", "c"} {
		set := domain.Set{Spec: spec, Name: spec}
		if spec == "a:x" {
			set.SearchPattern = &pattern
		}
		require.NoError(t, s.Insert(ctx, set))
	}
	assert.True(t, perr.IsCode(s.Insert(ctx, domain.Set{Spec: "a", Name: "again"}), perr.ErrorCodeDuplicateKey))

	page, err := s.List(ctx, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a:x"}, specs(page))
	require.NotNil(t, page[1].SearchPattern)
	assert.Equal(t, pattern, *page[1].SearchPattern)

	has, err := s.HasChildren(ctx, "a")
	require.NoError(t, err)
	assert.True(t, has)
	has, err = s.HasChildren(ctx, "a:x")
	require.NoError(t, err)
	assert.False(t, has)

	boom := errors.New("boom")
	err = db.Tx(ctx, func(q repokit.Queryer) error {
		require.NoError(t, NewPG().Bind(q).Delete(ctx, "c"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	require.NoError(t, s.Update(ctx, domain.Set{Spec: "b", Name: "Bee"}))
	got, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "Bee", got.Name)
	assert.Nil(t, got.SearchPattern)

	require.NoError(t, s.Delete(ctx, "c"))
	_, err = s.Get(ctx, "c")
	assert.True(t, perr.IsCode(err, perr.ErrorCodeNotFound))
	assert.True(t, perr.IsCode(s.Delete(ctx, "c"), perr.ErrorCodeNotFound))

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a:x", "b"}, specs(all))
}
