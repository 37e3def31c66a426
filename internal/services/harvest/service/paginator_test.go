package service

import (
	"context"
	"testing"
	"time"

	"oaiserver/internal/core/oai"
	"oaiserver/internal/core/token"
	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/services/harvest/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func traverse(t *testing.T, f *fixture, verb oai.Verb, sel token.Selector) ([]string, []*domain.Token) {
	t.Helper()
	ctx := context.Background()
	page, err := f.pages.FirstPage(ctx, verb, sel)
	require.NoError(t, err)
	ids := identifiers(page.Items)
	toks := []*domain.Token{page.Token}
	for page.Token != nil && page.Token.Value != "" {
		page, err = f.pages.NextPage(ctx, verb, page.Token.Value)
		require.NoError(t, err)
		ids = append(ids, identifiers(page.Items)...)
		toks = append(toks, page.Token)
	}
	return ids, toks
}

func TestFullTraversalIsExact(t *testing.T) {
	f := newFixture(t, PageConfig{PageSize: 10})
	recs := f.add(t, 25)

	ids, toks := traverse(t, f, oai.VerbListIdentifiers, token.Selector{MetadataPrefix: "oai_dc"})
	want := make([]string, 0, len(recs))
	for _, r := range recs {
		want = append(want, r.OAIID)
	}
	assert.Equal(t, want, ids)

	require.Len(t, toks, 3)
	assert.Equal(t, 0, toks[0].Cursor)
	assert.Equal(t, int64(25), toks[0].CompleteListSize)
	require.NotNil(t, toks[0].ExpirationDate)
	assert.True(t, toks[0].ExpirationDate.Equal(f.clock.Now().Add(time.Hour)))
	assert.Equal(t, 10, toks[1].Cursor)
	assert.Empty(t, toks[2].Value)
	assert.Equal(t, 20, toks[2].Cursor)
	assert.Equal(t, int64(25), toks[2].CompleteListSize)
}

func TestSinglePageHasNoToken(t *testing.T) {
	f := newFixture(t, PageConfig{PageSize: 10})
	f.add(t, 3)
	page, err := f.pages.FirstPage(context.Background(), oai.VerbListRecords, token.Selector{MetadataPrefix: "oai_dc"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.Nil(t, page.Token)
	assert.Contains(t, string(page.Items[0].Metadata), "<dc:title>Record</dc:title>")
}

func TestInsertAfterCursorIsIncluded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PageConfig{PageSize: 2})
	recs := f.add(t, 3)

	page, err := f.pages.FirstPage(ctx, oai.VerbListIdentifiers, token.Selector{MetadataPrefix: "oai_dc"})
	require.NoError(t, err)
	require.NotNil(t, page.Token)
	late := f.add(t, 1)

	page, err = f.pages.NextPage(ctx, oai.VerbListIdentifiers, page.Token.Value)
	require.NoError(t, err)
	assert.Equal(t, []string{recs[2].OAIID, late[0].OAIID}, identifiers(page.Items))
}

func TestSetSelector(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PageConfig{PageSize: 10})
	f.set(t, "a")
	f.set(t, "a:b")
	f.set(t, "z")
	f.add(t, 2, "a")
	f.add(t, 2, "a:b")
	f.add(t, 1, "z")

	page, err := f.pages.FirstPage(ctx, oai.VerbListIdentifiers, token.Selector{MetadataPrefix: "oai_dc", Set: "a"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 4)

	page, err = f.pages.FirstPage(ctx, oai.VerbListIdentifiers, token.Selector{MetadataPrefix: "oai_dc", Set: "a:b"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, []string{"a:b"}, page.Items[0].Header.SetSpecs)
}

func TestListingErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PageConfig{PageSize: 10})
	sel := token.Selector{MetadataPrefix: "oai_dc"}

	_, err := f.pages.FirstPage(ctx, oai.VerbListRecords, sel)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeNoRecordsMatch), "empty repository")

	f.add(t, 2)
	_, err = f.pages.FirstPage(ctx, oai.VerbListRecords, token.Selector{MetadataPrefix: "oai_dc", Set: "x"})
	assert.True(t, perr.IsCode(err, perr.ErrorCodeNoSetHierarchy), "no sets at all")

	f.set(t, "empty")
	_, err = f.pages.FirstPage(ctx, oai.VerbListRecords, token.Selector{MetadataPrefix: "oai_dc", Set: "x"})
	assert.True(t, perr.IsCode(err, perr.ErrorCodeBadArgument), "unknown set")
	assert.Equal(t, oai.ArgSet, perr.WireFrom(err).Field)

	_, err = f.pages.FirstPage(ctx, oai.VerbListRecords, token.Selector{MetadataPrefix: "oai_dc", Set: "empty"})
	assert.True(t, perr.IsCode(err, perr.ErrorCodeNoRecordsMatch), "known set without records")

	_, err = f.pages.FirstPage(ctx, oai.VerbListRecords, token.Selector{MetadataPrefix: "oai_dc", From: "2024-02-01", Until: "2024-01-01"})
	assert.True(t, perr.IsCode(err, perr.ErrorCodeBadArgument), "from after until")

	_, err = f.pages.FirstPage(ctx, oai.VerbListRecords, token.Selector{MetadataPrefix: "oai_dc", From: "2024-01-01", Until: "2024-01-02T00:00:00Z"})
	assert.True(t, perr.IsCode(err, perr.ErrorCodeBadArgument), "mixed granularity")

	_, err = f.pages.FirstPage(ctx, oai.VerbListRecords, token.Selector{MetadataPrefix: "marc21"})
	assert.True(t, perr.IsCode(err, perr.ErrorCodeCannotDisseminateFormat))
}

func TestDateWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PageConfig{PageSize: 10})
	recs := f.add(t, 5)

	sel := token.Selector{MetadataPrefix: "oai_dc", From: stamp(recs[1].UpdatedAt), Until: stamp(recs[3].UpdatedAt)}
	page, err := f.pages.FirstPage(ctx, oai.VerbListIdentifiers, sel)
	require.NoError(t, err)
	assert.Equal(t, []string{recs[1].OAIID, recs[2].OAIID, recs[3].OAIID}, identifiers(page.Items))

	day := token.Selector{MetadataPrefix: "oai_dc", From: "2024-01-10", Until: "2024-01-10"}
	page, err = f.pages.FirstPage(ctx, oai.VerbListIdentifiers, day)
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)
}

func TestTokenChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PageConfig{PageSize: 1})
	f.set(t, "a")
	f.add(t, 3, "a")

	page, err := f.pages.FirstPage(ctx, oai.VerbListIdentifiers, token.Selector{MetadataPrefix: "oai_dc", Set: "a"})
	require.NoError(t, err)
	tok := page.Token.Value

	_, err = f.pages.NextPage(ctx, oai.VerbListRecords, tok)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeBadResumptionToken), "verb mismatch")

	_, err = f.pages.NextPage(ctx, oai.VerbListIdentifiers, "%%%")
	assert.True(t, perr.IsCode(err, perr.ErrorCodeBadResumptionToken), "malformed")

	require.NoError(t, f.sets.Delete(ctx, "a"))
	f.set(t, "b")
	_, err = f.pages.NextPage(ctx, oai.VerbListIdentifiers, tok)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeBadResumptionToken), "set vanished")

	f.clock.Set(f.clock.Now().Add(time.Hour + time.Second))
	_, err = f.pages.NextPage(ctx, oai.VerbListIdentifiers, tok)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeBadResumptionToken), "expired")
}

func TestDeletedPolicy(t *testing.T) {
	ctx := context.Background()
	sel := token.Selector{MetadataPrefix: "oai_dc"}

	for _, tc := range []struct {
		name   string
		cfg    PageConfig
		listed int
	}{
		{"no", PageConfig{Deleted: oai.DeletedNo}, 2},
		{"persistent", PageConfig{Deleted: oai.DeletedPersistent}, 3},
		{"transient within retention", PageConfig{Deleted: oai.DeletedTransient, Retention: 48 * time.Hour}, 3},
		{"transient past retention", PageConfig{Deleted: oai.DeletedTransient, Retention: time.Hour}, 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.cfg)
			recs := f.add(t, 3)
			require.NoError(t, f.records.Delete(ctx, recs[0].ID))
			f.clock.Set(f.clock.Now().Add(2 * time.Hour))

			page, err := f.pages.FirstPage(ctx, oai.VerbListRecords, sel)
			require.NoError(t, err)
			assert.Len(t, page.Items, tc.listed)
			if tc.listed == 3 {
				assert.True(t, page.Items[0].Header.Deleted)
				assert.Empty(t, page.Items[0].Metadata)
			}
		})
	}
}

func TestListSetsPaging(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PageConfig{PageSize: 2})

	_, err := f.pages.FirstSets(ctx)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeNoSetHierarchy))

	for _, s := range []string{"c", "a", "b"} {
		f.set(t, s)
	}
	page, err := f.pages.FirstSets(ctx)
	require.NoError(t, err)
	require.Len(t, page.Sets, 2)
	assert.Equal(t, "a", page.Sets[0].Spec)
	require.NotNil(t, page.Token)
	assert.Equal(t, int64(3), page.Token.CompleteListSize)

	page, err = f.pages.NextSets(ctx, page.Token.Value)
	require.NoError(t, err)
	require.Len(t, page.Sets, 1)
	assert.Equal(t, "c", page.Sets[0].Spec)
	assert.Empty(t, page.Token.Value)
	assert.Equal(t, 2, page.Token.Cursor)
}

func TestFirstPageWithoutDisseminableRecords(t *testing.T) {
	f := newFixture(t, PageConfig{PageSize: 2})
	plain := map[string]any{"foo": "bar"}
	f.addContent(t, plain, plain, plain)

	for _, verb := range []oai.Verb{oai.VerbListRecords, oai.VerbListIdentifiers} {
		_, err := f.pages.FirstPage(context.Background(), verb, token.Selector{MetadataPrefix: "oai_dc"})
		assert.True(t, perr.IsCode(err, perr.ErrorCodeNoRecordsMatch), "%s: %v", verb, err)
	}
}

func TestPagesReadPastSkippedRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PageConfig{PageSize: 2})
	plain := map[string]any{"foo": "bar"}
	dc := map[string]any{"title": "Record"}

	// a page of skipped rows ahead of the only qualifying record
	recs := f.addContent(t, plain, plain, plain, dc)
	page, err := f.pages.FirstPage(ctx, oai.VerbListRecords, token.Selector{MetadataPrefix: "oai_dc"})
	require.NoError(t, err)
	assert.Equal(t, []string{recs[3].OAIID}, identifiers(page.Items))
	assert.Nil(t, page.Token)

	f = newFixture(t, PageConfig{PageSize: 2})
	recs = f.addContent(t, dc, plain, plain, dc, dc)
	ids, toks := traverse(t, f, oai.VerbListIdentifiers, token.Selector{MetadataPrefix: "oai_dc"})
	assert.Equal(t, []string{recs[0].OAIID, recs[3].OAIID, recs[4].OAIID}, ids)
	require.Len(t, toks, 2)
	assert.Equal(t, int64(-1), toks[0].CompleteListSize, "stored count includes skipped rows")
	assert.Equal(t, 2, toks[1].Cursor)
	assert.Empty(t, toks[1].Value)
}
