package query

import (
	"context"
	"testing"
	"time"

	perr "oaiserver/internal/platform/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc() Document {
	return Document{
		"title":   "Quantum Café Theory",
		"type":    "article",
		"year":    float64(2021),
		"open":    true,
		"creator": []any{"Smith, Anna", "Jones, Bob"},
		"subject": []any{
			map[string]any{"term": "Physics"},
			map[string]any{"term": "Mathematics"},
		},
		"title_statement": map[string]any{"title": "Test0"},
	}
}

func TestLuceneMatches(t *testing.T) {
	p := NewLucene()
	cases := []struct {
		pattern string
		want    bool
	}{
		{"title:quantum", true},
		{"title:cafe", true},
		{"title:CAFÉ", true},
		{"title:classical", false},
		{"title_statement.title:Test0", true},
		{"title_statement.title:Test1", false},
		{`title:"cafe theory"`, true},
		{`title:"theory cafe"`, false},
		{"creator:Smi*", true},
		{"creator:*bob", true},
		{"creator:Sm?th", true},
		{"subject.term:physics", true},
		{"subject.term:(chemistry OR mathematics)", true},
		{"subject.term:(chemistry biology)", false},
		{"year:2021", true},
		{"open:true", true},
		{"type:article AND year:2020", false},
		{"type:article && year:2021", true},
		{"type:book OR title:quantum", true},
		{"type:book title:quantum", true},
		{"+type:article -title:quantum", false},
		{"type:article NOT title:classical", true},
		{"!type:book", true},
		{"-type:article", false},
		{"quantum", true},
		{`"anna"`, true},
		{"(type:book OR type:article) AND open:true", true},
		{"missing.field:x", false},
		{`title:quantum\:cafe`, true},
	}
	for _, tc := range cases {
		q, err := p.Parse(tc.pattern)
		require.NoError(t, err, tc.pattern)
		assert.Equal(t, tc.pattern, q.Source())
		got, err := q.Match(context.Background(), doc())
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.pattern)
	}
}

func TestLuceneSyntaxErrors(t *testing.T) {
	p := NewLucene()
	for _, pattern := range []string{"", "   ", "(title:a", "title:", `"open`, "a AND", "a:b:c", ")", "OR b"} {
		_, err := p.Parse(pattern)
		require.Error(t, err, pattern)
		assert.True(t, perr.IsCode(err, perr.ErrorCodeValidation), pattern)
		e, ok := perr.As(err)
		require.True(t, ok)
		assert.Equal(t, FieldPattern, e.Field())
	}
}

func TestLuceneCancelled(t *testing.T) {
	q, err := NewLucene().Parse("title:quantum")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = InProcess{}.Matches(ctx, doc(), q)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeUnavailable))
}

func TestCEL(t *testing.T) {
	p, err := NewCEL()
	require.NoError(t, err)

	q, err := p.Parse(`record.type == "article" && record.year > 2000.0`)
	require.NoError(t, err)
	ok, err := q.Match(context.Background(), doc())
	require.NoError(t, err)
	assert.True(t, ok)

	q, err = p.Parse(`"Jones, Bob" in record.creator`)
	require.NoError(t, err)
	ok, err = q.Match(context.Background(), doc())
	require.NoError(t, err)
	assert.True(t, ok)

	// documents without the field simply do not match
	q, err = p.Parse(`record.nope == "x"`)
	require.NoError(t, err)
	ok, err = q.Match(context.Background(), doc())
	require.NoError(t, err)
	assert.False(t, ok)

	q, err = p.Parse(`!(record.nope == "x")`)
	require.NoError(t, err)
	ok, err = q.Match(context.Background(), doc())
	require.NoError(t, err)
	assert.False(t, ok, "the whole expression is false, not its negation")

	q, err = p.Parse(`has(record.nope) || record.type == "article"`)
	require.NoError(t, err)
	ok, err = q.Match(context.Background(), doc())
	require.NoError(t, err)
	assert.True(t, ok)

	q, err = p.Parse(`record.title > 5`)
	require.NoError(t, err)
	_, err = q.Match(context.Background(), doc())
	assert.Error(t, err, "type errors still surface")

	_, err = p.Parse(`record.type ==`)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeValidation))

	_, err = p.Parse(`1 + 2`)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeValidation))
}

func TestRegistry(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)
	assert.Equal(t, []string{"cel", "lucene"}, r.Names())

	p, err := r.Get("lucene")
	require.NoError(t, err)
	assert.Equal(t, "lucene", p.Name())

	_, err = r.Get("solr")
	assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))
}

type countingParser struct {
	Lucene
	calls int
}

func (c *countingParser) Parse(pattern string) (Query, error) {
	c.calls++
	return c.Lucene.Parse(pattern)
}

func TestMemo(t *testing.T) {
	inner := &countingParser{}
	p := Memo(inner, 8, time.Minute)
	for i := 0; i < 3; i++ {
		_, err := p.Parse("title:a")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, inner.calls)
	_, err := p.Parse("(")
	assert.Error(t, err)
	_, err = p.Parse("(")
	assert.Error(t, err)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, "lucene", p.Name())
	assert.Same(t, inner, Memo(inner, 0, 0))
}

func TestLookup(t *testing.T) {
	d := doc()
	assert.Equal(t, []any{"Physics", "Mathematics"}, Lookup(d, "subject.term"))
	assert.Nil(t, Lookup(d, "subject.nope"))
	assert.Contains(t, Lookup(d, ""), "Test0")
}
