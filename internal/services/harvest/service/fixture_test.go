package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"oaiserver/internal/core/formats"
	"oaiserver/internal/core/ident"
	"oaiserver/internal/core/oai"
	"oaiserver/internal/core/query"
	"oaiserver/internal/core/token"
	"oaiserver/internal/modkit/repokit"
	"oaiserver/internal/platform/cache"
	"oaiserver/internal/platform/store/mem"
	"oaiserver/internal/services/harvest/domain"
	records "oaiserver/internal/services/records/domain"
	recordsrepo "oaiserver/internal/services/records/repo"
	recordsservice "oaiserver/internal/services/records/service"
	sets "oaiserver/internal/services/sets/domain"
	setsrepo "oaiserver/internal/services/sets/repo"
	setsservice "oaiserver/internal/services/sets/service"

	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

// clock is a settable test clock
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fixture struct {
	clock   *clock
	sets    *setsservice.Service
	records *recordsservice.Service
	ids     *ident.Provider
	pages   *Paginator
	svc     *Service
}

func newFixture(t *testing.T, cfg PageConfig) *fixture {
	t.Helper()
	db := mem.New()
	f := &fixture{clock: &clock{t: epoch}, ids: ident.New(ident.Config{Prefix: "oai:test.org:"})}
	f.sets = setsservice.New(db, setsrepo.NewMemory(), query.NewLucene(), cache.NewMemory[[]sets.Set](4, time.Minute),
		setsservice.Config{MaxDepth: 3, Rescan: setsservice.RescanLazy},
		setsservice.WithClock(f.clock),
	)
	f.records = recordsservice.New(db, recordsrepo.NewMemory(), f.ids, recordsservice.Config{},
		recordsservice.WithClock(f.clock),
	)
	// manual assignments are the whole membership in these tests
	copySets := func(_ context.Context, _ repokit.Queryer, r *records.Record) error {
		r.Sets = append([]string{}, r.ManualSets...)
		return nil
	}
	f.records.BeforeInsert().Register("copy", copySets)
	f.records.BeforeUpdate().Register("copy", copySets)

	codec := token.New(token.Config{Expiry: time.Hour}, f.clock)
	f.pages = NewPaginator(f.records, f.sets, formats.Builtin(), codec, cfg, f.clock, nil)
	f.svc = New(f.pages, f.ids, IdentifyConfig{
		RepositoryName: "Test Repository",
		BaseURL:        "https://test.org/oai2d",
		AdminEmails:    []string{"admin@test.org"},
		Compressions:   []string{"identity"},
	})
	return f
}

func (f *fixture) set(t *testing.T, spec string) {
	t.Helper()
	_, err := f.sets.Create(context.Background(), sets.SetInput{Spec: spec, Name: "Set " + spec})
	require.NoError(t, err)
}

// add creates n records one minute apart, each in the given sets
func (f *fixture) add(t *testing.T, n int, specs ...string) []records.Record {
	t.Helper()
	out := make([]records.Record, 0, n)
	for i := 0; i < n; i++ {
		f.clock.Set(f.clock.Now().Add(time.Minute))
		r, err := f.records.Create(context.Background(), records.Input{
			Content:    map[string]any{"title": "Record", "creator": "Someone"},
			ManualSets: specs,
		})
		require.NoError(t, err)
		out = append(out, r)
	}
	return out
}

// addContent creates one record per document, one minute apart
func (f *fixture) addContent(t *testing.T, docs ...map[string]any) []records.Record {
	t.Helper()
	out := make([]records.Record, 0, len(docs))
	for _, d := range docs {
		f.clock.Set(f.clock.Now().Add(time.Minute))
		r, err := f.records.Create(context.Background(), records.Input{Content: d})
		require.NoError(t, err)
		out = append(out, r)
	}
	return out
}

func identifiers(items []domain.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Header.Identifier)
	}
	return out
}

func stamp(t time.Time) string { return oai.FormatDatestamp(t) }
