package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"oaiserver/internal/core/query"
	"oaiserver/internal/modkit/repokit"
	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/platform/metrics"
	records "oaiserver/internal/services/records/domain"
	sets "oaiserver/internal/services/sets/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(t *testing.T, patterns map[string]string, manual ...string) *sets.Snapshot {
	t.Helper()
	lucene := query.NewLucene()
	var list []sets.Set
	queries := map[string]query.Query{}
	for _, spec := range manual {
		list = append(list, sets.Set{Spec: spec, Name: spec})
	}
	for spec, p := range patterns {
		pat := p
		list = append(list, sets.Set{Spec: spec, Name: spec, SearchPattern: &pat})
		q, err := lucene.Parse(p)
		require.NoError(t, err)
		queries[spec] = q
	}
	slices.SortFunc(list, func(a, b sets.Set) int { return strings.Compare(a.Spec, b.Spec) })
	return sets.NewSnapshot(list, queries)
}

func titled(id int64, title string) *records.Record {
	return &records.Record{ID: id, Content: map[string]any{"title": title}}
}

func TestEvaluateScenario(t *testing.T) {
	snap := snapshot(t, map[string]string{
		"c": "title:Test0",
		"d": "title:Test1",
		"e": "title:Test2 OR title:Test3",
		"f": "title:Test2",
	})
	e := NewEvaluator()
	ctx := context.Background()

	cases := []struct {
		title string
		want  []string
	}{
		{"Test0", []string{"c"}},
		{"Test2", []string{"e", "f"}},
		{"NotFound", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.title, func(t *testing.T) {
			res, err := e.Evaluate(ctx, titled(1, tc.title), snap)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Sets)
			assert.Empty(t, res.Failed)
		})
	}
}

func TestEvaluateKeepsExistingManualSets(t *testing.T) {
	snap := snapshot(t, map[string]string{"q": "title:quantum"}, "m")
	rec := titled(1, "quantum")
	rec.ManualSets = []string{"m", "gone"}
	rec.Sets = []string{"m", "q"}

	res, err := NewEvaluator().Evaluate(context.Background(), rec, snap)
	require.NoError(t, err)
	assert.Equal(t, []string{"m", "q"}, res.Sets)
	assert.False(t, res.Changed)

	rec.Content["title"] = "classical"
	res, err = NewEvaluator().Evaluate(context.Background(), rec, snap)
	require.NoError(t, err)
	assert.Equal(t, []string{"m"}, res.Sets)
	assert.True(t, res.Changed)
}

type failingMatcher struct {
	fail map[string]error
}

func (f failingMatcher) Matches(ctx context.Context, doc query.Document, q query.Query) (bool, error) {
	if err, ok := f.fail[q.Source()]; ok {
		return false, err
	}
	return query.InProcess{}.Matches(ctx, doc, q)
}

func TestEvaluateIsolatesBrokenSets(t *testing.T) {
	snap := snapshot(t, map[string]string{"a": "title:x", "b": "title:y"})
	m := metrics.New()
	e := NewEvaluator(
		WithMatcher(failingMatcher{fail: map[string]error{"title:x": errors.New("bad field")}}),
		WithEvaluatorMetrics(m),
	)

	res, err := e.Evaluate(context.Background(), titled(1, "x y"), snap)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.Sets)
	assert.Empty(t, res.Failed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PercolateErrors.WithLabelValues("eval")))
}

func TestEvaluateReportsTransientFailures(t *testing.T) {
	snap := snapshot(t, map[string]string{"a": "title:x", "b": "title:y"})
	e := NewEvaluator(WithMatcher(failingMatcher{fail: map[string]error{
		"title:x": query.Transient(errors.New("connection refused")),
	}}))

	res, err := e.Evaluate(context.Background(), titled(1, "x y"), snap)
	require.Error(t, err)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeUnavailable))
	assert.Equal(t, []string{"b"}, res.Sets)
	assert.Equal(t, []string{"a"}, res.Failed)
}

type blockingMatcher struct{}

func (blockingMatcher) Matches(ctx context.Context, _ query.Document, _ query.Query) (bool, error) {
	<-ctx.Done()
	return false, query.Transient(ctx.Err())
}

func TestEvaluateBoundsEachCall(t *testing.T) {
	snap := snapshot(t, map[string]string{"a": "title:x"})
	m := metrics.New()
	e := NewEvaluator(WithMatcher(blockingMatcher{}), WithSearchTimeout(10*time.Millisecond), WithEvaluatorMetrics(m))

	start := time.Now()
	_, err := e.Evaluate(context.Background(), titled(1, "x"), snap)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeUnavailable))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PercolateErrors.WithLabelValues("timeout")))
}

type fakeSearcher struct {
	hits map[string][]int64
	err  error
}

func (f fakeSearcher) Search(_ context.Context, q query.Query) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hits[q.Source()], nil
}

func TestEvaluateWithSearcher(t *testing.T) {
	snap := snapshot(t, map[string]string{"a": "title:x", "b": "title:y"})
	e := NewEvaluator(WithSearcher(fakeSearcher{hits: map[string][]int64{
		"title:x": {1, 2},
		"title:y": {3},
	}}))
	res, err := e.Evaluate(context.Background(), titled(2, "irrelevant"), snap)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Sets)

	down := NewEvaluator(WithSearcher(fakeSearcher{err: query.Transient(errors.New("down"))}))
	res, err = down.Evaluate(context.Background(), titled(2, "x"), snap)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeUnavailable))
	assert.Equal(t, []string{"a", "b"}, res.Failed)
}

type snapSource struct{ snap *sets.Snapshot }

func (s snapSource) Snapshot(context.Context) (*sets.Snapshot, error) { return s.snap, nil }

type hookTarget struct {
	ins, upd repokit.Hooks[*records.Record]
}

func (h *hookTarget) BeforeInsert() *repokit.Hooks[*records.Record] { return &h.ins }
func (h *hookTarget) BeforeUpdate() *repokit.Hooks[*records.Record] { return &h.upd }

func TestAnnotatorSignalsAreIdempotent(t *testing.T) {
	snap := snapshot(t, map[string]string{"q": "title:quantum"})
	target := &hookTarget{}
	a := NewAnnotator(NewEvaluator(), snapSource{snap}, target, nil)

	a.RegisterSignals()
	a.RegisterSignals()
	assert.Equal(t, []string{HookName}, target.ins.Names())
	assert.Equal(t, []string{HookName}, target.upd.Names())

	calls := 0
	target.ins.Register("count", func(_ context.Context, _ repokit.Queryer, r *records.Record) error {
		calls++
		assert.Equal(t, []string{"q"}, r.Sets)
		return nil
	})
	require.NoError(t, target.ins.Run(context.Background(), nil, titled(1, "quantum")))
	assert.Equal(t, 1, calls)

	a.UnregisterSignals()
	a.UnregisterSignals()
	assert.False(t, target.ins.Registered(HookName))
	assert.False(t, target.upd.Registered(HookName))
}

func TestAnnotatorTransientPolicy(t *testing.T) {
	snap := snapshot(t, map[string]string{"a": "title:x", "b": "title:y"})
	eval := NewEvaluator(WithMatcher(failingMatcher{fail: map[string]error{
		"title:x": query.Transient(errors.New("down")),
	}}))

	strict := NewAnnotator(eval, snapSource{snap}, &hookTarget{}, nil)
	rec := titled(1, "x y")
	rec.Sets = []string{"a"}
	_, err := strict.Annotate(context.Background(), nil, rec)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeUnavailable))
	assert.Equal(t, []string{"a"}, rec.Sets)

	lenient := NewAnnotator(eval, snapSource{snap}, &hookTarget{}, nil, WithFailOnTransient(false))
	changed, err := lenient.Annotate(context.Background(), nil, rec)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"a", "b"}, rec.Sets)
}
