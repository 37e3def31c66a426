package module

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	modkit "oaiserver/internal/modkit"
	"oaiserver/internal/platform/config"
	"oaiserver/internal/platform/metrics"
	phttp "oaiserver/internal/platform/net/http"
	"oaiserver/internal/platform/store/mem"
	records "oaiserver/internal/services/records/domain"
	recordsmod "oaiserver/internal/services/records/module"
	sets "oaiserver/internal/services/sets/domain"
	setsmod "oaiserver/internal/services/sets/module"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type world struct {
	sets    setsmod.Ports
	records recordsmod.Ports
	mod     *Module
}

func newWorld(t *testing.T) world {
	t.Helper()
	t.Setenv("OAI_SETS_RESCAN", "eager")
	t.Setenv("OAI_REGISTER_RECORD_SIGNALS", "true")
	t.Setenv("CACHE_BACKEND", "memory")
	deps := modkit.Deps{Cfg: config.New(), PG: mem.New(), Metrics: metrics.New()}

	sm, err := setsmod.New(context.Background(), deps)
	require.NoError(t, err)
	rm := recordsmod.New(deps)
	w := world{
		sets:    sm.Ports().(setsmod.Ports),
		records: rm.Ports().(recordsmod.Ports),
	}
	w.mod = New(deps, w.sets, w.records)
	return w
}

func pattern(s string) *string { return &s }

func (w world) set(t *testing.T, spec, p string) {
	t.Helper()
	in := sets.SetInput{Spec: spec, Name: "Set " + spec}
	if p != "" {
		in.SearchPattern = pattern(p)
	}
	_, err := w.sets.Admin.Create(context.Background(), in)
	require.NoError(t, err)
}

func (w world) record(t *testing.T, title string, manual ...string) records.Record {
	t.Helper()
	r, err := w.records.Admin.Create(context.Background(), records.Input{
		Content:    map[string]any{"title": title},
		ManualSets: manual,
	})
	require.NoError(t, err)
	return r
}

func (w world) membership(t *testing.T, id int64) []string {
	t.Helper()
	r, err := w.records.Reader.Get(context.Background(), id)
	require.NoError(t, err)
	return r.Sets
}

func TestScenarioMembershipOnCreate(t *testing.T) {
	w := newWorld(t)
	w.set(t, "c", "title:Test0")
	w.set(t, "d", "title:Test1")
	w.set(t, "e", "title:Test2 OR title:Test3")
	w.set(t, "f", "title:Test2")

	assert.Equal(t, []string{"c"}, w.record(t, "Test0").Sets)
	assert.Equal(t, []string{"e", "f"}, w.record(t, "Test2").Sets)
	none := w.record(t, "NotFound")
	assert.Empty(t, none.Sets)
	assert.NotEmpty(t, none.OAIID)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.set(t, "c", "title:Test0")
	for _, title := range []string{"Test0", "Test1", "Test0 again"} {
		w.record(t, title)
	}

	st, err := w.records.Admin.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Scanned)
	assert.Zero(t, st.Changed)
	assert.Zero(t, st.Failed)
}

func TestPatternChangeRescansEagerly(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.set(t, "c", "title:Test0")
	r := w.record(t, "Test1")
	assert.Empty(t, r.Sets)

	_, err := w.sets.Admin.Update(ctx, "c", sets.SetPatch{SearchPattern: pattern("title:Test1")})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, w.membership(t, r.ID))

	// a set created after the record picks it up too
	w.set(t, "late", "title:Test1")
	assert.Equal(t, []string{"c", "late"}, w.membership(t, r.ID))
}

func TestDeleteRetractsMembership(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.set(t, "c", "title:Test0")
	w.set(t, "m", "")
	r := w.record(t, "Test0", "m")
	assert.Equal(t, []string{"c", "m"}, r.Sets)

	require.NoError(t, w.sets.Admin.Delete(ctx, "c"))
	require.NoError(t, w.sets.Admin.Delete(ctx, "m"))
	got, err := w.records.Reader.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Sets)
	assert.Empty(t, got.ManualSets)
}

func TestClearPatternKeepsManualMembership(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.set(t, "q", "title:quantum")
	manual := w.record(t, "quantum one", "q")
	auto := w.record(t, "quantum two")
	assert.Equal(t, []string{"q"}, manual.Sets)
	assert.Equal(t, []string{"q"}, auto.Sets)

	_, err := w.sets.Admin.Update(ctx, "q", sets.SetPatch{ClearSearchPattern: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"q"}, w.membership(t, manual.ID))
	assert.Empty(t, w.membership(t, auto.ID))
}

func TestRenameLeavesMembershipAlone(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.set(t, "q", "title:quantum")
	r := w.record(t, "quantum")

	_, err := w.sets.Admin.Update(ctx, "q", sets.SetPatch{Name: pattern("Quantum things")})
	require.NoError(t, err)
	got, err := w.records.Reader.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"q"}, got.Sets)
	assert.Equal(t, r.UpdatedAt, got.UpdatedAt)
}

func TestUnregisteredHooksLeaveSetsStale(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.set(t, "q", "title:quantum")
	w.mod.Annotator().UnregisterSignals()

	r := w.record(t, "quantum")
	assert.Empty(t, r.Sets)

	st, err := w.records.Admin.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Changed)
	assert.Equal(t, []string{"q"}, w.membership(t, r.ID))
}

func TestPreviewEndpoint(t *testing.T) {
	w := newWorld(t)
	w.set(t, "q", "title:quantum")
	mux := chi.NewRouter()
	w.mod.MountRoutes(phttp.AdaptChi(mux))

	req := httptest.NewRequest(http.MethodPost, "/membership/preview", strings.NewReader(`{"content":{"title":"quantum"}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"sets":["q"]`)
}
