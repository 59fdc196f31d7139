package http

import (
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/platform/metrics"
	phttp "tariffsync/internal/platform/net/http"
	pdomain "tariffsync/internal/services/propagation/domain"
	"tariffsync/internal/services/propagation/journal"
	sdomain "tariffsync/internal/services/scheduler/domain"
	tdomain "tariffsync/internal/services/tariffs/domain"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type guardFunc func(context.Context) error

func (g guardFunc) Guard(ctx context.Context) error { return g(ctx) }

type fakeTrigger struct {
	res tdomain.CycleResult
	err error
}

func (f fakeTrigger) Trigger(context.Context) (tdomain.CycleResult, error) { return f.res, f.err }
func (f fakeTrigger) Status() sdomain.Status {
	return sdomain.Status{Interval: "1h0m0s", Cycles: 3, Skipped: 1, Outcome: sdomain.OutcomeOK}
}

type fakeQueue struct{ rep *pdomain.Report }

func (q fakeQueue) Pending() int { return 2 }
func (q fakeQueue) Last() (pdomain.Report, bool) {
	if q.rep == nil {
		return pdomain.Report{}, false
	}
	return *q.rep, true
}

type fakeQuery struct{ err error }

func (q fakeQuery) Count(context.Context) (int64, error) { return 42, q.err }
func (q fakeQuery) ByDate(context.Context, time.Time) ([]tdomain.Record, error) {
	return nil, nil
}

type fakeJournal struct{}

func (fakeJournal) Recent(context.Context, int) ([]journal.Entry, error) {
	return []journal.Entry{{CycleID: "c1", DocumentID: "T1", Rows: 1, OK: true}}, nil
}

// gatedTrigger holds the cycle open until release is closed and keeps the context it ran with
type gatedTrigger struct {
	fakeTrigger
	started chan context.Context
	release chan struct{}
}

func (g gatedTrigger) Trigger(ctx context.Context) (tdomain.CycleResult, error) {
	g.started <- ctx
	<-g.release
	return tdomain.CycleResult{CycleID: "c9", Fetched: 1}, ctx.Err()
}

type countingRefresher struct{ n int }

func (c *countingRefresher) Invalidate() { c.n++ }

func serve(t *testing.T, d Deps, method, path string) (*httptest.ResponseRecorder, phttp.Envelope) {
	t.Helper()
	mux := chi.NewRouter()
	Register(phttp.AdaptChi(mux), d)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	var env phttp.Envelope
	if rr.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	}
	return rr, env
}

func dataAs[T any](t *testing.T, env phttp.Envelope) T {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestHealthz(t *testing.T) {
	rr, env := serve(t, Deps{StartedAt: time.Now().Add(-time.Minute)}, stdhttp.MethodGet, "/healthz")
	require.Equal(t, stdhttp.StatusOK, rr.Code)
	h := dataAs[HealthResponse](t, env)
	assert.True(t, h.OK)
	assert.Equal(t, "tariffsync", h.Service)
	assert.GreaterOrEqual(t, h.Uptime, int64(59))
}

func TestReadyz(t *testing.T) {
	rr, _ := serve(t, Deps{Store: guardFunc(func(context.Context) error { return nil })}, stdhttp.MethodGet, "/readyz")
	assert.Equal(t, stdhttp.StatusOK, rr.Code)

	rr, env := serve(t, Deps{Store: guardFunc(func(context.Context) error { return errors.New("pg: refused") })}, stdhttp.MethodGet, "/readyz")
	assert.Equal(t, stdhttp.StatusServiceUnavailable, rr.Code)
	ready := dataAs[ReadyResponse](t, env)
	assert.Equal(t, "fail", ready.Status)
	assert.Contains(t, ready.Error, "pg: refused")
}

func TestMetrics(t *testing.T) {
	m := metrics.New()
	m.IncPublish("ok")
	rr, _ := serve(t, Deps{Metrics: m.Handler()}, stdhttp.MethodGet, "/metrics")
	assert.Equal(t, stdhttp.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `tariffsync_publishes_total{result="ok"} 1`)
}

func TestStatus(t *testing.T) {
	rep := &pdomain.Report{CycleID: "c9", Attempts: []pdomain.Attempt{
		{DocumentID: "T1", Rows: 3, Elapsed: 1500 * time.Microsecond},
		{DocumentID: "T2", Rows: 3, Err: perr.New(perr.ErrorCodePublish, "quota")},
	}}
	d := Deps{Trigger: fakeTrigger{}, Queue: fakeQueue{rep: rep}, Query: fakeQuery{}, Journal: fakeJournal{}}
	rr, env := serve(t, d, stdhttp.MethodGet, "/v1/status")
	require.Equal(t, stdhttp.StatusOK, rr.Code)

	st := dataAs[StatusResponse](t, env)
	assert.Equal(t, int64(3), st.Scheduler.Cycles)
	assert.Equal(t, 2, st.Queue.Pending)
	require.NotNil(t, st.Queue.Last)
	assert.Equal(t, "c9", st.Queue.Last.CycleID)
	assert.Equal(t, 1, st.Queue.Last.Failed)
	assert.Equal(t, 1.5, st.Queue.Last.Attempts[0].ElapsedMs)
	assert.Contains(t, st.Queue.Last.Attempts[1].Error, "quota")
	assert.Equal(t, int64(42), st.Tariffs)
	assert.Len(t, st.Journal, 1)
}

func TestStatus_CountError(t *testing.T) {
	d := Deps{Query: fakeQuery{err: perr.Unavailablef("pool closed")}}
	rr, env := serve(t, d, stdhttp.MethodGet, "/v1/status")
	assert.Equal(t, stdhttp.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, perr.ErrorCodeUnavailable.String(), env.Code)
}

func TestTriggerCycle(t *testing.T) {
	d := Deps{Trigger: fakeTrigger{res: tdomain.CycleResult{CycleID: "c1", Fetched: 2, Inserted: 2, Queued: true}}}
	rr, env := serve(t, d, stdhttp.MethodPost, "/v1/cycles")
	require.Equal(t, stdhttp.StatusOK, rr.Code)
	res := dataAs[tdomain.CycleResult](t, env)
	assert.Equal(t, "c1", res.CycleID)
	assert.Equal(t, 2, res.Saved())
}

func TestTriggerCycle_InFlightIsConflict(t *testing.T) {
	d := Deps{Trigger: fakeTrigger{err: perr.New(perr.ErrorCodeConflict, "a cycle is already running")}}
	rr, env := serve(t, d, stdhttp.MethodPost, "/v1/cycles")
	assert.Equal(t, stdhttp.StatusConflict, rr.Code)
	assert.Equal(t, "a cycle is already running", env.Error)
}

func TestTriggerCycle_FailedCycleStillReports(t *testing.T) {
	d := Deps{Trigger: fakeTrigger{res: tdomain.CycleResult{CycleID: "c2", Error: "status 500"}, err: perr.Transportf("status 500")}}
	rr, env := serve(t, d, stdhttp.MethodPost, "/v1/cycles")
	assert.Equal(t, stdhttp.StatusOK, rr.Code)
	assert.Equal(t, "status 500", dataAs[tdomain.CycleResult](t, env).Error)
}

func TestTriggerCycle_NoScheduler(t *testing.T) {
	rr, _ := serve(t, Deps{}, stdhttp.MethodPost, "/v1/cycles")
	assert.Equal(t, stdhttp.StatusServiceUnavailable, rr.Code)
}

func TestRefreshTargets(t *testing.T) {
	ref := &countingRefresher{}
	rr, env := serve(t, Deps{Targets: ref}, stdhttp.MethodPost, "/v1/targets/refresh")
	assert.Equal(t, stdhttp.StatusAccepted, rr.Code)
	assert.Equal(t, map[string]bool{"invalidated": true}, dataAs[map[string]bool](t, env))
	assert.Equal(t, 1, ref.n)
}

func TestRefreshTargets_NotCached(t *testing.T) {
	rr, env := serve(t, Deps{}, stdhttp.MethodPost, "/v1/targets/refresh")
	assert.Equal(t, stdhttp.StatusConflict, rr.Code)
	assert.Equal(t, "conflict", env.Code)
}

func TestTriggerCycle_ClientCancelDoesNotStopCycle(t *testing.T) {
	g := gatedTrigger{started: make(chan context.Context, 1), release: make(chan struct{})}
	mux := chi.NewRouter()
	Register(phttp.AdaptChi(mux), Deps{Trigger: g})

	reqCtx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(stdhttp.MethodPost, "/v1/cycles", nil).WithContext(reqCtx)
	rr := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		mux.ServeHTTP(rr, req)
		close(done)
	}()

	cycleCtx := <-g.started
	cancel()
	assert.NoError(t, cycleCtx.Err(), "request cancellation reached the cycle")
	close(g.release)
	<-done
	assert.Equal(t, stdhttp.StatusOK, rr.Code)
}
