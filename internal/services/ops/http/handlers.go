// Package http provides the ops endpoints: probes, metrics, status and the manual cycle trigger
package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"tariffsync/internal/core/version"
	"tariffsync/internal/modkit/repokit"
	perr "tariffsync/internal/platform/errors"
	phttp "tariffsync/internal/platform/net/http"
	pdomain "tariffsync/internal/services/propagation/domain"
	"tariffsync/internal/services/propagation/journal"
	sdomain "tariffsync/internal/services/scheduler/domain"
	tdomain "tariffsync/internal/services/tariffs/domain"
)

// Guarder is satisfied by the store
type Guarder interface {
	Guard(context.Context) error
}

// QueueView is the read side of the propagation queue
type QueueView interface {
	Pending() int
	Last() (pdomain.Report, bool)
}

// JournalView reads recent publish attempts
type JournalView interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Refresher drops a cached target list so the next publish reloads it
type Refresher interface {
	Invalidate()
}

// Deps are the handler dependencies; Journal, Targets and Metrics may be nil
type Deps struct {
	StartedAt time.Time
	Store     Guarder
	Trigger   sdomain.TriggerPort
	Queue     QueueView
	Query     tdomain.QueryPort
	Journal   JournalView
	Targets   Refresher
	Metrics   stdhttp.Handler
}

type handlers struct {
	deps Deps
	now  func() time.Time
}

// Register mounts the ops routes
func Register(r phttp.Router, d Deps) {
	h := &handlers{deps: d, now: time.Now}

	r.Get("/healthz", phttp.Handle(h.health))
	r.Get("/readyz", phttp.Handle(h.ready))
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
	r.Route("/v1", func(v1 phttp.Router) {
		v1.Get("/version", phttp.Handle(h.version))
		v1.Get("/status", phttp.Handle(h.status))
		v1.Post("/cycles", phttp.Handle(h.trigger))
		v1.Post("/targets/refresh", phttp.Handle(h.refresh))
	})
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Started string `json:"started"`
	Uptime  int64  `json:"uptime"`
}

func (h *handlers) health(_ *stdhttp.Request) phttp.Response {
	return phttp.OK(HealthResponse{
		OK:      true,
		Service: version.Info().Service,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Uptime:  int64(h.now().Sub(h.deps.StartedAt) / time.Second),
	})
}

// ReadyResponse summarizes dependency readiness
type ReadyResponse struct {
	Status string `json:"status"` // ok fail
	Error  string `json:"error,omitempty"`
	Now    string `json:"now"`
}

func (h *handlers) ready(r *stdhttp.Request) phttp.Response {
	resp := ReadyResponse{Status: "ok", Now: h.now().UTC().Format(time.RFC3339)}
	if h.deps.Store == nil {
		return phttp.OK(resp)
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := repokit.Guard(ctx, h.deps.Store); err != nil {
		resp.Status = "fail"
		resp.Error = err.Error()
		return phttp.Response{Status: stdhttp.StatusServiceUnavailable, Body: resp}
	}
	return phttp.OK(resp)
}

func (h *handlers) version(_ *stdhttp.Request) phttp.Response {
	return phttp.OK(version.Info())
}

// AttemptView is one target write in a status report
type AttemptView struct {
	DocumentID string  `json:"document_id"`
	Rows       int     `json:"rows"`
	OK         bool    `json:"ok"`
	Error      string  `json:"error,omitempty"`
	ElapsedMs  float64 `json:"elapsed_ms"`
}

// ReportView is the last fan-out as shown by /v1/status
type ReportView struct {
	CycleID  string        `json:"cycle_id"`
	Targets  int           `json:"targets"`
	Failed   int           `json:"failed"`
	Attempts []AttemptView `json:"attempts"`
}

// QueueStatus reports the propagation queue
type QueueStatus struct {
	Pending int         `json:"pending"`
	Last    *ReportView `json:"last,omitempty"`
}

// StatusResponse is the /v1/status payload
type StatusResponse struct {
	Scheduler sdomain.Status  `json:"scheduler"`
	Queue     QueueStatus     `json:"queue"`
	Tariffs   int64           `json:"tariffs"`
	Journal   []journal.Entry `json:"journal,omitempty"`
}

func (h *handlers) status(r *stdhttp.Request) phttp.Response {
	var out StatusResponse
	if h.deps.Trigger != nil {
		out.Scheduler = h.deps.Trigger.Status()
	}
	if h.deps.Queue != nil {
		out.Queue.Pending = h.deps.Queue.Pending()
		if rep, ok := h.deps.Queue.Last(); ok {
			out.Queue.Last = viewOf(rep)
		}
	}
	if h.deps.Query != nil {
		n, err := h.deps.Query.Count(r.Context())
		if err != nil {
			return phttp.Error(err)
		}
		out.Tariffs = n
	}
	if h.deps.Journal != nil {
		// the journal is best effort, so is reading it
		if entries, err := h.deps.Journal.Recent(r.Context(), 20); err == nil {
			out.Journal = entries
		}
	}
	return phttp.OK(out)
}

func viewOf(rep pdomain.Report) *ReportView {
	v := &ReportView{CycleID: rep.CycleID, Targets: len(rep.Attempts), Failed: rep.Failed(), Attempts: []AttemptView{}}
	for _, a := range rep.Attempts {
		av := AttemptView{
			DocumentID: a.DocumentID,
			Rows:       a.Rows,
			OK:         a.OK(),
			ElapsedMs:  float64(a.Elapsed) / float64(time.Millisecond),
		}
		if a.Err != nil {
			av.Error = a.Err.Error()
		}
		v.Attempts = append(v.Attempts, av)
	}
	return v
}

func (h *handlers) trigger(r *stdhttp.Request) phttp.Response {
	if h.deps.Trigger == nil {
		return phttp.Error(perr.Unavailablef("scheduler not running"))
	}
	// the cycle outlives a client that hangs up
	res, err := h.deps.Trigger.Trigger(context.WithoutCancel(r.Context()))
	if err != nil && res.CycleID == "" {
		return phttp.Error(err)
	}
	// a cycle that ran but failed still reports its summary
	return phttp.OK(res)
}

func (h *handlers) refresh(_ *stdhttp.Request) phttp.Response {
	if h.deps.Targets == nil {
		return phttp.Error(perr.Conflictf("target registry is not cached"))
	}
	h.deps.Targets.Invalidate()
	return phttp.Accepted(map[string]bool{"invalidated": true})
}
