package http

import (
	"encoding/json"
	stdhttp "net/http"

	perr "tariffsync/internal/platform/errors"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Envelope is the response body for every ops endpoint
type Envelope struct {
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// JSON writes v as application/json with the given status
func JSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Respond writes a success envelope with data
func Respond(w stdhttp.ResponseWriter, r *stdhttp.Request, status int, data any) {
	JSON(w, status, Envelope{
		StatusCode: status,
		Status:     stdhttp.StatusText(status),
		RequestID:  chimw.GetReqID(r.Context()),
		Data:       data,
	})
}

// RespondError maps a project error into an envelope and writes it
func RespondError(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	status, wr := perr.HTTP(err)
	JSON(w, status, Envelope{
		StatusCode: status,
		Status:     stdhttp.StatusText(status),
		Code:       wr.Code,
		Error:      wr.Message,
		RequestID:  chimw.GetReqID(r.Context()),
	})
}

// Response is a return-style handler result
type Response struct {
	Status int
	Body   any
}

// Handle adapts a Response-returning handler to net/http
// an error Body is mapped through perr; a zero Status means 200
func Handle(h func(r *stdhttp.Request) Response) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		resp := h(r)
		if err, ok := resp.Body.(error); ok && err != nil {
			RespondError(w, r, err)
			return
		}
		status := resp.Status
		if status == 0 {
			status = stdhttp.StatusOK
		}
		Respond(w, r, status, resp.Body)
	}
}

// OK returns a 200 response
func OK(data any) Response { return Response{Status: stdhttp.StatusOK, Body: data} }

// Accepted returns a 202 response
func Accepted(data any) Response { return Response{Status: stdhttp.StatusAccepted, Body: data} }

// Error returns a response that maps the error to status and envelope
func Error(err error) Response { return Response{Body: err} }
