package middleware

import (
	stdjson "encoding/json"
	stdhttp "net/http"
	"runtime/debug"

	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/platform/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type panicWire struct {
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
	Code       string `json:"code"`
	Error      string `json:"error"`
	RequestID  string `json:"request_id,omitempty"`
}

// RecoverJSON converts panics into a JSON 500 and logs the stack with the request id
func RecoverJSON(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == stdhttp.ErrAbortHandler {
				panic(v)
			}
			reqID := chimw.GetReqID(r.Context())
			logger.Named("http").Error().
				Str("request_id", reqID).
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if reqID != "" {
				w.Header().Set("X-Request-ID", reqID)
			}
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(stdhttp.StatusInternalServerError)
			_ = stdjson.NewEncoder(w).Encode(panicWire{
				StatusCode: stdhttp.StatusInternalServerError,
				Status:     stdhttp.StatusText(stdhttp.StatusInternalServerError),
				Code:       perr.ErrorCodePanic.String(),
				Error:      "panic recovered",
				RequestID:  reqID,
			})
		}()
		next.ServeHTTP(w, r)
	})
}
