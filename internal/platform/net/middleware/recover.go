package middleware

import (
	stdhttp "net/http"
	"runtime/debug"

	perr "t2/internal/platform/errors"
	"t2/internal/platform/logger"
	pnet "t2/internal/platform/net"
	phttp "t2/internal/platform/net/http"
)

var errPanic = perr.New(perr.ErrorCodePanic, "panic recovered")

// RecoverJSON turns a handler panic into the standard 500 envelope and logs the stack.
// http.ErrAbortHandler is re-panicked so the server aborts the response as usual
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
			reqID := pnet.RequestID(r.Context())
			logger.C(r.Context()).Error().
				Str("request_id", reqID).
				Str("path", r.URL.Path).
				Interface("panic", v).
				Str("stack", string(debug.Stack())).
				Msg("handler panic")

			if reqID != "" {
				w.Header().Set("X-Request-ID", reqID)
			}
			phttp.RespondError(w, r, errPanic)
		}()
		next.ServeHTTP(w, r)
	})
}
