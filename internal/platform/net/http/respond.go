// Package http provides the status server, the router seam modules mount on, and
// the JSON envelope every endpoint answers with
package http

import (
	"encoding/json"
	stdhttp "net/http"

	perr "t2/internal/platform/errors"
	pnet "t2/internal/platform/net"
)

// Envelope wraps every status response; Data on success, Code and Error otherwise
type Envelope struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	Code       perr.ErrorCode `json:"code,omitempty"`
	Error      string         `json:"error,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       any            `json:"data,omitempty"`
}

func envelope(r *stdhttp.Request, status int) Envelope {
	return Envelope{
		StatusCode: status,
		Status:     stdhttp.StatusText(status),
		RequestID:  pnet.RequestID(r.Context()),
	}
}

// JSON writes v as application/json with the given status
func JSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RespondOK writes data in a 200 envelope
func RespondOK(w stdhttp.ResponseWriter, r *stdhttp.Request, data any) {
	env := envelope(r, stdhttp.StatusOK)
	env.Data = data
	JSON(w, env.StatusCode, env)
}

// RespondError writes err with the status its code maps to
func RespondError(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	wire := perr.WireFrom(err)
	env := envelope(r, perr.HTTPStatus(err))
	env.Code = wire.Code
	env.Error = wire.Message
	JSON(w, env.StatusCode, env)
}

// GetJSON mounts a read-only endpoint whose result is served in an envelope
func GetJSON(r Router, path string, fn func(*stdhttp.Request) (any, error)) {
	r.Get(path, func(w stdhttp.ResponseWriter, req *stdhttp.Request) {
		out, err := fn(req)
		if err != nil {
			RespondError(w, req, err)
			return
		}
		RespondOK(w, req, out)
	})
}
