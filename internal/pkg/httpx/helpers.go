package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gamma-omg/partyparty/internal/pkg/serr"
)

const maxBodyBytes = 1 << 20

// ReadJSON decodes the request body into out. A malformed or oversized body is a
// validation error.
func ReadJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return serr.Validation("request body is empty")
		}
		return serr.New(serr.KindValidation, err, "malformed request body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, resp any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	return enc.Encode(resp)
}

// ErrorResponse is the body written for failed requests.
type ErrorResponse struct {
	Error   serr.Kind         `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// StatusOf maps an error kind to the HTTP status reported to clients.
func StatusOf(k serr.Kind) int {
	switch k {
	case serr.KindNotAuthenticated:
		return http.StatusUnauthorized
	case serr.KindValidation:
		return http.StatusBadRequest
	case serr.KindNotFound:
		return http.StatusNotFound
	case serr.KindSyncFailure:
		return http.StatusBadGateway
	case serr.KindPartialReconciliation:
		return http.StatusMultiStatus
	}
	return http.StatusInternalServerError
}

func HandleErr(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("request error",
		"error", err,
		"method", r.Method,
		"url", r.URL.String(),
		"remote_addr", r.RemoteAddr,
	)

	resp := ErrorResponse{
		Error:   serr.KindInternal,
		Message: "Internal Server Error",
	}

	var se *serr.Error
	if errors.As(err, &se) {
		resp.Error = se.Kind
		resp.Message = se.Msg
		if len(se.Env) > 0 {
			resp.Details = se.Env
		}
	} else if k := serr.KindOf(err); k != serr.KindInternal {
		resp.Error = k
		resp.Message = err.Error()
	}

	if werr := WriteJSON(w, StatusOf(resp.Error), resp); werr != nil {
		slog.Error("failed to write error response", "error", fmt.Errorf("write json: %w", werr))
	}
}
