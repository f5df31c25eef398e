package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/schoolshare/dss-geo/internal/dataerr"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps a typed data error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch dataerr.KindOf(err) {
	case dataerr.Unavailable:
		return http.StatusNotFound, "data_unavailable"
	case dataerr.Integrity:
		return http.StatusUnprocessableEntity, "data_integrity"
	case dataerr.Configuration:
		return http.StatusInternalServerError, "configuration"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail writes err with the status of its kind.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	fields := []zap.Field{zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err)}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", fields...)
	} else {
		h.log.Info("request failed", fields...)
	}
	writeError(w, status, code, err.Error())
}
