package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fitgram/internal/apperr"
	"github.com/fitgram/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeAppErr maps error taxonomy codes to HTTP statuses. Anything without a
// code is a server fault: log it and hide the detail from the client.
func writeAppErr(w http.ResponseWriter, op string, err error) {
	switch apperr.CodeOf(err) {
	case apperr.CodeValidation, apperr.CodeExpired:
		writeError(w, http.StatusBadRequest, apperr.MessageOf(err))
	case apperr.CodePermission:
		writeError(w, http.StatusForbidden, apperr.MessageOf(err))
	case apperr.CodeNotFound:
		writeError(w, http.StatusNotFound, apperr.MessageOf(err))
	default:
		logger.Errorf("%s: %v", op, err)
		writeError(w, http.StatusInternalServerError, apperr.MessageOf(err))
	}
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
