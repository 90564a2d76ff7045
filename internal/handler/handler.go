// Package handler implements the JSON API used by the dashboard.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dukerupert/surplus/internal/database"
	"github.com/dukerupert/surplus/internal/metrics"
	"github.com/dukerupert/surplus/internal/store"
	"github.com/dukerupert/surplus/internal/websocket"
)

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps an error to the HTTP status the API reports for it.
func statusFor(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrSchemaViolation):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalid):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	msg := err.Error()
	if msg == "" {
		msg = "internal error"
	}
	writeJSON(w, statusFor(err), map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// notifier announces committed writes on the change feed. A nil hub is
// allowed and makes notify a no-op apart from the write counter.
type notifier struct {
	hub *websocket.Hub
}

func (n notifier) notify(entity, action string, id int64, extra map[string]any) {
	metrics.WritesTotal.WithLabelValues(entity, action).Inc()
	if n.hub != nil {
		n.hub.Notify(entity, action, id, extra)
	}
}
