package daemon

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"audio2subs/internal/api"
	"audio2subs/internal/logging"
	"audio2subs/internal/observe"
	"audio2subs/internal/services"
)

const defaultSessionLimit = 20

// Routes returns the read-only HTTP API mounted beside /metrics.
func (d *Daemon) Routes() []observe.Route {
	h := &apiHandler{daemon: d, logger: logging.NewComponentLogger(d.root, "api-server")}
	return []observe.Route{
		{Pattern: "/api/status", Handler: http.HandlerFunc(h.handleStatus)},
		{Pattern: "/api/sessions", Handler: http.HandlerFunc(h.handleSessions)},
		{Pattern: "/api/sessions/", Handler: http.HandlerFunc(h.handleSession)},
	}
}

type apiHandler struct {
	daemon *Daemon
	logger *slog.Logger
}

func (h *apiHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.writeJSON(w, http.StatusOK, h.daemon.Status(r.Context()).APIStatus())
}

func (h *apiHandler) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := defaultSessionLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	sessions, err := h.daemon.RecentSessions(r.Context(), limit)
	if err != nil {
		h.writeError(w, statusFor(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, api.SessionListResponse{Sessions: api.FromSessions(sessions)})
}

func (h *apiHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if id == "" || strings.Contains(id, "/") {
		h.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	sess, attempts, err := h.daemon.SessionDetail(r.Context(), id)
	if err != nil {
		h.writeError(w, statusFor(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, api.SessionDetailResponse{
		Session:  api.FromSession(sess),
		Attempts: api.FromAttempts(attempts),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, ErrJournalDisabled):
		return http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *apiHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (h *apiHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
