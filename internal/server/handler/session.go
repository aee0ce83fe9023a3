package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/render"
)

// SessionHandler exposes the alert session: the audio toggle and the last
// level seen per comparison direction.
type SessionHandler struct {
	session *render.Session
	logger  *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(session *render.Session, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{session: session, logger: logger}
}

type sessionResponse struct {
	AudioEnabled bool                         `json:"audioEnabled"`
	Levels       map[string]domain.AlertLevel `json:"levels"`
}

// GetSession returns the session state.
// GET /api/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse{
		AudioEnabled: h.session.AudioEnabled(),
		Levels:       h.session.Levels(),
	})
}

type setAudioRequest struct {
	Enabled *bool `json:"enabled"`
}

// SetAudio turns sound cues on or off. Body: {"enabled": true}.
// POST /api/session/audio
func (h *SessionHandler) SetAudio(w http.ResponseWriter, r *http.Request) {
	var req setAudioRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	h.session.SetAudio(*req.Enabled)
	h.logger.InfoContext(r.Context(), "handler: audio toggled", slog.Bool("enabled", *req.Enabled))
	writeJSON(w, http.StatusOK, sessionResponse{
		AudioEnabled: h.session.AudioEnabled(),
		Levels:       h.session.Levels(),
	})
}
