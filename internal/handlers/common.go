package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/lehigh-university-libraries/img2pdf/internal/converter"
	"github.com/lehigh-university-libraries/img2pdf/internal/models"
	"github.com/lehigh-university-libraries/img2pdf/internal/storage"
)

type Handler struct {
	sessionStore *storage.SessionStore
	converter    *converter.Service
	uploadsDir   string
	outputsDir   string
}

// New creates a handler. Uploaded images are stored in uploadsDir and
// documents are written below outputsDir, one directory per session.
func New(svc *converter.Service, uploadsDir, outputsDir string) *Handler {
	return &Handler{
		sessionStore: storage.New(),
		converter:    svc,
		uploadsDir:   uploadsDir,
		outputsDir:   outputsDir,
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*models.Session, bool) {
	session, exists := h.sessionStore.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

// snapshot copies the session under the store lock so it can be read
// without racing concurrent updates.
func (h *Handler) snapshot(w http.ResponseWriter, sessionID string) (*models.Session, bool) {
	var snap *models.Session
	err := h.sessionStore.Update(sessionID, func(s *models.Session) error {
		snap = s.Clone()
		return nil
	})
	if err != nil {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return snap, true
}

// File operation helpers
func (h *Handler) ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
