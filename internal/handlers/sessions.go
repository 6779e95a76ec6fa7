package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/lehigh-university-libraries/img2pdf/internal/models"
	"github.com/lehigh-university-libraries/img2pdf/internal/selector"
)

type sessionAction func(h *Handler, w http.ResponseWriter, r *http.Request, sessionID string)

// sessionActions dispatches /api/sessions/{id}/{action} by method and action.
var sessionActions = map[string]sessionAction{
	"GET ":          (*Handler).getSession,
	"DELETE ":       (*Handler).deleteSession,
	"POST images":   (*Handler).handleImageUpload,
	"POST clear":    (*Handler).clearSession,
	"POST convert":  (*Handler).convertSession,
	"GET document":  (*Handler).downloadDocument,
	"HEAD document": (*Handler).downloadDocument,
}

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		h.writeJSON(w, h.sessionStore.GetAll())
	case "POST":
		var request struct {
			Name       string `json:"name"`
			OutputName string `json:"output_name"`
		}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
				h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
				return
			}
		}

		var outputName string
		if strings.TrimSpace(request.OutputName) != "" {
			name, ok := selector.FileName(request.OutputName)
			if !ok {
				h.writeError(w, "Invalid output name", http.StatusBadRequest)
				return
			}
			outputName = name
		}

		sessionID := fmt.Sprintf("%s_%d", sessionName(request.Name), time.Now().UnixNano())

		session := models.NewSession(sessionID)
		session.OutputName = outputName
		h.sessionStore.Set(sessionID, session)

		h.writeJSONStatus(w, http.StatusCreated, session)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// sessionName keeps the characters of name that are safe in a single URL
// path segment.
func sessionName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			return r
		}
		return -1
	}, name)
	if strings.Trim(name, ".") == "" {
		return "session"
	}
	return name
}

func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	sessionID, action, _ := strings.Cut(rest, "/")
	if sessionID == "" || strings.Contains(action, "/") {
		h.writeError(w, "Not found", http.StatusNotFound)
		return
	}

	handle, ok := sessionActions[r.Method+" "+action]
	if !ok {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, ok := h.getSessionOrError(w, sessionID); !ok {
		return
	}

	handle(h, w, r, sessionID)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, ok := h.snapshot(w, sessionID)
	if !ok {
		return
	}
	h.writeJSON(w, session)
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	h.sessionStore.Delete(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	var session *models.Session
	err := h.sessionStore.Update(sessionID, func(s *models.Session) error {
		s.Clear()
		session = s.Clone()
		return nil
	})
	if err != nil {
		h.writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	h.writeJSON(w, session)
}
