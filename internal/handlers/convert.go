package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/img2pdf/internal/models"
	"github.com/lehigh-university-libraries/img2pdf/internal/notify"
	"github.com/lehigh-university-libraries/img2pdf/internal/selector"
)

func (h *Handler) convertSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	var request struct {
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

	// a name given once sticks to the session for later conversions
	var session *models.Session
	err := h.sessionStore.Update(sessionID, func(s *models.Session) error {
		if outputName != "" {
			s.OutputName = outputName
		}
		session = s.Clone()
		return nil
	})
	if err != nil {
		h.writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	outDir := filepath.Join(h.outputsDir, sessionID)
	if dest, ok := selector.SaveTarget(session.OutputName, outDir); ok && !selector.Within(outDir, dest) {
		h.writeError(w, "Invalid output name", http.StatusBadRequest)
		return
	}
	if err := h.ensureDir(outDir); err != nil {
		h.writeError(w, "Failed to create output directory: "+err.Error(), http.StatusInternalServerError)
		return
	}

	svc := *h.converter
	svc.Config.OutputDir = outDir
	n := svc.Run(session)

	_ = h.sessionStore.Update(sessionID, func(s *models.Session) error {
		s.LastResult = session.LastResult
		return nil
	})

	code := http.StatusOK
	switch n.Kind {
	case notify.Warning:
		code = http.StatusBadRequest
	case notify.Error:
		code = http.StatusUnprocessableEntity
	}
	if n.Kind == notify.Success {
		n.Path = fmt.Sprintf("/api/sessions/%s/document", sessionID)
	}

	h.writeJSONStatus(w, code, n)
}

func (h *Handler) downloadDocument(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, ok := h.snapshot(w, sessionID)
	if !ok {
		return
	}

	if session.LastResult == nil || session.LastResult.Kind != notify.Success {
		h.writeError(w, "No document has been created for this session", http.StatusNotFound)
		return
	}

	path := session.LastResult.Path
	if _, err := os.Stat(path); err != nil {
		h.writeError(w, "Document no longer available", http.StatusGone)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}
