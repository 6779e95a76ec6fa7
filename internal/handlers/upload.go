package handlers

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/img2pdf/internal/models"
	"github.com/lehigh-university-libraries/img2pdf/internal/selector"
)

const maxUploadSize = 25 * 1024 * 1024

func (h *Handler) handleImageUpload(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, "Failed to parse upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		h.writeError(w, "No files uploaded", http.StatusBadRequest)
		return
	}

	if err := h.ensureDir(h.uploadsDir); err != nil {
		h.writeError(w, "Failed to create uploads directory: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var items []models.ImageItem
	rejected := []string{}
	for _, header := range files {
		item, err := h.processImageFile(header)
		if err != nil {
			slog.Warn("Rejected upload", "session_id", sessionID, "filename", header.Filename, "error", err)
			rejected = append(rejected, fmt.Sprintf("%s: %v", header.Filename, err))
			continue
		}
		items = append(items, item)
	}

	var added, total int
	err := h.sessionStore.Update(sessionID, func(s *models.Session) error {
		added = s.Add(items...)
		total = s.Len()
		return nil
	})
	if err != nil {
		h.writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	slog.Info("Images added", "session_id", sessionID, "added", added, "rejected", len(rejected), "total", total)

	response := map[string]any{
		"session_id": sessionID,
		"message":    fmt.Sprintf("Added %d of %d images", added, len(files)),
		"added":      added,
		"rejected":   rejected,
		"images":     total,
	}

	h.writeJSON(w, response)
}

// processImageFile stores an uploaded image under a name derived from its
// content, so uploading the same file twice yields the same path.
func (h *Handler) processImageFile(header *multipart.FileHeader) (models.ImageItem, error) {
	if !selector.IsAllowed(header.Filename) {
		return models.ImageItem{}, fmt.Errorf("unsupported file type (allowed: %s)", strings.Join(selector.AllowedExtensions, ", "))
	}

	file, err := header.Open()
	if err != nil {
		return models.ImageItem{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	fileData, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		return models.ImageItem{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(fileData) > maxUploadSize {
		return models.ImageItem{}, fmt.Errorf("file too large (max %d MB)", maxUploadSize/(1024*1024))
	}

	sum := md5.Sum(fileData)
	imageFilename := hex.EncodeToString(sum[:]) + strings.ToLower(filepath.Ext(header.Filename))
	imageFilePath := filepath.Join(h.uploadsDir, imageFilename)

	if err := os.WriteFile(imageFilePath, fileData, 0644); err != nil {
		return models.ImageItem{}, fmt.Errorf("failed to save image: %w", err)
	}

	item, err := selector.Probe(imageFilePath)
	if err != nil {
		os.Remove(imageFilePath)
		return models.ImageItem{}, err
	}
	item.Name = filepath.Base(header.Filename)

	return item, nil
}
