package models

import (
	"path/filepath"
	"time"
)

// Session is one user's conversion session: the working set of images queued
// for conversion and the name the output document should get.
type Session struct {
	ID         string        `json:"id"`
	Images     []ImageItem   `json:"images"`
	OutputName string        `json:"output_name,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	LastResult *Notification `json:"last_result,omitempty"`
}

// ImageItem represents one selected source image
type ImageItem struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Notification is the user-visible outcome of a conversion attempt.
// Kind is "warning", "success" or "error".
type Notification struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Path    string   `json:"path,omitempty"`
	Details []string `json:"details,omitempty"`
}

func NewSession(id string) *Session {
	return &Session{
		ID:        id,
		Images:    []ImageItem{},
		CreatedAt: time.Now(),
	}
}

// NewImageItem builds an item for path, naming it by its base name.
func NewImageItem(path string) ImageItem {
	return ImageItem{Path: path, Name: filepath.Base(path)}
}

// Add appends items in order, skipping any whose path is already in the
// working set. It returns the number of items actually added.
func (s *Session) Add(items ...ImageItem) int {
	seen := make(map[string]struct{}, len(s.Images))
	for _, img := range s.Images {
		seen[img.Path] = struct{}{}
	}

	added := 0
	for _, item := range items {
		if _, dup := seen[item.Path]; dup {
			continue
		}
		if item.Name == "" {
			item.Name = filepath.Base(item.Path)
		}
		seen[item.Path] = struct{}{}
		s.Images = append(s.Images, item)
		added++
	}
	return added
}

// Clear empties the working set.
func (s *Session) Clear() {
	s.Images = []ImageItem{}
}

func (s *Session) Len() int {
	return len(s.Images)
}

// Paths returns the image paths in insertion order.
func (s *Session) Paths() []string {
	paths := make([]string, len(s.Images))
	for i, img := range s.Images {
		paths[i] = img.Path
	}
	return paths
}

// Clone returns a copy that shares no slices with s.
func (s *Session) Clone() *Session {
	c := *s
	c.Images = append([]ImageItem{}, s.Images...)
	if s.LastResult != nil {
		n := *s.LastResult
		n.Details = append([]string(nil), s.LastResult.Details...)
		c.LastResult = &n
	}
	return &c
}
