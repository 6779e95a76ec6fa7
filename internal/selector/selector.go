// Package selector resolves which files take part in a conversion: the source
// images chosen by the user and the destination the document is saved to.
package selector

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lehigh-university-libraries/img2pdf/internal/models"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// DefaultExtension is appended to output names that lack it.
const DefaultExtension = ".pdf"

// AllowedExtensions lists the raster formats accepted as source images.
var AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff"}

// IsAllowed reports whether path has an allowed image extension.
// ".tif" is treated as ".tiff".
func IsAllowed(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".tif" {
		ext = ".tiff"
	}
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Select resolves arguments to absolute image paths. Directories expand to
// their allowed files in name order, glob patterns to their matches.
// Disallowed files are skipped. An empty result is not an error.
func Select(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		if strings.ContainsAny(arg, "*?[") {
			matches, err := filepath.Glob(arg)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", arg, err)
			}
			sort.Strings(matches)
			for _, m := range matches {
				if info, err := os.Stat(m); err == nil && info.IsDir() {
					continue
				}
				paths = appendAllowed(paths, m)
			}
			continue
		}

		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
		}

		if !info.IsDir() {
			paths = appendAllowed(paths, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", arg, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !IsAllowed(entry.Name()) {
				continue
			}
			paths = appendAllowed(paths, filepath.Join(arg, entry.Name()))
		}
	}

	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		paths[i] = abs
	}

	return paths, nil
}

func appendAllowed(paths []string, path string) []string {
	if !IsAllowed(path) {
		slog.Warn("Skipping file with unsupported extension", "path", path)
		return paths
	}
	return append(paths, path)
}

// Probe reads the image header at path and returns an item with its
// dimensions filled in.
func Probe(path string) (models.ImageItem, error) {
	item := models.NewImageItem(path)

	file, err := os.Open(path)
	if err != nil {
		return item, err
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return item, fmt.Errorf("failed to read image header of %s: %w", path, err)
	}

	item.Width = cfg.Width
	item.Height = cfg.Height
	return item, nil
}

// SaveTarget turns a user-supplied output name into a destination path.
// A blank name means no destination was chosen.
func SaveTarget(name, dir string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}

	if !strings.EqualFold(filepath.Ext(name), DefaultExtension) {
		name += DefaultExtension
	}

	if !filepath.IsAbs(name) && dir != "" {
		name = filepath.Join(dir, name)
	}

	return name, true
}

// FileName reduces a user-supplied output name to a bare file name, dropping
// any directory part. It reports false when no usable name remains, as for
// "/", "." or "..".
func FileName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	switch base {
	case ".", "..", "/":
		return "", false
	}
	if strings.ContainsAny(base, `/\`) {
		return "", false
	}
	return base, true
}

// Within reports whether path lies inside dir.
func Within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
