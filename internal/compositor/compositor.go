// Package compositor turns source images into page-sized rasters: each image
// is scaled to fit the page, centred, and pasted onto the page background.
package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	// DefaultWidth and DefaultHeight are an A4 page at 300 dpi.
	DefaultWidth  = 2480
	DefaultHeight = 3508
)

// Geometry is the target page size in pixels and the background fill.
type Geometry struct {
	Width  int
	Height int
	Fill   color.NRGBA
}

// DefaultGeometry returns an A4 page at 300 dpi on opaque white.
func DefaultGeometry() Geometry {
	return Geometry{
		Width:  DefaultWidth,
		Height: DefaultHeight,
		Fill:   color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
	}
}

func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("invalid page geometry %dx%d", g.Width, g.Height)
	}
	return nil
}

// Page is one composed page together with where its source landed on it.
type Page struct {
	Image      *image.NRGBA
	Source     string
	SourceSize image.Point
	Placement  image.Rectangle
}

// DecodeError reports a source image that could not be read or decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// CompositionError collects every DecodeError of one Compose call, in input order.
type CompositionError struct {
	Failures []*DecodeError
	Total    int
}

func (e *CompositionError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d of %d images could not be decoded: %s", len(e.Failures), e.Total, strings.Join(msgs, "; "))
}

func (e *CompositionError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Paths returns the paths of the images that failed to decode.
func (e *CompositionError) Paths() []string {
	paths := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		paths[i] = f.Path
	}
	return paths
}

// Compose decodes each source image and composes it onto its own page.
// Every path is attempted; if any fail to decode, the failures are returned
// together as a *CompositionError and no pages are returned.
func Compose(sourcePaths []string, g Geometry) ([]Page, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	pages := make([]Page, 0, len(sourcePaths))
	var failures []*DecodeError

	for i, path := range sourcePaths {
		img, err := Decode(path, g.Fill)
		if err != nil {
			slog.Warn("Failed to decode source image", "index", i+1, "path", path, "error", err)
			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				decErr = &DecodeError{Path: path, Err: err}
			}
			failures = append(failures, decErr)
			continue
		}
		if failures != nil {
			// keep decoding to report every failure, but stop composing
			continue
		}

		page := ComposeImage(img, g)
		page.Source = path
		pages = append(pages, page)

		slog.Debug("Composed page", "index", i+1, "path", path, "source", page.SourceSize, "placement", page.Placement)
	}

	if failures != nil {
		return nil, &CompositionError{Failures: failures, Total: len(sourcePaths)}
	}

	return pages, nil
}

// Decode opens the image at path and flattens any transparency onto fill,
// so the result is fully opaque.
func Decode(path string, fill color.NRGBA) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, &DecodeError{Path: path, Err: errors.New("image has no pixels")}
	}

	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img, nil
	}

	background := imaging.New(bounds.Dx(), bounds.Dy(), fill)
	return imaging.Overlay(background, img, image.Pt(0, 0), 1.0), nil
}

// ComposeImage scales img to fit inside the page, preserving its aspect
// ratio, and pastes it centred onto a page filled with g.Fill.
func ComposeImage(img image.Image, g Geometry) Page {
	size := img.Bounds().Size()
	rw, rh := FitSize(size.X, size.Y, g)

	resized := imaging.Resize(img, rw, rh, imaging.Lanczos)

	x, y := Offset(rw, rh, g)
	page := imaging.New(g.Width, g.Height, g.Fill)
	page = imaging.Paste(page, resized, image.Pt(x, y))

	return Page{
		Image:      page,
		SourceSize: size,
		Placement:  image.Rect(x, y, x+rw, y+rh),
	}
}

// FitSize returns floor(w*scale) x floor(h*scale) where scale is the largest
// factor keeping both dimensions within the page. Small images are scaled up.
func FitSize(w, h int, g Geometry) (int, int) {
	var rw, rh int
	// compare W/w with H/h without floating point
	if int64(g.Width)*int64(h) <= int64(g.Height)*int64(w) {
		rw = g.Width
		rh = int(int64(h) * int64(g.Width) / int64(w))
	} else {
		rh = g.Height
		rw = int(int64(w) * int64(g.Height) / int64(h))
	}
	return max(rw, 1), max(rh, 1)
}

// Offset returns the top-left corner that centres a rw x rh image on the page.
func Offset(rw, rh int, g Geometry) (int, int) {
	return (g.Width - rw) / 2, (g.Height - rh) / 2
}
