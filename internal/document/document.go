// Package document serializes composed pages into a multi-page PDF and
// inspects existing PDF files.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	DefaultDPI         = 300
	DefaultJPEGQuality = 92

	FormatJPEG = "jpeg"
	FormatPNG  = "png"
)

func init() {
	// keep pdfcpu from creating a config directory in the user's home
	model.ConfigPath = "disable"
}

// Options controls how pages are embedded in the document.
type Options struct {
	// DPI maps page pixels to physical size: points = pixels * 72 / DPI.
	DPI float64
	// Format is FormatJPEG or FormatPNG.
	Format      string
	JPEGQuality int
	Title       string
	Author      string
	Creator     string
}

// DefaultOptions returns 300 dpi JPEG pages.
func DefaultOptions() Options {
	return Options{
		DPI:         DefaultDPI,
		Format:      FormatJPEG,
		JPEGQuality: DefaultJPEGQuality,
		Creator:     "img2pdf",
	}
}

func (o Options) Validate() error {
	if o.DPI <= 0 {
		return fmt.Errorf("invalid dpi %v", o.DPI)
	}
	switch o.Format {
	case FormatJPEG:
		if o.JPEGQuality < 1 || o.JPEGQuality > 100 {
			return fmt.Errorf("invalid jpeg quality %d (must be 1-100)", o.JPEGQuality)
		}
	case FormatPNG:
	default:
		return fmt.Errorf("unsupported page format %q (use %s or %s)", o.Format, FormatJPEG, FormatPNG)
	}
	return nil
}

// WriteError reports a document that could not be written to Path.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// ErrNoPages is wrapped by the WriteError returned for an empty page set.
var ErrNoPages = errors.New("no pages to write")

// verifyPages checks a freshly written document before it replaces dest.
var verifyPages = checkPageCount

// Write serializes pages, in order, into a single PDF at dest. The document
// is written to a temporary file next to dest, read back to confirm its page
// count, and only then renamed into place. A failed write never leaves a
// partial file at dest and never disturbs a file already there.
func Write(pages []image.Image, dest string, opts Options) error {
	if len(pages) == 0 {
		return &WriteError{Path: dest, Err: ErrNoPages}
	}
	if err := opts.Validate(); err != nil {
		return &WriteError{Path: dest, Err: err}
	}

	pdf, err := build(pages, opts)
	if err != nil {
		return &WriteError{Path: dest, Err: err}
	}

	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".img2pdf-*.pdf")
	if err != nil {
		return &WriteError{Path: dest, Err: err}
	}
	tmpPath := tmp.Name()

	if err := pdf.Output(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &WriteError{Path: dest, Err: fmt.Errorf("failed to encode document: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &WriteError{Path: dest, Err: err}
	}
	if err := verifyPages(tmpPath, len(pages)); err != nil {
		os.Remove(tmpPath)
		return &WriteError{Path: dest, Err: err}
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return &WriteError{Path: dest, Err: err}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return &WriteError{Path: dest, Err: err}
	}

	slog.Info("Document written", "path", dest, "pages", len(pages), "format", opts.Format, "dpi", opts.DPI)
	return nil
}

func checkPageCount(path string, want int) error {
	info, err := Inspect(path)
	if err != nil {
		return fmt.Errorf("written document could not be read back: %w", err)
	}
	if info.Pages != want {
		return fmt.Errorf("written document has %d pages, expected %d", info.Pages, want)
	}
	return nil
}

func build(pages []image.Image, opts Options) (*gofpdf.Fpdf, error) {
	first := pageSize(pages[0].Bounds(), opts.DPI)
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           first,
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(true)
	if opts.Title != "" {
		pdf.SetTitle(opts.Title, true)
	}
	if opts.Author != "" {
		pdf.SetAuthor(opts.Author, true)
	}
	if opts.Creator != "" {
		pdf.SetCreator(opts.Creator, true)
	}

	imageType := "JPG"
	encodeFormat, encodeOpts := imaging.JPEG, []imaging.EncodeOption{imaging.JPEGQuality(opts.JPEGQuality)}
	if opts.Format == FormatPNG {
		imageType = "PNG"
		encodeFormat, encodeOpts = imaging.PNG, []imaging.EncodeOption{imaging.PNGCompressionLevel(png.DefaultCompression)}
	}
	imgOpts := gofpdf.ImageOptions{ImageType: imageType}

	for i, page := range pages {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, page, encodeFormat, encodeOpts...); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", i+1, err)
		}

		size := pageSize(page.Bounds(), opts.DPI)
		name := fmt.Sprintf("page-%d", i+1)

		pdf.AddPageFormat("P", size)
		pdf.RegisterImageOptionsReader(name, imgOpts, &buf)
		pdf.ImageOptions(name, 0, 0, size.Wd, size.Ht, false, imgOpts, 0, "")

		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("failed to add page %d: %w", i+1, err)
		}
	}

	return pdf, nil
}

func pageSize(bounds image.Rectangle, dpi float64) gofpdf.SizeType {
	return gofpdf.SizeType{
		Wd: float64(bounds.Dx()) * 72 / dpi,
		Ht: float64(bounds.Dy()) * 72 / dpi,
	}
}

// PageDim is a page size in points.
type PageDim struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Info describes an existing PDF.
type Info struct {
	Path  string    `json:"path" yaml:"path"`
	Pages int       `json:"pages" yaml:"pages"`
	Dims  []PageDim `json:"dims" yaml:"dims"`
}

// Inspect reads the PDF at path and reports its page count and page sizes.
func Inspect(path string) (*Info, error) {
	count, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to count pages of %s: %w", path, err)
	}

	dims, err := api.PageDimsFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions of %s: %w", path, err)
	}

	info := &Info{Path: path, Pages: count, Dims: make([]PageDim, len(dims))}
	for i, d := range dims {
		info.Dims[i] = PageDim{Width: d.Width, Height: d.Height}
	}
	return info, nil
}
