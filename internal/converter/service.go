package converter

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/lehigh-university-libraries/img2pdf/internal/compositor"
	"github.com/lehigh-university-libraries/img2pdf/internal/config"
	"github.com/lehigh-university-libraries/img2pdf/internal/document"
	"github.com/lehigh-university-libraries/img2pdf/internal/models"
	"github.com/lehigh-university-libraries/img2pdf/internal/notify"
	"github.com/lehigh-university-libraries/img2pdf/internal/report"
	"github.com/lehigh-university-libraries/img2pdf/internal/selector"
)

// PreconditionError is returned when a conversion is attempted without the
// input it needs. No I/O has happened when it is returned.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return e.Reason
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

var (
	// ErrPrecondition matches every PreconditionError via errors.Is.
	ErrPrecondition = errors.New("precondition not met")

	ErrEmptyWorkingSet = &PreconditionError{Reason: "Please select at least one image"}
	ErrEmptyOutputName = &PreconditionError{Reason: "Please enter a name for the output PDF"}
)

type Service struct {
	Config   config.Config
	Notifier notify.Notifier
}

func NewService(cfg config.Config, notifier notify.Notifier) *Service {
	return &Service{Config: cfg, Notifier: notifier}
}

// Result describes a written document.
type Result struct {
	Path  string
	Pages []PageSummary
}

// PageSummary records where a source image was placed on its page.
type PageSummary struct {
	Source     string
	SourceSize image.Point
	Placement  image.Rectangle
}

// Convert composes every image of the session's working set onto its own
// page and writes them as one PDF named after the session's output name.
// The session is never modified, so a failed conversion can be retried.
func (s *Service) Convert(sess *models.Session) (*Result, error) {
	if sess.Len() == 0 {
		return nil, ErrEmptyWorkingSet
	}
	dest, ok := selector.SaveTarget(sess.OutputName, s.Config.OutputDir)
	if !ok {
		return nil, ErrEmptyOutputName
	}
	if err := s.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	paths := sess.Paths()
	slog.Info("Converting images", "session_id", sess.ID, "images", len(paths), "output", dest)

	pages, err := compositor.Compose(paths, s.Config.Geometry)
	if err != nil {
		return nil, err
	}

	rasters := make([]image.Image, len(pages))
	result := &Result{Path: dest, Pages: make([]PageSummary, len(pages))}
	for i, p := range pages {
		rasters[i] = p.Image
		result.Pages[i] = PageSummary{Source: p.Source, SourceSize: p.SourceSize, Placement: p.Placement}
	}

	// Write reads the document back and checks its page count before
	// replacing dest
	if err := document.Write(rasters, dest, s.Config.Document); err != nil {
		return nil, err
	}

	return result, nil
}

// Run converts the session and reports the outcome through the notifier.
// The notification is also stored as the session's last result.
func (s *Service) Run(sess *models.Session) models.Notification {
	result, err := s.Convert(sess)
	n := Notification(result, err)

	sess.LastResult = &n
	if s.Notifier != nil {
		s.Notifier.Notify(n)
	}
	return n
}

// Notification translates a conversion outcome into what the user sees.
func Notification(result *Result, err error) models.Notification {
	if err == nil {
		return models.Notification{
			Kind:    notify.Success,
			Message: fmt.Sprintf("PDF created with %d pages", len(result.Pages)),
			Path:    result.Path,
		}
	}

	if errors.Is(err, ErrPrecondition) {
		return models.Notification{Kind: notify.Warning, Message: err.Error()}
	}

	n := models.Notification{Kind: notify.Error, Message: "Failed to convert images to PDF"}

	var compErr *compositor.CompositionError
	var writeErr *document.WriteError
	switch {
	case errors.As(err, &compErr):
		n.Message = fmt.Sprintf("Failed to convert images to PDF: %d of %d images could not be read", len(compErr.Failures), compErr.Total)
		for _, f := range compErr.Failures {
			n.Details = append(n.Details, f.Error())
		}
	case errors.As(err, &writeErr):
		n.Message = "Failed to save PDF"
		n.Path = writeErr.Path
		n.Details = []string{writeErr.Err.Error()}
	default:
		n.Details = []string{err.Error()}
	}

	return n
}

// Report builds the YAML report describing result.
func (s *Service) Report(result *Result) *report.Spec {
	spec := report.New(result.Path, s.Config)
	for i, p := range result.Pages {
		spec.Pages = append(spec.Pages, report.PageEntry{
			Number:       i + 1,
			Source:       p.Source,
			SourceWidth:  p.SourceSize.X,
			SourceHeight: p.SourceSize.Y,
			Width:        p.Placement.Dx(),
			Height:       p.Placement.Dy(),
			X:            p.Placement.Min.X,
			Y:            p.Placement.Min.Y,
		})
	}
	return spec
}
