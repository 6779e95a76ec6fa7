package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lehigh-university-libraries/img2pdf/internal/config"
	"github.com/lehigh-university-libraries/img2pdf/internal/document"
)

func TestNew(t *testing.T) {
	cfg := config.Default()
	spec := New("/out/scans.pdf", cfg)

	want := ConversionConfig{
		Output:     "/out/scans.pdf",
		PageWidth:  2480,
		PageHeight: 3508,
		Fill:       "#ffffff",
		DPI:        300,
		Format:     "jpeg",
		Quality:    document.DefaultJPEGQuality,
		Timestamp:  spec.Config.Timestamp,
	}
	if diff := cmp.Diff(want, spec.Config); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	cfg.Document.Format = document.FormatPNG
	if q := New("/out/x.pdf", cfg).Config.Quality; q != 0 {
		t.Errorf("Expected no quality for png pages, got %d", q)
	}
}

func TestSaveToYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "scans.yaml")
	spec := New("/out/scans.pdf", config.Default())
	spec.Pages = append(spec.Pages, PageEntry{
		Number: 1, Source: "/in/A.jpg",
		SourceWidth: 4000, SourceHeight: 3000,
		Width: 2480, Height: 1860, X: 0, Y: 824,
	})

	if err := SaveToYAML(path, spec); err != nil {
		t.Fatalf("SaveToYAML failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"pagewidth: 2480", "source: /in/A.jpg", "x_offset: 0", "y_offset: 824"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Expected report to contain %q, got:\n%s", want, data)
		}
	}

	loaded, err := LoadFromYAML(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(spec, loaded); diff != "" {
		t.Errorf("report mismatch after reload (-want +got):\n%s", diff)
	}
}
