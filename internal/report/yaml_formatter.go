package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lehigh-university-libraries/img2pdf/internal/config"
	"github.com/lehigh-university-libraries/img2pdf/internal/document"
	"gopkg.in/yaml.v3"
)

// ConversionConfig represents the configuration section of the report
type ConversionConfig struct {
	Output     string  `yaml:"output"`
	PageWidth  int     `yaml:"pagewidth"`
	PageHeight int     `yaml:"pageheight"`
	Fill       string  `yaml:"fill"`
	DPI        float64 `yaml:"dpi"`
	Format     string  `yaml:"format"`
	Quality    int     `yaml:"quality,omitempty"`
	Timestamp  string  `yaml:"timestamp"`
}

// PageEntry describes where one source image landed on its page
type PageEntry struct {
	Number       int    `yaml:"number"`
	Source       string `yaml:"source"`
	SourceWidth  int    `yaml:"sourcewidth"`
	SourceHeight int    `yaml:"sourceheight"`
	Width        int    `yaml:"width"`
	Height       int    `yaml:"height"`
	X            int    `yaml:"x_offset"`
	Y            int    `yaml:"y_offset"`
}

// Spec represents the complete conversion report
type Spec struct {
	Config ConversionConfig `yaml:"config"`
	Pages  []PageEntry      `yaml:"pages"`
}

// New starts a report for a conversion written to output with cfg.
func New(output string, cfg config.Config) *Spec {
	spec := &Spec{
		Config: ConversionConfig{
			Output:     output,
			PageWidth:  cfg.Geometry.Width,
			PageHeight: cfg.Geometry.Height,
			Fill:       config.FormatHexColor(cfg.Geometry.Fill),
			DPI:        cfg.Document.DPI,
			Format:     cfg.Document.Format,
			Timestamp:  time.Now().Format("2006-01-02_15-04-05"),
		},
		Pages: []PageEntry{},
	}
	if cfg.Document.Format == document.FormatJPEG {
		spec.Config.Quality = cfg.Document.JPEGQuality
	}
	return spec
}

// SaveToYAML writes the report to path, creating parent directories.
func SaveToYAML(path string, spec *Spec) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	data, err := yaml.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// LoadFromYAML reads a report previously written by SaveToYAML.
func LoadFromYAML(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &spec, nil
}
