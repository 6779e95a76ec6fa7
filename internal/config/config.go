// Package config gathers conversion settings from the environment, YAML
// manifests and command-line flags.
package config

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/img2pdf/internal/compositor"
	"github.com/lehigh-university-libraries/img2pdf/internal/document"
	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// Config holds everything a conversion needs besides the images themselves.
type Config struct {
	Geometry  compositor.Geometry
	Document  document.Options
	OutputDir string
}

// Default returns an A4 page at 300 dpi, white background, JPEG pages,
// written to the current directory.
func Default() Config {
	return Config{
		Geometry:  compositor.DefaultGeometry(),
		Document:  document.DefaultOptions(),
		OutputDir: ".",
	}
}

// FromEnv returns the defaults overridden by any IMG2PDF_* variables.
func FromEnv() (Config, error) {
	cfg := Default()

	if err := envInt("IMG2PDF_PAGE_WIDTH", &cfg.Geometry.Width); err != nil {
		return cfg, err
	}
	if err := envInt("IMG2PDF_PAGE_HEIGHT", &cfg.Geometry.Height); err != nil {
		return cfg, err
	}
	if v := os.Getenv("IMG2PDF_DPI"); v != "" {
		dpi, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid IMG2PDF_DPI %q: %w", v, err)
		}
		cfg.Document.DPI = dpi
	}
	if v := os.Getenv("IMG2PDF_FILL"); v != "" {
		fill, err := ParseHexColor(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid IMG2PDF_FILL: %w", err)
		}
		cfg.Geometry.Fill = fill
	}
	if v := os.Getenv("IMG2PDF_FORMAT"); v != "" {
		cfg.Document.Format = strings.ToLower(v)
	}
	if err := envInt("IMG2PDF_JPEG_QUALITY", &cfg.Document.JPEGQuality); err != nil {
		return cfg, err
	}
	if v := os.Getenv("IMG2PDF_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}

	return cfg, nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

// Validate checks the page geometry and document options.
func (c Config) Validate() error {
	if err := c.Geometry.Validate(); err != nil {
		return err
	}
	return c.Document.Validate()
}

// Manifest is a YAML job file describing one conversion.
type Manifest struct {
	Images   []string       `yaml:"images"`
	Output   string         `yaml:"output"`
	Title    string         `yaml:"title,omitempty"`
	Page     PageConfig     `yaml:"page,omitempty"`
	Encoding EncodingConfig `yaml:"encoding,omitempty"`
}

type PageConfig struct {
	Width  int     `yaml:"width,omitempty"`
	Height int     `yaml:"height,omitempty"`
	DPI    float64 `yaml:"dpi,omitempty"`
	Fill   string  `yaml:"fill,omitempty"`
}

type EncodingConfig struct {
	Format  string `yaml:"format,omitempty"`
	Quality int    `yaml:"quality,omitempty"`
}

// LoadManifest reads a manifest. Relative image and output paths are
// resolved against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i, img := range m.Images {
		if !filepath.IsAbs(img) {
			m.Images[i] = filepath.Join(base, img)
		}
	}
	if m.Output != "" && !filepath.IsAbs(m.Output) {
		m.Output = filepath.Join(base, m.Output)
	}

	return &m, nil
}

// Apply overrides cfg with every field set in the manifest.
func (m *Manifest) Apply(cfg *Config) error {
	if m.Page.Width != 0 {
		cfg.Geometry.Width = m.Page.Width
	}
	if m.Page.Height != 0 {
		cfg.Geometry.Height = m.Page.Height
	}
	if m.Page.DPI != 0 {
		cfg.Document.DPI = m.Page.DPI
	}
	if m.Page.Fill != "" {
		fill, err := ParseHexColor(m.Page.Fill)
		if err != nil {
			return fmt.Errorf("invalid page fill: %w", err)
		}
		cfg.Geometry.Fill = fill
	}
	if m.Encoding.Format != "" {
		cfg.Document.Format = strings.ToLower(m.Encoding.Format)
	}
	if m.Encoding.Quality != 0 {
		cfg.Document.JPEGQuality = m.Encoding.Quality
	}
	if m.Title != "" {
		cfg.Document.Title = m.Title
	}
	return nil
}

// ParseHexColor parses "#rrggbb", "rrggbb" or "#rgb" into an opaque colour.
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimSpace(s)
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}

	if len(hex) != 4 && len(hex) != 7 {
		return color.NRGBA{}, fmt.Errorf("colour %q must be #rrggbb or #rgb", s)
	}

	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("colour %q must be #rrggbb or #rgb: %w", s, err)
	}

	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// FormatHexColor renders c as "#rrggbb".
func FormatHexColor(c color.NRGBA) string {
	c.A = 0xff
	cc, _ := colorful.MakeColor(c)
	return cc.Hex()
}
