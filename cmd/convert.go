package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lehigh-university-libraries/img2pdf/internal/config"
	"github.com/lehigh-university-libraries/img2pdf/internal/converter"
	"github.com/lehigh-university-libraries/img2pdf/internal/models"
	"github.com/lehigh-university-libraries/img2pdf/internal/notify"
	"github.com/lehigh-university-libraries/img2pdf/internal/report"
	"github.com/lehigh-university-libraries/img2pdf/internal/selector"
	"github.com/spf13/cobra"
)

var errNotConverted = errors.New("no PDF was created")

type convertOptions struct {
	output       string
	dir          string
	manifestPath string
	width        int
	height       int
	dpi          float64
	fill         string
	format       string
	quality      int
	title        string
	reportPath   string
}

func newConvertCmd() *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert [IMAGE|DIR|GLOB]...",
		Short: "Convert images into one multi-page PDF",
		Long: `Converts the given images into a single PDF, one image per page, in the order
given. Directories contribute their images in name order. Files selected more
than once are only used once.

Settings are taken from flags, then the manifest, then IMG2PDF_* environment
variables (a .env file is honoured), then the defaults.`,
		Example: `  # Two scans into scans.pdf in the current directory
  img2pdf convert page1.jpg page2.png -o scans

  # Every image in a directory, written as lossless PNG pages
  img2pdf convert ./photos --format png -o album.pdf

  # A US Letter page at 300 dpi with a grey background
  img2pdf convert *.tiff --width 2550 --height 3300 --fill "#eeeeee" -o letter

  # Run a YAML job file and keep a placement report
  img2pdf convert --manifest job.yaml --report job-report.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			inputs := args
			if opts.manifestPath != "" {
				m, err := config.LoadManifest(opts.manifestPath)
				if err != nil {
					return err
				}
				if err := m.Apply(&cfg); err != nil {
					return err
				}
				inputs = append(append([]string{}, m.Images...), args...)
				if opts.output == "" {
					opts.output = m.Output
				}
			}

			if err := opts.apply(cmd, &cfg); err != nil {
				return err
			}

			paths, err := selector.Select(inputs)
			if err != nil {
				return err
			}

			sess := models.NewSession("cli")
			sess.OutputName = opts.output
			for _, p := range paths {
				if sess.Add(models.NewImageItem(p)) == 0 {
					slog.Debug("Skipping duplicate image", "path", p)
				}
			}

			return executeConvert(cmd, cfg, sess, opts.reportPath)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output PDF name (.pdf is added when missing)")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "Directory for relative output names (default: IMG2PDF_OUTPUT_DIR or .)")
	cmd.Flags().StringVar(&opts.manifestPath, "manifest", "", "YAML job file listing images, output and page settings")
	cmd.Flags().IntVar(&opts.width, "width", 0, "Page width in pixels (default 2480)")
	cmd.Flags().IntVar(&opts.height, "height", 0, "Page height in pixels (default 3508)")
	cmd.Flags().Float64Var(&opts.dpi, "dpi", 0, "Pixels per inch used for the physical page size (default 300)")
	cmd.Flags().StringVar(&opts.fill, "fill", "", "Page background colour as #rrggbb (default #ffffff)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Page encoding: jpeg or png (default jpeg)")
	cmd.Flags().IntVar(&opts.quality, "quality", 0, "JPEG quality 1-100 (default 92)")
	cmd.Flags().StringVar(&opts.title, "title", "", "Document title metadata")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "Write a YAML placement report to this path")

	return cmd
}

// apply overrides cfg with every flag the user set explicitly.
func (o *convertOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("width") {
		cfg.Geometry.Width = o.width
	}
	if flags.Changed("height") {
		cfg.Geometry.Height = o.height
	}
	if flags.Changed("dpi") {
		cfg.Document.DPI = o.dpi
	}
	if flags.Changed("fill") {
		fill, err := config.ParseHexColor(o.fill)
		if err != nil {
			return fmt.Errorf("invalid --fill: %w", err)
		}
		cfg.Geometry.Fill = fill
	}
	if flags.Changed("format") {
		cfg.Document.Format = strings.ToLower(o.format)
	}
	if flags.Changed("quality") {
		cfg.Document.JPEGQuality = o.quality
	}
	if flags.Changed("title") {
		cfg.Document.Title = o.title
	}
	if flags.Changed("dir") {
		cfg.OutputDir = o.dir
	}
	return cfg.Validate()
}

func executeConvert(cmd *cobra.Command, cfg config.Config, sess *models.Session, reportPath string) error {
	svc := converter.NewService(cfg, notify.NewTerminalNotifier(cmd.OutOrStdout()))

	result, err := svc.Convert(sess)
	n := converter.Notification(result, err)
	svc.Notifier.Notify(n)
	if err != nil {
		return errNotConverted
	}

	if reportPath != "" {
		if err := report.SaveToYAML(reportPath, svc.Report(result)); err != nil {
			return err
		}
		slog.Info("Report written", "path", reportPath)
	}

	return nil
}
