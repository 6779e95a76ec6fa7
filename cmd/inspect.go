package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/img2pdf/internal/document"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const mmPerPoint = 25.4 / 72

func newInspectCmd() *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "inspect FILE.pdf",
		Short: "Show the page count and page sizes of a PDF",
		Example: `  img2pdf inspect scans.pdf
  img2pdf inspect scans.pdf --yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := document.Inspect(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asYAML {
				data, err := yaml.Marshal(info)
				if err != nil {
					return fmt.Errorf("failed to marshal page info: %w", err)
				}
				_, err = out.Write(data)
				return err
			}

			fmt.Fprintf(out, "%s: %d pages\n", info.Path, info.Pages)
			for i, d := range info.Dims {
				fmt.Fprintf(out, "  %3d  %.2f x %.2f pt  (%.1f x %.1f mm)\n", i+1, d.Width, d.Height, d.Width*mmPerPoint, d.Height*mmPerPoint)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the page information as YAML")

	return cmd
}
