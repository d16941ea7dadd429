package main

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/spf13/cobra"

	"image-annotator/internal/annotate"
	"image-annotator/pkg/colorutil"
	"image-annotator/internal/label"
	"image-annotator/internal/render"
	"image-annotator/pkg/geometry"
)

func renderCommand(e *env) *cobra.Command {
	var labelsPath, out string
	cmd := &cobra.Command{
		Use:   "render [image]",
		Short: "Draw labels onto an image",
		Long: `Draw a JSON label list onto an image at full size and write a PNG, using
the same styling as the canvas.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(labelsPath)
			if err != nil {
				return fmt.Errorf("failed to read labels: %w", err)
			}
			var labels []label.Label
			if err := json.Unmarshal(data, &labels); err != nil {
				return fmt.Errorf("failed to parse labels: %w", err)
			}

			loader := newLoader(e)
			defer loader.Close()
			img, err := loader.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := writePreview(e, out, img.Image, labels); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d labels)\n", out, len(labels))
			return nil
		},
	}
	cmd.Flags().StringVarP(&labelsPath, "labels", "l", "", "JSON label list")
	cmd.Flags().StringVarP(&out, "output", "o", "annotated.png", "Output PNG")
	_ = cmd.MarkFlagRequired("labels")
	return cmd
}

// writePreview renders labels over img at scale one and writes a PNG.
func writePreview(e *env, path string, img image.Image, labels []label.Label) error {
	colors, err := colorutil.NewAssignerFromHex(colorStrategy(e), e.cfg.Colors.Palette, e.cfg.Colors.AIColor)
	if err != nil {
		return err
	}
	r := render.New(render.Options{
		Colors:      colors,
		PointRadius: e.cfg.Canvas.PointRadius,
		FillOpacity: 0.2,
		Captions:    true,
	})
	b := img.Bounds()
	view := annotate.View{
		Ready:      true,
		Scale:      1,
		ImageSize:  geometry.Size{Width: float64(b.Dx()), Height: float64(b.Dy())},
		Labels:     labels,
		DimOpacity: e.cfg.Canvas.DimOpacity,
	}
	dst := r.Image(b.Dx(), b.Dy(), img, view, 1)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, dst); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

func colorStrategy(e *env) colorutil.Strategy {
	s, _ := colorutil.ParseStrategy(e.cfg.Colors.Strategy)
	return s
}
