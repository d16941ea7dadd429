package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"image-annotator/internal/detect"
	"image-annotator/internal/detect/vision"
	"image-annotator/internal/imagesource"
	"image-annotator/internal/label"
	"image-annotator/pkg/geometry"
)

type detectFlags struct {
	mode    string
	text    string
	region  string
	engine  string
	out     string
	preview string
}

func detectCommand(e *env) *cobra.Command {
	var f detectFlags
	cmd := &cobra.Command{
		Use:   "detect [image]",
		Short: "Run detection on one image",
		Long: `Run a detection prompt on an image file or URL and print the suggestions
as JSON labels. The output can be passed to "annotool render".`,
		Example: `  annotool detect street.jpg --mode text --text "STOP"
  annotool detect street.jpg --mode image --region 120,80,64,64 --preview out.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.engine == "" {
				f.engine = e.cfg.Detection.Engine
			}
			return runDetect(cmd.Context(), cmd, e, args[0], f)
		},
	}
	cmd.Flags().StringVarP(&f.mode, "mode", "m", string(detect.ModeFree), "Prompt mode: free, text or image")
	cmd.Flags().StringVarP(&f.text, "text", "t", "", "Text prompt")
	cmd.Flags().StringVarP(&f.region, "region", "r", "", "Reference region x,y,w,h for image prompts")
	cmd.Flags().StringVar(&f.engine, "engine", "", "Detection engine: simulated or vision (default from config)")
	cmd.Flags().StringVarP(&f.out, "output", "o", "", "Write the JSON labels to this file")
	cmd.Flags().StringVar(&f.preview, "preview", "", "Also render the suggestions to this PNG")
	return cmd
}

func runDetect(ctx context.Context, cmd *cobra.Command, e *env, src string, f detectFlags) error {
	mode, err := detect.ParseMode(f.mode)
	if err != nil {
		return err
	}
	req := detect.Request{Mode: mode, Text: f.text}
	if f.region != "" {
		r, err := parseRegion(f.region)
		if err != nil {
			return err
		}
		req.Reference = &r
	}

	loader := newLoader(e)
	defer loader.Close()
	img, err := loader.Load(ctx, src)
	if err != nil {
		return err
	}
	req.Image = img.Image
	req.Width, req.Height = img.Size()

	d := e.cfg.Detection
	simulated := detect.NewSimulated(detect.SimulatedOptions{
		Delay:          d.Delay,
		MinConfidence:  d.MinConfidence,
		MaxConfidence:  d.MaxConfidence,
		MaxSuggestions: d.MaxSuggestions,
	})
	detector, closeDetector, err := vision.ForEngine(f.engine, vision.Options{
		Language:  d.OCRLanguage,
		Threshold: d.MatchThreshold,
		Logger:    e.log,
	}, simulated)
	if err != nil {
		return err
	}
	defer func() { _ = closeDetector() }()

	e.log.Info("detecting", "source", src, "mode", mode, "engine", f.engine)
	labels, err := detector.Detect(ctx, req)
	if err != nil {
		return err
	}
	e.log.Info("detection finished", "summary", detect.Summarize(labels).String())
	if labels == nil {
		labels = []label.Label{}
	}

	var w io.Writer = cmd.OutOrStdout()
	if f.out != "" {
		file, err := os.Create(f.out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", f.out, err)
		}
		defer file.Close()
		w = file
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(labels); err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}

	if f.preview != "" {
		return writePreview(e, f.preview, img.Image, labels)
	}
	return nil
}

// parseRegion parses "x,y,w,h" in image pixels.
func parseRegion(s string) (geometry.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geometry.Rect{}, fmt.Errorf("region %q: want x,y,w,h", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geometry.Rect{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = f
	}
	if v[2] <= 0 || v[3] <= 0 {
		return geometry.Rect{}, fmt.Errorf("region %q: width and height must be positive", s)
	}
	return geometry.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

func newLoader(e *env) *imagesource.Loader {
	return imagesource.NewLoader(imagesource.Options{
		CacheTTL:    e.cfg.Images.CacheTTL,
		HTTPTimeout: e.cfg.Images.HTTPTimeout,
		MaxBytes:    e.cfg.Images.MaxBytes,
		Logger:      e.log,
	})
}
