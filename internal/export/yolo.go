// Package export writes labels in YOLO text format.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"image-annotator/internal/label"
	"image-annotator/internal/logging"
)

// Format is the coordinate convention of a YOLO line.
type Format string

const (
	// FormatXYWH writes center x, center y, width, height.
	FormatXYWH Format = "xywh"
	// FormatXYXY writes the top-left and bottom-right corners.
	FormatXYXY Format = "xyxy"
)

// ParseFormat parses a format name; the empty string selects xywh.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatXYWH, FormatXYXY:
		return f, nil
	case "":
		return FormatXYWH, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ErrNoImageSize is returned for an image whose size is not known.
var ErrNoImageSize = errors.New("image size unknown")

// Options controls which labels are written and how.
type Options struct {
	Format Format
	// IncludeUnknown keeps labels whose category is still a placeholder.
	IncludeUnknown bool
	// Classes fixes the order of class indices. Categories found on labels
	// but missing here are appended in first-seen order.
	Classes []string
	Logger  *slog.Logger
}

// Item is one image with its labels.
type Item struct {
	ID       string
	FileName string
	Width    int
	Height   int
	Labels   []label.Label
}

// Result is a packed export.
type Result struct {
	Data    []byte
	Files   int
	Boxes   int
	Skipped int
	Classes []string
}

// Exportable reports whether a label is written under opts. Pending AI
// suggestions never are.
func Exportable(l label.Label, opts Options) bool {
	if l.IsAISuggestion {
		return false
	}
	if l.IsUnknown() && !opts.IncludeUnknown {
		return false
	}
	return l.Shape != nil
}

type classIndex struct {
	names []string
	index map[string]int
}

func newClassIndex(seed []string) *classIndex {
	c := &classIndex{index: make(map[string]int)}
	for _, n := range seed {
		c.add(n)
	}
	return c
}

func (c *classIndex) add(name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		name = label.CategoryUnknown
	}
	if i, ok := c.index[name]; ok {
		return i
	}
	c.index[name] = len(c.names)
	c.names = append(c.names, name)
	return c.index[name]
}

// Line formats one label as a YOLO line with coordinates normalized by the
// image size and clamped to [0,1]. Polygons and points use their bounds.
func Line(class int, l label.Label, width, height int, format Format) (string, error) {
	if width <= 0 || height <= 0 {
		return "", ErrNoImageSize
	}
	b := l.Shape.Bounds()
	w, h := float64(width), float64(height)
	var v [4]float64
	switch format {
	case FormatXYXY:
		v = [4]float64{b.X / w, b.Y / h, (b.X + b.Width) / w, (b.Y + b.Height) / h}
	case FormatXYWH, "":
		c := b.Center()
		v = [4]float64{c.X / w, c.Y / h, b.Width / w, b.Height / h}
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
	for i := range v {
		v[i] = min(max(v[i], 0), 1)
	}
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f", class, v[0], v[1], v[2], v[3]), nil
}

// LabelFileName maps an image file name to its label file inside the
// archive.
func LabelFileName(fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		stem = "image"
	}
	return "labels/" + stem + ".txt"
}

// ArchiveName is the suggested file name of a dataset export.
func ArchiveName(datasetName string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(datasetName))
	if name == "" {
		name = "dataset"
	}
	return name + "_yolo_export.zip"
}

// Write packs one label file per item plus classes.txt into a zip archive.
func Write(w io.Writer, items []Item, opts Options) (Result, error) {
	log := logging.OrNop(opts.Logger)
	if opts.Format == "" {
		opts.Format = FormatXYWH
	}
	classes := newClassIndex(opts.Classes)
	zw := zip.NewWriter(w)
	var res Result
	used := make(map[string]bool)

	for _, item := range items {
		name := LabelFileName(item.FileName)
		if used[name] {
			name = strings.TrimSuffix(name, ".txt") + "_" + item.ID + ".txt"
		}
		used[name] = true

		var b strings.Builder
		for _, l := range item.Labels {
			if !Exportable(l, opts) {
				res.Skipped++
				continue
			}
			line, err := Line(classes.add(l.Category), l, item.Width, item.Height, opts.Format)
			if err != nil {
				return res, fmt.Errorf("image %s: %w", item.FileName, err)
			}
			b.WriteString(line)
			b.WriteByte('\n')
			res.Boxes++
		}

		f, err := zw.Create(name)
		if err != nil {
			return res, fmt.Errorf("create %s: %w", name, err)
		}
		if _, err := io.WriteString(f, b.String()); err != nil {
			return res, fmt.Errorf("write %s: %w", name, err)
		}
		res.Files++
	}

	f, err := zw.Create("classes.txt")
	if err != nil {
		return res, fmt.Errorf("create classes.txt: %w", err)
	}
	if len(classes.names) > 0 {
		if _, err := io.WriteString(f, strings.Join(classes.names, "\n")+"\n"); err != nil {
			return res, fmt.Errorf("write classes.txt: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return res, fmt.Errorf("close archive: %w", err)
	}
	res.Classes = classes.names

	log.Info("yolo export", "format", opts.Format, "files", res.Files, "boxes", res.Boxes, "skipped", res.Skipped)
	return res, nil
}

// Pack writes the archive into memory.
func Pack(items []Item, opts Options) (Result, error) {
	var buf bytes.Buffer
	res, err := Write(&buf, items, opts)
	if err != nil {
		return res, err
	}
	res.Data = buf.Bytes()
	return res, nil
}

// Run waits delay, the time a remote export service would take, and then
// packs the archive. Canceling ctx aborts the wait.
func Run(ctx context.Context, items []Item, opts Options, delay time.Duration) (Result, error) {
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Pack(items, opts)
}
