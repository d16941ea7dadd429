package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"image-annotator/internal/dataset"
	"image-annotator/internal/export"
)

type exportFlags struct {
	dataset        string
	format         string
	includeUnknown bool
	out            string
}

func exportCommand(e *env) *cobra.Command {
	var f exportFlags
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a demo dataset as a YOLO archive",
		Long: `Seed the demo datasets and write one of them as a YOLO zip archive.
Pending AI suggestions are never exported; unknown labels only with
--include-unknown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("format") {
				f.format = e.cfg.Export.Format
			}
			if !cmd.Flags().Changed("include-unknown") {
				f.includeUnknown = e.cfg.Export.IncludeUnknown
			}
			return runExport(cmd, e, f)
		},
	}
	cmd.Flags().StringVarP(&f.dataset, "dataset", "d", "", "Dataset id (default: the first dataset)")
	cmd.Flags().StringVarP(&f.format, "format", "f", "xywh", "Box format: xywh or xyxy")
	cmd.Flags().BoolVar(&f.includeUnknown, "include-unknown", false, "Export labels whose category is unknown")
	cmd.Flags().StringVarP(&f.out, "output", "o", "", "Archive path (default: <dataset name>_yolo_export.zip)")
	return cmd
}

func runExport(cmd *cobra.Command, e *env, f exportFlags) error {
	format, err := export.ParseFormat(f.format)
	if err != nil {
		return err
	}

	store := dataset.NewStore()
	if err := dataset.Seed(store, e.cfg.Data.Seed); err != nil {
		return fmt.Errorf("failed to seed datasets: %w", err)
	}
	d, err := pickDataset(store, f.dataset)
	if err != nil {
		return err
	}
	images, err := store.Images(d.ID, dataset.FilterAll)
	if err != nil {
		return err
	}
	items := make([]export.Item, len(images))
	for i, img := range images {
		items[i] = export.Item{ID: img.ID, FileName: img.FileName, Width: img.Width, Height: img.Height, Labels: img.Labels}
	}

	res, err := export.Pack(items, export.Options{
		Format:         format,
		IncludeUnknown: f.includeUnknown,
		Classes:        d.Categories,
		Logger:         e.log,
	})
	if err != nil {
		return err
	}

	out := f.out
	if out == "" {
		out = export.ArchiveName(d.Name)
	}
	if err := os.WriteFile(out, res.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	e.log.Info("export written", "dataset", d.ID, "path", out, "files", res.Files, "boxes", res.Boxes)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d files, %d boxes, %d skipped, %d classes\n",
		out, res.Files, res.Boxes, res.Skipped, len(res.Classes))
	return nil
}

func pickDataset(store *dataset.Store, id string) (dataset.Dataset, error) {
	if id != "" {
		return store.Dataset(id)
	}
	all := store.Datasets()
	if len(all) == 0 {
		return dataset.Dataset{}, fmt.Errorf("no datasets")
	}
	return all[0], nil
}
