package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"transmirror/internal/classify"
	"transmirror/internal/pathmap"
	"transmirror/internal/reconcile"
	"transmirror/internal/report"
	"transmirror/internal/scan"
)

func newCompareCommand(cctx *commandContext) *cobra.Command {
	var (
		format      string
		showSkipped bool
		probe       bool
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare the source and destination trees without changing anything",
		Long: `Compare walks both trees and reports files missing from the destination,
orphaned encodes, and low-resolution sources that are skipped. By default
sources are classified from filename quality markers; --probe runs ffprobe
on every unmatched source instead, which is slower but exact.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}

			ignore, err := scan.CompileIgnore(cfg.Scan.IgnorePatterns)
			if err != nil {
				return err
			}
			mapper := pathmap.New(cfg.Paths.SourceDir, cfg.Paths.DestDir, cfg.Links.Prefix, cfg.Links.Suffix)
			walker := &scan.Walker{Mapper: mapper, Ignore: ignore}

			snap, err := walker.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			var classifier classify.Classifier = classify.Markers{}
			if probe {
				classifier = classify.NewProber(cfg.FFprobeBinary(), cfg.Encoding.MaxHeight)
			}
			buckets, err := reconcile.ClassifySnapshot(cmd.Context(), snap, classifier)
			if err != nil {
				return err
			}
			rep := report.Build(snap, buckets)

			out := cmd.OutOrStdout()
			switch strings.ToLower(strings.TrimSpace(format)) {
			case "json":
				if err := rep.WriteJSON(out); err != nil {
					return err
				}
			case "csv":
				if err := rep.WriteCSV(out); err != nil {
					return err
				}
			case "", "text":
				renderCompareText(cmd, rep, showSkipped)
			default:
				return fmt.Errorf("unsupported format %q (expected text, json, or csv)", format)
			}

			if rep.HasIssues() {
				return fmt.Errorf("trees diverge: %d missing, %d orphaned, %d failed",
					rep.Summary.Missing, rep.Summary.Orphaned, rep.Summary.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json, or csv")
	cmd.Flags().BoolVar(&showSkipped, "show-skipped", false, "List skipped low-resolution sources")
	cmd.Flags().BoolVar(&probe, "probe", false, "Classify sources with ffprobe instead of filename markers")
	return cmd
}

func renderCompareText(cmd *cobra.Command, rep report.Report, showSkipped bool) {
	out := cmd.OutOrStdout()

	summaryRows := [][]string{
		{"Source files", fmt.Sprintf("%d", rep.Summary.TotalSource)},
		{"Destination files", fmt.Sprintf("%d", rep.Summary.TotalDest)},
		{"Matched", fmt.Sprintf("%d", rep.Summary.Matched)},
		{"Missing", fmt.Sprintf("%d", rep.Summary.Missing)},
		{"Orphaned", fmt.Sprintf("%d", rep.Summary.Orphaned)},
		{"Skipped", fmt.Sprintf("%d", rep.Summary.Skipped)},
		{"Failed", fmt.Sprintf("%d", rep.Summary.Failed)},
	}
	fmt.Fprintln(out, renderTable(out, []string{"Summary", "Count"}, summaryRows, []columnAlignment{alignLeft, alignRight}))

	printBucket(cmd, "Missing from destination", rep.Buckets.Missing)
	printBucket(cmd, "Orphaned encodes", rep.Buckets.Orphaned)
	printBucket(cmd, "Unreadable sources", rep.Buckets.Failed)
	if showSkipped {
		printBucket(cmd, "Skipped (already low resolution)", rep.Buckets.Skipped)
	}
}

func printBucket(cmd *cobra.Command, title string, items []report.Item) {
	if len(items) == 0 {
		return
	}
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{item.Path, report.FormatSize(item.Size)})
	}
	fmt.Fprintln(out, renderTable(out, []string{title, "Size"}, rows, []columnAlignment{alignLeft, alignRight}))
}
