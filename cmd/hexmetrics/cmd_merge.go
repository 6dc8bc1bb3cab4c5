package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nvandessel/hexmetrics/internal/export"
	"github.com/nvandessel/hexmetrics/internal/loader"
	"github.com/nvandessel/hexmetrics/internal/tidy"
)

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge run documents into one tidy table",
		Long: `Decode every run document under --input and write one row per (run, round)
with the columns file, round, bag_total, max_rounds, seed and pos_1..pos_N.

Malformed documents are skipped and reported; the rest are merged.

Examples:
  hexmetrics merge --input sims/ --out sim_all_rounds.csv
  hexmetrics merge --input round2.zip --out sims.arrow`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("input")
			outPath, _ := cmd.Flags().GetString("out")

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sources, err := loader.Sources(input)
			if err != nil {
				return err
			}
			batch, err := loader.LoadAll(cmd.Context(), sources, a.cfg.Workers)
			if err != nil {
				return err
			}
			table, err := tidy.Build(batch.Runs)
			if err != nil {
				return err
			}

			id := uuid.NewString()
			for _, s := range batch.Skipped {
				a.diagnostics.Diagnostic(id, s.Diagnostic())
				a.logger.Warn("source skipped", "source", s.Source, "cause", s.Cause)
			}
			for _, w := range batch.Warnings {
				a.diagnostics.Diagnostic(id, w)
			}

			if strings.EqualFold(filepath.Ext(outPath), ".arrow") {
				err = export.WriteTableArrow(outPath, table, memory.DefaultAllocator)
			} else {
				err = export.WriteTableCSV(outPath, table, memory.DefaultAllocator)
			}
			if err != nil {
				return err
			}

			if a.jsonOut {
				return a.printJSON(cmd, map[string]any{
					"out":      outPath,
					"runs":     len(batch.Runs),
					"rows":     table.Len(),
					"skipped":  batch.Skipped,
					"warnings": batch.Warnings,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d runs (%d rows) into %s\n", len(batch.Runs), table.Len(), outPath)
			if len(batch.Skipped) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Skipped %d malformed sources:\n", len(batch.Skipped))
				for _, s := range batch.Skipped {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s: %v\n", s.Source, s.Cause)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("input", "", "Directory, ZIP archive or JSON file of run documents")
	cmd.Flags().String("out", "sim_all_rounds.csv", "Output table (.csv, or .arrow for Arrow IPC)")
	cmd.MarkFlagRequired("input")
	return cmd
}
