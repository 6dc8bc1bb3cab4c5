package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/hexmetrics/internal/export"
	"github.com/nvandessel/hexmetrics/internal/store"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the full analysis and write every result table",
		Long: `Run every analysis stage and write the results as CSV tables under --out:
the tidy table, absorption rounds and summary, final-state counts, per-round
and per-region counts, and mean evolution curves for all, absorbed and
unabsorbed runs.

With --db the report is also stored in a SQLite database; with --arrow the
tidy table is also written as an Arrow IPC file.

Examples:
  hexmetrics analyze --input sims/ --out results/
  hexmetrics analyze --csv sim_all_rounds.csv --token WASTES --db runs.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			outDir, _ := cmd.Flags().GetString("out")
			if outDir == "" {
				outDir = a.cfg.Output.Dir
			}
			dbPath, _ := cmd.Flags().GetString("db")
			if dbPath == "" {
				dbPath = a.cfg.Output.Database
			}
			arrowOut := a.cfg.Output.Arrow
			if cmd.Flags().Changed("arrow") {
				arrowOut, _ = cmd.Flags().GetBool("arrow")
			}

			out, err := a.analyze(cmd)
			if err != nil {
				return err
			}
			r := out.Report

			writer := export.NewWriter(outDir, arrowOut)
			writer.SetLogger(a.logger)
			files, err := writer.WriteReport(r)
			if err != nil {
				return err
			}

			if dbPath != "" {
				db, err := store.Open(dbPath)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := db.SaveReport(cmd.Context(), r); err != nil {
					return fmt.Errorf("storing report: %w", err)
				}
			}

			if a.jsonOut {
				return a.printJSON(cmd, map[string]any{
					"id":       out.ID,
					"runs":     out.Runs,
					"skipped":  out.Skipped,
					"warnings": out.Warnings,
					"summary":  r.Summary,
					"files":    files,
					"database": dbPath,
				})
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Invocation %s\n", out.ID)
			fmt.Fprintf(w, "Analysed %d runs, %d skipped, %d warnings\n", out.Runs, len(out.Skipped), len(out.Warnings))
			printSummary(cmd, r.Summary)
			fmt.Fprintf(w, "Wrote %d files to %s\n", len(files), outDir)
			if dbPath != "" {
				fmt.Fprintf(w, "Stored report in %s\n", dbPath)
			}
			return nil
		},
	}

	addInputFlags(cmd)
	cmd.Flags().String("out", "", "Output directory (default from config)")
	cmd.Flags().String("db", "", "SQLite database to store the report in")
	cmd.Flags().Bool("arrow", false, "Also write the tidy table as an Arrow IPC file")
	return cmd
}
