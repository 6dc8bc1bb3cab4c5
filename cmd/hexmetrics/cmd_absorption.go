package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/hexmetrics/internal/absorption"
)

func newAbsorptionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "absorption",
		Short: "Report when runs were fully covered by the absorbing token",
		Long: `For every run, find the first round in which every board position holds the
absorbing token, then summarise: the share of runs absorbed, the mean and
median absorption round, and a histogram of absorption rounds.

Examples:
  hexmetrics absorption --input sims/
  hexmetrics absorption --csv sim_all_rounds.csv --token 2 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.analyze(cmd)
			if err != nil {
				return err
			}
			r := out.Report

			if a.jsonOut {
				return a.printJSON(cmd, map[string]any{
					"code":    r.AbsorptionCode,
					"summary": r.Summary,
					"results": r.Absorption,
					"skipped": out.Skipped,
				})
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Absorbing code: %d\n", r.AbsorptionCode)
			printSummary(cmd, r.Summary)
			if len(r.Summary.Histogram) > 0 {
				fmt.Fprintln(w, "Histogram:")
				for _, b := range r.Summary.Histogram {
					fmt.Fprintf(w, "  round %4d: %d\n", b.Round, b.Runs)
				}
			}
			return nil
		},
	}

	addInputFlags(cmd)
	return cmd
}

// printSummary prints the absorption summary in text form.
func printSummary(cmd *cobra.Command, s absorption.Summary) {
	w := cmd.OutOrStdout()
	if s.Runs == 0 {
		fmt.Fprintln(w, "No runs")
		return
	}
	fmt.Fprintf(w, "Absorbed: %d of %d runs", s.Absorbed, s.Runs)
	if s.Ratio != nil {
		fmt.Fprintf(w, " (%.1f%%)", *s.Ratio*100)
	}
	fmt.Fprintln(w)
	if s.Mean != nil && s.Median != nil {
		fmt.Fprintf(w, "Absorption round: mean %.2f, median %.1f\n", *s.Mean, *s.Median)
	}
}
