package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSeriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Token counts per round for one run",
		Long: `Print one run's token counts for every recorded round, preceded by a
description of its first recorded board, e.g. "1 wild 10 devA".

Examples:
  hexmetrics series --input sims/ --run sim_0042.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			run, _ := cmd.Flags().GetString("run")

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.analyze(cmd)
			if err != nil {
				return err
			}
			series, composition, ok := out.Report.Series(run)
			if !ok {
				return fmt.Errorf("run %q has no recorded rounds", run)
			}

			if a.jsonOut {
				return a.printJSON(cmd, map[string]any{
					"run":         run,
					"labels":      out.Report.Labels,
					"composition": composition,
					"series":      series,
				})
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s: %s\n", run, composition)
			fmt.Fprintf(w, "%6s %s\n", "round", strings.Join(out.Report.Labels, " "))
			for _, rc := range series {
				cells := make([]string, len(rc.Counts))
				for i, n := range rc.Counts {
					cells[i] = fmt.Sprintf("%*d", len(out.Report.Labels[i]), n)
				}
				fmt.Fprintf(w, "%6d %s\n", rc.Round, strings.Join(cells, " "))
			}
			return nil
		},
	}

	addInputFlags(cmd)
	cmd.Flags().String("run", "", "Run ID (source file name)")
	cmd.MarkFlagRequired("run")
	return cmd
}
