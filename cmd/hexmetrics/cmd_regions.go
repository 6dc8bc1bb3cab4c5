package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/hexmetrics/internal/export"
	"github.com/nvandessel/hexmetrics/internal/metrics"
)

func newRegionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regions",
		Short: "Token counts per board region and mean regional curves",
		Long: `Partition the board into regions (inner, middle and outer by default, see the
regions key of the configuration) and report token counts per region per
round, plus the mean count per round over all, absorbed and unabsorbed runs.

With --out the long per-region table and every regional curve are written as
CSV files.

Examples:
  hexmetrics regions --input sims/
  hexmetrics regions --csv sim_all_rounds.csv --out results/`,
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

			var curves []metrics.Curve
			for _, c := range r.Curves {
				if c.Region != "" {
					curves = append(curves, c)
				}
			}

			var files []string
			if dir, _ := cmd.Flags().GetString("out"); dir != "" {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("creating output directory: %w", err)
				}
				writer := export.NewWriter(dir, false)
				writer.SetLogger(a.logger)
				frames := []*export.Frame{export.RegionEvolutionFrame(r.Labels, r.RegionCounts())}
				for _, c := range curves {
					frames = append(frames, export.CurveFrame(r.Labels, c))
				}
				for _, f := range frames {
					path, err := writer.WriteFrame(f)
					if err != nil {
						return err
					}
					files = append(files, path)
				}
			}

			if a.jsonOut {
				return a.printJSON(cmd, map[string]any{
					"labels":  r.Labels,
					"regions": r.Regions,
					"curves":  curves,
					"files":   files,
				})
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Regions:")
			for _, reg := range r.Regions {
				fmt.Fprintf(w, "  %-8s %v\n", reg.Name, reg.Positions)
			}
			fmt.Fprintf(w, "\nMean counts at the last round (%s):\n", strings.Join(r.Labels, ", "))
			for _, c := range curves {
				if len(c.Points) == 0 {
					fmt.Fprintf(w, "  %-10s %-8s no runs\n", c.Subset, c.Region)
					continue
				}
				last := c.Points[len(c.Points)-1]
				fmt.Fprintf(w, "  %-10s %-8s round %d, %d runs: %s\n", c.Subset, c.Region, last.Round, last.Runs, formatMeans(last.Mean))
			}
			if len(files) > 0 {
				fmt.Fprintf(w, "\nWrote %d files\n", len(files))
			}
			return nil
		},
	}

	addInputFlags(cmd)
	cmd.Flags().String("out", "", "Directory to write the regional tables into")
	return cmd
}

func formatMeans(means []float64) string {
	parts := make([]string, len(means))
	for i, m := range means {
		parts[i] = fmt.Sprintf("%.2f", m)
	}
	return strings.Join(parts, " ")
}
