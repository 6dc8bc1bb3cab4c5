package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hexmetrics",
		Short: "Analyse token-placement simulation logs",
		Long: `hexmetrics turns per-run simulation logs of a token-placement board game
into analysis tables: a tidy per-round table, absorption times, final-state
counts, per-round and per-region token counts, and mean evolution curves.

Input is a directory or ZIP archive of run documents (--input), or a table
previously written by 'hexmetrics merge' (--csv, .csv or .arrow).`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./hexmetrics.yaml, layered over ~/.hexmetrics/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: error, warn, info, debug or trace (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(),
		newMergeCmd(),
		newAnalyzeCmd(),
		newAbsorptionCmd(),
		newRegionsCmd(),
		newSeriesCmd(),
		newHistoryCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "hexmetrics version %s\n", version)
			}
		},
	}
}
