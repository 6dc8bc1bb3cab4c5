package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/hexmetrics/internal/store"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List reports stored in a SQLite database",
		Long: `List the reports 'hexmetrics analyze --db' stored, newest first.

Examples:
  hexmetrics history --db runs.db
  hexmetrics history --db runs.db --delete 6f1c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			dbPath, _ := cmd.Flags().GetString("db")
			if dbPath == "" {
				dbPath = a.cfg.Output.Database
			}
			if dbPath == "" {
				return fmt.Errorf("--db is required (or set output.database)")
			}

			db, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if id, _ := cmd.Flags().GetString("delete"); id != "" {
				if err := db.Delete(cmd.Context(), id); err != nil {
					return err
				}
				if a.jsonOut {
					return a.printJSON(cmd, map[string]string{"deleted": id})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
				return nil
			}

			invs, err := db.Invocations(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(cmd, map[string]any{"invocations": invs, "count": len(invs)})
			}

			w := cmd.OutOrStdout()
			if len(invs) == 0 {
				fmt.Fprintln(w, "No stored reports")
				return nil
			}
			for _, inv := range invs {
				fmt.Fprintf(w, "%s  %s  %d runs, %d absorbed\n",
					inv.ID, inv.CreatedAt.Local().Format(time.DateTime), inv.Runs, inv.Summary.Absorbed)
			}
			return nil
		},
	}

	cmd.Flags().String("db", "", "SQLite database (default from config)")
	cmd.Flags().String("delete", "", "Delete the report with this ID")
	return cmd
}
