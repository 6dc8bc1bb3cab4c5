package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/hexmetrics/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve the analysis as MCP tools over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout.

Tools read inputs from, and write outputs to, the working directory and any
--data-dir. Logs go to stderr so they never mix with protocol messages.

Example MCP client configuration:
  {"command": "hexmetrics", "args": ["mcp-server", "--data-dir", "/data/sims"]}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			root, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
			dataDirs, _ := cmd.Flags().GetStringSlice("data-dir")

			server, err := mcp.NewServer(&mcp.Config{
				Name:        "hexmetrics",
				Version:     version,
				Root:        root,
				DataDirs:    dataDirs,
				Settings:    a.cfg,
				Logger:      a.logger,
				Diagnostics: a.diagnostics,
			})
			if err != nil {
				return err
			}

			a.logger.Info("mcp server starting", "roots", len(dataDirs)+1)
			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().StringSlice("data-dir", nil, "Further directory tools may read and write (repeatable)")
	return cmd
}
