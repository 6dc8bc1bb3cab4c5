package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nvandessel/hexmetrics/internal/config"
	"github.com/nvandessel/hexmetrics/internal/export"
	"github.com/nvandessel/hexmetrics/internal/logging"
	"github.com/nvandessel/hexmetrics/internal/models"
	"github.com/nvandessel/hexmetrics/internal/pipeline"
)

// app carries the configuration and loggers shared by every command.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	diagnostics *logging.DiagnosticLogger
	jsonOut     bool
}

// loadApp resolves configuration from --config, the default locations and the
// environment, then applies --log-level. The caller must close the app.
func loadApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	return &app{
		cfg:         cfg,
		logger:      logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()),
		diagnostics: logging.NewDiagnosticLogger(cfg.Logging.DiagnosticsFile, cfg.Logging.Rotation),
		jsonOut:     jsonOut,
	}, nil
}

func (a *app) Close() {
	a.diagnostics.Close()
}

// options builds pipeline options from the configuration. A non-empty token
// overrides the configured absorbing token.
func (a *app) options(token string) pipeline.Options {
	opts := pipeline.Options{
		Fallback:        models.Legend(a.cfg.Legend),
		AbsorptionToken: a.cfg.Absorption.Token,
		Geometry:        a.cfg.Regions,
		Workers:         a.cfg.Workers,
	}
	if token != "" {
		opts.AbsorptionToken = token
	}
	return opts
}

// analyze runs one invocation over the command's input flags and fails when
// the invocation aborts.
func (a *app) analyze(cmd *cobra.Command) (*pipeline.Outcome, error) {
	input, _ := cmd.Flags().GetString("input")
	table, _ := cmd.Flags().GetString("csv")
	token, _ := cmd.Flags().GetString("token")

	in, err := export.OpenInput(input, table)
	if err != nil {
		return nil, err
	}
	p := pipeline.New(a.options(token))
	p.SetLogger(a.logger, a.diagnostics)

	out := p.Run(cmd.Context(), in)
	if !out.Completed() {
		return out, fmt.Errorf("analysis aborted: %s", out.Reason)
	}
	return out, nil
}

// addInputFlags registers the flags every analysing command shares.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("input", "", "Directory, ZIP archive or JSON file of run documents")
	cmd.Flags().String("csv", "", "Pre-merged table to analyse instead (.csv, or .arrow)")
	cmd.Flags().String("token", "", "Absorbing token name or integer code (default from config)")
	cmd.MarkFlagsMutuallyExclusive("input", "csv")
	cmd.MarkFlagsOneRequired("input", "csv")
}

func (a *app) printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
