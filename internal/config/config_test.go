package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/hexmetrics/internal/models"
	"github.com/nvandessel/hexmetrics/internal/regions"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	config := Default()

	if len(config.Legend) != 4 || config.Legend[0].Name != "WILDS" || config.Legend[0].Code != 1 {
		t.Errorf("unexpected default legend: %v", config.Legend)
	}
	if config.Absorption.Token != "WILDS" {
		t.Errorf("expected Absorption.Token 'WILDS', got '%s'", config.Absorption.Token)
	}
	if len(config.Regions) != 3 {
		t.Errorf("expected 3 default regions, got %d", len(config.Regions))
	}
	if config.Workers != 4 {
		t.Errorf("expected Workers 4, got %d", config.Workers)
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
	if config.Logging.DiagnosticsFile != "" {
		t.Errorf("expected no diagnostics file by default, got '%s'", config.Logging.DiagnosticsFile)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
legend:
  DEVB: 4
  WILDS: 7
absorption:
  token: DEVB
regions:
  - name: core
    indices: [1, 2]
  - name: rim
    ranges:
      - {from: 3, to: 19}
workers: 8
output:
  dir: out
  arrow: true
logging:
  level: debug
  rotation:
    max_size_mb: 5
`)

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	want := Legend{{Name: "DEVB", Code: 4}, {Name: "WILDS", Code: 7}}
	if len(config.Legend) != 2 || config.Legend[0] != want[0] || config.Legend[1] != want[1] {
		t.Errorf("Legend = %v, want %v (declaration order)", config.Legend, want)
	}
	if config.Absorption.Token != "DEVB" {
		t.Errorf("expected token DEVB, got %s", config.Absorption.Token)
	}
	if len(config.Regions) != 2 || config.Regions[1].Ranges[0] != (regions.Range{From: 3, To: 19}) {
		t.Errorf("Regions = %+v", config.Regions)
	}
	if config.Workers != 8 || config.Output.Dir != "out" || !config.Output.Arrow {
		t.Errorf("unexpected workers/output: %d %+v", config.Workers, config.Output)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected level debug, got %s", config.Logging.Level)
	}
	// Unset keys keep their defaults.
	if config.Logging.Rotation.MaxSizeMB != 5 || config.Logging.Rotation.MaxBackups != 3 {
		t.Errorf("Rotation = %+v", config.Logging.Rotation)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("loaded config should be valid: %v", err)
	}
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_DIAG_DIR", "/var/log/hex")
	path := writeConfig(t, t.TempDir(), `
logging:
  diagnostics_file: ${TEST_DIAG_DIR}/diagnostics.jsonl
`)

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Logging.DiagnosticsFile != "/var/log/hex/diagnostics.jsonl" {
		t.Errorf("expected expanded path, got '%s'", config.Logging.DiagnosticsFile)
	}
}

func TestLoad_Layering(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.MkdirAll(filepath.Join(home, ".hexmetrics"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(home, ".hexmetrics", "config.yaml"), []byte("workers: 2\nabsorption:\n  token: WASTES\n"), 0600); err != nil {
		t.Fatal(err)
	}
	explicit := writeConfig(t, t.TempDir(), "workers: 6\n")
	t.Setenv("HEXMETRICS_LOG_LEVEL", "trace")

	config, err := Load(explicit)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Workers != 6 {
		t.Errorf("explicit file should override home: workers = %d", config.Workers)
	}
	if config.Absorption.Token != "WASTES" {
		t.Errorf("home value should survive: token = %s", config.Absorption.Token)
	}
	if config.Logging.Level != "trace" {
		t.Errorf("env should override files: level = %s", config.Logging.Level)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HEXMETRICS_WORKERS", "12")
	t.Setenv("HEXMETRICS_ABSORPTION_TOKEN", "3")
	t.Setenv("HEXMETRICS_DIAGNOSTICS_FILE", "/tmp/d.jsonl")
	t.Setenv("HEXMETRICS_OUTPUT_DIR", "results")

	config := Default()
	applyEnvOverrides(config)

	if config.Workers != 12 {
		t.Errorf("expected Workers 12, got %d", config.Workers)
	}
	if config.Absorption.Token != "3" {
		t.Errorf("expected token '3', got '%s'", config.Absorption.Token)
	}
	if config.Logging.DiagnosticsFile != "/tmp/d.jsonl" {
		t.Errorf("expected diagnostics file override, got '%s'", config.Logging.DiagnosticsFile)
	}
	if config.Output.Dir != "results" {
		t.Errorf("expected output dir override, got '%s'", config.Output.Dir)
	}
}

func TestEnvOverrides_BadWorkersIgnored(t *testing.T) {
	t.Setenv("HEXMETRICS_WORKERS", "many")
	config := Default()
	applyEnvOverrides(config)
	if config.Workers != 4 {
		t.Errorf("expected Workers to stay 4, got %d", config.Workers)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers"},
		{"too many workers", func(c *Config) { c.Workers = 100000 }, "workers"},
		{"empty token", func(c *Config) { c.Absorption.Token = " " }, "absorption token"},
		{"duplicate legend code", func(c *Config) {
			c.Legend = Legend{{Name: "A", Code: 1}, {Name: "B", Code: 1}}
		}, "legend code"},
		{"duplicate legend name", func(c *Config) {
			c.Legend = Legend{{Name: "A", Code: 1}, {Name: "A", Code: 2}}
		}, "declared twice"},
		{"overlapping regions", func(c *Config) {
			c.Regions = regions.Geometry{{Name: "a", Indices: []int{1}}, {Name: "b", Indices: []int{1}}}
		}, "invalid regions"},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid log level"},
		{"negative rotation", func(c *Config) { c.Logging.Rotation.MaxBackups = -1 }, "rotation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLegend_YAMLRoundTrip(t *testing.T) {
	in := Legend(models.DefaultLegend())
	data, err := yaml.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "WILDS: 1\n") {
		t.Errorf("expected ordered mapping, got %q", data)
	}

	var out Legend
	if err := yaml.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("round trip lost entries: %v", out)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("entry %d = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestLegend_RejectsNonMapping(t *testing.T) {
	var l Legend
	if err := yaml.Unmarshal([]byte("[1, 2]"), &l); err == nil {
		t.Error("expected error for sequence legend")
	}
	if err := yaml.Unmarshal([]byte("WILDS: one"), &l); err == nil {
		t.Error("expected error for non-integer code")
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "workers: [unclosed")
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
