package mcp

import (
	"time"

	"github.com/nvandessel/hexmetrics/internal/pathutil"
)

// auditTool records a tool invocation in the diagnostics log. Path parameters
// are redacted and empty ones dropped.
func (s *Server) auditTool(tool string, start time.Time, err error, params map[string]string) {
	event := map[string]any{
		"kind":        "tool_call",
		"tool":        tool,
		"duration_ms": time.Since(start).Milliseconds(),
		"status":      "success",
	}
	if err != nil {
		event["status"] = "error"
		event["error"] = err.Error()
	}

	clean := make(map[string]string, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		switch k {
		case "input", "table", "output_dir", "database":
			clean[k] = pathutil.RedactPath(v)
		default:
			clean[k] = v
		}
	}
	if len(clean) > 0 {
		event["params"] = clean
	}
	s.diagnostics.Log(event)

	if s.logger != nil {
		s.logger.Debug("tool call", "tool", tool, "status", event["status"], "duration", time.Since(start))
	}
}
