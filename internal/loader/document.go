// Package loader decodes simulation run logs into models.Run values.
//
// A run document is the JSON file written by the simulator:
//
//	{
//	  "legend":     {"WILDS": 1, "WASTES": 2, "DEVA": 3, "DEVB": 4},
//	  "game_state": {"seed": 42, "bag_total": 30, "max_rounds": 50},
//	  "timeline":   [{"round": 0, "states": [1, 2, 2, ...]}, ...]
//	}
//
// Decoding is tolerant: malformed timeline entries are dropped with a
// diagnostic and uncoercible token values become missing codes. Only a
// document that cannot be parsed at all is rejected.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/nvandessel/hexmetrics/internal/models"
)

// document mirrors the simulator's JSON layout. Everything below the root is
// kept raw so each field can fail independently.
type document struct {
	Legend    json.RawMessage   `json:"legend"`
	GameState json.RawMessage   `json:"game_state"`
	Seed      json.RawMessage   `json:"seed"`
	BagTotal  json.RawMessage   `json:"bag_total"`
	MaxRounds json.RawMessage   `json:"max_rounds"`
	Timeline  []json.RawMessage `json:"timeline"`
}

type gameState struct {
	Seed      json.RawMessage `json:"seed"`
	BagTotal  json.RawMessage `json:"bag_total"`
	MaxRounds json.RawMessage `json:"max_rounds"`
}

type timelineEntry struct {
	Round  json.RawMessage `json:"round"`
	States json.RawMessage `json:"states"`
}

// DecodeRun parses one run document. id becomes the run identifier.
// A nil Run with a *SourceError is returned for documents that cannot be used;
// a duplicate round index yields an error wrapping models.ErrDuplicateKey.
func DecodeRun(id string, data []byte) (*models.Run, []models.Diagnostic, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, nil, &SourceError{Source: id, Cause: fmt.Sprintf("invalid JSON object: %v", err)}
	}
	if _, ok := root["timeline"]; !ok {
		return nil, nil, &SourceError{Source: id, Cause: "missing timeline"}
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, &SourceError{Source: id, Cause: fmt.Sprintf("timeline is not a list: %v", err)}
	}

	var warnings []models.Diagnostic
	warn := func(kind models.DiagnosticKind, format string, args ...any) {
		warnings = append(warnings, models.Diagnostic{Kind: kind, Source: id, Message: fmt.Sprintf(format, args...)})
	}

	run := &models.Run{ID: id}

	if len(doc.Legend) > 0 {
		if err := json.Unmarshal(doc.Legend, &run.Legend); err != nil {
			warn(models.DiagLegendIgnored, "%v", err)
			run.Legend = nil
		}
	}

	run.Meta = decodeMetadata(doc)

	width := 0
	seen := make(map[int]int, len(doc.Timeline))
	for i, rawEntry := range doc.Timeline {
		var entry timelineEntry
		if err := json.Unmarshal(rawEntry, &entry); err != nil {
			warn(models.DiagRoundDropped, "timeline[%d]: not an object", i)
			continue
		}

		round := i
		if present(entry.Round) {
			r, ok := models.CoerceInt(entry.Round)
			if !ok {
				warn(models.DiagRoundDropped, "timeline[%d]: round %s is not an integer", i, entry.Round)
				continue
			}
			round = int(r)
		}

		var states []json.RawMessage
		if !present(entry.States) || json.Unmarshal(entry.States, &states) != nil {
			warn(models.DiagRoundDropped, "timeline[%d]: states is not a list", i)
			continue
		}

		if prev, dup := seen[round]; dup {
			return nil, warnings, fmt.Errorf("%w: run %s round %d appears at timeline[%d] and timeline[%d]",
				models.ErrDuplicateKey, id, round, prev, i)
		}
		seen[round] = i

		codes := make([]models.Code, len(states))
		for p, raw := range states {
			if v, ok := models.CoerceInt(raw); ok {
				codes[p] = models.Known(int(v))
			}
		}
		if len(codes) > width {
			width = len(codes)
		}
		run.Snapshots = append(run.Snapshots, models.RoundSnapshot{RunID: id, Round: round, Codes: codes})
	}

	normalize(run, width)
	return run, warnings, nil
}

// normalize sorts snapshots by round and right-pads them to width.
func normalize(run *models.Run, width int) {
	sort.SliceStable(run.Snapshots, func(i, j int) bool {
		return run.Snapshots[i].Round < run.Snapshots[j].Round
	})
	for i := range run.Snapshots {
		if pad := width - len(run.Snapshots[i].Codes); pad > 0 {
			run.Snapshots[i].Codes = append(run.Snapshots[i].Codes, make([]models.Code, pad)...)
		}
	}
}

// decodeMetadata reads seed, bag_total and max_rounds from game_state,
// falling back to top-level fields of the same name.
func decodeMetadata(doc document) models.Metadata {
	var gs gameState
	if present(doc.GameState) {
		_ = json.Unmarshal(doc.GameState, &gs)
	}
	pick := func(a, b json.RawMessage) (int64, bool) {
		if v, ok := models.CoerceInt(a); ok {
			return v, true
		}
		return models.CoerceInt(b)
	}

	var meta models.Metadata
	if v, ok := pick(gs.Seed, doc.Seed); ok {
		meta.Seed = &v
	}
	if v, ok := pick(gs.BagTotal, doc.BagTotal); ok {
		n := int(v)
		meta.BagTotal = &n
	}
	if v, ok := pick(gs.MaxRounds, doc.MaxRounds); ok {
		n := int(v)
		meta.MaxRounds = &n
	}
	return meta
}

func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}
