package loader

import (
	"github.com/nvandessel/hexmetrics/internal/models"
	"github.com/nvandessel/hexmetrics/internal/tidy"
)

// FromTable splits a pre-merged table into runs, one partition per run ID.
// Codes are aligned with t.Positions(), one entry per position column, so a
// sparse header such as pos_1,pos_5000 yields two codes per snapshot.
func FromTable(t *tidy.Table) []*models.Run {
	width := len(t.Positions())

	ids := t.RunIDs()
	runs := make([]*models.Run, 0, len(ids))
	for _, id := range ids {
		run := &models.Run{ID: id, Meta: t.Meta(id)}
		for _, row := range t.RunRows(id) {
			codes := make([]models.Code, width)
			copy(codes, row.Codes)
			run.Snapshots = append(run.Snapshots, models.RoundSnapshot{RunID: id, Round: row.Round, Codes: codes})
		}
		runs = append(runs, run)
	}
	return runs
}
