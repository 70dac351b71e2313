// Package export writes flattened, out-of-band indexes of a mission dataset.
//
// Every writer reads through the missionset facade and fails on the first
// loader error. Nothing is ever written into the dataset itself.
package export

import (
	"context"
	"fmt"

	"github.com/justapithecus/missionset/missionset"
)

// TaskRow is one task flattened for tabular output.
type TaskRow struct {
	Type       string   `json:"type"`
	TaskID     string   `json:"task_id"`
	ScenarioID string   `json:"scenario_id"`
	GoalIDs    []string `json:"goal_ids"`
	GoalCount  int      `json:"goal_count"`
	Source     string   `json:"source"`
}

// Rows builds one row per task in aggregate order.
func Rows(ctx context.Context, ds *missionset.Dataset) ([]TaskRow, error) {
	if ds == nil {
		return nil, fmt.Errorf("export: nil dataset")
	}
	tasks, err := ds.Tasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: load tasks: %w", err)
	}
	rows := make([]TaskRow, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, rowFromTask(t))
	}
	return rows, nil
}

func rowFromTask(t *missionset.Task) TaskRow {
	ids := make([]string, 0, len(t.Goals))
	for _, g := range t.Goals {
		ids = append(ids, g.ID)
	}
	return TaskRow{
		Type:       t.Type,
		TaskID:     t.ID,
		ScenarioID: t.Scenario.ID,
		GoalIDs:    ids,
		GoalCount:  len(ids),
		Source:     t.Source,
	}
}
