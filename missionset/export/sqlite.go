package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/justapithecus/missionset/missionset"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

const sqliteSchema = `
CREATE TABLE types (
	name TEXT PRIMARY KEY
);
CREATE TABLE goals (
	type TEXT NOT NULL,
	id TEXT NOT NULL,
	position INTEGER NOT NULL,
	description TEXT NOT NULL,
	target_category TEXT NOT NULL,
	target_type TEXT NOT NULL,
	target TEXT NOT NULL,
	field TEXT NOT NULL,
	operator TEXT NOT NULL,
	value TEXT NOT NULL,
	quantifier TEXT NOT NULL,
	PRIMARY KEY (type, id)
);
CREATE TABLE scenarios (
	type TEXT NOT NULL,
	id TEXT NOT NULL,
	environment_counts TEXT NOT NULL,
	map_server_config TEXT NOT NULL,
	dashboard_image TEXT NOT NULL,
	has_dashboard_image INTEGER NOT NULL,
	PRIMARY KEY (type, id)
);
CREATE TABLE tasks (
	type TEXT NOT NULL,
	id TEXT NOT NULL,
	scenario_id TEXT NOT NULL,
	goal_count INTEGER NOT NULL,
	source TEXT NOT NULL,
	attributes TEXT NOT NULL,
	PRIMARY KEY (type, id)
);
CREATE TABLE task_goals (
	type TEXT NOT NULL,
	task_id TEXT NOT NULL,
	goal_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (type, task_id, position)
);
`

// WriteSQLite exports ds into a new SQLite database at path. An existing
// file at path is replaced. Types that lack a goals file or a scenarios
// directory contribute no rows to that table; any other loader error aborts
// the export.
func WriteSQLite(ctx context.Context, path string, ds *missionset.Dataset) (err error) {
	if ds == nil {
		return errors.New("export: nil dataset")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("export: replace %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close sqlite: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	types, err := ds.ListTypes(ctx)
	if err != nil {
		return err
	}
	for _, typ := range types {
		if _, err := tx.ExecContext(ctx, `INSERT INTO types(name) VALUES (?)`, typ); err != nil {
			return fmt.Errorf("insert type %s: %w", typ, err)
		}
		if err := insertGoals(ctx, tx, ds, typ); err != nil {
			return err
		}
		if err := insertScenarios(ctx, tx, ds, typ); err != nil {
			return err
		}
	}
	if err := insertTasks(ctx, tx, ds); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertGoals(ctx context.Context, tx *sql.Tx, ds *missionset.Dataset, typ string) error {
	goals, err := ds.Goals(ctx, typ)
	if errors.Is(err, missionset.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	for i, g := range goals {
		target, err := json.MarshalToString(g.Target)
		if err != nil {
			return fmt.Errorf("encode goal %s/%s target: %w", typ, g.ID, err)
		}
		value, err := json.MarshalToString(g.SuccessCondition.Value)
		if err != nil {
			return fmt.Errorf("encode goal %s/%s value: %w", typ, g.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO goals(type, id, position, description, target_category, target_type, target, field, operator, value, quantifier)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			typ, g.ID, i, g.Description, g.Target.Category, g.Target.Type, target,
			g.SuccessCondition.Field, g.SuccessCondition.Operator, value, string(g.Quantifier))
		if err != nil {
			return fmt.Errorf("insert goal %s/%s: %w", typ, g.ID, err)
		}
	}
	return nil
}

func insertScenarios(ctx context.Context, tx *sql.Tx, ds *missionset.Dataset, typ string) error {
	ids, err := ds.Scenarios(ctx, typ)
	if errors.Is(err, missionset.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, id := range ids {
		s, err := ds.Scenario(ctx, typ, id)
		if err != nil {
			return err
		}
		counts, err := json.MarshalToString(s.EnvironmentCounts)
		if err != nil {
			return fmt.Errorf("encode scenario %s/%s counts: %w", typ, id, err)
		}
		config, err := json.MarshalToString(s.MapServerConfig)
		if err != nil {
			return fmt.Errorf("encode scenario %s/%s config: %w", typ, id, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO scenarios(type, id, environment_counts, map_server_config, dashboard_image, has_dashboard_image)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			typ, id, counts, config, s.DashboardImage, s.HasDashboardImage)
		if err != nil {
			return fmt.Errorf("insert scenario %s/%s: %w", typ, id, err)
		}
	}
	return nil
}

func insertTasks(ctx context.Context, tx *sql.Tx, ds *missionset.Dataset) error {
	tasks, err := ds.Tasks(ctx)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		attrs := t.Attributes
		if attrs == nil {
			attrs = map[string]any{}
		}
		encoded, err := json.MarshalToString(attrs)
		if err != nil {
			return fmt.Errorf("encode task %s/%s attributes: %w", t.Type, t.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO tasks(type, id, scenario_id, goal_count, source, attributes) VALUES (?, ?, ?, ?, ?, ?)`,
			t.Type, t.ID, t.Scenario.ID, len(t.Goals), t.Source, encoded)
		if err != nil {
			return fmt.Errorf("insert task %s/%s: %w", t.Type, t.ID, err)
		}
		for i, g := range t.Goals {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO task_goals(type, task_id, goal_id, position) VALUES (?, ?, ?, ?)`,
				t.Type, t.ID, g.ID, i)
			if err != nil {
				return fmt.Errorf("insert task %s/%s goal %s: %w", t.Type, t.ID, g.ID, err)
			}
		}
	}
	return nil
}
