package history

import (
	"context"
	"fmt"
)

// schema выполняется по одному выражению, каждое идемпотентно.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS autorun_runs (
		id          UUID PRIMARY KEY,
		workflow    TEXT NOT NULL,
		status      TEXT NOT NULL,
		error       TEXT,
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS autorun_tasks (
		run_id      UUID NOT NULL REFERENCES autorun_runs(id) ON DELETE CASCADE,
		step_id     TEXT NOT NULL,
		workflow    TEXT NOT NULL,
		kind        TEXT NOT NULL,
		args        TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL,
		position    INTEGER NOT NULL DEFAULT 0,
		exit_code   INTEGER,
		error       TEXT,
		started_at  TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
		PRIMARY KEY (run_id, step_id)
	)`,
	`ALTER TABLE autorun_tasks ADD COLUMN IF NOT EXISTS position INTEGER NOT NULL DEFAULT 0`,
	`CREATE INDEX IF NOT EXISTS autorun_runs_workflow_started_idx
		ON autorun_runs (workflow, started_at DESC)`,
}

// Migrate создаёт таблицы истории, если их нет.
func Migrate(ctx context.Context, db Querier) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
