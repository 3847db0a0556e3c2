package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lveselov/remedy/internal/healing"
)

// Advance overwrites the recorded stage for a project and appends the
// transition to the audit trail. Implements healing.ProgressTracker.
func (d *DB) Advance(ctx context.Context, projectID string, stage healing.Stage) error {
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin advance: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO healing_progress (project_id, stage, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(project_id) DO UPDATE SET stage = excluded.stage, updated_at = excluded.updated_at`,
		projectID, stage.String(), now,
	); err != nil {
		return fmt.Errorf("record stage: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO healing_events (project_id, stage, timestamp) VALUES (?, ?, ?)`,
		projectID, stage.String(), now,
	); err != nil {
		return fmt.Errorf("append stage event: %w", err)
	}
	return tx.Commit()
}

// Current returns the last recorded stage for a project, or a StageNone
// state when nothing has ever been recorded.
func (d *DB) Current(ctx context.Context, projectID string) (healing.ProjectHealingState, error) {
	row := d.conn.QueryRowContext(ctx,
		`SELECT stage, updated_at FROM healing_progress WHERE project_id = ?`, projectID)

	var stageName, updatedAt string
	err := row.Scan(&stageName, &updatedAt)
	if err == sql.ErrNoRows {
		return healing.ProjectHealingState{ProjectID: projectID, Stage: healing.StageNone}, nil
	}
	if err != nil {
		return healing.ProjectHealingState{}, fmt.Errorf("read progress: %w", err)
	}

	stage, err := healing.ParseStage(stageName)
	if err != nil {
		return healing.ProjectHealingState{}, err
	}
	ts, _ := time.Parse(time.RFC3339, updatedAt)
	return healing.ProjectHealingState{ProjectID: projectID, Stage: stage, UpdatedAt: ts}, nil
}

// StageEvent is one audit-trail row.
type StageEvent struct {
	ProjectID string
	Stage     string
	Timestamp string
}

// Events returns the most recent audit-trail entries for a project, newest
// first.
func (d *DB) Events(ctx context.Context, projectID string, limit int) ([]StageEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.conn.QueryContext(ctx,
		`SELECT project_id, stage, timestamp FROM healing_events
		 WHERE project_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`,
		projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list stage events: %w", err)
	}
	defer rows.Close()

	var events []StageEvent
	for rows.Next() {
		var e StageEvent
		if err := rows.Scan(&e.ProjectID, &e.Stage, &e.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// AttemptStats aggregates terminal outcomes for one project.
type AttemptStats struct {
	ProjectID string
	Succeeded int
	Failed    int
}

// Stats counts finished healing attempts per project from the audit trail.
func (d *DB) Stats(ctx context.Context) ([]AttemptStats, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT project_id,
		        SUM(CASE WHEN stage = ? THEN 1 ELSE 0 END),
		        SUM(CASE WHEN stage = ? THEN 1 ELSE 0 END)
		 FROM healing_events GROUP BY project_id ORDER BY project_id`,
		healing.StageFinishedSuccess.String(), healing.StageFinishedFailure.String())
	if err != nil {
		return nil, fmt.Errorf("aggregate attempts: %w", err)
	}
	defer rows.Close()

	var stats []AttemptStats
	for rows.Next() {
		var s AttemptStats
		if err := rows.Scan(&s.ProjectID, &s.Succeeded, &s.Failed); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
