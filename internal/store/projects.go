package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lveselov/remedy/internal/healing"
)

// Project resolves a project identifier to its deployment metadata.
// Implements healing.ProjectDirectory.
func (d *DB) Project(ctx context.Context, projectID string) (*healing.Project, error) {
	row := d.conn.QueryRowContext(ctx,
		`SELECT id, name, gitlab_id, jenkins_job, default_branch FROM projects WHERE id = ?`,
		projectID)

	var p healing.Project
	err := row.Scan(&p.ID, &p.Name, &p.GitLabID, &p.JenkinsJob, &p.DefaultBranch)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %s not found", projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}

	rows, err := d.conn.QueryContext(ctx,
		`SELECT app_name FROM project_apps WHERE project_id = ? ORDER BY app_name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project apps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var app string
		if err := rows.Scan(&app); err != nil {
			return nil, err
		}
		p.Applications = append(p.Applications, app)
	}
	return &p, rows.Err()
}

// UpsertProject registers or updates a project and its deployed applications.
func (d *DB) UpsertProject(ctx context.Context, p *healing.Project) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert project: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO projects (id, name, gitlab_id, jenkins_job, default_branch)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name, gitlab_id = excluded.gitlab_id,
		   jenkins_job = excluded.jenkins_job, default_branch = excluded.default_branch`,
		p.ID, p.Name, p.GitLabID, p.JenkinsJob, p.DefaultBranch,
	); err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM project_apps WHERE project_id = ?`, p.ID); err != nil {
		return fmt.Errorf("clear project apps: %w", err)
	}
	for _, app := range p.Applications {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO project_apps (project_id, app_name) VALUES (?, ?)`,
			p.ID, app,
		); err != nil {
			return fmt.Errorf("insert project app %s: %w", app, err)
		}
	}
	return tx.Commit()
}
