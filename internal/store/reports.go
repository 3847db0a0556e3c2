package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lveselov/remedy/internal/healing"
)

// SaveReport persists a deployment report and its applied-file list in one
// transaction. Implements healing.ReportStore. Reports are write-once.
func (d *DB) SaveReport(ctx context.Context, report *healing.Report) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save report: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO deployment_reports
		 (attempt_id, project_id, title, summary, notes, branch, merge_request_url, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.AttemptID, report.ProjectID, report.Title, report.Summary, report.Notes,
		report.Branch, report.MergeRequestURL, string(report.Status),
		report.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	reportID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("report id: %w", err)
	}

	for _, name := range report.AppliedFiles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO report_files (report_id, file_name) VALUES (?, ?)`,
			reportID, name,
		); err != nil {
			return fmt.Errorf("insert report file %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// ListReports returns a project's reports, newest first.
func (d *DB) ListReports(ctx context.Context, projectID string, limit int) ([]healing.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.QueryContext(ctx,
		`SELECT id, attempt_id, project_id, title, summary, notes, branch, merge_request_url, status, created_at
		 FROM deployment_reports WHERE project_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []healing.Report
	var ids []int64
	for rows.Next() {
		var r healing.Report
		var id int64
		var notes, mrURL sql.NullString
		var createdAt string
		if err := rows.Scan(&id, &r.AttemptID, &r.ProjectID, &r.Title, &r.Summary,
			&notes, &r.Branch, &mrURL, (*string)(&r.Status), &createdAt); err != nil {
			return nil, err
		}
		r.Notes = notes.String
		r.MergeRequestURL = mrURL.String
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		reports = append(reports, r)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, id := range ids {
		files, err := d.reportFiles(ctx, id)
		if err != nil {
			return nil, err
		}
		reports[i].AppliedFiles = files
	}
	return reports, nil
}

func (d *DB) reportFiles(ctx context.Context, reportID int64) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT file_name FROM report_files WHERE report_id = ? ORDER BY file_name`, reportID)
	if err != nil {
		return nil, fmt.Errorf("list report files: %w", err)
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		files = append(files, name)
	}
	return files, rows.Err()
}
