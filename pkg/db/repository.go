package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/imgsync/imgsync/pkg/errors"
	_ "modernc.org/sqlite"
)

// Repository provides database operations for the run ledger
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new repository
func NewRepository(dbPath string) (*Repository, error) {
	slog.Info("database_init", "db_path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		slog.Error("database_open_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to open database")
	}
	// Per-item workers write concurrently; sqlite allows one writer.
	db.SetMaxOpenConns(1)

	slog.Debug("database_create_schema", "db_path", dbPath)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		slog.Error("database_schema_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to create schema")
	}

	slog.Info("database_ready", "db_path", dbPath)
	return &Repository{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// CreateRun inserts a run record in the running state
func (r *Repository) CreateRun(run *Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = r.now()
	}
	if run.Status == "" {
		run.Status = RunRunning
	}
	slog.Debug("database_create_run", "run_id", run.ID, "dry_run", run.DryRun)

	query := `INSERT INTO runs (id, status, dry_run, started_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.Exec(query, run.ID, run.Status, run.DryRun, formatTime(run.StartedAt)); err != nil {
		slog.Error("database_insert_failed", "run_id", run.ID, "error", err)
		return errors.Wrap(err, "failed to insert run")
	}
	return nil
}

// FinishRun stores the final status and reports of a run
func (r *Repository) FinishRun(id, status, summary, unmatched, errorMessage string) error {
	slog.Debug("database_finish_run", "run_id", id, "status", status)

	query := `
		UPDATE runs
		SET status = ?, summary = ?, unmatched = ?, error_message = ?, finished_at = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query, status, summary, unmatched, errorMessage, formatTime(r.now()), id)
	if err != nil {
		slog.Error("database_update_failed", "run_id", id, "error", err)
		return errors.Wrap(err, "failed to update run")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		slog.Error("database_run_not_found_for_update", "run_id", id)
		return fmt.Errorf("run not found: id=%s", id)
	}
	return nil
}

const runColumns = `id, status, dry_run, summary, unmatched, error_message, started_at, finished_at`

func scanRun(scan func(...any) error) (*Run, error) {
	var run Run
	var summary, unmatched, errorMessage, finishedAt sql.NullString
	var startedAt string
	if err := scan(&run.ID, &run.Status, &run.DryRun, &summary, &unmatched, &errorMessage, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	run.Summary = summary.String
	run.Unmatched = unmatched.String
	run.ErrorMessage = errorMessage.String
	run.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		run.FinishedAt = parseTime(finishedAt.String)
	}
	return &run, nil
}

// GetRun retrieves a run by id. It returns nil when the run does not exist.
func (r *Repository) GetRun(id string) (*Run, error) {
	run, err := scanRun(r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id).Scan)
	if err == sql.ErrNoRows {
		slog.Debug("database_run_not_found", "run_id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("database_query_failed", "run_id", id, "error", err)
		return nil, errors.Wrap(err, "failed to query run")
	}
	return run, nil
}

// LatestRun retrieves the most recently started run, or nil.
func (r *Repository) LatestRun() (*Run, error) {
	run, err := scanRun(r.db.QueryRow(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC LIMIT 1`).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("database_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to query latest run")
	}
	return run, nil
}

// ListRuns retrieves runs, newest first. limit <= 0 returns all of them.
func (r *Repository) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.Query(query, args...)
	if err != nil {
		slog.Error("database_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			slog.Error("database_scan_row_failed", "error", err)
			return nil, errors.Wrap(err, "failed to scan row")
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		slog.Error("database_rows_error", "error", err)
		return nil, errors.Wrap(err, "rows error")
	}

	slog.Debug("database_list_complete", "run_count", len(runs))
	return runs, nil
}

// CreateUpload inserts an upload attempt
func (r *Repository) CreateUpload(u *Upload) error {
	now := r.now()
	u.CreatedAt, u.UpdatedAt = now, now
	if u.Status == "" {
		u.Status = StatusPending
	}

	query := `
		INSERT INTO uploads (run_id, item_id, variation_id, file_name, idempotency_key, is_primary,
		                     status, image_id, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.Exec(query,
		u.RunID, u.ItemID, u.VariationID, u.FileName, u.IdempotencyKey, u.Primary,
		u.Status, u.ImageID, u.ErrorMessage, formatTime(now), formatTime(now))
	if err != nil {
		slog.Error("database_insert_failed", "variation_id", u.VariationID, "error", err)
		return errors.Wrap(err, "failed to insert upload")
	}

	id, err := result.LastInsertId()
	if err != nil {
		slog.Error("database_last_insert_id_failed", "variation_id", u.VariationID, "error", err)
		return errors.Wrap(err, "failed to get last insert id")
	}
	u.ID = id

	slog.Debug("database_upload_created", "upload_id", u.ID, "variation_id", u.VariationID, "status", u.Status)
	return nil
}

// UpdateUpload sets the outcome of an upload attempt
func (r *Repository) UpdateUpload(id int64, status, imageID, errorMessage string) error {
	query := `UPDATE uploads SET status = ?, image_id = ?, error_message = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.Exec(query, status, imageID, errorMessage, formatTime(r.now()), id)
	if err != nil {
		slog.Error("database_status_update_failed", "upload_id", id, "status", status, "error", err)
		return errors.Wrap(err, "failed to update upload")
	}

	slog.Debug("database_upload_updated", "upload_id", id, "status", status)
	return nil
}

// ClaimPendingKey returns the idempotency key of the newest pending upload
// of a variation and retires that row, so the key moves to the caller's new
// attempt. It returns "" when there is none.
func (r *Repository) ClaimPendingKey(ctx context.Context, variationID, runID string) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed_to_begin_transaction", "error", err)
		return "", errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var id int64
	var key string
	query := `SELECT id, idempotency_key FROM uploads WHERE variation_id = ? AND status = ? ORDER BY id DESC LIMIT 1`
	err = tx.QueryRowContext(ctx, query, variationID, StatusPending).Scan(&id, &key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		slog.Error("database_query_failed", "variation_id", variationID, "error", err)
		return "", errors.Wrap(err, "failed to query pending upload")
	}

	update := `UPDATE uploads SET status = ?, error_message = ?, updated_at = ? WHERE variation_id = ? AND status = ?`
	msg := fmt.Sprintf("abandoned; key carried to run %s", runID)
	if _, err := tx.ExecContext(ctx, update, StatusFailed, msg, formatTime(r.now()), variationID, StatusPending); err != nil {
		slog.Error("database_status_update_failed", "variation_id", variationID, "error", err)
		return "", errors.Wrap(err, "failed to retire pending upload")
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed_to_commit_transaction", "error", err)
		return "", errors.Wrap(err, "failed to commit transaction")
	}

	slog.Info("pending_upload_key_reused", "variation_id", variationID, "upload_id", id, "run_id", runID)
	return key, nil
}

// ListUploads retrieves the upload attempts of a run in insertion order
func (r *Repository) ListUploads(runID string) ([]*Upload, error) {
	query := `
		SELECT id, run_id, item_id, variation_id, file_name, idempotency_key, is_primary,
		       status, image_id, error_message, created_at, updated_at
		FROM uploads WHERE run_id = ? ORDER BY id
	`
	rows, err := r.db.Query(query, runID)
	if err != nil {
		slog.Error("database_list_query_failed", "run_id", runID, "error", err)
		return nil, errors.Wrap(err, "failed to list uploads")
	}
	defer rows.Close()

	var uploads []*Upload
	for rows.Next() {
		var u Upload
		var imageID, errorMessage sql.NullString
		var createdAt, updatedAt string
		err := rows.Scan(&u.ID, &u.RunID, &u.ItemID, &u.VariationID, &u.FileName, &u.IdempotencyKey, &u.Primary,
			&u.Status, &imageID, &errorMessage, &createdAt, &updatedAt)
		if err != nil {
			slog.Error("database_scan_row_failed", "error", err)
			return nil, errors.Wrap(err, "failed to scan row")
		}
		u.ImageID = imageID.String
		u.ErrorMessage = errorMessage.String
		u.CreatedAt = parseTime(createdAt)
		u.UpdatedAt = parseTime(updatedAt)
		uploads = append(uploads, &u)
	}
	if err := rows.Err(); err != nil {
		slog.Error("database_rows_error", "error", err)
		return nil, errors.Wrap(err, "rows error")
	}
	return uploads, nil
}

// DeleteRunsBefore deletes runs started before cutoff together with their
// settled uploads. Pending uploads survive, and so does any run still
// owning one. It returns the number of runs deleted.
func (r *Repository) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	slog.Info("database_cleanup_runs", "cutoff", cutoff.UTC().Format(time.RFC3339))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed_to_begin_transaction", "error", err)
		return 0, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	c := formatTime(cutoff)
	_, err = tx.ExecContext(ctx, `
		DELETE FROM uploads
		WHERE status != ? AND run_id IN (SELECT id FROM runs WHERE started_at < ?)
	`, StatusPending, c)
	if err != nil {
		slog.Error("database_delete_failed", "error", err)
		return 0, errors.Wrap(err, "failed to delete uploads")
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM runs
		WHERE started_at < ? AND status != ?
		  AND NOT EXISTS (SELECT 1 FROM uploads WHERE uploads.run_id = runs.id)
	`, c, RunRunning)
	if err != nil {
		slog.Error("database_delete_failed", "error", err)
		return 0, errors.Wrap(err, "failed to delete runs")
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed_to_commit_transaction", "error", err)
		return 0, errors.Wrap(err, "failed to commit transaction")
	}

	slog.Info("database_runs_deleted", "count", deleted)
	return deleted, nil
}
