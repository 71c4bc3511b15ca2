package db

import "time"

// Schema defines the SQLite schema of the run ledger.
// runs holds one row per sync run with its summary and unmatched report,
// uploads one row per upload attempt with the idempotency key it used.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL CHECK(status IN ('running', 'completed', 'failed', 'canceled')),
    dry_run INTEGER NOT NULL DEFAULT 0,
    summary TEXT,
    unmatched TEXT,
    error_message TEXT,
    started_at TEXT NOT NULL,
    finished_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

CREATE TABLE IF NOT EXISTS uploads (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    item_id TEXT NOT NULL,
    variation_id TEXT NOT NULL,
    file_name TEXT NOT NULL,
    idempotency_key TEXT NOT NULL,
    is_primary INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL CHECK(status IN ('pending', 'uploaded', 'skipped', 'failed')),
    image_id TEXT,
    error_message TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_uploads_run_id ON uploads(run_id);
CREATE INDEX IF NOT EXISTS idx_uploads_variation_status ON uploads(variation_id, status);
`

// Run status constants
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCanceled  = "canceled"
)

// Upload status constants
const (
	StatusPending  = "pending"
	StatusUploaded = "uploaded"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

// timeLayout sorts lexicographically, which cleanup relies on.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

// Run represents a sync run record
type Run struct {
	ID           string
	Status       string
	DryRun       bool
	Summary      string // JSON
	Unmatched    string // JSON
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Upload represents one upload attempt for a variation
type Upload struct {
	ID             int64
	RunID          string
	ItemID         string
	VariationID    string
	FileName       string
	IdempotencyKey string
	Primary        bool
	Status         string
	ImageID        string
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
