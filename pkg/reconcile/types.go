// Package reconcile runs a sync: it scans the catalog, matches every
// variation that needs an image against its vendor's image directory and
// drives the matched ones through the upload state machine.
package reconcile

import "time"

// Variation statuses reported in a Run.
const (
	StatusUploaded  = "uploaded"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
	StatusUnmatched = "unmatched"
	// StatusMatched is reported by dry runs in place of an upload outcome.
	StatusMatched = "matched"
)

// Unmatched reasons.
const (
	ReasonUnknownVendor = "unknown_vendor"
	ReasonNoDirectory   = "no_directory"
	ReasonNoMatch       = "no_match"
)

// Run states.
const (
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCanceled  = "canceled"
)

// Options tune a single run.
type Options struct {
	// DryRun matches without touching the catalog.
	DryRun bool
	// ItemIDs restricts the run to these items when non-empty.
	ItemIDs []string
	// Concurrency is the number of items processed at once (default 1).
	// Variations of one item always run sequentially on one worker.
	Concurrency int
	// Threshold is the minimum accepted fuzzy ratio (default 80).
	Threshold int
}

// Summary holds the aggregate counters of a run.
type Summary struct {
	ItemsScanned         int   `json:"items_scanned"`
	VariationsConsidered int   `json:"variations_considered"`
	Matched              int   `json:"matched"`
	Uploaded             int   `json:"uploaded"`
	Skipped              int   `json:"skipped"`
	Failed               int   `json:"failed"`
	Unmatched            int   `json:"unmatched"`
	AssociationWarnings  int   `json:"association_warnings"`
	BytesUploaded        int64 `json:"bytes_uploaded"`
}

// Outcome is what happened to one variation.
type Outcome struct {
	ItemID        string `json:"item_id"`
	ItemName      string `json:"item_name"`
	VariationID   string `json:"variation_id"`
	VariationName string `json:"variation_name"`
	Vendor        string `json:"vendor"`
	VendorSKU     string `json:"vendor_sku,omitempty"`
	Directory     string `json:"directory,omitempty"`
	File          string `json:"file,omitempty"`
	Tier          string `json:"tier"`
	Score         int    `json:"score"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	Primary       bool   `json:"primary,omitempty"`
	ImageID       string `json:"image_id,omitempty"`
	Bytes         int64  `json:"bytes,omitempty"`
	Warning       string `json:"warning,omitempty"`
	Error         string `json:"error,omitempty"`
}

// UnmatchedEntry is one line of the unmatched report.
type UnmatchedEntry struct {
	ItemName      string `json:"item_name"`
	VariationName string `json:"variation_name"`
	VendorSKU     string `json:"vendor_sku"`
	Reason        string `json:"reason"`
	BestScore     int    `json:"best_score"`
}

// UnmatchedReport groups unmatched variations by vendor.
type UnmatchedReport map[string][]UnmatchedEntry

// Run is the state of one sync run. A Coordinator returns it from Run; it
// is never shared between runs.
type Run struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	DryRun     bool            `json:"dry_run"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	ScanError  string          `json:"scan_error,omitempty"`
	Summary    Summary         `json:"summary"`
	Outcomes   []Outcome       `json:"outcomes"`
	Unmatched  UnmatchedReport `json:"unmatched"`
}
