package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/imgsync/imgsync/pkg/catalog"
	"github.com/imgsync/imgsync/pkg/db"
	"github.com/imgsync/imgsync/pkg/errors"
	"github.com/imgsync/imgsync/pkg/fsm"
	"github.com/imgsync/imgsync/pkg/match"
	"github.com/imgsync/imgsync/pkg/security"
	"github.com/imgsync/imgsync/pkg/storage"
	"github.com/imgsync/imgsync/pkg/vendors"
)

// RunLedger persists runs. *db.Repository implements it.
type RunLedger interface {
	CreateRun(run *db.Run) error
	FinishRun(id, status, summary, unmatched, errorMessage string) error
}

// Coordinator owns one sync at a time.
type Coordinator struct {
	catalog   catalog.Service
	vendors   *vendors.Table
	store     storage.Store
	runner    fsm.Runner
	ledger    RunLedger
	validator *security.Validator
	now       func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLedger records runs in ledger.
func WithLedger(ledger RunLedger) Option {
	return func(c *Coordinator) { c.ledger = ledger }
}

// WithValidator checks resolved directories with v.
func WithValidator(v *security.Validator) Option {
	return func(c *Coordinator) { c.validator = v }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(svc catalog.Service, table *vendors.Table, store storage.Store, runner fsm.Runner, opts ...Option) *Coordinator {
	c := &Coordinator{
		catalog: svc,
		vendors: table,
		store:   store,
		runner:  runner,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.validator == nil {
		c.validator = security.NewValidator(0, 0)
	}
	return c
}

// itemResult is filled by exactly one worker.
type itemResult struct {
	outcomes []Outcome
}

// Run scans the catalog and reconciles every item that needs images. Items
// from pages fetched before a scan failure are still processed; the run
// fails outright only when the first page cannot be fetched or ctx is
// canceled.
func (c *Coordinator) Run(ctx context.Context, opts Options) (*Run, error) {
	run := &Run{
		ID:        ulid.Make().String(),
		DryRun:    opts.DryRun,
		StartedAt: c.now(),
		Unmatched: UnmatchedReport{},
	}
	slog.Info("sync_run_started", "run_id", run.ID, "dry_run", opts.DryRun, "concurrency", opts.Concurrency)

	if c.ledger != nil {
		if err := c.ledger.CreateRun(&db.Run{ID: run.ID, DryRun: opts.DryRun, StartedAt: run.StartedAt}); err != nil {
			return nil, errors.Wrap(err, "failed to record run")
		}
	}

	matcher := match.New(match.WithThreshold(opts.Threshold))
	listings := newListingCache(c.store)

	var filter map[string]bool
	if len(opts.ItemIDs) > 0 {
		filter = make(map[string]bool, len(opts.ItemIDs))
		for _, id := range opts.ItemIDs {
			filter[id] = true
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Concurrency, 1))

	scanner := catalog.NewScanner(c.catalog, c.vendors)
	var results []*itemResult
	var scanErr error
	for item, err := range scanner.Scan(ctx) {
		if err != nil {
			scanErr = err
			break
		}
		if filter != nil && !filter[item.ID] {
			continue
		}
		res := &itemResult{}
		results = append(results, res)
		g.Go(func() error {
			res.outcomes = c.processItem(gCtx, run.ID, item, opts, matcher, listings)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		run.Outcomes = append(run.Outcomes, res.outcomes...)
	}
	run.Summary = summarize(run.Outcomes, len(results))
	run.Unmatched = groupUnmatched(run.Outcomes)
	run.FinishedAt = c.now()

	var runErr error
	switch {
	case ctx.Err() != nil:
		run.Status = RunCanceled
		runErr = ctx.Err()
	case scanErr != nil && scanner.Stats().Pages == 0:
		run.Status = RunFailed
		run.ScanError = scanErr.Error()
		runErr = errors.Wrap(scanErr, "catalog unreachable")
	case scanErr != nil:
		run.Status = RunCompleted
		run.ScanError = scanErr.Error()
		slog.Warn("catalog_scan_incomplete", "run_id", run.ID, "pages", scanner.Stats().Pages, "error", scanErr)
	default:
		run.Status = RunCompleted
	}

	c.finish(run)

	s := run.Summary
	slog.Info("sync_run_finished",
		"run_id", run.ID,
		"status", run.Status,
		"items", s.ItemsScanned,
		"matched", s.Matched,
		"uploaded", s.Uploaded,
		"skipped", s.Skipped,
		"failed", s.Failed,
		"unmatched", s.Unmatched,
		"duration", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	return run, runErr
}

func (c *Coordinator) finish(run *Run) {
	if c.ledger == nil {
		return
	}
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		slog.Error("summary_encode_failed", "run_id", run.ID, "error", err)
	}
	unmatched, err := json.Marshal(run.Unmatched)
	if err != nil {
		slog.Error("unmatched_encode_failed", "run_id", run.ID, "error", err)
	}
	if err := c.ledger.FinishRun(run.ID, run.Status, string(summary), string(unmatched), run.ScanError); err != nil {
		slog.Error("run_record_failed", "run_id", run.ID, "error", err)
	}
}

// processItem handles the variations of one item in catalog order. The first
// matched variation is offered the item's primary image; when its upload is
// skipped or fails, the offer moves to the next matched variation.
func (c *Coordinator) processItem(ctx context.Context, runID string, item catalog.Item, opts Options, matcher *match.Matcher, listings *listingCache) []Outcome {
	primaryPending := item.NeedsPrimaryImage
	var outcomes []Outcome

	for _, v := range item.Variations {
		if !v.NeedsImage {
			continue
		}
		out := Outcome{
			ItemID:        item.ID,
			ItemName:      item.Name,
			VariationID:   v.ID,
			VariationName: v.Name,
			Vendor:        v.Vendor,
			VendorSKU:     v.VendorSKU,
			Tier:          match.TierNone.String(),
		}

		if v.Vendor == "" || v.Vendor == vendors.Unknown {
			outcomes = append(outcomes, unmatched(out, ReasonUnknownVendor, 0))
			continue
		}
		res, err := c.vendors.Resolve(v.Vendor)
		if err != nil {
			slog.Info("vendor_directory_unresolved", "vendor", v.Vendor, "variation_id", v.ID)
			outcomes = append(outcomes, unmatched(out, ReasonNoDirectory, 0))
			continue
		}
		out.Directory = res.Directory
		if err := c.validator.ValidateDirectory(res.Directory); err != nil {
			outcomes = append(outcomes, failed(out, err))
			continue
		}

		files, err := listings.list(ctx, res.Directory)
		if err != nil {
			outcomes = append(outcomes, failed(out, err))
			continue
		}
		result := matcher.Match(match.Query{
			ItemName:   item.Name,
			SKU:        v.SKU,
			VendorSKU:  v.VendorSKU,
			StripCodes: res.StripCodes,
		}, files)
		out.Tier = result.Tier.String()
		out.Score = result.Score
		if !result.Matched() {
			outcomes = append(outcomes, unmatched(out, ReasonNoMatch, result.Score))
			continue
		}
		out.File = result.File
		slog.Debug("variation_matched", "variation_id", v.ID, "file", result.File, "tier", out.Tier, "score", result.Score)

		out.Primary = primaryPending
		if opts.DryRun {
			primaryPending = false
			out.Status = StatusMatched
			outcomes = append(outcomes, out)
			continue
		}
		// Stop between variations once the run is aborted; each upload that
		// already started is self-contained.
		if ctx.Err() != nil {
			break
		}

		resp := c.runner.Upload(ctx, fsm.UploadRequest{
			RunID:         runID,
			ItemID:        item.ID,
			VariationID:   v.ID,
			VariationName: v.Name,
			Directory:     res.Directory,
			FileName:      result.File,
			Primary:       out.Primary,
		})
		outcomes = append(outcomes, applyResponse(out, resp))
		// The next matched sibling takes over the primary image unless this
		// upload set it or found the item already has one.
		if resp.PrimarySet || resp.SkipReason == fsm.SkipItemHasPrimary {
			primaryPending = false
		}
	}
	return outcomes
}

func applyResponse(out Outcome, resp fsm.UploadResponse) Outcome {
	switch resp.Outcome {
	case fsm.OutcomeUploaded:
		out.Status = StatusUploaded
		out.ImageID = resp.ImageID
		out.Bytes = resp.Bytes
		out.Primary = resp.PrimarySet
		out.Warning = resp.AssociationWarning
	case fsm.OutcomeSkipped:
		out.Status = StatusSkipped
		out.Reason = resp.SkipReason
		out.Primary = false
	default:
		out.Status = StatusFailed
		out.Reason = resp.ErrorKind
		out.Error = resp.ErrorMessage
		out.Primary = false
	}
	return out
}

func unmatched(out Outcome, reason string, score int) Outcome {
	out.Status = StatusUnmatched
	out.Reason = reason
	out.Score = score
	return out
}

func failed(out Outcome, err error) Outcome {
	out.Status = StatusFailed
	out.Reason = errors.KindOf(err).String()
	out.Error = err.Error()
	slog.Error("variation_failed", "variation_id", out.VariationID, "error", err)
	return out
}

func summarize(outcomes []Outcome, items int) Summary {
	s := Summary{ItemsScanned: items, VariationsConsidered: len(outcomes)}
	for _, o := range outcomes {
		if o.File != "" {
			s.Matched++
		}
		switch o.Status {
		case StatusUploaded:
			s.Uploaded++
			s.BytesUploaded += o.Bytes
			if o.Warning != "" {
				s.AssociationWarnings++
			}
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		case StatusUnmatched:
			s.Unmatched++
		}
	}
	return s
}

func groupUnmatched(outcomes []Outcome) UnmatchedReport {
	report := UnmatchedReport{}
	for _, o := range outcomes {
		if o.Status != StatusUnmatched {
			continue
		}
		report[o.Vendor] = append(report[o.Vendor], UnmatchedEntry{
			ItemName:      o.ItemName,
			VariationName: o.VariationName,
			VendorSKU:     o.VendorSKU,
			Reason:        o.Reason,
			BestScore:     o.Score,
		})
	}
	return report
}

// listingCache lists each directory once per run.
type listingCache struct {
	store storage.Store

	mu    sync.Mutex
	files map[string][]string
}

func newListingCache(store storage.Store) *listingCache {
	return &listingCache{store: store, files: make(map[string][]string)}
}

func (l *listingCache) list(ctx context.Context, dir string) ([]string, error) {
	l.mu.Lock()
	files, ok := l.files[dir]
	l.mu.Unlock()
	if ok {
		return files, nil
	}

	files, err := l.store.List(ctx, dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list image directory")
	}
	l.mu.Lock()
	l.files[dir] = slices.Clip(files)
	l.mu.Unlock()
	return files, nil
}
