// Package fsm implements the per-variation upload state machine
// (verify, upload, associate) and the runners that drive it: an in-process
// sequential runner and a durable runner built on superfly/fsm.
package fsm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imgsync/imgsync/pkg/catalog"
	"github.com/imgsync/imgsync/pkg/db"
	"github.com/imgsync/imgsync/pkg/errors"
	"github.com/imgsync/imgsync/pkg/imageprep"
	"github.com/imgsync/imgsync/pkg/security"
	"github.com/imgsync/imgsync/pkg/storage"
)

// keyNamespace scopes idempotency keys generated by this tool.
var keyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/imgsync/imgsync/idempotency"))

// Ledger records upload attempts. *db.Repository implements it.
type Ledger interface {
	ClaimPendingKey(ctx context.Context, variationID, runID string) (string, error)
	CreateUpload(u *db.Upload) error
	UpdateUpload(id int64, status, imageID, errorMessage string) error
}

// Runner drives one variation through the state machine.
type Runner interface {
	Upload(ctx context.Context, req UploadRequest) UploadResponse
}

// stepFunc runs one state. It returns an error only when the step may be
// retried; every other failure is recorded on resp.
type stepFunc func(ctx context.Context, req *UploadRequest, resp *UploadResponse) error

// Machine holds dependencies for FSM transitions
type Machine struct {
	catalog    catalog.Service
	store      storage.Store
	validator  *security.Validator
	prep       *imageprep.Preparer
	ledger     Ledger
	maxRetries int
	now        func() time.Time

	mu      sync.Mutex
	waiting map[string]bool
	results map[string]UploadResponse
}

// NewMachine creates a new FSM machine with dependencies. ledger and prep
// may be nil.
func NewMachine(
	svc catalog.Service,
	store storage.Store,
	validator *security.Validator,
	prep *imageprep.Preparer,
	ledger Ledger,
	maxRetries int,
) *Machine {
	if validator == nil {
		validator = security.NewValidator(0, 0)
	}
	return &Machine{
		catalog:    svc,
		store:      store,
		validator:  validator,
		prep:       prep,
		ledger:     ledger,
		maxRetries: maxRetries,
		now:        time.Now,
		waiting:    make(map[string]bool),
		results:    make(map[string]UploadResponse),
	}
}

// IdempotencyKey derives a fresh key unique to a variation and a moment.
func IdempotencyKey(variationID string, at time.Time) string {
	return uuid.NewSHA1(keyNamespace, []byte(variationID+"|"+at.UTC().Format(time.RFC3339Nano))).String()
}

// verify re-reads image presence right before any mutation.
func (m *Machine) verify(ctx context.Context, req *UploadRequest, resp *UploadResponse) error {
	slog.Debug("fsm_state_verify", "variation_id", req.VariationID, "primary", req.Primary)

	obj, err := m.catalog.GetObject(ctx, req.VariationID)
	if err != nil {
		return m.stepError(req, resp, StateVerify, err)
	}
	if obj.HasImage() {
		m.skip(req, resp, SkipVariationHasImage)
		return nil
	}

	if req.Primary {
		item, err := m.catalog.GetObject(ctx, req.ItemID)
		if err != nil {
			return m.stepError(req, resp, StateVerify, err)
		}
		if item.HasImage() {
			m.skip(req, resp, SkipItemHasPrimary)
			return nil
		}
	}
	return nil
}

// upload submits the image bytes under an idempotency key that survives
// retries and, through the ledger, aborted runs.
func (m *Machine) upload(ctx context.Context, req *UploadRequest, resp *UploadResponse) error {
	if resp.Done() {
		return nil
	}
	slog.Debug("fsm_state_upload", "variation_id", req.VariationID, "file", req.FileName)

	if err := m.validator.ValidateDirectory(req.Directory); err != nil {
		m.fail(req, resp, err)
		return nil
	}
	if err := m.validator.ValidateName(req.FileName); err != nil {
		m.fail(req, resp, err)
		return nil
	}

	if resp.IdempotencyKey == "" {
		key, err := m.claimKey(ctx, req)
		if err != nil {
			m.fail(req, resp, err)
			return nil
		}
		resp.IdempotencyKey = key
	}

	data, err := m.store.Read(ctx, req.Directory, req.FileName)
	if err != nil {
		m.fail(req, resp, errors.Wrap(err, "failed to read image"))
		return nil
	}
	if err := m.validator.ValidateFileSize(int64(len(data))); err != nil {
		m.fail(req, resp, err)
		return nil
	}
	img, err := m.prep.Prepare(req.FileName, data)
	if err != nil {
		m.fail(req, resp, errors.Wrap(err, "failed to prepare image"))
		return nil
	}

	// Reserve budget and open the ledger row once, not per retry.
	if resp.Bytes == 0 {
		if err := m.validator.AddUploadedSize(int64(len(img.Data))); err != nil {
			m.fail(req, resp, err)
			return nil
		}
		resp.Bytes = int64(len(img.Data))
		resp.UploadedName = img.Name
	}
	if m.ledger != nil && resp.UploadID == 0 {
		row := &db.Upload{
			RunID:          req.RunID,
			ItemID:         req.ItemID,
			VariationID:    req.VariationID,
			FileName:       req.FileName,
			IdempotencyKey: resp.IdempotencyKey,
			Primary:        req.Primary,
		}
		if err := m.ledger.CreateUpload(row); err != nil {
			m.fail(req, resp, err)
			return nil
		}
		resp.UploadID = row.ID
	}

	create := catalog.CreateImageRequest{
		IdempotencyKey: resp.IdempotencyKey,
		IsPrimary:      req.Primary,
		Name:           img.Name,
		ContentType:    img.ContentType,
		Data:           img.Data,
	}
	if req.Primary {
		create.TargetObjectID = req.ItemID
	}
	imageID, err := m.catalog.CreateImage(ctx, create)
	if err != nil {
		return m.stepError(req, resp, StateUpload, err)
	}

	resp.ImageID = imageID
	resp.PrimarySet = req.Primary
	if m.ledger != nil {
		if err := m.ledger.UpdateUpload(resp.UploadID, db.StatusUploaded, imageID, ""); err != nil {
			slog.Warn("ledger_update_failed", "upload_id", resp.UploadID, "error", err)
		}
	}
	slog.Info("image_uploaded",
		"variation_id", req.VariationID,
		"image_id", imageID,
		"primary", req.Primary,
		"bytes", resp.Bytes)

	// The primary image lands on the item itself; nothing left to attach.
	if req.Primary {
		resp.Outcome = OutcomeUploaded
	}
	return nil
}

// associate attaches a non-primary image to its variation. It is best effort:
// the image exists either way, so failures only leave a warning.
func (m *Machine) associate(ctx context.Context, req *UploadRequest, resp *UploadResponse) error {
	if resp.Done() {
		return nil
	}
	slog.Debug("fsm_state_associate", "variation_id", req.VariationID, "image_id", resp.ImageID)
	resp.Outcome = OutcomeUploaded

	obj, err := m.catalog.GetObject(ctx, req.VariationID)
	if err == nil {
		err = m.catalog.AssociateImage(ctx, req.VariationID, obj.Version, resp.ImageID)
	}
	if err != nil {
		resp.AssociationWarning = err.Error()
		if errors.Is(err, errors.ErrVersionConflict) {
			slog.Warn("association_version_conflict", "variation_id", req.VariationID, "image_id", resp.ImageID, "error", err)
		} else {
			slog.Warn("association_failed", "variation_id", req.VariationID, "image_id", resp.ImageID, "kind", errors.KindOf(err).String(), "error", err)
		}
		if m.ledger != nil && resp.UploadID != 0 {
			if err := m.ledger.UpdateUpload(resp.UploadID, db.StatusUploaded, resp.ImageID, "association: "+resp.AssociationWarning); err != nil {
				slog.Warn("ledger_update_failed", "upload_id", resp.UploadID, "error", err)
			}
		}
	}
	return nil
}

func (m *Machine) claimKey(ctx context.Context, req *UploadRequest) (string, error) {
	if m.ledger != nil {
		key, err := m.ledger.ClaimPendingKey(ctx, req.VariationID, req.RunID)
		if err != nil {
			return "", err
		}
		if key != "" {
			return key, nil
		}
	}
	return IdempotencyKey(req.VariationID, m.now()), nil
}

// stepError returns transient errors for retry and settles everything else.
func (m *Machine) stepError(req *UploadRequest, resp *UploadResponse, state string, err error) error {
	if errors.IsTransient(err) {
		slog.Warn("fsm_step_transient_error", "state", state, "variation_id", req.VariationID, "error", err)
		return err
	}
	if errors.Is(err, errors.ErrNotFound) {
		slog.Warn("catalog_object_vanished", "state", state, "variation_id", req.VariationID, "error", err)
		m.skip(req, resp, SkipNotFound)
		return nil
	}
	m.fail(req, resp, err)
	return nil
}

func (m *Machine) skip(req *UploadRequest, resp *UploadResponse, reason string) {
	resp.Outcome = OutcomeSkipped
	resp.SkipReason = reason
	slog.Info("upload_skipped", "variation_id", req.VariationID, "reason", reason)
	if m.ledger != nil && resp.UploadID != 0 {
		if err := m.ledger.UpdateUpload(resp.UploadID, db.StatusSkipped, "", reason); err != nil {
			slog.Warn("ledger_update_failed", "upload_id", resp.UploadID, "error", err)
		}
	}
}

// fail settles the variation as failed. A transient failure after the image
// request went out leaves the ledger row pending: the request may have been
// applied, so its key must be reused by the next attempt.
func (m *Machine) fail(req *UploadRequest, resp *UploadResponse, err error) {
	resp.Outcome = OutcomeFailed
	resp.ErrorKind = errors.KindOf(err).String()
	resp.ErrorMessage = err.Error()
	slog.Error("upload_failed", "variation_id", req.VariationID, "file", req.FileName, "kind", resp.ErrorKind, "error", err)

	if m.ledger == nil || resp.UploadID == 0 {
		return
	}
	status := db.StatusFailed
	if errors.IsTransient(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = db.StatusPending
	}
	if err := m.ledger.UpdateUpload(resp.UploadID, status, "", resp.ErrorMessage); err != nil {
		slog.Warn("ledger_update_failed", "upload_id", resp.UploadID, "error", err)
	}
}

func resultKey(req *UploadRequest) string {
	return fmt.Sprintf("%s/%s", req.RunID, req.VariationID)
}

// expect marks req as awaited by a runner in this process.
func (m *Machine) expect(req *UploadRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waiting[resultKey(req)] = true
}

// record keeps resp for the runner awaiting req. Results of machines
// resumed from an earlier process have no reader and are dropped.
func (m *Machine) record(req *UploadRequest, resp UploadResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := resultKey(req)
	if !m.waiting[key] {
		slog.Info("fsm_resumed_result_dropped",
			"run_id", req.RunID,
			"variation_id", req.VariationID,
			"outcome", resp.Outcome)
		return
	}
	m.results[key] = resp
}

func (m *Machine) takeResult(req *UploadRequest) (UploadResponse, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := resultKey(req)
	resp, ok := m.results[key]
	delete(m.results, key)
	delete(m.waiting, key)
	return resp, ok
}
