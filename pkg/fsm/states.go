package fsm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/superfly/fsm"

	"github.com/imgsync/imgsync/pkg/errors"
)

// Register registers the variation upload FSM. Every transition runs; a
// state that finds the upload already settled passes the response through
// so the complete state always records the outcome.
func (m *Machine) Register(ctx context.Context, manager *fsm.Manager) (fsm.Start[UploadRequest, UploadResponse], fsm.Resume, error) {
	start, resume, err := fsm.Register[UploadRequest, UploadResponse](manager, "variation-upload").
		Start(StateVerify, m.handle(StateVerify, m.verify)).
		To(StateUpload, m.handle(StateUpload, m.upload)).
		To(StateAssociate, m.handle(StateAssociate, m.associate)).
		To(StateComplete, m.handleComplete).
		End(StateFailed).
		Build(ctx)

	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to register FSM")
	}

	return start, resume, nil
}

func (m *Machine) handle(state string, step stepFunc) func(context.Context, *fsm.Request[UploadRequest, UploadResponse]) (*fsm.Response[UploadResponse], error) {
	return func(ctx context.Context, req *fsm.Request[UploadRequest, UploadResponse]) (*fsm.Response[UploadResponse], error) {
		resp := req.W.Msg
		if resp == nil {
			resp = &UploadResponse{}
		}
		if resp.Done() {
			return fsm.NewResponse(resp), nil
		}

		if err := step(ctx, req.Msg, resp); err != nil {
			// Check retry limit
			if retryCount := fsm.RetryFromContext(ctx); retryCount >= uint64(m.maxRetries) {
				slog.Error("max_retries_exceeded", "state", state, "variation_id", req.Msg.VariationID, "max_retries", m.maxRetries)
				m.fail(req.Msg, resp, errors.Wrap(err, fmt.Sprintf("%s: max retries (%d) exceeded", state, m.maxRetries)))
				return fsm.NewResponse(resp), nil
			}
			return nil, err
		}
		return fsm.NewResponse(resp), nil
	}
}

// handleComplete publishes the outcome to the waiting runner.
func (m *Machine) handleComplete(ctx context.Context, req *fsm.Request[UploadRequest, UploadResponse]) (*fsm.Response[UploadResponse], error) {
	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}
	if !resp.Done() {
		m.fail(req.Msg, resp, fmt.Errorf("upload finished without an outcome"))
	}
	m.record(req.Msg, *resp)

	slog.Info("fsm_complete", "variation_id", req.Msg.VariationID, "outcome", resp.Outcome)
	return fsm.NewResponse(resp), nil
}

// Durable runs the state machine on superfly/fsm, which persists every
// transition so an interrupted upload resumes where it stopped.
type Durable struct {
	machine *Machine
	manager *fsm.Manager
	start   fsm.Start[UploadRequest, UploadResponse]
}

var _ Runner = (*Durable)(nil)

// NewDurable opens the FSM store in dbPath, registers the machine and
// resumes runs left unfinished by a previous process.
func NewDurable(ctx context.Context, m *Machine, dbPath string) (*Durable, error) {
	manager, err := fsm.New(fsm.Config{DBPath: dbPath})
	if err != nil {
		return nil, errors.Wrap(err, "FSM manager failed")
	}

	start, resume, err := m.Register(ctx, manager)
	if err != nil {
		manager.Shutdown(10 * time.Second)
		return nil, err
	}
	if err := resume(ctx); err != nil {
		slog.Warn("fsm_resume_failed", "error", err)
	}

	return &Durable{machine: m, manager: manager, start: start}, nil
}

func (d *Durable) Upload(ctx context.Context, req UploadRequest) UploadResponse {
	d.machine.expect(&req)
	version, err := d.start(ctx, resultKey(&req), fsm.NewRequest(&req, &UploadResponse{}))
	if err != nil {
		d.machine.takeResult(&req)
		resp := UploadResponse{}
		d.machine.fail(&req, &resp, errors.Wrap(err, "FSM start failed"))
		return resp
	}

	slog.Debug("fsm_started", "variation_id", req.VariationID, "version", version)

	waitErr := d.manager.Wait(ctx, version)
	if resp, ok := d.machine.takeResult(&req); ok {
		return resp
	}
	if waitErr == nil {
		waitErr = fmt.Errorf("FSM finished without a result")
	}
	resp := UploadResponse{}
	d.machine.fail(&req, &resp, errors.Wrap(waitErr, "FSM execution failed"))
	return resp
}

// Close stops the FSM manager.
func (d *Durable) Close() {
	d.manager.Shutdown(10 * time.Second)
}
