package fsm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/imgsync/imgsync/pkg/errors"
)

// Sequential runs the state machine in-process, retrying a step once per
// configured retry after a transient failure.
type Sequential struct {
	machine   *Machine
	retries   int
	retryWait time.Duration
}

var _ Runner = (*Sequential)(nil)

// NewSequential creates a Sequential runner.
func NewSequential(m *Machine, retries int, retryWait time.Duration) *Sequential {
	if retries < 0 {
		retries = 0
	}
	if retryWait <= 0 {
		retryWait = time.Second
	}
	return &Sequential{machine: m, retries: retries, retryWait: retryWait}
}

func (s *Sequential) Upload(ctx context.Context, req UploadRequest) UploadResponse {
	resp := &UploadResponse{}
	steps := []struct {
		state string
		fn    stepFunc
	}{
		{StateVerify, s.machine.verify},
		{StateUpload, s.machine.upload},
		{StateAssociate, s.machine.associate},
	}

	for _, step := range steps {
		if resp.Done() {
			break
		}
		b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(s.retryWait), uint64(s.retries)), ctx)
		err := backoff.Retry(func() error {
			err := step.fn(ctx, &req, resp)
			if err != nil && !errors.IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}, b)
		if err != nil {
			s.machine.fail(&req, resp, errors.Wrap(err, step.state))
			break
		}
	}
	return *resp
}
