package worker

import (
	"context"
	"errors"
	"fmt"

	"tributary/internal/orchestrator"
	"tributary/internal/tasks"
	"tributary/internal/tenant"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
)

// Executor is the slice of the orchestrator the handler needs.
type Executor interface {
	Execute(ctx context.Context, jobID uuid.UUID) error
}

// Deps carries the handler dependencies.
type Deps struct {
	Orchestrator Executor
}

// RegisterHandlers mounts all task handlers on the mux.
func RegisterHandlers(mux *asynq.ServeMux, deps Deps) {
	mux.HandleFunc(tasks.TypeIngestionJob, HandleIngestionJob(deps))
}

// HandleIngestionJob maps one queue delivery onto one orchestrator execution
// and translates the outcome into queue semantics:
//
//   - success, partial success, or a lost claim race acknowledge the message;
//   - fatal outcomes (config errors, a job that already failed) archive the
//     message immediately — that is the poison path, and the Job row already
//     records the terminal failure;
//   - anything else returns the error so the queue redelivers with backoff.
func HandleIngestionJob(deps Deps) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		payload, err := tasks.ParseIngestionPayload(t.Payload())
		if err != nil {
			// A payload that cannot be decoded will never decode;
			// archive it for inspection.
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		logger := log.WithFields(log.Fields{
			"job_id":    payload.JobID,
			"tenant_id": payload.TenantID,
		})

		err = deps.Orchestrator.Execute(ctx, payload.JobID)
		switch {
		case err == nil:
			return nil

		case errors.Is(err, orchestrator.ErrAlreadyClaimed):
			// Concurrent redelivery while the winning execution is
			// still running: acknowledge and step aside.
			logger.Info("Job claimed elsewhere, acknowledging duplicate delivery")
			return nil

		case errors.Is(err, orchestrator.ErrAlreadyFailed),
			errors.Is(err, tenant.ErrConfigNotFound),
			errors.Is(err, tenant.ErrConfigInvalid):
			logger.WithError(err).Warn("Routing job message to the archive")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)

		default:
			logger.WithError(err).Error("Job execution failed")
			return err
		}
	}
}
