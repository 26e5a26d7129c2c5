package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tributary/internal/extract"
	"tributary/internal/models"
	"tributary/internal/store"
	"tributary/internal/tenant"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrAlreadyClaimed means another execution holds the job right now.
	// The caller should acknowledge the delivery without retrying.
	ErrAlreadyClaimed = errors.New("orchestrator: job already claimed by another execution")
	// ErrAlreadyFailed means the job reached terminal failure on an
	// earlier execution; redeliveries of its message carry this so the
	// queue eventually routes the message to the poison set.
	ErrAlreadyFailed = errors.New("orchestrator: job already failed")
	// ErrDeadlineExceeded is the timeout outcome of a whole execution.
	ErrDeadlineExceeded = errors.New("orchestrator: job deadline exceeded")
)

// Config bounds one job execution.
type Config struct {
	// TypeConcurrency caps simultaneously in-flight data types,
	// independent of how many the job requests.
	TypeConcurrency int
	// JobTimeout is the wall-clock deadline for the whole fan-out.
	JobTimeout time.Duration
	// CancelGrace is how long cancelled tasks get to unwind after the
	// deadline before finalization proceeds without them.
	CancelGrace time.Duration
	// FetchAttempts and FetchRetryDelay shape the in-process retry of
	// transient per-type failures.
	FetchAttempts   int
	FetchRetryDelay time.Duration
	// MasterDataTypes routes type tags to the file-drop source.
	MasterDataTypes []string
	// ProgressEvery is how many records pass between progress updates.
	ProgressEvery int
}

// ConfigResolver is the slice of tenant.Resolver the orchestrator needs.
type ConfigResolver interface {
	Resolve(ctx context.Context, tenantID string, sources ...string) (*models.TenantConfig, error)
}

// Orchestrator turns a delivered job message into one reliably finalized
// execution: claim via CAS, resolve tenant config, fan extraction out across
// data types with bounded concurrency, merge each type independently, and
// aggregate the partial outcomes into a terminal status. Every execution that
// claims a job finalizes it; a job is never left processing indefinitely.
type Orchestrator struct {
	jobs         store.JobStore
	resolver     ConfigResolver
	merger       store.MergeWriter
	newExtractor extract.Factory
	cfg          Config
}

func New(jobs store.JobStore, resolver ConfigResolver, merger store.MergeWriter, factory extract.Factory, cfg Config) *Orchestrator {
	if cfg.TypeConcurrency <= 0 {
		cfg.TypeConcurrency = 4
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Minute
	}
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = 3
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 500
	}
	return &Orchestrator{
		jobs:         jobs,
		resolver:     resolver,
		merger:       merger,
		newExtractor: factory,
		cfg:          cfg,
	}
}

// Execute runs one delivery of the job's message. Redeliveries are safe: a
// delivery that cannot claim the queued job stands down after inspecting the
// current status.
func (o *Orchestrator) Execute(ctx context.Context, jobID uuid.UUID) error {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	// Redelivery guard: exactly one delivery wins queued -> processing.
	err = o.jobs.TransitionJob(ctx, jobID, models.JobStatusQueued, models.JobStatusProcessing, store.JobUpdate{})
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return o.standDown(ctx, jobID)
		}
		return fmt.Errorf("claim job %s: %w", jobID, err)
	}

	logger := log.WithFields(log.Fields{
		"job_id":    job.ID,
		"tenant_id": job.TenantID,
		"types":     job.DataTypes,
		"range":     job.Range.String(),
	})
	logger.Info("Claimed ingestion job")

	// Config errors are fatal for the job: a retry cannot fix a missing
	// tenant or bad credentials.
	cfg, err := o.resolver.Resolve(ctx, job.TenantID, tenant.SourcesFor(job.DataTypes, o.cfg.MasterDataTypes)...)
	if err != nil {
		logger.WithError(err).Error("Tenant config resolution failed")
		o.finalize(ctx, jobID, models.JobStatusFailed, err.Error())
		return err
	}

	outcomes, timedOut := o.runTypes(ctx, job, cfg, logger)
	return o.finish(ctx, job, outcomes, timedOut, logger)
}

// standDown handles a delivery that lost the claim race or arrived after the
// job finished.
func (o *Orchestrator) standDown(ctx context.Context, jobID uuid.UUID) error {
	current, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("inspect job %s after claim conflict: %w", jobID, err)
	}
	switch current.Status {
	case models.JobStatusCompleted, models.JobStatusCompletedWithErrors:
		// The work is done; this delivery has nothing to add.
		return nil
	case models.JobStatusFailed:
		msg := "no error recorded"
		if current.ErrorMessage != nil {
			msg = *current.ErrorMessage
		}
		return fmt.Errorf("%w: %s", ErrAlreadyFailed, msg)
	default:
		return ErrAlreadyClaimed
	}
}

// typeOutcome is the result of one data type's extract+merge pipeline.
type typeOutcome struct {
	dataType  string
	processed int
	skipped   int
	err       error
}

// runTypes fans the job's data types out across a bounded pool and collects
// their outcomes. The whole fan-out runs under the job deadline; on expiry
// every in-flight task sees the cancelled context and gets CancelGrace to
// unwind before finalization proceeds.
func (o *Orchestrator) runTypes(ctx context.Context, job *models.Job, cfg *models.TenantConfig, logger *log.Entry) ([]typeOutcome, bool) {
	execCtx, cancel := context.WithTimeout(ctx, o.cfg.JobTimeout)
	defer cancel()

	sem := make(chan struct{}, o.cfg.TypeConcurrency)
	results := make(chan typeOutcome, len(job.DataTypes))
	var wg sync.WaitGroup

	for _, dataType := range job.DataTypes {
		wg.Add(1)
		go func(dataType string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-execCtx.Done():
				results <- typeOutcome{dataType: dataType, err: execCtx.Err()}
				return
			}

			processed, skipped, err := o.processType(execCtx, job, cfg, dataType)
			results <- typeOutcome{dataType: dataType, processed: processed, skipped: skipped, err: err}
		}(dataType)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-execCtx.Done():
		select {
		case <-done:
		case <-time.After(o.cfg.CancelGrace):
			logger.Warn("Extraction tasks did not unwind within the grace window")
		}
	}

	// Results from stragglers past the grace window stay buffered in the
	// channel; their store updates no-op once the job is finalized.
	var outcomes []typeOutcome
	for len(outcomes) < len(job.DataTypes) {
		select {
		case out := <-results:
			outcomes = append(outcomes, out)
		default:
			return outcomes, errors.Is(execCtx.Err(), context.DeadlineExceeded)
		}
	}
	return outcomes, errors.Is(execCtx.Err(), context.DeadlineExceeded)
}

// processType runs one data type's extract -> merge pipeline, retrying
// transient failures in-process. On success the merged count is committed to
// the job record immediately, so later failures of sibling types cannot lose
// this type's progress.
func (o *Orchestrator) processType(ctx context.Context, job *models.Job, cfg *models.TenantConfig, dataType string) (int, int, error) {
	var processed, skipped int

	err := retry.Do(
		func() error {
			p, s, err := o.attemptType(ctx, job, cfg, dataType)
			if err != nil {
				return err
			}
			processed, skipped = p, s
			return nil
		},
		retry.Attempts(uint(o.cfg.FetchAttempts)),
		retry.Delay(o.cfg.FetchRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryableTypeError),
		retry.Context(ctx),
	)
	if err != nil {
		log.WithFields(log.Fields{
			"job_id":    job.ID,
			"data_type": dataType,
		}).WithError(err).Error("Data type failed after retries")
		return 0, 0, err
	}

	// Commit the per-type result outside the execution deadline: the merge
	// already committed, and the record update is guarded by the job's
	// processing status.
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.jobs.RecordTypeResult(commitCtx, job.ID, dataType, processed, skipped); err != nil {
		log.WithField("job_id", job.ID).WithError(err).Warn("Failed to record type result")
	}
	return processed, skipped, nil
}

// attemptType is one extraction+merge attempt for one data type.
func (o *Orchestrator) attemptType(ctx context.Context, job *models.Job, cfg *models.TenantConfig, dataType string) (int, int, error) {
	extractor, err := o.newExtractor(cfg, dataType)
	if err != nil {
		return 0, 0, err
	}

	stream := extractor.Fetch(ctx, dataType, job.Range)

	var records []models.RawRecord
	for rec := range stream.Records() {
		records = append(records, rec)
		if len(records)%o.cfg.ProgressEvery == 0 {
			if perr := o.jobs.RecordTypeProgress(ctx, job.ID, dataType, stream.Yielded()); perr != nil {
				log.WithField("job_id", job.ID).WithError(perr).Debug("Progress update failed")
			}
		}
	}
	if err := stream.Err(); err != nil {
		return 0, stream.Skipped(), fmt.Errorf("extract %s (%d records yielded): %w", dataType, stream.Yielded(), err)
	}

	count, err := o.merger.ReplaceRange(ctx, job.TenantID, dataType, job.Range, records)
	if err != nil {
		return 0, stream.Skipped(), fmt.Errorf("merge %s: %w", dataType, err)
	}
	return count, stream.Skipped(), nil
}

// retryableTypeError: auth/config rejections and cancellation never benefit
// from an in-process retry; transient source errors and store hiccups do
// (the merge is idempotent, so re-running a failed attempt is safe).
func retryableTypeError(err error) bool {
	var authErr *extract.SourceAuthError
	var cfgErr *extract.SourceConfigError
	if errors.As(err, &authErr) || errors.As(err, &cfgErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// finish aggregates per-type outcomes into the job's terminal status:
// deadline expiry fails the job outright; otherwise all-success completes it,
// total failure fails it, and a mix preserves the committed progress as
// completed_with_errors.
func (o *Orchestrator) finish(ctx context.Context, job *models.Job, outcomes []typeOutcome, timedOut bool, logger *log.Entry) error {
	var succeeded int
	var failures *multierror.Error
	var parts []string

	for _, out := range outcomes {
		if out.err == nil {
			succeeded++
			continue
		}
		failures = multierror.Append(failures, fmt.Errorf("%s: %w", out.dataType, out.err))
		parts = append(parts, fmt.Sprintf("%s: %v", out.dataType, out.err))
	}
	for i := len(outcomes); i < len(job.DataTypes); i++ {
		// Types still running past the grace window are deadline losses.
		parts = append(parts, "extraction cancelled by deadline")
	}

	switch {
	case timedOut:
		msg := fmt.Sprintf("deadline of %s exceeded; %s", o.cfg.JobTimeout, strings.Join(parts, "; "))
		o.finalize(ctx, job.ID, models.JobStatusFailed, msg)
		logger.WithField("succeeded", succeeded).Error("Job timed out")
		return fmt.Errorf("%w: %s", ErrDeadlineExceeded, msg)

	case succeeded == len(job.DataTypes):
		o.finalize(ctx, job.ID, models.JobStatusCompleted, "")
		logger.Info("Job completed")
		return nil

	case succeeded == 0:
		msg := strings.Join(parts, "; ")
		o.finalize(ctx, job.ID, models.JobStatusFailed, msg)
		logger.Error("Job failed: no data type succeeded")
		return fmt.Errorf("job %s failed: %w", job.ID, failures.ErrorOrNil())

	default:
		msg := strings.Join(parts, "; ")
		o.finalize(ctx, job.ID, models.JobStatusCompletedWithErrors, msg)
		logger.WithFields(log.Fields{
			"succeeded": succeeded,
			"failed":    len(job.DataTypes) - succeeded,
		}).Warn("Job completed with errors")
		return nil
	}
}

// finalize moves a claimed job to its terminal status. It must succeed even
// when the execution context is already cancelled, so it runs on a detached
// context. A conflict here means a concurrent finalizer won, which is fine.
func (o *Orchestrator) finalize(ctx context.Context, jobID uuid.UUID, status models.JobStatus, message string) {
	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	update := store.JobUpdate{}
	if message != "" {
		update.ErrorMessage = &message
	}
	err := o.jobs.TransitionJob(finalCtx, jobID, models.JobStatusProcessing, status, update)
	if err != nil && !errors.Is(err, store.ErrStatusConflict) {
		log.WithFields(log.Fields{"job_id": jobID, "status": status}).
			WithError(err).Error("Failed to finalize job")
	}
}
