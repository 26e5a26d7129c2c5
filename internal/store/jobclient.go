package store

import (
	"context"
	"errors"
	"fmt"

	"tributary/internal/models"
	"tributary/internal/tasks"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
)

// AsynqJobClient publishes job-execution messages to the Redis-backed queue.
// Delivery is at-least-once; the orchestrator's status CAS makes redelivery
// safe, so nothing here needs to be transactional with the Job row.
type AsynqJobClient struct {
	client   *asynq.Client
	maxRetry int
}

var _ JobClient = (*AsynqJobClient)(nil)

type RedisOptions struct {
	Address  string
	Password string
	DB       int
}

func NewAsynqJobClient(redis RedisOptions, maxRetry int) *AsynqJobClient {
	cli := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redis.Address,
		Password: redis.Password,
		DB:       redis.DB,
	})
	return &AsynqJobClient{client: cli, maxRetry: maxRetry}
}

func (jc *AsynqJobClient) Close() error {
	return jc.client.Close()
}

// EnqueueIngestionJob publishes the execution message for a job that already
// has a queued row in the JobStore. The task ID is the job ID, so a duplicate
// submit of the same job is rejected by the queue rather than delivered twice.
func (jc *AsynqJobClient) EnqueueIngestionJob(ctx context.Context, job *models.Job) error {
	task, err := tasks.NewIngestionTask(job)
	if err != nil {
		return err
	}

	info, err := jc.client.EnqueueContext(ctx, task,
		asynq.Queue(tasks.QueueIngestion),
		asynq.TaskID(job.ID.String()),
		asynq.MaxRetry(jc.maxRetry),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			log.WithField("job_id", job.ID).Warn("Ingestion task already enqueued, skipping")
			return nil
		}
		return fmt.Errorf("enqueue ingestion job %s: %w", job.ID, err)
	}

	log.WithFields(log.Fields{
		"job_id":    job.ID,
		"tenant_id": job.TenantID,
		"queue":     info.Queue,
	}).Debug("Enqueued ingestion job")
	return nil
}
