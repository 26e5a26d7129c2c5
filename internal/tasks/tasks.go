package tasks

import (
	"encoding/json"
	"fmt"

	"tributary/internal/models"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task types used with Asynq.
const (
	// TypeIngestionJob executes one queued ingestion job.
	TypeIngestionJob = "ingestion:execute"
)

// QueueIngestion is the queue ingestion messages are published to.
const QueueIngestion = "ingestion"

// IngestionPayload is the queue message schema. It points at the Job row;
// execution always re-reads current status from the JobStore, so a redelivered
// message never carries stale state.
type IngestionPayload struct {
	JobID     uuid.UUID `json:"job_id"`
	TenantID  string    `json:"tenant_id"`
	DataTypes []string  `json:"data_types"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
}

// NewIngestionTask builds the Asynq task for a freshly created job. The task
// ID is the job ID, so the queue also deduplicates accidental double submits.
func NewIngestionTask(job *models.Job) (*asynq.Task, error) {
	payload := IngestionPayload{
		JobID:     job.ID,
		TenantID:  job.TenantID,
		DataTypes: job.DataTypes,
		Start:     job.Range.Start.Format(models.DateLayout),
		End:       job.Range.End.Format(models.DateLayout),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal ingestion payload for job %s: %w", job.ID, err)
	}
	return asynq.NewTask(TypeIngestionJob, data), nil
}

// ParseIngestionPayload decodes a task payload.
func ParseIngestionPayload(data []byte) (IngestionPayload, error) {
	var p IngestionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return IngestionPayload{}, fmt.Errorf("unmarshal ingestion payload: %w", err)
	}
	if p.JobID == uuid.Nil {
		return IngestionPayload{}, fmt.Errorf("ingestion payload missing job_id")
	}
	return p, nil
}
