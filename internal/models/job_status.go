package models

import "fmt"

// JobStatus is the lifecycle state of an ingestion job. Transitions are
// monotonic: once a job reaches a terminal status it never changes again.
type JobStatus string

const (
	JobStatusQueued              JobStatus = "queued"
	JobStatusProcessing          JobStatus = "processing"
	JobStatusCompleted           JobStatus = "completed"
	JobStatusCompletedWithErrors JobStatus = "completed_with_errors"
	JobStatusFailed              JobStatus = "failed"
)

// jobTransitions is the legal transition table. Anything not listed here is
// rejected by the store.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusQueued:     {JobStatusProcessing},
	JobStatusProcessing: {JobStatusCompleted, JobStatusCompletedWithErrors, JobStatusFailed},
}

// CanTransitionTo reports whether moving from s to the given status is legal.
func (s JobStatus) CanTransitionTo(to JobStatus) bool {
	for _, next := range jobTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s is a final status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusCompletedWithErrors || s == JobStatusFailed
}

// Valid reports whether s is a known status value.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusCompletedWithErrors, JobStatusFailed:
		return true
	}
	return false
}

// ParseJobStatus converts a raw string (e.g. from the database) into a JobStatus.
func ParseJobStatus(raw string) (JobStatus, error) {
	s := JobStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown job status %q", raw)
	}
	return s, nil
}
