package processing

import (
	"errors"
	"time"

	"studyhub-backend/internal/documents"
)

// Status is the lifecycle state of a processing job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var (
	ErrNotFound       = errors.New("job not found")
	ErrAlreadyClaimed = errors.New("job already claimed")
	ErrInvalidJobType = errors.New("invalid job type")
)

// Job is one simulated processing step for a document.
type Job struct {
	ID           string
	DocumentID   string
	JobType      documents.JobType
	Status       Status
	Progress     int
	Result       map[string]any
	ErrorMessage *string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
}

// JobResponse is the JSON shape the client polls.
type JobResponse struct {
	ID           string         `json:"id"`
	DocumentID   string         `json:"documentId"`
	JobType      string         `json:"jobType"`
	Status       string         `json:"status"`
	Progress     int            `json:"progress"`
	Result       map[string]any `json:"result,omitempty"`
	ErrorMessage *string        `json:"errorMessage,omitempty"`
	StartedAt    *time.Time     `json:"startedAt,omitempty"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// ToResponse converts a job to its JSON shape.
func ToResponse(j Job) JobResponse {
	return JobResponse{
		ID:           j.ID,
		DocumentID:   j.DocumentID,
		JobType:      string(j.JobType),
		Status:       string(j.Status),
		Progress:     j.Progress,
		Result:       j.Result,
		ErrorMessage: j.ErrorMessage,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
		CreatedAt:    j.CreatedAt,
	}
}

func (j Job) clone() Job {
	out := j
	if j.Result != nil {
		out.Result = make(map[string]any, len(j.Result))
		for k, v := range j.Result {
			out.Result[k] = v
		}
	}
	if j.ErrorMessage != nil {
		v := *j.ErrorMessage
		out.ErrorMessage = &v
	}
	if j.StartedAt != nil {
		v := *j.StartedAt
		out.StartedAt = &v
	}
	if j.CompletedAt != nil {
		v := *j.CompletedAt
		out.CompletedAt = &v
	}
	return out
}
