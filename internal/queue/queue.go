package queue

import (
	"context"
	"strings"
	"time"
)

// JobTypeEvaluateLead asks the worker to re-evaluate a lead's reach-out state
const JobTypeEvaluateLead = "evaluate_lead"

// Job is one queued request to work on a lead
type Job struct {
	ID        int64                  `json:"id"`
	Type      string                 `json:"type"`
	LeadID    string                 `json:"lead_id"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
	NextRunAt time.Time              `json:"next_run_at"`
	Attempts  int                    `json:"attempts"`
}

// Queue defines the interface for job queue operations
type Queue interface {
	// Enqueue adds a new job to the queue
	Enqueue(ctx context.Context, jobType string, payload map[string]interface{}) error

	// EnqueueWithDelay adds a job to be processed after a delay
	EnqueueWithDelay(ctx context.Context, jobType string, payload map[string]interface{}, delay time.Duration) error

	// Dequeue retrieves the next available job from the queue
	// Returns nil if no jobs are available
	Dequeue(ctx context.Context) (*Job, error)

	// Complete marks a job as successfully completed
	Complete(ctx context.Context, jobID int64) error

	// Retry reschedules a job for retry with a delay
	Retry(ctx context.Context, jobID int64, delay time.Duration) error

	// Fail marks a job as permanently failed
	Fail(ctx context.Context, jobID int64, errorMsg string) error

	// HealthCheck verifies the queue is operational
	HealthCheck(ctx context.Context) error

	// Close closes the queue connection
	Close() error
}

// NewJobPayload builds the payload of a lead job
func NewJobPayload(leadID string) map[string]interface{} {
	return map[string]interface{}{
		"lead_id": leadID,
	}
}

// GetLeadID extracts lead_id from job payload
func GetLeadID(payload map[string]interface{}) (string, bool) {
	leadID, ok := payload["lead_id"].(string)
	if !ok {
		return "", false
	}
	leadID = strings.TrimSpace(leadID)
	return leadID, leadID != ""
}
