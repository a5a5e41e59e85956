package processing

import (
	"context"
	"time"

	"studyhub-backend/internal/queue"
	"studyhub-backend/internal/shared/telemetry"
)

// Dispatcher hands a pending job to whatever will run it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// InProcessDispatcher runs the simulator on a detached goroutine.
type InProcessDispatcher struct {
	Sim *Simulator
}

func (d InProcessDispatcher) Dispatch(ctx context.Context, job Job) error {
	go func(ctx context.Context, jobID string) {
		if err := d.Sim.Run(ctx, jobID); err != nil {
			telemetry.Error("job.run_failed", map[string]any{
				"job_id":     jobID,
				"request_id": telemetry.RequestIDFromContext(ctx),
				"error":      err,
			})
		}
	}(telemetry.Detach(ctx), job.ID)
	return nil
}

// QueueDispatcher publishes the job for an external worker.
type QueueDispatcher struct {
	Client queue.Client
	Now    func() time.Time
}

func (d QueueDispatcher) Dispatch(ctx context.Context, job Job) error {
	now := time.Now().UTC()
	if d.Now != nil {
		now = d.Now()
	}
	return d.Client.Send(ctx, queue.NewMessage(job.ID, job.DocumentID, string(job.JobType), telemetry.RequestIDFromContext(ctx), now))
}
