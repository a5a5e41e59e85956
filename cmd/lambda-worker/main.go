// Command lambda-worker runs processing jobs delivered by an SQS event source
// mapping. Enable ReportBatchItemFailures on the mapping so only failed
// records are redelivered.
//
//	GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker
package main

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"studyhub-backend/internal/bootstrap"
	"studyhub-backend/internal/shared/config"
	"studyhub-backend/internal/shared/metrics"
	"studyhub-backend/internal/shared/telemetry"
	"studyhub-backend/internal/workerproc"
)

type worker struct {
	mu     sync.Mutex
	runner workerproc.Runner
	build  func() (workerproc.Runner, error)
}

func (w *worker) get() (workerproc.Runner, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.runner != nil {
		return w.runner, nil
	}
	r, err := w.build()
	if err != nil {
		return nil, err
	}
	w.runner = r
	return r, nil
}

func (w *worker) handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	defer telemetry.Sync()
	runner, err := w.get()
	if err != nil {
		telemetry.Error("lambda_worker.bootstrap_failed", map[string]any{"error": err.Error(), "records": len(event.Records)})
		return events.SQSEventResponse{BatchItemFailures: failAll(event.Records)}, nil
	}
	return events.SQSEventResponse{BatchItemFailures: processBatch(ctx, runner, event.Records)}, nil
}

// processBatch runs each record and returns the ones SQS should redeliver.
// Malformed payloads are acknowledged since a retry cannot fix them.
func processBatch(ctx context.Context, runner workerproc.Runner, records []events.SQSMessage) []events.SQSBatchItemFailure {
	var failures []events.SQSBatchItemFailure
	for _, record := range records {
		metrics.IncWorkerMessage("received")
		fields := map[string]any{"sqs_message_id": record.MessageId}
		err := workerproc.HandleMessage(ctx, runner, record.Body)
		switch {
		case err == nil:
			metrics.IncWorkerMessage("completed")
			continue
		case workerproc.Unrecoverable(err):
			fields["error"] = err.Error()
			telemetry.Error("lambda_worker.message_dropped", fields)
			metrics.IncWorkerMessage("dropped")
		default:
			fields["error"] = err.Error()
			telemetry.Error("lambda_worker.job_failed", fields)
			metrics.IncWorkerMessage("failed")
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return failures
}

func failAll(records []events.SQSMessage) []events.SQSBatchItemFailure {
	out := make([]events.SQSBatchItemFailure, 0, len(records))
	for _, r := range records {
		out = append(out, events.SQSBatchItemFailure{ItemIdentifier: r.MessageId})
	}
	return out
}

func main() {
	w := &worker{build: func() (workerproc.Runner, error) {
		app, err := bootstrap.Build(config.Load())
		if err != nil {
			return nil, err
		}
		return app.Simulator, nil
	}}
	lambda.Start(w.handle)
}
