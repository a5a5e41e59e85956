// Package workerproc turns queue deliveries into processing job runs. It is
// shared by the long-polling worker and the Lambda SQS handler.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"studyhub-backend/internal/queue"
	"studyhub-backend/internal/shared/telemetry"
)

// Runner executes one processing job by id.
type Runner interface {
	Run(ctx context.Context, jobID string) error
}

// Reasons a payload is rejected before any job runs.
var (
	ErrEmptyBody    = errors.New("empty message body")
	ErrDecode       = errors.New("undecodable message body")
	ErrMissingJobID = errors.New("message has no job id")
)

// MessageMeta identifies a payload in logs without printing it.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// MalformedError is a payload that can never be processed. Match the reason
// with errors.Is.
type MalformedError struct {
	Meta      MessageMeta
	RequestID string
	Reason    error
	Err       error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Reason, e.Err)
	}
	return e.Reason.Error()
}

func (e *MalformedError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Reason, e.Err}
	}
	return []error{e.Reason}
}

// RunError is a job that parsed cleanly but failed to run. Redelivery may
// succeed.
type RunError struct {
	JobID     string
	RequestID string
	Err       error
}

func (e *RunError) Error() string { return fmt.Sprintf("run job %s: %v", e.JobID, e.Err) }
func (e *RunError) Unwrap() error { return e.Err }

// Unrecoverable reports whether redelivering the message can never succeed.
func Unrecoverable(err error) bool {
	var malformed *MalformedError
	return errors.As(err, &malformed)
}

// ParseMessage decodes and validates a queue payload. The returned message
// carries whatever could be decoded, even on error.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, &MalformedError{Meta: meta, Reason: ErrEmptyBody}
	}
	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, &MalformedError{Meta: meta, Reason: ErrDecode, Err: err}
	}
	if strings.TrimSpace(msg.JobID) == "" {
		return msg, meta, &MalformedError{Meta: meta, RequestID: msg.RequestID, Reason: ErrMissingJobID}
	}
	return msg, meta, nil
}

// HandleMessage parses a payload and runs the job it names.
func HandleMessage(ctx context.Context, runner Runner, body string) error {
	if runner == nil {
		return errors.New("job runner not configured")
	}
	msg, _, err := ParseMessage(body)
	if err != nil {
		return err
	}
	return Run(ctx, runner, msg)
}

// Run executes a decoded message with its request id on the context.
func Run(ctx context.Context, runner Runner, msg queue.Message) error {
	ctx = telemetry.WithRequestID(ctx, msg.RequestID)
	if err := runner.Run(ctx, msg.JobID); err != nil {
		return &RunError{JobID: msg.JobID, RequestID: msg.RequestID, Err: err}
	}
	return nil
}
