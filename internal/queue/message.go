package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageVersion is the payload version written by this build. Payloads
// without a version are treated as version 1.
const MessageVersion = 1

// Message asks a worker to run one processing job. Only JobID is needed to
// run it; the rest is carried for logging and tracing.
type Message struct {
	JobID      string    `json:"jobId"`
	DocumentID string    `json:"documentId"`
	JobType    string    `json:"jobType"`
	RequestID  string    `json:"requestId,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	Version    int       `json:"version"`
}

// NewMessage stamps a job message with the current version.
func NewMessage(jobID, documentID, jobType, requestID string, now time.Time) Message {
	return Message{
		JobID:      jobID,
		DocumentID: documentID,
		JobType:    jobType,
		RequestID:  requestID,
		EnqueuedAt: now.UTC(),
		Version:    MessageVersion,
	}
}

func EncodeMessage(msg Message) ([]byte, error) {
	if msg.Version == 0 {
		msg.Version = MessageVersion
	}
	return json.Marshal(msg)
}

// DecodeMessage parses a payload and rejects versions newer than this build
// understands.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Version == 0 {
		msg.Version = 1
	}
	if msg.Version > MessageVersion {
		return Message{}, fmt.Errorf("unsupported message version %d", msg.Version)
	}
	return msg, nil
}
