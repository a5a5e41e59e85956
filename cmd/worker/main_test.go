package main

import (
	"context"
	"errors"
	"testing"

	"studyhub-backend/internal/queue"
)

type fakeConsumer struct {
	deleted []string
}

func (f *fakeConsumer) Receive(ctx context.Context, max int32, wait int32) ([]queue.ReceivedMessage, error) {
	return nil, nil
}

func (f *fakeConsumer) Delete(ctx context.Context, receiptHandle string) error {
	f.deleted = append(f.deleted, receiptHandle)
	return nil
}

type fakeRunner struct {
	err error
}

func (f fakeRunner) Run(ctx context.Context, jobID string) error {
	return f.err
}

func message(t *testing.T, id, receipt string, msg queue.Message) queue.ReceivedMessage {
	t.Helper()
	body, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return queue.ReceivedMessage{ID: id, Body: string(body), ReceiptHandle: receipt, ReceiveCount: 1}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeConsumer{}
	msg := message(t, "m1", "r1", queue.Message{JobID: "job-1", RequestID: "req-1"})

	handleMessage(context.Background(), client, fakeRunner{}, msg)

	if len(client.deleted) != 1 || client.deleted[0] != "r1" {
		t.Fatalf("expected delete of r1, got %v", client.deleted)
	}
}

func TestWorkerDoesNotDeleteOnFailure(t *testing.T) {
	client := &fakeConsumer{}
	msg := message(t, "m2", "r2", queue.Message{JobID: "job-2", RequestID: "req-2"})

	handleMessage(context.Background(), client, fakeRunner{err: errors.New("boom")}, msg)

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnInvalidJSON(t *testing.T) {
	client := &fakeConsumer{}
	msg := queue.ReceivedMessage{ID: "m3", Body: "{not-json", ReceiptHandle: "r3"}

	handleMessage(context.Background(), client, fakeRunner{}, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnMissingJobID(t *testing.T) {
	client := &fakeConsumer{}
	msg := message(t, "m4", "r4", queue.Message{DocumentID: "doc-1"})

	handleMessage(context.Background(), client, fakeRunner{}, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerSkipsDeleteWithoutReceipt(t *testing.T) {
	client := &fakeConsumer{}
	msg := message(t, "m5", "", queue.Message{JobID: "job-5"})

	handleMessage(context.Background(), client, fakeRunner{}, msg)

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}
