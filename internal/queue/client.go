package queue

import "context"

// Client publishes job messages.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Consumer is the receiving side used by the worker. Messages must be
// deleted once handled or they are redelivered after the visibility timeout.
type Consumer interface {
	Receive(ctx context.Context, max int32, wait int32) ([]ReceivedMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}
