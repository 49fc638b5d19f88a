package orchestrator

import (
	"context"
	"fmt"

	"github.com/dubsync/dubsync-be/internal/dubjob"
	"github.com/dubsync/dubsync-be/shared/rabbitmq"
)

// QueueDelegator publishes delegate messages to the analysis queue. The job
// id rides along as the message correlation id.
type QueueDelegator struct {
	client *rabbitmq.Client
}

// NewQueueDelegator creates a queue-backed delegator.
func NewQueueDelegator(client *rabbitmq.Client) *QueueDelegator {
	return &QueueDelegator{client: client}
}

// Delegate publishes the message with retry, bounded by ctx.
func (d *QueueDelegator) Delegate(ctx context.Context, msg *dubjob.DelegateMessage) error {
	body, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode delegate message: %w", err)
	}
	return d.client.PublishWithRetry(ctx, body, "application/json", msg.JobID)
}
