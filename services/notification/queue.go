package notification

import (
	"context"
	"fmt"

	"ledgerpay/models"
	"ledgerpay/services/tasks"

	"github.com/hibiken/asynq"
)

// Enqueuer is the slice of *asynq.Client used here.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueSender hands notices to the asynq worker, which retries delivery.
type QueueSender struct {
	client Enqueuer
}

func NewQueueSender(client Enqueuer) *QueueSender {
	return &QueueSender{client: client}
}

func (s *QueueSender) PaymentReceived(ctx context.Context, n models.PaymentNotification) error {
	task, opts, err := tasks.NewPaymentReceivedTask(n)
	if err != nil {
		return fmt.Errorf("build payment task: %w", err)
	}
	if _, err := s.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue payment task for invoice %s: %w", n.InvoiceID, err)
	}
	return nil
}
