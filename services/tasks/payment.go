package tasks

import (
	"encoding/json"
	"time"

	"ledgerpay/models"

	"github.com/hibiken/asynq"
)

const TypePaymentReceived = "payment:received"

func NewPaymentReceivedTask(payload models.PaymentNotification) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypePaymentReceived, b)
	opts := []asynq.Option{
		asynq.MaxRetry(5),
		asynq.Timeout(30 * time.Second),
	}

	return task, opts, nil
}

// ParsePaymentReceived decodes a payment:received task payload.
func ParsePaymentReceived(task *asynq.Task) (models.PaymentNotification, error) {
	var p models.PaymentNotification
	err := json.Unmarshal(task.Payload(), &p)
	return p, err
}
