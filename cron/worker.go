package cron

import (
	"context"
	"fmt"
	"time"

	"ledgerpay/config"
	"ledgerpay/services/notification"
	"ledgerpay/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// QueueRedisOpt is the Redis connection used by both the enqueuer and the worker.
func QueueRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// InitNotificationWorker runs the async notification worker in background.
// The returned server must be shut down by the caller.
func InitNotificationWorker(sender notification.Sender, logger *zap.Logger) *asynq.Server {
	srv := asynq.NewServer(
		QueueRedisOpt(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypePaymentReceived, HandlePaymentReceivedTask(sender, logger))

	go func() {
		logger.Info("[NotificationWorker] starting async worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := srv.Run(mux)
			if err == nil {
				return
			}
			logger.Error("[NotificationWorker] failed to start worker",
				zap.Int("attempt", attempts), zap.Int("maxAttempts", maxAttempts), zap.Error(err))
			if attempts == maxAttempts {
				logger.Error("[NotificationWorker] max retry attempts reached, notifications will queue until restart")
				return
			}
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
	}()

	return srv
}

func HandlePaymentReceivedTask(sender notification.Sender, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		p, err := tasks.ParsePaymentReceived(task)
		if err != nil {
			logger.Error("[NotificationHandler] invalid payload", zap.Error(err))
			// A malformed payload never becomes valid; do not retry it.
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		if err := sender.PaymentReceived(ctx, p); err != nil {
			logger.Warn("[NotificationHandler] delivery failed, will retry",
				zap.String("invoiceId", p.InvoiceID), zap.Error(err))
			return err
		}
		logger.Debug("[NotificationHandler] delivered", zap.String("invoiceId", p.InvoiceID))
		return nil
	}
}
