package notification

import (
	"context"
	"fmt"

	"ledgerpay/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Messenger is the slice of *messaging.Client used here.
type Messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// NewFCMClient initializes the Firebase app and returns its messaging client.
func NewFCMClient(ctx context.Context, credentialsFile string) (*messaging.Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firebase: error initializing app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase: error getting Messaging client: %w", err)
	}
	return client, nil
}

// FCMSender pushes notices to a topic that billing staff devices subscribe to.
type FCMSender struct {
	client Messenger
	topic  string
}

func NewFCMSender(client Messenger, topic string) *FCMSender {
	return &FCMSender{client: client, topic: topic}
}

func (s *FCMSender) PaymentReceived(ctx context.Context, n models.PaymentNotification) error {
	msg := &messaging.Message{
		Topic: s.topic,
		Notification: &messaging.Notification{
			Title: "Payment received",
			Body:  fmt.Sprintf("%s received via %s for invoice %s", n.Amount, n.Method, n.InvoiceID),
		},
		Data: map[string]string{
			"type":      "payment_received",
			"invoiceId": n.InvoiceID,
			"amount":    n.Amount,
			"method":    n.Method,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	if _, err := s.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("FCMSender: failed to send FCM message: %w", err)
	}
	return nil
}
