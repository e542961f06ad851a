package push

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
)

// fcmClient is the subset of *messaging.Client the relay calls.
type fcmClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMRelay sends through Firebase Cloud Messaging with native device
// registration tokens.
type FCMRelay struct {
	client fcmClient
}

// NewFCMRelay wraps a messaging client.
func NewFCMRelay(client *messaging.Client) *FCMRelay {
	return &FCMRelay{client: client}
}

func (r *FCMRelay) Send(ctx context.Context, msg Message) error {
	_, err := r.client.Send(ctx, &messaging.Message{
		Token: msg.Token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	})
	if err != nil {
		if messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err) {
			return fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}
