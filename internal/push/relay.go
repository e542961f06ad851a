// Package push delivers device notifications through a relay and keeps
// the device tokens that clients register.
package push

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrInvalidToken is returned when a relay rejects the device token.
var ErrInvalidToken = errors.New("push: device token rejected")

// Message is one notification for one device.
type Message struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Relay delivers messages. Delivery is best effort; a nil error means the
// relay accepted the message, not that the device received it.
type Relay interface {
	Send(ctx context.Context, msg Message) error
}

// LogRelay only logs messages. It is the development default.
type LogRelay struct {
	logger *zap.Logger
}

// NewLogRelay constructs a logging relay.
func NewLogRelay(logger *zap.Logger) *LogRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRelay{logger: logger}
}

func (r *LogRelay) Send(_ context.Context, msg Message) error {
	r.logger.Info("push notification",
		zap.String("token", redact(msg.Token)),
		zap.String("title", msg.Title),
		zap.String("body", msg.Body),
		zap.Any("data", msg.Data),
	)
	return nil
}

func redact(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "***" + token[len(token)-4:]
}
