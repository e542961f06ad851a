package push

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const defaultExpoEndpoint = "https://exp.host/--/api/v2/push/send"

// ExpoConfig configures the Expo push relay.
type ExpoConfig struct {
	Endpoint    string
	AccessToken string
	Timeout     time.Duration
}

// ExpoRelay posts messages to the Expo push API.
type ExpoRelay struct {
	endpoint    string
	accessToken string
	timeout     time.Duration
}

// NewExpoRelay constructs an Expo relay.
func NewExpoRelay(cfg ExpoConfig) *ExpoRelay {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultExpoEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ExpoRelay{endpoint: endpoint, accessToken: cfg.AccessToken, timeout: timeout}
}

type expoMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Sound string            `json:"sound,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

type expoResponse struct {
	Data   expoTicket  `json:"data"`
	Errors []expoError `json:"errors"`
}

type expoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message"`
	Details struct {
		Error string `json:"error"`
	} `json:"details"`
}

type expoError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// IsExpoToken reports whether token looks like an Expo push token.
func IsExpoToken(token string) bool {
	return (strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")) &&
		strings.HasSuffix(token, "]")
}

func (r *ExpoRelay) Send(ctx context.Context, msg Message) error {
	if !IsExpoToken(msg.Token) {
		return ErrInvalidToken
	}

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	agent := fiber.Post(r.endpoint).
		Timeout(timeout).
		Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON).
		JSON(expoMessage{To: msg.Token, Title: msg.Title, Body: msg.Body, Sound: "default", Data: msg.Data})
	if r.accessToken != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+r.accessToken)
	}

	var resp expoResponse
	status, body, errs := agent.Struct(&resp)
	if len(errs) > 0 {
		return fmt.Errorf("expo push: %w", errs[0])
	}
	if status >= fiber.StatusBadRequest {
		return fmt.Errorf("expo push: status %d: %s", status, strings.TrimSpace(string(body)))
	}
	if len(resp.Errors) > 0 {
		return fmt.Errorf("expo push: %s: %s", resp.Errors[0].Code, resp.Errors[0].Message)
	}
	if resp.Data.Status == "error" {
		if resp.Data.Details.Error == "DeviceNotRegistered" {
			return ErrInvalidToken
		}
		return fmt.Errorf("expo push: %s", resp.Data.Message)
	}
	return nil
}
