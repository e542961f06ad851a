package push

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// startExpo serves handler on a loopback port and returns its push URL.
func startExpo(t *testing.T, handler fiber.Handler) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Post("/push/send", handler)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String() + "/push/send"
}

func TestExpoRelay_Send(t *testing.T) {
	received := make(chan expoMessage, 1)
	url := startExpo(t, func(c *fiber.Ctx) error {
		var msg expoMessage
		if err := c.BodyParser(&msg); err != nil {
			return err
		}
		if c.Get(fiber.HeaderAuthorization) != "Bearer access" {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		received <- msg
		return c.JSON(fiber.Map{"data": fiber.Map{"status": "ok", "id": "ticket-1"}})
	})

	relay := NewExpoRelay(ExpoConfig{Endpoint: url, AccessToken: "access", Timeout: 2 * time.Second})
	err := relay.Send(context.Background(), Message{
		Token: "ExponentPushToken[abc]",
		Title: "Status Updated",
		Body:  `Your issue "leak" is now Resolved`,
		Data:  map[string]string{"issueId": "i1"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	msg := <-received
	if msg.To != "ExponentPushToken[abc]" || msg.Title != "Status Updated" || msg.Data["issueId"] != "i1" {
		t.Errorf("relayed = %+v", msg)
	}
}

func TestExpoRelay_Errors(t *testing.T) {
	url := startExpo(t, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"data": fiber.Map{
			"status":  "error",
			"message": "not registered",
			"details": fiber.Map{"error": "DeviceNotRegistered"},
		}})
	})
	relay := NewExpoRelay(ExpoConfig{Endpoint: url, Timeout: 2 * time.Second})

	if err := relay.Send(context.Background(), Message{Token: "ExpoPushToken[x]"}); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("unregistered err = %v", err)
	}
	if err := relay.Send(context.Background(), Message{Token: "fcm-native-token"}); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("non-expo token err = %v", err)
	}
}

func TestIsExpoToken(t *testing.T) {
	tests := map[string]bool{
		"ExponentPushToken[abc]": true,
		"ExpoPushToken[abc]":     true,
		"ExponentPushToken[abc":  false,
		"abc":                    false,
		"":                       false,
	}
	for token, want := range tests {
		if got := IsExpoToken(token); got != want {
			t.Errorf("IsExpoToken(%q) = %v, want %v", token, got, want)
		}
	}
}

type fakeFCM struct {
	sent []*messaging.Message
	err  error
}

func (f *fakeFCM) Send(_ context.Context, m *messaging.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, m)
	return "projects/p/messages/1", nil
}

func TestFCMRelay(t *testing.T) {
	fake := &fakeFCM{}
	relay := &FCMRelay{client: fake}
	if err := relay.Send(context.Background(), Message{Token: "tok", Title: "New Comment", Body: "Manager replied: hi"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(fake.sent) != 1 || fake.sent[0].Token != "tok" || fake.sent[0].Notification.Title != "New Comment" {
		t.Errorf("sent = %+v", fake.sent)
	}

	fake.err = errors.New("unavailable")
	if err := relay.Send(context.Background(), Message{Token: "tok"}); err == nil {
		t.Error("expected error")
	}
}

func TestRegistrars(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	registrars := map[string]Registrar{
		"memory": NewMemoryRegistrar(time.Hour),
		"redis":  NewRedisRegistrar(client, time.Hour),
	}
	for name, reg := range registrars {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			token, err := reg.Token(ctx, "u1")
			if err != nil || token != "" {
				t.Fatalf("Token before register = %q, %v", token, err)
			}
			if err := reg.Register(ctx, "u1", " ExponentPushToken[a] "); err != nil {
				t.Fatalf("Register: %v", err)
			}
			if err := reg.Register(ctx, "u1", "ExponentPushToken[b]"); err != nil {
				t.Fatalf("Register: %v", err)
			}
			token, err = reg.Token(ctx, "u1")
			if err != nil || token != "ExponentPushToken[b]" {
				t.Fatalf("Token = %q, %v", token, err)
			}
			if err := reg.Register(ctx, "u1", "  "); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("blank token err = %v", err)
			}
		})
	}
}

func TestMemoryRegistrarExpiry(t *testing.T) {
	reg := NewMemoryRegistrar(time.Minute)
	now := time.Now()
	reg.now = func() time.Time { return now }
	_ = reg.Register(context.Background(), "u1", "ExponentPushToken[a]")

	now = now.Add(2 * time.Minute)
	if token, _ := reg.Token(context.Background(), "u1"); token != "" {
		t.Errorf("expired token returned: %q", token)
	}
}
