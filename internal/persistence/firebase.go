package persistence

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/spec-kit/issue-service/internal/config"
)

// Firebase holds the Firebase app and the clients opened from it. Clients
// are created on first use so a deployment only pays for what it selects.
type Firebase struct {
	App       *firebase.App
	cfg       config.FirebaseConfig
	firestore *firestore.Client
}

// NewFirebase initialises the Firebase app when a project is configured.
func NewFirebase(ctx context.Context, cfg config.FirebaseConfig, logger *zap.Logger) (*Firebase, error) {
	if !cfg.Enabled() {
		logger.Info("FIREBASE_PROJECT_ID not provided; firebase disabled")
		return &Firebase{cfg: cfg}, nil
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	logger.Info("firebase app initialised",
		zap.String("project", cfg.ProjectID),
		zap.Bool("firestore_emulator", cfg.FirestoreEmulatorHost != ""),
		zap.Bool("auth_emulator", cfg.AuthEmulatorHost != ""),
	)
	return &Firebase{App: app, cfg: cfg}, nil
}

// Firestore opens the configured Firestore database.
func (f *Firebase) Firestore(ctx context.Context) (*firestore.Client, error) {
	if f.App == nil {
		return nil, fmt.Errorf("firebase not configured")
	}
	if f.firestore != nil {
		return f.firestore, nil
	}
	var opts []option.ClientOption
	if f.cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(f.cfg.CredentialsFile))
	}
	client, err := firestore.NewClientWithDatabase(ctx, f.cfg.ProjectID, f.cfg.FirestoreDatabase, opts...)
	if err != nil {
		return nil, fmt.Errorf("open firestore: %w", err)
	}
	f.firestore = client
	return client, nil
}

// Auth returns the identity admin client.
func (f *Firebase) Auth(ctx context.Context) (*auth.Client, error) {
	if f.App == nil {
		return nil, fmt.Errorf("firebase not configured")
	}
	return f.App.Auth(ctx)
}

// Messaging returns the cloud messaging client.
func (f *Firebase) Messaging(ctx context.Context) (*messaging.Client, error) {
	if f.App == nil {
		return nil, fmt.Errorf("firebase not configured")
	}
	return f.App.Messaging(ctx)
}

// Close releases the Firestore connection if one was opened.
func (f *Firebase) Close() {
	if f != nil && f.firestore != nil {
		_ = f.firestore.Close()
	}
}
