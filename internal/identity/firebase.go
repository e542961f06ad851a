package identity

import (
	"context"
	"fmt"
	"time"

	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
)

// firebaseAuth is the subset of *auth.Client the provider calls.
type firebaseAuth interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	UpdateUser(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*auth.Token, error)
	CustomToken(ctx context.Context, uid string) (string, error)
}

// FirebaseProvider delegates to Firebase Authentication. Password sign-in
// happens in the client SDK; this side verifies the resulting ID tokens.
type FirebaseProvider struct {
	client firebaseAuth
	logger *zap.Logger
	hub    *Hub
}

// NewFirebaseProvider wraps an admin auth client.
func NewFirebaseProvider(client *auth.Client, logger *zap.Logger) *FirebaseProvider {
	return newFirebaseProvider(client, logger)
}

func newFirebaseProvider(client firebaseAuth, logger *zap.Logger) *FirebaseProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FirebaseProvider{client: client, logger: logger, hub: NewHub()}
}

// SignUp creates the account and returns a custom token the client
// exchanges for an ID token.
func (p *FirebaseProvider) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	record, err := p.client.CreateUser(ctx, (&auth.UserToCreate{}).Email(email).Password(password))
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("create firebase user: %w", err)
	}

	token, err := p.client.CustomToken(ctx, record.UID)
	if err != nil {
		return nil, fmt.Errorf("mint custom token: %w", err)
	}
	return &Session{
		Identity:  Identity{UID: record.UID, Email: record.Email, SessionID: record.UID},
		Token:     token,
		TokenType: TokenTypeCustom,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (p *FirebaseProvider) SignIn(context.Context, string, string) (*Session, error) {
	return nil, ErrPasswordSignInUnsupported
}

// SignOut revokes every refresh token of the user, which is the finest
// granularity Firebase offers.
func (p *FirebaseProvider) SignOut(ctx context.Context, token string) error {
	id, err := p.Verify(ctx, token)
	if err != nil {
		return err
	}
	if err := p.client.RevokeRefreshTokens(ctx, id.UID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	p.hub.SignedOut(id.SessionID)
	p.logger.Info("session signed out", zap.String("uid", id.UID))
	return nil
}

func (p *FirebaseProvider) UpdateProfile(ctx context.Context, uid, displayName string) error {
	if _, err := p.client.UpdateUser(ctx, uid, (&auth.UserToUpdate{}).DisplayName(displayName)); err != nil {
		if auth.IsUserNotFound(err) {
			return ErrInvalidToken
		}
		return fmt.Errorf("update firebase user: %w", err)
	}
	return nil
}

func (p *FirebaseProvider) Verify(ctx context.Context, token string) (*Identity, error) {
	tok, err := p.client.VerifyIDTokenAndCheckRevoked(ctx, token)
	if err != nil {
		if auth.IsIDTokenRevoked(err) || auth.IsIDTokenExpired(err) || auth.IsIDTokenInvalid(err) || auth.IsUserDisabled(err) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	email, _ := tok.Claims["email"].(string)
	name, _ := tok.Claims["name"].(string)
	return &Identity{UID: tok.UID, Email: email, DisplayName: name, SessionID: tok.UID}, nil
}

func (p *FirebaseProvider) AuthState() *Hub {
	return p.hub
}
