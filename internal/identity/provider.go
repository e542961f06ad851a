// Package identity authenticates users by email and password, issues
// session tokens and reports when a session signs out.
package identity

import (
	"context"
	"errors"
	"time"
)

// AuthError is an authentication failure whose Message is shown to the
// user verbatim.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// Authentication failures.
var (
	ErrEmailInUse                = &AuthError{Code: "email-already-in-use", Message: "That email address is already in use"}
	ErrInvalidEmail              = &AuthError{Code: "invalid-email", Message: "That email address is invalid"}
	ErrWeakPassword              = &AuthError{Code: "weak-password", Message: "Password should be at least 6 characters"}
	ErrInvalidCredentials        = &AuthError{Code: "invalid-credential", Message: "Invalid email or password"}
	ErrInvalidToken              = &AuthError{Code: "invalid-token", Message: "Your session has expired, please sign in again"}
	ErrPasswordSignInUnsupported = &AuthError{Code: "operation-not-allowed", Message: "Sign in with the mobile app, then use the issued ID token"}
)

const minPasswordLength = 6

// Identity is a verified caller.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	// SessionID groups the tokens that one sign-out ends.
	SessionID string
}

// Session is the result of sign-up or sign-in.
type Session struct {
	Identity  Identity
	Token     string
	TokenType string
	ExpiresAt time.Time
}

// Token types carried by Session.TokenType.
const (
	TokenTypeBearer = "Bearer"
	// TokenTypeCustom must be exchanged for an ID token by the client SDK.
	TokenTypeCustom = "custom"
)

// Provider is the identity provider contract used by the account service
// and the HTTP auth middleware.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, token string) error
	UpdateProfile(ctx context.Context, uid, displayName string) error
	Verify(ctx context.Context, token string) (*Identity, error)
	AuthState() *Hub
}

// AsAuthError unwraps err to an AuthError.
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}
