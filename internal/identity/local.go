package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/docstore"
	"github.com/spec-kit/issue-service/internal/domain"
)

// AccountsCollection holds credentials for the local provider. It is kept
// apart from the users profile collection.
const AccountsCollection = "accounts"

// LocalDependencies bundles what the local provider needs.
type LocalDependencies struct {
	Store       docstore.Store
	Tokens      *TokenManager
	Revocations RevocationList
	BcryptCost  int
	Logger      *zap.Logger
}

// LocalProvider keeps bcrypt credentials in the document store and issues
// HS256 session tokens.
type LocalProvider struct {
	store       docstore.Store
	tokens      *TokenManager
	revocations RevocationList
	cost        int
	logger      *zap.Logger
	hub         *Hub
	// signUp serialises the email uniqueness check with the insert.
	signUp sync.Mutex
}

// NewLocalProvider constructs a local provider.
func NewLocalProvider(deps LocalDependencies) *LocalProvider {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	revocations := deps.Revocations
	if revocations == nil {
		revocations = NewMemoryRevocations()
	}
	return &LocalProvider{
		store:       deps.Store,
		tokens:      deps.Tokens,
		revocations: revocations,
		cost:        deps.BcryptCost,
		logger:      logger,
		hub:         NewHub(),
	}
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := hashPassword(password, p.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p.signUp.Lock()
	defer p.signUp.Unlock()

	existing, err := p.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailInUse
	}

	uid := uuid.NewString()
	if err := p.store.Set(ctx, AccountsCollection, uid, map[string]any{
		"email":        email,
		"passwordHash": hash,
		"createdAt":    domain.FormatTime(time.Now()),
	}, false); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return p.issue(Identity{UID: uid, Email: email})
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	account, err := p.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}
	hash, _ := account.Data["passwordHash"].(string)
	if err := comparePassword(hash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	name, _ := account.Data["displayName"].(string)
	return p.issue(Identity{UID: account.ID, Email: email, DisplayName: name})
}

// SignOut revokes the token and ends the auth-state streams opened with it.
func (p *LocalProvider) SignOut(ctx context.Context, token string) error {
	claims, err := p.tokens.ParseToken(token)
	if err != nil {
		return ErrInvalidToken
	}
	if err := p.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	p.hub.SignedOut(claims.ID)
	p.logger.Info("session signed out", zap.String("uid", claims.Subject))
	return nil
}

func (p *LocalProvider) UpdateProfile(ctx context.Context, uid, displayName string) error {
	err := p.store.Update(ctx, AccountsCollection, uid, []docstore.Update{
		{Path: "displayName", Value: displayName},
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrInvalidToken
	}
	return err
}

func (p *LocalProvider) Verify(ctx context.Context, token string) (*Identity, error) {
	claims, err := p.tokens.ParseToken(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	revoked, err := p.revocations.Revoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return &Identity{
		UID:         claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		SessionID:   claims.ID,
	}, nil
}

func (p *LocalProvider) AuthState() *Hub {
	return p.hub
}

func (p *LocalProvider) issue(id Identity) (*Session, error) {
	token, claims, err := p.tokens.GenerateToken(id.UID, id.Email, id.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	id.SessionID = claims.ID
	return &Session{
		Identity:  id,
		Token:     token,
		TokenType: TokenTypeBearer,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (p *LocalProvider) findByEmail(ctx context.Context, email string) (*docstore.Document, error) {
	docs, err := p.store.List(ctx, docstore.Collection(AccountsCollection).Where("email", email))
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
