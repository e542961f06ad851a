package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/docstore"
	"github.com/spec-kit/issue-service/internal/domain"
)

// UsersCollection holds one profile document per identity uid.
const UsersCollection = "users"

// UserRepository defines persistence access for user profiles.
type UserRepository interface {
	Upsert(ctx context.Context, id string, in domain.UserInput, createdAt time.Time) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	UpdateRole(ctx context.Context, id string, role domain.Role) error
	UpdatePushToken(ctx context.Context, id, token string) error
	UpdateFullName(ctx context.Context, id, fullName string) error
	Delete(ctx context.Context, id string) error
	Watch(ctx context.Context, id string, onUser func(*domain.User), onError docstore.ErrorFunc) docstore.Unsubscribe
}

type userRepository struct {
	store  docstore.Store
	logger *zap.Logger
}

// NewUserRepository returns a document store backed implementation.
func NewUserRepository(store docstore.Store, logger *zap.Logger) UserRepository {
	return &userRepository{store: store, logger: nopIfNil(logger)}
}

// Upsert merges in into users/{id}. Role is written only when set.
func (r *userRepository) Upsert(ctx context.Context, id string, in domain.UserInput, createdAt time.Time) error {
	data := map[string]any{"createdAt": domain.FormatTime(createdAt)}
	putString(data, "email", in.Email)
	putString(data, "fullName", in.FullName)
	putString(data, "role", string(in.Role))
	putString(data, "pushToken", in.PushToken)
	return r.store.Set(ctx, UsersCollection, id, data, true)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	doc, err := r.store.Get(ctx, UsersCollection, id)
	if err != nil {
		return nil, err
	}
	return toUser(*doc)
}

func (r *userRepository) List(ctx context.Context) ([]domain.User, error) {
	docs, err := r.store.List(ctx, docstore.Collection(UsersCollection))
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, r.logger, toUser), nil
}

func (r *userRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	return r.store.Update(ctx, UsersCollection, id, []docstore.Update{{Path: "role", Value: string(role)}})
}

// UpdatePushToken records the device token, creating the profile document
// when it does not exist yet.
func (r *userRepository) UpdatePushToken(ctx context.Context, id, token string) error {
	return r.store.Set(ctx, UsersCollection, id, map[string]any{"pushToken": token}, true)
}

// UpdateFullName leaves createdAt and role untouched.
func (r *userRepository) UpdateFullName(ctx context.Context, id, fullName string) error {
	return r.store.Set(ctx, UsersCollection, id, map[string]any{"fullName": fullName}, true)
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, UsersCollection, id)
}

// Watch reports the profile on every change; nil means no document.
// A document that cannot be decoded is reported through onError and the
// watch keeps running.
func (r *userRepository) Watch(ctx context.Context, id string, onUser func(*domain.User), onError docstore.ErrorFunc) docstore.Unsubscribe {
	return r.store.WatchDocument(ctx, UsersCollection, id, func(doc *docstore.Document) {
		if doc == nil {
			onUser(nil)
			return
		}
		user, err := toUser(*doc)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onUser(user)
	}, onError)
}

func toUser(doc docstore.Document) (*domain.User, error) {
	var user domain.User
	if err := decode(doc, &user); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", doc.ID, err)
	}
	user.ID = doc.ID
	raw, _ := doc.Data["role"].(string)
	user.Role = domain.ParseRole(strings.TrimSpace(raw))
	return &user, nil
}
