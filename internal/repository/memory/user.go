package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dtroode/identity-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

// UserRepository keeps users in process memory. Email and phone number are unique.
type UserRepository struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]model.User
	email map[string]uuid.UUID
	phone map[string]uuid.UUID
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:  make(map[uuid.UUID]model.User),
		email: make(map[string]uuid.UUID),
		phone: make(map[string]uuid.UUID),
	}
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.email[email]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *UserRepository) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *UserRepository) Create(_ context.Context, user model.User) (model.User, error) {
	if len(user.Roles) == 0 {
		user.Roles = []string{model.DefaultRole}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[user.ID]; ok {
		return model.User{}, model.ErrUserAlreadyExists
	}
	if _, ok := r.email[user.Email]; ok {
		return model.User{}, model.ErrUserAlreadyExists
	}
	if user.PhoneNumber != "" {
		if _, ok := r.phone[user.PhoneNumber]; ok {
			return model.User{}, model.ErrUserAlreadyExists
		}
		r.phone[user.PhoneNumber] = user.ID
	}

	user = cloneUser(user)
	r.byID[user.ID] = user
	r.email[user.Email] = user.ID

	return cloneUser(user), nil
}

func cloneUser(u model.User) model.User {
	u.PasswordHash = append([]byte(nil), u.PasswordHash...)
	u.Roles = append([]string(nil), u.Roles...)
	return u
}
