package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/validation"
)

// AdminRole is granted to the seeded administrator.
const AdminRole = "ROLE_ADMIN"

// Users registers accounts.
type Users struct {
	store  model.UserStore
	logger *logger.Logger
	cost   int
	now    func() time.Time
}

func NewUsers(store model.UserStore, logger *logger.Logger) *Users {
	return &Users{
		store:  store,
		logger: logger,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

// Register validates r, hashes the password and stores a user with the default role.
func (u *Users) Register(ctx context.Context, r model.Registration) (model.Profile, error) {
	r.Email = strings.TrimSpace(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)

	if err := validation.Registration(r); err != nil {
		return model.Profile{}, err
	}

	user, err := u.create(ctx, r.Name, r.Email, r.PhoneNumber, r.Password, []string{model.DefaultRole})
	if err != nil {
		return model.Profile{}, err
	}

	u.logger.Info("Users service: user registered",
		"user_id", user.ID)

	return user.Profile(), nil
}

// SeedAdmin creates an administrator account unless email is already registered.
func (u *Users) SeedAdmin(ctx context.Context, email, password string) error {
	_, err := u.store.GetByEmail(ctx, email)
	if err == nil {
		u.logger.Debug("Users service: admin already present")
		return nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("failed to get user by email: %w", err)
	}

	user, err := u.create(ctx, "Admin", email, "", password, []string{model.DefaultRole, AdminRole})
	if errors.Is(err, model.ErrUserAlreadyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}

	u.logger.Info("Users service: admin seeded",
		"user_id", user.ID)
	return nil
}

func (u *Users) create(ctx context.Context, name, email, phone, password string, roles []string) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	if phone == "" {
		// phone numbers are unique, so a seeded account without one gets a random placeholder
		phone = "admin-" + uuid.NewString()
	}

	user, err := u.store.Create(ctx, model.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PhoneNumber:  phone,
		PasswordHash: hash,
		Roles:        roles,
		CreatedAt:    u.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, model.ErrUserAlreadyExists) {
			u.logger.Info("Users service: user already exists")
			return model.User{}, model.ErrUserAlreadyExists
		}
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}
