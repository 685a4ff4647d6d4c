package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/identity-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

type UserRepository struct {
	db *Connection
}

func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

const userColumns = `id, name, email, phone_number, password_hash, roles, created_at`

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by email: %w", translate(err))
	}

	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by id: %w", translate(err))
	}

	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	if len(user.Roles) == 0 {
		user.Roles = []string{model.DefaultRole}
	}
	roles, err := json.Marshal(user.Roles)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to marshal roles: %w", err)
	}

	query := `INSERT INTO users (id, name, email, phone_number, password_hash, roles, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING ` + userColumns

	saved, err := scanUser(r.db.QueryRowContext(ctx, query,
		user.ID, user.Name, user.Email, user.PhoneNumber, user.PasswordHash, string(roles), user.CreatedAt,
	))
	if err != nil {
		err = translate(err)
		if errors.Is(err, model.ErrConflict) {
			return model.User{}, model.ErrUserAlreadyExists
		}
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return saved, nil
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		user  model.User
		roles []byte
	)
	if err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PhoneNumber, &user.PasswordHash, &roles, &user.CreatedAt,
	); err != nil {
		return model.User{}, err
	}

	if err := json.Unmarshal(roles, &user.Roles); err != nil {
		return model.User{}, fmt.Errorf("failed to unmarshal roles: %w", err)
	}

	return user, nil
}
