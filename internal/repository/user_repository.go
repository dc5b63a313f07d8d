package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/spot-rental/internal/model"
	"github.com/iliyamo/spot-rental/internal/utils"
)

// ErrUsernameExists and ErrEmailExists report unique key violations at
// signup.
var (
	ErrUsernameExists = errors.New("username already exists")
	ErrEmailExists    = errors.New("email already exists")
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,username,email,hashed_password,first_name,last_name,created_at,updated_at"

func scanUser(row interface{ Scan(...any) error }, u *model.User) error {
	return row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.FirstName, &u.LastName, &u.CreatedAt, &u.UpdatedAt)
}

// Create hashes the password, inserts the user and returns the stored
// record.  Duplicate username or email map to ErrUsernameExists and
// ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, u model.User, password string, cost int) (model.User, error) {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return model.User{}, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, email, hashed_password, first_name, last_name) VALUES (?,?,?,?,?)",
		strings.TrimSpace(u.Username), strings.TrimSpace(u.Email), hash, strings.TrimSpace(u.FirstName), strings.TrimSpace(u.LastName))
	if err != nil {
		if key, ok := duplicateKey(err); ok {
			if strings.Contains(key, "email") {
				return model.User{}, ErrEmailExists
			}
			return model.User{}, ErrUsernameExists
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByCredential fetches a user whose username or email equals credential.
// Comparison follows the column collation.
func (r *UserRepo) GetByCredential(ctx context.Context, credential string) (model.User, error) {
	var u model.User
	err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? OR email=? LIMIT 1",
		credential, credential), &u)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrUserNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id), &u)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrUserNotFound
	}
	return u, err
}
