package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/metalagman/taskgraph/internal/db"
	"golang.org/x/crypto/bcrypt"
)

// Store manages user persistence and password checks.
type Store struct {
	q    db.Querier
	cost int
}

// NewStore creates a user store. cost is the bcrypt cost; zero selects bcrypt.DefaultCost.
func NewStore(q db.Querier, cost int) *Store {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Store{q: q, cost: cost}
}

// Create registers a user with a hashed password.
func (s *Store) Create(ctx context.Context, in NewUser) (User, error) {
	if err := in.Validate(); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	res, err := s.q.ExecContext(ctx, `INSERT INTO users(name, email, password_hash, role, created_at) VALUES(?, ?, ?, ?, ?)`,
		in.Name, in.Email, string(hash), string(in.Role), now.Format(time.RFC3339Nano))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("read user id: %w", err)
	}
	return User{ID: id, Name: in.Name, Email: in.Email, Role: in.Role, CreatedAt: now, PasswordHash: string(hash)}, nil
}

// Get fetches a user by id.
func (s *Store) Get(ctx context.Context, id int64) (User, error) {
	return s.one(ctx, `SELECT id, name, email, password_hash, role, created_at FROM users WHERE id=?`, id)
}

// GetByEmail fetches a user by email, case-insensitively.
func (s *Store) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.one(ctx, `SELECT id, name, email, password_hash, role, created_at FROM users WHERE email=?`,
		strings.ToLower(strings.TrimSpace(email)))
}

// Authenticate checks a password and returns the matching user.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := s.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Store) one(ctx context.Context, query string, arg any) (User, error) {
	var u User
	var role, createdAt string
	err := s.q.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("read user: %w", err)
	}
	u.Role = Role(role)
	if u.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return User{}, fmt.Errorf("parse user created_at: %w", err)
	}
	return u, nil
}
