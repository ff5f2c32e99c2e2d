// Package auth provides user identities, credential checks and the task authorization policy.
package auth

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Role is the coarse permission level of a user.
type Role string

const (
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleManager || r == RoleUser
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidUser        = errors.New("invalid user")
)

// User is a registered account.
type User struct {
	ID           int64     `json:"id"         yaml:"id"`
	Name         string    `json:"name"       yaml:"name"`
	Email        string    `json:"email"      yaml:"email"`
	Role         Role      `json:"role"       yaml:"role"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	PasswordHash string    `json:"-"          yaml:"-"`
}

// Identity returns the caller identity of u.
func (u User) Identity() Identity {
	return Identity{UserID: u.ID, Role: u.Role}
}

// NewUser holds registration input.
type NewUser struct {
	Name     string
	Email    string
	Password string
	Role     Role
}

// MinPasswordLength bounds NewUser.Password.
const MinPasswordLength = 8

// Validate normalizes and checks registration input.
func (n *NewUser) Validate() error {
	n.Name = strings.TrimSpace(n.Name)
	n.Email = strings.ToLower(strings.TrimSpace(n.Email))
	if n.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidUser)
	}
	if _, err := mail.ParseAddress(n.Email); err != nil {
		return fmt.Errorf("%w: email %q is not valid", ErrInvalidUser, n.Email)
	}
	if len(n.Password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidUser, MinPasswordLength)
	}
	if n.Role == "" {
		n.Role = RoleUser
	}
	if !n.Role.Valid() {
		return fmt.Errorf("%w: role must be manager or user", ErrInvalidUser)
	}
	return nil
}
