package auth

import (
	"time"

	"github.com/schoolyard-app/schoolyard/internal/authz"
)

// Account represents a sign-in capable user account.
type Account struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         authz.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
