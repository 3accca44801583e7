package users

import (
	"time"

	"github.com/schoolyard-app/schoolyard/internal/authz"
)

// Account is a sign-in account as managed from the admin area.
type Account struct {
	ID        int64
	Email     string
	Name      string
	Role      authz.Role
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
