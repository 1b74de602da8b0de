package domain

import "time"

// Role identifies who is acting on a request. RoleSystem covers automated
// transitions (matching, QA promotion) with no human actor behind them; it is
// never a login role.
type Role string

const (
	RoleClient    Role = "client"
	RoleDeveloper Role = "developer"
	RoleSystem    Role = "system"
)

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is the domain model for marketplace accounts, both clients who submit
// requests and developers who apply to them.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Status       UserStatus
	Skills       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
