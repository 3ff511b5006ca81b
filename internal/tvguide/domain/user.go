package domain

import "time"

// User is a registered account. Username is the natural key and never
// changes after registration.
type User struct {
	ID           string
	Username     string
	PasswordHash string // argon2id PHC (bcrypt for accounts predating it)
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the account carries the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Subject is the identity claim tokens carry for this user.
func (u User) Subject() string { return u.Username }

// RoleName satisfies httpx.Principal.
func (u User) RoleName() string { return string(u.Role) }
