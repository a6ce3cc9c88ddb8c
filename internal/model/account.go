package model

import "time"

// Role gates which features an account can reach.
type Role string

const (
	RoleWaiter Role = "waiter"
	RoleCook   Role = "cook"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleWaiter, RoleCook, RoleAdmin:
		return true
	}
	return false
}

// Account represents a user of a tenant as stored in the `accounts`
// table.  Accounts are created by sign-up (the first admin) or by an
// admin, and are disabled rather than removed so historical orders keep
// a valid placing-user reference.
//
// Fields:
//   - ID           – primary key identifier.
//   - TenantID     – owning tenant.
//   - Name         – display name.
//   - Email        – unique, lower-cased login email.
//   - PasswordHash – bcrypt hash, never serialized.
//   - Role         – waiter, cook or admin.
//   - Enabled      – false once the account was disabled.
//   - CreatedAt    – creation timestamp.
//   - UpdatedAt    – last update timestamp.
type Account struct {
	ID           uint64    `json:"id"`         // accounts.id
	TenantID     uint64    `json:"tenant_id"`  // accounts.tenant_id
	Name         string    `json:"name"`       // accounts.name
	Email        string    `json:"email"`      // accounts.email
	PasswordHash string    `json:"-"`          // accounts.password_hash
	Role         Role      `json:"role"`       // accounts.role
	Enabled      bool      `json:"enabled"`    // accounts.enabled
	CreatedAt    time.Time `json:"created_at"` // accounts.created_at
	UpdatedAt    time.Time `json:"updated_at"` // accounts.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 of the raw token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	AccountID uint64     // refresh_tokens.account_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
