package model

import "time"

// Tenant is one restaurant's isolated data partition.  Every other
// entity carries a tenant_id foreign key.  Tenants are created at
// sign-up together with their first admin account and are never
// deleted through the API.
//
// Fields:
//   - ID        – primary key identifier.
//   - Name      – restaurant name shown on receipts.
//   - Logo      – URL of the restaurant logo (may be empty).
//   - Plan      – subscription plan the tenant is on.
//   - CreatedAt – creation timestamp.
type Tenant struct {
	ID        uint64    `json:"id"`         // tenants.id
	Name      string    `json:"name"`       // tenants.name
	Logo      string    `json:"logo"`       // tenants.logo
	Plan      Plan      `json:"plan"`       // tenants.plan
	CreatedAt time.Time `json:"created_at"` // tenants.created_at
}
