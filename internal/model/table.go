package model

// Table is a physical table of a tenant.  Occupied is toggled by the
// order workflow; Disabled is the soft-delete flag.  Number is caller
// assigned and unique only among the tenant's enabled tables.
type Table struct {
	ID       uint64 `json:"id"`        // dining_tables.id
	TenantID uint64 `json:"tenant_id"` // dining_tables.tenant_id
	Number   int    `json:"number"`    // dining_tables.number
	Occupied bool   `json:"occupied"`  // dining_tables.occupied
	Disabled bool   `json:"-"`         // dining_tables.disabled
}
