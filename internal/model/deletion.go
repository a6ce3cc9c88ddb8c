package model

import "strconv"

// Entity names a persisted entity kind.  The values double as
// change-notification topics.
type Entity string

const (
	EntityAccount  Entity = "accounts"
	EntityCategory Entity = "categories"
	EntityMeal     Entity = "meals"
	EntityTable    Entity = "tables"
	EntityOrder    Entity = "orders"
)

// DeletionPolicy says how an entity leaves listings.
type DeletionPolicy int

const (
	// HardDelete removes the row.
	HardDelete DeletionPolicy = iota
	// SoftDelete flips a flag column; the row stays for historical
	// references and listings filter it out.
	SoftDelete
)

type deletion struct {
	policy DeletionPolicy
	column string // flag column for soft deletes
	live   int    // column value of a live row
}

var deletions = map[Entity]deletion{
	EntityAccount:  {policy: SoftDelete, column: "enabled", live: 1},
	EntityCategory: {policy: HardDelete},
	EntityMeal:     {policy: SoftDelete, column: "disabled", live: 0},
	EntityTable:    {policy: SoftDelete, column: "disabled", live: 0},
	EntityOrder:    {policy: HardDelete},
}

// Valid reports whether e is a known entity kind.
func (e Entity) Valid() bool {
	_, ok := deletions[e]
	return ok
}

// Policy returns the deletion policy of e.
func (e Entity) Policy() DeletionPolicy { return deletions[e].policy }

// ListFilter is the SQL predicate that keeps only live rows of e.
// Hard-deleted entities need none and get "1 = 1".
func (e Entity) ListFilter() string {
	d := deletions[e]
	if d.policy != SoftDelete {
		return "1 = 1"
	}
	return d.column + " = " + strconv.Itoa(d.live)
}

// SoftDeleteAssignment is the SET clause body that soft deletes a row of
// e, or "" when e is hard deleted.
func (e Entity) SoftDeleteAssignment() string {
	d := deletions[e]
	if d.policy != SoftDelete {
		return ""
	}
	return d.column + " = " + strconv.Itoa(1-d.live)
}
