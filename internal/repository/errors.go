// Package repository holds the MySQL data access layer.  Every query is
// scoped by tenant_id; the sentinel errors below let the service and
// handler layers tell failure scenarios apart without inspecting SQL
// errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a row does not exist for the tenant.
// Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource of another tenant.  Handlers translate it into 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot proceed because of
// conflicting state, such as a duplicate table number.  Handlers
// translate it into 409.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when an account email is already taken.
var ErrEmailExists = errors.New("email already exists")

// isDuplicate reports whether err is a MySQL duplicate-key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// isForeignKey reports whether err is a MySQL foreign key violation
// (row still referenced, or parent row missing).
func isForeignKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && (me.Number == 1451 || me.Number == 1452)
}
