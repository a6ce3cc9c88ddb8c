package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation wraps every input rejection; the message after the
	// colon says what was wrong.
	ErrValidation = errors.New("validation failed")

	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrMealUnavailable    = errors.New("meal unavailable")
	ErrDailyOrderLimit    = errors.New("daily order limit reached")
	ErrPlanLimit          = errors.New("plan limit reached")
	ErrCategoryInUse      = errors.New("category in use")
	ErrTableOccupied      = errors.New("table occupied")
	ErrTableUnavailable   = errors.New("table unavailable")
	ErrTableInUse         = errors.New("table has an unpaid order")
	ErrOrderSettled       = errors.New("order already paid")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrSelfDisable        = errors.New("cannot disable own account")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
