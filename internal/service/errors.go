package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrProductNotFound      = errors.New("product not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrSaleNotFound         = errors.New("sale not found")
	ErrOrderNotFound        = errors.New("purchase order not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrOrderBusy            = errors.New("purchase order is being updated")
	ErrTotalMismatch        = errors.New("sale total does not match its lines")
	ErrProductNameTaken     = errors.New("product name already exists")
	ErrDistributorNameTaken = errors.New("distributor name already exists")
	ErrAlreadyClosed        = errors.New("register already closed today")
	ErrClosingBusy          = errors.New("register closing already in progress")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUserInactive         = errors.New("user is inactive")
	ErrTooManyAttempts      = errors.New("too many failed login attempts")
	ErrInvalidToken         = errors.New("invalid or expired token")
)

// ProductNotFoundError identifies the product of a sale line that does not
// resolve, by the name the client submitted
type ProductNotFoundError struct {
	ProductID int64
	Name      string
}

func (e *ProductNotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("product not found: %s", e.Name)
	}
	return fmt.Sprintf("product not found: %d", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool { return target == ErrProductNotFound }

// InsufficientStockError carries the stock seen when a line was rejected
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for '%s': available %d, requested %d", e.Name, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// TransitionError describes a refused purchase order status change
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("invalid status transition: unknown status %q", e.To)
	}
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// UnappliedLine is a stock change that could not be applied or rolled back
type UnappliedLine struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"product_name"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
}

// PartialApplicationError reports stock changes an operator has to reconcile
// by hand. Cause is the failure that started the rollback, if any.
type PartialApplicationError struct {
	Operation string
	Lines     []UnappliedLine
	Cause     error
}

func (e *PartialApplicationError) Error() string {
	parts := make([]string, len(e.Lines))
	for i, l := range e.Lines {
		parts[i] = fmt.Sprintf("product %d (%s) x%d: %s", l.ProductID, l.Name, l.Quantity, l.Reason)
	}
	msg := fmt.Sprintf("%s partially applied; unreconciled stock: %s", e.Operation, strings.Join(parts, "; "))
	if e.Cause != nil {
		msg += fmt.Sprintf(" (cause: %v)", e.Cause)
	}
	return msg
}

func (e *PartialApplicationError) Unwrap() error { return e.Cause }

// PersistenceError wraps a storage failure
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistenceErr(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
