package shop

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"julianmorley.ca/con-plar/storefront/pkg/models"
	"julianmorley.ca/con-plar/storefront/pkg/store"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrTransactionAborted = errors.New("transaction aborted, retry the request")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
)

// StockError names the product that could not cover a request.
type StockError struct {
	ProductID bson.ObjectID
	Name      string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	label := e.ProductID.Hex()
	if e.Name != "" {
		label = fmt.Sprintf("%s (%s)", e.Name, label)
	}
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", label, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type TransitionError struct {
	OrderID bson.ObjectID
	From    models.OrderStatus
	To      models.OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s cannot move from %s to %s", e.OrderID.Hex(), e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

type StatusError struct {
	Value string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("invalid order status %q", e.Value)
}

func (e *StatusError) Unwrap() error { return ErrInvalidStatus }

// ruleError is a sentinel with a caller-facing message.
type ruleError struct {
	kind error
	msg  string
}

func (e *ruleError) Error() string { return e.msg }

func (e *ruleError) Unwrap() error { return e.kind }

func errWithMessage(kind error, msg string) error {
	return &ruleError{kind: kind, msg: msg}
}

func invalidInput(format string, args ...any) error {
	return errWithMessage(ErrInvalidInput, fmt.Sprintf(format, args...))
}

func notFound(entity string, id bson.ObjectID) error {
	return &NotFoundError{Entity: entity, ID: id.Hex()}
}

// translate maps datastore errors onto the domain taxonomy. Errors that are already
// domain errors pass through unchanged.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrTxAborted):
		return fmt.Errorf("%w: %v", ErrTransactionAborted, err)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, store.ErrStatusConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, store.ErrInsufficientStock):
		return fmt.Errorf("%w: %v", ErrInsufficientStock, err)
	}
	return err
}
