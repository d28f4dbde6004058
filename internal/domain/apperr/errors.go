// Package apperr defines the error taxonomy shared by the stock subsystem.
package apperr

import (
	"errors"
	"fmt"
)

// InvalidArgumentError is the caller's fault and is rejected before any write.
type InvalidArgumentError struct {
	Field  string
	Reason string
	Value  interface{}
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument: field=%s, reason=%s, value=%v", e.Field, e.Reason, e.Value)
}

func (e *InvalidArgumentError) Is(target error) bool {
	_, ok := target.(*InvalidArgumentError)
	return ok
}

// InsufficientStockError means more was requested than is on hand (or available).
type InsufficientStockError struct {
	ProductID int64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: product_id=%d, requested=%d, available=%d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	_, ok := target.(*InsufficientStockError)
	return ok
}

// InvalidStateError is returned when the target is not in a state that allows the operation.
type InvalidStateError struct {
	Resource string
	ID       int64
	State    string
	Reason   string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state: %s id=%d state=%s: %s", e.Resource, e.ID, e.State, e.Reason)
}

func (e *InvalidStateError) Is(target error) bool {
	_, ok := target.(*InvalidStateError)
	return ok
}

// NotFoundError is returned when a referenced product/reservation/order does not exist.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: id=%d", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

func NewInvalidArgument(field, reason string, value interface{}) error {
	return &InvalidArgumentError{Field: field, Reason: reason, Value: value}
}

func NewInsufficientStock(productID, requested, available int64) error {
	return &InsufficientStockError{ProductID: productID, Requested: requested, Available: available}
}

func NewInvalidState(resource string, id int64, state, reason string) error {
	return &InvalidStateError{Resource: resource, ID: id, State: state, Reason: reason}
}

func NewNotFound(resource string, id int64) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func IsInvalidArgument(err error) bool {
	var e *InvalidArgumentError
	return errors.As(err, &e)
}

func IsInsufficientStock(err error) bool {
	var e *InsufficientStockError
	return errors.As(err, &e)
}

func IsInvalidState(err error) bool {
	var e *InvalidStateError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}
