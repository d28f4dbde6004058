package apperr

import (
	"fmt"
	"strings"
)

// LineError is the failure of one checkout line.
type LineError struct {
	ProductID int64
	Err       error
}

func (e LineError) Error() string {
	return fmt.Sprintf("product %d: %v", e.ProductID, e.Err)
}

func (e LineError) Unwrap() error { return e.Err }

// CheckoutError collects every failing line of a checkout step.
// errors.As reaches the line errors through Unwrap.
type CheckoutError struct {
	Lines []LineError
}

func (e *CheckoutError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		parts = append(parts, l.Error())
	}
	return "checkout failed: " + strings.Join(parts, "; ")
}

func (e *CheckoutError) Unwrap() []error {
	errs := make([]error, 0, len(e.Lines))
	for _, l := range e.Lines {
		errs = append(errs, l)
	}
	return errs
}

func (e *CheckoutError) Add(productID int64, err error) {
	e.Lines = append(e.Lines, LineError{ProductID: productID, Err: err})
}

// OrNil returns nil when no line failed.
func (e *CheckoutError) OrNil() error {
	if e == nil || len(e.Lines) == 0 {
		return nil
	}
	return e
}
