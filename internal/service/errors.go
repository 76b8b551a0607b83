package service

import (
	"errors"
	"fmt"

	"inventra-api/internal/events"
	"inventra-api/pkg/validator"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart        = errors.New("product list is empty")
	ErrOrderNotFound    = errors.New("order not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrProductInUse     = errors.New("product is referenced by existing orders")
	ErrCodeExhausted    = errors.New("could not allocate a unique product code")
)

// Actor identifies who triggered a write, for audit columns and events
type Actor = events.Actor

// ValidationError is a malformed or incomplete request
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func validate(v interface{}) error {
	if errs := validator.ValidateStruct(v); len(errs) > 0 {
		return &ValidationError{Msg: validator.Message(errs)}
	}
	return nil
}

// ProductNotFoundError names the code that did not resolve
type ProductNotFoundError struct {
	Code string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product with code %s not found", e.Code)
}

func (e *ProductNotFoundError) Unwrap() error { return ErrProductNotFound }

type InsufficientStockError struct {
	Code      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("only %d units available for product %s", e.Available, e.Code)
}

// PriceMismatchError is returned when the client's total disagrees with the catalog
type PriceMismatchError struct {
	Expected decimal.Decimal
	Declared decimal.Decimal
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("total price mismatch. Expected: %s", e.Expected.StringFixed(2))
}
