package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeBatchNotFound     = "BATCH_NOT_FOUND"
	CodeVatMismatch       = "VAT_MISMATCH"
	CodeStockInUse        = "STOCK_IN_USE"
	CodeNotFound          = "RESOURCE_NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeInternalError     = "INTERNAL_ERROR"
)

// AppError is the error every workflow returns to its caller. HTTPStatus is
// what the route layer answers with.
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithDetails(details map[string]string) *AppError {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

func NewAppError(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func ErrValidation(message string) *AppError {
	return NewAppError(CodeValidationError, message, http.StatusBadRequest)
}

func ErrValidationf(format string, args ...any) *AppError {
	return ErrValidation(fmt.Sprintf(format, args...))
}

// ErrInsufficientStock reports the quantity actually on hand next to the
// quantity that was asked for.
func ErrInsufficientStock(item string, batch string, available, required fmt.Stringer) *AppError {
	e := NewAppError(CodeInsufficientStock,
		fmt.Sprintf("insufficient stock for %s: available %s, required %s", item, available, required),
		http.StatusUnprocessableEntity)
	e.WithDetail("item", item).
		WithDetail("available", available.String()).
		WithDetail("required", required.String())
	if batch != "" {
		e.WithDetail("batch", batch)
	}
	return e
}

func ErrBatchNotFound(item string, batch string) *AppError {
	return NewAppError(CodeBatchNotFound,
		fmt.Sprintf("batch %q not found for %s", batch, item),
		http.StatusUnprocessableEntity).
		WithDetail("item", item).
		WithDetail("batch", batch)
}

func ErrVatMismatch(message string) *AppError {
	return NewAppError(CodeVatMismatch, message, http.StatusUnprocessableEntity)
}

func ErrStockInUse(item string, batch string, available, required fmt.Stringer) *AppError {
	return NewAppError(CodeStockInUse,
		fmt.Sprintf("stock of %s batch %q was already used: %s left, %s needed to reverse", item, batch, available, required),
		http.StatusConflict).
		WithDetail("item", item).
		WithDetail("batch", batch).
		WithDetail("available", available.String()).
		WithDetail("required", required.String())
}

func ErrNotFound(resource string) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func ErrNotFoundWithID(resource string, id int) *AppError {
	return ErrNotFound(resource).WithDetail("id", fmt.Sprint(id))
}

func ErrConflict(message string) *AppError {
	return NewAppError(CodeConflict, message, http.StatusConflict)
}

func ErrInternal(message string) *AppError {
	if message == "" {
		message = "an internal error occurred"
	}
	return NewAppError(CodeInternalError, message, http.StatusInternalServerError)
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err, or anything it wraps, is an AppError with code.
func HasCode(err error, code string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

func CodeOf(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return CodeInternalError
}

func HTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// FromError converts anything into an AppError, keeping the original as the
// wrapped cause.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return ErrInternal("").Wrap(err)
}
