// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInputValidation  = errors.New("input validation failed")
	ErrPositionOpen     = errors.New("a position is already open")
	ErrNoOpenPosition   = errors.New("no open position")
	ErrCountdownActive  = errors.New("intervention countdown still active")
	ErrNoIntervention   = errors.New("no intervention pending")
	ErrNoMarketPrice    = errors.New("no market price available")
	ErrDataNotFound     = errors.New("data not found")
	ErrDatabaseError    = errors.New("database error")
	ErrFeedDisconnected = errors.New("market feed disconnected")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrTimeout          = errors.New("operation timed out")
)

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// JudgeError represents an error from the LLM judge.
type JudgeError struct {
	Operation string
	Err       error
}

func (e *JudgeError) Error() string {
	return fmt.Sprintf("judge error [%s]: %v", e.Operation, e.Err)
}

func (e *JudgeError) Unwrap() error {
	return e.Err
}

// NewJudgeError creates a new JudgeError.
func NewJudgeError(operation string, err error) *JudgeError {
	return &JudgeError{
		Operation: operation,
		Err:       err,
	}
}

// FeedError represents an error from the market data feed.
type FeedError struct {
	Symbol  string
	Action  string
	Message string
	Err     error
}

func (e *FeedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feed error [%s] %s: %s: %v", e.Symbol, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("feed error [%s] %s: %s", e.Symbol, e.Action, e.Message)
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

// NewFeedError creates a new FeedError.
func NewFeedError(symbol, action, message string, err error) *FeedError {
	return &FeedError{
		Symbol:  symbol,
		Action:  action,
		Message: message,
		Err:     err,
	}
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Key      string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Key, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Key, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, key, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Key:      key,
		Message:  message,
		Err:      err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
