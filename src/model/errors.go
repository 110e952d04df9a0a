package model

import (
	"errors"
	"fmt"
)

var (
	ErrMissingEquity       = errors.New("total equity is missing or not positive")
	ErrUnknownMergePolicy  = errors.New("unknown merge policy")
	ErrEquityBasisMismatch = errors.New("strategy results were sized against different equity snapshots")
	ErrInvalidLimits       = errors.New("invalid position limits")
)

// ConfigError aborts a run before any broker call.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error (%s): %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError wraps err as a ConfigError for field.
func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Err: err}
}

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// StrategyDataError means one producer returned unusable output. The producer
// contributes zero positions and the run goes on.
type StrategyDataError struct {
	Strategy string `json:"strategy"`
	Message  string `json:"message"`
	Err      error  `json:"-"`
}

func (e *StrategyDataError) Error() string {
	return fmt.Sprintf("strategy %s: %s", e.Strategy, e.Message)
}

func (e *StrategyDataError) Unwrap() error { return e.Err }
