// Error types for the live workspace index. Nothing here is fatal to the
// enclosing process: every failure degrades to keeping the last good snapshot.
package errors

import (
	"fmt"
	"time"
)

type ErrorType string

const (
	// Reload errors: a graph or project descriptor could not be read or
	// parsed. The batch is aborted and the prior snapshot stays authoritative.
	ErrorTypeReload ErrorType = "reload"

	// Unit errors: a single source unit could not be read during an
	// incremental edit. Only that unit's change is dropped.
	ErrorTypeUnit ErrorType = "unit"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// ReloadError represents a failed graph or project reload.
type ReloadError struct {
	Type           ErrorType
	DescriptorPath string
	Operation      string
	Underlying     error
	Timestamp      time.Time
}

// NewReloadError creates a new reload error with context
func NewReloadError(op, descriptorPath string, err error) *ReloadError {
	return &ReloadError{
		Type:           ErrorTypeReload,
		DescriptorPath: descriptorPath,
		Operation:      op,
		Underlying:     err,
		Timestamp:      time.Now(),
	}
}

// Error implements the error interface
func (e *ReloadError) Error() string {
	return fmt.Sprintf("%s %s failed for %s: %v", e.Type, e.Operation, e.DescriptorPath, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *ReloadError) Unwrap() error {
	return e.Underlying
}

// UnitError represents a failure affecting a single source unit.
type UnitError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewUnitError creates a new unit error
func NewUnitError(op, path string, err error) *UnitError {
	return &UnitError{
		Type:       ErrorTypeUnit,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *UnitError) Error() string {
	return fmt.Sprintf("unit %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *UnitError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}
