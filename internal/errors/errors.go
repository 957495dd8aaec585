package errors

import (
	"fmt"
	"time"

	"github.com/standardbeagle/lwa/internal/types"
)

// Error types for the workspace analysis system
type ErrorType string

const (
	// Coordination errors
	ErrorTypeCoordinator ErrorType = "coordinator"
	ErrorTypeAnalyzer    ErrorType = "analyzer"
	ErrorTypeImpact      ErrorType = "impact"

	// Workspace errors
	ErrorTypeDocumentNotFound ErrorType = "document_not_found"
	ErrorTypeProjectNotFound  ErrorType = "project_not_found"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"

	// Internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// CoordinatorError represents an error inside the work coordinator
type CoordinatorError struct {
	Type        ErrorType
	Operation   string
	DocumentID  types.DocumentID
	ProjectID   types.ProjectID
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// NewCoordinatorError creates a new coordinator error with context
func NewCoordinatorError(op string, err error) *CoordinatorError {
	return &CoordinatorError{
		Type:       ErrorTypeCoordinator,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithDocument adds document information to the error
func (e *CoordinatorError) WithDocument(id types.DocumentID) *CoordinatorError {
	e.DocumentID = id
	return e
}

// WithProject adds project information to the error
func (e *CoordinatorError) WithProject(id types.ProjectID) *CoordinatorError {
	e.ProjectID = id
	return e
}

// WithRecoverable marks the error as recoverable
func (e *CoordinatorError) WithRecoverable(recoverable bool) *CoordinatorError {
	e.Recoverable = recoverable
	return e
}

// Error implements the error interface
func (e *CoordinatorError) Error() string {
	switch {
	case e.DocumentID != "":
		return fmt.Sprintf("%s %s failed for document %s: %v", e.Type, e.Operation, e.DocumentID, e.Underlying)
	case e.ProjectID != "":
		return fmt.Sprintf("%s %s failed for project %s: %v", e.Type, e.Operation, e.ProjectID, e.Underlying)
	default:
		return fmt.Sprintf("%s %s failed: %v", e.Type, e.Operation, e.Underlying)
	}
}

// Unwrap returns the underlying error for errors.Is/As
func (e *CoordinatorError) Unwrap() error {
	return e.Underlying
}

// IsRecoverable checks if the error can be retried
func (e *CoordinatorError) IsRecoverable() bool {
	return e.Recoverable
}

var errNotFound = fmt.Errorf("not present in the current snapshot")

// NewDocumentNotFoundError reports an operation naming a document the
// snapshot does not hold. Recoverable: the caller can retry once the
// document exists.
func NewDocumentNotFoundError(op string, id types.DocumentID) *CoordinatorError {
	e := NewCoordinatorError(op, errNotFound).WithDocument(id).WithRecoverable(true)
	e.Type = ErrorTypeDocumentNotFound
	return e
}

// NewProjectNotFoundError reports an operation naming a project the snapshot
// does not hold.
func NewProjectNotFoundError(op string, id types.ProjectID) *CoordinatorError {
	e := NewCoordinatorError(op, errNotFound).WithProject(id).WithRecoverable(true)
	e.Type = ErrorTypeProjectNotFound
	return e
}

// AnalyzerError wraps a fault raised inside an analyzer callback. Faults are
// isolated per analyzer and routed to the host's diagnostic sink, never back
// through the mutation APIs.
type AnalyzerError struct {
	Type       ErrorType
	Analyzer   string
	Callback   string
	DocumentID types.DocumentID
	ProjectID  types.ProjectID
	Underlying error
	Timestamp  time.Time
}

// NewAnalyzerError creates a new analyzer fault record
func NewAnalyzerError(analyzer, callback string, err error) *AnalyzerError {
	return &AnalyzerError{
		Type:       ErrorTypeAnalyzer,
		Analyzer:   analyzer,
		Callback:   callback,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithDocument adds document information to the error
func (e *AnalyzerError) WithDocument(id types.DocumentID) *AnalyzerError {
	e.DocumentID = id
	return e
}

// WithProject adds project information to the error
func (e *AnalyzerError) WithProject(id types.ProjectID) *AnalyzerError {
	e.ProjectID = id
	return e
}

// Error implements the error interface
func (e *AnalyzerError) Error() string {
	if e.DocumentID != "" {
		return fmt.Sprintf("analyzer %s %s faulted on document %s: %v", e.Analyzer, e.Callback, e.DocumentID, e.Underlying)
	}
	return fmt.Sprintf("analyzer %s %s faulted: %v", e.Analyzer, e.Callback, e.Underlying)
}

// Unwrap returns the underlying error
func (e *AnalyzerError) Unwrap() error {
	return e.Underlying
}

// ImpactError represents a failure during edit impact classification
type ImpactError struct {
	Type       ErrorType
	Language   string
	Span       types.Span
	Underlying error
	Timestamp  time.Time
}

// NewImpactError creates a new impact classification error
func NewImpactError(language string, span types.Span, err error) *ImpactError {
	return &ImpactError{
		Type:       ErrorTypeImpact,
		Language:   language,
		Span:       span,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ImpactError) Error() string {
	return fmt.Sprintf("impact classification failed for %s edit %s: %v", e.Language, e.Span, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ImpactError) Unwrap() error {
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

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
