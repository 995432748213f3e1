package strata

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested entity or row does not exist.
	ErrNotFound = errors.New("strata: entity not found")

	// ErrTxStarted is returned when attempting to begin a transaction
	// while another one is active on the store.
	ErrTxStarted = errors.New("strata: cannot start a transaction within a transaction")

	// ErrNoTx is returned by Commit and Rollback when no transaction is active.
	ErrNoTx = errors.New("strata: no active transaction")
)

// Configuration error kinds. A *ConfigError matches its kind with errors.Is.
var (
	ErrNoPrimaryKey        = errors.New("primary key required")
	ErrReservedWord        = errors.New("reserved word")
	ErrUnsupportedIdentity = errors.New("unsupported identity data type")
	ErrMissingSerializer   = errors.New("missing serializer/deserializer")
	ErrBehaviorInTx        = errors.New("connection behavior cannot change during a transaction")
	ErrInvalidField        = errors.New("invalid field definition")
	ErrInvalidReference    = errors.New("invalid reference definition")
)

var (
	// ErrUnknownEntity is returned when an entity name or type is not registered
	// and could not be registered automatically.
	ErrUnknownEntity = errors.New("strata: unknown entity")

	// ErrUnsupported is matched by every *UnsupportedError.
	ErrUnsupported = errors.New("strata: operation not supported")

	// ErrConversion is returned when a stored value cannot be converted to
	// the type declared by its field.
	ErrConversion = errors.New("strata: value conversion failed")
)

// NotFoundError represents an error when an entity is not found.
type NotFoundError struct {
	label string
	id    any // Optional: the key that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("strata: %s not found (key=%v)", e.label, e.id)
	}
	return fmt.Sprintf("strata: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the key that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given entity name.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithID returns a new NotFoundError with the key that was searched for.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ConfigError is a fatal misconfiguration of an entity, a field or the store.
// It is never retried.
type ConfigError struct {
	Entity string // Entity name, if known
	Field  string // Field or reference name, if known
	Kind   error  // One of the ErrXxx configuration kinds
	Detail string
}

// Error returns the error string.
func (e *ConfigError) Error() string {
	var sb strings.Builder
	sb.WriteString("strata: configuration: ")
	sb.WriteString(e.Kind.Error())
	switch {
	case e.Entity != "" && e.Field != "":
		fmt.Fprintf(&sb, " (%s.%s)", e.Entity, e.Field)
	case e.Entity != "":
		fmt.Fprintf(&sb, " (%s)", e.Entity)
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

// Is reports whether target is the kind of this error.
func (e *ConfigError) Is(target error) bool {
	return e.Kind == target
}

// Unwrap returns the error kind.
func (e *ConfigError) Unwrap() error {
	return e.Kind
}

// NewConfigError returns a new ConfigError.
func NewConfigError(kind error, entity, field, detail string) *ConfigError {
	return &ConfigError{Kind: kind, Entity: entity, Field: field, Detail: detail}
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigError
	return errors.As(err, &e)
}

// UnsupportedError is returned when a backend cannot serve a request.
// Requests are never silently degraded.
type UnsupportedError struct {
	Dialect string
	Op      string
	Reason  string
}

// Error returns the error string.
func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("strata: %s not supported by %s: %s", e.Op, e.Dialect, e.Reason)
	}
	return fmt.Sprintf("strata: %s not supported by %s", e.Op, e.Dialect)
}

// Is reports whether the target error matches ErrUnsupported.
func (e *UnsupportedError) Is(err error) bool {
	return err == ErrUnsupported
}

// NewUnsupportedError returns a new UnsupportedError.
func NewUnsupportedError(dialect, op, reason string) *UnsupportedError {
	return &UnsupportedError{Dialect: dialect, Op: op, Reason: reason}
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("strata: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "strata: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("strata: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}

// QueryError wraps a query error with additional context.
type QueryError struct {
	Entity string // Entity being queried
	Op     string // Operation (e.g., "select", "count", "fetch")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("strata: querying %s (%s): %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("strata: querying %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(entity, op string, err error) *QueryError {
	return &QueryError{Entity: entity, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// MutationError wraps a mutation error with additional context.
type MutationError struct {
	Entity string // Entity being mutated
	Op     string // Operation (e.g., "insert", "update", "delete")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("strata: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(entity, op string, err error) *MutationError {
	return &MutationError{Entity: entity, Op: op, Err: err}
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MutationError
	return errors.As(err, &e)
}
