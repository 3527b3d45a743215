package types

import (
	"errors"
	"fmt"
)

// Error kinds. Typed errors below report errors.Is against these sentinels.
var (
	ErrPersistentStore      = errors.New("persistent store error")
	ErrManagedObject        = errors.New("managed object error")
	ErrInvalidOperation     = errors.New("invalid managed object operation")
	ErrModelParse           = errors.New("model parse error")
	ErrModelVersionNotFound = errors.New("model version not found")
	ErrEntityNotFound       = errors.New("entity not found")
	ErrInvalidDataType      = errors.New("invalid data type")
)

// Causes wrapped inside PersistentStoreError.
var (
	ErrNoPersistentStores     = errors.New("no persistent stores defined")
	ErrUnsupportedRequest     = errors.New("unsupported request type")
	ErrFaultFailed            = errors.New("fault fetch did not fully succeed")
	ErrStructureIncompatible  = errors.New("database structure incompatible with this model version")
	ErrMigrationUnsupported   = errors.New("schema migration is not supported")
	ErrDuplicateEntityPlural  = errors.New("duplicate entity plural")
	ErrNotFault               = errors.New("object is not a fault")
	ErrStoreClosed            = errors.New("store is closed")
	ErrCoordinatorUnavailable = errors.New("store is not attached to a coordinator")
)

// PersistentStoreError reports a failure inside a persistent store or the
// coordinator routing requests to it.
type PersistentStoreError struct {
	Op    string // operation, e.g. "insert", "fault", "bootstrap"
	Query string // statement text when a statement failed
	Err   error
}

func (e *PersistentStoreError) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("persistent store: %s: %v (query: %s)", e.Op, e.Err, e.Query)
	}
	return fmt.Sprintf("persistent store: %s: %v", e.Op, e.Err)
}

// Is reports whether target is ErrPersistentStore.
func (e *PersistentStoreError) Is(target error) bool { return target == ErrPersistentStore }

func (e *PersistentStoreError) Unwrap() error { return e.Err }

// NewPersistentStoreError wraps err with the failing operation.
func NewPersistentStoreError(op string, err error) *PersistentStoreError {
	return &PersistentStoreError{Op: op, Err: err}
}

// NewQueryError wraps a failed statement.
func NewQueryError(op, query string, err error) *PersistentStoreError {
	return &PersistentStoreError{Op: op, Query: query, Err: err}
}

// IsPersistentStore returns true if err is a PersistentStoreError.
func IsPersistentStore(err error) bool {
	if err == nil {
		return false
	}
	var e *PersistentStoreError
	return errors.As(err, &e) || errors.Is(err, ErrPersistentStore)
}

// ManagedObjectError reports an attribute that an object cannot handle.
type ManagedObjectError struct {
	Entity    string
	Attribute string
	Msg       string
}

func (e *ManagedObjectError) Error() string {
	return fmt.Sprintf("managed object %s.%s: %s", e.Entity, e.Attribute, e.Msg)
}

// Is reports whether target is ErrManagedObject.
func (e *ManagedObjectError) Is(target error) bool { return target == ErrManagedObject }

// IsManagedObject returns true if err is a ManagedObjectError.
func IsManagedObject(err error) bool {
	var e *ManagedObjectError
	return errors.As(err, &e)
}

// InvalidOperationError reports a value kind mismatch or an illegal mutation,
// such as directly setting a to-many relationship.
type InvalidOperationError struct {
	Entity    string
	Attribute string
	Msg       string
}

func (e *InvalidOperationError) Error() string {
	switch {
	case e.Entity == "":
		return "invalid operation: " + e.Msg
	case e.Attribute == "":
		return fmt.Sprintf("invalid operation on %s: %s", e.Entity, e.Msg)
	}
	return fmt.Sprintf("invalid operation on %s.%s: %s", e.Entity, e.Attribute, e.Msg)
}

// Is reports whether target is ErrInvalidOperation.
func (e *InvalidOperationError) Is(target error) bool { return target == ErrInvalidOperation }

// IsInvalidOperation returns true if err is an InvalidOperationError.
func IsInvalidOperation(err error) bool {
	var e *InvalidOperationError
	return errors.As(err, &e)
}

// ModelParseError reports a malformed schema document.
type ModelParseError struct {
	Source string
	Msg    string
	Err    error
}

func (e *ModelParseError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Source != "" {
		return fmt.Sprintf("model %s: %s", e.Source, msg)
	}
	return "model: " + msg
}

// Is reports whether target is ErrModelParse.
func (e *ModelParseError) Is(target error) bool { return target == ErrModelParse }

func (e *ModelParseError) Unwrap() error { return e.Err }

// IsModelParse returns true if err is a ModelParseError.
func IsModelParse(err error) bool {
	var e *ModelParseError
	return errors.As(err, &e)
}

// ModelVersionError reports that a schema document has no block for Version.
type ModelVersionError struct {
	Source  string
	Version string
}

func (e *ModelVersionError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("model %s: version %q not found", e.Source, e.Version)
	}
	return fmt.Sprintf("model: version %q not found", e.Version)
}

// Is reports whether target is ErrModelVersionNotFound.
func (e *ModelVersionError) Is(target error) bool { return target == ErrModelVersionNotFound }

// IsModelVersionNotFound returns true if err is a ModelVersionError.
func IsModelVersionNotFound(err error) bool {
	var e *ModelVersionError
	return errors.As(err, &e)
}

// EntityNotFoundError reports a reference to an entity the model does not define.
type EntityNotFoundError struct {
	Name string
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("entity %q not found", e.Name)
}

// Is reports whether target is ErrEntityNotFound.
func (e *EntityNotFoundError) Is(target error) bool { return target == ErrEntityNotFound }

// IsEntityNotFound returns true if err is an EntityNotFoundError.
func IsEntityNotFound(err error) bool {
	var e *EntityNotFoundError
	return errors.As(err, &e)
}

// InvalidDataTypeError reports a value that cannot be coerced into an
// attribute's declared type.
type InvalidDataTypeError struct {
	Attribute string
	Type      AttributeType
	Value     any
	Err       error
}

func (e *InvalidDataTypeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot use %v (%T) as %s for %s: %v", e.Value, e.Value, e.Type, e.Attribute, e.Err)
	}
	return fmt.Sprintf("cannot use %v (%T) as %s for %s", e.Value, e.Value, e.Type, e.Attribute)
}

// Is reports whether target is ErrInvalidDataType.
func (e *InvalidDataTypeError) Is(target error) bool { return target == ErrInvalidDataType }

func (e *InvalidDataTypeError) Unwrap() error { return e.Err }
