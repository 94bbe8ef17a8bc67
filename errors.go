// Copyright and error taxonomy for the sencillo storage engine.
//
// Grounded on storage/errors.go: a small ErrCode enum, a single Error
// struct carrying {Code, Message}, private constructor functions per
// error kind, and Is*-style predicates for callers that want to branch on
// error class without importing the engine's internals.
package sencillo

import "fmt"

// ErrCode classifies the errors the engine returns.
type ErrCode int

const (
	// ValidationErr indicates malformed or missing input.
	ValidationErr ErrCode = iota
	// CollectionNotFoundErr indicates an operation referenced a collection
	// that does not exist.
	CollectionNotFoundErr
	// IndexNotFoundErr indicates an operation referenced a partition that
	// is absent from its collection.
	IndexNotFoundErr
	// DocumentNotFoundErr indicates an _id absent from a collection.
	DocumentNotFoundErr
	// DatabaseNotLoadedErr indicates an internal invariant violation: an
	// operation ran against uninitialized engine state.
	DatabaseNotLoadedErr
	// ConfigurationErr indicates an invalid combination of Options.
	ConfigurationErr
	// IOErr indicates an underlying storage failure.
	IOErr
)

func (c ErrCode) String() string {
	switch c {
	case ValidationErr:
		return "validation"
	case CollectionNotFoundErr:
		return "collection_not_found"
	case IndexNotFoundErr:
		return "index_not_found"
	case DocumentNotFoundErr:
		return "document_not_found"
	case DatabaseNotLoadedErr:
		return "database_not_loaded"
	case ConfigurationErr:
		return "configuration"
	case IOErr:
		return "io"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every public engine method.
type Error struct {
	Code    ErrCode
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("sencillo: %s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("sencillo: %s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

func isCode(err error, code ErrCode) bool {
	se, ok := err.(*Error)
	return ok && se.Code == code
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return isCode(err, ValidationErr) }

// IsCollectionNotFound reports whether err names a missing collection.
func IsCollectionNotFound(err error) bool { return isCode(err, CollectionNotFoundErr) }

// IsIndexNotFound reports whether err names a missing partition.
func IsIndexNotFound(err error) bool { return isCode(err, IndexNotFoundErr) }

// IsDocumentNotFound reports whether err names a missing document.
func IsDocumentNotFound(err error) bool { return isCode(err, DocumentNotFoundErr) }

// IsConfiguration reports whether err is a configuration failure.
func IsConfiguration(err error) bool { return isCode(err, ConfigurationErr) }

// IsIO reports whether err wraps an underlying storage failure.
func IsIO(err error) bool { return isCode(err, IOErr) }

func validationError(f string, a ...interface{}) *Error {
	return &Error{Code: ValidationErr, Message: fmt.Sprintf(f, a...)}
}

func collectionNotFoundError(name string) *Error {
	return &Error{Code: CollectionNotFoundErr, Message: fmt.Sprintf("collection %q not found", name)}
}

func indexNotFoundError(collection, partition string) *Error {
	return &Error{Code: IndexNotFoundErr, Message: fmt.Sprintf("partition %q not found in collection %q", partition, collection)}
}

func documentNotFoundError(collection string, id int64) *Error {
	return &Error{Code: DocumentNotFoundErr, Message: fmt.Sprintf("document %d not found in collection %q", id, collection)}
}

func databaseNotLoadedError(msg string) *Error {
	return &Error{Code: DatabaseNotLoadedErr, Message: msg}
}

func configurationError(f string, a ...interface{}) *Error {
	return &Error{Code: ConfigurationErr, Message: fmt.Sprintf(f, a...)}
}

func ioError(msg string, cause error) *Error {
	return &Error{Code: IOErr, Message: msg, cause: cause}
}
