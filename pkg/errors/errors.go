package errors

import (
	"errors"
	"fmt"
)

// Standard errors
var (
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorage marks failures of the memory store, turn log or profile store.
	// It is the only failure class that aborts a conversational turn.
	ErrStorage = errors.New("storage operation failed")

	// ErrClassification is returned when the classifier output cannot be used
	ErrClassification = errors.New("classification failed")

	// ErrSummarization is returned when the summarizer fails or returns nothing usable
	ErrSummarization = errors.New("summarization failed")

	// ErrStreamCancelled is returned when a streamed completion ends before its end marker
	ErrStreamCancelled = errors.New("stream cancelled before completion")

	// ErrTurnFailed wraps the error that ended a conversational turn without a reply
	ErrTurnFailed = errors.New("conversational turn failed")

	// ErrLuaExecution is returned when there's an error executing a Lua script
	ErrLuaExecution = errors.New("lua script execution error")
)

// StorageError reports a failed operation against a persistent collaborator.
type StorageError struct {
	// Op names the failed operation, e.g. "add", "search", "turnlog.append"
	Op string
	// Err is the underlying driver or adapter error
	Err error
}

// NewStorageError wraps err as a StorageError. A nil err yields nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes every StorageError match ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// IsStorageError reports whether err carries a StorageError anywhere in its tree.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// Wrap wraps an error with additional context
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience function that wraps errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target, and if so, sets
// target to that error value and returns true. Otherwise, it returns false.
// This is a convenience function that wraps errors.As
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
