package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a typed error carrying the status message shown in the classroom UI.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so cloned messages still compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrUnavailable        = New("UNAVAILABLE", http.StatusServiceUnavailable, "feature unavailable")

	ErrClassNotFound    = New("CLASS_NOT_FOUND", http.StatusNotFound, "class not found")
	ErrStudentNotFound  = New("STUDENT_NOT_FOUND", http.StatusNotFound, "student not found")
	ErrEmptyName        = New("EMPTY_NAME", http.StatusBadRequest, "name cannot be empty")
	ErrDuplicateName    = New("DUPLICATE_NAME", http.StatusConflict, "a student with that name already exists in this class")
	ErrNoNames          = New("NO_NAMES", http.StatusBadRequest, "no names detected to import")
	ErrUnreadableFile   = New("UNREADABLE_FILE", http.StatusBadRequest, "could not read the file")
	ErrInvalidBackup    = New("INVALID_BACKUP", http.StatusBadRequest, "backup file is not a valid document")
	ErrSilenceRequired  = New("SILENCE_REQUIRED", http.StatusPreconditionFailed, "calibrate silence before talk")
	ErrMicUnavailable   = New("MIC_UNAVAILABLE", http.StatusServiceUnavailable, "microphone not available")
	ErrReportNotReady   = New("REPORT_NOT_READY", http.StatusConflict, "report is not ready yet")
	ErrInvalidSignature = New("INVALID_TOKEN", http.StatusForbidden, "invalid or expired download token")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
