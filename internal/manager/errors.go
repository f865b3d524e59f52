package manager

import (
	"fmt"
	"sort"
	"strings"
)

// Code classifies a failed operation.
type Code string

const (
	CodeValidation Code = "VALIDATION_FAILED"
	CodeUpload     Code = "UPLOAD_FAILED"
	CodeResolve    Code = "RESOLVE_FAILED"
	CodeFetch      Code = "FETCH_FAILED"
	CodePersist    Code = "PERSIST_FAILED"
	CodeNotFound   Code = "NOT_FOUND"
	CodeBusy       Code = "BUSY"
	CodeClosed     Code = "CLOSED"
)

var messages = map[Code]string{
	CodeValidation: "validation failed",
	CodeUpload:     "upload failed",
	CodeResolve:    "could not resolve media url",
	CodeFetch:      "could not load records",
	CodePersist:    "could not save changes",
	CodeNotFound:   "record not found",
	CodeBusy:       "another change is in progress",
	CodeClosed:     "manager closed",
}

// Sentinels for errors.Is. They match any error of the same code.
var (
	ErrValidation = &OpError{Code: CodeValidation}
	ErrUpload     = &OpError{Code: CodeUpload}
	ErrResolve    = &OpError{Code: CodeResolve}
	ErrFetch      = &OpError{Code: CodeFetch}
	ErrPersist    = &OpError{Code: CodePersist}
	ErrNotFound   = &OpError{Code: CodeNotFound}
	ErrBusy       = &OpError{Code: CodeBusy}
	ErrClosed     = &OpError{Code: CodeClosed}
)

// OpError is a failed manager, gateway, uploader or synchronizer call.
type OpError struct {
	Code Code
	Op   string // create, update, delete, activate, refresh, upload, resolve
	Kind string
	ID   string
	Err  error
}

func (e *OpError) Error() string {
	var b strings.Builder
	if e.Kind != "" {
		b.WriteString(e.Kind)
		b.WriteByte(' ')
	}
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.ID != "" {
			b.WriteByte(' ')
			b.WriteString(e.ID)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Message())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Message is the human-readable text for the error's code.
func (e *OpError) Message() string {
	if msg, ok := messages[e.Code]; ok {
		return msg
	}
	return string(e.Code)
}

func (e *OpError) Unwrap() error { return e.Err }

// Is matches any *OpError with the same code.
func (e *OpError) Is(target error) bool {
	t, ok := target.(*OpError)
	return ok && t.Code == e.Code
}

// FieldErrors maps field names to human-readable messages.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, fe[k])
	}
	return strings.Join(parts, "; ")
}

// ValidationError is returned when a form or request fails validation.
// No remote call has been made when it is returned.
type ValidationError struct {
	Kind   string
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Kind, messages[CodeValidation], e.Fields.Error())
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*OpError)
	return ok && t.Code == CodeValidation
}

// CodeOf returns the code of the first classified error in err's chain.
func CodeOf(err error) (Code, bool) {
	for err != nil {
		switch e := err.(type) {
		case *ValidationError:
			return CodeValidation, true
		case *OpError:
			return e.Code, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return "", false
		}
		err = u.Unwrap()
	}
	return "", false
}
