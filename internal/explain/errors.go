package explain

import (
	"errors"

	"github.com/malbeclabs/oracle-mcp/internal/oracle"
)

// Kind names a class of estimator failure. The kind is the prefix of the
// string returned to tool callers.
type Kind string

const (
	KindValidation           Kind = "ValidationError"
	KindUnsupportedStatement Kind = "UnsupportedStatementError"
	KindConnection           Kind = "ConnectionError"
	KindEmptyPlan            Kind = "EmptyPlanError"
	KindInternal             Kind = "InternalError"
)

// Error is an estimator failure. Two Errors match under errors.Is when their
// kinds are equal, so callers can test against the sentinels below.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrUnsupportedStatement = &Error{Kind: KindUnsupportedStatement}
	ErrConnection           = &Error{Kind: KindConnection}
	ErrEmptyPlan            = &Error{Kind: KindEmptyPlan}
)

func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		if msg == "" {
			msg = e.Cause.Error()
		} else {
			msg += ": " + e.Cause.Error()
		}
	}
	if msg == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// SessionError reports that no database session could be obtained for an
// estimate.
func SessionError(err error) error {
	return newError(KindConnection, "failed to acquire database session", err)
}

// classify maps a driver error onto the taxonomy. Anything the database
// rejected that is not a lost session is the caller's SQL.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if oracle.IsConnectionError(err) {
		return newError(KindConnection, "", err)
	}
	if oracle.ErrorCode(err) != 0 {
		return newError(KindValidation, "", err)
	}
	return newError(KindInternal, "", err)
}

// KindOf returns the kind of an estimator error, or KindInternal for errors
// that did not come from the estimator.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Describe renders err as the prefixed string handed back to tool callers.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return string(KindInternal) + ": " + err.Error()
}
