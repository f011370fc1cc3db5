package errors

import (
	stderrors "errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// Code classifies a ledger failure so callers can decide how to react.
type Code string

const (
	// CodeInvalidArgument rejects malformed input before any mutation.
	CodeInvalidArgument Code = "invalid_argument"
	// CodeInsufficientFunds rejects a transfer the sender cannot cover.
	CodeInsufficientFunds Code = "insufficient_funds"
	// CodeAlreadyExists rejects a duplicate key registration.
	CodeAlreadyExists Code = "already_exists"
	// CodeStorage reports a persistence-layer failure (connection lost,
	// lock timeout, serialization conflict). Retry-safe: the transaction
	// rolled back without partial effect.
	CodeStorage Code = "storage_failure"
)

var jsonx = jsoniter.ConfigCompatibleWithStandardLibrary

// LedgerError is the typed failure surfaced by every core operation.
type LedgerError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`

	cause error
}

// Error renders the code and message as JSON.
func (e *LedgerError) Error() string {
	out, _ := jsonx.Marshal(e)
	return string(out)
}

func (e *LedgerError) Unwrap() error { return e.cause }

// Is matches two LedgerErrors by code, so sentinel comparisons with
// stderrors.Is work across wrapped causes.
func (e *LedgerError) Is(target error) bool {
	var le *LedgerError
	if !stderrors.As(target, &le) {
		return false
	}
	return le.Code == e.Code
}

// New creates a LedgerError with the given code and message.
func New(code Code, message string) error {
	return &LedgerError{Code: code, Message: message}
}

// Invalidf creates an invalid-argument error with a formatted message.
func Invalidf(format string, args ...interface{}) error {
	return &LedgerError{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// Insufficientf creates an insufficient-funds error with a formatted message.
func Insufficientf(format string, args ...interface{}) error {
	return &LedgerError{Code: CodeInsufficientFunds, Message: fmt.Sprintf(format, args...)}
}

// Duplicatef creates an already-exists error with a formatted message.
func Duplicatef(format string, args ...interface{}) error {
	return &LedgerError{Code: CodeAlreadyExists, Message: fmt.Sprintf(format, args...)}
}

// Storage wraps a persistence-layer failure, keeping the cause reachable
// through Unwrap for drivers that expose typed errors.
func Storage(message string, cause error) error {
	return &LedgerError{Code: CodeStorage, Message: message, cause: cause}
}

// CodeOf extracts the ledger error code, or "" for foreign errors.
func CodeOf(err error) Code {
	var le *LedgerError
	if stderrors.As(err, &le) {
		return le.Code
	}
	return ""
}

func IsInvalidArgument(err error) bool { return CodeOf(err) == CodeInvalidArgument }

func IsInsufficientFunds(err error) bool { return CodeOf(err) == CodeInsufficientFunds }

func IsAlreadyExists(err error) bool { return CodeOf(err) == CodeAlreadyExists }

func IsStorage(err error) bool { return CodeOf(err) == CodeStorage }

// Retryable reports whether the failed call may be safely retried with
// the same inputs. Only storage failures qualify: the business-rule
// codes will fail again until the inputs change.
func Retryable(err error) bool {
	return IsStorage(err)
}
