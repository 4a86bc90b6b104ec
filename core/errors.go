package core

import (
	"encoding/json"
	"errors"
)

// Sentinel errors for programmatic checking.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnsupported       = errors.New("operation not supported")
	ErrParse             = errors.New("parse error")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrInvalidEdit       = errors.New("edit produces invalid source")
	ErrOverlappingEdits  = errors.New("overlapping edits")
	ErrTransform         = errors.New("transform failed")
	ErrWrite             = errors.New("write failed")

	// Transaction misuse. These are returned as errors, never as Results.
	ErrTransactionActive = errors.New("transaction already in progress")
	ErrTransactionClosed = errors.New("transaction already closed")
	ErrNoTransaction     = errors.New("no active transaction")
)

// ErrorCode provides a machine-readable error type for JSON output.
type ErrorCode string

const (
	ECNone              ErrorCode = ""
	ECNotFound          ErrorCode = "ERR_NOT_FOUND"
	ECUnsupported       ErrorCode = "ERR_UNSUPPORTED"
	ECParse             ErrorCode = "ERR_PARSE"
	ECInvalidIdentifier ErrorCode = "ERR_INVALID_IDENTIFIER"
	ECTransform         ErrorCode = "ERR_TRANSFORM"
	ECWrite             ErrorCode = "ERR_WRITE"
	ECTxUsage           ErrorCode = "ERR_TX_USAGE"
	ECInvalidRegex      ErrorCode = "ERR_INVALID_REGEX"
	ECConfig            ErrorCode = "ERR_CONFIG"
	ECUnknown           ErrorCode = "ERR_UNKNOWN"
)

// CodeOf maps an error to its ErrorCode.
func CodeOf(err error) ErrorCode {
	var coded CodedError
	switch {
	case err == nil:
		return ECNone
	case errors.As(err, &coded):
		return coded.Code
	case errors.Is(err, ErrNotFound):
		return ECNotFound
	case errors.Is(err, ErrUnsupported):
		return ECUnsupported
	case errors.Is(err, ErrParse):
		return ECParse
	case errors.Is(err, ErrInvalidIdentifier):
		return ECInvalidIdentifier
	case errors.Is(err, ErrInvalidEdit), errors.Is(err, ErrOverlappingEdits), errors.Is(err, ErrTransform):
		return ECTransform
	case errors.Is(err, ErrWrite):
		return ECWrite
	case errors.Is(err, ErrTransactionActive), errors.Is(err, ErrTransactionClosed), errors.Is(err, ErrNoTransaction):
		return ECTxUsage
	default:
		return ECUnknown
	}
}

// CodedError is a uniform error payload for both human and JSON output.
type CodedError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
}

func (e CodedError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

func (e CodedError) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Wrap builds a CodedError whose code is derived from inner.
func Wrap(msg string, inner error) CodedError {
	ce := CodedError{Code: CodeOf(inner), Message: msg}
	if inner != nil {
		ce.Detail = inner.Error()
	}
	return ce
}
