package shared

import "errors"

// Error kinds wrapped by domain errors. httpx.RespondError maps each kind
// to an HTTP status; services compare with errors.Is.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrValidation indicates malformed or out-of-range caller input.
	ErrValidation = errors.New("validation failed")
	// ErrPermission indicates the principal lacks the required capability
	// or tenant scope.
	ErrPermission = errors.New("permission denied")
	// ErrConflict indicates a state conflict, e.g. an invoice number race
	// that exhausted its retries or an illegal lifecycle transition.
	ErrConflict = errors.New("conflict")
	// ErrPolicyLimit indicates a platform policy ceiling was exceeded.
	// The wrapping error names the limit.
	ErrPolicyLimit = errors.New("policy limit exceeded")
	// ErrInsufficientStock indicates a consumption request larger than the
	// available aggregate stock.
	ErrInsufficientStock = errors.New("insufficient stock")
)
