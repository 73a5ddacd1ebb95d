package model

import "fmt"

// ProtocolViolationError reports a response that breaks the function-calling
// contract: the model was required to call a function but returned no tool
// call, or called a different one. It is fatal and never retried.
type ProtocolViolationError struct {
	FuncName string // function the model was required to call, if any
	Reason   string
	Raw      string // offending response payload, for diagnostics
}

// Error implements the error interface.
func (e *ProtocolViolationError) Error() string {
	if e.FuncName == "" {
		return fmt.Sprintf("protocol violation: %s", e.Reason)
	}
	return fmt.Sprintf("protocol violation for function %q: %s", e.FuncName, e.Reason)
}

// NewProtocolViolation creates a ProtocolViolationError.
func NewProtocolViolation(funcName, reason, raw string) *ProtocolViolationError {
	return &ProtocolViolationError{FuncName: funcName, Reason: reason, Raw: raw}
}

// DecodeError reports function-call arguments that were not valid JSON. The
// raw payload is preserved for diagnostics. It is fatal and never retried.
type DecodeError struct {
	FuncName string
	Payload  string
	Err      error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode arguments of function %q: %v", e.FuncName, e.Err)
}

// Unwrap returns the underlying JSON error.
func (e *DecodeError) Unwrap() error { return e.Err }

// RetryExhaustedError reports that the transient-failure retry budget ran
// out. The last transient error is preserved.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last transient error.
func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// BudgetExceededError reports that the remote-call budget ran out.
type BudgetExceededError struct {
	Max int
}

// Error implements the error interface.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("exceeded max model calls: %d", e.Max)
}
