package app

import "fmt"

// DomainError carries everything the HTTP layer needs to answer a request
// that failed for a domain reason: the status, a stable machine-readable
// code, a human message, and optional structured details (per-field
// validation messages, for example). Anything that is not a DomainError is
// reported as a generic server fault.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
