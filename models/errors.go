package models

import "fmt"

// ErrorKind tags a FedError so the fusion join and the API layer can
// pattern-match instead of string-matching.
type ErrorKind string

const (
	// KindValidation: bad or missing request parameters. Rejected before
	// any backend call.
	KindValidation ErrorKind = "VALIDATION"

	// KindConfiguration: a source is not configured. The branch is skipped,
	// not failed.
	KindConfiguration ErrorKind = "CONFIGURATION"

	// KindAuthFailure: the ycl source returned a login page, or session
	// acquisition yielded nothing.
	KindAuthFailure ErrorKind = "AUTH_FAILURE"

	// KindTransient: timeout or network error after the retry budget.
	KindTransient ErrorKind = "TRANSIENT"

	// KindStructuralScrape: the legacy page layout was unrecognized after a
	// successful search submission.
	KindStructuralScrape ErrorKind = "STRUCTURAL_SCRAPE"

	// KindInternal: unexpected fault; surfaces as HTTP 500.
	KindInternal ErrorKind = "INTERNAL"
)

// FedError is the internal error type carrying a kind tag.
// It implements the error interface and supports wrapping via Unwrap.
type FedError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *FedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FedError) Unwrap() error {
	return e.Err
}

// NewFedError creates a new FedError.
func NewFedError(kind ErrorKind, message string, err error) *FedError {
	return &FedError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from err, defaulting to KindInternal for
// untagged errors.
func KindOf(err error) ErrorKind {
	if fe, ok := err.(*FedError); ok {
		return fe.Kind
	}
	return KindInternal
}

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *FedError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: string(e.Kind), Message: e.Message}
}
