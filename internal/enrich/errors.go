package enrich

import (
	"errors"
	"fmt"
)

// FetchErrorCode categorizes enrichment failures.
type FetchErrorCode string

const (
	// ErrCodeBatchFailed indicates the fetcher returned an error for a batch.
	ErrCodeBatchFailed FetchErrorCode = "BATCH_FAILED"

	// ErrCodeCancelled indicates the context was cancelled mid-pass.
	ErrCodeCancelled FetchErrorCode = "CANCELLED"
)

// FetchError describes a failed enrichment batch.
//
// The batch token correlates the error with the coordinator's log
// records for the same request.
type FetchError struct {
	Code  FetchErrorCode
	Token string
	URIs  []string
	Err   error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: batch %s (%d uris): %v", e.Code, e.Token, len(e.URIs), e.Err)
	}
	return fmt.Sprintf("%s: batch %s (%d uris)", e.Code, e.Token, len(e.URIs))
}

// Unwrap returns the underlying fetcher error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsBatchFailed returns true if the error is a failed-batch error.
// Uses errors.As to handle wrapped errors.
func IsBatchFailed(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Code == ErrCodeBatchFailed
	}
	return false
}
