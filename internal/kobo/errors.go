package kobo

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteUnavailable wraps transport and HTTP failures on reads.
	ErrRemoteUnavailable = errors.New("submission service unavailable")
	// ErrSchemaMismatch means fetched data lacks fields the form must carry.
	ErrSchemaMismatch = errors.New("submission data does not match the form schema")
	// ErrValidation means a write was refused locally and never sent.
	ErrValidation = errors.New("submission is missing required fields")
)

// RemoteError carries a failed write or delete verbatim.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("submission service error: %s", e.Body)
	}
	return fmt.Sprintf("submission service returned %d: %s", e.StatusCode, e.Body)
}

type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeConflict Outcome = "conflict"
	OutcomeFailure  Outcome = "failure"
)

// SubmitResult is the tagged result of a create or edit. Conflict means the
// record changed remotely; the caller must refetch before writing again.
type SubmitResult struct {
	Outcome    Outcome
	InstanceID string
	StatusCode int
	Message    string
}

func (r SubmitResult) Succeeded() bool { return r.Outcome == OutcomeSuccess }
func (r SubmitResult) Conflicted() bool { return r.Outcome == OutcomeConflict }

// Err returns the failure as an error, nil otherwise.
func (r SubmitResult) Err() error {
	if r.Outcome != OutcomeFailure {
		return nil
	}
	return &RemoteError{StatusCode: r.StatusCode, Body: r.Message}
}
