package submit

import "fmt"

// ValidationError reports a malformed or missing request parameter. It is
// surfaced to the caller as a request error and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("submit: invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a referenced task or image that does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return "submit: " + e.Message
}

// SubmissionError reports that the worker queue rejected an enqueue. The
// task record remains pending with no external job id; it is eligible for
// manual resubmission but never auto-retried.
type SubmissionError struct {
	TaskID uint
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit: enqueue for task %d: %v", e.TaskID, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
