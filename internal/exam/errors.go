package exam

import "errors"

// Sentinel errors for the attempt lifecycle. Callers branch with errors.Is;
// the HTTP layer maps each kind to a distinct status so a client can tell
// "exam not open yet" apart from "attempt already used".
var (
	// ErrNotFound covers missing exams and attempts.
	ErrNotFound = errors.New("not found")

	// ErrValidation rejects malformed exam definitions at authoring time.
	ErrValidation = errors.New("invalid exam definition")

	// ErrWindowClosed means start was called outside the ongoing bucket.
	ErrWindowClosed = errors.New("exam window is not open")

	// ErrAttemptConflict means a concurrent start was detected for the same
	// (student, exam) pair.
	ErrAttemptConflict = errors.New("attempt already in progress")

	// ErrAttemptExpired means a write arrived after the countdown ran out.
	// The store auto-submits the attempt before returning this.
	ErrAttemptExpired = errors.New("attempt time expired")

	// ErrMaxAttempts means the retake policy forbids another attempt.
	ErrMaxAttempts = errors.New("maximum attempts reached")

	// ErrNotAuthorized means a role/ownership mismatch on a grading or
	// approval operation.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrInvalidTransition guards state-machine writes whose precondition
	// status no longer holds.
	ErrInvalidTransition = errors.New("invalid status transition")
)
