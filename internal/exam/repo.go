package exam

import (
	"context"
	"time"
)

type ListOpts struct {
	Q          string
	Status     string // draft|published|archived, empty for any
	Limit      int
	Offset     int
	ViewerID   string
	ViewerRole string // "student" | "instructor" | "admin"
}

type AttemptListOpts struct {
	ExamID string
	UserID string
	Status string // optional: in_progress|submitted|graded|approved
	Limit  int
	Offset int
	Sort   string // started_at|submitted_at desc (default: started_at desc)
}

// Store is the persistence contract for the catalog and the attempt state
// machine. Every time-sensitive operation takes the caller's clock so tests
// stay deterministic; implementations recompute time-derived state (buckets,
// countdowns, lazy expiry) on each call instead of running timers.
//
// Transition guards are conditional writes keyed on the current status: a
// start must atomically fail when an in-progress record already exists for
// the (student, exam) pair, and a submit observed twice is a no-op.
type Store interface {
	// Catalog.
	PutExam(ctx context.Context, e Exam) (Exam, error) // draft create/update
	GetExam(ctx context.Context, id string) (Exam, error)
	GetExamAdmin(ctx context.Context, id string) (Exam, error)
	PublishExam(ctx context.Context, id string) (Exam, error)
	ArchiveExam(ctx context.Context, id string) (Exam, error)
	UpdateExamSettings(ctx context.Context, id string, s Settings) (Exam, error)
	ListExams(ctx context.Context, opts ListOpts) ([]ExamSummary, error)

	// Attempt lifecycle.
	StartAttempt(ctx context.Context, examID, userID string, session map[string]string, now time.Time) (Attempt, error)
	SaveAnswer(ctx context.Context, attemptID, questionID, value string, now time.Time) (Attempt, error)
	MarkQuestion(ctx context.Context, attemptID, questionID string, marked bool, now time.Time) (Attempt, error)
	SubmitAttempt(ctx context.Context, attemptID string, now time.Time) (Attempt, error)
	GetAttempt(ctx context.Context, attemptID string, now time.Time) (Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts, now time.Time) ([]Attempt, error)

	// Approval gate writes. Authorization lives in the review package.
	ListPendingReview(ctx context.Context, instructorID string, now time.Time) ([]Attempt, error)
	ApproveAttempt(ctx context.Context, attemptID string, overrides map[string]float64, note string, now time.Time) (Attempt, error)
	ReturnAttempt(ctx context.Context, attemptID, note string, now time.Time) (Attempt, error)
}
