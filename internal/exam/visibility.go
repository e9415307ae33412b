package exam

import "time"

// Access is the read-only projection answering "what can this student do
// right now" for one exam. It is computed on every request from the bucket
// and the student's attempt records; nothing here is cached or stored.
type Access struct {
	Bucket          Bucket `json:"bucket"`
	CanStart        bool   `json:"can_start"`
	CanResume       bool   `json:"can_resume"`
	CanViewResult   bool   `json:"can_view_result"`
	ActiveAttemptID string `json:"active_attempt_id,omitempty"`
	AttemptsUsed    int    `json:"attempts_used"`
	MaxAttempts     int    `json:"max_attempts"`
}

// GateAccess projects the current gating state for a student over one exam.
// attempts must be the student's attempts for this exam, any order. An
// in-progress attempt whose countdown has run out counts as consumed, not
// resumable, even before lazy expiry has materialized the submit.
func GateAccess(e *Exam, attempts []Attempt, now time.Time) Access {
	acc := Access{
		Bucket:       Classify(e, now),
		AttemptsUsed: len(attempts),
		MaxAttempts:  e.Settings.EffectiveMaxAttempts(),
	}
	ts := now.Unix()
	for i := range attempts {
		a := &attempts[i]
		switch a.Status {
		case AttemptInProgress:
			if ts < a.Deadline(e.DurationSec()) {
				acc.ActiveAttemptID = a.ID
			}
		case AttemptApproved:
			if e.Settings.ShowResults {
				acc.CanViewResult = true
			}
		}
	}
	if acc.ActiveAttemptID != "" {
		acc.CanResume = acc.Bucket == BucketOngoing || acc.Bucket == BucketEnded
	}
	acc.CanStart = e.Status == StatusPublished &&
		acc.Bucket == BucketOngoing &&
		acc.ActiveAttemptID == "" &&
		acc.AttemptsUsed < acc.MaxAttempts
	return acc
}

// VisibleExam pairs a student-safe exam summary with its access projection.
type VisibleExam struct {
	Exam   ExamSummary `json:"exam"`
	Access Access      `json:"access"`
}
