package exam

// Question types supported by the grading engine.
const (
	TypeMultipleChoice = "multiple_choice"
	TypeTrueFalse      = "true_false"
	TypeShortAnswer    = "short_answer"
)

// Authoring status of an exam. Independent of the time-derived Bucket.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Attempt lifecycle. A missing record means "not started"; there is no
// persisted not_started state.
const (
	AttemptInProgress = "in_progress"
	AttemptSubmitted  = "submitted"
	AttemptGraded     = "graded"
	AttemptApproved   = "approved"
)

type Option struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

type Question struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"` // multiple_choice, true_false, short_answer
	Prompt        string   `json:"prompt,omitempty"`
	Options       []Option `json:"options,omitempty"`        // for choice types
	CorrectAnswer string   `json:"correct_answer,omitempty"` // for choice types
	SampleAnswers []string `json:"sample_answers,omitempty"` // for short_answer similarity scoring
	Points        float64  `json:"points"`
	Order         int      `json:"order"`
}

type Proctoring struct {
	Enabled      bool `json:"enabled"`
	Lockdown     bool `json:"lockdown"`
	RecordScreen bool `json:"record_screen"`
}

type Settings struct {
	AllowRetake        bool       `json:"allow_retake"`
	MaxAttempts        int        `json:"max_attempts"`
	ShowResults        bool       `json:"show_results"`
	AllowReview        bool       `json:"allow_review"`
	RandomizeQuestions bool       `json:"randomize_questions"`
	Proctoring         Proctoring `json:"proctoring"`
}

// EffectiveMaxAttempts folds AllowRetake into the attempt cap: with retakes
// disabled a student gets exactly one attempt.
func (s Settings) EffectiveMaxAttempts() int {
	if !s.AllowRetake {
		return 1
	}
	if s.MaxAttempts <= 0 {
		return 1
	}
	return s.MaxAttempts
}

type Exam struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Subject      string     `json:"subject,omitempty"`
	Description  string     `json:"description,omitempty"`
	DurationMin  int        `json:"duration_min"` // attempt countdown, independent of the window
	TotalMarks   float64    `json:"total_marks"`
	PassingMarks float64    `json:"passing_marks"`
	Questions    []Question `json:"questions,omitempty"`
	InstructorID string     `json:"instructor_id"`
	// AssignedStudents empty means open to all students.
	AssignedStudents []string `json:"assigned_students,omitempty"`
	ScheduledAt      int64    `json:"scheduled_at"` // unix seconds, window open
	EndAt            int64    `json:"end_at"`       // unix seconds, window close
	Status           string   `json:"status"`       // draft|published|archived
	Settings         Settings `json:"settings"`
	CreatedAt        int64    `json:"created_at,omitempty"`
}

// AssignedTo reports whether a student may see this exam once published.
func (e *Exam) AssignedTo(studentID string) bool {
	if len(e.AssignedStudents) == 0 {
		return true
	}
	for _, id := range e.AssignedStudents {
		if id == studentID {
			return true
		}
	}
	return false
}

// DurationSec is the attempt countdown in seconds.
func (e *Exam) DurationSec() int64 { return int64(e.DurationMin) * 60 }

type ExamSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Subject     string `json:"subject,omitempty"`
	DurationMin int    `json:"duration_min"`
	ScheduledAt int64  `json:"scheduled_at"`
	EndAt       int64  `json:"end_at"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at,omitempty"`
}

// Feedback is per-question grading output. NeedsReview flags items staged for
// the approval gate; "review pending" is derived from it, never stored.
type Feedback struct {
	Points      float64 `json:"points"`
	NeedsReview bool    `json:"needs_review,omitempty"`
	Note        string  `json:"note,omitempty"`
}

type Attempt struct {
	ID        string `json:"id"`
	ExamID    string `json:"exam_id"`
	UserID    string `json:"user_id"`
	AttemptNo int    `json:"attempt_no"`
	Status    string `json:"status"` // in_progress|submitted|graded|approved

	Answers map[string]string `json:"answers"`                    // question id -> submitted answer
	Marked  []string          `json:"marked_questions,omitempty"` // flagged for review by the student
	Session map[string]string `json:"session,omitempty"`          // client metadata captured at start

	StartedAt     int64 `json:"started_at"`
	SubmittedAt   int64 `json:"submitted_at,omitempty"`
	GradedAt      int64 `json:"graded_at,omitempty"`
	ApprovedAt    int64 `json:"approved_at,omitempty"`
	AutoSubmitted bool  `json:"auto_submitted,omitempty"`

	// TimeRemaining is recomputed from StartedAt on every read, never ticked
	// by a background process.
	TimeRemaining int64 `json:"time_remaining"`

	Score      float64             `json:"score"`
	Percentage float64             `json:"percentage"`
	Grade      string              `json:"grade,omitempty"`
	Feedback   map[string]Feedback `json:"feedback,omitempty"`
	ReviewNote string              `json:"review_note,omitempty"`
}

// Deadline is the instant the attempt countdown hits zero.
func (a *Attempt) Deadline(durationSec int64) int64 { return a.StartedAt + durationSec }

// NeedsReview reports whether any question is staged for instructor review.
func (a *Attempt) NeedsReview() bool {
	for _, fb := range a.Feedback {
		if fb.NeedsReview {
			return true
		}
	}
	return false
}

// IsMarked reports whether the student flagged the question.
func (a *Attempt) IsMarked(questionID string) bool {
	for _, id := range a.Marked {
		if id == questionID {
			return true
		}
	}
	return false
}
