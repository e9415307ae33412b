package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/examgate/examgate/internal/grading"
)

// SQLStore implements Store on database/sql ("sqlite" or "postgres").
//
// The state machine never takes locks: every transition is a conditional
// UPDATE keyed on the current status, and the at-most-one-in-progress
// invariant rides on a partial unique index over (exam_id, user_id). A lost
// race therefore surfaces as zero affected rows or a constraint violation,
// both of which map onto the lifecycle error taxonomy.
type SQLStore struct {
	db     *sql.DB
	driver string
	grader grading.Grader
	scale  grading.Scale
	idgen  func() string
}

func NewSQLStore(db *sql.DB, driver string, grader grading.Grader, scale grading.Scale) *SQLStore {
	if grader == nil {
		grader = grading.NewDefaultGrader()
	}
	if len(scale) == 0 {
		scale = grading.DefaultScale
	}
	return &SQLStore{db: db, driver: driver, grader: grader, scale: scale, idgen: uuid.NewString}
}

// ---- catalog ----

func (s *SQLStore) PutExam(ctx context.Context, e Exam) (Exam, error) {
	if e.ID == "" {
		e.ID = s.idgen()
	}
	e.Status = StatusDraft
	if err := ValidateDraft(&e); err != nil {
		return Exam{}, err
	}
	var current string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM exams WHERE id=$1`, e.ID).Scan(&current)
	switch {
	case err == nil && current != StatusDraft:
		return Exam{}, fmt.Errorf("%w: exam %s is %s", ErrInvalidTransition, e.ID, current)
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return Exam{}, err
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	qj, _ := json.Marshal(e.Questions)
	aj, _ := json.Marshal(e.AssignedStudents)
	sj, _ := json.Marshal(e.Settings)
	_, err = s.db.ExecContext(ctx, `INSERT INTO exams
		(id,title,subject,description,duration_min,total_marks,passing_marks,instructor_id,assigned_json,scheduled_at,end_at,status,settings_json,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			title=EXCLUDED.title, subject=EXCLUDED.subject, description=EXCLUDED.description,
			duration_min=EXCLUDED.duration_min, total_marks=EXCLUDED.total_marks, passing_marks=EXCLUDED.passing_marks,
			assigned_json=EXCLUDED.assigned_json, scheduled_at=EXCLUDED.scheduled_at, end_at=EXCLUDED.end_at,
			settings_json=EXCLUDED.settings_json, questions_json=EXCLUDED.questions_json
		WHERE exams.status='draft'`,
		e.ID, e.Title, e.Subject, e.Description, e.DurationMin, e.TotalMarks, e.PassingMarks,
		e.InstructorID, string(aj), e.ScheduledAt, e.EndAt, e.Status, string(sj), string(qj), e.CreatedAt)
	if err != nil {
		return Exam{}, err
	}
	return s.GetExamAdmin(ctx, e.ID)
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	e, err := s.GetExamAdmin(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	return StudentView(e), nil
}

func (s *SQLStore) GetExamAdmin(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,subject,description,duration_min,total_marks,passing_marks,instructor_id,assigned_json,scheduled_at,end_at,status,settings_json,questions_json,created_at
		FROM exams WHERE id=$1`, id)
	return scanExam(row)
}

func (s *SQLStore) PublishExam(ctx context.Context, id string) (Exam, error) {
	e, err := s.GetExamAdmin(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	switch e.Status {
	case StatusPublished:
		return e, nil
	case StatusArchived:
		return Exam{}, fmt.Errorf("%w: cannot publish archived exam", ErrInvalidTransition)
	}
	if err := ValidatePublish(&e); err != nil {
		return Exam{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE exams SET status='published' WHERE id=$1 AND status='draft'`, id)
	if err != nil {
		return Exam{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.GetExamAdmin(ctx, id)
	}
	e.Status = StatusPublished
	return e, nil
}

func (s *SQLStore) ArchiveExam(ctx context.Context, id string) (Exam, error) {
	e, err := s.GetExamAdmin(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	if e.Status == StatusArchived {
		return e, nil
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE exams SET status='archived' WHERE id=$1`, id); err != nil {
		return Exam{}, err
	}
	e.Status = StatusArchived
	return e, nil
}

func (s *SQLStore) UpdateExamSettings(ctx context.Context, id string, set Settings) (Exam, error) {
	sj, _ := json.Marshal(set)
	res, err := s.db.ExecContext(ctx, `UPDATE exams SET settings_json=$1 WHERE id=$2`, string(sj), id)
	if err != nil {
		return Exam{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Exam{}, fmt.Errorf("%w: exam %s", ErrNotFound, id)
	}
	return s.GetExamAdmin(ctx, id)
}

func (s *SQLStore) ListExams(ctx context.Context, opts ListOpts) ([]ExamSummary, error) {
	q := `SELECT id,title,subject,duration_min,scheduled_at,end_at,status,assigned_json,instructor_id,created_at FROM exams`
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if opts.Q != "" {
		p := arg("%" + opts.Q + "%")
		conds = append(conds, fmt.Sprintf("(title LIKE %s OR subject LIKE %s)", p, p))
	}
	if opts.Status != "" {
		conds = append(conds, "status="+arg(opts.Status))
	}
	switch opts.ViewerRole {
	case "student":
		conds = append(conds, "status="+arg(StatusPublished))
	case "instructor":
		conds = append(conds, "instructor_id="+arg(opts.ViewerID))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY scheduled_at ASC, created_at DESC"
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q += fmt.Sprintf(" LIMIT %s OFFSET %s", arg(limit), arg(opts.Offset))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExamSummary
	for rows.Next() {
		var sum ExamSummary
		var assignedJSON, instructorID string
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Subject, &sum.DurationMin, &sum.ScheduledAt, &sum.EndAt, &sum.Status, &assignedJSON, &instructorID, &sum.CreatedAt); err != nil {
			return nil, err
		}
		if opts.ViewerRole == "student" {
			var assigned []string
			_ = json.Unmarshal([]byte(assignedJSON), &assigned)
			probe := Exam{AssignedStudents: assigned}
			if !probe.AssignedTo(opts.ViewerID) {
				continue
			}
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// ---- attempt lifecycle ----

func (s *SQLStore) StartAttempt(ctx context.Context, examID, userID string, session map[string]string, now time.Time) (Attempt, error) {
	e, err := s.GetExamAdmin(ctx, examID)
	if err != nil {
		return Attempt{}, err
	}
	if e.Status == StatusDraft || !e.AssignedTo(userID) {
		return Attempt{}, fmt.Errorf("%w: exam %s", ErrNotFound, examID)
	}
	if e.Status == StatusArchived {
		return Attempt{}, fmt.Errorf("%w: exam archived", ErrWindowClosed)
	}
	switch Classify(&e, now) {
	case BucketUpcoming:
		return Attempt{}, fmt.Errorf("%w: opens at %d", ErrWindowClosed, e.ScheduledAt)
	case BucketEnded:
		return Attempt{}, fmt.Errorf("%w: ended at %d", ErrWindowClosed, e.EndAt)
	}

	// Reap a stale in-progress attempt before counting, so lazy expiry does
	// not block a legitimate retake.
	if err := s.reapExpired(ctx, &e, userID, now); err != nil {
		return Attempt{}, err
	}

	var used int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts WHERE exam_id=$1 AND user_id=$2`, examID, userID).Scan(&used); err != nil {
		return Attempt{}, err
	}
	if used >= e.Settings.EffectiveMaxAttempts() {
		return Attempt{}, fmt.Errorf("%w: %d of %d used", ErrMaxAttempts, used, e.Settings.EffectiveMaxAttempts())
	}

	id := s.idgen()
	sj, _ := json.Marshal(session)
	// The partial unique index on (exam_id, user_id) WHERE status='in_progress'
	// makes this insert the single atomic "check and create": of two
	// concurrent starts exactly one row lands.
	_, err = s.db.ExecContext(ctx, `INSERT INTO attempts
		(id,exam_id,user_id,attempt_no,status,answers_json,marked_json,session_json,feedback_json,started_at)
		VALUES ($1,$2,$3,$4,'in_progress','{}','[]',$5,'{}',$6)`,
		id, examID, userID, used+1, string(sj), now.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return Attempt{}, fmt.Errorf("%w: exam %s", ErrAttemptConflict, examID)
		}
		return Attempt{}, err
	}
	return s.GetAttempt(ctx, id, now)
}

func (s *SQLStore) SaveAnswer(ctx context.Context, attemptID, questionID, value string, now time.Time) (Attempt, error) {
	for tries := 0; tries < 5; tries++ {
		a, durSec, err := s.readAttempt(ctx, attemptID)
		if err != nil {
			return Attempt{}, err
		}
		if a.Status != AttemptInProgress {
			return Attempt{}, fmt.Errorf("%w: attempt is %s", ErrAttemptExpired, a.Status)
		}
		if now.Unix() >= a.Deadline(durSec) {
			if err := s.expireAttempt(ctx, &a, now); err != nil {
				return Attempt{}, err
			}
			return Attempt{}, fmt.Errorf("%w: deadline passed", ErrAttemptExpired)
		}
		if !s.questionExists(ctx, a.ExamID, questionID) {
			return Attempt{}, fmt.Errorf("%w: question %s", ErrNotFound, questionID)
		}

		oldJSON, _ := json.Marshal(a.Answers)
		if a.Answers == nil {
			a.Answers = map[string]string{}
		}
		a.Answers[questionID] = value
		newJSON, _ := json.Marshal(a.Answers)

		// Compare-and-swap on the serialized answers: concurrent autosaves of
		// different questions retry instead of clobbering each other, and the
		// status condition keeps writes off frozen attempts.
		res, err := s.db.ExecContext(ctx,
			`UPDATE attempts SET answers_json=$1 WHERE id=$2 AND status='in_progress' AND answers_json=$3`,
			string(newJSON), attemptID, string(oldJSON))
		if err != nil {
			return Attempt{}, err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return s.GetAttempt(ctx, attemptID, now)
		}
	}
	return Attempt{}, fmt.Errorf("save answer: too many concurrent writes on attempt %s", attemptID)
}

func (s *SQLStore) MarkQuestion(ctx context.Context, attemptID, questionID string, marked bool, now time.Time) (Attempt, error) {
	for tries := 0; tries < 5; tries++ {
		a, durSec, err := s.readAttempt(ctx, attemptID)
		if err != nil {
			return Attempt{}, err
		}
		if a.Status != AttemptInProgress {
			return Attempt{}, fmt.Errorf("%w: attempt is %s", ErrAttemptExpired, a.Status)
		}
		if now.Unix() >= a.Deadline(durSec) {
			if err := s.expireAttempt(ctx, &a, now); err != nil {
				return Attempt{}, err
			}
			return Attempt{}, fmt.Errorf("%w: deadline passed", ErrAttemptExpired)
		}

		oldJSON, _ := json.Marshal(a.Marked)
		next := a.Marked[:0:0]
		for _, id := range a.Marked {
			if id != questionID {
				next = append(next, id)
			}
		}
		if marked {
			next = append(next, questionID)
		}
		newJSON, _ := json.Marshal(next)

		res, err := s.db.ExecContext(ctx,
			`UPDATE attempts SET marked_json=$1 WHERE id=$2 AND status='in_progress' AND marked_json=$3`,
			string(newJSON), attemptID, string(oldJSON))
		if err != nil {
			return Attempt{}, err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return s.GetAttempt(ctx, attemptID, now)
		}
	}
	return Attempt{}, fmt.Errorf("mark question: too many concurrent writes on attempt %s", attemptID)
}

func (s *SQLStore) SubmitAttempt(ctx context.Context, attemptID string, now time.Time) (Attempt, error) {
	a, durSec, err := s.readAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	// Idempotent: a retry against an already-submitted (or later) attempt
	// returns the stored record unchanged.
	if a.Status != AttemptInProgress {
		return s.GetAttempt(ctx, attemptID, now)
	}
	if now.Unix() < a.StartedAt {
		return Attempt{}, fmt.Errorf("%w: submit before start", ErrInvalidTransition)
	}
	e, err := s.GetExamAdmin(ctx, a.ExamID)
	if err != nil {
		return Attempt{}, err
	}
	submitAt := now.Unix()
	auto := false
	if deadline := a.Deadline(durSec); submitAt >= deadline {
		submitAt, auto = deadline, true
	}
	if err := s.finalize(ctx, &e, attemptID, submitAt, auto, now); err != nil {
		return Attempt{}, err
	}
	return s.GetAttempt(ctx, attemptID, now)
}

func (s *SQLStore) GetAttempt(ctx context.Context, attemptID string, now time.Time) (Attempt, error) {
	a, durSec, err := s.readAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	// Lazy expiry: an in-progress attempt past its deadline is auto-submitted
	// on this very read, so callers never observe a stale in_progress record.
	if a.Status == AttemptInProgress && now.Unix() >= a.Deadline(durSec) {
		if err := s.expireAttempt(ctx, &a, now); err != nil {
			return Attempt{}, err
		}
		a, durSec, err = s.readAttempt(ctx, attemptID)
		if err != nil {
			return Attempt{}, err
		}
	}
	attachCountdown(&a, durSec, now)
	return a, nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts, now time.Time) ([]Attempt, error) {
	attempts, durations, err := s.queryAttempts(ctx, opts)
	if err != nil {
		return nil, err
	}
	expired := false
	for i := range attempts {
		a := &attempts[i]
		if a.Status == AttemptInProgress && now.Unix() >= a.Deadline(durations[i]) {
			if err := s.expireAttempt(ctx, a, now); err != nil {
				return nil, err
			}
			expired = true
		}
	}
	if expired {
		attempts, durations, err = s.queryAttempts(ctx, opts)
		if err != nil {
			return nil, err
		}
	}
	for i := range attempts {
		attachCountdown(&attempts[i], durations[i], now)
	}
	return attempts, nil
}

// ---- approval gate writes ----

func (s *SQLStore) ListPendingReview(ctx context.Context, instructorID string, now time.Time) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, attemptSelect+`
		WHERE e.instructor_id=$1 AND a.status='graded'
		ORDER BY a.submitted_at ASC`, instructorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		a, durSec, settingsJSON, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		var set Settings
		_ = json.Unmarshal([]byte(settingsJSON), &set)
		// Pending-review is derived, never stored: either a question is staged
		// for review, or the release policy demands a manual sign-off.
		if !a.NeedsReview() && !set.ShowResults {
			continue
		}
		attachCountdown(&a, durSec, now)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) ApproveAttempt(ctx context.Context, attemptID string, overrides map[string]float64, note string, now time.Time) (Attempt, error) {
	a, _, err := s.readAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status == AttemptApproved {
		return s.GetAttempt(ctx, attemptID, now)
	}
	if a.Status != AttemptGraded {
		return Attempt{}, fmt.Errorf("%w: approve requires graded, attempt is %s", ErrInvalidTransition, a.Status)
	}
	e, err := s.GetExamAdmin(ctx, a.ExamID)
	if err != nil {
		return Attempt{}, err
	}
	fb := settleReview(applyOverrides(&e, a.Feedback, overrides, note))
	totals := totalsFromFeedback(&e, fb, s.scale)
	fj, _ := json.Marshal(fb)
	res, err := s.db.ExecContext(ctx, `UPDATE attempts
		SET status='approved', approved_at=$1, score=$2, percentage=$3, grade=$4, feedback_json=$5, review_note=$6
		WHERE id=$7 AND status='graded'`,
		now.Unix(), totals.Score, totals.Percentage, totals.Grade, string(fj), note, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Lost the single-writer race at review time.
		cur, _, err := s.readAttempt(ctx, attemptID)
		if err != nil {
			return Attempt{}, err
		}
		if cur.Status == AttemptApproved {
			return s.GetAttempt(ctx, attemptID, now)
		}
		return Attempt{}, fmt.Errorf("%w: concurrent review write", ErrInvalidTransition)
	}
	return s.GetAttempt(ctx, attemptID, now)
}

func (s *SQLStore) ReturnAttempt(ctx context.Context, attemptID, note string, now time.Time) (Attempt, error) {
	a, _, err := s.readAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != AttemptGraded {
		return Attempt{}, fmt.Errorf("%w: return requires graded, attempt is %s", ErrInvalidTransition, a.Status)
	}
	e, err := s.GetExamAdmin(ctx, a.ExamID)
	if err != nil {
		return Attempt{}, err
	}
	// Answers stay frozen; only review state reopens.
	fb := reopenReview(&e, a.Feedback)
	fj, _ := json.Marshal(fb)
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET review_note=$1, feedback_json=$2 WHERE id=$3 AND status='graded'`,
		note, string(fj), attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Attempt{}, fmt.Errorf("%w: concurrent review write", ErrInvalidTransition)
	}
	return s.GetAttempt(ctx, attemptID, now)
}

// ---- internals ----

const attemptSelect = `SELECT a.id,a.exam_id,a.user_id,a.attempt_no,a.status,
	a.answers_json,a.marked_json,a.session_json,a.feedback_json,
	a.started_at,a.submitted_at,a.graded_at,a.approved_at,a.auto_submitted,
	a.score,a.percentage,a.grade,a.review_note,e.duration_min,e.settings_json
	FROM attempts a JOIN exams e ON e.id=a.exam_id`

type rowScanner interface{ Scan(dest ...any) error }

func scanAttempt(row rowScanner) (Attempt, int64, string, error) {
	var a Attempt
	var answersJSON, markedJSON, sessionJSON, feedbackJSON, settingsJSON string
	var durationMin int
	err := row.Scan(&a.ID, &a.ExamID, &a.UserID, &a.AttemptNo, &a.Status,
		&answersJSON, &markedJSON, &sessionJSON, &feedbackJSON,
		&a.StartedAt, &a.SubmittedAt, &a.GradedAt, &a.ApprovedAt, &a.AutoSubmitted,
		&a.Score, &a.Percentage, &a.Grade, &a.ReviewNote, &durationMin, &settingsJSON)
	if err != nil {
		return Attempt{}, 0, "", err
	}
	_ = json.Unmarshal([]byte(answersJSON), &a.Answers)
	_ = json.Unmarshal([]byte(markedJSON), &a.Marked)
	_ = json.Unmarshal([]byte(sessionJSON), &a.Session)
	_ = json.Unmarshal([]byte(feedbackJSON), &a.Feedback)
	if a.Answers == nil {
		a.Answers = map[string]string{}
	}
	return a, int64(durationMin) * 60, settingsJSON, nil
}

func (s *SQLStore) readAttempt(ctx context.Context, id string) (Attempt, int64, error) {
	row := s.db.QueryRowContext(ctx, attemptSelect+` WHERE a.id=$1`, id)
	a, durSec, _, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, 0, fmt.Errorf("%w: attempt %s", ErrNotFound, id)
	}
	if err != nil {
		return Attempt{}, 0, err
	}
	return a, durSec, nil
}

func (s *SQLStore) queryAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, []int64, error) {
	q := attemptSelect
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if opts.ExamID != "" {
		conds = append(conds, "a.exam_id="+arg(opts.ExamID))
	}
	if opts.UserID != "" {
		conds = append(conds, "a.user_id="+arg(opts.UserID))
	}
	if opts.Status != "" {
		conds = append(conds, "a.status="+arg(opts.Status))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	switch opts.Sort {
	case "submitted_at":
		q += " ORDER BY a.submitted_at DESC"
	default:
		q += " ORDER BY a.started_at DESC"
	}
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q += fmt.Sprintf(" LIMIT %s OFFSET %s", arg(limit), arg(opts.Offset))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var out []Attempt
	var durations []int64
	for rows.Next() {
		a, durSec, _, err := scanAttempt(rows)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, a)
		durations = append(durations, durSec)
	}
	return out, durations, rows.Err()
}

func (s *SQLStore) questionExists(ctx context.Context, examID, questionID string) bool {
	e, err := s.GetExamAdmin(ctx, examID)
	if err != nil {
		return false
	}
	for i := range e.Questions {
		if e.Questions[i].ID == questionID {
			return true
		}
	}
	return false
}

// expireAttempt materializes lazy expiry for one attempt: submit clamped to
// the deadline, then grade.
func (s *SQLStore) expireAttempt(ctx context.Context, a *Attempt, now time.Time) error {
	e, err := s.GetExamAdmin(ctx, a.ExamID)
	if err != nil {
		return err
	}
	return s.finalize(ctx, &e, a.ID, a.Deadline(e.DurationSec()), true, now)
}

// reapExpired expires a stale in-progress attempt for the pair, if present.
func (s *SQLStore) reapExpired(ctx context.Context, e *Exam, userID string, now time.Time) error {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,started_at FROM attempts WHERE exam_id=$1 AND user_id=$2 AND status='in_progress'`,
		e.ID, userID)
	var id string
	var startedAt int64
	if err := row.Scan(&id, &startedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if now.Unix() < startedAt+e.DurationSec() {
		return nil // still live; the insert below will report the conflict
	}
	return s.finalize(ctx, e, id, startedAt+e.DurationSec(), true, now)
}

// finalize is the submitted transition plus synchronous grading. Both writes
// are conditional on the predecessor status, so a raced call degrades to a
// no-op against the winner's record.
func (s *SQLStore) finalize(ctx context.Context, e *Exam, attemptID string, submitAt int64, auto bool, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET status='submitted', submitted_at=$1, auto_submitted=$2 WHERE id=$3 AND status='in_progress'`,
		submitAt, auto, attemptID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	a, _, err := s.readAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	fb, totals, err := gradeAttempt(ctx, e, &a, s.grader, s.scale)
	if err != nil {
		return err
	}
	fj, _ := json.Marshal(fb)
	_, err = s.db.ExecContext(ctx, `UPDATE attempts
		SET status='graded', graded_at=$1, score=$2, percentage=$3, grade=$4, feedback_json=$5
		WHERE id=$6 AND status='submitted'`,
		now.Unix(), totals.Score, totals.Percentage, totals.Grade, string(fj), attemptID)
	return err
}

func scanExam(row rowScanner) (Exam, error) {
	var e Exam
	var assignedJSON, settingsJSON, questionsJSON string
	err := row.Scan(&e.ID, &e.Title, &e.Subject, &e.Description, &e.DurationMin, &e.TotalMarks, &e.PassingMarks,
		&e.InstructorID, &assignedJSON, &e.ScheduledAt, &e.EndAt, &e.Status, &settingsJSON, &questionsJSON, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Exam{}, fmt.Errorf("%w: exam", ErrNotFound)
	}
	if err != nil {
		return Exam{}, err
	}
	_ = json.Unmarshal([]byte(assignedJSON), &e.AssignedStudents)
	_ = json.Unmarshal([]byte(settingsJSON), &e.Settings)
	_ = json.Unmarshal([]byte(questionsJSON), &e.Questions)
	return e, nil
}

func attachCountdown(a *Attempt, durSec int64, now time.Time) {
	if a.Status != AttemptInProgress {
		a.TimeRemaining = 0
		return
	}
	rem := a.Deadline(durSec) - now.Unix()
	if rem < 0 {
		rem = 0
	}
	a.TimeRemaining = rem
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite + postgres
		strings.Contains(msg, "duplicate key")
}
