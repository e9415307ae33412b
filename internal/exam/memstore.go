package exam

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/examgate/examgate/internal/grading"
)

// memoryStore is a mutex-guarded Store with the same transition semantics as
// SQLStore. The mutex plays the role of the conditional writes: every guard
// and its write happen under one critical section.
type memoryStore struct {
	mu       sync.Mutex
	exams    map[string]Exam
	attempts map[string]Attempt
	grader   grading.Grader
	scale    grading.Scale
	idgen    func() string
}

func NewInMemoryStore(grader grading.Grader, scale grading.Scale) Store {
	if grader == nil {
		grader = grading.NewDefaultGrader()
	}
	if len(scale) == 0 {
		scale = grading.DefaultScale
	}
	return &memoryStore{
		exams:    map[string]Exam{},
		attempts: map[string]Attempt{},
		grader:   grader,
		scale:    scale,
		idgen:    uuid.NewString,
	}
}

func (m *memoryStore) PutExam(_ context.Context, e Exam) (Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = m.idgen()
	}
	e.Status = StatusDraft
	if err := ValidateDraft(&e); err != nil {
		return Exam{}, err
	}
	if cur, ok := m.exams[e.ID]; ok && cur.Status != StatusDraft {
		return Exam{}, fmt.Errorf("%w: exam %s is %s", ErrInvalidTransition, e.ID, cur.Status)
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	m.exams[e.ID] = e
	return e, nil
}

func (m *memoryStore) GetExam(ctx context.Context, id string) (Exam, error) {
	e, err := m.GetExamAdmin(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	return StudentView(e), nil
}

func (m *memoryStore) GetExamAdmin(_ context.Context, id string) (Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, fmt.Errorf("%w: exam %s", ErrNotFound, id)
	}
	return e, nil
}

func (m *memoryStore) PublishExam(_ context.Context, id string) (Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, fmt.Errorf("%w: exam %s", ErrNotFound, id)
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
	e.Status = StatusPublished
	m.exams[id] = e
	return e, nil
}

func (m *memoryStore) ArchiveExam(_ context.Context, id string) (Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, fmt.Errorf("%w: exam %s", ErrNotFound, id)
	}
	e.Status = StatusArchived
	m.exams[id] = e
	return e, nil
}

func (m *memoryStore) UpdateExamSettings(_ context.Context, id string, s Settings) (Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, fmt.Errorf("%w: exam %s", ErrNotFound, id)
	}
	e.Settings = s
	m.exams[id] = e
	return e, nil
}

func (m *memoryStore) ListExams(_ context.Context, opts ListOpts) ([]ExamSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ExamSummary
	for _, e := range m.exams {
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		if opts.Q != "" {
			q := strings.ToLower(opts.Q)
			if !strings.Contains(strings.ToLower(e.Title), q) && !strings.Contains(strings.ToLower(e.Subject), q) {
				continue
			}
		}
		switch opts.ViewerRole {
		case "student":
			if e.Status != StatusPublished || !e.AssignedTo(opts.ViewerID) {
				continue
			}
		case "instructor":
			if e.InstructorID != opts.ViewerID {
				continue
			}
		}
		out = append(out, ExamSummary{
			ID: e.ID, Title: e.Title, Subject: e.Subject, DurationMin: e.DurationMin,
			ScheduledAt: e.ScheduledAt, EndAt: e.EndAt, Status: e.Status, CreatedAt: e.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt < out[j].ScheduledAt })
	return paginate(out, opts.Limit, opts.Offset), nil
}

func (m *memoryStore) StartAttempt(ctx context.Context, examID, userID string, session map[string]string, now time.Time) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[examID]
	if !ok || e.Status == StatusDraft || !e.AssignedTo(userID) {
		return Attempt{}, fmt.Errorf("%w: exam %s", ErrNotFound, examID)
	}
	if e.Status == StatusArchived {
		return Attempt{}, fmt.Errorf("%w: exam archived", ErrWindowClosed)
	}
	if b := Classify(&e, now); b != BucketOngoing {
		return Attempt{}, fmt.Errorf("%w: bucket %s", ErrWindowClosed, b)
	}
	used := 0
	for _, a := range m.attempts {
		if a.ExamID != examID || a.UserID != userID {
			continue
		}
		if a.Status == AttemptInProgress {
			if now.Unix() < a.Deadline(e.DurationSec()) {
				return Attempt{}, fmt.Errorf("%w: exam %s", ErrAttemptConflict, examID)
			}
			m.finalizeLocked(ctx, &e, a.ID, a.Deadline(e.DurationSec()), true, now)
		}
		used++
	}
	if used >= e.Settings.EffectiveMaxAttempts() {
		return Attempt{}, fmt.Errorf("%w: %d of %d used", ErrMaxAttempts, used, e.Settings.EffectiveMaxAttempts())
	}
	a := Attempt{
		ID:        m.idgen(),
		ExamID:    examID,
		UserID:    userID,
		AttemptNo: used + 1,
		Status:    AttemptInProgress,
		Answers:   map[string]string{},
		Session:   session,
		StartedAt: now.Unix(),
	}
	m.attempts[a.ID] = a
	attachCountdown(&a, e.DurationSec(), now)
	return a, nil
}

func (m *memoryStore) SaveAnswer(ctx context.Context, attemptID, questionID, value string, now time.Time) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, e, err := m.liveAttemptLocked(ctx, attemptID, now)
	if err != nil {
		return Attempt{}, err
	}
	found := false
	for i := range e.Questions {
		if e.Questions[i].ID == questionID {
			found = true
			break
		}
	}
	if !found {
		return Attempt{}, fmt.Errorf("%w: question %s", ErrNotFound, questionID)
	}
	answers := make(map[string]string, len(a.Answers)+1)
	for k, v := range a.Answers {
		answers[k] = v
	}
	answers[questionID] = value
	a.Answers = answers
	m.attempts[attemptID] = a
	attachCountdown(&a, e.DurationSec(), now)
	return a, nil
}

func (m *memoryStore) MarkQuestion(ctx context.Context, attemptID, questionID string, marked bool, now time.Time) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, e, err := m.liveAttemptLocked(ctx, attemptID, now)
	if err != nil {
		return Attempt{}, err
	}
	next := a.Marked[:0:0]
	for _, id := range a.Marked {
		if id != questionID {
			next = append(next, id)
		}
	}
	if marked {
		next = append(next, questionID)
	}
	a.Marked = next
	m.attempts[attemptID] = a
	attachCountdown(&a, e.DurationSec(), now)
	return a, nil
}

func (m *memoryStore) SubmitAttempt(ctx context.Context, attemptID string, now time.Time) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, fmt.Errorf("%w: attempt %s", ErrNotFound, attemptID)
	}
	if a.Status != AttemptInProgress {
		return a, nil
	}
	if now.Unix() < a.StartedAt {
		return Attempt{}, fmt.Errorf("%w: submit before start", ErrInvalidTransition)
	}
	e := m.exams[a.ExamID]
	submitAt := now.Unix()
	auto := false
	if deadline := a.Deadline(e.DurationSec()); submitAt >= deadline {
		submitAt, auto = deadline, true
	}
	m.finalizeLocked(ctx, &e, attemptID, submitAt, auto, now)
	return m.attempts[attemptID], nil
}

func (m *memoryStore) GetAttempt(ctx context.Context, attemptID string, now time.Time) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, fmt.Errorf("%w: attempt %s", ErrNotFound, attemptID)
	}
	e := m.exams[a.ExamID]
	if a.Status == AttemptInProgress && now.Unix() >= a.Deadline(e.DurationSec()) {
		m.finalizeLocked(ctx, &e, attemptID, a.Deadline(e.DurationSec()), true, now)
		a = m.attempts[attemptID]
	}
	attachCountdown(&a, e.DurationSec(), now)
	return a, nil
}

func (m *memoryStore) ListAttempts(ctx context.Context, opts AttemptListOpts, now time.Time) ([]Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Attempt
	for _, a := range m.attempts {
		if opts.ExamID != "" && a.ExamID != opts.ExamID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		e := m.exams[a.ExamID]
		if a.Status == AttemptInProgress && now.Unix() >= a.Deadline(e.DurationSec()) {
			m.finalizeLocked(ctx, &e, a.ID, a.Deadline(e.DurationSec()), true, now)
			a = m.attempts[a.ID]
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		attachCountdown(&a, e.DurationSec(), now)
		out = append(out, a)
	}
	if opts.Sort == "submitted_at" {
		sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt > out[j].SubmittedAt })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].StartedAt > out[j].StartedAt })
	}
	return paginate(out, opts.Limit, opts.Offset), nil
}

func (m *memoryStore) ListPendingReview(_ context.Context, instructorID string, now time.Time) ([]Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Attempt
	for _, a := range m.attempts {
		if a.Status != AttemptGraded {
			continue
		}
		e := m.exams[a.ExamID]
		if e.InstructorID != instructorID {
			continue
		}
		if !a.NeedsReview() && !e.Settings.ShowResults {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt < out[j].SubmittedAt })
	return out, nil
}

func (m *memoryStore) ApproveAttempt(_ context.Context, attemptID string, overrides map[string]float64, note string, now time.Time) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, fmt.Errorf("%w: attempt %s", ErrNotFound, attemptID)
	}
	if a.Status == AttemptApproved {
		return a, nil
	}
	if a.Status != AttemptGraded {
		return Attempt{}, fmt.Errorf("%w: approve requires graded, attempt is %s", ErrInvalidTransition, a.Status)
	}
	e := m.exams[a.ExamID]
	a.Feedback = settleReview(applyOverrides(&e, a.Feedback, overrides, note))
	totals := totalsFromFeedback(&e, a.Feedback, m.scale)
	a.Score, a.Percentage, a.Grade = totals.Score, totals.Percentage, totals.Grade
	a.Status = AttemptApproved
	a.ApprovedAt = now.Unix()
	if note != "" {
		a.ReviewNote = note
	}
	m.attempts[attemptID] = a
	return a, nil
}

func (m *memoryStore) ReturnAttempt(_ context.Context, attemptID, note string, now time.Time) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, fmt.Errorf("%w: attempt %s", ErrNotFound, attemptID)
	}
	if a.Status != AttemptGraded {
		return Attempt{}, fmt.Errorf("%w: return requires graded, attempt is %s", ErrInvalidTransition, a.Status)
	}
	e := m.exams[a.ExamID]
	a.Feedback = reopenReview(&e, a.Feedback)
	a.ReviewNote = note
	m.attempts[attemptID] = a
	return a, nil
}

// liveAttemptLocked fetches an in-progress attempt, expiring it first when
// the countdown ran out. Callers hold the mutex.
func (m *memoryStore) liveAttemptLocked(ctx context.Context, attemptID string, now time.Time) (Attempt, Exam, error) {
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, Exam{}, fmt.Errorf("%w: attempt %s", ErrNotFound, attemptID)
	}
	e := m.exams[a.ExamID]
	if a.Status != AttemptInProgress {
		return Attempt{}, Exam{}, fmt.Errorf("%w: attempt is %s", ErrAttemptExpired, a.Status)
	}
	if now.Unix() >= a.Deadline(e.DurationSec()) {
		m.finalizeLocked(ctx, &e, attemptID, a.Deadline(e.DurationSec()), true, now)
		return Attempt{}, Exam{}, fmt.Errorf("%w: deadline passed", ErrAttemptExpired)
	}
	return a, e, nil
}

func (m *memoryStore) finalizeLocked(ctx context.Context, e *Exam, attemptID string, submitAt int64, auto bool, now time.Time) {
	a := m.attempts[attemptID]
	if a.Status != AttemptInProgress {
		return
	}
	a.Status = AttemptSubmitted
	a.SubmittedAt = submitAt
	a.AutoSubmitted = auto
	fb, totals, err := gradeAttempt(ctx, e, &a, m.grader, m.scale)
	if err == nil {
		a.Status = AttemptGraded
		a.GradedAt = now.Unix()
		a.Feedback = fb
		a.Score, a.Percentage, a.Grade = totals.Score, totals.Percentage, totals.Grade
	}
	m.attempts[attemptID] = a
}

func paginate[T any](in []T, limit, offset int) []T {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if len(in) > limit {
		in = in[:limit]
	}
	return in
}
