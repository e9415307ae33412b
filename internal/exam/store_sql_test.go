package exam

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/examgate/examgate/internal/db"
)

func sqliteStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+t.TempDir()+"/exam_test.db")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return NewSQLStore(dbh, "sqlite", nil, nil)
}

func TestSQLStoreCatalog(t *testing.T) {
	s := sqliteStore(t)
	ctx := context.Background()
	e := testExam(t, s)

	got, err := s.GetExamAdmin(ctx, e.ID)
	if err != nil {
		t.Fatalf("get admin: %v", err)
	}
	if got.Status != StatusPublished || len(got.Questions) != 3 {
		t.Fatalf("round-trip: %+v", got)
	}
	if got.Questions[0].CorrectAnswer == "" {
		t.Fatal("admin view must retain answer keys")
	}

	sv, err := s.GetExam(ctx, e.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for _, q := range sv.Questions {
		if q.CorrectAnswer != "" || q.SampleAnswers != nil {
			t.Fatalf("student view leaked key: %+v", q)
		}
	}

	// published exams are frozen
	e.Title = "renamed"
	if _, err := s.PutExam(ctx, e); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("edit published: %v", err)
	}

	// publish is idempotent
	if _, err := s.PublishExam(ctx, e.ID); err != nil {
		t.Fatalf("republish: %v", err)
	}

	// archive closes, publish after archive fails
	if _, err := s.ArchiveExam(ctx, e.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := s.PublishExam(ctx, e.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("publish archived: %v", err)
	}
}

func TestSQLStoreListExams(t *testing.T) {
	s := sqliteStore(t)
	ctx := context.Background()
	e := testExam(t, s)

	// instructor sees own exams only
	list, err := s.ListExams(ctx, ListOpts{ViewerID: "teach-1", ViewerRole: "instructor"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != e.ID {
		t.Fatalf("instructor list = %+v", list)
	}
	list, _ = s.ListExams(ctx, ListOpts{ViewerID: "teach-2", ViewerRole: "instructor"})
	if len(list) != 0 {
		t.Fatalf("other instructor sees %d exams", len(list))
	}

	// student sees published
	list, _ = s.ListExams(ctx, ListOpts{ViewerID: "stu-1", ViewerRole: "student"})
	if len(list) != 1 {
		t.Fatalf("student list = %+v", list)
	}

	// search filter
	list, _ = s.ListExams(ctx, ListOpts{Q: "biology", ViewerRole: "admin"})
	if len(list) != 1 {
		t.Fatalf("search miss: %+v", list)
	}
	list, _ = s.ListExams(ctx, ListOpts{Q: "chemistry", ViewerRole: "admin"})
	if len(list) != 0 {
		t.Fatalf("search false positive: %+v", list)
	}
}

func TestSQLStoreAttemptLifecycle(t *testing.T) {
	s := sqliteStore(t)
	ctx := context.Background()
	e := testExam(t, s)
	now := time.Unix(2000, 0)

	a, err := s.StartAttempt(ctx, e.ID, "stu-1", map[string]string{"ip": "10.0.0.1"}, now)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if a.Status != AttemptInProgress || a.TimeRemaining != 1800 {
		t.Fatalf("fresh attempt: %+v", a)
	}

	// the partial unique index rejects a second live attempt
	if _, err := s.StartAttempt(ctx, e.ID, "stu-1", nil, now.Add(time.Minute)); !errors.Is(err, ErrAttemptConflict) {
		t.Fatalf("double start: %v", err)
	}

	if _, err := s.SaveAnswer(ctx, a.ID, "q1", "b", now.Add(time.Minute)); err != nil {
		t.Fatalf("save q1: %v", err)
	}
	if _, err := s.SaveAnswer(ctx, a.ID, "q2", "true", now.Add(time.Minute)); err != nil {
		t.Fatalf("save q2: %v", err)
	}
	got, err := s.MarkQuestion(ctx, a.ID, "q1", true, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !got.IsMarked("q1") {
		t.Fatalf("marked = %v", got.Marked)
	}
	got, err = s.MarkQuestion(ctx, a.ID, "q1", false, now.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("unmark: %v", err)
	}
	if got.IsMarked("q1") {
		t.Fatalf("unmark failed: %v", got.Marked)
	}

	sub, err := s.SubmitAttempt(ctx, a.ID, now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Status != AttemptGraded || sub.Score != 5 {
		t.Fatalf("graded: status=%s score=%v", sub.Status, sub.Score)
	}

	// idempotent retry
	again, err := s.SubmitAttempt(ctx, a.ID, now.Add(6*time.Minute))
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if again.SubmittedAt != sub.SubmittedAt {
		t.Fatalf("resubmit moved submitted_at: %d vs %d", again.SubmittedAt, sub.SubmittedAt)
	}

	appr, err := s.ApproveAttempt(ctx, a.ID, map[string]float64{"q3": 4}, "graded by hand", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if appr.Status != AttemptApproved || appr.Score != 9 {
		t.Fatalf("approved: status=%s score=%v", appr.Status, appr.Score)
	}
	if appr.NeedsReview() {
		t.Fatal("review flags must settle on approval")
	}

	// session metadata survives the round trip
	if appr.Session["ip"] != "10.0.0.1" {
		t.Fatalf("session = %v", appr.Session)
	}
}

func TestSQLStoreLazyExpiry(t *testing.T) {
	s := sqliteStore(t)
	ctx := context.Background()
	e := testExam(t, s)
	start := time.Unix(2000, 0)

	a, err := s.StartAttempt(ctx, e.ID, "stu-1", nil, start)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.SaveAnswer(ctx, a.ID, "q2", "true", start.Add(time.Minute)); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetAttempt(ctx, a.ID, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != AttemptGraded || !got.AutoSubmitted {
		t.Fatalf("expiry on read: %+v", got)
	}
	if want := a.StartedAt + 1800; got.SubmittedAt != want {
		t.Fatalf("submitted_at = %d, want %d", got.SubmittedAt, want)
	}
	if got.Feedback["q2"].Points != 1 {
		t.Fatalf("saved answer not graded: %+v", got.Feedback)
	}
}

func TestSQLStoreExpiredAttemptFreesRetake(t *testing.T) {
	s := sqliteStore(t)
	ctx := context.Background()
	e := testExam(t, s)
	start := time.Unix(2000, 0)

	if _, err := s.StartAttempt(ctx, e.ID, "stu-1", nil, start); err != nil {
		t.Fatalf("first start: %v", err)
	}
	// countdown long gone; a new start reaps the stale attempt and succeeds
	a2, err := s.StartAttempt(ctx, e.ID, "stu-1", nil, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("retake after expiry: %v", err)
	}
	if a2.AttemptNo != 2 {
		t.Fatalf("attempt_no = %d, want 2", a2.AttemptNo)
	}

	// cap of two is now exhausted
	if _, err := s.StartAttempt(ctx, e.ID, "stu-1", nil, start.Add(3*time.Hour)); !errors.Is(err, ErrMaxAttempts) {
		t.Fatalf("third start: %v", err)
	}
}

func TestSQLStoreReturnThenApprove(t *testing.T) {
	s := sqliteStore(t)
	ctx := context.Background()
	e := testExam(t, s)
	now := time.Unix(2000, 0)

	a, _ := s.StartAttempt(ctx, e.ID, "stu-1", nil, now)
	_, _ = s.SaveAnswer(ctx, a.ID, "q3", "photo synthesis", now)
	if _, err := s.SubmitAttempt(ctx, a.ID, now.Add(time.Minute)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ret, err := s.ReturnAttempt(ctx, a.ID, "re-check q3", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if ret.Status != AttemptGraded || ret.ReviewNote != "re-check q3" {
		t.Fatalf("returned: %+v", ret)
	}
	if !ret.Feedback["q3"].NeedsReview {
		t.Fatal("return must reopen review")
	}

	pend, err := s.ListPendingReview(ctx, "teach-1", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pend) != 1 {
		t.Fatalf("returned attempt must reappear in the queue: %+v", pend)
	}

	if _, err := s.ApproveAttempt(ctx, a.ID, map[string]float64{"q3": 5}, "", now.Add(2*time.Hour)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := s.ReturnAttempt(ctx, a.ID, "too late", now.Add(3*time.Hour)); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("return after approve: %v", err)
	}
}

func TestSQLStoreListAttempts(t *testing.T) {
	s := sqliteStore(t)
	ctx := context.Background()
	e := testExam(t, s)
	now := time.Unix(2000, 0)

	a1, _ := s.StartAttempt(ctx, e.ID, "stu-1", nil, now)
	_, _ = s.SubmitAttempt(ctx, a1.ID, now.Add(time.Minute))
	a2, _ := s.StartAttempt(ctx, e.ID, "stu-2", nil, now.Add(2*time.Minute))

	all, err := s.ListAttempts(ctx, AttemptListOpts{ExamID: e.ID}, now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("list = %d attempts", len(all))
	}
	// started_at desc by default
	if all[0].ID != a2.ID {
		t.Fatalf("sort order: %s first", all[0].ID)
	}

	mine, _ := s.ListAttempts(ctx, AttemptListOpts{ExamID: e.ID, UserID: "stu-1"}, now.Add(5*time.Minute))
	if len(mine) != 1 || mine[0].ID != a1.ID {
		t.Fatalf("user filter: %+v", mine)
	}

	graded, _ := s.ListAttempts(ctx, AttemptListOpts{ExamID: e.ID, Status: AttemptGraded}, now.Add(5*time.Minute))
	if len(graded) != 1 || graded[0].ID != a1.ID {
		t.Fatalf("status filter: %+v", graded)
	}
}
