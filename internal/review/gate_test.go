package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/examgate/examgate/internal/exam"
)

type recordingNotifier struct {
	released []string
}

func (n *recordingNotifier) ResultReleased(_ context.Context, a exam.Attempt) {
	n.released = append(n.released, a.ID)
}

func gradedAttempt(t *testing.T, s exam.Store) (exam.Exam, exam.Attempt) {
	t.Helper()
	ctx := context.Background()
	e, err := s.PutExam(ctx, exam.Exam{
		Title:        "Final",
		InstructorID: "teach-1",
		DurationMin:  30,
		TotalMarks:   5,
		ScheduledAt:  1000,
		EndAt:        100000,
		Settings:     exam.Settings{ShowResults: true},
		Questions: []exam.Question{
			{ID: "q1", Type: exam.TypeShortAnswer, Points: 5, SampleAnswers: []string{"answer"}},
		},
	})
	if err != nil {
		t.Fatalf("put exam: %v", err)
	}
	if _, err := s.PublishExam(ctx, e.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	now := time.Unix(2000, 0)
	a, err := s.StartAttempt(ctx, e.ID, "stu-1", nil, now)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.SaveAnswer(ctx, a.ID, "q1", "answer", now); err != nil {
		t.Fatalf("save: %v", err)
	}
	a, err = s.SubmitAttempt(ctx, a.ID, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return e, a
}

func TestGateApproveReleasesAndNotifies(t *testing.T) {
	s := exam.NewInMemoryStore(nil, nil)
	n := &recordingNotifier{}
	g := NewGate(s, n)
	_, a := gradedAttempt(t, s)
	now := time.Unix(5000, 0)

	got, err := g.Approve(context.Background(), "teach-1", "instructor", a.ID, nil, "looks right", now)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != exam.AttemptApproved {
		t.Fatalf("status = %s", got.Status)
	}
	if len(n.released) != 1 || n.released[0] != a.ID {
		t.Fatalf("notifications = %v", n.released)
	}
}

func TestGateApproveAuthorization(t *testing.T) {
	s := exam.NewInMemoryStore(nil, nil)
	g := NewGate(s, nil)
	_, a := gradedAttempt(t, s)
	now := time.Unix(5000, 0)
	ctx := context.Background()

	if _, err := g.Approve(ctx, "stu-1", "student", a.ID, nil, "", now); !errors.Is(err, exam.ErrNotAuthorized) {
		t.Fatalf("student approve: %v", err)
	}
	if _, err := g.Approve(ctx, "teach-2", "instructor", a.ID, nil, "", now); !errors.Is(err, exam.ErrNotAuthorized) {
		t.Fatalf("foreign instructor approve: %v", err)
	}
	if _, err := g.Approve(ctx, "root", "admin", a.ID, nil, "", now); err != nil {
		t.Fatalf("admin approve: %v", err)
	}
}

func TestGateReturnDoesNotNotify(t *testing.T) {
	s := exam.NewInMemoryStore(nil, nil)
	n := &recordingNotifier{}
	g := NewGate(s, n)
	_, a := gradedAttempt(t, s)
	now := time.Unix(5000, 0)

	got, err := g.Return(context.Background(), "teach-1", "instructor", a.ID, "needs another pass", now)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if got.Status != exam.AttemptGraded {
		t.Fatalf("status = %s, returns never release", got.Status)
	}
	if len(n.released) != 0 {
		t.Fatalf("return must not notify, got %v", n.released)
	}
}

func TestGateListPending(t *testing.T) {
	s := exam.NewInMemoryStore(nil, nil)
	g := NewGate(s, nil)
	_, a := gradedAttempt(t, s)
	now := time.Unix(5000, 0)
	ctx := context.Background()

	pend, err := g.ListPending(ctx, "teach-1", now)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pend) != 1 || pend[0].ID != a.ID {
		t.Fatalf("pending = %+v", pend)
	}
}
