package exam

import (
	"testing"
	"time"
)

func gateExam() *Exam {
	return &Exam{
		ID:          "e1",
		Status:      StatusPublished,
		DurationMin: 30,
		ScheduledAt: 1000,
		EndAt:       10000,
		Settings:    Settings{AllowRetake: true, MaxAttempts: 2, ShowResults: true},
	}
}

func TestGateAccessFreshStudent(t *testing.T) {
	acc := GateAccess(gateExam(), nil, time.Unix(2000, 0))
	if !acc.CanStart {
		t.Fatal("published ongoing exam with no attempts must be startable")
	}
	if acc.CanResume || acc.CanViewResult {
		t.Fatalf("nothing to resume or view: %+v", acc)
	}
	if acc.MaxAttempts != 2 || acc.AttemptsUsed != 0 {
		t.Fatalf("counters wrong: %+v", acc)
	}
}

func TestGateAccessUpcomingAndEnded(t *testing.T) {
	e := gateExam()
	if acc := GateAccess(e, nil, time.Unix(500, 0)); acc.CanStart || acc.Bucket != BucketUpcoming {
		t.Fatalf("upcoming exam must not be startable: %+v", acc)
	}
	if acc := GateAccess(e, nil, time.Unix(10000, 0)); acc.CanStart || acc.Bucket != BucketEnded {
		t.Fatalf("ended exam must not be startable: %+v", acc)
	}
}

func TestGateAccessActiveAttempt(t *testing.T) {
	e := gateExam()
	attempts := []Attempt{{ID: "a1", Status: AttemptInProgress, StartedAt: 2000}}
	acc := GateAccess(e, attempts, time.Unix(2100, 0))
	if acc.CanStart {
		t.Fatal("cannot start while an attempt is live")
	}
	if !acc.CanResume || acc.ActiveAttemptID != "a1" {
		t.Fatalf("live attempt must be resumable: %+v", acc)
	}
}

func TestGateAccessExpiredAttemptNotResumable(t *testing.T) {
	e := gateExam()
	// countdown is 30min = 1800s; started at 2000, dead at 3800
	attempts := []Attempt{{ID: "a1", Status: AttemptInProgress, StartedAt: 2000}}
	acc := GateAccess(e, attempts, time.Unix(3800, 0))
	if acc.CanResume || acc.ActiveAttemptID != "" {
		t.Fatalf("expired attempt must not be resumable: %+v", acc)
	}
	if acc.AttemptsUsed != 1 {
		t.Fatalf("expired attempt still consumes the slot: %+v", acc)
	}
	if !acc.CanStart {
		t.Fatal("one of two attempts used, start should be allowed")
	}
}

func TestGateAccessAttemptCap(t *testing.T) {
	e := gateExam()
	attempts := []Attempt{
		{ID: "a1", Status: AttemptGraded, StartedAt: 1100},
		{ID: "a2", Status: AttemptGraded, StartedAt: 1500},
	}
	acc := GateAccess(e, attempts, time.Unix(2000, 0))
	if acc.CanStart {
		t.Fatalf("cap reached, start must be denied: %+v", acc)
	}
}

func TestGateAccessRetakeDisabled(t *testing.T) {
	e := gateExam()
	e.Settings.AllowRetake = false
	attempts := []Attempt{{ID: "a1", Status: AttemptGraded, StartedAt: 1100}}
	acc := GateAccess(e, attempts, time.Unix(2000, 0))
	if acc.MaxAttempts != 1 || acc.CanStart {
		t.Fatalf("retake disabled caps at one attempt: %+v", acc)
	}
}

func TestGateAccessResultVisibility(t *testing.T) {
	e := gateExam()
	attempts := []Attempt{{ID: "a1", Status: AttemptApproved, StartedAt: 1100}}
	if acc := GateAccess(e, attempts, time.Unix(2000, 0)); !acc.CanViewResult {
		t.Fatal("approved attempt with show_results should be viewable")
	}
	e.Settings.ShowResults = false
	if acc := GateAccess(e, attempts, time.Unix(2000, 0)); acc.CanViewResult {
		t.Fatal("show_results off must hide results even when approved")
	}
}

func TestGateAccessGradedNotViewable(t *testing.T) {
	e := gateExam()
	attempts := []Attempt{{ID: "a1", Status: AttemptGraded, StartedAt: 1100}}
	if acc := GateAccess(e, attempts, time.Unix(2000, 0)); acc.CanViewResult {
		t.Fatal("graded but unapproved results must stay hidden")
	}
}
