// Package review is the instructor-facing approval gate: it turns computed
// grades into released results, or sends them back for re-grading.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/examgate/examgate/internal/exam"
)

// Notifier receives result-ready events. Implementations must be cheap; the
// gate calls it inline after a successful release.
type Notifier interface {
	ResultReleased(ctx context.Context, a exam.Attempt)
}

type Gate struct {
	store    exam.Store
	notifier Notifier
}

func NewGate(store exam.Store, n Notifier) *Gate {
	return &Gate{store: store, notifier: n}
}

// ListPending returns graded attempts awaiting this instructor's sign-off.
func (g *Gate) ListPending(ctx context.Context, instructorID string, now time.Time) ([]exam.Attempt, error) {
	return g.store.ListPendingReview(ctx, instructorID, now)
}

// Approve releases a graded attempt. Only the owning instructor or an admin
// may call it; overrides are optional per-question score corrections.
func (g *Gate) Approve(ctx context.Context, callerID, callerRole, attemptID string, overrides map[string]float64, note string, now time.Time) (exam.Attempt, error) {
	if err := g.authorize(ctx, callerID, callerRole, attemptID, now); err != nil {
		return exam.Attempt{}, err
	}
	a, err := g.store.ApproveAttempt(ctx, attemptID, overrides, note, now)
	if err != nil {
		return exam.Attempt{}, err
	}
	if g.notifier != nil {
		g.notifier.ResultReleased(ctx, a)
	}
	return a, nil
}

// Return sends a graded attempt back for re-grading with a reason attached.
// Answers stay frozen; the attempt never reverts past graded.
func (g *Gate) Return(ctx context.Context, callerID, callerRole, attemptID, reason string, now time.Time) (exam.Attempt, error) {
	if err := g.authorize(ctx, callerID, callerRole, attemptID, now); err != nil {
		return exam.Attempt{}, err
	}
	return g.store.ReturnAttempt(ctx, attemptID, reason, now)
}

func (g *Gate) authorize(ctx context.Context, callerID, callerRole, attemptID string, now time.Time) error {
	if callerRole == "admin" {
		return nil
	}
	if callerRole != "instructor" {
		return fmt.Errorf("%w: role %s cannot review", exam.ErrNotAuthorized, callerRole)
	}
	a, err := g.store.GetAttempt(ctx, attemptID, now)
	if err != nil {
		return err
	}
	e, err := g.store.GetExamAdmin(ctx, a.ExamID)
	if err != nil {
		return err
	}
	if e.InstructorID != callerID {
		return fmt.Errorf("%w: exam %s belongs to another instructor", exam.ErrNotAuthorized, e.ID)
	}
	return nil
}
