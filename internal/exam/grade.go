package exam

import (
	"context"

	"github.com/examgate/examgate/internal/grading"
)

// gradeAttempt runs the grading engine over every question of the exam and
// returns the per-question feedback plus the aggregate totals. Unanswered
// questions still produce a zero-point feedback entry so review tooling sees
// the full picture. Answers are read, never mutated.
func gradeAttempt(ctx context.Context, e *Exam, a *Attempt, g grading.Grader, scale grading.Scale) (map[string]Feedback, grading.Totals, error) {
	results := make(map[string]grading.Result, len(e.Questions))
	fb := make(map[string]Feedback, len(e.Questions))
	for _, q := range e.Questions {
		res, err := g.Grade(ctx, grading.Q{
			ID:            q.ID,
			Type:          q.Type,
			Points:        q.Points,
			CorrectAnswer: q.CorrectAnswer,
			SampleAnswers: q.SampleAnswers,
		}, a.Answers[q.ID])
		if err != nil {
			return nil, grading.Totals{}, err
		}
		results[q.ID] = res
		fb[q.ID] = Feedback{Points: res.Points, NeedsReview: res.NeedsReview, Note: res.Note}
	}
	totals := grading.Aggregate(results, e.TotalMarks, e.PassingMarks, scale)
	return fb, totals, nil
}

// applyOverrides merges instructor score overrides into feedback, clamped to
// each question's range, and clears the review flag on overridden items.
func applyOverrides(e *Exam, fb map[string]Feedback, overrides map[string]float64, note string) map[string]Feedback {
	out := make(map[string]Feedback, len(fb))
	for k, v := range fb {
		out[k] = v
	}
	for _, q := range e.Questions {
		pts, ok := overrides[q.ID]
		if !ok {
			continue
		}
		if pts < 0 {
			pts = 0
		}
		if pts > q.Points {
			pts = q.Points
		}
		entry := out[q.ID]
		entry.Points = pts
		entry.NeedsReview = false
		if note != "" {
			entry.Note = note
		}
		out[q.ID] = entry
	}
	return out
}

// settleReview marks every feedback entry as reviewed. Called on approval so
// the pending-review predicate goes false.
func settleReview(fb map[string]Feedback) map[string]Feedback {
	out := make(map[string]Feedback, len(fb))
	for k, v := range fb {
		v.NeedsReview = false
		out[k] = v
	}
	return out
}

// reopenReview re-flags short-answer style entries after a Return so the
// attempt shows up in the pending queue until re-approved.
func reopenReview(e *Exam, fb map[string]Feedback) map[string]Feedback {
	out := make(map[string]Feedback, len(fb))
	for k, v := range fb {
		out[k] = v
	}
	for _, q := range e.Questions {
		if q.Type != TypeShortAnswer {
			continue
		}
		entry := out[q.ID]
		entry.NeedsReview = true
		out[q.ID] = entry
	}
	return out
}

// totalsFromFeedback recomputes aggregates after overrides.
func totalsFromFeedback(e *Exam, fb map[string]Feedback, scale grading.Scale) grading.Totals {
	results := make(map[string]grading.Result, len(fb))
	for k, v := range fb {
		results[k] = grading.Result{Points: v.Points}
	}
	return grading.Aggregate(results, e.TotalMarks, e.PassingMarks, scale)
}
