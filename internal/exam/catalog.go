package exam

import "fmt"

// ValidateDraft checks an exam definition at authoring time. Attempts never
// see a definition that fails here.
func ValidateDraft(e *Exam) error {
	if e.Title == "" {
		return fmt.Errorf("%w: title required", ErrValidation)
	}
	if e.InstructorID == "" {
		return fmt.Errorf("%w: instructor required", ErrValidation)
	}
	if e.DurationMin <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	if e.ScheduledAt != 0 && e.EndAt != 0 && e.EndAt <= e.ScheduledAt {
		return fmt.Errorf("%w: end date must follow scheduled date", ErrValidation)
	}
	seen := make(map[string]struct{}, len(e.Questions))
	for i := range e.Questions {
		q := &e.Questions[i]
		if q.ID == "" {
			return fmt.Errorf("%w: question %d missing id", ErrValidation, i)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %s", ErrValidation, q.ID)
		}
		seen[q.ID] = struct{}{}
		switch q.Type {
		case TypeMultipleChoice:
			if len(q.Options) < 2 || q.CorrectAnswer == "" {
				return fmt.Errorf("%w: question %s needs options and a correct answer", ErrValidation, q.ID)
			}
		case TypeTrueFalse:
			if q.CorrectAnswer == "" {
				return fmt.Errorf("%w: question %s needs a correct answer", ErrValidation, q.ID)
			}
		case TypeShortAnswer:
			// sample answers optional; without them the similarity score is 0
			// and the item is graded entirely at review
		default:
			return fmt.Errorf("%w: question %s has unknown type %q", ErrValidation, q.ID, q.Type)
		}
		if q.Points < 0 {
			return fmt.Errorf("%w: question %s has negative points", ErrValidation, q.ID)
		}
	}
	return nil
}

// ValidatePublish guards the draft -> published transition.
func ValidatePublish(e *Exam) error {
	if err := ValidateDraft(e); err != nil {
		return err
	}
	if len(e.Questions) == 0 {
		return fmt.Errorf("%w: cannot publish without questions", ErrValidation)
	}
	if e.ScheduledAt == 0 || e.EndAt == 0 || e.ScheduledAt >= e.EndAt {
		return fmt.Errorf("%w: publish requires a valid attempt window", ErrValidation)
	}
	return nil
}

// StudentView strips grading keys from an exam before it is served to a
// student. The stored record is untouched.
func StudentView(e Exam) Exam {
	qs := make([]Question, len(e.Questions))
	copy(qs, e.Questions)
	for i := range qs {
		qs[i].CorrectAnswer = ""
		qs[i].SampleAnswers = nil
	}
	e.Questions = qs
	return e
}
