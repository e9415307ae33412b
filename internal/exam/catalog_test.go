package exam

import (
	"errors"
	"testing"
)

func validDraft() Exam {
	return Exam{
		Title:        "Quiz",
		InstructorID: "teach-1",
		DurationMin:  15,
		ScheduledAt:  1000,
		EndAt:        2000,
		Questions: []Question{
			{ID: "q1", Type: TypeMultipleChoice, Points: 2, CorrectAnswer: "a",
				Options: []Option{{ID: "a"}, {ID: "b"}}},
		},
	}
}

func TestValidateDraft(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Exam)
		ok     bool
	}{
		{"valid", func(*Exam) {}, true},
		{"missing title", func(e *Exam) { e.Title = "" }, false},
		{"missing instructor", func(e *Exam) { e.InstructorID = "" }, false},
		{"zero duration", func(e *Exam) { e.DurationMin = 0 }, false},
		{"inverted window", func(e *Exam) { e.ScheduledAt, e.EndAt = 2000, 1000 }, false},
		{"no window yet", func(e *Exam) { e.ScheduledAt, e.EndAt = 0, 0 }, true},
		{"question without id", func(e *Exam) { e.Questions[0].ID = "" }, false},
		{"duplicate question id", func(e *Exam) {
			e.Questions = append(e.Questions, e.Questions[0])
		}, false},
		{"choice without options", func(e *Exam) { e.Questions[0].Options = nil }, false},
		{"choice without key", func(e *Exam) { e.Questions[0].CorrectAnswer = "" }, false},
		{"unknown type", func(e *Exam) { e.Questions[0].Type = "matching" }, false},
		{"negative points", func(e *Exam) { e.Questions[0].Points = -1 }, false},
		{"short answer without samples", func(e *Exam) {
			e.Questions[0] = Question{ID: "q1", Type: TypeShortAnswer, Points: 5}
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := validDraft()
			tc.mutate(&e)
			err := ValidateDraft(&e)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("not a validation error: %v", err)
				}
			}
		})
	}
}

func TestValidatePublish(t *testing.T) {
	e := validDraft()
	if err := ValidatePublish(&e); err != nil {
		t.Fatalf("valid publish rejected: %v", err)
	}

	e = validDraft()
	e.Questions = nil
	if err := ValidatePublish(&e); !errors.Is(err, ErrValidation) {
		t.Fatalf("publish without questions: %v", err)
	}

	e = validDraft()
	e.ScheduledAt, e.EndAt = 0, 0
	if err := ValidatePublish(&e); !errors.Is(err, ErrValidation) {
		t.Fatalf("publish without window: %v", err)
	}
}

func TestStudentViewStripsKeys(t *testing.T) {
	e := validDraft()
	e.Questions = append(e.Questions, Question{
		ID: "q2", Type: TypeShortAnswer, Points: 5, SampleAnswers: []string{"secret"},
	})
	sv := StudentView(e)
	for _, q := range sv.Questions {
		if q.CorrectAnswer != "" || q.SampleAnswers != nil {
			t.Fatalf("grading key leaked: %+v", q)
		}
	}
	// original untouched
	if e.Questions[0].CorrectAnswer == "" || e.Questions[1].SampleAnswers == nil {
		t.Fatal("StudentView mutated its input")
	}
}
