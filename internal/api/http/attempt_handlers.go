package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/examgate/examgate/internal/exam"
	"github.com/examgate/examgate/internal/rbac"
)

// Events receives lifecycle notifications from the attempt handlers.
type Events interface {
	AttemptSubmitted(ctx context.Context, a exam.Attempt)
}

// attemptView is an attempt plus its question sheet in presentation order,
// stripped of answer keys.
type attemptView struct {
	exam.Attempt
	Questions []exam.Question `json:"questions,omitempty"`
}

func StartAttemptHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ExamID  string            `json:"exam_id"`
			Session map[string]string `json:"session,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.ExamID == "" {
			http.Error(w, "exam_id required", 400)
			return
		}
		sub := rbac.SubjectFromContext(r.Context())
		a, err := store.StartAttempt(r.Context(), req.ExamID, sub, req.Session, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, withQuestions(r, store, a))
	}
}

func SaveAnswerHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		qid := chi.URLParam(r, "questionID")
		var req struct {
			Value string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if err := requireAttemptOwner(r, store, id); err != nil {
			writeErr(w, err)
			return
		}
		a, err := store.SaveAnswer(r.Context(), id, qid, req.Value, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, a)
	}
}

func MarkQuestionHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		qid := chi.URLParam(r, "questionID")
		var req struct {
			Marked bool `json:"marked"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if err := requireAttemptOwner(r, store, id); err != nil {
			writeErr(w, err)
			return
		}
		a, err := store.MarkQuestion(r.Context(), id, qid, req.Marked, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, a)
	}
}

func SubmitAttemptHandler(store exam.Store, events Events) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		if err := requireAttemptOwner(r, store, id); err != nil {
			writeErr(w, err)
			return
		}
		a, err := store.SubmitAttempt(r.Context(), id, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		if events != nil {
			events.AttemptSubmitted(r.Context(), a)
		}
		writeJSON(w, redactForViewer(r, store, a))
	}
}

func GetAttemptHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		a, err := store.GetAttempt(r.Context(), id, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		role := rbac.RoleFromContext(r.Context())
		sub := rbac.SubjectFromContext(r.Context())
		if role == "student" && a.UserID != sub {
			writeErr(w, exam.ErrNotFound)
			return
		}
		if a.Status == exam.AttemptInProgress && a.UserID == sub {
			writeJSON(w, withQuestions(r, store, a))
			return
		}
		writeJSON(w, redactForViewer(r, store, a))
	}
}

func ListAttemptsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := rbac.SubjectFromContext(r.Context())
		opts := exam.AttemptListOpts{
			ExamID: strings.TrimSpace(r.URL.Query().Get("exam_id")),
			UserID: strings.TrimSpace(r.URL.Query().Get("user_id")),
			Status: strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
			Sort:   strings.TrimSpace(r.URL.Query().Get("sort")),
		}
		if role == "student" {
			opts.UserID = sub
		}
		list, err := store.ListAttempts(r.Context(), opts, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		if role == "student" {
			for i := range list {
				list[i] = redactForViewer(r, store, list[i]).Attempt
			}
		}
		writeJSON(w, list)
	}
}

func requireAttemptOwner(r *http.Request, store exam.Store, attemptID string) error {
	role := rbac.RoleFromContext(r.Context())
	if role == "admin" {
		return nil
	}
	a, err := store.GetAttempt(r.Context(), attemptID, time.Now())
	if err != nil {
		return err
	}
	if a.UserID != rbac.SubjectFromContext(r.Context()) {
		return fmt.Errorf("%w: attempt %s belongs to another student", exam.ErrNotAuthorized, attemptID)
	}
	return nil
}

func withQuestions(r *http.Request, store exam.Store, a exam.Attempt) attemptView {
	v := attemptView{Attempt: a}
	e, err := store.GetExam(r.Context(), a.ExamID)
	if err != nil {
		return v
	}
	stripped := exam.StudentView(e)
	v.Questions = exam.PresentationOrder(&stripped, a.ID)
	return v
}

// redactForViewer hides grading output from the student until the instructor
// has approved the attempt and the exam releases results. Instructors and
// admins always see the full record.
func redactForViewer(r *http.Request, store exam.Store, a exam.Attempt) attemptView {
	role := rbac.RoleFromContext(r.Context())
	if role != "student" {
		return attemptView{Attempt: a}
	}
	released := a.Status == exam.AttemptApproved
	if released {
		if e, err := store.GetExam(r.Context(), a.ExamID); err == nil {
			released = e.Settings.ShowResults
		}
	}
	if !released {
		a.Score = 0
		a.Percentage = 0
		a.Grade = ""
		a.Feedback = nil
		a.ReviewNote = ""
	}
	return attemptView{Attempt: a}
}
