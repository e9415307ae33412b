package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/examgate/examgate/internal/exam"
	"github.com/examgate/examgate/internal/rbac"
)

func CreateExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var e exam.Exam
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if e.InstructorID == "" {
			e.InstructorID = rbac.SubjectFromContext(r.Context())
		}
		if rbac.RoleFromContext(r.Context()) == "instructor" &&
			e.InstructorID != rbac.SubjectFromContext(r.Context()) {
			writeErr(w, fmt.Errorf("%w: cannot create exams for another instructor", exam.ErrNotAuthorized))
			return
		}
		if err := exam.ValidateDraft(&e); err != nil {
			writeErr(w, err)
			return
		}
		saved, err := store.PutExam(r.Context(), e)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, saved)
	}
}

func UpdateExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		cur, err := store.GetExamAdmin(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := requireOwner(r, &cur); err != nil {
			writeErr(w, err)
			return
		}
		if cur.Status != exam.StatusDraft {
			writeErr(w, fmt.Errorf("%w: only drafts are editable", exam.ErrInvalidTransition))
			return
		}
		var e exam.Exam
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		e.ID = id
		e.InstructorID = cur.InstructorID
		e.Status = cur.Status
		if err := exam.ValidateDraft(&e); err != nil {
			writeErr(w, err)
			return
		}
		saved, err := store.PutExam(r.Context(), e)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, saved)
	}
}

func PublishExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		cur, err := store.GetExamAdmin(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := requireOwner(r, &cur); err != nil {
			writeErr(w, err)
			return
		}
		if err := exam.ValidatePublish(&cur); err != nil {
			writeErr(w, err)
			return
		}
		e, err := store.PublishExam(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, e)
	}
}

func ArchiveExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		cur, err := store.GetExamAdmin(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := requireOwner(r, &cur); err != nil {
			writeErr(w, err)
			return
		}
		e, err := store.ArchiveExam(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, e)
	}
}

func UpdateExamSettingsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		cur, err := store.GetExamAdmin(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := requireOwner(r, &cur); err != nil {
			writeErr(w, err)
			return
		}
		var s exam.Settings
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		e, err := store.UpdateExamSettings(r.Context(), id, s)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, e)
	}
}

// GetExamHandler returns the full exam (answer keys included) to the owning
// instructor or an admin, and the stripped student view to everyone else.
// Students only see published exams assigned to them, inside or after the
// window per the bucket rules.
func GetExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		role := rbac.RoleFromContext(r.Context())
		sub := rbac.SubjectFromContext(r.Context())

		if role == "admin" || role == "instructor" {
			e, err := store.GetExamAdmin(r.Context(), id)
			if err != nil {
				writeErr(w, err)
				return
			}
			if role == "admin" || e.InstructorID == sub {
				writeJSON(w, e)
				return
			}
			// an instructor browsing someone else's exam gets the student view
		}

		e, err := store.GetExam(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if !e.AssignedTo(sub) {
			writeErr(w, exam.ErrNotFound)
			return
		}
		writeJSON(w, exam.StudentView(e))
	}
}

// ListExamsHandler lists the catalog. Students get each exam paired with its
// access projection (can_start, can_resume, attempts used) computed from
// their own attempt records at request time.
func ListExamsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
		offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
		role := rbac.RoleFromContext(r.Context())
		sub := rbac.SubjectFromContext(r.Context())

		list, err := store.ListExams(r.Context(), exam.ListOpts{
			Q:          q,
			Status:     status,
			Limit:      limit,
			Offset:     offset,
			ViewerID:   sub,
			ViewerRole: role,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		if role != "student" {
			writeJSON(w, list)
			return
		}

		now := time.Now()
		out := make([]exam.VisibleExam, 0, len(list))
		for _, s := range list {
			e, err := store.GetExam(r.Context(), s.ID)
			if err != nil {
				continue
			}
			attempts, err := store.ListAttempts(r.Context(), exam.AttemptListOpts{
				ExamID: s.ID, UserID: sub,
			}, now)
			if err != nil {
				writeErr(w, err)
				return
			}
			out = append(out, exam.VisibleExam{Exam: s, Access: exam.GateAccess(&e, attempts, now)})
		}
		writeJSON(w, out)
	}
}

func requireOwner(r *http.Request, e *exam.Exam) error {
	role := rbac.RoleFromContext(r.Context())
	if role == "admin" {
		return nil
	}
	if e.InstructorID != rbac.SubjectFromContext(r.Context()) {
		return fmt.Errorf("%w: exam %s belongs to another instructor", exam.ErrNotAuthorized, e.ID)
	}
	return nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
