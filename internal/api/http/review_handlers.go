package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/examgate/examgate/internal/rbac"
	"github.com/examgate/examgate/internal/review"
)

func ListPendingReviewHandler(gate *review.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := rbac.SubjectFromContext(r.Context())
		list, err := gate.ListPending(r.Context(), sub, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, list)
	}
}

func ApproveAttemptHandler(gate *review.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		var req struct {
			Overrides map[string]float64 `json:"overrides,omitempty"`
			Note      string             `json:"note,omitempty"`
		}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad json", 400)
				return
			}
		}
		sub := rbac.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())
		a, err := gate.Approve(r.Context(), sub, role, id, req.Overrides, req.Note, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, a)
	}
}

func ReturnAttemptHandler(gate *review.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		var req struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.Reason == "" {
			http.Error(w, "reason required", 400)
			return
		}
		sub := rbac.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())
		a, err := gate.Return(r.Context(), sub, role, id, req.Reason, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, a)
	}
}
