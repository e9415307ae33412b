package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/examgate/examgate/internal/api/http"
	auth "github.com/examgate/examgate/internal/auth/middleware"
	"github.com/examgate/examgate/internal/config"
	"github.com/examgate/examgate/internal/db"
	"github.com/examgate/examgate/internal/exam"
	"github.com/examgate/examgate/internal/grading"
	"github.com/examgate/examgate/internal/notify"
	"github.com/examgate/examgate/internal/rbac"
	"github.com/examgate/examgate/internal/review"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	grader := grading.NewDefaultGrader()
	store := exam.NewSQLStore(dbh, cfg.DBDriver, grader, grading.DefaultScale)
	events := notify.NewEventLog(dbh, cfg.SiteID)
	gate := review.NewGate(store, events)

	// --- Auth (local JWT) ---
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, dbh, auth.LoginOpts{
			AdminUser:     cfg.AdminUser,
			AdminPassHash: cfg.AdminPassHash,
		}))
	}

	// Protected API (JWT → subject+role in context → authoritative role → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, cfg.Mode == config.ModeOffline))

		// Catalog (instructor/admin authoring)
		pr.With(rbac.Require("exam:create")).
			Post("/exams", api.CreateExamHandler(store))
		pr.With(rbac.Require("exam:create")).
			Put("/exams/{examID}", api.UpdateExamHandler(store))
		pr.With(rbac.Require("exam:publish")).
			Post("/exams/{examID}/publish", api.PublishExamHandler(store))
		pr.With(rbac.Require("exam:archive")).
			Post("/exams/{examID}/archive", api.ArchiveExamHandler(store))
		pr.With(rbac.Require("exam:publish")).
			Put("/exams/{examID}/settings", api.UpdateExamSettingsHandler(store))

		// Catalog (any authenticated viewer; handlers redact per role)
		pr.With(rbac.Require("exam:view")).
			Get("/exams", api.ListExamsHandler(store))
		pr.With(rbac.Require("exam:view")).
			Get("/exams/{examID}", api.GetExamHandler(store))

		// Student attempt flow
		pr.With(rbac.Require("attempt:create")).
			Post("/attempts", api.StartAttemptHandler(store))
		pr.With(rbac.Require("attempt:save")).
			Put("/attempts/{attemptID}/answers/{questionID}", api.SaveAnswerHandler(store))
		pr.With(rbac.Require("attempt:save")).
			Put("/attempts/{attemptID}/marks/{questionID}", api.MarkQuestionHandler(store))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(store, events))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(store))

		// Approval gate (instructor/admin)
		pr.With(rbac.Require("review:list")).
			Get("/review", api.ListPendingReviewHandler(gate))
		pr.With(rbac.Require("review:approve")).
			Post("/review/{attemptID}/approve", api.ApproveAttemptHandler(gate))
		pr.With(rbac.Require("review:return")).
			Post("/review/{attemptID}/return", api.ReturnAttemptHandler(gate))

		// Users (instructor/admin)
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
