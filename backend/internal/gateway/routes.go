package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"gradebook/backend/internal/gateway/handlers"
	"gradebook/backend/internal/gateway/util"
	"gradebook/backend/internal/shared"
)

// SetupRoutes configures the Chi router, middleware, and route handlers.
func SetupRoutes(svc *Services, cfg shared.HTTPConfig) *chi.Mux {
	r := chi.NewRouter()

	// 1. Global Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	// 2. Initialize Handlers
	gradeHandler := &handlers.GradeHandler{Grades: svc.Grades}
	calcHandler := &handlers.CalculationHandler{Engine: svc.Engine}
	resultHandler := &handlers.ResultHandler{Results: svc.Results}

	r.Get("/healthz", healthHandler(svc.Ping))

	// 3. Define Routes (grouped by prefix)
	r.Route("/api", func(r chi.Router) {

		// Grade entry
		r.Route("/grades", func(r chi.Router) {
			r.Post("/", gradeHandler.SaveGrade)
			r.Post("/upload", gradeHandler.UploadGrades)
			r.Get("/{id}", gradeHandler.GetGrade)
		})

		// Student views
		r.Route("/students/{studentId}", func(r chi.Router) {
			r.Get("/grades", gradeHandler.GetStudentGrades)
			r.Get("/readiness", calcHandler.GetReadiness)
		})

		// Strict-mode calculations
		r.Route("/calculations", func(r chi.Router) {
			r.Post("/tu", calcHandler.CalculateTU)
			r.Post("/semester", calcHandler.CalculateSemester)
			r.Post("/annual", calcHandler.CalculateAnnual)
			r.Post("/recalculate", calcHandler.Recalculate)
		})

		// Read-only results for transcripts and exports
		r.Route("/results/students/{studentId}", func(r chi.Router) {
			r.Get("/tu/{tuId}", resultHandler.GetTUResult)
			r.Get("/semesters/{semesterId}", resultHandler.GetSemesterResult)
			r.Get("/annual", resultHandler.GetAnnualResult)
		})
	})

	return r
}

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				util.WriteJSONError(w, http.StatusServiceUnavailable, "storage unreachable")
				return
			}
		}
		util.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
